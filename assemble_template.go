// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/dbtdiagrams

package dbtdiagrams

import (
	"embed"
	"fmt"
	"strings"
	"text/template"
)

// templateFS stores the built-in diagram template embedded into the package.
//
//go:embed templates/erd.mmd.gotmpl
var templateFS embed.FS

const builtinTemplatePath = "templates/erd.mmd.gotmpl"

// BuiltinTemplate returns the default mermaid ERD template text.
func BuiltinTemplate() (string, error) {
	data, err := templateFS.ReadFile(builtinTemplatePath)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrParseDiagramTemplate, err)
	}

	return string(data), nil
}

// resolveTemplate parses either custom or built-in template text.
func resolveTemplate(opt Options) (*template.Template, error) {
	name := "custom"
	templateText := opt.TemplateText
	if strings.TrimSpace(templateText) == "" {
		var err error
		templateText, err = BuiltinTemplate()
		if err != nil {
			return nil, err
		}

		name = "erd"
	}

	parsed, err := template.New(name).Option("missingkey=error").Parse(templateText)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrParseDiagramTemplate, name, err)
	}

	return parsed, nil
}

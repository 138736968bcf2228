// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/dbtdiagrams

package dbtdiagrams

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var (
	// diagramPlaceholderPattern matches one-line placeholders such as ```mermaid[erd="billing"]```.
	// Text between the closing bracket and the closing backticks is dropped.
	diagramPlaceholderPattern = regexp.MustCompile("```mermaid\\[([^\\]\\n]*)\\][^\\n`]*```")
	// diagramNameAttrPattern extracts the erd attribute value from placeholder attributes.
	diagramNameAttrPattern = regexp.MustCompile(`(?:^|[\s,])erd\s*=\s*["']([^"']*)["']`)
)

// PatchText replaces every diagram placeholder in text with the rendered diagram of the same name.
// Unknown names produce an empty mermaid block; text without placeholders is returned unchanged.
func PatchText(text string, diagrams map[string]string) string {
	if !strings.Contains(text, "```mermaid[") {
		return text
	}

	return diagramPlaceholderPattern.ReplaceAllStringFunc(text, func(placeholder string) string {
		attrs := diagramPlaceholderPattern.FindStringSubmatch(placeholder)[1]
		match := diagramNameAttrPattern.FindStringSubmatch(attrs)
		if match == nil {
			return placeholder
		}

		diagram := strings.TrimRight(diagrams[match[1]], "\n")
		return mermaidFence + "\n" + diagram + "\n```"
	})
}

// PatchManifest returns a copy of manifest JSON where node descriptions and doc block
// contents have their diagram placeholders replaced. The input is not modified.
func PatchManifest(data []byte, diagrams map[string]string) ([]byte, error) {
	if _, _, err := readEnvelope(data, ArtifactManifest); err != nil {
		return nil, err
	}

	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	var doc map[string]any
	if err := decoder.Decode(&doc); err != nil {
		return nil, &ParseError{Kind: ArtifactManifest, Cause: err}
	}

	patched := 0
	patched += patchSectionField(doc, "nodes", "description", diagrams)
	patched += patchSectionField(doc, "docs", "block_contents", diagrams)
	Log.WithField("fields", patched).Debug("patched manifest documentation")

	var out bytes.Buffer
	encoder := json.NewEncoder(&out)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(doc); err != nil {
		return nil, fmt.Errorf("%w: encode manifest: %w", ErrPatchDocs, err)
	}

	return out.Bytes(), nil
}

// patchSectionField patches string field of every entry in doc[section] and returns number of changed fields.
func patchSectionField(doc map[string]any, section, field string, diagrams map[string]string) int {
	entries, ok := doc[section].(map[string]any)
	if !ok {
		return 0
	}

	changed := 0
	for _, rawEntry := range entries {
		entry, ok := rawEntry.(map[string]any)
		if !ok {
			continue
		}

		text, ok := entry[field].(string)
		if !ok {
			continue
		}

		if patchedText := PatchText(text, diagrams); patchedText != text {
			entry[field] = patchedText
			changed++
		}
	}

	return changed
}

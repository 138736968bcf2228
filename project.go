// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/dbtdiagrams

package dbtdiagrams

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// ProjectFileName is the dbt project configuration file.
	ProjectFileName = "dbt_project.yml"
	// TargetPathEnv overrides the dbt target directory.
	TargetPathEnv = "DBT_TARGET_PATH"
	// DefaultTargetPath is used when nothing else configures the target directory.
	DefaultTargetPath = "target"

	targetPathFlag = "--target-path"
)

// Project is the subset of dbt_project.yml used to locate artifacts.
type Project struct {
	Name       string `yaml:"name"`
	TargetPath string `yaml:"target-path"`
}

// ReadProjectFile parses dbt_project.yml.
func ReadProjectFile(path string) (Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Project{}, err
	}

	var project Project
	if err := yaml.Unmarshal(data, &project); err != nil {
		return Project{}, fmt.Errorf("decode %s: %w", path, err)
	}

	return project, nil
}

// TargetPathArg returns the value of --target-path from dbt command arguments.
func TargetPathArg(args []string) string {
	for i, arg := range args {
		if value, ok := strings.CutPrefix(arg, targetPathFlag+"="); ok {
			return value
		}

		if arg == targetPathFlag && i+1 < len(args) && !strings.HasPrefix(args[i+1], "--") {
			return args[i+1]
		}
	}

	return ""
}

// ResolveTargetPath picks the dbt target directory with dbt precedence: command line
// argument, DBT_TARGET_PATH, target-path of dbt_project.yml, then "target".
// Relative results are joined with projectDir.
func ResolveTargetPath(projectDir, cliTargetPath string, getenv func(string) string) (string, error) {
	if getenv == nil {
		getenv = os.Getenv
	}

	resolve := func(path string) string {
		if filepath.IsAbs(path) {
			return path
		}

		return filepath.Join(projectDir, path)
	}

	if path := strings.TrimSpace(cliTargetPath); path != "" {
		return resolve(path), nil
	}

	if path := strings.TrimSpace(getenv(TargetPathEnv)); path != "" {
		return resolve(path), nil
	}

	project, err := ReadProjectFile(filepath.Join(projectDir, ProjectFileName))
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return "", &ConfigurationError{Message: err.Error()}
	case strings.TrimSpace(project.TargetPath) != "":
		return resolve(strings.TrimSpace(project.TargetPath)), nil
	}

	return resolve(DefaultTargetPath), nil
}

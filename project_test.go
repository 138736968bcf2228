// SPDX-License-Identifier: AGPL-3.0-only
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/dbtdiagrams

package dbtdiagrams

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTargetPathArg(t *testing.T) {
	t.Parallel()

	cases := []struct {
		args []string
		want string
	}{
		{nil, ""},
		{[]string{"--target-path", "build"}, "build"},
		{[]string{"--select", "orders", "--target-path=out/docs"}, "out/docs"},
		{[]string{"--target-path", "--static"}, ""},
		{[]string{"--target-path"}, ""},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, TargetPathArg(tc.args), "%v", tc.args)
	}
}

func TestResolveTargetPathPrecedence(t *testing.T) {
	t.Parallel()

	projectDir := t.TempDir()
	writeFile(t, filepath.Join(projectDir, ProjectFileName), []byte("name: shop\ntarget-path: from_yml\n"))

	env := map[string]string{TargetPathEnv: "from_env"}
	getenv := func(key string) string { return env[key] }

	got, err := ResolveTargetPath(projectDir, "from_cli", getenv)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(projectDir, "from_cli"), got)

	got, err = ResolveTargetPath(projectDir, "", getenv)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(projectDir, "from_env"), got)

	delete(env, TargetPathEnv)
	got, err = ResolveTargetPath(projectDir, "", getenv)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(projectDir, "from_yml"), got)

	abs := filepath.Join(t.TempDir(), "abs")
	got, err = ResolveTargetPath(projectDir, abs, getenv)
	require.NoError(t, err)
	assert.Equal(t, abs, got)
}

func TestResolveTargetPathDefault(t *testing.T) {
	t.Parallel()

	projectDir := t.TempDir()
	noEnv := func(string) string { return "" }

	got, err := ResolveTargetPath(projectDir, "", noEnv)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(projectDir, DefaultTargetPath), got)

	writeFile(t, filepath.Join(projectDir, ProjectFileName), []byte("name: shop\n"))
	got, err = ResolveTargetPath(projectDir, "", noEnv)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(projectDir, DefaultTargetPath), got)
}

func TestResolveTargetPathInvalidProject(t *testing.T) {
	t.Parallel()

	projectDir := t.TempDir()
	writeFile(t, filepath.Join(projectDir, ProjectFileName), []byte("name: [unclosed\n"))

	_, err := ResolveTargetPath(projectDir, "", func(string) string { return "" })
	require.ErrorIs(t, err, ErrConfiguration)
}

func TestReadProjectFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), ProjectFileName)
	writeFile(t, path, []byte("name: shop\nversion: '1.0'\ntarget-path: build\nmodels:\n  shop:\n    +materialized: table\n"))

	project, err := ReadProjectFile(path)
	require.NoError(t, err)
	assert.Equal(t, Project{Name: "shop", TargetPath: "build"}, project)
}

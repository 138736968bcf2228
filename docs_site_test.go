// SPDX-License-Identifier: AGPL-3.0-only
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/dbtdiagrams

package dbtdiagrams

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const docsIndexHTML = `<html><head></head><body><div id="app"></div>
<script>var manifest = "MANIFEST.JSON INLINE DATA"; var catalog = "CATALOG.JSON INLINE DATA";</script>
</body></html>
`

func TestInjectMermaidLibraryIsIdempotent(t *testing.T) {
	t.Parallel()

	once := InjectMermaidLibrary(docsIndexHTML)
	assert.Equal(t, 1, strings.Count(once, mermaidSnippetMarker))
	assert.Less(t, strings.Index(once, mermaidSnippetMarker), strings.LastIndex(once, "</body>"))

	twice := InjectMermaidLibrary(once)
	assert.Equal(t, once, twice)

	noBody := InjectMermaidLibrary("<div></div>")
	assert.True(t, strings.HasPrefix(noBody, "<div></div>"+mermaidSnippetMarker))
}

func TestBuildStaticIndex(t *testing.T) {
	t.Parallel()

	got := BuildStaticIndex(docsIndexHTML, []byte("{\"m\": 1}\n"), []byte(`{"c": 2}`))
	assert.Contains(t, got, `var manifest = {"m": 1};`)
	assert.Contains(t, got, `var catalog = {"c": 2};`)
	assert.NotContains(t, got, "INLINE DATA")
}

func TestPatchDocsSite(t *testing.T) {
	t.Parallel()

	dir := copyFixtureTarget(t)
	writeFile(t, filepath.Join(dir, IndexFileName), []byte(docsIndexHTML))

	diagrams, err := RenderTargetDir(dir, Options{Now: fixedNow})
	require.NoError(t, err)
	require.NoError(t, PatchDocsSite(dir, diagrams))

	manifest, err := ReadManifestFile(filepath.Join(dir, ManifestFileName))
	require.NoError(t, err)

	orders, ok := manifest.Node("model.shop.orders")
	require.True(t, ok)
	assert.Contains(t, orders.Description, "```mermaid\n"+strings.TrimRight(diagrams["default"], "\n")+"\n```")
	assert.NotContains(t, orders.Description, "```mermaid[")

	index, err := os.ReadFile(filepath.Join(dir, IndexFileName))
	require.NoError(t, err)
	assert.Contains(t, string(index), mermaidSnippetMarker)

	info, err := os.Stat(filepath.Join(dir, IndexFileName))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())

	require.NoError(t, WriteStaticIndex(dir))
	static, err := os.ReadFile(filepath.Join(dir, StaticIndexFileName))
	require.NoError(t, err)
	assert.NotContains(t, string(static), "INLINE DATA")
	assert.Contains(t, string(static), "6f1e2a4c-5d3b-4e8f-9a7c-1b2d3e4f5a6b")
}

func TestPatchDocsSiteRequiresIndex(t *testing.T) {
	t.Parallel()

	dir := copyFixtureTarget(t)
	err := PatchDocsSite(dir, map[string]string{})
	require.ErrorIs(t, err, ErrPatchDocs)
}

// copyFixtureTarget copies testdata artifacts into a fresh target directory.
func copyFixtureTarget(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	for _, name := range []string{ManifestFileName, CatalogFileName} {
		data, err := os.ReadFile(filepath.Join("testdata", name))
		require.NoError(t, err)
		writeFile(t, filepath.Join(dir, name), data)
	}

	return dir
}

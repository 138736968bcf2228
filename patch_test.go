// SPDX-License-Identifier: AGPL-3.0-only
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/dbtdiagrams

package dbtdiagrams

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var patchDiagrams = map[string]string{
	"billing": "erDiagram\n\ta ||--|| b : \"\"\n",
}

func TestPatchTextReplacesPlaceholder(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"double quotes": "before\n```mermaid[erd=\"billing\"]```\nafter",
		"single quotes": "before\n```mermaid[erd='billing']```\nafter",
		"other attrs":   "before\n```mermaid[theme=\"dark\", erd=\"billing\"]```\nafter",
		"trailing text": "before\n```mermaid[erd=\"billing\"] ```\nafter",
	}

	for name, text := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got := PatchText(text, patchDiagrams)
			assert.Equal(t, "before\n```mermaid\nerDiagram\n\ta ||--|| b : \"\"\n```\nafter", got)
		})
	}
}

func TestPatchTextUnknownDiagramLeavesEmptyBlock(t *testing.T) {
	t.Parallel()

	got := PatchText("```mermaid[erd=\"missing\"]```", patchDiagrams)
	assert.Equal(t, "```mermaid\n\n```", got)
}

func TestPatchTextWithoutPlaceholders(t *testing.T) {
	t.Parallel()

	for _, text := range []string{
		"",
		"plain description",
		"```mermaid\nerDiagram\n```",
		"```mermaid[theme=\"dark\"]```",
	} {
		assert.Equal(t, text, PatchText(text, patchDiagrams))
	}
}

func TestPatchManifestPatchesNodesAndDocs(t *testing.T) {
	t.Parallel()

	original, err := os.ReadFile(filepath.Join("testdata", ManifestFileName))
	require.NoError(t, err)
	input := bytes.Clone(original)

	diagrams := map[string]string{
		"default": "erDiagram\n\tdefault_body\n",
		"billing": "erDiagram\n\tbilling_body\n",
	}

	patched, err := PatchManifest(input, diagrams)
	require.NoError(t, err)
	assert.Equal(t, original, input)

	var doc struct {
		Metadata Metadata `json:"metadata"`
		Nodes    map[string]struct {
			Description string `json:"description"`
		} `json:"nodes"`
		Docs map[string]struct {
			BlockContents string `json:"block_contents"`
		} `json:"docs"`
	}
	require.NoError(t, json.Unmarshal(patched, &doc))

	assert.Equal(t, "6f1e2a4c-5d3b-4e8f-9a7c-1b2d3e4f5a6b", doc.Metadata.InvocationID)
	assert.Equal(t, "All orders.\n\n```mermaid\nerDiagram\n\tdefault_body\n```\n", doc.Nodes["model.shop.orders"].Description)
	assert.Equal(t, "Customers.", doc.Nodes["model.shop.customers"].Description)
	assert.Equal(t,
		"# Shop\n\n```mermaid\nerDiagram\n\tbilling_body\n```\n\n```mermaid\n\n```",
		doc.Docs["doc.shop.overview"].BlockContents,
	)

	_, err = ReadManifest(patched)
	require.NoError(t, err)
}

func TestPatchManifestRejectsCatalog(t *testing.T) {
	t.Parallel()

	_, err := PatchManifest(catalogDoc(1, "inv", ""), nil)
	require.ErrorIs(t, err, ErrValidation)
}

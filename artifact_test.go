// SPDX-License-Identifier: AGPL-3.0-only
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/dbtdiagrams

package dbtdiagrams

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// manifestDoc returns manifest JSON of the given schema version with nodes as raw JSON object body.
func manifestDoc(version int, invocationID, nodes string) []byte {
	return []byte(fmt.Sprintf(`{
  "metadata": {
    "dbt_schema_version": "https://schemas.getdbt.com/dbt/manifest/v%d.json",
    "invocation_id": %q
  },
  "nodes": {%s}
}`, version, invocationID, nodes))
}

// catalogDoc returns catalog JSON of the given schema version with nodes as raw JSON object body.
func catalogDoc(version int, invocationID, nodes string) []byte {
	return []byte(fmt.Sprintf(`{
  "metadata": {
    "dbt_schema_version": "https://schemas.getdbt.com/dbt/catalog/v%d.json",
    "invocation_id": %q
  },
  "nodes": {%s}
}`, version, invocationID, nodes))
}

// modelNode returns a manifest node JSON member with optional meta.erd body.
func modelNode(id, name, erd string) string {
	meta := "{}"
	if erd != "" {
		meta = `{"erd": ` + erd + `}`
	}

	return fmt.Sprintf(`%q: {
  "resource_type": "model",
  "name": %q,
  "alias": %q,
  "database": "db",
  "schema": "public",
  "columns": {},
  "meta": %s
}`, id, name, name+"_tbl", meta)
}

func TestParseSchemaVersion(t *testing.T) {
	t.Parallel()

	family, version, err := ParseSchemaVersion("https://schemas.getdbt.com/dbt/manifest/v11.json")
	require.NoError(t, err)
	assert.Equal(t, "manifest", family)
	assert.Equal(t, 11, version)

	for _, input := range []string{
		"",
		"https://schemas.getdbt.com/dbt/manifest/v11.yml",
		"https://example.com/dbt/manifest/v11.json",
		"https://schemas.getdbt.com/dbt/manifest/vX.json",
	} {
		_, _, err := ParseSchemaVersion(input)
		assert.Error(t, err, input)
	}
}

func TestReadManifestAcceptsSupportedVersions(t *testing.T) {
	t.Parallel()

	for version := 4; version <= 11; version++ {
		manifest, err := ReadManifest(manifestDoc(version, "inv", modelNode("model.p.a", "a", "")))
		require.NoError(t, err, "version %d", version)
		require.Len(t, manifest.Nodes, 1)
	}
}

func TestReadManifestRejectsUnsupportedVersion(t *testing.T) {
	t.Parallel()

	for _, version := range []int{3, 12} {
		_, err := ReadManifest(manifestDoc(version, "inv", ""))
		require.ErrorIs(t, err, ErrValidation)
		assert.Equal(t, "validation", ErrorKind(err))

		var validationErr *ValidationError
		require.True(t, errors.As(err, &validationErr))
		assert.Equal(t, 4, validationErr.MinVersion)
		assert.Equal(t, 11, validationErr.MaxVersion)
		assert.Contains(t, err.Error(), "expected a version between 4 and 11")
	}
}

func TestReadManifestRejectsCatalogDocument(t *testing.T) {
	t.Parallel()

	_, err := ReadManifest(catalogDoc(1, "inv", ""))
	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), `artifact family "catalog" is not manifest`)
}

func TestReadCatalogVersionRange(t *testing.T) {
	t.Parallel()

	catalog, err := ReadCatalog(catalogDoc(1, "inv", `"model.p.a": {"columns": {"id": {"name": "ID", "type": "INT64"}}}`))
	require.NoError(t, err)
	assert.Equal(t, CatalogColumn{Name: "ID", Type: "INT64"}, catalog.Nodes["model.p.a"].Columns["id"])

	_, err = ReadCatalog(catalogDoc(2, "inv", ""))
	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "expected a version between 1 and 1")
}

func TestReadManifestMalformedJSON(t *testing.T) {
	t.Parallel()

	_, err := ReadManifest([]byte(`{"metadata": `))
	require.ErrorIs(t, err, ErrParse)
	assert.Equal(t, "parse", ErrorKind(err))
}

func TestReadManifestMissingVersion(t *testing.T) {
	t.Parallel()

	for _, doc := range []string{
		`{}`,
		`{"metadata": {}}`,
		`{"metadata": {"dbt_schema_version": "v11"}}`,
		`[]`,
	} {
		_, err := ReadManifest([]byte(doc))
		require.ErrorIs(t, err, ErrValidation, doc)
	}
}

func TestReadArtifactsRequireNodes(t *testing.T) {
	t.Parallel()

	manifestVersion := `"metadata": {"dbt_schema_version": "https://schemas.getdbt.com/dbt/manifest/v11.json", "invocation_id": "inv"}`
	catalogVersion := `"metadata": {"dbt_schema_version": "https://schemas.getdbt.com/dbt/catalog/v1.json", "invocation_id": "inv"}`

	for _, nodes := range []string{"", `, "nodes": null`} {
		_, err := ReadManifest([]byte("{" + manifestVersion + nodes + "}"))
		require.ErrorIs(t, err, ErrValidation, nodes)
		assert.Contains(t, err.Error(), "manifest field nodes: missing required field")

		_, err = ReadCatalog([]byte("{" + catalogVersion + nodes + "}"))
		require.ErrorIs(t, err, ErrValidation, nodes)
		assert.Contains(t, err.Error(), "catalog field nodes: missing required field")
	}

	manifest, err := ReadManifest([]byte("{" + manifestVersion + `, "nodes": {}}`))
	require.NoError(t, err)
	assert.Empty(t, manifest.Nodes)

	catalog, err := ReadCatalog([]byte("{" + catalogVersion + `, "nodes": {}}`))
	require.NoError(t, err)
	assert.Empty(t, catalog.Nodes)
}

func TestReadManifestKeepsNodeOrder(t *testing.T) {
	t.Parallel()

	nodes := modelNode("model.p.zulu", "zulu", "") + "," +
		modelNode("model.p.alpha", "alpha", "") + "," +
		modelNode("model.p.mike", "mike", "")

	manifest, err := ReadManifest(manifestDoc(11, "inv", nodes))
	require.NoError(t, err)

	var names []string
	for _, node := range manifest.Nodes {
		names = append(names, node.Name)
	}

	assert.Equal(t, []string{"zulu", "alpha", "mike"}, names)

	node, ok := manifest.Node("model.p.alpha")
	require.True(t, ok)
	assert.Equal(t, "alpha_tbl", node.Alias)
}

func TestReadManifestERDSection(t *testing.T) {
	t.Parallel()

	erd := `{"connections": [
  {"target": "b", "source_cardinality": "ZERO_OR_MORE", "target_cardinality": "one"},
  {"target": "c", "source_cardinality": "one", "target_cardinality": "zero_or_one", "diagram": "x", "label": "has"}
]}`

	manifest, err := ReadManifest(manifestDoc(11, "inv", modelNode("model.p.a", "a", erd)))
	require.NoError(t, err)

	connections := manifest.Nodes[0].ERD.Connections
	require.Len(t, connections, 2)
	assert.Equal(t, CardinalityZeroOrMore, connections[0].SourceCardinality)
	assert.Equal(t, DefaultDiagramName, connections[0].Diagram)
	assert.Nil(t, connections[0].Label)
	assert.Equal(t, "x", connections[1].Diagram)
	require.NotNil(t, connections[1].Label)
	assert.Equal(t, "has", *connections[1].Label)
}

func TestReadManifestRejectsInvalidERDSection(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"unknown cardinality": `{"connections": [{"target": "b", "source_cardinality": "many", "target_cardinality": "one"}]}`,
		"missing target":      `{"connections": [{"source_cardinality": "one", "target_cardinality": "one"}]}`,
		"missing cardinality": `{"connections": [{"target": "b", "source_cardinality": "one"}]}`,
		"unknown key":         `{"connections": [{"target": "b", "source_cardinality": "one", "target_cardinality": "one", "colour": "red"}]}`,
	}

	for name, erd := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := ReadManifest(manifestDoc(11, "inv", modelNode("model.p.a", "a", erd)))
			require.ErrorIs(t, err, ErrValidation)
			assert.Contains(t, err.Error(), "nodes.model.p.a.meta.erd")
		})
	}
}

func TestReadManifestRequiresNameAndAlias(t *testing.T) {
	t.Parallel()

	_, err := ReadManifest(manifestDoc(11, "inv", `"model.p.a": {"alias": "a"}`))
	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "nodes.model.p.a.name")

	_, err = ReadManifest(manifestDoc(11, "inv", `"model.p.a": {"name": "a"}`))
	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "nodes.model.p.a.alias")

	manifest, err := ReadManifest(manifestDoc(11, "inv", `"model.p.a": {"name": "a", "alias": "a", "database": null, "schema": null}`))
	require.NoError(t, err)
	assert.Empty(t, manifest.Nodes[0].Database)
}

func TestLoadTargetDir(t *testing.T) {
	t.Parallel()

	invocationID := uuid.NewString()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ManifestFileName), manifestDoc(11, invocationID, modelNode("model.p.a", "a", "")))

	manifest, catalog, err := LoadTargetDir(dir)
	require.NoError(t, err)
	assert.Nil(t, catalog)
	assert.Equal(t, invocationID, manifest.Metadata.InvocationID)

	writeFile(t, filepath.Join(dir, CatalogFileName), catalogDoc(1, invocationID, ""))
	_, catalog, err = LoadTargetDir(dir)
	require.NoError(t, err)
	require.NotNil(t, catalog)
	assert.True(t, CheckSameInvocation(manifest, catalog))
}

func TestLoadTargetDirRequiresManifest(t *testing.T) {
	t.Parallel()

	_, _, err := LoadTargetDir(t.TempDir())
	require.ErrorIs(t, err, ErrConfiguration)
	assert.Contains(t, err.Error(), "required as a minimum")
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()

	require.NoError(t, os.WriteFile(path, data, 0o600))
}

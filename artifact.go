// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/dbtdiagrams

package dbtdiagrams

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
)

const (
	// ArtifactManifest is the dbt manifest.json artifact family.
	ArtifactManifest ArtifactKind = "manifest"
	// ArtifactCatalog is the dbt catalog.json artifact family.
	ArtifactCatalog ArtifactKind = "catalog"
)

const (
	// ManifestFileName is the manifest file name inside a dbt target directory.
	ManifestFileName = "manifest.json"
	// CatalogFileName is the catalog file name inside a dbt target directory.
	CatalogFileName = "catalog.json"
)

// ArtifactKind selects which dbt artifact family a document must belong to.
type ArtifactKind string

// VersionRange is a closed range of supported artifact schema versions.
type VersionRange struct {
	Min int
	Max int
}

// Contains reports whether version lies inside the range.
func (r VersionRange) Contains(version int) bool {
	return version >= r.Min && version <= r.Max
}

// supportedVersions lists accepted schema versions per artifact family.
var supportedVersions = map[ArtifactKind]VersionRange{
	ArtifactManifest: {Min: 4, Max: 11},
	ArtifactCatalog:  {Min: 1, Max: 1},
}

// schemaVersionPattern captures family and version number of dbt_schema_version URLs.
var schemaVersionPattern = regexp.MustCompile(`^https://schemas\.getdbt\.com/dbt/([^/]+)/v([0-9]+)\.json$`)

// SupportedVersions returns the supported schema version range for kind.
func SupportedVersions(kind ArtifactKind) (VersionRange, bool) {
	r, ok := supportedVersions[kind]
	return r, ok
}

// Metadata is the common metadata block carried by every dbt artifact.
type Metadata struct {
	SchemaVersion string `json:"dbt_schema_version"`
	DbtVersion    string `json:"dbt_version,omitempty"`
	GeneratedAt   string `json:"generated_at,omitempty"`
	InvocationID  string `json:"invocation_id"`
}

// Manifest is a validated dbt manifest reduced to the fields used for diagrams.
type Manifest struct {
	Metadata Metadata
	// Nodes keeps document order of the manifest "nodes" object.
	Nodes []ManifestNode
}

// Node returns manifest node by unique id.
func (m *Manifest) Node(id string) (ManifestNode, bool) {
	for _, node := range m.Nodes {
		if node.ID == id {
			return node, true
		}
	}

	return ManifestNode{}, false
}

// ManifestNode is one build artifact entry of the manifest.
type ManifestNode struct {
	// ID is the internal node key, for example "model.shop.orders".
	ID           string
	Name         string
	Alias        string
	Database     string
	Schema       string
	ResourceType string
	Description  string
	Columns      map[string]ManifestColumn
	ERD          ERDSection
}

// ManifestColumn is a documented column of a manifest node.
type ManifestColumn struct {
	Name     string
	DataType string
}

// ERDSection is the "erd" key of node meta.
type ERDSection struct {
	Connections []Connection `json:"connections"`
}

// Connection is one user-declared relation from the owning node to Target.
type Connection struct {
	Target            string      `json:"target"`
	SourceCardinality Cardinality `json:"source_cardinality"`
	TargetCardinality Cardinality `json:"target_cardinality"`
	Diagram           string      `json:"diagram,omitempty"`
	Label             *string     `json:"label,omitempty"`
}

// Catalog is a validated dbt catalog reduced to realized column types.
type Catalog struct {
	Metadata Metadata
	Nodes    map[string]CatalogNode
}

// CatalogNode holds realized columns of one node keyed by column id.
type CatalogNode struct {
	Columns map[string]CatalogColumn
}

// CatalogColumn is a realized column with its warehouse type.
type CatalogColumn struct {
	Name string
	Type string
}

// rawEnvelope is the first-pass decoding shape shared by both artifact kinds.
type rawEnvelope struct {
	Metadata json.RawMessage `json:"metadata"`
	Nodes    json.RawMessage `json:"nodes"`
}

type rawManifestNode struct {
	Name         *string                      `json:"name"`
	Alias        *string                      `json:"alias"`
	Database     *string                      `json:"database"`
	Schema       *string                      `json:"schema"`
	ResourceType string                       `json:"resource_type"`
	Description  string                       `json:"description"`
	Columns      map[string]rawManifestColumn `json:"columns"`
	Meta         map[string]json.RawMessage   `json:"meta"`
}

type rawManifestColumn struct {
	Name     string  `json:"name"`
	DataType *string `json:"data_type"`
}

type rawCatalogNode struct {
	Columns map[string]rawCatalogColumn `json:"columns"`
}

type rawCatalogColumn struct {
	Name string  `json:"name"`
	Type *string `json:"type"`
}

// ParseSchemaVersion splits a dbt_schema_version URL into artifact family and version number.
func ParseSchemaVersion(schemaVersion string) (string, int, error) {
	match := schemaVersionPattern.FindStringSubmatch(schemaVersion)
	if match == nil {
		return "", 0, fmt.Errorf("unrecognized schema version %q", schemaVersion)
	}

	version, err := strconv.Atoi(match[2])
	if err != nil {
		return "", 0, fmt.Errorf("schema version number %q: %w", match[2], err)
	}

	return match[1], version, nil
}

// ReadArtifactMetadata parses data as JSON and verifies that it belongs to kind within the supported version range.
func ReadArtifactMetadata(data []byte, kind ArtifactKind) (Metadata, error) {
	_, meta, err := readEnvelope(data, kind)
	return meta, err
}

// ReadManifest parses and validates manifest bytes.
func ReadManifest(data []byte) (*Manifest, error) {
	env, meta, err := readEnvelope(data, ArtifactManifest)
	if err != nil {
		return nil, err
	}

	if err := env.requireNodes(ArtifactManifest); err != nil {
		return nil, err
	}

	manifest := &Manifest{Metadata: meta}
	err = decodeOrderedObject(env.Nodes, func(id string, raw json.RawMessage) error {
		node, err := buildManifestNode(id, raw)
		if err != nil {
			return err
		}

		manifest.Nodes = append(manifest.Nodes, node)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return manifest, nil
}

// ReadCatalog parses and validates catalog bytes.
func ReadCatalog(data []byte) (*Catalog, error) {
	env, meta, err := readEnvelope(data, ArtifactCatalog)
	if err != nil {
		return nil, err
	}

	if err := env.requireNodes(ArtifactCatalog); err != nil {
		return nil, err
	}

	catalog := &Catalog{Metadata: meta, Nodes: map[string]CatalogNode{}}
	var rawNodes map[string]rawCatalogNode
	if err := json.Unmarshal(env.Nodes, &rawNodes); err != nil {
		return nil, &ValidationError{Kind: ArtifactCatalog, Field: "nodes", Message: "unexpected node shape", Cause: err}
	}

	for id, rawNode := range rawNodes {
		node := CatalogNode{Columns: make(map[string]CatalogColumn, len(rawNode.Columns))}
		for colID, col := range rawNode.Columns {
			column := CatalogColumn{Name: col.Name}
			if col.Type != nil {
				column.Type = *col.Type
			}

			node.Columns[colID] = column
		}

		catalog.Nodes[id] = node
	}

	return catalog, nil
}

// ReadManifestFile reads and validates manifest from file.
func ReadManifestFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadArtifactFile, err)
	}

	return ReadManifest(data)
}

// ReadCatalogFile reads and validates catalog from file.
func ReadCatalogFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadArtifactFile, err)
	}

	return ReadCatalog(data)
}

// LoadTargetDir reads manifest.json (required) and catalog.json (optional) from a dbt target directory.
// Catalog is nil when the directory has no catalog file.
func LoadTargetDir(dir string) (*Manifest, *Catalog, error) {
	manifestPath := filepath.Join(dir, ManifestFileName)
	if _, err := os.Stat(manifestPath); err != nil {
		return nil, nil, &ConfigurationError{Message: fmt.Sprintf("%s doesn't exist and is required as a minimum", manifestPath)}
	}

	manifest, err := ReadManifestFile(manifestPath)
	if err != nil {
		return nil, nil, err
	}

	catalogPath := filepath.Join(dir, CatalogFileName)
	if _, err := os.Stat(catalogPath); errors.Is(err, os.ErrNotExist) {
		return manifest, nil, nil
	}

	catalog, err := ReadCatalogFile(catalogPath)
	if err != nil {
		return nil, nil, err
	}

	return manifest, catalog, nil
}

// requireNodes fails when the document has no nodes object. An empty object is valid.
func (env rawEnvelope) requireNodes(kind ArtifactKind) error {
	if len(env.Nodes) == 0 || string(env.Nodes) == "null" {
		return &ValidationError{Kind: kind, Field: "nodes", Message: "missing required field"}
	}

	return nil
}

// readEnvelope decodes top-level document and validates metadata for kind.
func readEnvelope(data []byte, kind ArtifactKind) (rawEnvelope, Metadata, error) {
	versions, ok := supportedVersions[kind]
	if !ok {
		return rawEnvelope{}, Metadata{}, &ValidationError{Kind: kind, Message: "unknown artifact kind"}
	}

	var env rawEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return rawEnvelope{}, Metadata{}, &ValidationError{Kind: kind, Message: "document root must be an object", Cause: err}
		}

		return rawEnvelope{}, Metadata{}, &ParseError{Kind: kind, Cause: err}
	}

	var meta Metadata
	if len(env.Metadata) == 0 || json.Unmarshal(env.Metadata, &meta) != nil || meta.SchemaVersion == "" {
		return rawEnvelope{}, Metadata{}, &ValidationError{
			Kind:    kind,
			Field:   "metadata.dbt_schema_version",
			Message: fmt.Sprintf("could not extract version number from provided %s file", kind),
		}
	}

	family, version, err := ParseSchemaVersion(meta.SchemaVersion)
	if err != nil {
		return rawEnvelope{}, Metadata{}, &ValidationError{
			Kind:    kind,
			Field:   "metadata.dbt_schema_version",
			Message: fmt.Sprintf("could not extract version number from provided %s file", kind),
			Cause:   err,
		}
	}

	if family != string(kind) {
		return rawEnvelope{}, Metadata{}, &ValidationError{
			Kind:    kind,
			Field:   "metadata.dbt_schema_version",
			Got:     meta.SchemaVersion,
			Message: fmt.Sprintf("artifact family %q is not %s", family, kind),
		}
	}

	if !versions.Contains(version) {
		return rawEnvelope{}, Metadata{}, &ValidationError{
			Kind:       kind,
			Field:      "metadata.dbt_schema_version",
			Got:        strconv.Itoa(version),
			MinVersion: versions.Min,
			MaxVersion: versions.Max,
			Message:    "unsupported version",
		}
	}

	return env, meta, nil
}

// buildManifestNode validates one manifest node and extracts its ERD section.
func buildManifestNode(id string, raw json.RawMessage) (ManifestNode, error) {
	var rawNode rawManifestNode
	if err := json.Unmarshal(raw, &rawNode); err != nil {
		return ManifestNode{}, &ValidationError{Kind: ArtifactManifest, Field: "nodes." + id, Message: "unexpected node shape", Cause: err}
	}

	if rawNode.Name == nil || *rawNode.Name == "" {
		return ManifestNode{}, &ValidationError{Kind: ArtifactManifest, Field: "nodes." + id + ".name", Message: "missing required field"}
	}

	if rawNode.Alias == nil {
		return ManifestNode{}, &ValidationError{Kind: ArtifactManifest, Field: "nodes." + id + ".alias", Message: "missing required field"}
	}

	node := ManifestNode{
		ID:           id,
		Name:         *rawNode.Name,
		Alias:        *rawNode.Alias,
		Database:     derefString(rawNode.Database),
		Schema:       derefString(rawNode.Schema),
		ResourceType: rawNode.ResourceType,
		Description:  rawNode.Description,
		Columns:      make(map[string]ManifestColumn, len(rawNode.Columns)),
	}

	for colID, col := range rawNode.Columns {
		node.Columns[colID] = ManifestColumn{Name: col.Name, DataType: derefString(col.DataType)}
	}

	if erdRaw, ok := rawNode.Meta["erd"]; ok {
		section, err := decodeERDSection(erdRaw)
		if err != nil {
			return ManifestNode{}, &ValidationError{Kind: ArtifactManifest, Field: "nodes." + id + ".meta.erd", Message: "invalid erd section", Cause: err}
		}

		node.ERD = section
	}

	return node, nil
}

// decodeERDSection strictly decodes meta.erd and checks required connection fields.
func decodeERDSection(raw json.RawMessage) (ERDSection, error) {
	var section ERDSection
	if string(raw) == "null" {
		return section, nil
	}

	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&section); err != nil {
		return ERDSection{}, err
	}

	for i := range section.Connections {
		conn := &section.Connections[i]
		switch {
		case conn.Target == "":
			return ERDSection{}, fmt.Errorf("connection %d: missing target", i)
		case !conn.SourceCardinality.Valid():
			return ERDSection{}, fmt.Errorf("connection %d: missing source_cardinality", i)
		case !conn.TargetCardinality.Valid():
			return ERDSection{}, fmt.Errorf("connection %d: missing target_cardinality", i)
		}

		if conn.Diagram == "" {
			conn.Diagram = DefaultDiagramName
		}
	}

	return section, nil
}

// decodeOrderedObject walks a JSON object and calls fn for each member in document order.
func decodeOrderedObject(raw json.RawMessage, fn func(key string, value json.RawMessage) error) error {
	decoder := json.NewDecoder(bytes.NewReader(raw))
	token, err := decoder.Token()
	if err != nil {
		return &ValidationError{Kind: ArtifactManifest, Field: "nodes", Message: "unexpected nodes shape", Cause: err}
	}

	if delim, ok := token.(json.Delim); !ok || delim != '{' {
		return &ValidationError{Kind: ArtifactManifest, Field: "nodes", Message: "nodes must be an object"}
	}

	for decoder.More() {
		token, err := decoder.Token()
		if err != nil {
			return &ValidationError{Kind: ArtifactManifest, Field: "nodes", Message: "unexpected nodes shape", Cause: err}
		}

		key, _ := token.(string)
		var value json.RawMessage
		if err := decoder.Decode(&value); err != nil {
			return &ValidationError{Kind: ArtifactManifest, Field: "nodes." + key, Message: "unexpected node shape", Cause: err}
		}

		if err := fn(key, value); err != nil {
			return err
		}
	}

	if _, err := decoder.Token(); err != nil && !errors.Is(err, io.EOF) {
		return &ValidationError{Kind: ArtifactManifest, Field: "nodes", Message: "unexpected nodes shape", Cause: err}
	}

	return nil
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}

	return *value
}

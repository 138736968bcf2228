// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/dbtdiagrams

package dbtdiagrams

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// DefaultDiagramName is used for connections that do not name a diagram.
const DefaultDiagramName = "default"

// unknownColumnType is rendered for columns without a known type.
const unknownColumnType = "UNKNOWN"

const (
	// CardinalityZeroOrOne is an optional single end.
	CardinalityZeroOrOne Cardinality = iota + 1
	// CardinalityOne is an exactly-one end.
	CardinalityOne
	// CardinalityZeroOrMore is an optional many end.
	CardinalityZeroOrMore
	// CardinalityOneOrMore is a mandatory many end.
	CardinalityOneOrMore
)

// Cardinality is the multiplicity of one relation end. Zero value is invalid.
type Cardinality uint8

// cardinalityNotation holds the meta name and mermaid edge tokens of a cardinality.
type cardinalityNotation struct {
	name   string
	source string
	target string
}

// cardinalityNotations is indexed by Cardinality value.
var cardinalityNotations = [...]cardinalityNotation{
	CardinalityZeroOrOne:  {name: "zero_or_one", source: "|o", target: "o|"},
	CardinalityOne:        {name: "one", source: "||", target: "||"},
	CardinalityZeroOrMore: {name: "zero_or_more", source: "}o", target: "o{"},
	CardinalityOneOrMore:  {name: "one_or_more", source: "}|", target: "|{"},
}

// ParseCardinality parses meta cardinality names; matching is case-insensitive.
func ParseCardinality(value string) (Cardinality, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for i, notation := range cardinalityNotations {
		if i > 0 && notation.name == normalized {
			return Cardinality(i), nil
		}
	}

	return 0, fmt.Errorf("unknown cardinality %q", value)
}

// Valid reports whether c is one of the declared cardinalities.
func (c Cardinality) Valid() bool {
	return c > 0 && int(c) < len(cardinalityNotations)
}

// String returns the meta name of c.
func (c Cardinality) String() string {
	if !c.Valid() {
		return fmt.Sprintf("cardinality(%d)", uint8(c))
	}

	return cardinalityNotations[c].name
}

// SourceToken returns the mermaid token for the source side of an edge.
func (c Cardinality) SourceToken() string {
	if !c.Valid() {
		return ""
	}

	return cardinalityNotations[c].source
}

// TargetToken returns the mermaid token for the target side of an edge.
func (c Cardinality) TargetToken() string {
	if !c.Valid() {
		return ""
	}

	return cardinalityNotations[c].target
}

// MarshalJSON encodes c as its meta name.
func (c Cardinality) MarshalJSON() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("marshal %s", c)
	}

	return json.Marshal(c.String())
}

// UnmarshalJSON decodes meta cardinality names.
func (c *Cardinality) UnmarshalJSON(data []byte) error {
	var value string
	if err := json.Unmarshal(data, &value); err != nil {
		return fmt.Errorf("cardinality must be a string: %w", err)
	}

	parsed, err := ParseCardinality(value)
	if err != nil {
		return err
	}

	*c = parsed
	return nil
}

// Column is one field of a table. Name may contain dot separated nesting segments.
type Column struct {
	Name string
	// Type is the raw warehouse type expression, empty when unknown.
	Type string
}

// NewColumn builds a column from manifest and catalog records; catalog data wins when present.
func NewColumn(manifestColumn *ManifestColumn, catalogColumn *CatalogColumn) (Column, error) {
	switch {
	case catalogColumn != nil:
		return Column{Name: catalogColumn.Name, Type: catalogColumn.Type}, nil
	case manifestColumn != nil:
		return Column{Name: manifestColumn.Name, Type: manifestColumn.DataType}, nil
	default:
		return Column{}, ErrEmptyColumn
	}
}

// DiagramName returns the column name with nesting rendered as brackets: a.b.c becomes a[b[c]].
func (c Column) DiagramName() string {
	segments := strings.Split(c.Name, ".")
	if len(segments) == 1 {
		return c.Name
	}

	var out strings.Builder
	out.Grow(len(c.Name) + len(segments))
	for _, segment := range segments[:len(segments)-1] {
		out.WriteString(segment)
		out.WriteByte('[')
	}

	out.WriteString(segments[len(segments)-1])
	out.WriteString(strings.Repeat("]", len(segments)-1))
	return out.String()
}

// DiagramType returns the type with struct field lists elided and angle brackets
// replaced by square brackets: ARRAY<STRUCT<a INT64>> becomes ARRAY[STRUCT[]].
// Empty string is returned for columns without type.
func (c Column) DiagramType() string {
	if c.Type == "" {
		return ""
	}

	const structKeyword = "STRUCT<"

	var out strings.Builder
	out.Grow(len(c.Type))
	for i := 0; i < len(c.Type); i++ {
		if hasPrefixFold(c.Type[i:], structKeyword) {
			out.WriteString(c.Type[i : i+len(structKeyword)-1])
			out.WriteString("[]")
			i = skipAngleBlock(c.Type, i+len(structKeyword)-1)
			continue
		}

		switch ch := c.Type[i]; ch {
		case '<':
			out.WriteByte('[')
		case '>':
			out.WriteByte(']')
		default:
			out.WriteByte(ch)
		}
	}

	return out.String()
}

// Table is one dbt node prepared for diagram rendering.
type Table struct {
	// ModelName is the unique node name, used as relation join key.
	ModelName string
	// RenderedName is the node alias shown as entity name.
	RenderedName   string
	TargetDatabase string
	TargetSchema   string
	// Columns are sorted by name.
	Columns []Column
}

// BuildTable joins a manifest node with its optional catalog node.
func BuildTable(node ManifestNode, catalogNode *CatalogNode) (*Table, error) {
	var catalogColumns map[string]CatalogColumn
	if catalogNode != nil {
		catalogColumns = catalogNode.Columns
	}

	ids := make(map[string]struct{}, len(node.Columns)+len(catalogColumns))
	for id := range node.Columns {
		ids[id] = struct{}{}
	}
	for id := range catalogColumns {
		ids[id] = struct{}{}
	}

	sortedIDs := make([]string, 0, len(ids))
	for id := range ids {
		sortedIDs = append(sortedIDs, id)
	}
	sort.Strings(sortedIDs)

	columns := make([]Column, 0, len(sortedIDs))
	for _, id := range sortedIDs {
		var manifestColumn *ManifestColumn
		if col, ok := node.Columns[id]; ok {
			manifestColumn = &col
		}

		var catalogColumn *CatalogColumn
		if col, ok := catalogColumns[id]; ok {
			catalogColumn = &col
		}

		column, err := NewColumn(manifestColumn, catalogColumn)
		if err != nil {
			return nil, fmt.Errorf("node %s column %s: %w", node.ID, id, err)
		}

		columns = append(columns, column)
	}

	sort.SliceStable(columns, func(i, j int) bool {
		return columns[i].Name < columns[j].Name
	})

	return &Table{
		ModelName:      node.Name,
		RenderedName:   node.Alias,
		TargetDatabase: node.Database,
		TargetSchema:   node.Schema,
		Columns:        columns,
	}, nil
}

// UndocumentedColumns returns sorted ids of catalog columns missing from the manifest node.
func UndocumentedColumns(node ManifestNode, catalogNode *CatalogNode) []string {
	if catalogNode == nil {
		return nil
	}

	var out []string
	for id := range catalogNode.Columns {
		if _, ok := node.Columns[id]; !ok {
			out = append(out, id)
		}
	}

	sort.Strings(out)
	return out
}

// Relation is a directed edge between two tables inside one named diagram.
type Relation struct {
	Diagram           string
	Source            *Table
	Target            *Table
	SourceCardinality Cardinality
	TargetCardinality Cardinality
	// Label is empty when the connection declares none.
	Label string
}

// BuildRelations resolves connections declared on node against built tables.
// Relations keep declaration order.
func BuildRelations(node ManifestNode, tables map[string]*Table) ([]Relation, error) {
	source, ok := tables[node.Name]
	if !ok {
		return nil, &ResolutionError{Source: node.Name}
	}

	relations := make([]Relation, 0, len(node.ERD.Connections))
	for _, conn := range node.ERD.Connections {
		target, ok := tables[conn.Target]
		if !ok {
			return nil, &ResolutionError{Source: node.Name, Target: conn.Target}
		}

		diagram := conn.Diagram
		if diagram == "" {
			diagram = DefaultDiagramName
		}

		relation := Relation{
			Diagram:           diagram,
			Source:            source,
			Target:            target,
			SourceCardinality: conn.SourceCardinality,
			TargetCardinality: conn.TargetCardinality,
		}
		if conn.Label != nil {
			relation.Label = *conn.Label
		}

		relations = append(relations, relation)
	}

	return relations, nil
}

// hasPrefixFold reports whether value starts with prefix ignoring ASCII case.
func hasPrefixFold(value, prefix string) bool {
	return len(value) >= len(prefix) && strings.EqualFold(value[:len(prefix)], prefix)
}

// skipAngleBlock returns index of the '>' closing the '<' at open, or the last index when unbalanced.
func skipAngleBlock(value string, open int) int {
	depth := 0
	for i := open; i < len(value); i++ {
		switch value[i] {
		case '<':
			depth++
		case '>':
			depth--
			if depth == 0 {
				return i
			}
		}
	}

	return len(value) - 1
}

// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/dbtdiagrams

package dbtdiagrams

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Options configures diagram assembly.
type Options struct {
	// IncludeColumns renders column blocks inside each entity.
	IncludeColumns bool
	// TemplateText overrides the built-in diagram template.
	TemplateText string
	// Now returns generation timestamp; time.Now is used when nil.
	Now func() time.Time
}

// diagramView is the root view model passed to the diagram template.
type diagramView struct {
	Name           string
	GeneratedAt    string
	IncludeColumns bool
	Relations      []relationView
	Tables         []tableView
}

// relationView is one rendered edge line.
type relationView struct {
	Source      string
	SourceToken string
	TargetToken string
	Target      string
	Label       string
}

// tableView is one rendered entity block.
type tableView struct {
	Name    string
	Columns []columnView
}

// columnView is one rendered attribute line.
type columnView struct {
	Type string
	Name string
}

// DiagramGroup is a named partition of relations rendered as one diagram.
type DiagramGroup struct {
	Name      string
	Relations []Relation
}

// RenderFiles reads artifacts from disk and assembles diagrams. catalogPath may be empty.
func RenderFiles(manifestPath, catalogPath string, opt Options) (map[string]string, error) {
	manifest, err := ReadManifestFile(manifestPath)
	if err != nil {
		return nil, err
	}

	var catalog *Catalog
	if strings.TrimSpace(catalogPath) != "" {
		catalog, err = ReadCatalogFile(catalogPath)
		if err != nil {
			return nil, err
		}
	}

	return Assemble(manifest, catalog, opt)
}

// RenderTargetDir discovers artifacts inside a dbt target directory and assembles diagrams.
func RenderTargetDir(dir string, opt Options) (map[string]string, error) {
	manifest, catalog, err := LoadTargetDir(dir)
	if err != nil {
		return nil, err
	}

	return Assemble(manifest, catalog, opt)
}

// Assemble builds tables and relations from artifacts and renders one diagram per diagram name.
// Catalog is optional; when supplied it must come from the same invocation as manifest.
func Assemble(manifest *Manifest, catalog *Catalog, opt Options) (map[string]string, error) {
	if manifest == nil {
		return nil, &ConfigurationError{Message: "manifest is required"}
	}

	if err := ensureSameInvocation(manifest, catalog); err != nil {
		return nil, err
	}

	tables, err := BuildTables(manifest, catalog)
	if err != nil {
		return nil, err
	}

	relations, err := BuildAllRelations(manifest, tables)
	if err != nil {
		return nil, err
	}

	tmpl, err := resolveTemplate(opt)
	if err != nil {
		return nil, err
	}

	now := time.Now
	if opt.Now != nil {
		now = opt.Now
	}
	generatedAt := now().Format(time.RFC3339)

	groups := GroupRelations(relations)
	out := make(map[string]string, len(groups))
	for _, group := range groups {
		view := buildDiagramView(group, generatedAt, opt.IncludeColumns)

		var text strings.Builder
		if err := tmpl.Execute(&text, view); err != nil {
			return nil, fmt.Errorf("%w %q: %w", ErrExecuteDiagramTemplate, group.Name, err)
		}

		out[group.Name] = ensureTrailingNewline(text.String())
		Log.WithFields(logrus.Fields{
			"diagram":   group.Name,
			"relations": len(group.Relations),
			"tables":    len(view.Tables),
		}).Debug("assembled diagram")
	}

	return out, nil
}

// BuildTables builds one table per manifest node keyed by model name.
func BuildTables(manifest *Manifest, catalog *Catalog) (map[string]*Table, error) {
	tables := make(map[string]*Table, len(manifest.Nodes))
	for _, node := range manifest.Nodes {
		var catalogNode *CatalogNode
		if catalog != nil {
			if found, ok := catalog.Nodes[node.ID]; ok {
				catalogNode = &found
			}
		}

		if undocumented := UndocumentedColumns(node, catalogNode); len(undocumented) > 0 {
			Log.WithFields(logrus.Fields{
				"node":    node.ID,
				"columns": strings.Join(undocumented, ","),
			}).Warn("catalog columns are not documented in manifest")
		}

		table, err := BuildTable(node, catalogNode)
		if err != nil {
			return nil, err
		}

		if previous, ok := tables[table.ModelName]; ok {
			Log.WithFields(logrus.Fields{
				"node":  node.ID,
				"model": previous.ModelName,
			}).Warn("duplicate model name, later node replaces earlier one")
		}

		tables[table.ModelName] = table
	}

	return tables, nil
}

// BuildAllRelations concatenates relations of every manifest node in manifest order.
func BuildAllRelations(manifest *Manifest, tables map[string]*Table) ([]Relation, error) {
	var relations []Relation
	for _, node := range manifest.Nodes {
		nodeRelations, err := BuildRelations(node, tables)
		if err != nil {
			return nil, err
		}

		relations = append(relations, nodeRelations...)
	}

	return relations, nil
}

// GroupRelations partitions relations by diagram name. Groups keep order of first
// appearance and every relation lands in exactly one group.
func GroupRelations(relations []Relation) []DiagramGroup {
	index := make(map[string]int)
	var groups []DiagramGroup
	for _, relation := range relations {
		i, ok := index[relation.Diagram]
		if !ok {
			i = len(groups)
			index[relation.Diagram] = i
			groups = append(groups, DiagramGroup{Name: relation.Diagram})
		}

		groups[i].Relations = append(groups[i].Relations, relation)
	}

	return groups
}

// MentionedTables returns tables referenced by relations in order of first mention.
func MentionedTables(relations []Relation) []*Table {
	seen := make(map[string]struct{})
	var out []*Table
	for _, relation := range relations {
		for _, table := range [...]*Table{relation.Source, relation.Target} {
			if _, ok := seen[table.ModelName]; ok {
				continue
			}

			seen[table.ModelName] = struct{}{}
			out = append(out, table)
		}
	}

	return out
}

// DiagramNames returns sorted diagram names of an assembled result.
func DiagramNames(diagrams map[string]string) []string {
	names := make([]string, 0, len(diagrams))
	for name := range diagrams {
		names = append(names, name)
	}

	sort.Strings(names)
	return names
}

// buildDiagramView prepares template data for one diagram group.
func buildDiagramView(group DiagramGroup, generatedAt string, includeColumns bool) diagramView {
	view := diagramView{
		Name:           group.Name,
		GeneratedAt:    generatedAt,
		IncludeColumns: includeColumns,
		Relations:      make([]relationView, 0, len(group.Relations)),
	}

	for _, relation := range group.Relations {
		view.Relations = append(view.Relations, relationView{
			Source:      relation.Source.ModelName,
			SourceToken: relation.SourceCardinality.SourceToken(),
			TargetToken: relation.TargetCardinality.TargetToken(),
			Target:      relation.Target.ModelName,
			Label:       escapeLabel(relation.Label),
		})
	}

	for _, table := range MentionedTables(group.Relations) {
		tv := tableView{Name: table.RenderedName}
		if includeColumns {
			tv.Columns = make([]columnView, 0, len(table.Columns))
			for _, column := range table.Columns {
				columnType := column.DiagramType()
				if columnType == "" {
					columnType = unknownColumnType
				}

				tv.Columns = append(tv.Columns, columnView{Type: columnType, Name: column.DiagramName()})
			}
		}

		view.Tables = append(view.Tables, tv)
	}

	return view
}

// escapeLabel keeps relation labels inside their double quotes.
func escapeLabel(label string) string {
	return strings.ReplaceAll(sanitizeText(label), `"`, "'")
}

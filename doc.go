// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/dbtdiagrams

/*
Package dbtdiagrams renders mermaid entity relationship diagrams from dbt artifacts.

Relations are declared in model meta of the dbt project:

	models:
	  - name: orders
	    meta:
	      erd:
	        connections:
	          - target: customers
	            source_cardinality: one_or_more
	            target_cardinality: one
	            label: placed by
	            diagram: billing

The manifest supplies tables and relations; an optional catalog from the same dbt
invocation supplies realized column types. Every diagram name gets its own diagram
holding only its relations and the tables they reference.

Render from a dbt target directory:

	diagrams, err := dbtdiagrams.RenderTargetDir("target", dbtdiagrams.Options{
		IncludeColumns: true,
	})
	if err != nil {
		return err
	}

	for _, name := range dbtdiagrams.DiagramNames(diagrams) {
		fmt.Println(diagrams[name])
	}

Render from parsed artifacts:

	manifest, err := dbtdiagrams.ReadManifestFile("target/manifest.json")
	if err != nil {
		return err
	}

	diagrams, err := dbtdiagrams.Assemble(manifest, nil, dbtdiagrams.Options{})
	if err != nil {
		return err
	}

Write files or images:

	_, err = dbtdiagrams.WriteDiagrams(ctx, diagrams, "docs", dbtdiagrams.FormatSVG,
		dbtdiagrams.CommandRenderer{}, 4)

Embed diagrams into dbt docs. Any ```mermaid[erd="billing"]``` line in model
descriptions or doc blocks is replaced with the rendered diagram:

	patched, err := dbtdiagrams.PatchManifest(manifestBytes, diagrams)
	if err != nil {
		return err
	}

Errors belong to one of the kinds reported by ErrorKind and match the sentinels
ErrParse, ErrValidation, ErrConsistency, ErrResolution and ErrConfiguration with errors.Is.
*/
package dbtdiagrams

// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/dbtdiagrams

package dbtdiagrams

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// IndexFileName is the dbt docs site entry page.
	IndexFileName = "index.html"
	// StaticIndexFileName is the self-contained docs page written for --static.
	StaticIndexFileName = "static_index.html"

	manifestInlinePlaceholder = `"MANIFEST.JSON INLINE DATA"`
	catalogInlinePlaceholder  = `"CATALOG.JSON INLINE DATA"`

	// mermaidSnippetMarker makes library injection idempotent.
	mermaidSnippetMarker = "<!-- dbtdiagrams:mermaid -->"
)

// mermaidSnippet renders mermaid code blocks of dbt docs pages, including after client-side navigation.
const mermaidSnippet = mermaidSnippetMarker + `
<script type="module">
  import mermaid from "https://cdn.jsdelivr.net/npm/mermaid@10/dist/mermaid.esm.min.mjs";
  mermaid.initialize({ startOnLoad: false });
  const selector = "pre code.lang-mermaid:not([data-processed]), pre code.language-mermaid:not([data-processed])";
  const renderPending = () => {
    const nodes = document.querySelectorAll(selector);
    if (nodes.length > 0) {
      mermaid.run({ nodes: nodes });
    }
  };
  new MutationObserver(renderPending).observe(document.body, { childList: true, subtree: true });
  renderPending();
</script>
`

// InjectMermaidLibrary inserts the mermaid loader before the closing body tag of a docs page.
// Pages already carrying the loader are returned unchanged.
func InjectMermaidLibrary(indexHTML string) string {
	if strings.Contains(indexHTML, mermaidSnippetMarker) {
		return indexHTML
	}

	pos := strings.LastIndex(indexHTML, "</body>")
	if pos < 0 {
		return indexHTML + mermaidSnippet
	}

	return indexHTML[:pos] + mermaidSnippet + indexHTML[pos:]
}

// BuildStaticIndex inlines manifest and catalog JSON into the docs page placeholders.
func BuildStaticIndex(indexHTML string, manifestJSON, catalogJSON []byte) string {
	out := strings.Replace(indexHTML, manifestInlinePlaceholder, strings.TrimSpace(string(manifestJSON)), 1)
	return strings.Replace(out, catalogInlinePlaceholder, strings.TrimSpace(string(catalogJSON)), 1)
}

// PatchDocsSite rewrites manifest.json documentation with rendered diagrams and adds the
// mermaid loader to index.html inside a generated dbt docs target directory.
func PatchDocsSite(targetDir string, diagrams map[string]string) error {
	manifestPath := filepath.Join(targetDir, ManifestFileName)
	manifestData, err := os.ReadFile(manifestPath)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrReadArtifactFile, err)
	}

	patched, err := PatchManifest(manifestData, diagrams)
	if err != nil {
		return err
	}

	if err := replaceFile(manifestPath, patched); err != nil {
		return err
	}

	indexPath := filepath.Join(targetDir, IndexFileName)
	indexHTML, err := os.ReadFile(indexPath)
	if err != nil {
		return fmt.Errorf("%w: read %s: %w", ErrPatchDocs, IndexFileName, err)
	}

	return replaceFile(indexPath, []byte(InjectMermaidLibrary(string(indexHTML))))
}

// WriteStaticIndex writes static_index.html from index.html with manifest and catalog inlined.
func WriteStaticIndex(targetDir string) error {
	manifestData, err := os.ReadFile(filepath.Join(targetDir, ManifestFileName))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrReadArtifactFile, err)
	}

	if _, err := ReadArtifactMetadata(manifestData, ArtifactManifest); err != nil {
		return err
	}

	catalogData, err := os.ReadFile(filepath.Join(targetDir, CatalogFileName))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrReadArtifactFile, err)
	}

	if _, err := ReadArtifactMetadata(catalogData, ArtifactCatalog); err != nil {
		return err
	}

	indexHTML, err := os.ReadFile(filepath.Join(targetDir, IndexFileName))
	if err != nil {
		return fmt.Errorf("%w: read %s: %w", ErrPatchDocs, IndexFileName, err)
	}

	static := BuildStaticIndex(string(indexHTML), manifestData, catalogData)
	return replaceFile(filepath.Join(targetDir, StaticIndexFileName), []byte(static))
}

// replaceFile writes data next to path and renames it over path.
func replaceFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWriteOutput, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("%w: %w", ErrWriteOutput, err)
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("%w: %w", ErrWriteOutput, err)
	}

	// docs sites are served by web servers running as other users
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("%w: %w", ErrWriteOutput, err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("%w: %w", ErrWriteOutput, err)
	}

	return nil
}

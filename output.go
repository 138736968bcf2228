// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/dbtdiagrams

package dbtdiagrams

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	// FormatMermaid writes raw mermaid definitions to <name>.mmd.
	FormatMermaid Format = "mmd"
	// FormatMarkdown writes mermaid fenced blocks to <name>.md.
	FormatMarkdown Format = "md"
	// FormatSVG writes images rendered by a Renderer to <name>.svg.
	FormatSVG Format = "svg"
)

// defaultRendererCommand is the mermaid-cli executable.
const defaultRendererCommand = "mmdc"

// Format selects the diagram output file type.
type Format string

// ParseFormat normalizes and validates an output format name.
func ParseFormat(value string) (Format, error) {
	switch format := Format(strings.ToLower(strings.TrimSpace(value))); format {
	case FormatMermaid, FormatMarkdown, FormatSVG:
		return format, nil
	case "":
		return FormatMermaid, nil
	default:
		return "", fmt.Errorf("%w %q", ErrUnknownFormat, value)
	}
}

// Extension returns file extension with leading dot.
func (f Format) Extension() string {
	return "." + string(f)
}

// Renderer turns diagram text into an image. Implementations must be safe for concurrent use.
type Renderer interface {
	Render(ctx context.Context, name, diagram string) ([]byte, error)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(ctx context.Context, name, diagram string) ([]byte, error)

// Render calls f.
func (f RendererFunc) Render(ctx context.Context, name, diagram string) ([]byte, error) {
	return f(ctx, name, diagram)
}

// CommandRenderer renders SVG through the mermaid-cli executable. A failed first
// attempt is retried once in a fresh working directory.
type CommandRenderer struct {
	// Command is the mmdc executable path; "mmdc" when empty.
	Command string
	// Args are passed to mmdc after input and output flags.
	Args []string
}

// Render runs mmdc for one diagram and returns the produced SVG.
func (r CommandRenderer) Render(ctx context.Context, name, diagram string) ([]byte, error) {
	svg, err := r.renderOnce(ctx, diagram)
	if err == nil {
		return svg, nil
	}

	if ctx.Err() != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrRenderDiagram, name, err)
	}

	Log.WithFields(logrus.Fields{"diagram": name}).WithError(err).Warn("renderer failed, retrying once")
	svg, err = r.renderOnce(ctx, diagram)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrRenderDiagram, name, err)
	}

	return svg, nil
}

func (r CommandRenderer) renderOnce(ctx context.Context, diagram string) ([]byte, error) {
	workDir, err := os.MkdirTemp("", "dbtdiagrams-render-")
	if err != nil {
		return nil, fmt.Errorf("create render dir: %w", err)
	}
	defer func() {
		_ = os.RemoveAll(workDir)
	}()

	inputPath := filepath.Join(workDir, "diagram.mmd")
	outputPath := filepath.Join(workDir, "diagram.svg")
	if err := os.WriteFile(inputPath, []byte(diagram), 0o600); err != nil {
		return nil, fmt.Errorf("write render input: %w", err)
	}

	command := strings.TrimSpace(r.Command)
	if command == "" {
		command = defaultRendererCommand
	}

	args := append([]string{"-i", inputPath, "-o", outputPath}, r.Args...)
	cmd := exec.CommandContext(ctx, command, args...)
	cmd.Dir = workDir

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output
	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(output.String())
		if detail == "" {
			detail = err.Error()
		}

		return nil, fmt.Errorf("%s: %s", command, detail)
	}

	svg, err := os.ReadFile(outputPath)
	if err != nil {
		return nil, fmt.Errorf("read render output: %w", err)
	}

	return svg, nil
}

// RenderAll renders every diagram with renderer using at most workers concurrent renders.
// Diagrams are independent, so completion order is not defined.
func RenderAll(ctx context.Context, renderer Renderer, diagrams map[string]string, workers int) (map[string][]byte, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	var mu sync.Mutex
	out := make(map[string][]byte, len(diagrams))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for _, name := range DiagramNames(diagrams) {
		diagram := diagrams[name]
		eg.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			image, err := renderer.Render(ctx, name, diagram)
			if err != nil {
				return err
			}

			mu.Lock()
			out[name] = image
			mu.Unlock()
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	return out, nil
}

// WriteDiagrams writes every diagram to dir as <name><ext>. Renderer is only used by FormatSVG.
func WriteDiagrams(ctx context.Context, diagrams map[string]string, dir string, format Format, renderer Renderer, workers int) ([]string, error) {
	contents := make(map[string][]byte, len(diagrams))
	switch format {
	case FormatMermaid:
		for name, diagram := range diagrams {
			contents[name] = []byte(diagram)
		}
	case FormatMarkdown:
		for name, diagram := range diagrams {
			contents[name] = []byte(AsMarkdown(diagram))
		}
	case FormatSVG:
		if renderer == nil {
			return nil, &ConfigurationError{Message: "svg output requires a renderer"}
		}

		rendered, err := RenderAll(ctx, renderer, diagrams, workers)
		if err != nil {
			return nil, err
		}

		contents = rendered
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownFormat, format)
	}

	written := make([]string, 0, len(contents))
	for _, name := range DiagramNames(diagrams) {
		path := filepath.Join(dir, DiagramFileName(name)+format.Extension())
		if err := os.WriteFile(path, contents[name], 0o600); err != nil {
			return written, fmt.Errorf("%w %q: %w", ErrWriteOutput, path, err)
		}

		written = append(written, path)
		Log.WithField("path", path).Debug("wrote diagram")
	}

	return written, nil
}

// DiagramFileName maps diagram name to a file name without path separators.
func DiagramFileName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." {
		return "_"
	}

	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', 0:
			return '_'
		default:
			return r
		}
	}, name)
}

// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/dbtdiagrams

package dbtdiagrams

import "strings"

// mermaidFence opens a mermaid fenced code block.
const mermaidFence = "```mermaid"

// AsMarkdown wraps diagram text into a mermaid fenced code block.
func AsMarkdown(diagram string) string {
	return mermaidFence + "\n" + strings.TrimRight(normalizeLineEndings(diagram), "\n") + "\n```\n"
}

// sanitizeText trims and squashes repeated whitespace in plain text fields.
func sanitizeText(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	return strings.Join(strings.Fields(text), " ")
}

// normalizeLineEndings converts CRLF/CR to LF.
func normalizeLineEndings(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return text
}

// ensureTrailingNewline guarantees exactly one trailing newline in output.
func ensureTrailingNewline(value string) string {
	value = strings.TrimRight(value, "\n")
	return value + "\n"
}

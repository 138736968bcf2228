// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/dbtdiagrams

package dbtdiagrams

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrParse is returned when an artifact is not valid JSON.
	ErrParse = errors.New("parse artifact")
	// ErrValidation is returned when an artifact has the wrong schema family, version or shape.
	ErrValidation = errors.New("validate artifact")
	// ErrConsistency is returned when manifest and catalog come from different dbt invocations.
	ErrConsistency = errors.New("artifact consistency")
	// ErrResolution is returned when a relation references a table that was not built.
	ErrResolution = errors.New("resolve relation")
	// ErrConfiguration is returned when the artifact selection is missing or conflicting.
	ErrConfiguration = errors.New("configuration")
	// ErrEmptyColumn is returned when neither manifest nor catalog describe a column.
	ErrEmptyColumn = errors.New("both manifest and catalog column definitions are empty")
	// ErrReadArtifactFile is returned when artifact file loading fails.
	ErrReadArtifactFile = errors.New("read artifact file")
	// ErrExecuteDiagramTemplate is returned when diagram template execution fails.
	ErrExecuteDiagramTemplate = errors.New("execute diagram template")
	// ErrParseDiagramTemplate is returned when diagram template parsing fails.
	ErrParseDiagramTemplate = errors.New("parse diagram template")
	// ErrUnknownFormat is returned when requested output format is not supported.
	ErrUnknownFormat = errors.New("unknown output format")
	// ErrRenderDiagram is returned when the external renderer fails for a diagram.
	ErrRenderDiagram = errors.New("render diagram")
	// ErrWriteOutput is returned when writing rendered output fails.
	ErrWriteOutput = errors.New("write output")
	// ErrPatchDocs is returned when docs site files cannot be patched.
	ErrPatchDocs = errors.New("patch docs")
)

// ParseError reports malformed JSON input.
type ParseError struct {
	Kind  ArtifactKind
	Cause error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrParse, e.Kind, e.Cause)
}

// Unwrap returns the underlying decoder error.
func (e *ParseError) Unwrap() error { return e.Cause }

// Is reports whether target is ErrParse.
func (e *ParseError) Is(target error) bool { return target == ErrParse }

// ValidationError reports an artifact with an unexpected schema family, version or field shape.
type ValidationError struct {
	Kind ArtifactKind
	// Field is the offending document location, when known.
	Field string
	// Got is the observed value (schema version string, version number or field value).
	Got string
	// MinVersion and MaxVersion are set for version range failures.
	MinVersion int
	MaxVersion int
	Message    string
	Cause      error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString(ErrValidation.Error())
	b.WriteString(": ")
	b.WriteString(string(e.Kind))
	if e.Field != "" {
		b.WriteString(" field ")
		b.WriteString(e.Field)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.MaxVersion > 0 {
		fmt.Fprintf(&b, " (got %s, expected a version between %d and %d)", e.Got, e.MinVersion, e.MaxVersion)
	} else if e.Got != "" {
		fmt.Fprintf(&b, " (got %q)", e.Got)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}

	return b.String()
}

// Unwrap returns the underlying error.
func (e *ValidationError) Unwrap() error { return e.Cause }

// Is reports whether target is ErrValidation.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// ConsistencyError reports a manifest and catalog produced by different dbt invocations.
type ConsistencyError struct {
	ManifestInvocationID string
	CatalogInvocationID  string
}

// Error implements the error interface.
func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("%s: manifest invocation id %q does not match catalog invocation id %q",
		ErrConsistency, e.ManifestInvocationID, e.CatalogInvocationID)
}

// Is reports whether target is ErrConsistency.
func (e *ConsistencyError) Is(target error) bool { return target == ErrConsistency }

// ResolutionError reports a relation endpoint missing from the built table set.
type ResolutionError struct {
	// Source is the model declaring the relation.
	Source string
	// Target is the unresolved model name; empty when the source itself failed to resolve.
	Target string
}

// Error implements the error interface.
func (e *ResolutionError) Error() string {
	if e.Target == "" {
		return fmt.Sprintf("%s: source table %s has not been parsed correctly", ErrResolution, e.Source)
	}

	return fmt.Sprintf("%s: target %s in relation originating from table %s does not exist or has not been loaded",
		ErrResolution, e.Target, e.Source)
}

// Is reports whether target is ErrResolution.
func (e *ResolutionError) Is(target error) bool { return target == ErrResolution }

// ConfigurationError reports a missing or conflicting artifact selection.
type ConfigurationError struct {
	Message string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrConfiguration, e.Message)
}

// Is reports whether target is ErrConfiguration.
func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

// ErrorKind returns a short stable name for the error taxonomy member err belongs to.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrParse):
		return "parse"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrConsistency):
		return "consistency"
	case errors.Is(err, ErrResolution):
		return "resolution"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	default:
		return "internal"
	}
}

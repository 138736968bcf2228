// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/dbtdiagrams

package dbtdiagrams

// CheckSameInvocation reports whether manifest and catalog were produced by the same dbt invocation.
func CheckSameInvocation(manifest *Manifest, catalog *Catalog) bool {
	if manifest == nil || catalog == nil {
		return false
	}

	return manifest.Metadata.InvocationID == catalog.Metadata.InvocationID
}

// ensureSameInvocation returns ConsistencyError when a supplied catalog belongs to another invocation.
// A nil catalog is always consistent.
func ensureSameInvocation(manifest *Manifest, catalog *Catalog) error {
	if catalog == nil || CheckSameInvocation(manifest, catalog) {
		return nil
	}

	return &ConsistencyError{
		ManifestInvocationID: manifest.Metadata.InvocationID,
		CatalogInvocationID:  catalog.Metadata.InvocationID,
	}
}

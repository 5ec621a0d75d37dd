// Package shared holds code used across packages that belongs to no single layer.
//
// testutil provides the buffered slog handler used for log assertions and a
// small synthetic Olist dataset written into t.TempDir() by WriteOlistFixture.
package shared

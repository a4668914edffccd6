// Package shared holds code used across packages that belongs to no single
// layer. Today that is only the testutil subpackage: a buffered slog handler
// for asserting on log output and a builder for in-memory sales workbooks.
package shared

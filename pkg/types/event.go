// Package types provides core data types for the spanql trace query engine.
package types

// Event is a single recorded span from a performance trace. Events are
// immutable once loaded into a store.
type Event struct {
	// ID uniquely identifies the span within its trace
	ID int64 `json:"id"`

	// Name is the span name (e.g., "Air-First")
	Name string `json:"name"`

	// TopLevelName is the benchmark suite/category the span belongs to.
	// Empty for spans that are not part of a benchmark run.
	TopLevelName string `json:"top_level_name"`

	// Iteration is the zero-based benchmark iteration index
	Iteration int64 `json:"iteration"`

	// Subtest is the measurement label within the benchmark
	// (e.g., "First", "Worst", "Average")
	Subtest string `json:"subtest"`

	// Dur is the span duration in nanoseconds
	Dur int64 `json:"dur"`
}

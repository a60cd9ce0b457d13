// Package engine provides abstractions for the analytical query engine.
package engine

import "fmt"

// Result represents the rows returned by a statement.
type Result struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// Count returns the number of rows.
func (r *Result) Count() int {
	if r == nil {
		return 0
	}
	return len(r.Rows)
}

// String returns a compact representation suitable for logging.
func (r *Result) String() string {
	if r == nil {
		return "[]"
	}
	return fmt.Sprintf("%v", r.Rows)
}

// View describes a view registered in the engine catalog.
type View struct {
	Schema string `json:"schema"`
	Name   string `json:"name"`
}

// Secret describes a secret registered in the engine. Only the name and
// type are ever read; secret values stay inside the engine.
type Secret struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

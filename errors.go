package sitegen

import (
	"fmt"
	"strings"
)

// PathError records one failure attributed to a single source or
// output path. Pipeline stages never report a bare error for per-item
// work; they always attach the path so a bad file is identifiable.
type PathError struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e *PathError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *PathError) Unwrap() error {
	return e.Err
}

// AggregateError enumerates every per-item failure from one pipeline
// stage. Sibling items are always attempted before the aggregate is
// reported, so a single bad file never hides the others. Structural
// failures (a missing base directory, a dead watcher) are returned as
// ordinary wrapped errors instead; callers distinguish the two cases
// with errors.As.
type AggregateError struct {
	// Op names the stage that produced the failures: "parse",
	// "render", or "mirror".
	Op string
	// Errors holds one entry per failing item, ordered by the item's
	// original input position, not by completion order.
	Errors []*PathError
}

// Error lists every failure, one per line.
func (e *AggregateError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d error(s)", e.Op, len(e.Errors))
	for _, pe := range e.Errors {
		b.WriteString("\n\t")
		b.WriteString(pe.Error())
	}
	return b.String()
}

// Unwrap exposes the individual failures to errors.Is and errors.As.
func (e *AggregateError) Unwrap() []error {
	errs := make([]error, len(e.Errors))
	for i, pe := range e.Errors {
		errs[i] = pe
	}
	return errs
}

// aggregate folds a slice of per-item failures into an error value:
// nil when empty, a single *AggregateError otherwise.
func aggregate(op string, errs []*PathError) error {
	if len(errs) == 0 {
		return nil
	}
	return &AggregateError{Op: op, Errors: errs}
}

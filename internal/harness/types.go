package harness

import (
	"fmt"
	"strings"
)

// TraceEvent records one executed step.
type TraceEvent struct {
	// Seq numbers events from 1 in the order they finished. A write is
	// recorded after the steps it contains.
	Seq int

	// Op is the operation name: create, set, read, delete, objects, length,
	// at, push, write or close.
	Op string

	// Target is the step's subject, e.g. "Person" or "alice.dogs".
	Target string

	// Outcome is the formatted result, or "error: <kind>".
	Outcome string
}

func (e TraceEvent) String() string {
	if e.Target == "" {
		return fmt.Sprintf("%d %s -> %s", e.Seq, e.Op, e.Outcome)
	}
	return fmt.Sprintf("%d %s %s -> %s", e.Seq, e.Op, e.Target, e.Outcome)
}

// Result is the outcome of running a scenario.
type Result struct {
	// Pass is true when every step and assertion matched.
	Pass bool

	// Trace lists the executed steps.
	Trace []TraceEvent

	// Errors describes each mismatch.
	Errors []string
}

// TraceText renders the trace one event per line.
func (r *Result) TraceText() string {
	var b strings.Builder
	for _, e := range r.Trace {
		b.WriteString(e.String())
		b.WriteByte('\n')
	}
	return b.String()
}

func (r *Result) failf(format string, args ...any) {
	r.Pass = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// AssertionError describes a failed assertion.
type AssertionError struct {
	Type     string
	Expected any
	Actual   any
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("assertion %s failed: expected %v, got %v", e.Type, e.Expected, e.Actual)
}

// Package gate defines the three-valued result of a fixture or capability
// check: proceed, skip with a stated reason, or fail with an error. Skips
// signal an environment limitation (missing IPv6, disabled TLS version),
// which callers must treat differently from a defect.
package gate

import (
	"fmt"
	"testing"
)

// Decision is the outcome category of a setup or capability check.
type Decision int

const (
	// Proceed means the requirement is met and the caller may continue.
	Proceed Decision = iota

	// Skipped means the environment cannot satisfy the requirement.
	// This is a control signal, not an error.
	Skipped

	// Failed means setup hit a genuine error.
	Failed
)

// String returns a human-readable name for the decision.
func (d Decision) String() string {
	switch d {
	case Proceed:
		return "proceed"
	case Skipped:
		return "skip"
	case Failed:
		return "fail"
	default:
		return "unknown"
	}
}

// Outcome carries a Decision plus its supporting detail: a reason string
// for skips, an error for failures.
type Outcome struct {
	Decision Decision
	Reason   string
	Err      error
}

// OK returns the proceed outcome.
func OK() Outcome {
	return Outcome{Decision: Proceed}
}

// Skip returns a skip outcome with the given reason.
func Skip(reason string) Outcome {
	return Outcome{Decision: Skipped, Reason: reason}
}

// Fail returns a failure outcome wrapping err.
func Fail(err error) Outcome {
	return Outcome{Decision: Failed, Err: err}
}

// Failf returns a failure outcome with a formatted, wrapped error.
func Failf(format string, args ...any) Outcome {
	return Outcome{Decision: Failed, Err: fmt.Errorf(format, args...)}
}

// Apply translates the outcome into test-runner control flow: Skipped
// calls t.Skip with the reason, Failed calls t.Fatal with the error, and
// Proceed does nothing.
func (o Outcome) Apply(t testing.TB) {
	t.Helper()
	switch o.Decision {
	case Skipped:
		t.Skipf("skip: %s", o.Reason)
	case Failed:
		t.Fatalf("setup failed: %v", o.Err)
	}
}

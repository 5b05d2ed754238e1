// Package commandtest provides a test harness for command extensions.
package commandtest

import (
	"context"
	"testing"

	"github.com/cmdbridge/cmdbridge/command"
)

// Call is one command line received by a Recorder.
type Call struct {
	Line    string
	Capture bool
}

// Recorder is a command.Executor that records every command line and
// answers captures from Outputs.
type Recorder struct {
	// Outputs maps a command line to its captured output.
	Outputs map[string]string

	// Err, when set, is returned by every execution.
	Err error

	Calls []Call
}

var _ command.Executor = (*Recorder)(nil)

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{Outputs: make(map[string]string)}
}

// Exec implements command.Executor.
func (r *Recorder) Exec(_ context.Context, line string, capture bool) (string, error) {
	r.Calls = append(r.Calls, Call{Line: line, Capture: capture})
	if r.Err != nil {
		return "", r.Err
	}
	if !capture {
		return "", nil
	}
	return r.Outputs[line], nil
}

// Lines returns the recorded command lines, oldest first.
func (r *Recorder) Lines() []string {
	lines := make([]string, len(r.Calls))
	for i, c := range r.Calls {
		lines[i] = c.Line
	}
	return lines
}

// TestCase defines a formatting test for one command.
type TestCase struct {
	Name    string
	Command string
	Args    []any
	Want    string

	// WantErr, when set, must accept the formatting error. A nil WantErr
	// expects success.
	WantErr func(t *testing.T, err error)
}

// RunFormatTests formats every case with the proxies and checks the
// command line or the error.
func RunFormatTests(t *testing.T, ps *command.Proxies, tests []TestCase) {
	t.Helper()

	for _, tc := range tests {
		t.Run(tc.Name, func(t *testing.T) {
			p, err := ps.Get(tc.Command)
			if err != nil {
				t.Fatalf("failed to get proxy %q: %v", tc.Command, err)
			}
			line, err := p.Format(context.Background(), tc.Args...)
			if tc.WantErr != nil {
				if err == nil {
					t.Fatalf("expected an error, got command line %q", line)
				}
				tc.WantErr(t, err)
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if line != tc.Want {
				t.Errorf("command line: expected %q, got %q", tc.Want, line)
			}
		})
	}
}

// AssertLines asserts the recorder received exactly want.
func AssertLines(t *testing.T, r *Recorder, want ...string) {
	t.Helper()
	got := r.Lines()
	if len(got) != len(want) {
		t.Errorf("expected %d command lines %q, got %d %q", len(want), want, len(got), got)
		return
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("command line %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

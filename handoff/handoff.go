// Package handoff abstracts what happens after the supervisor reports its
// HandoffResult. The original jumps directly to the active slot's reset
// vector via GPIOR1-flagged inline assembly; that's replaced here with an
// explicit Invoker collaborator so host processes and tests can observe
// and control it instead of the process actually vanishing into new code.
package handoff

import (
	"fmt"
	"os"

	"github.com/Move38/Blinks-SDK/supervisor"
)

// Invoker is notified of a finished bootloader run and decides what to do
// with it: jump to the active image, exec a new process image, or (in
// tests) simply record the call.
type Invoker interface {
	Invoke(result supervisor.HandoffResult) error
}

// LogInvoker is a minimal host-process Invoker: it reports the result
// through a supervisor.Logger and, on success, exits the process with
// status 0 (standing in for "jump to the active slot"); on failure it
// exits non-zero rather than risk running a partial or corrupt image.
type LogInvoker struct {
	Logger supervisor.Logger
	Exit   func(code int)
}

// NewLogInvoker returns a LogInvoker using os.Exit, unless a test supplies
// its own Exit func to observe the call instead of ending the process.
func NewLogInvoker(logger supervisor.Logger) *LogInvoker {
	return &LogInvoker{Logger: logger, Exit: os.Exit}
}

func (l *LogInvoker) Invoke(result supervisor.HandoffResult) error {
	if result.Success {
		l.Logger.Info("handoff: jumping to active image")
		l.Exit(0)
		return nil
	}

	l.Logger.Error("handoff: refusing to jump", "reason", result.Reason)
	l.Exit(1)
	return fmt.Errorf("handoff: refused: %w", result.Reason)
}

// RecordingInvoker is a test Invoker that never exits; it just remembers
// the last result it was given.
type RecordingInvoker struct {
	Results []supervisor.HandoffResult
}

func (r *RecordingInvoker) Invoke(result supervisor.HandoffResult) error {
	r.Results = append(r.Results, result)
	if !result.Success {
		return result.Reason
	}
	return nil
}

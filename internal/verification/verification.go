// Package verification implements VerificationAgent (spec.md component
// C9): runs the project's build after ExecutionAgent commits changes,
// optionally smoke-checks the running frontend, and triggers a rollback
// through MicroEditToolkit on any failure. Grounded on the teacher's
// internal/tactile/executor.go command-execution-plus-rollback step
// (run a command, inspect exit status, undo on failure) generalized from
// a generic shell step to the specific build+runtime double-check
// spec.md names.
package verification

import (
	"context"
	"strings"

	"github.com/viztrtr/viztrtr-core/internal/logging"
	"github.com/viztrtr/viztrtr-core/internal/types"
)

// BuildAdapter is the external build command runner (spec.md section 6).
type BuildAdapter interface {
	Build(ctx context.Context, projectRoot string) (success bool, stderr string, durationMs int64, err error)
}

// RuntimeChecker optionally reloads the target URL and reports its
// response status and console error count. A nil RuntimeChecker means
// VerificationAgent only checks the build.
type RuntimeChecker interface {
	Check(ctx context.Context, url string) (statusCode int, consoleErrorCount int, err error)
}

// Rollbacker is the subset of toolkit.Toolkit VerificationAgent needs.
type Rollbacker interface {
	RollbackIteration() error
}

const stderrTailLines = 40

// Agent is VerificationAgent.
type Agent struct {
	build                 BuildAdapter
	runtime               RuntimeChecker
	toolkit               Rollbacker
	consoleErrorThreshold int
}

// New returns a VerificationAgent. runtime may be nil to skip the
// runtime smoke check entirely.
func New(build BuildAdapter, runtime RuntimeChecker, toolkit Rollbacker, consoleErrorThreshold int) *Agent {
	return &Agent{build: build, runtime: runtime, toolkit: toolkit, consoleErrorThreshold: consoleErrorThreshold}
}

// Verify runs the build, and if it succeeds and a RuntimeChecker and
// frontendURL are both available, the runtime smoke check. Any failure
// rolls back the iteration's changes via the toolkit before returning.
func (a *Agent) Verify(ctx context.Context, projectRoot, frontendURL string) types.VerificationReport {
	log := logging.Get(logging.CategoryVerification)

	success, stderr, duration, err := a.build.Build(ctx, projectRoot)
	tail := tailLines(stderr, stderrTailLines)
	if err != nil || !success {
		reason := "build failed"
		if err != nil {
			reason = "build adapter error: " + err.Error()
		}
		log.Warn("%s, rolling back", reason)
		a.rollback()
		return types.VerificationReport{Success: false, BuildSuccess: false, Stderr: tail, DurationMs: duration, RolledBack: true, Reason: reason}
	}

	report := types.VerificationReport{Success: true, BuildSuccess: true, Stderr: tail, DurationMs: duration}

	if a.runtime == nil || frontendURL == "" {
		return report
	}

	status, consoleErrors, err := a.runtime.Check(ctx, frontendURL)
	report.HTTPStatus = status
	report.ConsoleErrorCount = consoleErrors
	if err != nil || status < 200 || status >= 300 || consoleErrors > a.consoleErrorThreshold {
		reason := "runtime smoke check failed"
		if err != nil {
			reason = "runtime check error: " + err.Error()
		} else if status < 200 || status >= 300 {
			reason = "non-2xx response"
		} else {
			reason = "console error count over threshold"
		}
		log.Warn("%s, rolling back", reason)
		a.rollback()
		report.Success = false
		report.RolledBack = true
		report.Reason = reason
		return report
	}

	return report
}

func (a *Agent) rollback() {
	if a.toolkit == nil {
		return
	}
	if err := a.toolkit.RollbackIteration(); err != nil {
		logging.Get(logging.CategoryVerification).Error("rollback failed: %v", err)
	}
}

func tailLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) <= n {
		return s
	}
	return strings.Join(lines[len(lines)-n:], "\n")
}

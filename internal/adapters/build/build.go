// Package build implements the BuildAdapter (spec.md section 6): runs
// the project's configured build command and reports its outcome.
// Grounded on the teacher's internal/tactile/executor.go os/exec
// invocation (bounded-environment command execution, captured
// stdout/stderr, timeout-aware).
package build

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"time"

	"github.com/viztrtr/viztrtr-core/internal/config"
)

// Adapter runs config.BuildConfig.Command in projectRoot.
type Adapter struct {
	cfg config.BuildConfig
}

// New returns a BuildAdapter.
func New(cfg config.BuildConfig) *Adapter {
	return &Adapter{cfg: cfg}
}

// Build satisfies verification.BuildAdapter.
func (a *Adapter) Build(ctx context.Context, projectRoot string) (bool, string, int64, error) {
	if len(a.cfg.Command) == 0 {
		return false, "", 0, nil
	}

	timeout := a.cfg.Timeout
	if timeout <= 0 {
		timeout = 300 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, a.cfg.Command[0], a.cfg.Command[1:]...)
	cmd.Dir = projectRoot
	cmd.Env = filteredEnv(a.cfg.AllowedEnvVars)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start).Milliseconds()

	if err != nil {
		if _, ok := err.(*exec.ExitError); ok {
			return false, stderr.String(), duration, nil
		}
		return false, stderr.String(), duration, err
	}
	return true, stderr.String(), duration, nil
}

// filteredEnv passes through only the allow-listed environment
// variables, matching spec.md's bounded-environment build contract.
func filteredEnv(allowed []string) []string {
	if len(allowed) == 0 {
		return os.Environ()
	}
	allow := map[string]bool{}
	for _, k := range allowed {
		allow[k] = true
	}
	var out []string
	for _, kv := range os.Environ() {
		for k := range allow {
			if len(kv) > len(k) && kv[:len(k)+1] == k+"=" {
				out = append(out, kv)
				break
			}
		}
	}
	return out
}

package kubedrill

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// KubectlRunner executes kubectl commands locally with captured output.
// Implements CommandRunner. Only commands whose first word is kubectl are
// accepted; everything else is rejected before reaching the shell.
type KubectlRunner struct {
	timeout time.Duration
}

// KubectlOption configures a KubectlRunner.
type KubectlOption func(*KubectlRunner)

// WithKubectlTimeout bounds a single command (default: 30s).
func WithKubectlTimeout(d time.Duration) KubectlOption {
	return func(r *KubectlRunner) { r.timeout = d }
}

// NewKubectlRunner creates a local kubectl execution runner.
func NewKubectlRunner(opts ...KubectlOption) *KubectlRunner {
	r := &KubectlRunner{timeout: 30 * time.Second}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes a single kubectl command and returns combined stdout.
// Stderr is folded into the error on failure.
func (r *KubectlRunner) Run(ctx context.Context, command string) (string, error) {
	args := strings.Fields(command)
	if len(args) == 0 || args[0] != "kubectl" {
		return "", fmt.Errorf("kubedrill: not a kubectl command: %q", command)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("kubedrill: command failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

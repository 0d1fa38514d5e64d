package gitrepo

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Runner executes git commands. The indirection exists so tests can feed
// canned output without a real repository.
type Runner interface {
	// Run executes `git <args...>` with dir as the working tree and returns
	// stdout. A non-zero exit returns an error carrying stderr.
	Run(ctx context.Context, dir string, args ...string) (string, error)
}

// execRunner is the default Runner backed by os/exec.
type execRunner struct{}

func (execRunner) Run(ctx context.Context, dir string, args ...string) (string, error) {
	allArgs := append([]string{"-C", dir}, args...)
	cmd := exec.CommandContext(ctx, "git", allArgs...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("git %s: %s", strings.Join(args, " "), msg)
	}

	return stdout.String(), nil
}

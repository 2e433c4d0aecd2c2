package runner

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/abdul-hamid-achik/pagespec/packages/core/env"
)

// runHooks runs suite setup commands in order and stops at the first failure.
func (r *Runner) runHooks(ctx context.Context, phase string, commands []string, baseDir string, resolver *env.Resolver) error {
	for _, command := range commands {
		if err := r.executeHook(ctx, command, baseDir, resolver); err != nil {
			return fmt.Errorf("%s hook failed: %w", phase, err)
		}
	}
	return nil
}

// runTeardown runs every teardown command even if one fails, since they
// are typically cleanup tasks, and returns the first error.
func (r *Runner) runTeardown(ctx context.Context, commands []string, baseDir string, resolver *env.Resolver) error {
	var firstErr error
	for _, command := range commands {
		if err := r.executeHook(ctx, command, baseDir, resolver); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("teardown hook failed: %w", err)
		}
	}
	return firstErr
}

// executeHook runs one command with sh -c in baseDir. A leading "-" ignores
// the command's failure.
func (r *Runner) executeHook(ctx context.Context, command, baseDir string, resolver *env.Resolver) error {
	cmdStr := strings.TrimSpace(resolver.Resolve(command))
	if cmdStr == "" {
		return nil
	}

	ignoreError := strings.HasPrefix(cmdStr, "-")
	if ignoreError {
		cmdStr = strings.TrimSpace(strings.TrimPrefix(cmdStr, "-"))
	}

	// Scripts given relative to the scenario file run from its directory
	parts := strings.Fields(cmdStr)
	if len(parts) > 0 {
		executable := parts[0]
		if strings.HasPrefix(executable, "./") || strings.HasPrefix(executable, "../") {
			parts[0] = filepath.Join(baseDir, executable)
			cmdStr = strings.Join(parts, " ")
		}
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", cmdStr)
	cmd.Dir = baseDir
	cmd.Env = os.Environ()

	output, err := cmd.CombinedOutput()
	if r.config.Verbose && len(output) > 0 && r.hookOut != nil {
		fmt.Fprintf(r.hookOut, "hook output: %s\n", strings.TrimRight(string(output), "\n"))
	}
	if err != nil && !ignoreError {
		return fmt.Errorf("command %q failed: %v\noutput: %s", command, err, string(output))
	}
	return nil
}

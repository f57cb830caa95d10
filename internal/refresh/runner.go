package refresh

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// Runner invokes the refresh binary as a subprocess. The API process
// shells out instead of extracting in-process so a long extraction
// cannot hold API resources and the binary stays usable from cron.
type Runner struct {
	Command string
	Timeout time.Duration
	Logger  *slog.Logger
}

// Run executes the refresh command with the given subcommand arguments
// and waits for it to finish. Combined output is logged; on failure the
// tail of the output is folded into the returned error.
func (r *Runner) Run(ctx context.Context, args ...string) error {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.Command, args...)
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	if err != nil {
		r.Logger.Error("refresh command failed",
			"command", r.Command, "args", strings.Join(args, " "),
			"elapsed", elapsed, "output", output.String(), "error", err)
		return fmt.Errorf("refresh command %s %s: %w: %s",
			r.Command, strings.Join(args, " "), err, tail(output.String(), 512))
	}

	r.Logger.Info("refresh command completed",
		"command", r.Command, "args", strings.Join(args, " "), "elapsed", elapsed)
	return nil
}

func tail(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return s[len(s)-max:]
}

package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"

	"vidmerge/config"

	"github.com/google/shlex"
	"github.com/rs/zerolog"
)

// Result holds the outcome of a single encoder invocation: the full argument
// vector, the interleaved stdout/stderr text, the process exit status, and
// the raw execution error if any.
type Result struct {
	Args     []string
	Output   string
	ExitCode int
	Err      error
}

// Runner invokes the external encoder binary. It is safe for concurrent use;
// each invocation is an independent subprocess.
type Runner struct {
	bin       string
	extraArgs []string
}

func NewRunner(cfg *config.Config) (*Runner, error) {
	extra, err := shlex.Split(cfg.FFExtraArgs)
	if err != nil {
		return nil, fmt.Errorf("invalid FF_EXTRA_ARGS %q: %w", cfg.FFExtraArgs, err)
	}
	return &Runner{
		bin:       cfg.FFBin,
		extraArgs: extra,
	}, nil
}

// Bin returns the configured encoder binary path.
func (r *Runner) Bin() string {
	return r.bin
}

// Invoke runs the encoder with the given arguments, blocking until it exits
// or ctx is canceled. Stdout and stderr are captured interleaved into a
// single buffer. The full invocation is logged; on a non-zero exit the whole
// captured output is logged too, so the job log always holds the raw
// diagnostic.
func (r *Runner) Invoke(ctx context.Context, log zerolog.Logger, args []string) Result {
	full := append(append([]string{}, r.extraArgs...), args...)

	cmd := exec.CommandContext(ctx, r.bin, full...)
	var outputBuf bytes.Buffer
	cmd.Stdout = &outputBuf
	cmd.Stderr = &outputBuf

	log.Info().Str("bin", r.bin).Strs("args", full).Msg("invoking encoder")

	err := cmd.Run()
	res := Result{
		Args:   full,
		Output: outputBuf.String(),
		Err:    err,
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		} else {
			// Failed to start at all. Surface the launcher error as output so
			// the classifier sees it alongside real encoder diagnostics.
			res.ExitCode = -1
			if res.Output == "" {
				res.Output = err.Error()
			}
		}
		log.Error().
			Int("exit_code", res.ExitCode).
			Str("output", res.Output).
			Msg("encoder invocation failed")
	}

	return res
}

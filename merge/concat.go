package merge

import (
	"context"
	"fmt"
	"os"
	"strings"

	"vidmerge/ffmpeg"

	"github.com/rs/zerolog"
)

// Invoker abstracts the external encoder for the pipeline stages, so tests
// can count and fake invocations.
type Invoker interface {
	Bin() string
	Invoke(ctx context.Context, log zerolog.Logger, args []string) ffmpeg.Result
}

// concatenate merges the job's downloaded videos into one scratch file.
//
// A single input is returned unchanged without touching the encoder. For two
// or more, a concat-demuxer list file is written in the exact input order,
// then a fast stream-copy attempt runs; if its invocation fails or the output
// is missing or suspiciously small, the partial output is removed and the
// same list is re-run with a full re-encode to the fixed baseline codecs,
// which works regardless of how the inputs differ. Only when the fallback
// fails the same validation does the merge fail, preferring the fallback's
// diagnostic. The escalation is automatic and never a caller choice.
func (j *Job) concatenate(ctx context.Context) (string, error) {
	if len(j.videoFiles) == 1 {
		j.log.Info().Str("path", j.videoFiles[0]).Msg("single video input, concatenation skipped")
		return j.videoFiles[0], nil
	}

	listPath := j.scratch.NewPath("concatlist", ".txt")
	var list strings.Builder
	for _, p := range j.videoFiles {
		list.WriteString(ffmpeg.ConcatListLine(p))
		list.WriteByte('\n')
	}
	if err := os.WriteFile(listPath, []byte(list.String()), 0o644); err != nil {
		return "", wrapf(KindMergeFailed, err, "could not write concat list")
	}

	output := j.scratch.NewPath("concat", ".mp4")

	if err := checkDeadline(ctx); err != nil {
		return "", err
	}
	fast := j.inv.Invoke(ctx, j.log, ffmpeg.ConcatCopyArgs(listPath, output))
	fastErr := j.validateEncoderOutput(fast, output)
	if fastErr == nil {
		j.log.Info().Str("output", output).Msg("stream-copy concatenation succeeded")
		return output, nil
	}
	j.log.Warn().Err(fastErr).Msg("stream-copy concatenation failed, escalating to re-encode")
	os.Remove(output)

	if err := checkDeadline(ctx); err != nil {
		return "", err
	}
	fallback := j.inv.Invoke(ctx, j.log, ffmpeg.ConcatReencodeArgs(listPath, output))
	if err := j.validateEncoderOutput(fallback, output); err != nil {
		os.Remove(output)
		if ffmpeg.IsNotFound(j.inv.Bin(), fallback) {
			return "", failf(KindEncoderNotFound, "%s", ffmpeg.Classify(j.inv.Bin(), fallback))
		}
		return "", failf(KindMergeFailed, "merge failed: %s", ffmpeg.Classify(j.inv.Bin(), fallback))
	}
	j.log.Info().Str("output", output).Msg("re-encode concatenation succeeded")
	return output, nil
}

// validateEncoderOutput decides whether an encoder invocation actually
// produced a usable file: zero exit, output present, and at least the minimum
// sane size (stream-copy concat can exit zero yet emit a truncated file).
func (j *Job) validateEncoderOutput(res ffmpeg.Result, output string) error {
	if res.Err != nil {
		return fmt.Errorf("encoder exited with status %d", res.ExitCode)
	}
	info, err := os.Stat(output)
	if err != nil {
		return fmt.Errorf("encoder produced no output file")
	}
	if info.Size() < j.cfg.MinOutputSize {
		return fmt.Errorf("encoder output is only %d bytes, treating as corrupt", info.Size())
	}
	return nil
}

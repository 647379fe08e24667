package merge

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"vidmerge/config"
	"vidmerge/ffmpeg"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeInvoker is a scripted stand-in for the encoder. The handler decides
// each invocation's outcome; output files are written by the handler when the
// scripted run "succeeds".
type fakeInvoker struct {
	bin     string
	calls   [][]string
	handler func(call int, args []string) ffmpeg.Result
}

func (f *fakeInvoker) Bin() string {
	if f.bin == "" {
		return "ffmpeg"
	}
	return f.bin
}

func (f *fakeInvoker) Invoke(ctx context.Context, log zerolog.Logger, args []string) ffmpeg.Result {
	res := f.handler(len(f.calls), args)
	f.calls = append(f.calls, args)
	res.Args = args
	return res
}

// outputArg is the encoder's output path, always the final argument.
func outputArg(args []string) string {
	return args[len(args)-1]
}

func writeOutput(t *testing.T, path string, size int) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
}

func succeedWriting(t *testing.T, size int) func(int, []string) ffmpeg.Result {
	return func(_ int, args []string) ffmpeg.Result {
		writeOutput(t, outputArg(args), size)
		return ffmpeg.Result{}
	}
}

func pipelineConfig(t *testing.T) *config.Config {
	return &config.Config{
		FFBin:           "ffmpeg",
		JobTimeout:      time.Minute,
		ConnectTimeout:  5 * time.Second,
		DownloadTimeout: 10 * time.Second,
		MaxRedirects:    3,
		MaxInputSize:    1 << 20,
		MinOutputSize:   100,
		OutputDir:       t.TempDir(),
		ScratchDir:      t.TempDir(),
		LogDir:          t.TempDir(),
	}
}

func newTestJob(t *testing.T, cfg *config.Config, inv Invoker, videoFiles []string) *Job {
	t.Helper()
	scratch, err := newScratchSet(cfg.ScratchDir, "testjob")
	require.NoError(t, err)
	for _, p := range videoFiles {
		scratch.Register(p)
	}
	return &Job{
		id:         "testjob",
		cfg:        cfg,
		inv:        inv,
		scratch:    scratch,
		log:        zerolog.Nop(),
		videoFiles: videoFiles,
	}
}

func makeInputs(t *testing.T, dir string, names ...string) []string {
	t.Helper()
	var paths []string
	for _, n := range names {
		p := filepath.Join(dir, n)
		require.NoError(t, os.WriteFile(p, []byte("input bytes for "+n), 0o644))
		paths = append(paths, p)
	}
	return paths
}

func TestConcatenateSingleInputIsNoOp(t *testing.T) {
	cfg := pipelineConfig(t)
	inputs := makeInputs(t, cfg.ScratchDir, "only.mp4")
	inv := &fakeInvoker{handler: succeedWriting(t, 4096)}
	j := newTestJob(t, cfg, inv, inputs)

	out, err := j.concatenate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, inputs[0], out)
	assert.Empty(t, inv.calls, "single input must not invoke the encoder")
}

func TestConcatenateFastPathSucceeds(t *testing.T) {
	cfg := pipelineConfig(t)
	inputs := makeInputs(t, cfg.ScratchDir, "a.mp4", "b.mp4")
	inv := &fakeInvoker{handler: succeedWriting(t, 4096)}
	j := newTestJob(t, cfg, inv, inputs)

	out, err := j.concatenate(context.Background())
	require.NoError(t, err)

	require.Len(t, inv.calls, 1, "compatible inputs must never reach the fallback")
	assert.Contains(t, inv.calls[0], "copy")

	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, info.Size(), cfg.MinOutputSize)
}

func TestConcatenateListPreservesOrderAndQuoting(t *testing.T) {
	cfg := pipelineConfig(t)
	inputs := makeInputs(t, cfg.ScratchDir, "z_first.mp4", "a_second.mp4", "m_third.mp4")

	var listContent string
	inv := &fakeInvoker{handler: func(_ int, args []string) ffmpeg.Result {
		// The list file is the concat demuxer's -i argument.
		for i, a := range args {
			if a == "-i" {
				data, err := os.ReadFile(args[i+1])
				require.NoError(t, err)
				listContent = string(data)
			}
		}
		writeOutput(t, outputArg(args), 4096)
		return ffmpeg.Result{}
	}}
	j := newTestJob(t, cfg, inv, inputs)

	_, err := j.concatenate(context.Background())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(listContent), "\n")
	require.Len(t, lines, 3)
	// Order exactly as received, not sorted.
	assert.Equal(t, "file '"+inputs[0]+"'", lines[0])
	assert.Equal(t, "file '"+inputs[1]+"'", lines[1])
	assert.Equal(t, "file '"+inputs[2]+"'", lines[2])
}

func TestConcatenateFallbackOnFastFailure(t *testing.T) {
	cfg := pipelineConfig(t)
	inputs := makeInputs(t, cfg.ScratchDir, "a.mp4", "b.mp4")
	inv := &fakeInvoker{handler: func(call int, args []string) ffmpeg.Result {
		if call == 0 {
			return ffmpeg.Result{ExitCode: 1, Output: "Error: conversion failed", Err: errors.New("exit status 1")}
		}
		writeOutput(t, outputArg(args), 4096)
		return ffmpeg.Result{}
	}}
	j := newTestJob(t, cfg, inv, inputs)

	out, err := j.concatenate(context.Background())
	require.NoError(t, err)

	require.Len(t, inv.calls, 2)
	assert.Contains(t, inv.calls[1], "libx264")
	_, err = os.Stat(out)
	assert.NoError(t, err)
}

func TestConcatenateTreatsTinyOutputAsFailure(t *testing.T) {
	cfg := pipelineConfig(t)
	inputs := makeInputs(t, cfg.ScratchDir, "a.mp4", "b.mp4")
	inv := &fakeInvoker{handler: func(call int, args []string) ffmpeg.Result {
		if call == 0 {
			// Zero exit but corrupt-or-empty output.
			writeOutput(t, outputArg(args), 10)
			return ffmpeg.Result{}
		}
		writeOutput(t, outputArg(args), 4096)
		return ffmpeg.Result{}
	}}
	j := newTestJob(t, cfg, inv, inputs)

	_, err := j.concatenate(context.Background())
	require.NoError(t, err)
	assert.Len(t, inv.calls, 2, "undersized fast output must trigger the fallback")
}

func TestConcatenateBothTiersFail(t *testing.T) {
	cfg := pipelineConfig(t)
	inputs := makeInputs(t, cfg.ScratchDir, "a.mp4", "b.mp4")
	inv := &fakeInvoker{handler: func(call int, args []string) ffmpeg.Result {
		out := "Error: could not open input"
		if call == 1 {
			out = "Error: conversion failed in fallback"
		}
		return ffmpeg.Result{ExitCode: 1, Output: out, Err: errors.New("exit status 1")}
	}}
	j := newTestJob(t, cfg, inv, inputs)

	_, err := j.concatenate(context.Background())
	require.Error(t, err)
	assert.Equal(t, KindMergeFailed, KindOf(err))
	// The fallback's diagnostic is the one surfaced.
	assert.Contains(t, err.Error(), "fallback")
	assert.Len(t, inv.calls, 2)
}

func TestConcatenateMissingEncoder(t *testing.T) {
	cfg := pipelineConfig(t)
	inputs := makeInputs(t, cfg.ScratchDir, "a.mp4", "b.mp4")
	inv := &fakeInvoker{handler: func(int, []string) ffmpeg.Result {
		return ffmpeg.Result{
			ExitCode: -1,
			Output:   `exec: "ffmpeg": executable file not found in $PATH`,
			Err:      errors.New("executable file not found"),
		}
	}}
	j := newTestJob(t, cfg, inv, inputs)

	_, err := j.concatenate(context.Background())
	require.Error(t, err)
	assert.Equal(t, KindEncoderNotFound, KindOf(err))
}

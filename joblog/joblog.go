// Package joblog provides the per-job append-only log file. Every stage of a
// merge job writes timestamped lines through a Logger; the file is the
// authoritative diagnostic record for the job.
package joblog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// Logger wraps a zerolog logger bound to a single job's log file. It is
// created once per job and passed explicitly to every stage; there is no
// global log state.
type Logger struct {
	zerolog.Logger

	file *os.File
	path string
}

// Open creates (or appends to) the log file for jobID under dir. Entries are
// also mirrored to the provided writer when non-nil, so operators see job
// activity in the process log as well.
func Open(dir, jobID string, mirror io.Writer) (*Logger, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create job log dir: %w", err)
	}

	path := filepath.Join(dir, jobID+".log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open job log %s: %w", path, err)
	}

	var w io.Writer = f
	if mirror != nil {
		w = io.MultiWriter(f, mirror)
	}

	l := zerolog.New(w).With().
		Timestamp().
		Str("job", jobID).
		Logger()

	return &Logger{Logger: l, file: f, path: path}, nil
}

// Path returns the location of the log file on disk.
func (l *Logger) Path() string {
	return l.path
}

// Close flushes and closes the underlying file. Safe to call once the job has
// reached a terminal state; further writes would go nowhere.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

package merge

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"vidmerge/config"

	"github.com/rs/zerolog"
)

// Sweeper deletes published artifacts, job logs and stale scratch leftovers
// older than the configured local lifetime. Jobs are not persisted anywhere,
// so age is judged from file modification times.
type Sweeper struct {
	cfg *config.Config
	log zerolog.Logger
}

func NewSweeper(cfg *config.Config, log zerolog.Logger) *Sweeper {
	return &Sweeper{cfg: cfg, log: log}
}

// Start launches the background sweep loop; it stops when ctx is canceled.
func (s *Sweeper) Start(ctx context.Context) {
	interval := s.cfg.OutputLocalLifetime / 4
	if interval <= 0 {
		interval = time.Hour
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				s.log.Info().Msg("sweeper shutting down")
				return
			case <-ticker.C:
				s.Sweep()
			}
		}
	}()
}

// Sweep runs one pass over the output, scratch and job log directories.
func (s *Sweeper) Sweep() {
	cutoff := time.Now().Add(-s.cfg.OutputLocalLifetime)
	for _, dir := range []string{s.cfg.OutputDir, s.cfg.ScratchDir, s.cfg.LogDir} {
		if dir == "" {
			continue
		}
		s.sweepDir(dir, cutoff)
	}
}

func (s *Sweeper) sweepDir(dir string, cutoff time.Time) {
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.ModTime().After(cutoff) {
			return nil
		}
		if rmErr := os.Remove(path); rmErr != nil {
			s.log.Warn().Str("path", path).Err(rmErr).Msg("could not sweep file")
		} else {
			s.log.Info().Str("path", path).Msg("swept expired file")
		}
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		s.log.Warn().Str("dir", dir).Err(err).Msg("sweep walk failed")
	}
}

package merge

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/lithammer/shortuuid/v4"
	"github.com/rs/zerolog"
)

// scratchSet tracks every transient file a single job creates. A path is
// registered the moment it is allocated, before any stage that could fail
// writes to it, so cleanup always covers the complete set. The set is owned
// by exactly one job and never shared.
type scratchSet struct {
	dir   string
	jobID string

	mu    sync.Mutex
	files []string
}

func newScratchSet(dir, jobID string) (*scratchSet, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create scratch dir %s: %w", dir, err)
	}
	return &scratchSet{dir: dir, jobID: jobID}, nil
}

// NewPath allocates a unique scratch path tagged with the stage that asked
// for it and registers it immediately. Uniqueness comes from the job ID plus
// a random suffix, so concurrent jobs never collide.
func (s *scratchSet) NewPath(stage, ext string) string {
	name := fmt.Sprintf("%s_%s_%s%s", s.jobID, stage, shortuuid.New(), ext)
	p := filepath.Join(s.dir, name)
	s.Register(p)
	return p
}

func (s *scratchSet) Register(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files = append(s.files, path)
}

// Deregister releases ownership of a path, used when the publisher renames
// the final artifact out of the scratch directory.
func (s *scratchSet) Deregister(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, f := range s.files {
		if f == path {
			s.files = append(s.files[:i], s.files[i+1:]...)
			return
		}
	}
}

// Paths returns a copy of the registered set.
func (s *scratchSet) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.files...)
}

// CleanupAll removes every registered file still present on disk. Idempotent;
// runs on every job exit path, success included.
func (s *scratchSet) CleanupAll(log zerolog.Logger) {
	for _, f := range s.Paths() {
		if err := os.Remove(f); err != nil {
			if !os.IsNotExist(err) {
				log.Warn().Str("path", f).Err(err).Msg("could not remove scratch file")
			}
			continue
		}
		log.Debug().Str("path", f).Msg("removed scratch file")
	}
}

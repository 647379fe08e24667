package merge

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"
)

// Artifact is the published result of a successful job: its path on disk and
// the externally reachable address. Created exactly once, never mutated.
type Artifact struct {
	Path string `json:"path"`
	URL  string `json:"url"`
}

// publish moves the finished file to its public location. A same-filesystem
// rename is tried first; on success the path leaves the scratch set since it
// no longer exists at the old location. If rename fails (typically a
// cross-device scratch dir), the file is copied through a pending file that
// is atomically swapped into place, so a partial copy is never visible at
// the target path; the source then stays scratch and is cleaned up normally.
func (j *Job) publish(src string) (*Artifact, error) {
	dir := j.cfg.OutputDir
	if j.folder != "" {
		dir = filepath.Join(dir, j.folder)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, wrapf(KindPublishFailed, err, "could not create output folder: %v", err)
	}

	filename := j.id + ".mp4"
	target := filepath.Join(dir, filename)

	if err := os.Rename(src, target); err == nil {
		j.scratch.Deregister(src)
		j.log.Info().Str("target", target).Msg("published via rename")
	} else {
		j.log.Warn().Err(err).Msg("rename failed, copying into place")
		if cerr := copyPublish(src, target); cerr != nil {
			return nil, wrapf(KindPublishFailed, cerr,
				"publish failed: rename: %v; copy: %v", err, cerr)
		}
		j.log.Info().Str("target", target).Msg("published via copy")
	}

	relName := filename
	if j.folder != "" {
		relName = j.folder + "/" + filename
	}
	u := strings.TrimSuffix(j.baseURL, "/") + "/files/" + relName

	return &Artifact{Path: target, URL: u}, nil
}

// copyPublish copies src to target through a renameio pending file and
// verifies the byte count, so the target either appears complete or not at
// all.
func copyPublish(src, target string) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	pending, err := renameio.NewPendingFile(target)
	if err != nil {
		return fmt.Errorf("create pending file: %w", err)
	}
	defer pending.Cleanup()

	written, err := io.Copy(pending, in)
	if err != nil {
		return fmt.Errorf("copy: %w", err)
	}
	if written != info.Size() {
		return fmt.Errorf("short copy: wrote %d of %d bytes", written, info.Size())
	}

	return pending.CloseAtomicallyReplace()
}

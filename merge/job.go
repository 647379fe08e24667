package merge

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"vidmerge/config"
	"vidmerge/joblog"

	"github.com/lithammer/shortuuid/v4"
	"github.com/rs/zerolog"
)

// Status is the orchestrator state. Transitions are strictly sequential;
// Failed is terminal and reachable from any non-terminal state.
type Status string

const (
	StatusAccepted       Status = "accepted"
	StatusDownloading    Status = "downloading"
	StatusMerging        Status = "merging"
	StatusAudioReplacing Status = "audio_replacing"
	StatusPublishing     Status = "publishing"
	StatusSucceeded      Status = "succeeded"
	StatusFailed         Status = "failed"
)

// Request is a validated merge request handed over by the HTTP layer. Name
// and Folder are already sanitized; BaseURL is the externally reachable
// address prefix for the published artifact.
type Request struct {
	Videos  []string
	Audio   string
	Name    string
	Folder  string
	BaseURL string
}

const defaultBaseName = "merged_video"

// Service runs merge jobs. One instance serves all requests; each job is
// fully independent and owns its own scratch files, so no locking beyond the
// per-job scratch set is needed.
type Service struct {
	cfg        *config.Config
	inv        Invoker
	fetcher    *fetcher
	scratchDir string
	log        zerolog.Logger
	mirror     io.Writer
}

// NewService wires the pipeline together. When no scratch dir is configured a
// private temp dir is created for the process lifetime.
func NewService(cfg *config.Config, inv Invoker, log zerolog.Logger, mirror io.Writer) (*Service, error) {
	scratchDir := cfg.ScratchDir
	if scratchDir == "" {
		dir, err := os.MkdirTemp("", "vidmerge_scratch_")
		if err != nil {
			return nil, fmt.Errorf("could not create scratch directory: %w", err)
		}
		scratchDir = dir
		cfg.ScratchDir = dir
	}
	log.Info().Str("dir", scratchDir).Msg("using scratch directory")

	return &Service{
		cfg:        cfg,
		inv:        inv,
		fetcher:    newFetcher(cfg),
		scratchDir: scratchDir,
		log:        log,
		mirror:     mirror,
	}, nil
}

// Job is a single merge request in flight. Inputs are immutable after
// creation; the job owns the lifetime of every scratch file it registers.
type Job struct {
	id        string
	videoURLs []string
	audioURL  string
	folder    string
	baseURL   string
	created   time.Time
	status    Status

	cfg     *config.Config
	inv     Invoker
	fetcher *fetcher
	scratch *scratchSet
	log     zerolog.Logger

	videoFiles []string
}

// Run executes one merge job to completion within the caller's request. All
// input URLs are validated before any scratch file exists; cleanup of the
// full scratch set runs on every exit path, and the final outcome is in the
// job log before this returns.
func (s *Service) Run(ctx context.Context, req Request) (*Artifact, error) {
	if len(req.Videos) == 0 {
		return nil, failf(KindInvalidInput, "at least one video URL is required")
	}
	for _, u := range req.Videos {
		if err := validateURL(u); err != nil {
			return nil, err
		}
	}
	if req.Audio != "" {
		if err := validateURL(req.Audio); err != nil {
			return nil, err
		}
	}

	if err := checkResources(s.cfg, s.scratchDir, s.log); err != nil {
		return nil, err
	}

	base := req.Name
	if base == "" {
		base = defaultBaseName
	}
	now := time.Now()
	id := fmt.Sprintf("%s_%d_%s", base, now.Unix(), shortuuid.New())

	jl, err := joblog.Open(s.cfg.LogDir, id, s.mirror)
	if err != nil {
		return nil, wrapf(KindInternal, err, "could not open job log: %v", err)
	}
	defer jl.Close()

	scratch, err := newScratchSet(s.scratchDir, id)
	if err != nil {
		return nil, wrapf(KindInternal, err, "could not prepare scratch space: %v", err)
	}

	job := &Job{
		id:        id,
		videoURLs: req.Videos,
		audioURL:  req.Audio,
		folder:    req.Folder,
		baseURL:   req.BaseURL,
		created:   now,
		status:    StatusAccepted,
		cfg:       s.cfg,
		inv:       s.inv,
		fetcher:   s.fetcher,
		scratch:   scratch,
		log:       jl.Logger,
	}
	defer job.scratch.CleanupAll(jl.Logger)

	jl.Info().
		Int("videos", len(req.Videos)).
		Bool("audio", req.Audio != "").
		Str("folder", req.Folder).
		Str("state", string(StatusAccepted)).
		Msg("job accepted")

	ctx, cancel := context.WithTimeout(ctx, s.cfg.JobTimeout)
	defer cancel()

	artifact, err := job.run(ctx)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			err = wrapf(KindTimeout, err, "job exceeded its %s time budget", s.cfg.JobTimeout)
		}
		job.setStatus(StatusFailed)
		jl.Error().Str("kind", KindOf(err).String()).Err(err).Msg("job failed")
		return nil, err
	}

	jl.Info().Str("url", artifact.URL).Str("path", artifact.Path).Msg("job succeeded")
	return artifact, nil
}

// run walks the job through its states. Each stage either advances the job or
// surfaces a classified error; the only automatic retry in the pipeline is
// the concat fast-to-fallback escalation inside concatenate.
func (j *Job) run(ctx context.Context) (*Artifact, error) {
	j.setStatus(StatusDownloading)
	for _, u := range j.videoURLs {
		if err := checkDeadline(ctx); err != nil {
			return nil, err
		}
		p, err := j.fetcher.fetch(ctx, j.log, j.scratch, u, kindVideo)
		if err != nil {
			return nil, err
		}
		j.videoFiles = append(j.videoFiles, p)
	}

	var audioFile string
	if j.audioURL != "" {
		if err := checkDeadline(ctx); err != nil {
			return nil, err
		}
		p, err := j.fetcher.fetch(ctx, j.log, j.scratch, j.audioURL, kindAudio)
		if err != nil {
			return nil, err
		}
		audioFile = p
	}

	if len(j.videoFiles) > 1 {
		j.setStatus(StatusMerging)
	}
	merged, err := j.concatenate(ctx)
	if err != nil {
		return nil, err
	}

	if audioFile != "" {
		j.setStatus(StatusAudioReplacing)
		merged, err = j.replaceAudio(ctx, merged, audioFile)
		if err != nil {
			return nil, err
		}
	}

	j.setStatus(StatusPublishing)
	if err := checkDeadline(ctx); err != nil {
		return nil, err
	}
	artifact, err := j.publish(merged)
	if err != nil {
		return nil, err
	}

	j.setStatus(StatusSucceeded)
	return artifact, nil
}

func (j *Job) setStatus(st Status) {
	j.status = st
	j.log.Info().Str("state", string(st)).Msg("state transition")
}

// checkDeadline is consulted before every blocking stage call so an exhausted
// budget terminates the job instead of starting more work.
func checkDeadline(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return wrapf(KindTimeout, ctx.Err(), "job time budget exhausted")
	default:
		return nil
	}
}

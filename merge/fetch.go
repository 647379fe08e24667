package merge

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"

	"vidmerge/config"

	"github.com/rs/zerolog"
)

type mediaKind int

const (
	kindVideo mediaKind = iota
	kindAudio
)

var videoExts = map[string]bool{
	".mp4": true, ".m4v": true, ".mov": true, ".mkv": true,
	".webm": true, ".avi": true, ".ts": true,
}

var audioExts = map[string]bool{
	".mp3": true, ".aac": true, ".m4a": true, ".wav": true,
	".ogg": true, ".opus": true, ".flac": true,
}

// fetcher downloads remote inputs into scratch files. One instance is shared
// by all jobs; the underlying http.Client is safe for concurrent use.
type fetcher struct {
	client  *http.Client
	maxSize int64
}

func newFetcher(cfg *config.Config) *fetcher {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout: cfg.ConnectTimeout,
		}).DialContext,
		TLSHandshakeTimeout: cfg.ConnectTimeout,
	}
	maxRedirects := cfg.MaxRedirects
	client := &http.Client{
		Transport: transport,
		Timeout:   cfg.DownloadTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}
	return &fetcher{client: client, maxSize: cfg.MaxInputSize}
}

// validateURL accepts only syntactically valid absolute http(s) URLs.
func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return failf(KindInvalidInput, "Invalid URL: %q", raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return failf(KindInvalidInput, "Invalid URL: %q (unsupported scheme %q)", raw, u.Scheme)
	}
	return nil
}

// extensionFor picks the scratch filename extension: the URL path's extension
// when it is on the allow-list for the kind, else the kind's default.
func extensionFor(rawURL string, kind mediaKind) string {
	ext := ""
	if u, err := url.Parse(rawURL); err == nil {
		ext = strings.ToLower(path.Ext(u.Path))
	}
	if kind == kindAudio {
		if audioExts[ext] {
			return ext
		}
		return ".mp3"
	}
	if videoExts[ext] {
		return ext
	}
	return ".mp4"
}

// fetch downloads rawURL into a fresh scratch file and verifies the transfer:
// the file must exist, be non-empty, fit the size cap, and match the reported
// Content-Length when one was sent. A failed transfer removes the partial
// file before returning.
func (f *fetcher) fetch(ctx context.Context, log zerolog.Logger, scratch *scratchSet, rawURL string, kind mediaKind) (string, error) {
	if err := validateURL(rawURL); err != nil {
		return "", err
	}

	dest := scratch.NewPath("download", extensionFor(rawURL, kind))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", wrapf(KindInvalidInput, err, "Invalid URL: %q", rawURL)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", wrapf(KindDownloadFailed, err, "download of %s failed: %v", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", failf(KindDownloadFailed, "download of %s failed: status %d", rawURL, resp.StatusCode)
	}

	out, err := os.Create(dest)
	if err != nil {
		return "", wrapf(KindDownloadFailed, err, "could not create scratch file for %s", rawURL)
	}

	// Enforce the input size cap while streaming to disk.
	limited := &io.LimitedReader{R: resp.Body, N: f.maxSize + 1}
	written, copyErr := io.Copy(out, limited)
	closeErr := out.Close()

	fail := func(e *Error) (string, error) {
		os.Remove(dest)
		return "", e
	}

	if copyErr != nil {
		return fail(wrapf(KindDownloadFailed, copyErr, "download of %s failed mid-transfer: %v", rawURL, copyErr))
	}
	if closeErr != nil {
		return fail(wrapf(KindDownloadFailed, closeErr, "could not finish writing download of %s", rawURL))
	}
	if written > f.maxSize {
		return fail(failf(KindDownloadFailed, "download of %s exceeds the %d byte input limit", rawURL, f.maxSize))
	}

	info, err := os.Stat(dest)
	if err != nil || info.Size() == 0 {
		return fail(failf(KindDownloadFailed, "download of %s produced an empty file", rawURL))
	}
	if resp.ContentLength >= 0 && info.Size() != resp.ContentLength {
		return fail(failf(KindDownloadFailed,
			"download of %s is incomplete: got %d bytes, server reported %d",
			rawURL, info.Size(), resp.ContentLength))
	}

	log.Info().
		Str("url", rawURL).
		Str("dest", dest).
		Int64("bytes", info.Size()).
		Msg("downloaded input")
	return dest, nil
}

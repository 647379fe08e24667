package merge

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"vidmerge/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fetcherConfig(t *testing.T) *config.Config {
	return &config.Config{
		ConnectTimeout:  5 * time.Second,
		DownloadTimeout: 10 * time.Second,
		MaxRedirects:    3,
		MaxInputSize:    1 << 20,
		ScratchDir:      t.TempDir(),
	}
}

func testScratch(t *testing.T, cfg *config.Config) *scratchSet {
	s, err := newScratchSet(cfg.ScratchDir, "testjob")
	require.NoError(t, err)
	return s
}

func TestValidateURL(t *testing.T) {
	assert.NoError(t, validateURL("https://example.com/a.mp4"))
	assert.NoError(t, validateURL("http://example.com/a"))

	for _, bad := range []string{"bad-url", "", "/relative/path", "ftp://example.com/a.mp4", "https://"} {
		err := validateURL(bad)
		require.Error(t, err, "expected %q to be rejected", bad)
		assert.Equal(t, KindInvalidInput, KindOf(err))
		assert.Contains(t, err.Error(), "Invalid URL")
	}
}

func TestExtensionFor(t *testing.T) {
	assert.Equal(t, ".mkv", extensionFor("https://x/a.mkv", kindVideo))
	assert.Equal(t, ".mp4", extensionFor("https://x/a.MP4", kindVideo))
	assert.Equal(t, ".mp4", extensionFor("https://x/a.exe", kindVideo))
	assert.Equal(t, ".mp4", extensionFor("https://x/noext", kindVideo))
	assert.Equal(t, ".wav", extensionFor("https://x/a.wav?sig=1", kindAudio))
	assert.Equal(t, ".mp3", extensionFor("https://x/a.mp4", kindAudio))
}

func TestFetchSuccess(t *testing.T) {
	body := []byte("not really a video but bytes all the same")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(body)
	}))
	defer srv.Close()

	cfg := fetcherConfig(t)
	scratch := testScratch(t, cfg)
	f := newFetcher(cfg)

	dest, err := f.fetch(context.Background(), zerolog.Nop(), scratch, srv.URL+"/clip.mp4", kindVideo)
	require.NoError(t, err)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, body, got)
	assert.Contains(t, scratch.Paths(), dest)
}

func TestFetchHTTPErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	cfg := fetcherConfig(t)
	f := newFetcher(cfg)

	_, err := f.fetch(context.Background(), zerolog.Nop(), testScratch(t, cfg), srv.URL+"/a.mp4", kindVideo)
	require.Error(t, err)
	assert.Equal(t, KindDownloadFailed, KindOf(err))
	assert.Contains(t, err.Error(), "404")
}

func TestFetchEmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := fetcherConfig(t)
	scratch := testScratch(t, cfg)
	f := newFetcher(cfg)

	_, err := f.fetch(context.Background(), zerolog.Nop(), scratch, srv.URL+"/a.mp4", kindVideo)
	require.Error(t, err)
	assert.Equal(t, KindDownloadFailed, KindOf(err))

	// The partial file must be gone even though the path stays registered.
	for _, p := range scratch.Paths() {
		_, statErr := os.Stat(p)
		assert.True(t, os.IsNotExist(statErr))
	}
}

func TestFetchInputSizeCap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, 4096))
	}))
	defer srv.Close()

	cfg := fetcherConfig(t)
	cfg.MaxInputSize = 1024
	f := newFetcher(cfg)

	_, err := f.fetch(context.Background(), zerolog.Nop(), testScratch(t, cfg), srv.URL+"/a.mp4", kindVideo)
	require.Error(t, err)
	assert.Equal(t, KindDownloadFailed, KindOf(err))
	assert.Contains(t, err.Error(), "input limit")
}

func TestFetchRedirectBound(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, srv.URL+r.URL.Path, http.StatusFound)
	}))
	defer srv.Close()

	cfg := fetcherConfig(t)
	cfg.MaxRedirects = 2
	f := newFetcher(cfg)

	_, err := f.fetch(context.Background(), zerolog.Nop(), testScratch(t, cfg), srv.URL+"/a.mp4", kindVideo)
	require.Error(t, err)
	assert.Equal(t, KindDownloadFailed, KindOf(err))
}

func TestFetchRejectsUntrustedTLS(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "secret")
	}))
	defer srv.Close()

	cfg := fetcherConfig(t)
	f := newFetcher(cfg)

	// The self-signed test certificate must fail verification.
	_, err := f.fetch(context.Background(), zerolog.Nop(), testScratch(t, cfg), srv.URL+"/a.mp4", kindVideo)
	require.Error(t, err)
	assert.Equal(t, KindDownloadFailed, KindOf(err))
}

func TestFetchInvalidURLCreatesNoScratchFile(t *testing.T) {
	cfg := fetcherConfig(t)
	scratch := testScratch(t, cfg)
	f := newFetcher(cfg)

	_, err := f.fetch(context.Background(), zerolog.Nop(), scratch, "bad-url", kindVideo)
	require.Error(t, err)
	assert.Equal(t, KindInvalidInput, KindOf(err))
	assert.Empty(t, scratch.Paths())
}

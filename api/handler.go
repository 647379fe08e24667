package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"vidmerge/config"
	"vidmerge/merge"

	"github.com/gin-gonic/gin"
)

// Merger runs a merge job to completion for one request.
type Merger interface {
	Run(ctx context.Context, req merge.Request) (*merge.Artifact, error)
}

type Handler struct {
	svc Merger
	cfg *config.Config
}

func NewHandler(svc Merger, cfg *config.Config) *Handler {
	return &Handler{
		svc: svc,
		cfg: cfg,
	}
}

type MergeRequest struct {
	Videos []string `json:"videos"`
	Audio  string   `json:"audio"`
	Name   string   `json:"name"`
	Folder string   `json:"folder"`
}

// User-supplied names become path components, so everything outside this
// charset is stripped. Traversal is impossible afterwards: no dots, no
// separators.
var nameSanitizer = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

func sanitizeName(s string) string {
	return nameSanitizer.ReplaceAllString(s, "")
}

// handleMerge accepts a merge request, runs the job synchronously within the
// request, and answers with the published address or a classified error.
func (h *Handler) handleMerge(c *gin.Context) {
	var req MergeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid request body: %v", err)})
		return
	}
	if len(req.Videos) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "at least one video URL is required"})
		return
	}

	artifact, err := h.svc.Run(c.Request.Context(), merge.Request{
		Videos:  req.Videos,
		Audio:   req.Audio,
		Name:    sanitizeName(req.Name),
		Folder:  sanitizeName(req.Folder),
		BaseURL: h.effectiveBaseURL(c),
	})
	if err != nil {
		c.JSON(statusFor(merge.KindOf(err)), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": artifact.URL})
}

// statusFor maps a failure kind to its HTTP status class: client errors for
// bad input, gateway errors for remote fetch and budget problems, 500 for
// everything that is this deployment's fault.
func statusFor(k merge.Kind) int {
	switch k {
	case merge.KindInvalidInput:
		return http.StatusBadRequest
	case merge.KindDownloadFailed:
		return http.StatusBadGateway
	case merge.KindResourceBusy:
		return http.StatusServiceUnavailable
	case merge.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// effectiveBaseURL prefers the configured public base; otherwise it is
// reconstructed from the incoming request.
func (h *Handler) effectiveBaseURL(c *gin.Context) string {
	baseURL := h.cfg.BaseURL
	if baseURL == "" {
		scheme := "http"
		if c.Request.TLS != nil {
			scheme = "https"
		}
		baseURL = fmt.Sprintf("%s://%s", scheme, c.Request.Host)
	}
	return strings.TrimSuffix(baseURL, "/")
}

// handleGetFile serves a published artifact.
func (h *Handler) handleGetFile(c *gin.Context) {
	rel := strings.TrimPrefix(c.Param("filepath"), "/")
	clean := filepath.Clean(rel)
	// Security: prevent path traversal out of the output directory.
	if clean == "." || filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid file path"})
		return
	}

	fullPath := filepath.Join(h.cfg.OutputDir, clean)
	if _, err := os.Stat(fullPath); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
		return
	}
	c.File(fullPath)
}

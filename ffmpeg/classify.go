package ffmpeg

import (
	"fmt"
	"regexp"
	"strings"
)

// Limits for the generic fallback message, keeping user-facing errors compact
// while the job log retains the full output.
const (
	conciseTailLines = 5
	conciseMaxLength = 280
)

// failureIndicators are substrings that mark a line of encoder output as a
// likely cause of failure. Matching is case-insensitive and best-effort; the
// order of lines in the output decides which one wins, not this list.
var failureIndicators = []string{
	"permission denied",
	"operation not permitted",
	"no such file or directory",
	"invalid argument",
	"invalid data found",
	"codec not found",
	"unknown encoder",
	"encoder not found",
	"conversion failed",
	"could not open",
	"could not find",
	"does not contain any stream",
	"cannot find a matching stream",
	"stream map",
	"unable to find a suitable output format",
}

// hardErrorPrefix matches lines the encoder itself flags as hard failures,
// optionally behind a bracketed component tag.
var hardErrorPrefix = regexp.MustCompile(`(?i)^(\[[^\]]+\]\s*)?(error|fatal|panic)\b\s*[:,]`)

// IsNotFound reports whether the invocation failed because the encoder
// binary itself is missing or inaccessible.
func IsNotFound(binPath string, res Result) bool {
	if res.ExitCode == 127 {
		return true
	}
	lower := strings.ToLower(res.Output)
	if !strings.Contains(res.Output, binPath) {
		return false
	}
	return strings.Contains(lower, "no such file or directory") ||
		strings.Contains(lower, "not found")
}

// Classify maps a finished encoder invocation to a concise user-facing
// message. It is a pure function of its inputs: deterministic given identical
// output, and it always returns something — when nothing matches, a generic
// exit-status message with a bounded tail of the output.
//
// The heuristics are best-effort. The first line matching both an indicator
// substring and a hard error prefix is returned verbatim and the scan stops;
// failing that, the first indicator line is reported as a potential failure.
func Classify(binPath string, res Result) string {
	if IsNotFound(binPath, res) {
		return fmt.Sprintf("encoder binary %q not found or not executable", binPath)
	}

	var firstIndicator string
	for _, raw := range strings.Split(res.Output, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)

		matched := false
		for _, ind := range failureIndicators {
			if strings.Contains(lower, ind) {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}
		if hardErrorPrefix.MatchString(line) {
			// First hard error wins.
			return line
		}
		if firstIndicator == "" {
			firstIndicator = line
		}
	}

	if firstIndicator != "" {
		return "encoder potentially failed: " + firstIndicator
	}

	tail := collapseTail(res.Output, conciseTailLines, conciseMaxLength)
	if tail == "" {
		return fmt.Sprintf("encoder exited with status %d", res.ExitCode)
	}
	return fmt.Sprintf("encoder exited with status %d: %s", res.ExitCode, tail)
}

// collapseTail returns the last n non-empty lines of output joined into one
// whitespace-collapsed string, truncated to maxLen.
func collapseTail(output string, n, maxLen int) string {
	var lines []string
	for _, raw := range strings.Split(output, "\n") {
		if line := strings.TrimSpace(raw); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	joined := strings.Join(strings.Fields(strings.Join(lines, " ")), " ")
	if len(joined) > maxLen {
		joined = joined[:maxLen] + "..."
	}
	return joined
}

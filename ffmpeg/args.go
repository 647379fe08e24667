package ffmpeg

import (
	"fmt"
	"strings"
)

// Fixed fallback encoding parameters. Stream copy preserves the original
// streams; when inputs are not bitstream compatible everything is re-encoded
// to this baseline, which works regardless of how the inputs differ.
const (
	fallbackVideoCodec   = "libx264"
	fallbackVideoProfile = "baseline"
	fallbackAudioCodec   = "aac"
	fallbackAudioBitrate = "128k"
	muxAudioBitrate      = "192k"
)

// ConcatCopyArgs builds the fast-path concatenation invocation: concat
// demuxer over a list file, stream copy, no re-encoding.
func ConcatCopyArgs(listPath, outputPath string) []string {
	return []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		outputPath,
	}
}

// ConcatReencodeArgs builds the fallback concatenation invocation: same list
// input, full decode-encode to the fixed baseline codecs.
func ConcatReencodeArgs(listPath, outputPath string) []string {
	return []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c:v", fallbackVideoCodec,
		"-profile:v", fallbackVideoProfile,
		"-c:a", fallbackAudioCodec,
		"-b:a", fallbackAudioBitrate,
		outputPath,
	}
}

// ReplaceAudioArgs builds the audio-replacement invocation: first video
// stream from input 0, first audio stream from input 1, original audio
// dropped, output truncated to the shorter input.
func ReplaceAudioArgs(videoPath, audioPath, outputPath string) []string {
	return []string{
		"-y",
		"-i", videoPath,
		"-i", audioPath,
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-c:v", fallbackVideoCodec,
		"-profile:v", fallbackVideoProfile,
		"-c:a", fallbackAudioCodec,
		"-b:a", muxAudioBitrate,
		"-shortest",
		outputPath,
	}
}

// ConcatListLine formats one entry of a concat demuxer list file. The path is
// single-quoted with internal quotes escaped, so paths with spaces or quotes
// survive the demuxer's parsing.
func ConcatListLine(path string) string {
	escaped := strings.ReplaceAll(path, "'", `'\''`)
	return fmt.Sprintf("file '%s'", escaped)
}

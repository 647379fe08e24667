package merge

import (
	"context"
	"os"

	"vidmerge/ffmpeg"
)

// replaceAudio re-muxes audioPath onto videoPath: the first video stream of
// the video input and the first audio stream of the audio input, any original
// audio dropped. The output is truncated to the shorter of the two inputs,
// so a short audio track never leaves minutes of silence and a short video
// never freezes on its last frame. That truncation is deliberate policy.
func (j *Job) replaceAudio(ctx context.Context, videoPath, audioPath string) (string, error) {
	if err := checkDeadline(ctx); err != nil {
		return "", err
	}

	output := j.scratch.NewPath("mux", ".mp4")
	res := j.inv.Invoke(ctx, j.log, ffmpeg.ReplaceAudioArgs(videoPath, audioPath, output))
	if err := j.validateEncoderOutput(res, output); err != nil {
		os.Remove(output)
		if ffmpeg.IsNotFound(j.inv.Bin(), res) {
			return "", failf(KindEncoderNotFound, "%s", ffmpeg.Classify(j.inv.Bin(), res))
		}
		return "", failf(KindAudioMuxFailed, "audio replacement failed: %s", ffmpeg.Classify(j.inv.Bin(), res))
	}

	j.log.Info().Str("output", output).Msg("audio track replaced")
	return output, nil
}

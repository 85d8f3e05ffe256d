package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// AudioExtractor pulls the audio track out of a video.
type AudioExtractor interface {
	// ExtractAudio writes an mp3 next to the video and returns its path.
	// Returns ErrNoAudioStream when the video is silent.
	ExtractAudio(ctx context.Context, videoPath string) (string, error)
}

// FFmpegExtractor implements AudioExtractor with ffprobe and ffmpeg.
type FFmpegExtractor struct {
	runner  Runner
	ffmpeg  string
	ffprobe string
}

var _ AudioExtractor = (*FFmpegExtractor)(nil)

func NewFFmpegExtractor(runner Runner, ffmpegPath, ffprobePath string) *FFmpegExtractor {
	return &FFmpegExtractor{runner: runner, ffmpeg: ffmpegPath, ffprobe: ffprobePath}
}

func (e *FFmpegExtractor) ExtractAudio(ctx context.Context, videoPath string) (string, error) {
	hasAudio, err := e.HasAudio(ctx, videoPath)
	if err != nil {
		return "", err
	}
	if !hasAudio {
		return "", ErrNoAudioStream
	}

	out := strings.TrimSuffix(videoPath, filepath.Ext(videoPath)) + ".mp3"
	if _, err := e.runner.Run(ctx, e.ffmpeg, buildFFmpegArgs(videoPath, out)...); err != nil {
		return "", fmt.Errorf("extract audio: %w", err)
	}
	if _, err := os.Stat(out); err != nil {
		return "", fmt.Errorf("extract audio: ffmpeg completed but output is missing: %w", err)
	}
	return out, nil
}

// HasAudio asks ffprobe whether the file has at least one audio stream.
func (e *FFmpegExtractor) HasAudio(ctx context.Context, videoPath string) (bool, error) {
	res, err := e.runner.Run(ctx, e.ffprobe,
		"-v", "error",
		"-select_streams", "a",
		"-show_entries", "stream=index",
		"-of", "csv=p=0",
		videoPath,
	)
	if err != nil {
		return false, fmt.Errorf("probe audio: %w", err)
	}
	return strings.TrimSpace(res.Stdout) != "", nil
}

func buildFFmpegArgs(inputPath, outPath string) []string {
	return []string{
		"-y",
		"-i", inputPath,
		"-vn",
		"-acodec", "libmp3lame",
		"-q:a", "0",
		"-ar", "44100",
		outPath,
	}
}

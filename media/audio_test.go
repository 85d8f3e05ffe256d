package media

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFFmpegExtractor_ExtractAudio(t *testing.T) {
	video := filepath.Join(t.TempDir(), "abc.mp4")
	require.NoError(t, os.WriteFile(video, []byte("video"), 0644))

	runner := &fakeRunner{fn: func(name string, args []string) (CommandResult, error) {
		switch name {
		case "ffprobe":
			return CommandResult{Stdout: "1\n"}, nil
		case "ffmpeg":
			return CommandResult{}, os.WriteFile(args[len(args)-1], []byte("mp3"), 0644)
		}
		return CommandResult{}, errors.New("unexpected command")
	}}

	out, err := NewFFmpegExtractor(runner, "ffmpeg", "ffprobe").ExtractAudio(context.Background(), video)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(filepath.Dir(video), "abc.mp3"), out)

	lines := runner.commandLines()
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "-vn -acodec libmp3lame -q:a 0 -ar 44100")
}

func TestFFmpegExtractor_NoAudio(t *testing.T) {
	runner := &fakeRunner{fn: func(name string, args []string) (CommandResult, error) {
		return CommandResult{Stdout: "\n"}, nil
	}}

	_, err := NewFFmpegExtractor(runner, "ffmpeg", "ffprobe").ExtractAudio(context.Background(), "/x/silent.mp4")
	assert.ErrorIs(t, err, ErrNoAudioStream)
	assert.Len(t, runner.commandLines(), 1)
}

func TestFFmpegExtractor_MissingOutput(t *testing.T) {
	runner := &fakeRunner{fn: func(name string, args []string) (CommandResult, error) {
		return CommandResult{Stdout: "0"}, nil
	}}

	_, err := NewFFmpegExtractor(runner, "ffmpeg", "ffprobe").ExtractAudio(context.Background(), filepath.Join(t.TempDir(), "v.mp4"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestExecRunner_MissingBinary(t *testing.T) {
	_, err := ExecRunner{}.Run(context.Background(), "larder-no-such-binary-xyz")
	var cmdErr *CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, -1, cmdErr.ExitCode)
}

func TestCommandError_Message(t *testing.T) {
	err := &CommandError{Command: "yt-dlp", ExitCode: 1, Stderr: "warn\nERROR: Unsupported URL\n\n"}
	assert.Equal(t, "yt-dlp exit=1: ERROR: Unsupported URL", err.Error())
}

package media

import "errors"

// Config locates the media library and the external tools.
type Config struct {
	// LibraryRoot holds one folder per key: <root>/<key>/media_original.
	LibraryRoot string

	YTDLPPath   string
	FFmpegPath  string
	FFprobePath string
}

// DefaultConfig resolves tools from PATH.
func DefaultConfig() Config {
	return Config{
		LibraryRoot: "media",
		YTDLPPath:   "yt-dlp",
		FFmpegPath:  "ffmpeg",
		FFprobePath: "ffprobe",
	}
}

func (c Config) Validate() error {
	if c.LibraryRoot == "" {
		return errors.New("media config: LibraryRoot is required")
	}
	if c.YTDLPPath == "" || c.FFmpegPath == "" || c.FFprobePath == "" {
		return errors.New("media config: tool paths are required")
	}
	return nil
}

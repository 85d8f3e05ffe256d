package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"github.com/poiesic/larder/core"
)

// URLAcquirer downloads social videos with yt-dlp into the library.
type URLAcquirer struct {
	library *Library
	runner  Runner
	ytdlp   string
	logger  *slog.Logger
}

var _ Acquirer = (*URLAcquirer)(nil)

type videoInfo struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	WebpageURL  string `json:"webpage_url"`
}

func NewURLAcquirer(library *Library, runner Runner, ytdlpPath string) *URLAcquirer {
	return &URLAcquirer{
		library: library,
		runner:  runner,
		ytdlp:   ytdlpPath,
		logger:  slog.Default().With("component", "ytdlp"),
	}
}

// Acquire downloads the video and its info file. The caption is the post
// description, falling back to its title.
func (a *URLAcquirer) Acquire(ctx context.Context, item core.WorkItem) (*Acquisition, error) {
	key := KeyFromURL(item.Key)
	dir := a.library.Dir(key)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	args := []string{
		"--no-playlist",
		"--no-progress",
		"--write-info-json",
		"--restrict-filenames",
		"-o", filepath.Join(dir, key+".%(ext)s"),
		item.Key,
	}
	a.logger.Debug("downloading", "url", item.Key, "key", key)
	if _, err := a.runner.Run(ctx, a.ytdlp, args...); err != nil {
		return nil, fmt.Errorf("download %s: %w", item.Key, err)
	}

	paths, err := listMedia(dir)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoMedia, item.Key)
	}

	acq := &Acquisition{
		Key:        key,
		MediaPaths: paths,
		SourceURL:  item.Key,
	}
	info, err := readInfo(filepath.Join(dir, key+".info.json"))
	if err != nil {
		a.logger.Warn("could not read video info", "key", key, "err", err)
		return acq, nil
	}
	acq.Caption = strings.TrimSpace(info.Description)
	if acq.Caption == "" {
		acq.Caption = strings.TrimSpace(info.Title)
	}
	if info.WebpageURL != "" {
		acq.SourceURL = info.WebpageURL
	}
	return acq, nil
}

func readInfo(path string) (*videoInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMetadataNotFound, filepath.Base(path))
		}
		return nil, err
	}
	var info videoInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

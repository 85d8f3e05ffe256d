package media

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
)

var (
	videoExts = []string{".mp4", ".mov", ".mkv", ".webm", ".m4v"}
	imageExts = []string{".jpg", ".jpeg", ".png", ".webp", ".gif"}
)

// IsVideo reports whether path has a video extension.
func IsVideo(path string) bool {
	return slices.Contains(videoExts, strings.ToLower(filepath.Ext(path)))
}

// IsImage reports whether path has an image extension.
func IsImage(path string) bool {
	return slices.Contains(imageExts, strings.ToLower(filepath.Ext(path)))
}

// FirstVideo returns the first video among paths.
func FirstVideo(paths []string) (string, bool) {
	for _, p := range paths {
		if IsVideo(p) {
			return p, true
		}
	}
	return "", false
}

// Images filters paths down to images.
func Images(paths []string) []string {
	var out []string
	for _, p := range paths {
		if IsImage(p) {
			out = append(out, p)
		}
	}
	return out
}

// listMedia returns the video and image files in dir, sorted by name.
func listMedia(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		p := filepath.Join(dir, e.Name())
		if IsVideo(p) || IsImage(p) {
			paths = append(paths, p)
		}
	}
	return paths, nil
}

package media

import (
	"net/url"
	"path"
	"strings"
)

// KeyFromURL derives a stable item key from a video URL.
// Instagram posts use their shortcode, YouTube videos their id, and anything
// else the last path segment. The result is always filename safe.
func KeyFromURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return SanitizeFilename(raw)
	}

	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	segments := strings.FieldsFunc(u.Path, func(r rune) bool { return r == '/' })

	switch {
	case strings.HasSuffix(host, "instagram.com"):
		for i, seg := range segments {
			if (seg == "p" || seg == "reel" || seg == "reels" || seg == "tv") && i+1 < len(segments) {
				return SanitizeFilename(segments[i+1])
			}
		}
	case host == "youtu.be":
		if len(segments) > 0 {
			return SanitizeFilename(segments[0])
		}
	case strings.HasSuffix(host, "youtube.com"):
		if v := u.Query().Get("v"); v != "" {
			return SanitizeFilename(v)
		}
		if len(segments) == 2 && segments[0] == "shorts" {
			return SanitizeFilename(segments[1])
		}
	}

	if len(segments) > 0 {
		return SanitizeFilename(path.Base(u.Path))
	}
	return SanitizeFilename(host)
}

// SanitizeFilename keeps letters, digits, dash, underscore and dot and
// replaces every other rune with an underscore.
func SanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), ".")
	if out == "" {
		return "_"
	}
	return out
}

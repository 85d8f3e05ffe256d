package media

import "errors"

var (
	ErrNoAudioStream     = errors.New("video has no audio stream")
	ErrUnsupportedSource = errors.New("unsupported source kind")
	ErrMetadataNotFound  = errors.New("metadata not found")
	ErrNoMedia           = errors.New("no media files found")
	ErrInvalidKey        = errors.New("invalid key")
)

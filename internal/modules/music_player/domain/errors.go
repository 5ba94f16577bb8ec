package domain

import "errors"

var (
	// ErrEmptyFilename is returned when a track is bound to an empty filename.
	ErrEmptyFilename = errors.New("filename must not be empty")

	// ErrAlreadyMaterialized is returned when a track is rebound to a different file.
	ErrAlreadyMaterialized = errors.New("track is already bound to a file")

	// ErrInvalidRepeatMode is returned for repeat modes other than off, track or queue.
	ErrInvalidRepeatMode = errors.New("invalid repeat mode")
)

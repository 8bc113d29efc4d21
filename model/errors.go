package model

import "errors"

var (
	// ErrSourceUnavailable marks a missing or unreadable input path.
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrSilentMismatch marks a media file without a message or a message
	// without media. It is only ever logged.
	ErrSilentMismatch = errors.New("silent mismatch")
)

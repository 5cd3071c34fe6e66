package domain

import "errors"

var (
	ErrNotFound = errors.New("not found")
	ErrInternal = errors.New("internal error")
)

var (
	ErrEmptyInput        = errors.New("empty input")
	ErrInvalidTranscript = errors.New("invalid transcript")
	ErrSessionNotFound   = errors.New("session not found")
)

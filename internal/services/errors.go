package services

import "errors"

var (
	// ErrUnauthorized means the caller identity does not match the chat's
	// participants for the attempted operation.
	ErrUnauthorized = errors.New("not a participant of this chat")

	// ErrValidation means malformed input, e.g. empty or oversized content.
	ErrValidation = errors.New("invalid input")
)

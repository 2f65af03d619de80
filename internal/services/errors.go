// Package services defines the business logic of the chat subsystem: sending
// messages, opening conversations with read-state synchronization, unread
// accounting and per-viewer conversation deletion. This file centralizes the
// service-level error values so that they can be consistently returned by
// service methods and checked by callers.
//
// Translation into HTTP status codes is performed by the handler layer.
package services

import "errors"

var (
	// ErrInvalidUser is returned when a caller or peer identity is empty.
	ErrInvalidUser = errors.New("user id is required")

	// ErrUserNotFound indicates the receiver of a message is not in the directory.
	ErrUserNotFound = errors.New("user not found")

	// ErrSelfMessage is returned when a user addresses a message to themselves.
	ErrSelfMessage = errors.New("cannot message yourself")

	// ErrEmptyText is returned when a message has no content after normalization.
	ErrEmptyText = errors.New("message text is empty")

	// ErrTextTooLong is returned when a message exceeds the configured rune limit.
	ErrTextTooLong = errors.New("message text too long")

	// ErrMessageNotFound indicates that the requested message does not exist
	// or is not visible to the current user.
	ErrMessageNotFound = errors.New("message not found")
)

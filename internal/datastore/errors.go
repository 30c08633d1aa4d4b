package datastore

import "errors"

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("datastore: not found")
	// ErrUnavailable is returned when the store is not configured or its file is missing.
	ErrUnavailable = errors.New("datastore: store unavailable")
	// ErrInvalidSender is returned when a conversation row has a sender other than user or bot.
	ErrInvalidSender = errors.New("datastore: sender must be user or bot")
)

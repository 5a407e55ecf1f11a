package services

import (
	"errors"

	"fiirank/internal/storage"
)

var (
	// ErrRefreshRunning is returned when a refresh is requested while
	// another one is in progress.
	ErrRefreshRunning = errors.New("refresh already running")

	// ErrRunNotFound is returned when no run matches, or none was made yet.
	ErrRunNotFound = storage.ErrNotFound

	ErrInvalidInput = errors.New("invalid input")
)

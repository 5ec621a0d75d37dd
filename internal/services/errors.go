package services

import "errors"

// Dashboard service errors
var (
	// Chart errors
	ErrUnknownChart = errors.New("unknown chart")

	// Paging errors
	ErrPageOutOfRange = errors.New("page out of range")

	// General errors
	ErrInvalidInput = errors.New("invalid input")
)

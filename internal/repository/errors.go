package repository

import "errors"

var (
	// ErrInvalidAlert indicates an alert failed validation
	ErrInvalidAlert = errors.New("invalid alert")

	// ErrAlertNotFound indicates the alert was not found
	ErrAlertNotFound = errors.New("alert not found")

	// ErrRepositoryUnavailable indicates the repository is unavailable
	ErrRepositoryUnavailable = errors.New("repository unavailable")
)

package services

import "errors"

var (
	// ErrInvalidCredentials hides whether the email or the password was wrong.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrStorageDisabled is returned by media operations when no object
	// storage backend is configured.
	ErrStorageDisabled = errors.New("media storage is not configured")
	// ErrRoleNotAllowed is returned when registration asks for a role that
	// is not self-service.
	ErrRoleNotAllowed = errors.New("role cannot be chosen at registration")
	ErrSelfReview      = errors.New("owners cannot review their own property")
	ErrAlreadyReviewed = errors.New("property already reviewed by this user")
)

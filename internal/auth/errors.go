package auth

import "errors"

var (
	// ErrUnauthenticated is returned when no credential was presented or the
	// credential could not be verified.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrMalformedCredential is returned when the Authorization header does
	// not follow the "Bearer <token>" scheme.
	ErrMalformedCredential = errors.New("malformed credential")
	// ErrTokenExpired is returned when the token's expiry has passed.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenMalformed is returned when the token cannot be parsed or its
	// signature does not validate.
	ErrTokenMalformed = errors.New("token malformed")
	// ErrMissingClaim is returned when the token carries no user identity.
	ErrMissingClaim = errors.New("token missing identity claim")
	// ErrUnknownUser is returned when the token subject no longer exists.
	ErrUnknownUser = errors.New("unknown user")
	// ErrAccountDisabled is returned when the user's account is inactive.
	ErrAccountDisabled = errors.New("account disabled")
	// ErrForbidden is returned when an authenticated principal lacks the
	// required role.
	ErrForbidden = errors.New("forbidden")
)

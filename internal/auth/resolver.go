package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/darigo/apiserver/internal/store"
	"github.com/darigo/apiserver/types"
)

const (
	bearerScheme   = "Bearer"
	minTokenLength = 10
	maxTokenLength = 500
)

// Principal is the authenticated actor of a request.
type Principal struct {
	ID    string     `json:"id"`
	Email string     `json:"email"`
	Role  types.Role `json:"role"`
}

// UserLookup loads the authoritative user record.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (types.User, error)
}

// Resolver turns an Authorization header into a Principal.
type Resolver struct {
	codec *Codec
	users UserLookup
}

func NewResolver(codec *Codec, users UserLookup) *Resolver {
	return &Resolver{codec: codec, users: users}
}

// Resolve authenticates a raw Authorization header value.
//
// Token failures other than expiry collapse into ErrUnauthenticated.
// Every call reads the user store once.
func (r *Resolver) Resolve(ctx context.Context, authorization string) (Principal, error) {
	token, err := BearerToken(authorization)
	if err != nil {
		return Principal{}, err
	}
	return r.ResolveToken(ctx, token)
}

// ResolveToken authenticates a bare token.
func (r *Resolver) ResolveToken(ctx context.Context, token string) (Principal, error) {
	identity, err := r.codec.Verify(token)
	if err != nil {
		if errors.Is(err, ErrTokenExpired) {
			return Principal{}, ErrTokenExpired
		}
		return Principal{}, ErrUnauthenticated
	}

	user, err := r.users.GetByID(ctx, identity.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Principal{}, ErrUnknownUser
		}
		return Principal{}, fmt.Errorf("load user: %w", err)
	}
	if !user.IsActive {
		return Principal{}, ErrAccountDisabled
	}

	return Principal{
		ID:    user.ID,
		Email: user.Email,
		Role:  user.Role,
	}, nil
}

// BearerToken extracts the token from a "Bearer <token>" header value.
func BearerToken(authorization string) (string, error) {
	authorization = strings.TrimSpace(authorization)
	if authorization == "" {
		return "", ErrUnauthenticated
	}
	parts := strings.Split(authorization, " ")
	if len(parts) != 2 || parts[0] != bearerScheme {
		return "", ErrMalformedCredential
	}
	token := parts[1]
	if len(token) < minTokenLength || len(token) > maxTokenLength {
		return "", ErrMalformedCredential
	}
	return token, nil
}

package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/darigo/apiserver/types"
	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenTTL is used when no expiry is configured.
const DefaultTokenTTL = 7 * 24 * time.Hour

// Identity is the claim set embedded in a token.
type Identity struct {
	UserID    string
	Email     string
	Role      types.Role
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Claims is the JWT payload. UserID duplicates the subject so older clients
// reading "userId" keep working.
type Claims struct {
	UserID string     `json:"userId"`
	Email  string     `json:"email,omitempty"`
	Role   types.Role `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Codec signs and verifies HS256 tokens with a server-held secret.
type Codec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// CodecOption customizes a Codec.
type CodecOption func(*Codec)

// WithClock overrides the wall clock used for issuing and verifying.
func WithClock(now func() time.Time) CodecOption {
	return func(c *Codec) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCodec constructs a Codec. An empty secret is refused.
func NewCodec(secret string, ttl time.Duration, opts ...CodecOption) (*Codec, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("token secret is required")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	c := &Codec{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// TTL returns the lifetime of issued tokens.
func (c *Codec) TTL() time.Duration {
	return c.ttl
}

// Issue signs a token for the given user.
func (c *Codec) Issue(user types.User) (string, error) {
	now := c.now()
	claims := Claims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token. It returns ErrTokenExpired,
// ErrTokenMalformed or ErrMissingClaim on failure and never panics on
// attacker-controlled input.
func (c *Codec) Verify(tokenString string) (Identity, error) {
	claims := Claims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return c.secret, nil
	},
		jwt.WithTimeFunc(c.now),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, ErrTokenExpired
		}
		return Identity{}, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
	if !token.Valid {
		return Identity{}, ErrTokenMalformed
	}

	userID := strings.TrimSpace(claims.UserID)
	if userID == "" {
		userID = strings.TrimSpace(claims.Subject)
	}
	if userID == "" {
		return Identity{}, ErrMissingClaim
	}

	identity := Identity{
		UserID: userID,
		Email:  claims.Email,
		Role:   claims.Role,
	}
	if claims.IssuedAt != nil {
		identity.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		identity.ExpiresAt = claims.ExpiresAt.Time
	}
	return identity, nil
}

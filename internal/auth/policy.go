package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/darigo/apiserver/internal/store"
	"github.com/darigo/apiserver/types"
)

// CanMutateProperty reports whether principal may update or delete property
// through the owner-scoped routes. Admins get no bypass here; they act
// through the moderation operations.
func CanMutateProperty(principal Principal, property types.Property) bool {
	return principal.ID != "" && principal.ID == property.OwnerID
}

// Policy enforces role requirements against the user store.
type Policy struct {
	users UserLookup
}

func NewPolicy(users UserLookup) *Policy {
	return &Policy{users: users}
}

// RequireRole re-reads the principal's user record and fails with
// ErrForbidden unless it currently holds role and is active. The role
// embedded in the token is ignored.
func (p *Policy) RequireRole(ctx context.Context, principal Principal, role types.Role) (types.User, error) {
	user, err := p.users.GetByID(ctx, principal.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, ErrForbidden
		}
		return types.User{}, fmt.Errorf("load user: %w", err)
	}
	if !user.IsActive || user.Role != role {
		return types.User{}, ErrForbidden
	}
	return user, nil
}

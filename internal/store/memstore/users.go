// Package memstore is an in-process backend used by DB_DRIVER=memory and by
// the service and handler tests. All writes happen under a single mutex so
// every repository call is atomic.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/darigo/apiserver/internal/store"
	"github.com/darigo/apiserver/types"
	"github.com/google/uuid"
)

// UserRepository keeps users in memory.
type UserRepository struct {
	mu      sync.RWMutex
	byID    map[string]types.User
	byEmail map[string]string
	now     func() time.Time
}

func NewUserRepository() *UserRepository {
	return &UserRepository{
		byID:    make(map[string]types.User),
		byEmail: make(map[string]string),
		now:     time.Now,
	}
}

func (r *UserRepository) GetByID(_ context.Context, id string) (types.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.byID[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return cloneUser(user), nil
}

func (r *UserRepository) GetByIDs(_ context.Context, ids []string) (map[string]types.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]types.User, len(ids))
	for _, id := range ids {
		if user, ok := r.byID[id]; ok {
			out[id] = cloneUser(user)
		}
	}
	return out, nil
}

func (r *UserRepository) GetByEmail(_ context.Context, email string) (types.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[types.NormalizeEmail(email)]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return cloneUser(r.byID[id]), nil
}

func (r *UserRepository) Create(_ context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user.Email = types.NormalizeEmail(user.Email)
	if _, exists := r.byEmail[user.Email]; exists {
		return types.User{}, store.ErrConflict
	}
	now := r.now()
	user.ID = uuid.NewString()
	user.CreatedAt = now
	user.UpdatedAt = now

	r.byID[user.ID] = cloneUser(user)
	r.byEmail[user.Email] = user.ID
	return user, nil
}

func (r *UserRepository) UpdateProfile(_ context.Context, id string, update types.ProfileUpdate) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.byID[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	if update.Name != nil {
		user.Name = *update.Name
	}
	if update.Phone != nil {
		user.Phone = *update.Phone
	}
	if update.ProfileImage != nil {
		user.ProfileImage = *update.ProfileImage
	}
	if update.Location != nil {
		location := *update.Location
		user.Location = &location
	}
	if update.AgencyInfo != nil {
		agency := *update.AgencyInfo
		user.AgencyInfo = &agency
	}
	if update.PasswordHash != nil {
		user.PasswordHash = *update.PasswordHash
	}
	user.UpdatedAt = r.now()
	r.byID[id] = user
	return cloneUser(user), nil
}

func (r *UserRepository) SetRole(_ context.Context, id string, role types.Role) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.byID[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	user.Role = role
	user.IsActive = true
	user.UpdatedAt = r.now()
	r.byID[id] = user
	return cloneUser(user), nil
}

func (r *UserRepository) TouchLastLogin(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.byID[id]
	if !ok {
		return store.ErrNotFound
	}
	user.LastLoginAt = &at
	r.byID[id] = user
	return nil
}

func (r *UserRepository) ToggleActive(_ context.Context, id string) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.byID[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	user.IsActive = !user.IsActive
	user.UpdatedAt = r.now()
	r.byID[id] = user
	return cloneUser(user), nil
}

func (r *UserRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.byID[id]
	if !ok {
		return store.ErrNotFound
	}
	delete(r.byEmail, user.Email)
	delete(r.byID, id)
	return nil
}

func (r *UserRepository) Search(_ context.Context, filter types.UserFilter, offset, limit int) ([]types.User, int, error) {
	r.mu.RLock()
	matched := make([]types.User, 0)
	for _, user := range r.byID {
		if matchUser(user, filter) {
			matched = append(matched, cloneUser(user))
		}
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})
	return page(matched, offset, limit), len(matched), nil
}

func (r *UserRepository) Counts(_ context.Context) (types.UserCounts, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := types.UserCounts{ByRole: make(map[types.Role]int)}
	for _, user := range r.byID {
		counts.Total++
		if user.IsActive {
			counts.Active++
		} else {
			counts.Inactive++
		}
		counts.ByRole[user.Role]++
	}
	return counts, nil
}

func matchUser(user types.User, filter types.UserFilter) bool {
	if filter.ActiveOnly && !user.IsActive {
		return false
	}
	if filter.Role != "" && user.Role != filter.Role {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(filter.Query)); q != "" {
		haystack := []string{user.Name, user.Email}
		if user.AgencyInfo != nil {
			haystack = append(haystack, user.AgencyInfo.AgencyName)
		}
		for _, field := range haystack {
			if strings.Contains(strings.ToLower(field), q) {
				return true
			}
		}
		return false
	}
	return true
}

func cloneUser(user types.User) types.User {
	if user.AgencyInfo != nil {
		agency := *user.AgencyInfo
		user.AgencyInfo = &agency
	}
	if user.Location != nil {
		location := *user.Location
		user.Location = &location
	}
	if user.LastLoginAt != nil {
		at := *user.LastLoginAt
		user.LastLoginAt = &at
	}
	return user
}

func page[T any](items []T, offset, limit int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}

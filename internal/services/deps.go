package services

import (
	"context"
	"io"
	"time"

	"github.com/darigo/apiserver/types"
	"go.uber.org/zap"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (types.User, error)
	GetByIDs(ctx context.Context, ids []string) (map[string]types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	UpdateProfile(ctx context.Context, id string, update types.ProfileUpdate) (types.User, error)
	SetRole(ctx context.Context, id string, role types.Role) (types.User, error)
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
	ToggleActive(ctx context.Context, id string) (types.User, error)
	Delete(ctx context.Context, id string) error
	Search(ctx context.Context, filter types.UserFilter, offset, limit int) ([]types.User, int, error)
	Counts(ctx context.Context) (types.UserCounts, error)
}

// PropertyRepository defines persistence operations for properties.
// Methods taking an ownerID match the owner in the same statement as the
// write and report ErrNotFound on mismatch.
type PropertyRepository interface {
	List(ctx context.Context, filter types.PropertyFilter, offset, limit int) ([]types.Property, int, error)
	Get(ctx context.Context, id string) (types.Property, error)
	Create(ctx context.Context, property types.Property) (types.Property, error)
	UpdateOwned(ctx context.Context, id, ownerID string, patch types.PropertyPatch) (types.Property, error)
	// UpdateState writes the moderation fields together. An empty ownerID
	// matches any owner.
	UpdateState(ctx context.Context, id, ownerID string, state types.PropertyState) (types.Property, error)
	DeleteOwned(ctx context.Context, id, ownerID string) (types.Property, error)
	Delete(ctx context.Context, id string) (types.Property, error)
	DeleteByOwner(ctx context.Context, ownerID string) (int, error)
	AddReview(ctx context.Context, id string, review types.Review) (types.Property, error)
	AddMedia(ctx context.Context, id, ownerID string, kind types.MediaKind, media types.Media) (types.Property, error)
	IncrementViews(ctx context.Context, id string) error
	// Counts aggregates listings; an empty ownerID covers every owner.
	Counts(ctx context.Context, ownerID string) (types.PropertyCounts, error)
}

// MediaStore is the object storage used for uploaded media.
type MediaStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	URL(key string) string
}

// EventPublisher emits domain events.
type EventPublisher interface {
	PublishEvent(ctx context.Context, channel string, payload any) error
}

// Upload is a file received from a client.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

func publish(ctx context.Context, logger *zap.Logger, events EventPublisher, channel string, payload any) {
	if events == nil {
		return
	}
	if err := events.PublishEvent(ctx, channel, payload); err != nil {
		logger.Warn("event publish failed", zap.String("channel", channel), zap.Error(err))
	}
}

func clampPage(offset, limit int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return offset, limit
}

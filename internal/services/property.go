package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/darigo/apiserver/internal/auth"
	"github.com/darigo/apiserver/internal/moderation"
	"github.com/darigo/apiserver/internal/mq"
	"github.com/darigo/apiserver/internal/storage"
	"github.com/darigo/apiserver/internal/store"
	"github.com/darigo/apiserver/types"
	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
)

// AdminProperty decorates a listing for the moderation queue.
type AdminProperty struct {
	types.Property
	FullAddress string `json:"fullAddress"`
	TimeAgo     string `json:"timeAgo"`
}

// MediaUpload is a listing photo or video.
type MediaUpload struct {
	Upload
	Kind    types.MediaKind
	Caption string
	IsMain  bool
}

// PropertyService encapsulates property use-cases.
type PropertyService struct {
	repo   PropertyRepository
	users  UserRepository
	media  MediaStore
	events EventPublisher
	logger *zap.Logger
	now    func() time.Time
}

func NewPropertyService(repo PropertyRepository, users UserRepository, logger *zap.Logger) *PropertyService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PropertyService{
		repo:   repo,
		users:  users,
		logger: logger,
		now:    time.Now,
	}
}

// SetMediaStore enables media uploads.
func (s *PropertyService) SetMediaStore(media MediaStore) {
	s.media = media
}

// SetEventPublisher enables property.* events.
func (s *PropertyService) SetEventPublisher(events EventPublisher) {
	s.events = events
}

// ListPublic returns approved and published listings only, whatever the
// filter asks for.
func (s *PropertyService) ListPublic(ctx context.Context, filter types.PropertyFilter, offset, limit int) ([]types.Property, int, error) {
	filter.PublicOnly = true
	filter.Status = ""
	filter.OwnerID = ""
	offset, limit = clampPage(offset, limit)
	items, total, err := s.repo.List(ctx, filter, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	return s.attachOwners(ctx, items), total, nil
}

// ListByOwner returns every listing of ownerID in any status.
func (s *PropertyService) ListByOwner(ctx context.Context, ownerID string, offset, limit int) ([]types.Property, int, error) {
	offset, limit = clampPage(offset, limit)
	return s.repo.List(ctx, types.PropertyFilter{OwnerID: ownerID}, offset, limit)
}

// ListForAdmin returns listings in any status, optionally narrowed to one.
func (s *PropertyService) ListForAdmin(ctx context.Context, status types.PropertyStatus, offset, limit int) ([]AdminProperty, int, error) {
	offset, limit = clampPage(offset, limit)
	items, total, err := s.repo.List(ctx, types.PropertyFilter{Status: status}, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	items = s.attachOwners(ctx, items)
	now := s.now()
	out := make([]AdminProperty, 0, len(items))
	for _, p := range items {
		out = append(out, AdminProperty{
			Property:    p,
			FullAddress: p.Location.FullAddress(),
			TimeAgo:     humanize.RelTime(p.CreatedAt, now, "ago", "from now"),
		})
	}
	return out, total, nil
}

// Get returns a listing. Hidden listings are only shown to their owner or
// to an administrator; everyone else gets store.ErrNotFound. Public reads
// count as a view.
func (s *PropertyService) Get(ctx context.Context, id string, viewer *auth.Principal) (types.Property, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Property{}, err
	}
	if !p.Visible() {
		if viewer == nil || (!auth.CanMutateProperty(*viewer, p) && viewer.Role != types.RoleAdmin) {
			return types.Property{}, store.ErrNotFound
		}
	} else {
		if err := s.repo.IncrementViews(ctx, id); err != nil {
			s.logger.Warn("view counter update failed", zap.String("property_id", id), zap.Error(err))
		} else {
			p.Stats.Views++
		}
	}
	items := s.attachOwners(ctx, []types.Property{p})
	return items[0], nil
}

// Create submits a new listing for moderation.
func (s *PropertyService) Create(ctx context.Context, principal auth.Principal, draft types.PropertyDraft) (types.Property, error) {
	created, err := s.repo.Create(ctx, moderation.Submit(draft, principal.ID, s.now()))
	if err != nil {
		return types.Property{}, err
	}
	s.emit(ctx, mq.ChannelPropertySubmitted, created, principal.ID)
	return created, nil
}

// Update applies an owner edit. Non-owners get store.ErrNotFound.
func (s *PropertyService) Update(ctx context.Context, principal auth.Principal, id string, patch types.PropertyPatch) (types.Property, error) {
	if _, err := s.getOwned(ctx, principal, id); err != nil {
		return types.Property{}, err
	}
	return s.repo.UpdateOwned(ctx, id, principal.ID, patch)
}

// Delete removes an owned listing and its media.
func (s *PropertyService) Delete(ctx context.Context, principal auth.Principal, id string) error {
	if _, err := s.getOwned(ctx, principal, id); err != nil {
		return err
	}
	deleted, err := s.repo.DeleteOwned(ctx, id, principal.ID)
	if err != nil {
		return err
	}
	s.removeMedia(ctx, deleted)
	return nil
}

// AdminDelete removes any listing.
func (s *PropertyService) AdminDelete(ctx context.Context, id string) error {
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	s.removeMedia(ctx, deleted)
	return nil
}

// SetStatus applies a moderation decision. The caller must have checked
// the admin role.
func (s *PropertyService) SetStatus(ctx context.Context, actor auth.Principal, id string, target types.PropertyStatus) (types.Property, error) {
	target, err := moderation.ParseTarget(string(target))
	if err != nil {
		return types.Property{}, err
	}
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Property{}, err
	}
	next, err := moderation.SetStatus(current, target, s.now())
	if err != nil {
		return types.Property{}, err
	}
	updated, err := s.repo.UpdateState(ctx, id, "", next.State())
	if err != nil {
		return types.Property{}, err
	}
	s.emit(ctx, mq.ChannelPropertyModerated, updated, actor.ID)
	return updated, nil
}

// Close marks an owned listing sold, rented or inactive.
func (s *PropertyService) Close(ctx context.Context, principal auth.Principal, id string, target types.PropertyStatus, buyerID string) (types.Property, error) {
	target, err := moderation.ParseCloseTarget(string(target))
	if err != nil {
		return types.Property{}, err
	}
	current, err := s.getOwned(ctx, principal, id)
	if err != nil {
		return types.Property{}, err
	}
	next, err := moderation.Close(current, target, buyerID, s.now())
	if err != nil {
		return types.Property{}, err
	}
	updated, err := s.repo.UpdateState(ctx, id, principal.ID, next.State())
	if err != nil {
		return types.Property{}, err
	}
	s.emit(ctx, mq.ChannelPropertyClosed, updated, principal.ID)
	return updated, nil
}

// AddReview rates a published listing. Owners cannot review their own.
func (s *PropertyService) AddReview(ctx context.Context, principal auth.Principal, id string, rating int, comment string) (types.Property, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Property{}, err
	}
	if !p.Visible() {
		return types.Property{}, store.ErrNotFound
	}
	if auth.CanMutateProperty(principal, p) {
		return types.Property{}, ErrSelfReview
	}
	for _, review := range p.Reviews {
		if review.UserID == principal.ID {
			return types.Property{}, ErrAlreadyReviewed
		}
	}
	return s.repo.AddReview(ctx, id, types.Review{
		UserID:    principal.ID,
		Rating:    rating,
		Comment:   strings.TrimSpace(comment),
		CreatedAt: s.now(),
	})
}

// UploadMedia stores a file and appends it to the listing's images or videos.
func (s *PropertyService) UploadMedia(ctx context.Context, principal auth.Principal, id string, upload MediaUpload) (types.Property, error) {
	if s.media == nil {
		return types.Property{}, ErrStorageDisabled
	}
	if _, err := s.getOwned(ctx, principal, id); err != nil {
		return types.Property{}, err
	}

	key := storage.ObjectKey("properties/"+id, upload.Filename)
	if err := s.media.Put(ctx, key, upload.Body, upload.Size, upload.ContentType); err != nil {
		return types.Property{}, fmt.Errorf("store media: %w", err)
	}
	updated, err := s.repo.AddMedia(ctx, id, principal.ID, upload.Kind, types.Media{
		URL:        s.media.URL(key),
		Key:        key,
		Caption:    strings.TrimSpace(upload.Caption),
		IsMain:     upload.IsMain,
		UploadedAt: s.now(),
	})
	if err != nil {
		s.deleteObject(ctx, key)
		return types.Property{}, err
	}
	return updated, nil
}

// Counts aggregates listings of ownerID, or of everyone when empty.
func (s *PropertyService) Counts(ctx context.Context, ownerID string) (types.PropertyCounts, error) {
	return s.repo.Counts(ctx, ownerID)
}

func (s *PropertyService) getOwned(ctx context.Context, principal auth.Principal, id string) (types.Property, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Property{}, err
	}
	if !auth.CanMutateProperty(principal, p) {
		return types.Property{}, store.ErrNotFound
	}
	return p, nil
}

func (s *PropertyService) attachOwners(ctx context.Context, items []types.Property) []types.Property {
	if len(items) == 0 {
		return items
	}
	ids := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, p := range items {
		if _, ok := seen[p.OwnerID]; ok || p.OwnerID == "" {
			continue
		}
		seen[p.OwnerID] = struct{}{}
		ids = append(ids, p.OwnerID)
	}
	owners, err := s.users.GetByIDs(ctx, ids)
	if err != nil {
		s.logger.Warn("owner lookup failed", zap.Error(err))
		return items
	}
	for i := range items {
		if owner, ok := owners[items[i].OwnerID]; ok {
			summary := owner.Summary()
			items[i].Owner = &summary
		}
	}
	return items
}

func (s *PropertyService) emit(ctx context.Context, channel string, p types.Property, actorID string) {
	publish(ctx, s.logger, s.events, channel, mq.PropertyEvent{
		PropertyID:  p.ID,
		OwnerID:     p.OwnerID,
		ActorID:     actorID,
		Status:      string(p.Status),
		IsPublished: p.IsPublished,
	})
}

func (s *PropertyService) removeMedia(ctx context.Context, p types.Property) {
	if s.media == nil {
		return
	}
	for _, m := range append(append([]types.Media{}, p.Images...), p.Videos...) {
		if m.Key != "" {
			s.deleteObject(ctx, m.Key)
		}
	}
}

func (s *PropertyService) deleteObject(ctx context.Context, key string) {
	if err := s.media.Delete(ctx, key); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
		s.logger.Warn("media cleanup failed", zap.String("key", key), zap.Error(err))
	}
}

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

// PropertyRepository keeps properties in memory.
type PropertyRepository struct {
	mu    sync.RWMutex
	items map[string]types.Property
	now   func() time.Time
}

func NewPropertyRepository() *PropertyRepository {
	return &PropertyRepository{
		items: make(map[string]types.Property),
		now:   time.Now,
	}
}

func (r *PropertyRepository) List(_ context.Context, filter types.PropertyFilter, offset, limit int) ([]types.Property, int, error) {
	r.mu.RLock()
	matched := make([]types.Property, 0)
	for _, p := range r.items {
		if matchProperty(p, filter) {
			matched = append(matched, cloneProperty(p))
		}
	}
	r.mu.RUnlock()

	sortProperties(matched, filter.SortBy, filter.SortAsc)
	return page(matched, offset, limit), len(matched), nil
}

func (r *PropertyRepository) Get(_ context.Context, id string) (types.Property, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.items[id]
	if !ok {
		return types.Property{}, store.ErrNotFound
	}
	return cloneProperty(p), nil
}

func (r *PropertyRepository) Create(_ context.Context, p types.Property) (types.Property, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p.ID = uuid.NewString()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = r.now()
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}
	p.Owner = nil
	r.items[p.ID] = cloneProperty(p)
	return p, nil
}

func (r *PropertyRepository) UpdateOwned(_ context.Context, id, ownerID string, patch types.PropertyPatch) (types.Property, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.items[id]
	if !ok || p.OwnerID != ownerID {
		return types.Property{}, store.ErrNotFound
	}
	patch.ApplyTo(&p)
	p.UpdatedAt = r.now()
	r.items[id] = cloneProperty(p)
	return p, nil
}

func (r *PropertyRepository) UpdateState(_ context.Context, id, ownerID string, state types.PropertyState) (types.Property, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.items[id]
	if !ok || (ownerID != "" && p.OwnerID != ownerID) {
		return types.Property{}, store.ErrNotFound
	}
	p = p.WithState(state)
	r.items[id] = cloneProperty(p)
	return p, nil
}

func (r *PropertyRepository) DeleteOwned(_ context.Context, id, ownerID string) (types.Property, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.items[id]
	if !ok || p.OwnerID != ownerID {
		return types.Property{}, store.ErrNotFound
	}
	delete(r.items, id)
	return p, nil
}

func (r *PropertyRepository) Delete(_ context.Context, id string) (types.Property, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.items[id]
	if !ok {
		return types.Property{}, store.ErrNotFound
	}
	delete(r.items, id)
	return p, nil
}

func (r *PropertyRepository) DeleteByOwner(_ context.Context, ownerID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, p := range r.items {
		if p.OwnerID == ownerID {
			delete(r.items, id)
			removed++
		}
	}
	return removed, nil
}

func (r *PropertyRepository) AddReview(_ context.Context, id string, review types.Review) (types.Property, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.items[id]
	if !ok || !p.Visible() {
		return types.Property{}, store.ErrNotFound
	}
	total := p.AverageRating * float64(p.TotalReviews)
	p.Reviews = append(p.Reviews, review)
	p.TotalReviews++
	p.AverageRating = (total + float64(review.Rating)) / float64(p.TotalReviews)
	p.UpdatedAt = r.now()
	r.items[id] = cloneProperty(p)
	return p, nil
}

func (r *PropertyRepository) AddMedia(_ context.Context, id, ownerID string, kind types.MediaKind, media types.Media) (types.Property, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.items[id]
	if !ok || p.OwnerID != ownerID {
		return types.Property{}, store.ErrNotFound
	}
	if kind == types.MediaVideo {
		p.Videos = append(p.Videos, media)
	} else {
		p.Images = append(p.Images, media)
	}
	p.UpdatedAt = r.now()
	r.items[id] = cloneProperty(p)
	return p, nil
}

func (r *PropertyRepository) IncrementViews(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.items[id]
	if !ok {
		return store.ErrNotFound
	}
	p.Stats.Views++
	r.items[id] = p
	return nil
}

func (r *PropertyRepository) Counts(_ context.Context, ownerID string) (types.PropertyCounts, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := types.PropertyCounts{ByType: make(map[types.ListingType]int)}
	for _, p := range r.items {
		if ownerID != "" && p.OwnerID != ownerID {
			continue
		}
		counts.Total++
		if p.Visible() {
			counts.Published++
		}
		switch p.Status {
		case types.StatusPending:
			counts.Pending++
		case types.StatusApproved:
			counts.Approved++
		case types.StatusRejected:
			counts.Rejected++
		}
		counts.Views += p.Stats.Views
		counts.ByType[p.Type]++
	}
	return counts, nil
}

func matchProperty(p types.Property, f types.PropertyFilter) bool {
	if f.PublicOnly && !p.Visible() {
		return false
	}
	if f.Status != "" && p.Status != f.Status {
		return false
	}
	if f.OwnerID != "" && p.OwnerID != f.OwnerID {
		return false
	}
	if f.Type != "" && p.Type != f.Type {
		return false
	}
	if f.Category != "" && p.Category != f.Category {
		return false
	}
	if f.City != "" && !strings.EqualFold(p.Location.City, f.City) {
		return false
	}
	if f.District != "" && !strings.EqualFold(p.Location.District, f.District) {
		return false
	}
	if f.MinPrice != nil && p.Price < *f.MinPrice {
		return false
	}
	if f.MaxPrice != nil && p.Price > *f.MaxPrice {
		return false
	}
	if f.MinArea != nil && p.Area < *f.MinArea {
		return false
	}
	if f.MaxArea != nil && p.Area > *f.MaxArea {
		return false
	}
	if f.Rooms != nil && p.Rooms != *f.Rooms {
		return false
	}
	if f.Bathrooms != nil && p.Bathrooms != *f.Bathrooms {
		return false
	}
	if len(f.Features) > 0 && !hasAny(p.Features, f.Features) {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		if !strings.Contains(strings.ToLower(p.Title), q) && !strings.Contains(strings.ToLower(p.Description), q) {
			return false
		}
	}
	return true
}

func hasAny(have, want []string) bool {
	for _, w := range want {
		for _, h := range have {
			if h == w {
				return true
			}
		}
	}
	return false
}

func sortProperties(items []types.Property, sortBy string, asc bool) {
	less := func(a, b types.Property) int {
		switch sortBy {
		case types.SortPrice:
			return compareFloat(a.Price, b.Price)
		case types.SortArea:
			return compareFloat(a.Area, b.Area)
		case types.SortViews:
			return compareFloat(float64(a.Stats.Views), float64(b.Stats.Views))
		default:
			return a.CreatedAt.Compare(b.CreatedAt)
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		c := less(items[i], items[j])
		if c == 0 {
			return items[i].ID < items[j].ID
		}
		if asc {
			return c < 0
		}
		return c > 0
	})
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cloneProperty(p types.Property) types.Property {
	p.Features = append([]string{}, p.Features...)
	p.Tags = append([]string{}, p.Tags...)
	p.Images = append([]types.Media{}, p.Images...)
	p.Videos = append([]types.Media{}, p.Videos...)
	p.Reviews = append([]types.Review{}, p.Reviews...)
	if p.DailyRentInfo != nil {
		info := *p.DailyRentInfo
		info.AvailableDays = append([]types.AvailableDay(nil), info.AvailableDays...)
		p.DailyRentInfo = &info
	}
	if p.FarmInfo != nil {
		info := *p.FarmInfo
		p.FarmInfo = &info
	}
	if p.Location.Coordinates != nil {
		coords := *p.Location.Coordinates
		p.Location.Coordinates = &coords
	}
	return p
}

// Package moderation governs the lifecycle of a property's status and
// publish flag. Every function is a pure transition: it takes the current
// document and returns the complete next one, leaving persistence to the
// caller, which must write the resulting state in a single update.
package moderation

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/darigo/apiserver/types"
)

var (
	// ErrInvalidStatus is returned for a target outside the allowed set.
	ErrInvalidStatus = errors.New("invalid status")
	// ErrInvariant is returned when a document breaks the publish rule.
	ErrInvariant = errors.New("isPublished must be true iff status is approved")
)

// ModerationTargets are the statuses an admin may set.
var ModerationTargets = []types.PropertyStatus{
	types.StatusPending,
	types.StatusApproved,
	types.StatusRejected,
}

// CloseTargets are the statuses an owner may close a listing with.
var CloseTargets = []types.PropertyStatus{
	types.StatusSold,
	types.StatusRented,
	types.StatusInactive,
}

// ParseTarget validates a moderation target. Matching is exact: padded or
// differently cased values are rejected.
func ParseTarget(raw string) (types.PropertyStatus, error) {
	return parseIn(raw, ModerationTargets)
}

// ParseCloseTarget validates an owner close target.
func ParseCloseTarget(raw string) (types.PropertyStatus, error) {
	return parseIn(raw, CloseTargets)
}

func parseIn(raw string, allowed []types.PropertyStatus) (types.PropertyStatus, error) {
	for _, candidate := range allowed {
		if raw == string(candidate) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
}

// Submit builds a new listing from draft. The result is always pending and
// unpublished whatever the caller sent.
func Submit(draft types.PropertyDraft, ownerID string, now time.Time) types.Property {
	return types.Property{
		Title:              draft.Title,
		Description:        draft.Description,
		Type:               draft.Type,
		Category:           draft.Category,
		Price:              draft.Price,
		Area:               draft.Area,
		Rooms:              draft.Rooms,
		Bathrooms:          draft.Bathrooms,
		Location:           draft.Location,
		Features:           nonNil(draft.Features),
		AdditionalFeatures: draft.AdditionalFeatures,
		Images:             nonNilMedia(draft.Images),
		Videos:             nonNilMedia(draft.Videos),
		OwnerID:            ownerID,
		Status:             types.StatusPending,
		IsPublished:        false,
		DailyRentInfo:      draft.DailyRentInfo,
		FarmInfo:           draft.FarmInfo,
		Reviews:            []types.Review{},
		ExpiryDate:         draft.ExpiryDate,
		Tags:               normalizeTags(draft.Tags),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// SetStatus applies an admin moderation decision.
//
//	approved: published, publishedAt = now
//	rejected: unpublished, publishedAt kept as history
//	pending:  unpublished
//
// The caller is responsible for having verified the admin role.
func SetStatus(p types.Property, target types.PropertyStatus, now time.Time) (types.Property, error) {
	target, err := ParseTarget(string(target))
	if err != nil {
		return p, err
	}

	state := p.State()
	state.Status = target
	state.UpdatedAt = now
	switch target {
	case types.StatusApproved:
		published := now
		state.IsPublished = true
		state.PublishedAt = &published
	case types.StatusRejected, types.StatusPending:
		state.IsPublished = false
	}
	return p.WithState(state), nil
}

// Close marks a listing sold, rented or inactive on behalf of its owner.
// Closed listings are never published.
func Close(p types.Property, target types.PropertyStatus, buyerID string, now time.Time) (types.Property, error) {
	target, err := ParseCloseTarget(string(target))
	if err != nil {
		return p, err
	}

	state := p.State()
	state.Status = target
	state.IsPublished = false
	state.UpdatedAt = now
	if target == types.StatusSold {
		soldAt := now
		state.SoldAt = &soldAt
		state.SoldTo = strings.TrimSpace(buyerID)
	}
	return p.WithState(state), nil
}

// Check verifies the publish invariant on p.
func Check(p types.Property) error {
	if p.IsPublished != (p.Status == types.StatusApproved) {
		return fmt.Errorf("%w (status=%s, isPublished=%t)", ErrInvariant, p.Status, p.IsPublished)
	}
	return nil
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func nonNilMedia(values []types.Media) []types.Media {
	if values == nil {
		return []types.Media{}
	}
	return values
}

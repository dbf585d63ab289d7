// Package mq carries the API's domain events over a pluggable broker.
// Payloads are JSON; the envelope metadata rides in broker attributes so
// consumers can route without decoding the body.
package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Domain event channels.
const (
	ChannelPropertySubmitted = "property.submitted"
	ChannelPropertyModerated = "property.moderated"
	ChannelPropertyClosed    = "property.closed"
	ChannelUserRegistered    = "user.registered"
	ChannelUserStatusToggled = "user.status_toggled"
)

// Channels lists every channel the API publishes to.
var Channels = []string{
	ChannelPropertySubmitted,
	ChannelPropertyModerated,
	ChannelPropertyClosed,
	ChannelUserRegistered,
	ChannelUserStatusToggled,
}

// Envelope attribute keys.
const (
	AttrContentType = "content-type"
	AttrChannel     = "channel"
	AttrOccurredAt  = "occurred-at"

	contentTypeJSON = "application/json"
)

// Message is an event as delivered to a subscriber.
type Message struct {
	ID         string
	Channel    string
	Data       []byte
	Attributes map[string]string
}

// OccurredAt reports when the publisher emitted the event. The zero time
// is returned when the attribute is missing or malformed.
func (m Message) OccurredAt() time.Time {
	ts, err := time.Parse(time.RFC3339Nano, m.Attributes[AttrOccurredAt])
	if err != nil {
		return time.Time{}
	}
	return ts
}

// Decode unmarshals the JSON payload into dst.
func (m Message) Decode(dst any) error {
	if ct := m.Attributes[AttrContentType]; ct != "" && ct != contentTypeJSON {
		return fmt.Errorf("unsupported content type %q", ct)
	}
	return json.Unmarshal(m.Data, dst)
}

// Handler processes a message. Returning an error nacks it for redelivery.
type Handler func(ctx context.Context, msg Message) error

// Backend is the broker-specific transport behind a Bus.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

// Bus publishes and consumes domain events on a Backend.
type Bus struct {
	backend Backend
	now     func() time.Time
}

// New wraps backend in a Bus.
func New(backend Backend) *Bus {
	return &Bus{backend: backend, now: time.Now}
}

// Publish JSON-encodes payload and sends it on channel, returning the
// broker's message ID.
func (b *Bus) Publish(ctx context.Context, channel string, payload any) (string, error) {
	if channel == "" {
		return "", errors.New("channel is required")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode %s event: %w", channel, err)
	}
	attrs := map[string]string{
		AttrContentType: contentTypeJSON,
		AttrChannel:     channel,
		AttrOccurredAt:  b.now().UTC().Format(time.RFC3339Nano),
	}
	id, err := b.backend.Publish(ctx, channel, data, attrs)
	if err != nil {
		return "", fmt.Errorf("publish %s event: %w", channel, err)
	}
	return id, nil
}

// PublishEvent is Publish without the message ID.
func (b *Bus) PublishEvent(ctx context.Context, channel string, payload any) error {
	_, err := b.Publish(ctx, channel, payload)
	return err
}

// Subscribe consumes channel until ctx ends. Each delivered message is
// stamped with the channel it arrived on.
func (b *Bus) Subscribe(ctx context.Context, channel string, handler Handler) error {
	return b.backend.Subscribe(ctx, channel, func(ctx context.Context, msg Message) error {
		msg.Channel = channel
		return handler(ctx, msg)
	})
}

// Close releases the backend connection.
func (b *Bus) Close() error {
	return b.backend.Close()
}

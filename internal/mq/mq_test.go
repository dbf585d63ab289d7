package mq

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	channel string
	data    []byte
	attrs   map[string]string
}

type fakeBackend struct {
	sent       []published
	inbox      []Message
	publishErr error
	closed     bool
}

func (f *fakeBackend) Publish(_ context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if f.publishErr != nil {
		return "", f.publishErr
	}
	f.sent = append(f.sent, published{channel: channel, data: data, attrs: attrs})
	return "msg-1", nil
}

func (f *fakeBackend) Subscribe(ctx context.Context, _ string, handler Handler) error {
	for _, msg := range f.inbox {
		if err := handler(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeBackend) Close() error {
	f.closed = true
	return nil
}

func TestBusPublishEnvelope(t *testing.T) {
	backend := &fakeBackend{}
	bus := New(backend)
	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	bus.now = func() time.Time { return at }

	id, err := bus.Publish(context.Background(), ChannelPropertyModerated, PropertyEvent{
		PropertyID:  "p-1",
		OwnerID:     "u-1",
		Status:      "approved",
		IsPublished: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "msg-1", id)

	require.Len(t, backend.sent, 1)
	sent := backend.sent[0]
	assert.Equal(t, ChannelPropertyModerated, sent.channel)
	assert.JSONEq(t, `{"propertyId":"p-1","ownerId":"u-1","status":"approved","isPublished":true}`, string(sent.data))
	assert.Equal(t, "application/json", sent.attrs[AttrContentType])
	assert.Equal(t, ChannelPropertyModerated, sent.attrs[AttrChannel])

	msg := Message{Data: sent.data, Attributes: sent.attrs}
	assert.Equal(t, at, msg.OccurredAt())
	var event PropertyEvent
	require.NoError(t, msg.Decode(&event))
	assert.Equal(t, "p-1", event.PropertyID)
}

func TestBusPublishErrors(t *testing.T) {
	backend := &fakeBackend{publishErr: errors.New("broker down")}
	bus := New(backend)

	err := bus.PublishEvent(context.Background(), ChannelUserRegistered, UserEvent{UserID: "u-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish user.registered event")

	_, err = bus.Publish(context.Background(), "", UserEvent{})
	require.Error(t, err)

	_, err = New(&fakeBackend{}).Publish(context.Background(), ChannelUserRegistered, func() {})
	require.Error(t, err)
}

func TestBusSubscribeStampsChannel(t *testing.T) {
	backend := &fakeBackend{inbox: []Message{{ID: "a", Data: []byte(`{}`)}, {ID: "b", Data: []byte(`{}`)}}}
	bus := New(backend)

	var got []Message
	err := bus.Subscribe(context.Background(), ChannelPropertyClosed, func(_ context.Context, msg Message) error {
		got = append(got, msg)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, msg := range got {
		assert.Equal(t, ChannelPropertyClosed, msg.Channel)
	}
	assert.True(t, got[0].OccurredAt().IsZero())

	require.NoError(t, bus.Close())
	assert.True(t, backend.closed)
}

func TestMessageDecodeRejectsForeignContentType(t *testing.T) {
	msg := Message{Data: []byte(`<xml/>`), Attributes: map[string]string{AttrContentType: "text/xml"}}
	var dst map[string]any
	require.Error(t, msg.Decode(&dst))
}

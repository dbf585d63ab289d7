package mq

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/darigo/apiserver/config"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// NATSClient publishes each channel as a NATS subject. Delivery is at most
// once; handler errors are logged, not redelivered.
type NATSClient struct {
	nc     *nats.Conn
	logger *zap.Logger
}

// NewNATSClient connects to the NATS server at cfg.URL.
func NewNATSClient(cfg config.NATSConfig, logger *zap.Logger) (*NATSClient, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("nats url is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := []nats.Option{
		nats.Name("darigo-apiserver"),
		nats.Timeout(cfg.ConnectTimeout),
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			subject := ""
			if sub != nil {
				subject = sub.Subject
			}
			logger.Error("nats error", zap.String("subject", subject), zap.Error(err))
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	}
	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	return &NATSClient{nc: nc, logger: logger}, nil
}

func (n *NATSClient) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", errors.New("nats channel is required")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	messageID := newMessageID()
	msg := nats.NewMsg(channel)
	msg.Data = data
	msg.Header.Set(nats.MsgIdHdr, messageID)
	for key, value := range attrs {
		msg.Header.Set(key, value)
	}
	if err := n.nc.PublishMsg(msg); err != nil {
		return "", err
	}
	return messageID, nil
}

func (n *NATSClient) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("nats channel is required")
	}

	msgs := make(chan *nats.Msg, 64)
	sub, err := n.nc.ChanSubscribe(channel, msgs)
	if err != nil {
		return err
	}
	defer func() {
		_ = sub.Unsubscribe()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-msgs:
			attrs := make(map[string]string, len(msg.Header))
			for key := range msg.Header {
				attrs[key] = msg.Header.Get(key)
			}
			message := Message{
				ID:         msg.Header.Get(nats.MsgIdHdr),
				Data:       msg.Data,
				Attributes: attrs,
			}
			if err := handler(ctx, message); err != nil {
				n.logger.Warn("nats handler failed", zap.String("subject", channel), zap.Error(err))
			}
		}
	}
}

// Close drains pending messages before closing the connection.
func (n *NATSClient) Close() error {
	return n.nc.Drain()
}

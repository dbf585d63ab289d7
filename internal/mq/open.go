package mq

import (
	"context"
	"fmt"
	"strings"

	"github.com/darigo/apiserver/config"
	"go.uber.org/zap"
)

// Open builds the backend selected by cfg.Backend. It returns (nil, nil)
// when events are disabled.
func Open(ctx context.Context, cfg config.MQConfig, logger *zap.Logger) (*Bus, error) {
	var (
		backend Backend
		err     error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "":
		return nil, nil
	case "rabbitmq":
		backend, err = NewRabbitMQClient(cfg.RabbitMQ)
	case "pubsub":
		backend, err = NewPubSubClient(ctx, cfg.PubSub)
	case "nats":
		backend, err = NewNATSClient(cfg.NATS, logger)
	default:
		return nil, fmt.Errorf("unsupported mq backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	return New(backend), nil
}

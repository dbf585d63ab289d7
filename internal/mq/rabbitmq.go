package mq

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/darigo/apiserver/config"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitMQClient publishes events to a topic exchange, using the channel
// name as routing key. Each subscriber gets its own queue bound to it.
type RabbitMQClient struct {
	conn            *amqp.Connection
	mu              sync.Mutex
	channel         *amqp.Channel
	exchange        string
	queueDurable    bool
	queueAutoDelete bool
	prefetchCount   int
}

// NewRabbitMQClient dials the broker and declares the events exchange.
func NewRabbitMQClient(cfg config.RabbitMQConfig) (*RabbitMQClient, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("rabbitmq url is required")
	}
	exchange := strings.TrimSpace(cfg.Exchange)
	if exchange == "" {
		return nil, errors.New("rabbitmq exchange is required")
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	return &RabbitMQClient{
		conn:            conn,
		channel:         ch,
		exchange:        exchange,
		queueDurable:    cfg.QueueDurable,
		queueAutoDelete: cfg.QueueAutoDelete,
		prefetchCount:   cfg.PrefetchCount,
	}, nil
}

// Publish sends a persistent message routed by channel. The shared AMQP
// channel is not safe for concurrent publishes, hence the lock.
func (r *RabbitMQClient) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", errors.New("rabbitmq channel is required")
	}

	headers := amqp.Table{}
	for key, value := range attrs {
		headers[key] = value
	}
	contentType := attrs[AttrContentType]
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	messageID := newMessageID()
	r.mu.Lock()
	defer r.mu.Unlock()
	err := r.channel.PublishWithContext(ctx, r.exchange, channel, false, false, amqp.Publishing{
		ContentType:  contentType,
		DeliveryMode: amqp.Persistent,
		MessageId:    messageID,
		Headers:      headers,
		Body:         data,
	})
	if err != nil {
		return "", err
	}
	return messageID, nil
}

// Subscribe binds a queue named after channel to the exchange and consumes
// it on a dedicated AMQP channel until ctx is done.
func (r *RabbitMQClient) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("rabbitmq channel is required")
	}

	ch, err := r.conn.Channel()
	if err != nil {
		return err
	}
	defer func() {
		_ = ch.Close()
	}()
	if r.prefetchCount > 0 {
		if err := ch.Qos(r.prefetchCount, 0, false); err != nil {
			return err
		}
	}

	queue, err := ch.QueueDeclare(channel, r.queueDurable, r.queueAutoDelete, false, false, nil)
	if err != nil {
		return err
	}
	if err := ch.QueueBind(queue.Name, channel, r.exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", queue.Name, err)
	}

	consumerTag := fmt.Sprintf("consumer-%s", newMessageID())
	deliveries, err := ch.Consume(queue.Name, consumerTag, false, false, false, false, nil)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			_ = ch.Cancel(consumerTag, false)
			return ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				return errors.New("rabbitmq delivery channel closed")
			}
			message := Message{
				ID:         delivery.MessageId,
				Data:       delivery.Body,
				Attributes: headersToAttributes(delivery.Headers),
			}
			if err := handler(ctx, message); err != nil {
				_ = delivery.Nack(false, true)
				continue
			}
			_ = delivery.Ack(false)
		}
	}
}

func (r *RabbitMQClient) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.channel != nil {
		_ = r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

func headersToAttributes(headers amqp.Table) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	attrs := make(map[string]string, len(headers))
	for key, value := range headers {
		switch typed := value.(type) {
		case string:
			attrs[key] = typed
		case []byte:
			attrs[key] = string(typed)
		default:
			attrs[key] = fmt.Sprint(value)
		}
	}
	return attrs
}

func newMessageID() string {
	return uuid.NewString()
}

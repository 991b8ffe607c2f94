package mq

import (
	"context"
	"fmt"

	"github.com/mlearn/apiserver/config"
)

// Message represents a broker-agnostic payload delivered to subscribers.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// Handler processes a message. Return an error to signal a retry/nack.
type Handler func(ctx context.Context, msg Message) error

// Backend defines the broker-agnostic operations used by the app.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

// New connects the backend selected by cfg.Backend. An empty backend returns nil, nil.
func New(ctx context.Context, cfg config.MQConfig) (Backend, error) {
	switch cfg.Backend {
	case "", "none":
		return nil, nil
	case "memory":
		return NewMemoryBackend(), nil
	case "rabbitmq":
		return NewRabbitMQBackend(cfg.RabbitMQ)
	case "pubsub":
		return NewPubSubBackend(ctx, cfg.PubSub)
	default:
		return nil, fmt.Errorf("unknown mq backend %q", cfg.Backend)
	}
}

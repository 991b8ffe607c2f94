package mq

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// MemoryBackend fans messages out to in-process subscribers. Messages published
// before any subscriber attaches are kept and delivered to the first one.
type MemoryBackend struct {
	mu     sync.Mutex
	queues map[string]chan Message
	closed bool
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{queues: make(map[string]chan Message)}
}

func (m *MemoryBackend) queue(channel string) (chan Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, errors.New("mq backend closed")
	}
	q, ok := m.queues[channel]
	if !ok {
		q = make(chan Message, 256)
		m.queues[channel] = q
	}
	return q, nil
}

func (m *MemoryBackend) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if channel == "" {
		return "", errors.New("mq channel is required")
	}
	q, err := m.queue(channel)
	if err != nil {
		return "", err
	}
	msg := Message{ID: uuid.NewString(), Data: append([]byte(nil), data...), Attributes: attrs}
	select {
	case q <- msg:
		return msg.ID, nil
	case <-ctx.Done():
		return "", ctx.Err()
	default:
		return "", errors.New("mq queue full")
	}
}

// Subscribe delivers messages until ctx is done. A failed message is redelivered.
func (m *MemoryBackend) Subscribe(ctx context.Context, channel string, handler Handler) error {
	q, err := m.queue(channel)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-q:
			if err := handler(ctx, msg); err != nil {
				select {
				case q <- msg:
				default:
				}
			}
		}
	}
}

func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

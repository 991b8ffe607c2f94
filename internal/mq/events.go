package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// EventType names a change in enrollment state.
type EventType string

const (
	EventEnrollmentCreated EventType = "enrollment.created"
	EventEnrollmentDeleted EventType = "enrollment.deleted"
	EventCourseDeleted     EventType = "course.deleted"
)

// AttrEventType is the message attribute carrying the EventType.
const AttrEventType = "event_type"

// Event is the JSON body published for every enrollment change.
type Event struct {
	Type        EventType `json:"type"`
	CourseID    int       `json:"course_id"`
	StudentID   int       `json:"student_id,omitempty"`
	ProfessorID int       `json:"professor_id,omitempty"`
	Removed     int       `json:"removed,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Publisher serializes events onto a channel of a Backend.
// A nil backend turns Publish into a no-op.
type Publisher struct {
	backend Backend
	channel string
	logger  *slog.Logger
}

func NewPublisher(backend Backend, channel string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{backend: backend, channel: channel, logger: logger}
}

// Publish sends the event. Failures are logged, not returned.
func (p *Publisher) Publish(ctx context.Context, event Event) {
	if p == nil || p.backend == nil {
		return
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	data, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("encode event", "type", event.Type, "error", err)
		return
	}
	id, err := p.backend.Publish(ctx, p.channel, data, map[string]string{AttrEventType: string(event.Type)})
	if err != nil {
		p.logger.Warn("publish event failed", "type", event.Type, "course_id", event.CourseID, "error", err)
		return
	}
	p.logger.Debug("event published", "type", event.Type, "id", id)
}

// DecodeEvent parses a message produced by Publisher.
func DecodeEvent(msg Message) (Event, error) {
	var event Event
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		return Event{}, fmt.Errorf("decode event %s: %w", msg.ID, err)
	}
	return event, nil
}

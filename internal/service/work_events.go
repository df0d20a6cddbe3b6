package service

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// EventPublisher is the subset of a NATS connection used to broadcast work events.
type EventPublisher interface {
	Publish(subject string, data []byte) error
}

// WorkStatusChangedEvent is broadcast after a work status change is committed.
type WorkStatusChangedEvent struct {
	Source     string    `json:"source"`
	WorkID     uint      `json:"work_id"`
	TaskID     uint      `json:"task_id"`
	StudentID  uint      `json:"student_id"`
	TeacherID  uint      `json:"teacher_id"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	ActorID    uint      `json:"actor_id"`
	ActorRole  string    `json:"actor_role"`
	OccurredAt time.Time `json:"occurred_at"`
}

type workEvents struct {
	publisher EventPublisher
	subject   string
	nodeID    string
	logger    zerolog.Logger
}

func newWorkEvents(publisher EventPublisher, subjectBase string, logger zerolog.Logger) *workEvents {
	subject := ""
	if subjectBase != "" {
		subject = subjectBase + ".status_changed"
	}
	return &workEvents{
		publisher: publisher,
		subject:   subject,
		nodeID:    uuid.NewString(),
		logger:    logger.With().Str("component", "work_events").Logger(),
	}
}

// statusChanged publishes the event; broker failures are logged and never surface.
func (e *workEvents) statusChanged(event WorkStatusChangedEvent) {
	if e == nil || e.publisher == nil || e.subject == "" {
		return
	}

	event.Source = e.nodeID
	payload, err := json.Marshal(event)
	if err != nil {
		e.logger.Warn().Err(err).Msg("failed to encode work event")
		return
	}

	if err := e.publisher.Publish(e.subject, payload); err != nil {
		e.logger.Warn().Err(err).Uint("work_id", event.WorkID).Msg("failed to publish work event")
	}
}

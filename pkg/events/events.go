package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/diagnosis/terminfinder/pkg/logger"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

type Publisher interface {
	Publish(ctx context.Context, subject string, data interface{}) error
	Close() error
}

type NATSPublisher struct {
	conn *nats.Conn
}

func NewNATSPublisher(url, name string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSPublisher{conn: conn}, nil
}

func (n *NATSPublisher) Publish(ctx context.Context, subject string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	logger.DebugContext(ctx, "Publishing event", "subject", subject, "data", string(payload))

	msg := nats.NewMsg(subject)
	msg.Data = payload
	if requestID, ok := ctx.Value(logger.RequestIDKey).(string); ok {
		msg.Header.Set("X-Request-ID", requestID)
	}
	return n.conn.PublishMsg(msg)
}

func (n *NATSPublisher) Close() error {
	if err := n.conn.Drain(); err != nil {
		n.conn.Close()
		return err
	}
	return nil
}

// NopPublisher drops every event. Used when NATS is disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, interface{}) error { return nil }
func (NopPublisher) Close() error                                       { return nil }

// Event subjects
const (
	AppointmentCreated       = "appointment.created"
	AppointmentUpdated       = "appointment.updated"
	AppointmentStatusChanged = "appointment.status_changed"
	ParticipantsChanged      = "appointment.participants.changed"
	SuggestedDatesChanged    = "appointment.suggested_dates.changed"
)

// Event payloads. None of them carry the admin id or the password.
type AppointmentCreatedEvent struct {
	CustomerID         uuid.UUID `json:"customer_id"`
	AppointmentID      uuid.UUID `json:"appointment_id"`
	Subject            string    `json:"subject"`
	Protected          bool      `json:"protected"`
	SuggestedDateCount int       `json:"suggested_date_count"`
	ParticipantCount   int       `json:"participant_count"`
	CreatedAt          time.Time `json:"created_at"`
}

type AppointmentUpdatedEvent struct {
	CustomerID    uuid.UUID `json:"customer_id"`
	AppointmentID uuid.UUID `json:"appointment_id"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type AppointmentStatusChangedEvent struct {
	CustomerID    uuid.UUID `json:"customer_id"`
	AppointmentID uuid.UUID `json:"appointment_id"`
	From          string    `json:"from"`
	To            string    `json:"to"`
	ChangedAt     time.Time `json:"changed_at"`
}

type CollectionChangedEvent struct {
	CustomerID    uuid.UUID   `json:"customer_id"`
	AppointmentID uuid.UUID   `json:"appointment_id"`
	Deleted       []uuid.UUID `json:"deleted,omitempty"`
	ChangedAt     time.Time   `json:"changed_at"`
}

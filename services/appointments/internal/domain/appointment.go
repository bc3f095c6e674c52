package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	AppointmentUndefined AppointmentStatus = "undefined"
	AppointmentStarted   AppointmentStatus = "started"
	AppointmentPaused    AppointmentStatus = "paused"
	AppointmentDeleted   AppointmentStatus = "deleted"
)

// ParseAppointmentStatus maps the stored representation onto a status.
// Anything unrecognized becomes AppointmentUndefined.
func ParseAppointmentStatus(s string) AppointmentStatus {
	switch AppointmentStatus(strings.ToLower(strings.TrimSpace(s))) {
	case AppointmentStarted:
		return AppointmentStarted
	case AppointmentPaused:
		return AppointmentPaused
	case AppointmentDeleted:
		return AppointmentDeleted
	default:
		return AppointmentUndefined
	}
}

func (s AppointmentStatus) String() string { return string(s) }

func (s AppointmentStatus) MarshalText() ([]byte, error) {
	return []byte(s), nil
}

func (s *AppointmentStatus) UnmarshalText(b []byte) error {
	*s = ParseAppointmentStatus(string(b))
	return nil
}

// Visible reports whether an appointment in this status can be read or
// operated on. Deleted appointments look exactly like missing ones.
func (s AppointmentStatus) Visible() bool {
	return s == AppointmentStarted || s == AppointmentPaused
}

// CanTransitionTo only allows toggling between started and paused.
func (s AppointmentStatus) CanTransitionTo(next AppointmentStatus) bool {
	switch s {
	case AppointmentStarted:
		return next == AppointmentPaused
	case AppointmentPaused:
		return next == AppointmentStarted
	default:
		return false
	}
}

type Appointment struct {
	ID          uuid.UUID         `json:"id"`
	CustomerID  uuid.UUID         `json:"customer_id"`
	AdminID     uuid.UUID         `json:"admin_id"`
	CreatorName string            `json:"creator_name"`
	Subject     string            `json:"subject"`
	Description string            `json:"description"`
	Place       string            `json:"place"`
	Status      AppointmentStatus `json:"status"`
	// Password carries plaintext on the way in and the stored hash inside the
	// service; it is always cleared before an appointment is returned.
	Password string `json:"password,omitempty"`

	SuggestedDates []SuggestedDate `json:"suggested_dates"`
	Participants   []Participant   `json:"participants"`
}

type SuggestedDate struct {
	ID            uuid.UUID  `json:"id"`
	CustomerID    uuid.UUID  `json:"customer_id"`
	AppointmentID uuid.UUID  `json:"appointment_id"`
	StartDate     time.Time  `json:"start_date"`
	StartTime     *time.Time `json:"start_time,omitempty"`
	EndDate       time.Time  `json:"end_date"`
	EndTime       *time.Time `json:"end_time,omitempty"`
	Description   string     `json:"description"`
	Votings       []Voting   `json:"votings"`
}

type Participant struct {
	ID            uuid.UUID `json:"id"`
	CustomerID    uuid.UUID `json:"customer_id"`
	AppointmentID uuid.UUID `json:"appointment_id"`
	Name          string    `json:"name"`
	Votings       []Voting  `json:"votings"`
}

// Business rules
const (
	MaxParticipants   = 5000
	MaxSuggestedDates = 100
	MinSuggestedDates = 1
)

// IsNew reports whether the server still has to assign the identifier.
func IsNew(id uuid.UUID) bool { return id == uuid.Nil }

// ClearPassword strips the password from the appointment.
func (a *Appointment) ClearPassword() {
	if a != nil {
		a.Password = ""
	}
}

// IsProtected reports whether the appointment carries a stored hash.
func (a *Appointment) IsProtected() bool {
	return a != nil && a.Password != ""
}

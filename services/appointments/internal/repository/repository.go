package repository

import (
	"context"

	"github.com/diagnosis/terminfinder/services/appointments/internal/domain"
	"github.com/google/uuid"
)

// Repository is the persistence contract of the appointments service. Every
// call is scoped by customer id. Appointment reads only see appointments in a
// visible status and return (nil, nil) otherwise.
type Repository interface {
	CustomerExists(ctx context.Context, customerID uuid.UUID) (bool, error)

	AppointmentExists(ctx context.Context, customerID, appointmentID uuid.UUID) (bool, error)
	AppointmentExistsWithAdmin(ctx context.Context, customerID, appointmentID, adminID uuid.UUID) (bool, error)
	AppointmentExistsByAdmin(ctx context.Context, customerID, adminID uuid.UUID) (bool, error)
	AppointmentIsStarted(ctx context.Context, customerID, appointmentID uuid.UUID) (bool, error)
	ParticipantExists(ctx context.Context, customerID, appointmentID, participantID uuid.UUID) (bool, error)
	SuggestedDateExists(ctx context.Context, customerID, appointmentID, suggestedDateID uuid.UUID) (bool, error)

	GetAppointment(ctx context.Context, customerID, appointmentID uuid.UUID) (*domain.Appointment, error)
	GetAppointmentByAdmin(ctx context.Context, customerID, adminID uuid.UUID) (*domain.Appointment, error)
	// GetAppointmentPassword returns the stored hash ("" when unprotected) or
	// domain.ErrNotFound.
	GetAppointmentPassword(ctx context.Context, customerID, appointmentID uuid.UUID) (string, error)
	GetAppointmentPasswordByAdmin(ctx context.Context, customerID, adminID uuid.UUID) (string, error)
	GetStatusByAdmin(ctx context.Context, customerID, adminID uuid.UUID) (domain.AppointmentStatus, error)
	// SetStatusByAdmin writes to only while the stored status is still from
	// and reports false otherwise.
	SetStatusByAdmin(ctx context.Context, customerID, adminID uuid.UUID, from, to domain.AppointmentStatus) (bool, error)

	CountParticipants(ctx context.Context, customerID, appointmentID uuid.UUID) (int, error)
	CountSuggestedDates(ctx context.Context, customerID, appointmentID uuid.UUID) (int, error)

	GetParticipants(ctx context.Context, customerID, appointmentID uuid.UUID) ([]domain.Participant, error)
	GetSuggestedDates(ctx context.Context, customerID, appointmentID uuid.UUID) ([]domain.SuggestedDate, error)

	// Single-entity deletes run in their own transaction.
	DeleteParticipant(ctx context.Context, p *domain.Participant) (bool, error)
	DeleteSuggestedDate(ctx context.Context, s *domain.SuggestedDate) (bool, error)

	// WithTx runs fn inside one transaction. It commits when fn returns nil
	// and rolls back otherwise, leaving previously persisted state untouched.
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the row-level surface the reconciler drives. Existence checks are
// scoped by customer and appointment and see writes made earlier in the same
// transaction.
type Tx interface {
	AppointmentExists(ctx context.Context, customerID, appointmentID uuid.UUID) (bool, error)
	SuggestedDateExists(ctx context.Context, customerID, appointmentID, suggestedDateID uuid.UUID) (bool, error)
	ParticipantExists(ctx context.Context, customerID, appointmentID, participantID uuid.UUID) (bool, error)
	// A voting id only resolves under the participant or suggested date
	// that owns it.
	ParticipantVotingExists(ctx context.Context, customerID, appointmentID, participantID, votingID uuid.UUID) (bool, error)
	SuggestedDateVotingExists(ctx context.Context, customerID, appointmentID, suggestedDateID, votingID uuid.UUID) (bool, error)
	// VotingFor returns the voting a participant cast on a suggested date, or
	// nil when there is none.
	VotingFor(ctx context.Context, customerID, appointmentID, participantID, suggestedDateID uuid.UUID) (*domain.Voting, error)

	InsertAppointment(ctx context.Context, a *domain.Appointment) error
	// UpdateAppointment writes the scalar fields. An empty Password keeps the
	// stored hash; status and admin id are never touched.
	UpdateAppointment(ctx context.Context, a *domain.Appointment) error

	InsertSuggestedDate(ctx context.Context, s *domain.SuggestedDate) error
	UpdateSuggestedDate(ctx context.Context, s *domain.SuggestedDate) error
	InsertParticipant(ctx context.Context, p *domain.Participant) error
	UpdateParticipant(ctx context.Context, p *domain.Participant) error
	InsertVoting(ctx context.Context, v *domain.Voting) error
	// UpdateVoting only changes the status; a voting never moves between
	// participants or suggested dates.
	UpdateVoting(ctx context.Context, v *domain.Voting) error

	// DeleteParticipant also removes the participant's votings.
	// DeleteSuggestedDate leaves votings cast on the date in place.
	DeleteParticipant(ctx context.Context, p *domain.Participant) (bool, error)
	DeleteSuggestedDate(ctx context.Context, s *domain.SuggestedDate) (bool, error)
}

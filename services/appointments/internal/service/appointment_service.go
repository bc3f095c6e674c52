package service

import (
	"context"
	"fmt"
	"time"

	"github.com/diagnosis/terminfinder/pkg/events"
	"github.com/diagnosis/terminfinder/pkg/logger"
	"github.com/diagnosis/terminfinder/services/appointments/internal/domain"
	"github.com/diagnosis/terminfinder/services/appointments/internal/repository"
	"github.com/google/uuid"
)

// AppointmentService is the engine behind the request layer. Reads and
// transitions signal "not found" with a nil result. Every appointment it
// returns has its password cleared.
type AppointmentService interface {
	CustomerExists(ctx context.Context, customerID uuid.UUID) (bool, error)
	AppointmentExists(ctx context.Context, customerID, appointmentID uuid.UUID) (bool, error)
	AppointmentExistsByAdmin(ctx context.Context, customerID, adminID uuid.UUID) (bool, error)
	AppointmentExistsWithAdmin(ctx context.Context, customerID, appointmentID, adminID uuid.UUID) (bool, error)

	GetAppointment(ctx context.Context, customerID, appointmentID uuid.UUID) (*domain.Appointment, error)
	GetAppointmentByAdmin(ctx context.Context, customerID, adminID uuid.UUID) (*domain.Appointment, error)
	SaveAppointment(ctx context.Context, customerID uuid.UUID, a *domain.Appointment) (*domain.Appointment, error)

	IsProtected(ctx context.Context, customerID, appointmentID uuid.UUID) (bool, error)
	IsProtectedByAdmin(ctx context.Context, customerID, adminID uuid.UUID) (bool, error)
	VerifySecret(ctx context.Context, customerID, appointmentID uuid.UUID, candidate string) (bool, error)
	VerifySecretByAdmin(ctx context.Context, customerID, adminID uuid.UUID, candidate string) (bool, error)

	SetStatus(ctx context.Context, customerID, adminID uuid.UUID, status domain.AppointmentStatus) (*domain.Appointment, error)

	GetParticipants(ctx context.Context, customerID, appointmentID uuid.UUID) ([]domain.Participant, error)
	SaveParticipants(ctx context.Context, customerID, appointmentID uuid.UUID, participants []domain.Participant) ([]domain.Participant, error)
	DeleteParticipant(ctx context.Context, p *domain.Participant) (bool, error)

	GetSuggestedDates(ctx context.Context, customerID, appointmentID uuid.UUID) ([]domain.SuggestedDate, error)
	SaveSuggestedDates(ctx context.Context, customerID, appointmentID uuid.UUID, dates []domain.SuggestedDate) ([]domain.SuggestedDate, error)
	DeleteSuggestedDate(ctx context.Context, s *domain.SuggestedDate) (bool, error)
	DeleteSuggestedDates(ctx context.Context, customerID, appointmentID uuid.UUID, dates []domain.SuggestedDate) (int, error)
}

type appointmentService struct {
	repo       repository.Repository
	reconciler *Reconciler
	limits     *Limits
	guard      *PasswordGuard
	publisher  events.Publisher
	now        func() time.Time
}

func NewAppointmentService(repo repository.Repository, guard *PasswordGuard, publisher events.Publisher) AppointmentService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &appointmentService{
		repo:       repo,
		reconciler: NewReconciler(repo),
		limits:     NewLimits(repo),
		guard:      guard,
		publisher:  publisher,
		now:        time.Now,
	}
}

func (s *appointmentService) CustomerExists(ctx context.Context, customerID uuid.UUID) (bool, error) {
	return s.repo.CustomerExists(ctx, customerID)
}

func (s *appointmentService) AppointmentExists(ctx context.Context, customerID, appointmentID uuid.UUID) (bool, error) {
	return s.repo.AppointmentExists(ctx, customerID, appointmentID)
}

func (s *appointmentService) AppointmentExistsByAdmin(ctx context.Context, customerID, adminID uuid.UUID) (bool, error) {
	return s.repo.AppointmentExistsByAdmin(ctx, customerID, adminID)
}

func (s *appointmentService) AppointmentExistsWithAdmin(ctx context.Context, customerID, appointmentID, adminID uuid.UUID) (bool, error) {
	return s.repo.AppointmentExistsWithAdmin(ctx, customerID, appointmentID, adminID)
}

func (s *appointmentService) GetAppointment(ctx context.Context, customerID, appointmentID uuid.UUID) (*domain.Appointment, error) {
	a, err := s.repo.GetAppointment(ctx, customerID, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	a.ClearPassword()
	return a, nil
}

func (s *appointmentService) GetAppointmentByAdmin(ctx context.Context, customerID, adminID uuid.UUID) (*domain.Appointment, error) {
	a, err := s.repo.GetAppointmentByAdmin(ctx, customerID, adminID)
	if err != nil {
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	a.ClearPassword()
	return a, nil
}

// SaveAppointment creates the appointment when its id is the sentinel and
// updates it otherwise. Limit violations come back as *domain.LimitError.
func (s *appointmentService) SaveAppointment(ctx context.Context, customerID uuid.UUID, a *domain.Appointment) (*domain.Appointment, error) {
	created := domain.IsNew(a.ID)
	if !created {
		exists, err := s.repo.AppointmentExists(ctx, customerID, a.ID)
		if err != nil || !exists {
			return nil, err
		}
	}

	// Assign keys
	StampAppointment(a, customerID)

	// Validate limits before anything is written
	if err := s.checkAppointmentLimits(ctx, a); err != nil {
		return nil, err
	}

	// Hash password
	if err := s.guard.Protect(a); err != nil {
		return nil, err
	}

	ok, err := s.reconciler.UpsertAppointment(ctx, a)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to save appointment", "error", err, "appointment_id", a.ID)
		return nil, fmt.Errorf("failed to save appointment: %w", err)
	}
	if !ok {
		return nil, nil
	}

	saved, err := s.GetAppointment(ctx, customerID, a.ID)
	if err != nil || saved == nil {
		return saved, err
	}

	if created {
		s.publish(ctx, events.AppointmentCreated, saved.ID, events.AppointmentCreatedEvent{
			CustomerID:         saved.CustomerID,
			AppointmentID:      saved.ID,
			Subject:            saved.Subject,
			Protected:          a.Password != "",
			SuggestedDateCount: len(saved.SuggestedDates),
			ParticipantCount:   len(saved.Participants),
			CreatedAt:          s.now().UTC(),
		})
	} else {
		s.publish(ctx, events.AppointmentUpdated, saved.ID, events.AppointmentUpdatedEvent{
			CustomerID:    saved.CustomerID,
			AppointmentID: saved.ID,
			UpdatedAt:     s.now().UTC(),
		})
	}
	return saved, nil
}

func (s *appointmentService) checkAppointmentLimits(ctx context.Context, a *domain.Appointment) error {
	ok, err := s.limits.CheckMaxParticipants(ctx, a.CustomerID, a.ID, a.Participants)
	if err != nil {
		return err
	}
	if !ok {
		return &domain.LimitError{Limit: domain.LimitMaxParticipants}
	}
	return s.checkSuggestedDateLimits(ctx, a.CustomerID, a.ID, a.SuggestedDates)
}

func (s *appointmentService) checkSuggestedDateLimits(ctx context.Context, customerID, appointmentID uuid.UUID, dates []domain.SuggestedDate) error {
	ok, err := s.limits.CheckMaxSuggestedDates(ctx, customerID, appointmentID, dates)
	if err != nil {
		return err
	}
	if !ok {
		return &domain.LimitError{Limit: domain.LimitMaxSuggestedDates}
	}
	ok, err = s.limits.CheckMinSuggestedDates(ctx, customerID, appointmentID, dates)
	if err != nil {
		return err
	}
	if !ok {
		return &domain.LimitError{Limit: domain.LimitMinSuggestedDates}
	}
	return nil
}

func (s *appointmentService) IsProtected(ctx context.Context, customerID, appointmentID uuid.UUID) (bool, error) {
	return s.guard.IsProtected(ctx, customerID, appointmentID)
}

func (s *appointmentService) IsProtectedByAdmin(ctx context.Context, customerID, adminID uuid.UUID) (bool, error) {
	return s.guard.IsProtectedByAdmin(ctx, customerID, adminID)
}

func (s *appointmentService) VerifySecret(ctx context.Context, customerID, appointmentID uuid.UUID, candidate string) (bool, error) {
	return s.guard.VerifySecret(ctx, customerID, appointmentID, candidate)
}

func (s *appointmentService) VerifySecretByAdmin(ctx context.Context, customerID, adminID uuid.UUID, candidate string) (bool, error) {
	return s.guard.VerifySecretByAdmin(ctx, customerID, adminID, candidate)
}

func (s *appointmentService) GetParticipants(ctx context.Context, customerID, appointmentID uuid.UUID) ([]domain.Participant, error) {
	participants, err := s.repo.GetParticipants(ctx, customerID, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get participants: %w", err)
	}
	return participants, nil
}

// SaveParticipants upserts participants and their votings. Votes are closed
// while the appointment is paused.
func (s *appointmentService) SaveParticipants(ctx context.Context, customerID, appointmentID uuid.UUID, participants []domain.Participant) ([]domain.Participant, error) {
	exists, err := s.repo.AppointmentExists(ctx, customerID, appointmentID)
	if err != nil || !exists {
		return nil, err
	}
	started, err := s.repo.AppointmentIsStarted(ctx, customerID, appointmentID)
	if err != nil {
		return nil, err
	}
	if !started {
		return nil, domain.ErrPaused
	}

	StampParticipants(participants, customerID, appointmentID)

	ok, err := s.limits.CheckMaxParticipants(ctx, customerID, appointmentID, participants)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &domain.LimitError{Limit: domain.LimitMaxParticipants}
	}

	applied, err := s.reconciler.UpsertParticipants(ctx, customerID, appointmentID, participants)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to save participants", "error", err, "appointment_id", appointmentID)
		return nil, fmt.Errorf("failed to save participants: %w", err)
	}
	if !applied {
		return nil, nil
	}

	saved, err := s.GetParticipants(ctx, customerID, appointmentID)
	if err != nil {
		return nil, err
	}
	s.publishCollection(ctx, events.ParticipantsChanged, customerID, appointmentID, nil)
	return saved, nil
}

func (s *appointmentService) DeleteParticipant(ctx context.Context, p *domain.Participant) (bool, error) {
	deleted, err := s.repo.DeleteParticipant(ctx, p)
	if err != nil {
		return false, fmt.Errorf("failed to delete participant: %w", err)
	}
	if deleted {
		s.publishCollection(ctx, events.ParticipantsChanged, p.CustomerID, p.AppointmentID, []uuid.UUID{p.ID})
	}
	return deleted, nil
}

func (s *appointmentService) GetSuggestedDates(ctx context.Context, customerID, appointmentID uuid.UUID) ([]domain.SuggestedDate, error) {
	dates, err := s.repo.GetSuggestedDates(ctx, customerID, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get suggested dates: %w", err)
	}
	return dates, nil
}

func (s *appointmentService) SaveSuggestedDates(ctx context.Context, customerID, appointmentID uuid.UUID, dates []domain.SuggestedDate) ([]domain.SuggestedDate, error) {
	exists, err := s.repo.AppointmentExists(ctx, customerID, appointmentID)
	if err != nil || !exists {
		return nil, err
	}

	StampSuggestedDates(dates, customerID, appointmentID)

	if err := s.checkSuggestedDateLimits(ctx, customerID, appointmentID, dates); err != nil {
		return nil, err
	}

	applied, err := s.reconciler.UpsertSuggestedDates(ctx, customerID, appointmentID, dates)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to save suggested dates", "error", err, "appointment_id", appointmentID)
		return nil, fmt.Errorf("failed to save suggested dates: %w", err)
	}
	if !applied {
		return nil, nil
	}

	saved, err := s.GetSuggestedDates(ctx, customerID, appointmentID)
	if err != nil {
		return nil, err
	}
	s.publishCollection(ctx, events.SuggestedDatesChanged, customerID, appointmentID, nil)
	return saved, nil
}

// DeleteSuggestedDate removes one suggested date. Votings cast on it stay with
// their participant.
func (s *appointmentService) DeleteSuggestedDate(ctx context.Context, d *domain.SuggestedDate) (bool, error) {
	deleted, err := s.repo.DeleteSuggestedDate(ctx, d)
	if err != nil {
		return false, fmt.Errorf("failed to delete suggested date: %w", err)
	}
	if deleted {
		s.publishCollection(ctx, events.SuggestedDatesChanged, d.CustomerID, d.AppointmentID, []uuid.UUID{d.ID})
	}
	return deleted, nil
}

// DeleteSuggestedDates removes several suggested dates in one transaction,
// refusing with a *domain.LimitError when fewer than the minimum would
// remain. It returns how many rows were deleted.
func (s *appointmentService) DeleteSuggestedDates(ctx context.Context, customerID, appointmentID uuid.UUID, dates []domain.SuggestedDate) (int, error) {
	for i := range dates {
		dates[i].CustomerID = customerID
		dates[i].AppointmentID = appointmentID
	}

	ok, err := s.limits.CheckMinSuggestedDatesWithDeletions(ctx, customerID, appointmentID, dates)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, &domain.LimitError{Limit: domain.LimitMinSuggestedDates}
	}

	var removed []uuid.UUID
	err = s.repo.WithTx(ctx, func(tx repository.Tx) error {
		removed = removed[:0]
		for i := range dates {
			if !SuggestedDateToDeleteIsValid(&dates[i]) {
				continue
			}
			deleted, err := tx.DeleteSuggestedDate(ctx, &dates[i])
			if err != nil {
				return err
			}
			if deleted {
				removed = append(removed, dates[i].ID)
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete suggested dates: %w", err)
	}
	if len(removed) > 0 {
		s.publishCollection(ctx, events.SuggestedDatesChanged, customerID, appointmentID, removed)
	}
	return len(removed), nil
}

func (s *appointmentService) publish(ctx context.Context, subject string, appointmentID uuid.UUID, event interface{}) {
	if err := s.publisher.Publish(ctx, subject, event); err != nil {
		logger.ErrorContext(ctx, "Failed to publish event", "error", err, "subject", subject, "appointment_id", appointmentID)
	}
}

func (s *appointmentService) publishCollection(ctx context.Context, subject string, customerID, appointmentID uuid.UUID, deleted []uuid.UUID) {
	s.publish(ctx, subject, appointmentID, events.CollectionChangedEvent{
		CustomerID:    customerID,
		AppointmentID: appointmentID,
		Deleted:       deleted,
		ChangedAt:     s.now().UTC(),
	})
}

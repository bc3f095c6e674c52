package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/diagnosis/terminfinder/pkg/events"
	"github.com/diagnosis/terminfinder/services/appointments/internal/domain"
	"github.com/google/uuid"
)

// SetStatus moves the appointment between started and paused. It returns nil
// both when the appointment is not visible and when the transition is not
// allowed; callers tell the two apart by checking existence first. The write
// only lands while the stored status still matches the one read here.
func (s *appointmentService) SetStatus(ctx context.Context, customerID, adminID uuid.UUID, status domain.AppointmentStatus) (*domain.Appointment, error) {
	current, err := s.repo.GetStatusByAdmin(ctx, customerID, adminID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get status: %w", err)
	}
	if !current.CanTransitionTo(status) {
		return nil, nil
	}

	ok, err := s.repo.SetStatusByAdmin(ctx, customerID, adminID, current, status)
	if err != nil {
		return nil, fmt.Errorf("failed to set status: %w", err)
	}
	if !ok {
		return nil, nil
	}

	a, err := s.GetAppointmentByAdmin(ctx, customerID, adminID)
	if err != nil || a == nil {
		return a, err
	}

	s.publish(ctx, events.AppointmentStatusChanged, a.ID, events.AppointmentStatusChangedEvent{
		CustomerID:    customerID,
		AppointmentID: a.ID,
		From:          current.String(),
		To:            a.Status.String(),
		ChangedAt:     s.now().UTC(),
	})
	return a, nil
}

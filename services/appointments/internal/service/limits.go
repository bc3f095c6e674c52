package service

import (
	"context"
	"fmt"

	"github.com/diagnosis/terminfinder/services/appointments/internal/domain"
	"github.com/google/uuid"
)

type counter interface {
	CountParticipants(ctx context.Context, customerID, appointmentID uuid.UUID) (int, error)
	CountSuggestedDates(ctx context.Context, customerID, appointmentID uuid.UUID) (int, error)
}

// Limits compares would-be totals (persisted rows plus submitted new nodes)
// against the per-appointment ceilings and floor. Only store failures are
// returned as errors.
type Limits struct {
	repo counter
}

func NewLimits(repo counter) *Limits {
	return &Limits{repo: repo}
}

func (l *Limits) CheckMaxParticipants(ctx context.Context, customerID, appointmentID uuid.UUID, participants []domain.Participant) (bool, error) {
	existing, err := l.repo.CountParticipants(ctx, customerID, appointmentID)
	if err != nil {
		return false, fmt.Errorf("failed to count participants: %w", err)
	}
	return existing+countNewParticipants(participants) <= domain.MaxParticipants, nil
}

func (l *Limits) CheckMaxSuggestedDates(ctx context.Context, customerID, appointmentID uuid.UUID, dates []domain.SuggestedDate) (bool, error) {
	existing, err := l.repo.CountSuggestedDates(ctx, customerID, appointmentID)
	if err != nil {
		return false, fmt.Errorf("failed to count suggested dates: %w", err)
	}
	return existing+countNewSuggestedDates(dates) <= domain.MaxSuggestedDates, nil
}

func (l *Limits) CheckMinSuggestedDates(ctx context.Context, customerID, appointmentID uuid.UUID, dates []domain.SuggestedDate) (bool, error) {
	existing, err := l.repo.CountSuggestedDates(ctx, customerID, appointmentID)
	if err != nil {
		return false, fmt.Errorf("failed to count suggested dates: %w", err)
	}
	return existing+countNewSuggestedDates(dates) >= domain.MinSuggestedDates, nil
}

// CheckMinSuggestedDatesWithDeletions treats every fully identified node in
// dates as about to be deleted.
func (l *Limits) CheckMinSuggestedDatesWithDeletions(ctx context.Context, customerID, appointmentID uuid.UUID, dates []domain.SuggestedDate) (bool, error) {
	existing, err := l.repo.CountSuggestedDates(ctx, customerID, appointmentID)
	if err != nil {
		return false, fmt.Errorf("failed to count suggested dates: %w", err)
	}
	total := existing + countNewSuggestedDates(dates) - countQualifiedSuggestedDates(dates)
	return total >= domain.MinSuggestedDates, nil
}

func countNewParticipants(participants []domain.Participant) int {
	n := 0
	for _, p := range participants {
		if domain.IsNew(p.ID) {
			n++
		}
	}
	return n
}

func countNewSuggestedDates(dates []domain.SuggestedDate) int {
	n := 0
	for _, d := range dates {
		if domain.IsNew(d.ID) {
			n++
		}
	}
	return n
}

// countQualifiedSuggestedDates counts distinct ids; a date named twice is
// deleted once.
func countQualifiedSuggestedDates(dates []domain.SuggestedDate) int {
	seen := make(map[uuid.UUID]struct{}, len(dates))
	for i := range dates {
		if SuggestedDateToDeleteIsValid(&dates[i]) {
			seen[dates[i].ID] = struct{}{}
		}
	}
	return len(seen)
}

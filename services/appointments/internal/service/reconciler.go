package service

import (
	"context"
	"fmt"

	"github.com/diagnosis/terminfinder/services/appointments/internal/domain"
	"github.com/diagnosis/terminfinder/services/appointments/internal/repository"
	"github.com/google/uuid"
)

type action int

const (
	actionIgnore action = iota
	actionInsert
	actionUpdate
)

// classify decides the fate of one submitted node: a sentinel id is a new
// row, an id that resolves in scope is an update, anything else is dropped.
func classify(ctx context.Context, id uuid.UUID, exists func(ctx context.Context, id uuid.UUID) (bool, error)) (action, error) {
	if domain.IsNew(id) {
		return actionInsert, nil
	}
	ok, err := exists(ctx, id)
	if err != nil {
		return actionIgnore, err
	}
	if !ok {
		return actionIgnore, nil
	}
	return actionUpdate, nil
}

// Reconciler writes submitted trees with insert-or-update semantics, one
// transaction per call. It never deletes rows.
type Reconciler struct {
	repo  repository.Repository
	newID func() uuid.UUID
}

func NewReconciler(repo repository.Repository) *Reconciler {
	return &Reconciler{repo: repo, newID: uuid.New}
}

// UpsertAppointment persists the aggregate and writes the assigned ids back
// into a. A sentinel appointment id creates a started appointment with fresh
// id and admin id. It reports false, writing nothing, when a names an
// appointment that is not visible.
func (r *Reconciler) UpsertAppointment(ctx context.Context, a *domain.Appointment) (bool, error) {
	var applied bool
	err := r.repo.WithTx(ctx, func(tx repository.Tx) error {
		created := domain.IsNew(a.ID)
		if created {
			a.ID = r.newID()
			a.AdminID = r.newID()
			a.Status = domain.AppointmentStarted
			StampAppointment(a, a.CustomerID)
			if err := tx.InsertAppointment(ctx, a); err != nil {
				return fmt.Errorf("failed to insert appointment: %w", err)
			}
		} else {
			ok, err := tx.AppointmentExists(ctx, a.CustomerID, a.ID)
			if err != nil {
				return fmt.Errorf("failed to check appointment: %w", err)
			}
			if !ok {
				return nil
			}
			StampAppointment(a, a.CustomerID)
		}

		s := r.scope(tx, a.CustomerID, a.ID)
		if err := s.apply(ctx, a.SuggestedDates, a.Participants); err != nil {
			return err
		}

		if !created {
			if err := tx.UpdateAppointment(ctx, a); err != nil {
				return fmt.Errorf("failed to update appointment: %w", err)
			}
		}
		applied = true
		return nil
	})
	return applied, err
}

// UpsertParticipants persists participants and their votings.
func (r *Reconciler) UpsertParticipants(ctx context.Context, customerID, appointmentID uuid.UUID, participants []domain.Participant) (bool, error) {
	return r.upsertChildren(ctx, customerID, appointmentID, nil, participants)
}

// UpsertSuggestedDates persists suggested dates and their votings.
func (r *Reconciler) UpsertSuggestedDates(ctx context.Context, customerID, appointmentID uuid.UUID, dates []domain.SuggestedDate) (bool, error) {
	return r.upsertChildren(ctx, customerID, appointmentID, dates, nil)
}

func (r *Reconciler) upsertChildren(ctx context.Context, customerID, appointmentID uuid.UUID, dates []domain.SuggestedDate, participants []domain.Participant) (bool, error) {
	var applied bool
	err := r.repo.WithTx(ctx, func(tx repository.Tx) error {
		ok, err := tx.AppointmentExists(ctx, customerID, appointmentID)
		if err != nil {
			return fmt.Errorf("failed to check appointment: %w", err)
		}
		if !ok {
			return nil
		}
		StampSuggestedDates(dates, customerID, appointmentID)
		StampParticipants(participants, customerID, appointmentID)

		if err := r.scope(tx, customerID, appointmentID).apply(ctx, dates, participants); err != nil {
			return err
		}
		applied = true
		return nil
	})
	return applied, err
}

func (r *Reconciler) scope(tx repository.Tx, customerID, appointmentID uuid.UUID) *txScope {
	return &txScope{
		tx:            tx,
		newID:         r.newID,
		customerID:    customerID,
		appointmentID: appointmentID,
		inserted:      make(map[votingKey]struct{}),
	}
}

type votingKey struct {
	participantID   uuid.UUID
	suggestedDateID uuid.UUID
}

// txScope is one reconciliation pass inside a transaction.
type txScope struct {
	tx            repository.Tx
	newID         func() uuid.UUID
	customerID    uuid.UUID
	appointmentID uuid.UUID
	// inserted dedupes new votings for the same participant and date
	// submitted under both parents.
	inserted map[votingKey]struct{}
}

// pendingVoting is a voting waiting for its parents to be written. owned
// resolves an existing voting id under the node it was submitted under.
type pendingVoting struct {
	v     *domain.Voting
	owned func(ctx context.Context, id uuid.UUID) (bool, error)
}

// apply writes suggested dates, then participants, then the votings of every
// parent that was not dropped, so a new voting can reference a parent
// inserted earlier in the pass.
func (s *txScope) apply(ctx context.Context, dates []domain.SuggestedDate, participants []domain.Participant) error {
	var votings []pendingVoting

	for i := range dates {
		d := &dates[i]
		act, err := classify(ctx, d.ID, s.suggestedDateExists)
		if err != nil {
			return fmt.Errorf("failed to check suggested date: %w", err)
		}
		switch act {
		case actionInsert:
			d.ID = s.newID()
			StampSuggestedDates(dates[i:i+1], s.customerID, s.appointmentID)
			if err := s.tx.InsertSuggestedDate(ctx, d); err != nil {
				return fmt.Errorf("failed to insert suggested date: %w", err)
			}
		case actionUpdate:
			if err := s.tx.UpdateSuggestedDate(ctx, d); err != nil {
				return fmt.Errorf("failed to update suggested date: %w", err)
			}
		default:
			continue
		}
		owned := s.votingOfSuggestedDate(d.ID)
		for j := range d.Votings {
			votings = append(votings, pendingVoting{v: &d.Votings[j], owned: owned})
		}
	}

	for i := range participants {
		p := &participants[i]
		act, err := classify(ctx, p.ID, s.participantExists)
		if err != nil {
			return fmt.Errorf("failed to check participant: %w", err)
		}
		switch act {
		case actionInsert:
			p.ID = s.newID()
			StampParticipants(participants[i:i+1], s.customerID, s.appointmentID)
			if err := s.tx.InsertParticipant(ctx, p); err != nil {
				return fmt.Errorf("failed to insert participant: %w", err)
			}
		case actionUpdate:
			if err := s.tx.UpdateParticipant(ctx, p); err != nil {
				return fmt.Errorf("failed to update participant: %w", err)
			}
		default:
			continue
		}
		owned := s.votingOfParticipant(p.ID)
		for j := range p.Votings {
			votings = append(votings, pendingVoting{v: &p.Votings[j], owned: owned})
		}
	}

	for _, pv := range votings {
		if err := s.voting(ctx, pv); err != nil {
			return err
		}
	}
	return nil
}

// voting updates a voting owned by its parent or inserts a new one. A new
// voting for a participant and date that already have one updates that row.
func (s *txScope) voting(ctx context.Context, pv pendingVoting) error {
	v := pv.v
	act, err := classify(ctx, v.ID, pv.owned)
	if err != nil {
		return fmt.Errorf("failed to check voting: %w", err)
	}
	switch act {
	case actionUpdate:
		if err := s.tx.UpdateVoting(ctx, v); err != nil {
			return fmt.Errorf("failed to update voting: %w", err)
		}
	case actionInsert:
		key := votingKey{participantID: v.ParticipantID, suggestedDateID: v.SuggestedDateID}
		if _, dup := s.inserted[key]; dup {
			return nil
		}
		ok, err := s.votingResolves(ctx, v)
		if err != nil {
			return fmt.Errorf("failed to resolve voting: %w", err)
		}
		if !ok {
			return nil
		}
		s.inserted[key] = struct{}{}

		existing, err := s.tx.VotingFor(ctx, s.customerID, s.appointmentID, v.ParticipantID, v.SuggestedDateID)
		if err != nil {
			return fmt.Errorf("failed to find voting: %w", err)
		}
		if existing != nil {
			v.ID = existing.ID
			if err := s.tx.UpdateVoting(ctx, v); err != nil {
				return fmt.Errorf("failed to update voting: %w", err)
			}
			return nil
		}
		v.ID = s.newID()
		if err := s.tx.InsertVoting(ctx, v); err != nil {
			return fmt.Errorf("failed to insert voting: %w", err)
		}
	}
	return nil
}

// votingResolves requires both referenced rows to exist in the appointment.
func (s *txScope) votingResolves(ctx context.Context, v *domain.Voting) (bool, error) {
	if domain.IsNew(v.ParticipantID) || domain.IsNew(v.SuggestedDateID) {
		return false, nil
	}
	ok, err := s.participantExists(ctx, v.ParticipantID)
	if err != nil || !ok {
		return false, err
	}
	return s.suggestedDateExists(ctx, v.SuggestedDateID)
}

func (s *txScope) suggestedDateExists(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.tx.SuggestedDateExists(ctx, s.customerID, s.appointmentID, id)
}

func (s *txScope) participantExists(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.tx.ParticipantExists(ctx, s.customerID, s.appointmentID, id)
}

func (s *txScope) votingOfParticipant(participantID uuid.UUID) func(ctx context.Context, id uuid.UUID) (bool, error) {
	return func(ctx context.Context, id uuid.UUID) (bool, error) {
		return s.tx.ParticipantVotingExists(ctx, s.customerID, s.appointmentID, participantID, id)
	}
}

func (s *txScope) votingOfSuggestedDate(suggestedDateID uuid.UUID) func(ctx context.Context, id uuid.UUID) (bool, error) {
	return func(ctx context.Context, id uuid.UUID) (bool, error) {
		return s.tx.SuggestedDateVotingExists(ctx, s.customerID, s.appointmentID, suggestedDateID, id)
	}
}

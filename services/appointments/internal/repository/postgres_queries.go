package repository

import (
	"context"
	"time"

	"github.com/diagnosis/terminfinder/services/appointments/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Must match domain.AppointmentStatus.Visible.
const visible = `a.status IN ('started','paused')`

const appointmentCols = `a.id, a.customer_id, a.admin_id,
a.creator_name, a.subject, a.description, a.place,
a.status, COALESCE(a.password, '')`

const suggestedDateCols = `id, customer_id, appointment_id,
start_date, start_time, end_date, end_time, description`

const participantCols = `id, customer_id, appointment_id, name`

const votingCols = `id, customer_id, appointment_id, participant_id, suggested_date_id, status`

// queries holds the lookups shared by the pool-backed repository and
// transactions.
type queries struct {
	q querier
}

func (s queries) exists(ctx context.Context, q string, args ...any) (bool, error) {
	var ok bool
	err := s.q.QueryRow(ctx, q, args...).Scan(&ok)
	return ok, err
}

func (s queries) AppointmentExists(ctx context.Context, customerID, appointmentID uuid.UUID) (bool, error) {
	return s.exists(ctx, `SELECT EXISTS(
		SELECT 1 FROM appointments a
		WHERE a.customer_id=$1 AND a.id=$2 AND `+visible+`)`,
		customerID, appointmentID)
}

func (s queries) SuggestedDateExists(ctx context.Context, customerID, appointmentID, suggestedDateID uuid.UUID) (bool, error) {
	return s.exists(ctx, `SELECT EXISTS(
		SELECT 1 FROM suggested_dates s
		JOIN appointments a ON a.id = s.appointment_id
		WHERE s.customer_id=$1 AND s.appointment_id=$2 AND s.id=$3 AND `+visible+`)`,
		customerID, appointmentID, suggestedDateID)
}

func (s queries) ParticipantExists(ctx context.Context, customerID, appointmentID, participantID uuid.UUID) (bool, error) {
	return s.exists(ctx, `SELECT EXISTS(
		SELECT 1 FROM participants p
		JOIN appointments a ON a.id = p.appointment_id
		WHERE p.customer_id=$1 AND p.appointment_id=$2 AND p.id=$3 AND `+visible+`)`,
		customerID, appointmentID, participantID)
}

func (s queries) ParticipantVotingExists(ctx context.Context, customerID, appointmentID, participantID, votingID uuid.UUID) (bool, error) {
	return s.exists(ctx, `SELECT EXISTS(
		SELECT 1 FROM votings v
		JOIN appointments a ON a.id = v.appointment_id
		WHERE v.customer_id=$1 AND v.appointment_id=$2 AND v.participant_id=$3 AND v.id=$4 AND `+visible+`)`,
		customerID, appointmentID, participantID, votingID)
}

func (s queries) SuggestedDateVotingExists(ctx context.Context, customerID, appointmentID, suggestedDateID, votingID uuid.UUID) (bool, error) {
	return s.exists(ctx, `SELECT EXISTS(
		SELECT 1 FROM votings v
		JOIN appointments a ON a.id = v.appointment_id
		WHERE v.customer_id=$1 AND v.appointment_id=$2 AND v.suggested_date_id=$3 AND v.id=$4 AND `+visible+`)`,
		customerID, appointmentID, suggestedDateID, votingID)
}

func (s queries) VotingFor(ctx context.Context, customerID, appointmentID, participantID, suggestedDateID uuid.UUID) (*domain.Voting, error) {
	var (
		v      domain.Voting
		status string
	)
	err := s.q.QueryRow(ctx, `SELECT `+votingCols+` FROM votings
		WHERE customer_id=$1 AND appointment_id=$2 AND participant_id=$3 AND suggested_date_id=$4`,
		customerID, appointmentID, participantID, suggestedDateID,
	).Scan(&v.ID, &v.CustomerID, &v.AppointmentID, &v.ParticipantID, &v.SuggestedDateID, &status)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	v.Status = domain.ParseVotingStatus(status)
	return &v, nil
}

func scanAppointment(row pgx.Row) (*domain.Appointment, error) {
	var (
		a      domain.Appointment
		status string
	)
	err := row.Scan(
		&a.ID, &a.CustomerID, &a.AdminID,
		&a.CreatorName, &a.Subject, &a.Description, &a.Place,
		&status, &a.Password,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	a.Status = domain.ParseAppointmentStatus(status)
	return &a, nil
}

// loadChildren fills the suggested dates and participants of a, each with
// their votings.
func (s queries) loadChildren(ctx context.Context, a *domain.Appointment) error {
	dates, err := s.suggestedDates(ctx, a.CustomerID, a.ID)
	if err != nil {
		return err
	}
	participants, err := s.participants(ctx, a.CustomerID, a.ID)
	if err != nil {
		return err
	}
	votings, err := s.votings(ctx, a.CustomerID, a.ID)
	if err != nil {
		return err
	}
	attachVotings(dates, participants, votings)
	a.SuggestedDates = dates
	a.Participants = participants
	return nil
}

func (s queries) suggestedDates(ctx context.Context, customerID, appointmentID uuid.UUID) ([]domain.SuggestedDate, error) {
	rows, err := s.q.Query(ctx, `SELECT `+suggestedDateCols+` FROM suggested_dates
		WHERE customer_id=$1 AND appointment_id=$2 ORDER BY seq`, customerID, appointmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.SuggestedDate, 0)
	for rows.Next() {
		var d domain.SuggestedDate
		if err := rows.Scan(
			&d.ID, &d.CustomerID, &d.AppointmentID,
			&d.StartDate, &d.StartTime, &d.EndDate, &d.EndTime, &d.Description,
		); err != nil {
			return nil, err
		}
		d.StartDate, d.EndDate = d.StartDate.UTC(), d.EndDate.UTC()
		d.StartTime, d.EndTime = utc(d.StartTime), utc(d.EndTime)
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s queries) participants(ctx context.Context, customerID, appointmentID uuid.UUID) ([]domain.Participant, error) {
	rows, err := s.q.Query(ctx, `SELECT `+participantCols+` FROM participants
		WHERE customer_id=$1 AND appointment_id=$2 ORDER BY seq`, customerID, appointmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Participant, 0)
	for rows.Next() {
		var p domain.Participant
		if err := rows.Scan(&p.ID, &p.CustomerID, &p.AppointmentID, &p.Name); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s queries) votings(ctx context.Context, customerID, appointmentID uuid.UUID) ([]domain.Voting, error) {
	rows, err := s.q.Query(ctx, `SELECT `+votingCols+` FROM votings
		WHERE customer_id=$1 AND appointment_id=$2 ORDER BY seq`, customerID, appointmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Voting, 0)
	for rows.Next() {
		var (
			v      domain.Voting
			status string
		)
		if err := rows.Scan(&v.ID, &v.CustomerID, &v.AppointmentID, &v.ParticipantID, &v.SuggestedDateID, &status); err != nil {
			return nil, err
		}
		v.Status = domain.ParseVotingStatus(status)
		out = append(out, v)
	}
	return out, rows.Err()
}

// attachVotings rebuilds the nested view from the flat voting table.
func attachVotings(dates []domain.SuggestedDate, participants []domain.Participant, votings []domain.Voting) {
	byDate := make(map[uuid.UUID][]domain.Voting)
	byParticipant := make(map[uuid.UUID][]domain.Voting)
	for _, v := range votings {
		byDate[v.SuggestedDateID] = append(byDate[v.SuggestedDateID], v)
		byParticipant[v.ParticipantID] = append(byParticipant[v.ParticipantID], v)
	}
	for i := range dates {
		dates[i].Votings = nonNil(byDate[dates[i].ID])
	}
	for i := range participants {
		participants[i].Votings = nonNil(byParticipant[participants[i].ID])
	}
}

func nonNil(v []domain.Voting) []domain.Voting {
	if v == nil {
		return []domain.Voting{}
	}
	return v
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

package repository

import (
	"context"

	"github.com/diagnosis/terminfinder/services/appointments/internal/domain"
)

type postgresTx struct {
	queries
}

func (t *postgresTx) InsertAppointment(ctx context.Context, a *domain.Appointment) error {
	const q = `INSERT INTO appointments (
		id, customer_id, admin_id,
		creator_name, subject, description, place,
		status, password
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NULLIF($9,''))`
	_, err := t.q.Exec(ctx, q,
		a.ID, a.CustomerID, a.AdminID,
		a.CreatorName, a.Subject, a.Description, a.Place,
		string(a.Status), a.Password,
	)
	return err
}

func (t *postgresTx) UpdateAppointment(ctx context.Context, a *domain.Appointment) error {
	const q = `UPDATE appointments SET
		creator_name=$3, subject=$4, description=$5, place=$6,
		password=COALESCE(NULLIF($7,''), password),
		updated_at=now()
	WHERE customer_id=$1 AND id=$2`
	_, err := t.q.Exec(ctx, q,
		a.CustomerID, a.ID,
		a.CreatorName, a.Subject, a.Description, a.Place,
		a.Password,
	)
	return err
}

func (t *postgresTx) InsertSuggestedDate(ctx context.Context, s *domain.SuggestedDate) error {
	const q = `INSERT INTO suggested_dates (` + suggestedDateCols + `)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
	_, err := t.q.Exec(ctx, q,
		s.ID, s.CustomerID, s.AppointmentID,
		s.StartDate, s.StartTime, s.EndDate, s.EndTime, s.Description,
	)
	return err
}

func (t *postgresTx) UpdateSuggestedDate(ctx context.Context, s *domain.SuggestedDate) error {
	const q = `UPDATE suggested_dates SET
		start_date=$4, start_time=$5, end_date=$6, end_time=$7, description=$8
	WHERE customer_id=$1 AND appointment_id=$2 AND id=$3`
	_, err := t.q.Exec(ctx, q,
		s.CustomerID, s.AppointmentID, s.ID,
		s.StartDate, s.StartTime, s.EndDate, s.EndTime, s.Description,
	)
	return err
}

func (t *postgresTx) InsertParticipant(ctx context.Context, p *domain.Participant) error {
	const q = `INSERT INTO participants (` + participantCols + `) VALUES ($1,$2,$3,$4)`
	_, err := t.q.Exec(ctx, q, p.ID, p.CustomerID, p.AppointmentID, p.Name)
	return err
}

func (t *postgresTx) UpdateParticipant(ctx context.Context, p *domain.Participant) error {
	const q = `UPDATE participants SET name=$4
	WHERE customer_id=$1 AND appointment_id=$2 AND id=$3`
	_, err := t.q.Exec(ctx, q, p.CustomerID, p.AppointmentID, p.ID, p.Name)
	return err
}

func (t *postgresTx) InsertVoting(ctx context.Context, v *domain.Voting) error {
	const q = `INSERT INTO votings (` + votingCols + `) VALUES ($1,$2,$3,$4,$5,$6)`
	_, err := t.q.Exec(ctx, q,
		v.ID, v.CustomerID, v.AppointmentID,
		v.ParticipantID, v.SuggestedDateID, string(v.Status),
	)
	return err
}

func (t *postgresTx) UpdateVoting(ctx context.Context, v *domain.Voting) error {
	const q = `UPDATE votings SET status=$4
	WHERE customer_id=$1 AND appointment_id=$2 AND id=$3`
	_, err := t.q.Exec(ctx, q, v.CustomerID, v.AppointmentID, v.ID, string(v.Status))
	return err
}

// The participant's votings go with it through ON DELETE CASCADE.
func (t *postgresTx) DeleteParticipant(ctx context.Context, p *domain.Participant) (bool, error) {
	const q = `DELETE FROM participants p USING appointments a
	WHERE a.id = p.appointment_id
	  AND p.customer_id=$1 AND p.appointment_id=$2 AND p.id=$3 AND ` + visible
	tag, err := t.q.Exec(ctx, q, p.CustomerID, p.AppointmentID, p.ID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (t *postgresTx) DeleteSuggestedDate(ctx context.Context, s *domain.SuggestedDate) (bool, error) {
	const q = `DELETE FROM suggested_dates s USING appointments a
	WHERE a.id = s.appointment_id
	  AND s.customer_id=$1 AND s.appointment_id=$2 AND s.id=$3 AND ` + visible
	tag, err := t.q.Exec(ctx, q, s.CustomerID, s.AppointmentID, s.ID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

var _ Tx = (*postgresTx)(nil)

package repository

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/diagnosis/terminfinder/services/appointments/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schema string

const queryTimeout = 3 * time.Second

// Migrate creates the tables when they are missing.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

type PostgresRepository struct {
	queries
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{queries: queries{q: pool}, pool: pool}
}

func (r *PostgresRepository) CustomerExists(ctx context.Context, customerID uuid.UUID) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return r.exists(ctx, `SELECT EXISTS(
		SELECT 1 FROM customers WHERE id=$1 AND status <> 'deleted')`, customerID)
}

func (r *PostgresRepository) AppointmentExists(ctx context.Context, customerID, appointmentID uuid.UUID) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return r.queries.AppointmentExists(ctx, customerID, appointmentID)
}

func (r *PostgresRepository) AppointmentExistsWithAdmin(ctx context.Context, customerID, appointmentID, adminID uuid.UUID) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return r.exists(ctx, `SELECT EXISTS(
		SELECT 1 FROM appointments a
		WHERE a.customer_id=$1 AND a.id=$2 AND a.admin_id=$3 AND `+visible+`)`,
		customerID, appointmentID, adminID)
}

func (r *PostgresRepository) AppointmentExistsByAdmin(ctx context.Context, customerID, adminID uuid.UUID) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return r.exists(ctx, `SELECT EXISTS(
		SELECT 1 FROM appointments a
		WHERE a.customer_id=$1 AND a.admin_id=$2 AND `+visible+`)`,
		customerID, adminID)
}

func (r *PostgresRepository) AppointmentIsStarted(ctx context.Context, customerID, appointmentID uuid.UUID) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return r.exists(ctx, `SELECT EXISTS(
		SELECT 1 FROM appointments a
		WHERE a.customer_id=$1 AND a.id=$2 AND a.status='started')`,
		customerID, appointmentID)
}

func (r *PostgresRepository) ParticipantExists(ctx context.Context, customerID, appointmentID, participantID uuid.UUID) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return r.queries.ParticipantExists(ctx, customerID, appointmentID, participantID)
}

func (r *PostgresRepository) SuggestedDateExists(ctx context.Context, customerID, appointmentID, suggestedDateID uuid.UUID) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return r.queries.SuggestedDateExists(ctx, customerID, appointmentID, suggestedDateID)
}

func (r *PostgresRepository) GetAppointment(ctx context.Context, customerID, appointmentID uuid.UUID) (*domain.Appointment, error) {
	const q = `SELECT ` + appointmentCols + ` FROM appointments a
		WHERE a.customer_id=$1 AND a.id=$2 AND ` + visible
	return r.getAppointment(ctx, q, customerID, appointmentID)
}

func (r *PostgresRepository) GetAppointmentByAdmin(ctx context.Context, customerID, adminID uuid.UUID) (*domain.Appointment, error) {
	const q = `SELECT ` + appointmentCols + ` FROM appointments a
		WHERE a.customer_id=$1 AND a.admin_id=$2 AND ` + visible
	return r.getAppointment(ctx, q, customerID, adminID)
}

// getAppointment reads the row and its children from one snapshot.
func (r *PostgresRepository) getAppointment(ctx context.Context, q string, args ...any) (*domain.Appointment, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	a, err := scanAppointment(tx.QueryRow(ctx, q, args...))
	if err != nil || a == nil {
		return nil, err
	}
	if err := (queries{q: tx}).loadChildren(ctx, a); err != nil {
		return nil, err
	}
	return a, tx.Commit(ctx)
}

func (r *PostgresRepository) GetAppointmentPassword(ctx context.Context, customerID, appointmentID uuid.UUID) (string, error) {
	const q = `SELECT COALESCE(a.password, '') FROM appointments a
		WHERE a.customer_id=$1 AND a.id=$2 AND ` + visible
	return r.password(ctx, q, customerID, appointmentID)
}

func (r *PostgresRepository) GetAppointmentPasswordByAdmin(ctx context.Context, customerID, adminID uuid.UUID) (string, error) {
	const q = `SELECT COALESCE(a.password, '') FROM appointments a
		WHERE a.customer_id=$1 AND a.admin_id=$2 AND ` + visible
	return r.password(ctx, q, customerID, adminID)
}

func (r *PostgresRepository) password(ctx context.Context, q string, args ...any) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var hash string
	err := r.pool.QueryRow(ctx, q, args...).Scan(&hash)
	if err == pgx.ErrNoRows {
		return "", domain.ErrNotFound
	}
	return hash, err
}

func (r *PostgresRepository) GetStatusByAdmin(ctx context.Context, customerID, adminID uuid.UUID) (domain.AppointmentStatus, error) {
	const q = `SELECT a.status FROM appointments a
		WHERE a.customer_id=$1 AND a.admin_id=$2 AND ` + visible
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var status string
	err := r.pool.QueryRow(ctx, q, customerID, adminID).Scan(&status)
	if err == pgx.ErrNoRows {
		return domain.AppointmentUndefined, domain.ErrNotFound
	}
	if err != nil {
		return domain.AppointmentUndefined, err
	}
	return domain.ParseAppointmentStatus(status), nil
}

func (r *PostgresRepository) SetStatusByAdmin(ctx context.Context, customerID, adminID uuid.UUID, from, to domain.AppointmentStatus) (bool, error) {
	const q = `UPDATE appointments a SET status=$4, updated_at=now()
		WHERE a.customer_id=$1 AND a.admin_id=$2 AND a.status=$3 AND ` + visible
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tag, err := r.pool.Exec(ctx, q, customerID, adminID, string(from), string(to))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PostgresRepository) CountParticipants(ctx context.Context, customerID, appointmentID uuid.UUID) (int, error) {
	return r.count(ctx, `SELECT count(*) FROM participants
		WHERE customer_id=$1 AND appointment_id=$2`, customerID, appointmentID)
}

func (r *PostgresRepository) CountSuggestedDates(ctx context.Context, customerID, appointmentID uuid.UUID) (int, error) {
	return r.count(ctx, `SELECT count(*) FROM suggested_dates
		WHERE customer_id=$1 AND appointment_id=$2`, customerID, appointmentID)
}

func (r *PostgresRepository) count(ctx context.Context, q string, args ...any) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var n int
	err := r.pool.QueryRow(ctx, q, args...).Scan(&n)
	return n, err
}

func (r *PostgresRepository) GetParticipants(ctx context.Context, customerID, appointmentID uuid.UUID) ([]domain.Participant, error) {
	a, err := r.GetAppointment(ctx, customerID, appointmentID)
	if err != nil || a == nil {
		return nil, err
	}
	return a.Participants, nil
}

func (r *PostgresRepository) GetSuggestedDates(ctx context.Context, customerID, appointmentID uuid.UUID) ([]domain.SuggestedDate, error) {
	a, err := r.GetAppointment(ctx, customerID, appointmentID)
	if err != nil || a == nil {
		return nil, err
	}
	return a.SuggestedDates, nil
}

func (r *PostgresRepository) DeleteParticipant(ctx context.Context, p *domain.Participant) (bool, error) {
	var deleted bool
	err := r.WithTx(ctx, func(tx Tx) error {
		var err error
		deleted, err = tx.DeleteParticipant(ctx, p)
		return err
	})
	return deleted, err
}

func (r *PostgresRepository) DeleteSuggestedDate(ctx context.Context, s *domain.SuggestedDate) (bool, error) {
	var deleted bool
	err := r.WithTx(ctx, func(tx Tx) error {
		var err error
		deleted, err = tx.DeleteSuggestedDate(ctx, s)
		return err
	})
	return deleted, err
}

func (r *PostgresRepository) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&postgresTx{queries: queries{q: tx}}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

var _ Repository = (*PostgresRepository)(nil)

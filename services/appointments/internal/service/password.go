package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/alexedwards/argon2id"
	"github.com/diagnosis/terminfinder/services/appointments/internal/domain"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type passwordReader interface {
	GetAppointmentPassword(ctx context.Context, customerID, appointmentID uuid.UUID) (string, error)
	GetAppointmentPasswordByAdmin(ctx context.Context, customerID, adminID uuid.UUID) (string, error)
}

// PasswordGuard hashes appointment passwords and verifies candidates against
// the stored hash. New hashes are argon2id; bcrypt hashes from imported data
// still verify.
type PasswordGuard struct {
	repo   passwordReader
	params *argon2id.Params
}

func NewPasswordGuard(repo passwordReader, params *argon2id.Params) *PasswordGuard {
	if params == nil {
		params = argon2id.DefaultParams
	}
	return &PasswordGuard{repo: repo, params: params}
}

// Protect replaces a plaintext password on a with its hash. An empty password
// leaves a unprotected.
func (g *PasswordGuard) Protect(a *domain.Appointment) error {
	if a.Password == "" {
		return nil
	}
	hash, err := argon2id.CreateHash(a.Password, g.params)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	a.Password = hash
	return nil
}

// IsProtected fails with domain.ErrNotFound for a missing appointment.
func (g *PasswordGuard) IsProtected(ctx context.Context, customerID, appointmentID uuid.UUID) (bool, error) {
	hash, err := g.repo.GetAppointmentPassword(ctx, customerID, appointmentID)
	if err != nil {
		return false, err
	}
	return hash != "", nil
}

func (g *PasswordGuard) IsProtectedByAdmin(ctx context.Context, customerID, adminID uuid.UUID) (bool, error) {
	hash, err := g.repo.GetAppointmentPasswordByAdmin(ctx, customerID, adminID)
	if err != nil {
		return false, err
	}
	return hash != "", nil
}

// VerifySecret fails with domain.ErrNotFound or domain.ErrNotProtected when
// there is nothing to verify against.
func (g *PasswordGuard) VerifySecret(ctx context.Context, customerID, appointmentID uuid.UUID, candidate string) (bool, error) {
	hash, err := g.repo.GetAppointmentPassword(ctx, customerID, appointmentID)
	if err != nil {
		return false, err
	}
	return verify(candidate, hash)
}

func (g *PasswordGuard) VerifySecretByAdmin(ctx context.Context, customerID, adminID uuid.UUID, candidate string) (bool, error) {
	hash, err := g.repo.GetAppointmentPasswordByAdmin(ctx, customerID, adminID)
	if err != nil {
		return false, err
	}
	return verify(candidate, hash)
}

func verify(candidate, hash string) (bool, error) {
	switch {
	case hash == "":
		return false, domain.ErrNotProtected
	case strings.HasPrefix(hash, "$argon2id$"):
		ok, err := argon2id.ComparePasswordAndHash(candidate, hash)
		if err != nil {
			return false, fmt.Errorf("failed to compare password: %w", err)
		}
		return ok, nil
	case strings.HasPrefix(hash, "$2"):
		err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(candidate))
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("failed to compare password: %w", err)
		}
		return true, nil
	default:
		return false, errors.New("unsupported password hash format")
	}
}

package user

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"library-system/internal/domain/loan"
)

var (
	ErrNotFound           = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInactiveUser       = errors.New("user is inactive")
	ErrInvalidRole        = errors.New("invalid role")
	ErrSelfRoleChange     = errors.New("cannot change own role")
	ErrNegativeBalance    = errors.New("total fine balance cannot be negative")
	ErrActiveLoans        = errors.New("cannot deactivate a user with active loans")
	ErrUpdateConflict     = errors.New("concurrent update conflict, retries exhausted")
)

type LoanLookup interface {
	ListByUser(ctx context.Context, userID string) ([]loan.Loan, error)
}

type Service struct {
	repo  Repository
	loans LoanLookup
}

func NewService(repo Repository, loans LoanLookup) *Service {
	return &Service{repo: repo, loans: loans}
}

func (s *Service) Login(ctx context.Context, email, password string) (*User, error) {
	u, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	if !u.IsActive {
		return nil, ErrInactiveUser
	}

	return u, nil
}

// ChangeRole sets the target user's role to one of user, librarian or admin.
// Admins may not change their own role.
func (s *Service) ChangeRole(ctx context.Context, targetID, newRole, adminID string) error {
	if targetID == adminID {
		return ErrSelfRoleChange
	}

	role := strings.ToLower(newRole)
	if role != RoleUser && role != RoleLibrarian && role != RoleAdmin {
		return ErrInvalidRole
	}

	if _, err := s.repo.GetByID(ctx, targetID); err != nil {
		return err
	}

	return s.repo.UpdateRole(ctx, targetID, role)
}

// AdjustFine applies delta (positive to assess, negative to waive or pay) to
// the user's fine balance. The read-check-write runs inside the repository's
// atomic update so concurrent adjustments never lose each other's effect,
// and a balance can never end up negative.
func (s *Service) AdjustFine(ctx context.Context, targetID string, delta float64) error {
	return s.repo.UpdateAtomic(ctx, targetID, func(u *User) error {
		next := u.FineBalance + delta
		if next < 0 {
			return ErrNegativeBalance
		}
		u.FineBalance = next
		return nil
	})
}

// ToggleActivation flips the user's active flag. Deactivation is refused
// while the user holds active loans; reactivation is unconditional.
//
// The loan check and the flag write are not a single transaction: a loan
// issued between them can slip through. Loan status transitions are
// serialized by the lending workflows, so that window is accepted.
func (s *Service) ToggleActivation(ctx context.Context, targetID string) error {
	u, err := s.repo.GetByID(ctx, targetID)
	if err != nil {
		return err
	}

	if u.IsActive {
		loans, err := s.loans.ListByUser(ctx, targetID)
		if err != nil {
			return err
		}
		for _, l := range loans {
			if l.Status == loan.StatusActive {
				return ErrActiveLoans
			}
		}
	}

	return s.repo.SetActive(ctx, targetID, !u.IsActive)
}

func (s *Service) List(ctx context.Context) ([]User, error) {
	return s.repo.List(ctx)
}

func (s *Service) GetByID(ctx context.Context, id string) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

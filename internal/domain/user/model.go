package user

import (
	"context"
	"time"
)

const (
	RoleUser      = "user"
	RoleLibrarian = "librarian"
	RoleAdmin     = "admin"
)

type User struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Surname      string    `db:"surname" json:"surname"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         string    `db:"role" json:"role"`
	FineBalance  float64   `db:"fine_balance" json:"fine_balance"`
	IsActive     bool      `db:"is_active" json:"is_active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

func (u *User) FullName() string {
	return u.Name + " " + u.Surname
}

type Repository interface {
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context) ([]User, error)
	ListDelinquent(ctx context.Context) ([]User, error)
	UpdateRole(ctx context.Context, id, role string) error
	SetActive(ctx context.Context, id string, active bool) error
	// UpdateAtomic runs fn against a consistent read of the user record and
	// persists the mutated record only if no conflicting write happened in
	// between. Implementations retry conflicts a bounded number of times and
	// return ErrUpdateConflict once exhausted.
	UpdateAtomic(ctx context.Context, id string, fn func(*User) error) error
}

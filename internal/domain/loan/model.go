package loan

import (
	"context"
	"time"
)

const (
	StatusActive   = "active"
	StatusReturned = "returned"
)

type Loan struct {
	ID          string     `db:"id" json:"id"`
	UserID      string     `db:"user_id" json:"user_id"`
	BookID      string     `db:"book_id" json:"book_id"`
	LoanDate    time.Time  `db:"loan_date" json:"loan_date"`
	DueDate     time.Time  `db:"due_date" json:"due_date"`
	ReturnedAt  *time.Time `db:"returned_at" json:"returned_at,omitempty"`
	FineAccrued float64    `db:"fine_accrued" json:"fine_accrued"`
	Status      string     `db:"status" json:"status"`
}

// Overdue reports whether the loan is still open and past its expected
// return date at the given instant.
func (l Loan) Overdue(now time.Time) bool {
	return l.Status == StatusActive && l.DueDate.Before(now)
}

type Repository interface {
	ListByUser(ctx context.Context, userID string) ([]Loan, error)
	ListActive(ctx context.Context) ([]Loan, error)
	ListSince(ctx context.Context, since time.Time) ([]Loan, error)
}

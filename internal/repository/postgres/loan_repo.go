package postgres

import (
	"context"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/jmoiron/sqlx"

	"library-system/internal/domain/loan"
)

var loanColumns = []any{
	"id", "user_id", "book_id", "loan_date", "due_date",
	"returned_at", "fine_accrued", "status",
}

type LoanRepo struct {
	db *sqlx.DB
}

func NewLoanRepo(db *sqlx.DB) *LoanRepo {
	return &LoanRepo{db: db}
}

func (r *LoanRepo) ListByUser(ctx context.Context, userID string) ([]loan.Loan, error) {
	return r.scan(ctx, goqu.C("user_id").Eq(userID))
}

func (r *LoanRepo) ListActive(ctx context.Context) ([]loan.Loan, error) {
	return r.scan(ctx, goqu.C("status").Eq(loan.StatusActive))
}

func (r *LoanRepo) ListSince(ctx context.Context, since time.Time) ([]loan.Loan, error) {
	return r.scan(ctx, goqu.C("loan_date").Gte(since))
}

func (r *LoanRepo) scan(ctx context.Context, where goqu.Expression) ([]loan.Loan, error) {
	query, args, err := dialect.From(tableLoans).
		Select(loanColumns...).
		Where(where).
		Prepared(true).ToSQL()
	if err != nil {
		return nil, err
	}

	loans := []loan.Loan{}
	if err := r.db.SelectContext(ctx, &loans, query, args...); err != nil {
		return nil, err
	}
	return loans, nil
}

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/jmoiron/sqlx"

	"library-system/internal/domain/user"
	"library-system/internal/metrics"
	"library-system/internal/retry"
)

const (
	casAttempts = 3
	casBackoff  = 25 * time.Millisecond
)

var userColumns = []any{
	"id", "name", "surname", "email", "password_hash",
	"role", "fine_balance", "is_active", "created_at",
}

type UserRepo struct {
	db *sqlx.DB
}

func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

// userRow carries the version column used for optimistic concurrency; the
// domain model never sees it.
type userRow struct {
	user.User
	Version int64 `db:"version"`
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (*user.User, error) {
	query, args, err := dialect.From(tableUsers).
		Select(userColumns...).
		Where(goqu.C("id").Eq(id)).
		Prepared(true).ToSQL()
	if err != nil {
		return nil, err
	}

	u := &user.User{}
	if err := r.db.GetContext(ctx, u, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, user.ErrNotFound
		}
		return nil, err
	}
	return u, nil
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	query, args, err := dialect.From(tableUsers).
		Select(userColumns...).
		Where(goqu.C("email").Eq(email)).
		Prepared(true).ToSQL()
	if err != nil {
		return nil, err
	}

	u := &user.User{}
	if err := r.db.GetContext(ctx, u, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, user.ErrNotFound
		}
		return nil, err
	}
	return u, nil
}

func (r *UserRepo) List(ctx context.Context) ([]user.User, error) {
	query, args, err := dialect.From(tableUsers).
		Select(userColumns...).
		Order(goqu.C("id").Asc()).
		Prepared(true).ToSQL()
	if err != nil {
		return nil, err
	}

	users := []user.User{}
	if err := r.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, err
	}
	return users, nil
}

func (r *UserRepo) ListDelinquent(ctx context.Context) ([]user.User, error) {
	query, args, err := dialect.From(tableUsers).
		Select(userColumns...).
		Where(goqu.C("fine_balance").Gt(0)).
		Prepared(true).ToSQL()
	if err != nil {
		return nil, err
	}

	users := []user.User{}
	if err := r.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, err
	}
	return users, nil
}

func (r *UserRepo) UpdateRole(ctx context.Context, id, role string) error {
	query, args, err := updateRoleStmt(id, role)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *UserRepo) SetActive(ctx context.Context, id string, active bool) error {
	query, args, err := setActiveStmt(id, active)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// UpdateAtomic implements the lost-update guard with a compare-and-set on
// the row's version column: read the record and its version, apply fn, then
// write only if the version is unchanged. A concurrent writer bumps the
// version, the update touches zero rows and the whole read-modify-write is
// retried with backoff. Business errors from fn abort immediately.
func (r *UserRepo) UpdateAtomic(ctx context.Context, id string, fn func(*user.User) error) error {
	return retry.DoWithRetry(ctx, casAttempts, casBackoff, func() error {
		query, args, err := dialect.From(tableUsers).
			Select(append(userColumns, "version")...).
			Where(goqu.C("id").Eq(id)).
			Prepared(true).ToSQL()
		if err != nil {
			return retry.Abort(err)
		}

		var row userRow
		if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return retry.Abort(user.ErrNotFound)
			}
			return retry.Abort(err)
		}

		u := row.User
		if err := fn(&u); err != nil {
			return retry.Abort(err)
		}

		update, args, err := casUpdateStmt(id, u, row.Version)
		if err != nil {
			return retry.Abort(err)
		}

		res, err := r.db.ExecContext(ctx, update, args...)
		if err != nil {
			return retry.Abort(err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return retry.Abort(err)
		}
		if n == 0 {
			metrics.IncStoreConflict(tableUsers)
			return user.ErrUpdateConflict
		}
		return nil
	})
}

// Every writer that touches a user row bumps the version column, including
// the single-field updates. A writer that left the version alone would let a
// concurrent UpdateAtomic pass its version check and write the stale field
// values back over the committed change.
func updateRoleStmt(id, role string) (string, []interface{}, error) {
	return dialect.Update(tableUsers).
		Set(goqu.Record{
			"role":    role,
			"version": goqu.L("version + 1"),
		}).
		Where(goqu.C("id").Eq(id)).
		Prepared(true).ToSQL()
}

func setActiveStmt(id string, active bool) (string, []interface{}, error) {
	return dialect.Update(tableUsers).
		Set(goqu.Record{
			"is_active": active,
			"version":   goqu.L("version + 1"),
		}).
		Where(goqu.C("id").Eq(id)).
		Prepared(true).ToSQL()
}

func casUpdateStmt(id string, u user.User, version int64) (string, []interface{}, error) {
	return dialect.Update(tableUsers).
		Set(goqu.Record{
			"role":         u.Role,
			"fine_balance": u.FineBalance,
			"is_active":    u.IsActive,
			"version":      version + 1,
		}).
		Where(goqu.C("id").Eq(id), goqu.C("version").Eq(version)).
		Prepared(true).ToSQL()
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return user.ErrNotFound
	}
	return nil
}

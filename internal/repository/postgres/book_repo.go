package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/doug-martin/goqu/v9"
	"github.com/jmoiron/sqlx"

	"library-system/internal/domain/book"
)

type BookRepo struct {
	db *sqlx.DB
}

func NewBookRepo(db *sqlx.DB) *BookRepo {
	return &BookRepo{db: db}
}

func (r *BookRepo) GetByID(ctx context.Context, id string) (*book.Book, error) {
	query, args, err := dialect.From(tableBooks).
		Select("id", "title", "author").
		Where(goqu.C("id").Eq(id)).
		Prepared(true).ToSQL()
	if err != nil {
		return nil, err
	}

	b := &book.Book{}
	if err := r.db.GetContext(ctx, b, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, book.ErrNotFound
		}
		return nil, err
	}
	return b, nil
}

func (r *BookRepo) Count(ctx context.Context) (int64, error) {
	query, args, err := dialect.From(tableBooks).
		Select(goqu.COUNT("*")).
		Prepared(true).ToSQL()
	if err != nil {
		return 0, err
	}

	var count int64
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, err
	}
	return count, nil
}

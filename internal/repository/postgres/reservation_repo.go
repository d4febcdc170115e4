package postgres

import (
	"context"

	"github.com/doug-martin/goqu/v9"
	"github.com/jmoiron/sqlx"

	"library-system/internal/domain/reservation"
)

type ReservationRepo struct {
	db *sqlx.DB
}

func NewReservationRepo(db *sqlx.DB) *ReservationRepo {
	return &ReservationRepo{db: db}
}

func (r *ReservationRepo) ListPending(ctx context.Context) ([]reservation.Reservation, error) {
	query, args, err := dialect.From(tableReservations).
		Select("id", "book_id", "status").
		Where(goqu.C("status").Eq(reservation.StatusPending)).
		Prepared(true).ToSQL()
	if err != nil {
		return nil, err
	}

	reservations := []reservation.Reservation{}
	if err := r.db.SelectContext(ctx, &reservations, query, args...); err != nil {
		return nil, err
	}
	return reservations, nil
}

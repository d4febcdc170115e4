package reservation

import "context"

const (
	StatusPending   = "pending"
	StatusFulfilled = "fulfilled"
	StatusCancelled = "cancelled"
)

type Reservation struct {
	ID     string `db:"id" json:"id"`
	BookID string `db:"book_id" json:"book_id"`
	Status string `db:"status" json:"status"`
}

type Repository interface {
	ListPending(ctx context.Context) ([]Reservation, error)
}

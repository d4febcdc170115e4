package book

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("book not found")

type Book struct {
	ID     string `db:"id" json:"id"`
	Title  string `db:"title" json:"title"`
	Author string `db:"author" json:"author"`
}

type Repository interface {
	GetByID(ctx context.Context, id string) (*Book, error)
	Count(ctx context.Context) (int64, error)
}

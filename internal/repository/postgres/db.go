package postgres

import (
	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
)

var dialect = goqu.Dialect("postgres")

const (
	tableUsers        = "users"
	tableBooks        = "books"
	tableLoans        = "loans"
	tableReservations = "reservations"
)

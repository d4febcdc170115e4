package report

import (
	"context"
	"errors"
	"sort"
	"time"

	"library-system/internal/domain/book"
	"library-system/internal/domain/loan"
	"library-system/internal/domain/reservation"
	"library-system/internal/domain/user"
)

const (
	popularBooksLimit = 10
	popularWindowDays = 30

	// Rendered in place of title/author when a loan references a book the
	// catalog no longer knows about.
	unknownLabel = "Unknown"
)

type UserStore interface {
	GetByID(ctx context.Context, id string) (*user.User, error)
	List(ctx context.Context) ([]user.User, error)
	ListDelinquent(ctx context.Context) ([]user.User, error)
}

type LoanStore interface {
	ListByUser(ctx context.Context, userID string) ([]loan.Loan, error)
	ListActive(ctx context.Context) ([]loan.Loan, error)
	ListSince(ctx context.Context, since time.Time) ([]loan.Loan, error)
}

type BookStore interface {
	GetByID(ctx context.Context, id string) (*book.Book, error)
	Count(ctx context.Context) (int64, error)
}

type ReservationStore interface {
	ListPending(ctx context.Context) ([]reservation.Reservation, error)
}

type DelinquentUser struct {
	UserID       string  `json:"user_id"`
	FullName     string  `json:"full_name"`
	Email        string  `json:"email"`
	PendingFines float64 `json:"pending_fines"`
	OverdueLoans int     `json:"overdue_loans"`
}

type PopularBook struct {
	BookID              string `json:"book_id"`
	Title               string `json:"title"`
	Author              string `json:"author"`
	LoanCount           int    `json:"loan_count"`
	PendingReservations int    `json:"pending_reservations"`
}

type HistoryEntry struct {
	LoanID      string     `json:"loan_id"`
	BookTitle   string     `json:"book_title"`
	BookAuthor  string     `json:"book_author"`
	LoanDate    time.Time  `json:"loan_date"`
	DueDate     time.Time  `json:"due_date"`
	ReturnedAt  *time.Time `json:"returned_at,omitempty"`
	FineAccrued float64    `json:"fine_accrued"`
	Status      string     `json:"status"`
}

type OverdueLoan struct {
	LoanID    string    `json:"loan_id"`
	UserName  string    `json:"user_name"`
	BookTitle string    `json:"book_title"`
	DueDate   time.Time `json:"due_date"`
	DaysLate  int       `json:"days_late"`
}

type Statistics struct {
	ActiveUsers         int     `json:"active_users"`
	TotalBooks          int64   `json:"total_books"`
	ActiveLoans         int     `json:"active_loans"`
	OverdueLoans        int     `json:"overdue_loans"`
	TotalPendingFines   float64 `json:"total_pending_fines"`
	PendingReservations int     `json:"pending_reservations"`
}

// Service computes derived views by scanning the four collections
// independently and joining in memory; the store has no native joins.
// Each report captures a single "now" so its counts stay internally
// consistent, but there is no cross-collection snapshot: concurrent writes
// may skew a report slightly.
type Service struct {
	users        UserStore
	loans        LoanStore
	books        BookStore
	reservations ReservationStore
}

func NewService(users UserStore, loans LoanStore, books BookStore, reservations ReservationStore) *Service {
	return &Service{
		users:        users,
		loans:        loans,
		books:        books,
		reservations: reservations,
	}
}

// DelinquentUsers lists every user with a positive fine balance, annotated
// with how many of their active loans are past due. A debtor with zero
// overdue loans is still listed.
func (s *Service) DelinquentUsers(ctx context.Context) ([]DelinquentUser, error) {
	now := time.Now().UTC()

	debtors, err := s.users.ListDelinquent(ctx)
	if err != nil {
		return nil, err
	}

	active, err := s.loans.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	overdueByUser := make(map[string]int)
	for _, l := range active {
		if l.Overdue(now) {
			overdueByUser[l.UserID]++
		}
	}

	result := make([]DelinquentUser, 0, len(debtors))
	for _, u := range debtors {
		result = append(result, DelinquentUser{
			UserID:       u.ID,
			FullName:     u.FullName(),
			Email:        u.Email,
			PendingFines: u.FineBalance,
			OverdueLoans: overdueByUser[u.ID],
		})
	}

	return result, nil
}

// PopularBooks returns the ten most-loaned books of the trailing 30 days,
// most loaned first. Equal counts are ordered by book id ascending so the
// ranking is stable. Books missing from the catalog are dropped from the
// result rather than rendered half-empty.
func (s *Service) PopularBooks(ctx context.Context) ([]PopularBook, error) {
	now := time.Now().UTC()
	since := now.AddDate(0, 0, -popularWindowDays)

	loans, err := s.loans.ListSince(ctx, since)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for _, l := range loans {
		counts[l.BookID]++
	}

	ranked := make([]string, 0, len(counts))
	for id := range counts {
		ranked = append(ranked, id)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if counts[ranked[i]] != counts[ranked[j]] {
			return counts[ranked[i]] > counts[ranked[j]]
		}
		return ranked[i] < ranked[j]
	})
	if len(ranked) > popularBooksLimit {
		ranked = ranked[:popularBooksLimit]
	}

	// One scan for all pending reservations instead of one query per book.
	pending, err := s.reservations.ListPending(ctx)
	if err != nil {
		return nil, err
	}
	pendingByBook := make(map[string]int)
	for _, r := range pending {
		pendingByBook[r.BookID]++
	}

	result := make([]PopularBook, 0, len(ranked))
	for _, id := range ranked {
		b, err := s.books.GetByID(ctx, id)
		if errors.Is(err, book.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		result = append(result, PopularBook{
			BookID:              b.ID,
			Title:               b.Title,
			Author:              b.Author,
			LoanCount:           counts[id],
			PendingReservations: pendingByBook[id],
		})
	}

	return result, nil
}

// History returns all of the user's loans, open or returned, oldest first.
// The store cannot be relied on for a server-side order, so the sort
// happens here.
func (s *Service) History(ctx context.Context, userID string) ([]HistoryEntry, error) {
	loans, err := s.loans.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	sort.Slice(loans, func(i, j int) bool {
		return loans[i].LoanDate.Before(loans[j].LoanDate)
	})

	result := make([]HistoryEntry, 0, len(loans))
	for _, l := range loans {
		title, author := unknownLabel, unknownLabel
		b, err := s.books.GetByID(ctx, l.BookID)
		if err != nil && !errors.Is(err, book.ErrNotFound) {
			return nil, err
		}
		if err == nil {
			title, author = b.Title, b.Author
		}

		result = append(result, HistoryEntry{
			LoanID:      l.ID,
			BookTitle:   title,
			BookAuthor:  author,
			LoanDate:    l.LoanDate,
			DueDate:     l.DueDate,
			ReturnedAt:  l.ReturnedAt,
			FineAccrued: l.FineAccrued,
			Status:      l.Status,
		})
	}

	return result, nil
}

// OverdueLoans lists every active loan past its expected return date,
// longest overdue first.
func (s *Service) OverdueLoans(ctx context.Context) ([]OverdueLoan, error) {
	now := time.Now().UTC()

	active, err := s.loans.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]OverdueLoan, 0)
	for _, l := range active {
		if !l.Overdue(now) {
			continue
		}

		userName := unknownLabel
		if u, err := s.users.GetByID(ctx, l.UserID); err == nil {
			userName = u.FullName()
		} else if !errors.Is(err, user.ErrNotFound) {
			return nil, err
		}

		bookTitle := unknownLabel
		if b, err := s.books.GetByID(ctx, l.BookID); err == nil {
			bookTitle = b.Title
		} else if !errors.Is(err, book.ErrNotFound) {
			return nil, err
		}

		result = append(result, OverdueLoan{
			LoanID:    l.ID,
			UserName:  userName,
			BookTitle: bookTitle,
			DueDate:   l.DueDate,
			DaysLate:  int(now.Sub(l.DueDate).Hours() / 24),
		})
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].DueDate.Before(result[j].DueDate)
	})

	return result, nil
}

// Statistics returns a system-wide snapshot. The counts come from
// independent scans, so the snapshot is eventually consistent under
// concurrent writes.
func (s *Service) Statistics(ctx context.Context) (*Statistics, error) {
	now := time.Now().UTC()

	users, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}

	var activeUsers int
	var totalFines float64
	for _, u := range users {
		if u.IsActive {
			activeUsers++
		}
		totalFines += u.FineBalance
	}

	totalBooks, err := s.books.Count(ctx)
	if err != nil {
		return nil, err
	}

	active, err := s.loans.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	var overdue int
	for _, l := range active {
		if l.Overdue(now) {
			overdue++
		}
	}

	pending, err := s.reservations.ListPending(ctx)
	if err != nil {
		return nil, err
	}

	return &Statistics{
		ActiveUsers:         activeUsers,
		TotalBooks:          totalBooks,
		ActiveLoans:         len(active),
		OverdueLoans:        overdue,
		TotalPendingFines:   totalFines,
		PendingReservations: len(pending),
	}, nil
}

package api

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"library-system/internal/domain/book"
	"library-system/internal/domain/loan"
	"library-system/internal/domain/report"
	"library-system/internal/domain/reservation"
	"library-system/internal/domain/user"
	jwtpkg "library-system/internal/platform/jwt"
	"library-system/internal/worker"
)

type testUserRepo struct {
	mu    sync.Mutex
	users map[string]*user.User
}

func newTestUserRepo() *testUserRepo {
	return &testUserRepo{users: make(map[string]*user.User)}
}

func (r *testUserRepo) seed(u *user.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	copyUser := *u
	r.users[u.ID] = &copyUser
}

func (r *testUserRepo) GetByID(ctx context.Context, id string) (*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	copyUser := *u
	return &copyUser, nil
}

func (r *testUserRepo) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			copyUser := *u
			return &copyUser, nil
		}
	}
	return nil, user.ErrNotFound
}

func (r *testUserRepo) clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users = make(map[string]*user.User)
}

func (r *testUserRepo) List(ctx context.Context) ([]user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	// nil for zero rows, like a real row scan
	if len(r.users) == 0 {
		return nil, nil
	}
	res := make([]user.User, 0, len(r.users))
	for _, u := range r.users {
		res = append(res, *u)
	}
	return res, nil
}

func (r *testUserRepo) ListDelinquent(ctx context.Context) ([]user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := []user.User{}
	for _, u := range r.users {
		if u.FineBalance > 0 {
			res = append(res, *u)
		}
	}
	return res, nil
}

func (r *testUserRepo) UpdateRole(ctx context.Context, id, role string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return user.ErrNotFound
	}
	u.Role = role
	return nil
}

func (r *testUserRepo) SetActive(ctx context.Context, id string, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return user.ErrNotFound
	}
	u.IsActive = active
	return nil
}

func (r *testUserRepo) UpdateAtomic(ctx context.Context, id string, fn func(*user.User) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return user.ErrNotFound
	}
	copyUser := *u
	if err := fn(&copyUser); err != nil {
		return err
	}
	*u = copyUser
	return nil
}

type testLoanRepo struct {
	mu    sync.Mutex
	loans []loan.Loan
}

func (r *testLoanRepo) seed(l loan.Loan) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	r.loans = append(r.loans, l)
}

func (r *testLoanRepo) markReturned(loanID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.loans {
		if r.loans[i].ID == loanID {
			r.loans[i].Status = loan.StatusReturned
		}
	}
}

func (r *testLoanRepo) ListByUser(ctx context.Context, userID string) ([]loan.Loan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := []loan.Loan{}
	for _, l := range r.loans {
		if l.UserID == userID {
			res = append(res, l)
		}
	}
	return res, nil
}

func (r *testLoanRepo) ListActive(ctx context.Context) ([]loan.Loan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := []loan.Loan{}
	for _, l := range r.loans {
		if l.Status == loan.StatusActive {
			res = append(res, l)
		}
	}
	return res, nil
}

func (r *testLoanRepo) ListSince(ctx context.Context, since time.Time) ([]loan.Loan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := []loan.Loan{}
	for _, l := range r.loans {
		if !l.LoanDate.Before(since) {
			res = append(res, l)
		}
	}
	return res, nil
}

type testBookRepo struct {
	mu    sync.Mutex
	books map[string]book.Book
}

func newTestBookRepo() *testBookRepo {
	return &testBookRepo{books: make(map[string]book.Book)}
}

func (r *testBookRepo) GetByID(ctx context.Context, id string) (*book.Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.books[id]
	if !ok {
		return nil, book.ErrNotFound
	}
	return &b, nil
}

func (r *testBookRepo) Count(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.books)), nil
}

type testReservationRepo struct {
	mu           sync.Mutex
	reservations []reservation.Reservation
}

func (r *testReservationRepo) ListPending(ctx context.Context) ([]reservation.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := []reservation.Reservation{}
	for _, rv := range r.reservations {
		if rv.Status == reservation.StatusPending {
			res = append(res, rv)
		}
	}
	return res, nil
}

type testEnv struct {
	server   *httptest.Server
	userRepo *testUserRepo
	loanRepo *testLoanRepo
	bookRepo *testBookRepo
}

func setupServer(t *testing.T) (*testEnv, func()) {
	t.Helper()
	userRepo := newTestUserRepo()
	loanRepo := &testLoanRepo{}
	bookRepo := newTestBookRepo()
	reservationRepo := &testReservationRepo{}

	loanSvc := loan.NewService(loanRepo)
	userSvc := user.NewService(userRepo, loanSvc)
	reportSvc := report.NewService(userRepo, loanSvc, bookRepo, reservationRepo)
	jwtMgr := jwtpkg.NewManager("secret", "test-issuer")
	auditCh := make(chan worker.FineAdjustment, 100)

	server := httptest.NewServer(NewRouter(userSvc, reportSvc, jwtMgr, auditCh, nil))
	cleanup := func() {
		server.Close()
		close(auditCh)
	}
	return &testEnv{
		server:   server,
		userRepo: userRepo,
		loanRepo: loanRepo,
		bookRepo: bookRepo,
	}, cleanup
}

func seedUserWithPassword(t *testing.T, repo *testUserRepo, id, email, role, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	repo.seed(&user.User{
		ID:           id,
		Name:         "Test",
		Surname:      role,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		IsActive:     true,
	})
	return id
}

func loginAndToken(t *testing.T, serverURL, email, password string) string {
	t.Helper()
	body, _ := json.Marshal(authRequest{Email: email, Password: password})
	resp, err := http.Post(serverURL+"/api/v1/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("login request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status: %d", resp.StatusCode)
	}
	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	token, _ := payload["token"].(string)
	if token == "" {
		t.Fatalf("token missing")
	}
	return token
}

func doJSON(t *testing.T, method, url, token string, body any) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, _ := http.NewRequest(method, url, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	return resp
}

func decodeError(t *testing.T, resp *http.Response) map[string]string {
	t.Helper()
	var payload map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return payload
}

func TestRoleGates(t *testing.T) {
	env, cleanup := setupServer(t)
	defer cleanup()

	seedUserWithPassword(t, env.userRepo, "admin1", "admin@test.com", user.RoleAdmin, "pass123")
	seedUserWithPassword(t, env.userRepo, "lib1", "lib@test.com", user.RoleLibrarian, "pass123")
	seedUserWithPassword(t, env.userRepo, "user1", "user@test.com", user.RoleUser, "pass123")

	adminToken := loginAndToken(t, env.server.URL, "admin@test.com", "pass123")
	libToken := loginAndToken(t, env.server.URL, "lib@test.com", "pass123")
	userToken := loginAndToken(t, env.server.URL, "user@test.com", "pass123")

	cases := []struct {
		name   string
		method string
		path   string
		token  string
		body   any
		want   int
	}{
		{"plain user blocked from reports", http.MethodGet, "/api/v1/reports/delinquent-users", userToken, nil, http.StatusForbidden},
		{"plain user blocked from fines", http.MethodPatch, "/api/v1/users/user1/fine", userToken, adjustFineRequest{Amount: -5}, http.StatusForbidden},
		{"librarian reads reports", http.MethodGet, "/api/v1/reports/delinquent-users", libToken, nil, http.StatusOK},
		{"librarian reads popular books", http.MethodGet, "/api/v1/reports/popular-books", libToken, nil, http.StatusOK},
		{"librarian reads overdue loans", http.MethodGet, "/api/v1/reports/overdue-loans", libToken, nil, http.StatusOK},
		{"librarian blocked from statistics", http.MethodGet, "/api/v1/statistics", libToken, nil, http.StatusForbidden},
		{"librarian blocked from user list", http.MethodGet, "/api/v1/users", libToken, nil, http.StatusForbidden},
		{"librarian blocked from role change", http.MethodPatch, "/api/v1/users/user1/role", libToken, changeRoleRequest{Role: "admin"}, http.StatusForbidden},
		{"admin reads statistics", http.MethodGet, "/api/v1/statistics", adminToken, nil, http.StatusOK},
		{"admin lists users", http.MethodGet, "/api/v1/users", adminToken, nil, http.StatusOK},
		{"anonymous blocked", http.MethodGet, "/api/v1/reports/my-history", "", nil, http.StatusUnauthorized},
		{"any user reads own history", http.MethodGet, "/api/v1/reports/my-history", userToken, nil, http.StatusOK},
	}

	for _, tc := range cases {
		resp := doJSON(t, tc.method, env.server.URL+tc.path, tc.token, tc.body)
		if resp.StatusCode != tc.want {
			t.Errorf("%s: expected %d, got %d", tc.name, tc.want, resp.StatusCode)
		}
		resp.Body.Close()
	}
}

func TestAdjustFineEndpoint(t *testing.T) {
	env, cleanup := setupServer(t)
	defer cleanup()

	seedUserWithPassword(t, env.userRepo, "admin1", "admin@test.com", user.RoleAdmin, "pass123")
	seedUserWithPassword(t, env.userRepo, "member", "member@test.com", user.RoleUser, "pass123")
	adminToken := loginAndToken(t, env.server.URL, "admin@test.com", "pass123")

	resp := doJSON(t, http.MethodPatch, env.server.URL+"/api/v1/users/member/fine", adminToken, adjustFineRequest{Amount: 50})
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204 assessing fine, got %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodPatch, env.server.URL+"/api/v1/users/member/fine", adminToken, adjustFineRequest{Amount: -60})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for negative result, got %d", resp.StatusCode)
	}
	errPayload := decodeError(t, resp)
	resp.Body.Close()
	if errPayload["error"] != "negative_balance" {
		t.Fatalf("expected negative_balance code, got %q", errPayload["error"])
	}

	u, _ := env.userRepo.GetByID(context.Background(), "member")
	if u.FineBalance != 50 {
		t.Fatalf("balance must be unchanged after rejection, got %v", u.FineBalance)
	}

	resp = doJSON(t, http.MethodPatch, env.server.URL+"/api/v1/users/member/fine", adminToken, adjustFineRequest{Amount: -50})
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204 paying off fine, got %d", resp.StatusCode)
	}

	u, _ = env.userRepo.GetByID(context.Background(), "member")
	if u.FineBalance != 0 {
		t.Fatalf("expected zero balance, got %v", u.FineBalance)
	}

	resp = doJSON(t, http.MethodPatch, env.server.URL+"/api/v1/users/ghost/fine", adminToken, adjustFineRequest{Amount: 10})
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown user, got %d", resp.StatusCode)
	}
}

func TestChangeRoleEndpoint(t *testing.T) {
	env, cleanup := setupServer(t)
	defer cleanup()

	seedUserWithPassword(t, env.userRepo, "admin1", "admin@test.com", user.RoleAdmin, "pass123")
	seedUserWithPassword(t, env.userRepo, "member", "member@test.com", user.RoleUser, "pass123")
	adminToken := loginAndToken(t, env.server.URL, "admin@test.com", "pass123")

	// admins cannot change their own role
	resp := doJSON(t, http.MethodPatch, env.server.URL+"/api/v1/users/admin1/role", adminToken, changeRoleRequest{Role: "user"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for self role change, got %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodPatch, env.server.URL+"/api/v1/users/member/role", adminToken, changeRoleRequest{Role: "wizard"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown role, got %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodPatch, env.server.URL+"/api/v1/users/member/role", adminToken, changeRoleRequest{Role: "LIBRARIAN"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}

	u, _ := env.userRepo.GetByID(context.Background(), "member")
	if u.Role != user.RoleLibrarian {
		t.Fatalf("expected normalized role librarian, got %q", u.Role)
	}
}

func TestToggleActivationEndpoint(t *testing.T) {
	env, cleanup := setupServer(t)
	defer cleanup()

	seedUserWithPassword(t, env.userRepo, "lib1", "lib@test.com", user.RoleLibrarian, "pass123")
	seedUserWithPassword(t, env.userRepo, "member", "member@test.com", user.RoleUser, "pass123")
	libToken := loginAndToken(t, env.server.URL, "lib@test.com", "pass123")

	env.loanRepo.seed(loan.Loan{ID: "l1", UserID: "member", BookID: "b1", Status: loan.StatusActive})

	resp := doJSON(t, http.MethodPatch, env.server.URL+"/api/v1/users/member/activation", libToken, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 with active loans, got %d", resp.StatusCode)
	}
	errPayload := decodeError(t, resp)
	resp.Body.Close()
	if errPayload["error"] != "active_loans" {
		t.Fatalf("expected active_loans code, got %q", errPayload["error"])
	}

	env.loanRepo.markReturned("l1")

	resp = doJSON(t, http.MethodPatch, env.server.URL+"/api/v1/users/member/activation", libToken, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204 after loan returned, got %d", resp.StatusCode)
	}

	u, _ := env.userRepo.GetByID(context.Background(), "member")
	if u.IsActive {
		t.Fatalf("expected member deactivated")
	}
}

func TestListUsersEmptyIsArray(t *testing.T) {
	env, cleanup := setupServer(t)
	defer cleanup()

	seedUserWithPassword(t, env.userRepo, "admin1", "admin@test.com", user.RoleAdmin, "pass123")
	adminToken := loginAndToken(t, env.server.URL, "admin@test.com", "pass123")

	// the token stays valid after the store empties out, so the handler sees
	// a nil slice and must still answer with a JSON array
	env.userRepo.clear()

	resp := doJSON(t, http.MethodGet, env.server.URL+"/api/v1/users", adminToken, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if got := strings.TrimSpace(string(body)); got != "[]" {
		t.Fatalf("expected empty array body, got %q", got)
	}
}

func TestMyHistoryEndpoint(t *testing.T) {
	env, cleanup := setupServer(t)
	defer cleanup()

	seedUserWithPassword(t, env.userRepo, "member", "member@test.com", user.RoleUser, "pass123")
	memberToken := loginAndToken(t, env.server.URL, "member@test.com", "pass123")

	now := time.Now().UTC()
	env.bookRepo.books = map[string]book.Book{
		"b1": {ID: "b1", Title: "First", Author: "A"},
	}
	env.loanRepo.seed(loan.Loan{ID: "l-recent", UserID: "member", BookID: "b1", LoanDate: now, Status: loan.StatusActive})
	env.loanRepo.seed(loan.Loan{ID: "l-old", UserID: "member", BookID: "missing", LoanDate: now.Add(-72 * time.Hour), Status: loan.StatusReturned})
	env.loanRepo.seed(loan.Loan{ID: "l-foreign", UserID: "other", BookID: "b1", LoanDate: now, Status: loan.StatusActive})

	resp := doJSON(t, http.MethodGet, env.server.URL+"/api/v1/reports/my-history", memberToken, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var history []report.HistoryEntry
	if err := json.NewDecoder(resp.Body).Decode(&history); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(history))
	}
	if history[0].LoanID != "l-old" || history[1].LoanID != "l-recent" {
		t.Fatalf("expected ascending order, got %s then %s", history[0].LoanID, history[1].LoanID)
	}
	if history[0].BookTitle != "Unknown" {
		t.Fatalf("expected Unknown title for missing book, got %q", history[0].BookTitle)
	}
}

func TestLoginInactiveUser(t *testing.T) {
	env, cleanup := setupServer(t)
	defer cleanup()

	hash, _ := bcrypt.GenerateFromPassword([]byte("pass123"), bcrypt.MinCost)
	env.userRepo.seed(&user.User{
		ID:           "off",
		Email:        "off@test.com",
		PasswordHash: string(hash),
		Role:         user.RoleUser,
		IsActive:     false,
	})

	body, _ := json.Marshal(authRequest{Email: "off@test.com", Password: "pass123"})
	resp, err := http.Post(env.server.URL+"/api/v1/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("login request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for inactive user, got %d", resp.StatusCode)
	}
}

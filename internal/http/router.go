package api

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	jsoniter "github.com/json-iterator/go"
	"github.com/jmoiron/sqlx"
	"golang.org/x/time/rate"

	"library-system/internal/domain/report"
	"library-system/internal/domain/user"
	jwtpkg "library-system/internal/platform/jwt"
	"library-system/internal/worker"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Handler struct {
	userSvc   *user.Service
	reportSvc *report.Service
	jwtMgr    *jwtpkg.Manager
	auditCh   chan<- worker.FineAdjustment
	db        *sqlx.DB
}

func NewRouter(
	userSvc *user.Service,
	reportSvc *report.Service,
	jwtMgr *jwtpkg.Manager,
	auditCh chan<- worker.FineAdjustment,
	db *sqlx.DB,
) http.Handler {
	h := &Handler{
		userSvc:   userSvc,
		reportSvc: reportSvc,
		jwtMgr:    jwtMgr,
		auditCh:   auditCh,
		db:        db,
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))
	r.Use(RequestLogger)
	r.Use(CORSMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/ready", h.handleReady)
	r.Get("/swagger/*", httpSwagger.WrapHandler)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Route("/api/v1", func(r chi.Router) {
		r.With(RateLimitLogin(rate.Every(time.Minute/10), 5)).Post("/auth/login", h.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(jwtMgr))

			r.Get("/reports/my-history", h.handleMyHistory)

			r.Group(func(r chi.Router) {
				r.Use(RequireRole(user.RoleLibrarian, user.RoleAdmin))
				r.Get("/reports/delinquent-users", h.handleDelinquentUsers)
				r.Get("/reports/popular-books", h.handlePopularBooks)
				r.Get("/reports/overdue-loans", h.handleOverdueLoans)
				r.Patch("/users/{id}/fine", h.handleAdjustFine)
				r.Patch("/users/{id}/activation", h.handleToggleActivation)
			})

			r.Group(func(r chi.Router) {
				r.Use(RequireRole(user.RoleAdmin))
				r.Get("/users", h.handleListUsers)
				r.Patch("/users/{id}/role", h.handleChangeRole)
				r.Get("/statistics", h.handleStatistics)
			})
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	if h.db == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error":   "db_unavailable",
			"message": "database not configured",
		})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error":   "db_unavailable",
			"message": "database not ready",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

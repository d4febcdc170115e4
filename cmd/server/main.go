package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	_ "library-system/docs"
	"library-system/internal/config"
	"library-system/internal/domain/loan"
	"library-system/internal/domain/report"
	"library-system/internal/domain/user"
	api "library-system/internal/http"
	"library-system/internal/metrics"
	"library-system/internal/platform/database"
	jwtpkg "library-system/internal/platform/jwt"
	"library-system/internal/repository/postgres"
	"library-system/internal/worker"
)

// @title           Library Lending API
// @version         1.0
// @description     Lending records, fines and reporting with JWT auth
// @BasePath        /api/v1
// @securityDefinitions.apikey BearerAuth
// @in              header
// @name            Authorization
func main() {
	cfg := config.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	api.SetLogger(logger)
	metrics.Register()

	db, err := database.NewPostgres(cfg.DB_DSN)
	if err != nil {
		log.Fatalf("db connect error: %v", err)
	}
	defer db.Close()

	userRepo := postgres.NewUserRepo(db)
	loanRepo := postgres.NewLoanRepo(db)
	bookRepo := postgres.NewBookRepo(db)
	reservationRepo := postgres.NewReservationRepo(db)

	loanSvc := loan.NewService(loanRepo)
	userSvc := user.NewService(userRepo, loanSvc)
	reportSvc := report.NewService(userRepo, loanSvc, bookRepo, reservationRepo)

	jwtMgr := jwtpkg.NewManager(cfg.JWTSecret, "")

	auditCh := make(chan worker.FineAdjustment, 100)
	auditWorker := worker.NewAuditWorker(auditCh, logger)

	router := api.NewRouter(userSvc, reportSvc, jwtMgr, auditCh, db)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go auditWorker.Run(ctx)

	go func() {
		log.Printf("server listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	<-stop
	log.Println("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server shutdown error: %v", err)
	}

	log.Println("server stopped")
}

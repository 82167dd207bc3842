// Package api serves a read-only JSON view of a user's ledger.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/susu3304/finbot/internal/config"
	"github.com/susu3304/finbot/internal/db"
)

type API struct {
	router *mux.Router
	ledger db.Ledger
	config *config.Config
	tokens *Issuer
	log    *slog.Logger
}

func New(cfg *config.Config, ledger db.Ledger, tokens *Issuer, logger *slog.Logger) *API {
	api := &API{
		router: mux.NewRouter(),
		ledger: ledger,
		config: cfg,
		tokens: tokens,
		log:    logger.With(slog.String("component", "api")),
	}

	api.setupRoutes()
	return api
}

func (a *API) setupRoutes() {
	a.router.HandleFunc("/healthz", a.handleHealth).Methods("GET")

	protected := a.router.PathPrefix("/api/me").Subrouter()
	protected.Use(a.authMiddleware)

	protected.HandleFunc("", a.handleProfile).Methods("GET")
	protected.HandleFunc("/balance", a.handleBalance).Methods("GET")
	protected.HandleFunc("/summary", a.handleSummary).Methods("GET")
	protected.HandleFunc("/report", a.handleReport).Methods("GET")
}

// Handler returns the routes wrapped with CORS.
func (a *API) Handler() http.Handler {
	// Tokens travel in the Authorization header, so no credentials are needed
	// and any origin may read.
	corsOptions := cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: false,
	}
	return cors.New(corsOptions).Handler(a.router)
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (a *API) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.config.WebBind,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.log.Error("api shutdown failed", slog.String("error", err.Error()))
		}
	}()

	a.log.Info("api server listening", slog.String("addr", "http://"+a.config.WebBind))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

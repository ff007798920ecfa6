// Package server wires the dependency graph and defines the routes. It is
// the composition root: main.go hands it a Config, it builds stores,
// services, and handlers, and runs the HTTP server until shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/normaq/clientbook/internal/apperror"
	"github.com/normaq/clientbook/internal/auth"
	"github.com/normaq/clientbook/internal/config"
	"github.com/normaq/clientbook/internal/handler"
	"github.com/normaq/clientbook/internal/middleware"
	"github.com/normaq/clientbook/internal/records"
	"github.com/normaq/clientbook/internal/repository/accountfile"
	"github.com/normaq/clientbook/internal/service"
	"github.com/normaq/clientbook/internal/session"
	"github.com/normaq/clientbook/internal/tabular"
	"github.com/normaq/clientbook/internal/tabular/httpsource"
	"github.com/normaq/clientbook/internal/tabular/sqlitesource"
)

// Server owns the router and the resources that need closing on shutdown.
type Server struct {
	router *chi.Mux
	cfg    config.Config
	logger *slog.Logger

	sheetDB *sqlitesource.DB // nil unless SOURCE=sqlite
}

// New builds the full dependency graph.
//
// The account file is opened first; a corrupt file is quarantined by the
// store and the service falls back to a freshly bootstrapped one, loudly.
// Healing and bootstrap run before the first request is served.
func New(cfg config.Config, logger *slog.Logger) (*Server, error) {
	seed, err := config.LoadSeed(cfg.SeedFile)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.AccountFile), 0o755); err != nil {
		return nil, fmt.Errorf("creating account directory: %w", err)
	}

	accounts, err := accountfile.Open(cfg.AccountFile)
	if err != nil {
		if !errors.Is(err, apperror.ErrCorruptStore) {
			return nil, err
		}
		// The unreadable file is preserved next to the store; continue
		// with a fresh one and re-bootstrap from the allow-list.
		logger.Error("account store corrupt, falling back to a fresh bootstrap",
			slog.String("error", err.Error()),
		)
		accounts, err = accountfile.Open(cfg.AccountFile)
		if err != nil {
			return nil, err
		}
	}

	passwords := auth.NewPasswordService()
	tokens, err := auth.NewTokenService(cfg.TokenSecret)
	if err != nil {
		return nil, err
	}

	creds := service.NewCredentialService(accounts, passwords, logger, service.CredentialOptions{
		AllowedDomain:       seed.AllowedDomain,
		ProvisionalPassword: seed.ProvisionalPassword,
		PlaintextHistory:    cfg.PlaintextHistory,
	})

	ctx := context.Background()
	if err := creds.Heal(ctx); err != nil {
		return nil, fmt.Errorf("healing account store: %w", err)
	}
	if err := creds.Bootstrap(ctx, seed.AllowList); err != nil {
		return nil, fmt.Errorf("bootstrapping accounts: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		cfg:    cfg,
		logger: logger,
	}

	var source tabular.Source
	switch cfg.SourceKind {
	case "sqlite":
		db, err := sqlitesource.New(cfg.SheetDBPath)
		if err != nil {
			return nil, err
		}
		s.sheetDB = db
		source = db
	default:
		source = httpsource.New(cfg.SheetAPIURL, cfg.SheetAPIToken)
	}

	cache := records.NewSnapshotCache(cfg.CacheTTL)
	recordSvc := records.NewService(source, cache, logger)

	sessions := session.NewManager(creds, tokens, logger)
	admins := auth.NewAdminRegistry(seed.Admins, passwords, tokens, logger)

	s.setupRoutes(
		handler.NewAuthHandler(sessions, logger),
		handler.NewAdminHandler(creds, admins, seed.ProvisionalPassword, logger),
		handler.NewRecordsHandler(recordSvc, cfg.TableID, logger),
		tokens,
	)

	return s, nil
}

func (s *Server) setupRoutes(
	authH *handler.AuthHandler,
	adminH *handler.AdminHandler,
	recordsH *handler.RecordsHandler,
	tokens *auth.TokenService,
) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/login", authH.HandleLogin)
		r.Post("/admin/token", adminH.HandleToken)

		// Forced first-login change: only the limited token gets here.
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireScope(tokens, auth.ScopePasswordChange))
			r.Post("/password", authH.HandleSetPassword)
		})

		// Active staff sessions.
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireScope(tokens, auth.ScopeSession))
			r.Post("/password/change", authH.HandleChangePassword)
			r.Post("/logout", authH.HandleLogout)
			r.Get("/clients", recordsH.HandleListClients)
			r.Get("/clients/{name}", recordsH.HandleGetClient)
			r.Get("/records", recordsH.HandleListRecords)
		})

		// Administrative capability tokens.
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireScope(tokens, auth.ScopeAdmin))
			r.Get("/admin/accounts", adminH.HandleListAccounts)
			r.Post("/admin/accounts", adminH.HandleCreateAccount)
			r.Delete("/admin/accounts/{login}", adminH.HandleDeleteAccount)
			r.Post("/admin/accounts/{login}/reset", adminH.HandleResetAccount)
			r.Post("/records", recordsH.HandleCreateRecord)
			r.Patch("/records/{row}", recordsH.HandleUpdateRecord)
		})
	})
}

// Start runs the HTTP server until SIGINT/SIGTERM, then shuts down
// gracefully and closes the local sheet database if one is open.
func (s *Server) Start() error {
	defer func() {
		if s.sheetDB != nil {
			s.sheetDB.Close()
		}
	}()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.cfg.Port),
			slog.String("table", s.cfg.TableID),
			slog.String("source", s.cfg.SourceKind),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}

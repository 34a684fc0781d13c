package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pulsegram/apiserver/config"
	"github.com/pulsegram/apiserver/internal/auth"
	"github.com/pulsegram/apiserver/internal/db"
	"github.com/pulsegram/apiserver/internal/handlers"
	"github.com/pulsegram/apiserver/internal/logging"
	"github.com/pulsegram/apiserver/internal/mq"
	"github.com/pulsegram/apiserver/internal/services"
	"github.com/pulsegram/apiserver/internal/store"
)

const requestTimeout = 60 * time.Second

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	mq         *mq.MQ
	logger     logging.Logger
}

// Dependencies are the collaborators the router is built from.
type Dependencies struct {
	Accounts handlers.AccountService
	Social   handlers.SocialService
	Tokens   handlers.TokenResolver
	Logger   logging.Logger
}

// New constructs a Server with its database, broker and services.
func New(ctx context.Context, cfg config.Config, logger logging.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	tokens, err := auth.NewProvider(auth.Config{
		Secret:   cfg.Auth.JWTSecret,
		TokenTTL: cfg.Auth.TokenTTL,
		Issuer:   cfg.Auth.Issuer,
	})
	if err != nil {
		return nil, err
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	broker, err := mq.Open(ctx, cfg.MQ)
	if err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("open broker: %w", err)
	}

	userRepo := store.NewUserRepository(dbConn)
	postRepo := store.NewPostRepository(dbConn)

	var events services.EventPublisher
	if broker != nil {
		events = mq.NewPostEvents(broker, cfg.MQ.Channel, logger.With("component", "events"))
		logger.Info(ctx, "activity events enabled", "backend", cfg.MQ.Backend, "channel", cfg.MQ.Channel)
	}

	accounts := services.NewAccountService(userRepo, tokens, auth.BcryptHasher{Cost: cfg.Auth.BcryptCost})
	social := services.NewSocialService(postRepo, userRepo, events, logger.With("component", "social"))

	router := NewRouter(Dependencies{
		Accounts: accounts,
		Social:   social,
		Tokens:   tokens,
		Logger:   logger,
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		mq:         broker,
		logger:     logger,
	}, nil
}

// NewRouter builds the HTTP routes over the given services.
func NewRouter(deps Dependencies) *chi.Mux {
	logger := deps.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	authMiddleware := handlers.RequireAuth(deps.Tokens)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		handlers.RequestLogger(logger.With("component", "http")),
		middleware.Timeout(requestTimeout),
	)
	router.Get("/", handlers.Home)
	router.Get("/healthz", handlers.Healthz)
	router.Route("/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			handlers.AuthRouter(r, deps.Accounts, logger, authMiddleware)
		})
		r.Route("/posts", func(r chi.Router) {
			handlers.PostRouter(r, deps.Social, logger, authMiddleware)
		})
	})
	return router
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server. It returns nil after a graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info(context.Background(), "http server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests, then closes the broker and database.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if s.mq != nil {
		if cerr := s.mq.Close(); cerr != nil {
			s.logger.Warn(ctx, "close broker", "error", cerr)
		}
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return err
}

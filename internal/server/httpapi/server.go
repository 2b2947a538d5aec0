// Package httpapi exposes the piggy bank operations over HTTP. Every route
// requires a bearer token; its subject is the acting user.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/piggysync/internal/logging"
	"github.com/dmitrijs2005/piggysync/internal/models"
	"github.com/dmitrijs2005/piggysync/internal/notify"
	"github.com/dmitrijs2005/piggysync/internal/realtime"
	"github.com/dmitrijs2005/piggysync/internal/services/piggybank"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/shopspring/decimal"
)

// PiggyBanks is the service surface the handlers call.
type PiggyBanks interface {
	ResolveRole(ctx context.Context, userID, piggyBankID string) (*models.PiggyBank, models.Role, error)
	List(ctx context.Context, userID string, mode models.LoadMode) (*models.Collection, error)
	Total(ctx context.Context, userID string) (models.Total, bool, error)
	Get(ctx context.Context, userID, piggyBankID string, mode models.LoadMode) (*models.PiggyBankView, error)
	Sync(ctx context.Context, userID, piggyBankID string) (decimal.Decimal, error)
	Record(ctx context.Context, userID, piggyBankID string, entries []models.TransactionEntry) (*models.PiggyBankView, error)
	UpdateDetails(ctx context.Context, userID, piggyBankID string, d piggybank.Details) (*models.PiggyBankView, error)
	Remove(ctx context.Context, userID, piggyBankID string) error
	Claim(ctx context.Context, userID, pairingCode string) (*models.PiggyBankView, error)
	IssueGuestCode(ctx context.Context, userID, piggyBankID string) (string, error)
	RemoveAllGuests(ctx context.Context, userID, piggyBankID string) (int64, error)
	JoinAsGuest(ctx context.Context, userID, accessCode string) (*models.PiggyBankView, error)
	AddGoal(ctx context.Context, userID, piggyBankID string, in models.GoalInput) (*models.GoalView, error)
	UpdateGoal(ctx context.Context, userID, piggyBankID, goalID string, in models.GoalInput) (*models.GoalView, error)
	DeleteGoal(ctx context.Context, userID, piggyBankID, goalID string) error
}

// EventSource hands out per-user update streams.
type EventSource interface {
	Subscribe(userID string) (<-chan notify.Update, func())
}

// Sessions opens the realtime session backing an event stream.
type Sessions interface {
	Open(ctx context.Context, userID string) (*realtime.Handle, error)
}

type Server struct {
	address  string
	svc      PiggyBanks
	events   EventSource
	sessions Sessions
	logger   logging.Logger
	secret   []byte

	requestTimeout time.Duration
	keepAlive      time.Duration
	now            func() time.Time
}

type Option func(*Server)

// WithRequestTimeout bounds every non-streaming request.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) { s.requestTimeout = d }
}

// WithKeepAlive sets the comment interval on idle event streams.
func WithKeepAlive(d time.Duration) Option {
	return func(s *Server) { s.keepAlive = d }
}

func NewServer(address string, l logging.Logger, svc PiggyBanks, events EventSource, sessions Sessions, secretKey string, opts ...Option) *Server {
	s := &Server{
		address:        address,
		svc:            svc,
		events:         events,
		sessions:       sessions,
		logger:         l.With("module", "http_server"),
		secret:         []byte(secretKey),
		requestTimeout: 10 * time.Second,
		keepAlive:      25 * time.Second,
		now:            time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"https://*", "http://*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         86400,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authenticate)

		r.Get("/events", s.streamEvents)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(s.requestTimeout))

			r.Get("/piggybanks", s.listPiggyBanks)
			r.Get("/piggybanks/total", s.total)
			r.Post("/piggybanks/claim", s.claim)
			r.Post("/guests/join", s.joinAsGuest)

			r.Route("/piggybanks/{id}", func(r chi.Router) {
				r.Get("/", s.getPiggyBank)
				r.Patch("/", s.updateDetails)
				r.Delete("/", s.remove)
				r.Post("/sync", s.sync)
				r.Post("/transactions", s.record)
				r.Post("/guest-code", s.issueGuestCode)
				r.Get("/guest-code.png", s.guestCodePNG)
				r.Delete("/guests", s.removeAllGuests)
				r.Post("/goals", s.addGoal)
				r.Put("/goals/{goalID}", s.updateGoal)
				r.Delete("/goals/{goalID}", s.deleteGoal)
				r.Get("/statement.pdf", s.statement)
			})
		})
	})

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully within
// shutdownTimeout.
func (s *Server) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "Starting HTTP server", "address", s.address)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info(ctx, "Stopping HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

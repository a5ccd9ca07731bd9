package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/coachware/coachpay/internal/adapty"
	"github.com/coachware/coachpay/internal/directory"
	"github.com/coachware/coachpay/internal/handler"
	"github.com/coachware/coachpay/internal/middleware"
	"github.com/coachware/coachpay/internal/store"
	"github.com/coachware/coachpay/internal/stripeapi"
)

// Config carries everything the server wires together.
type Config struct {
	BaseURL               string
	TerminalCaptureMethod string
}

type Server struct {
	db           *sql.DB
	authH        *handler.AuthHandler
	connectH     *handler.ConnectHandler
	checkoutH    *handler.CheckoutHandler
	terminalH    *handler.TerminalHandler
	planH        *handler.PlanHandler
	webhookH     *handler.WebhookHandler
	entitlementH *handler.EntitlementHandler
	sessionStore *store.SessionStore
	eventStore   *store.WebhookEventStore
	rateLimiter  *middleware.RateLimiter
	logger       *slog.Logger
}

func New(db *sql.DB, sc *stripeapi.Client, mobile *adapty.Client, cfg Config, logger *slog.Logger) *Server {
	persons := store.NewPersonStore(db)
	sessions := store.NewSessionStore(db)
	plans := store.NewPlanStore(db)
	purchases := store.NewPurchaseStore(db)
	subs := store.NewSubscriptionStore(db)
	events := store.NewWebhookEventStore(db)

	dir := directory.New(persons, sc)

	return &Server{
		db:           db,
		authH:        handler.NewAuthHandler(persons, sessions, logger.With("component", "auth")),
		connectH:     handler.NewConnectHandler(sc, persons, cfg.BaseURL, logger.With("component", "connect")),
		checkoutH:    handler.NewCheckoutHandler(sc, persons, plans, purchases, dir, cfg.BaseURL, logger.With("component", "checkout")),
		terminalH:    handler.NewTerminalHandler(sc, persons, purchases, dir, cfg.TerminalCaptureMethod, logger.With("component", "terminal")),
		planH:        handler.NewPlanHandler(sc, plans, logger.With("component", "plan")),
		webhookH:     handler.NewWebhookHandler(sc, persons, subs, events, logger.With("component", "webhook")),
		entitlementH: handler.NewEntitlementHandler(mobile, persons, subs, logger.With("component", "entitlement")),
		sessionStore: sessions,
		eventStore:   events,
		rateLimiter:  middleware.NewRateLimiter(),
		logger:       logger,
	}
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// WebhookEventStore returns the event store for cleanup tasks.
func (s *Server) WebhookEventStore() *store.WebhookEventStore {
	return s.eventStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes
	outerMux.HandleFunc("GET /health", s.healthHandler)
	outerMux.HandleFunc("POST /login", s.rateLimitedHandler(s.authH.Login))
	outerMux.HandleFunc("POST /logout", s.authH.Logout)

	// The webhook endpoint authenticates by signature, not session.
	outerMux.HandleFunc("POST /webhooks/stripe", s.webhookH.HandleWebhook)

	// Protected routes
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.sessionStore)
	outerMux.Handle("/api/", authMiddleware(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(middleware.CORS(outerMux))
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	// Sub-merchant onboarding
	mux.HandleFunc("POST /api/connect/account", s.connectH.CreateAccount)
	mux.HandleFunc("POST /api/connect/onboarding-link", s.connectH.OnboardingLink)
	mux.HandleFunc("GET /api/connect/status", s.connectH.Status)

	// Checkout
	mux.HandleFunc("POST /api/checkout", s.checkoutH.CreateSession)

	// In-person payments
	mux.HandleFunc("POST /api/terminal/connection-token", s.terminalH.ConnectionToken)
	mux.HandleFunc("POST /api/terminal/charge", s.terminalH.Charge)

	// Plan catalog
	mux.HandleFunc("POST /api/plans", s.planH.Create)
	mux.HandleFunc("GET /api/plans", s.planH.List)
	mux.HandleFunc("DELETE /api/plans/{id}", s.planH.Archive)

	// Mobile entitlement sync
	mux.HandleFunc("POST /api/entitlement/sync", s.entitlementH.Sync)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, 10, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}

package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/kazna/internal/archive"
	"github.com/dukerupert/kazna/internal/config"
	"github.com/dukerupert/kazna/internal/event"
	"github.com/dukerupert/kazna/internal/feed"
	"github.com/dukerupert/kazna/internal/handler"
	"github.com/dukerupert/kazna/internal/metrics"
	"github.com/dukerupert/kazna/internal/middleware"
	"github.com/dukerupert/kazna/internal/push"
	"github.com/dukerupert/kazna/internal/rollover"
	"github.com/dukerupert/kazna/internal/store"
	"github.com/dukerupert/kazna/internal/treasury"
	ws "github.com/dukerupert/kazna/internal/websocket"
	"github.com/rs/cors"
)

type Server struct {
	db             *sql.DB
	cfg            *config.Config
	hub            *ws.Hub
	bus            *event.Bus
	metrics        *metrics.Metrics
	feed           *feed.Feed
	treasuryH      *handler.TreasuryHandler
	rolloverH      *handler.RolloverHandler
	pageH          *handler.PageHandler
	authH          *handler.AuthHandler
	pushH          *handler.PushHandler
	archiveH       *handler.ArchiveHandler
	sessionStore   *store.SessionStore
	userStore      *store.UserStore
	adminStore     *store.AdminStore
	rateLimiter    *middleware.RateLimiter
	controller     *rollover.Controller
	archiveManager *archive.Manager
	notifier       *push.Notifier
	logger         *slog.Logger
}

// New wires stores, services and handlers. Observers are subscribed in the
// order feed, push, archive.
func New(db *sql.DB, cfg *config.Config, logger *slog.Logger) *Server {
	m := metrics.New()
	hub := ws.NewHub(logger.With("component", "websocket"), m)
	bus := event.NewBus(logger.With("component", "events"))

	svc := treasury.NewService(db, treasury.Config{
		DueAmount: cfg.DueAmount,
		Location:  cfg.Location,
		Locale:    cfg.Locale,
	}, bus, m, logger)
	controller := rollover.NewController(db, rollover.Options{
		Location: cfg.Location,
		Locale:   cfg.Locale,
	}, bus, m, logger)

	live := feed.New(svc, hub, m, logger)
	bus.Subscribe(live)

	pushStore := store.NewPushStore(db)
	var pushSvc *push.Service
	var notifier *push.Notifier
	if cfg.Push.Enabled() {
		pushSvc = push.NewService(cfg.Push)
		notifier = push.NewNotifier(pushSvc, pushStore, logger)
		bus.Subscribe(notifier)
	}

	archiveMgr := archive.NewManager(cfg.Archive, db, logger)
	if archiveMgr.Enabled() {
		bus.Subscribe(archiveMgr)
	}

	sessionStore := store.NewSessionStore(db)
	userStore := store.NewUserStore(db)

	return &Server{
		db:             db,
		cfg:            cfg,
		hub:            hub,
		bus:            bus,
		metrics:        m,
		feed:           live,
		treasuryH:      handler.NewTreasuryHandler(svc, logger.With("component", "treasury_handler")),
		rolloverH:      handler.NewRolloverHandler(controller, logger.With("component", "rollover_handler")),
		pageH:          handler.NewPageHandler(svc, logger.With("component", "page")),
		authH:          handler.NewAuthHandler(userStore, sessionStore, cfg.CookieSecure, logger.With("component", "auth")),
		pushH:          handler.NewPushHandler(pushStore, pushSvc, logger.With("component", "push_handler")),
		archiveH:       handler.NewArchiveHandler(archiveMgr, logger.With("component", "archive_handler")),
		sessionStore:   sessionStore,
		userStore:      userStore,
		adminStore:     store.NewAdminStore(db),
		rateLimiter:    middleware.NewRateLimiter(),
		controller:     controller,
		archiveManager: archiveMgr,
		notifier:       notifier,
		logger:         logger,
	}
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// Rollover returns the controller driven by the startup check and scheduler.
func (s *Server) Rollover() *rollover.Controller {
	return s.controller
}

// Wait blocks until background push deliveries and archive uploads finish.
func (s *Server) Wait() {
	if s.notifier != nil {
		s.notifier.Wait()
	}
	s.archiveManager.Wait()
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	// Public routes
	mux.HandleFunc("GET /{$}", s.pageH.Dashboard)
	mux.HandleFunc("GET /health", s.healthHandler)
	mux.Handle("GET /metrics", s.metrics.Handler())
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.cfg.AllowedOrigins, s.feed.Greet))
	mux.HandleFunc("POST /login", s.rateLimitedHandler(s.authH.Login))
	mux.HandleFunc("POST /logout", s.authH.Logout)
	mux.HandleFunc("GET /api/session", s.authH.Session)
	mux.HandleFunc("GET /api/dashboard", s.treasuryH.Dashboard)
	mux.HandleFunc("GET /api/families", s.treasuryH.ListFamilies)
	mux.HandleFunc("GET /api/transactions", s.treasuryH.ListTransactions)

	// Admin routes
	admin := http.NewServeMux()
	s.registerAdminRoutes(admin)
	mux.Handle("/api/", middleware.RequireAdmin(admin))

	var h http.Handler = mux
	h = middleware.Identify(s.sessionStore, s.userStore, s.adminStore, s.logger.With("component", "identity"))(h)
	h = middleware.RequestLogger(s.logger.With("component", "http"), s.metrics)(h)
	if len(s.cfg.AllowedOrigins) > 0 {
		h = cors.New(cors.Options{
			AllowedOrigins:   s.cfg.AllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete},
			AllowedHeaders:   []string{"Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}).Handler(h)
	}
	return h
}

func (s *Server) registerAdminRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/families", s.treasuryH.CreateFamily)
	mux.HandleFunc("DELETE /api/families/{id}", s.treasuryH.DeleteFamily)
	mux.HandleFunc("POST /api/families/{id}/reset", s.treasuryH.ResetFamily)
	mux.HandleFunc("POST /api/families/{id}/members", s.treasuryH.CreateMember)
	mux.HandleFunc("DELETE /api/families/{id}/members/{member_id}", s.treasuryH.DeleteMember)
	mux.HandleFunc("POST /api/families/{id}/members/{member_id}/payment", s.treasuryH.TogglePayment)
	mux.HandleFunc("POST /api/withdrawals", s.treasuryH.CreateWithdrawal)

	mux.HandleFunc("GET /api/rollover", s.rolloverH.Status)
	mux.HandleFunc("POST /api/rollover/check", s.rolloverH.Check)
	mux.HandleFunc("POST /api/rollover/force", s.rolloverH.Force)

	mux.HandleFunc("GET /api/push/vapid-key", s.pushH.GetVAPIDKey)
	mux.HandleFunc("POST /api/push/subscribe", s.pushH.Subscribe)
	mux.HandleFunc("GET /api/push/subscriptions", s.pushH.ListSubscriptions)
	mux.HandleFunc("DELETE /api/push/subscriptions/{id}", s.pushH.Unsubscribe)

	mux.HandleFunc("GET /api/archives", s.archiveH.List)
	mux.HandleFunc("GET /api/archives/{id}/download", s.archiveH.Download)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	body := map[string]string{"status": "ok"}
	if err := s.db.PingContext(r.Context()); err != nil {
		status = http.StatusServiceUnavailable
		body["status"] = "database unavailable"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
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

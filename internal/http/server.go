package http

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"trackme/internal/auth"
	applog "trackme/internal/log"
	"trackme/internal/middleware/ratelimit"
	"trackme/internal/middleware/security"
	"trackme/internal/services"
	appweb "trackme/web"
)

// Config wires the server to its services. Only Subscriptions,
// Transactions and Clock are required.
type Config struct {
	Addr          string
	Subscriptions *services.SubscriptionService
	Transactions  *services.TransactionService
	Live          *services.LiveDashboard
	Resetter      *services.CycleResetter
	Verifier      *auth.Verifier
	Clock         services.Clock
	Logger        *applog.Logger

	// AllowedOrigins enables CORS on /api for the listed origins.
	AllowedOrigins []string
	SecureCookies  bool
	// DevLogin exposes a form that mints local tokens with the verifier.
	DevLogin bool
	// Ready reports whether the backing store answers.
	Ready func(ctx context.Context) error

	RequestTimeout    time.Duration
	KeepAliveInterval time.Duration
	WritesPerMinute   int
}

type Server struct {
	http.Server
	cfg       Config
	templates *template.Template
	limiter   *ratelimit.Limiter
	logger    *applog.Logger

	shutdownOnce sync.Once
}

// NewServer parses the embedded templates and builds the router.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Logger == nil {
		cfg.Logger = applog.Discard()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.KeepAliveInterval <= 0 {
		cfg.KeepAliveInterval = 25 * time.Second
	}
	if cfg.WritesPerMinute <= 0 {
		cfg.WritesPerMinute = ratelimit.DefaultConfig().RequestsPerMinute
	}

	t, err := template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	s := &Server{
		cfg:       cfg,
		templates: t,
		limiter:   ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.WritesPerMinute}),
		logger:    cfg.Logger.WithComponent(applog.ComponentHTTP),
	}
	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(applog.RequestLogger(s.logger, func(r *http.Request) string {
		return middleware.GetReqID(r.Context())
	}))
	r.Use(middleware.Recoverer)
	r.Use(security.Headers(security.DefaultHeadersConfig()))
	r.Use(s.cfg.Verifier.Middleware)

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		r.With(security.StaticAssetMiddleware(3600)).Handle("/static/*", static)
	} else {
		s.logger.Warn("Failed to mount embedded static FS", applog.FieldError, err)
	}

	// The event stream outlives the request timeout.
	r.With(s.requireAPISession).Get("/events", s.handleEvents)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(s.cfg.RequestTimeout))
		r.Use(s.limiter.Middleware(s.limitKey, s.handleLimited, http.MethodPost))

		r.Get("/", s.handleLanding)
		r.Get("/login", s.handleLogin)
		// Tokens arrive in a posted form body only, never in the URL.
		r.Post("/auth/callback", s.handleAuthCallback)
		if s.cfg.DevLogin {
			r.Post("/auth/dev", s.handleDevLogin)
		}
		r.Post("/logout", s.handleLogout)
		r.Post("/theme", s.handleTheme)

		r.Group(func(r chi.Router) {
			r.Use(s.requirePageSession)
			r.Get("/dashboard", s.handleDashboard)
			r.Get("/export.xlsx", s.handleExport)

			r.Route("/subscriptions", func(r chi.Router) {
				r.Get("/", s.handleSubscriptions)
				r.Post("/", s.handleCreateSubscription)
				r.Post("/{id}/paid", s.handleMarkPaid)
				r.Post("/{id}/delete", s.handleDeleteSubscription)
			})

			r.Route("/money", func(r chi.Router) {
				r.Get("/", s.handleMoney)
				r.Post("/{type}", s.handleCreateTransaction)
				r.Post("/{type}/{id}/delete", s.handleDeleteTransaction)
			})
		})

		r.Route("/api", func(r chi.Router) {
			if len(s.cfg.AllowedOrigins) > 0 {
				r.Use(cors.Handler(cors.Options{
					AllowedOrigins:   s.cfg.AllowedOrigins,
					AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
					AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
					AllowCredentials: true,
					MaxAge:           300,
				}))
			}
			r.Use(s.requireAPISession)
			r.Get("/overview", s.handleAPIOverview)
			r.Get("/subscriptions", s.handleAPISubscriptions)
			r.Post("/subscriptions", s.handleAPICreateSubscription)
			r.Post("/transactions", s.handleAPICreateTransaction)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.renderStatus(w, r, http.StatusNotFound, "Page not found")
	})
	return r
}

// Shutdown stops the limiter and drains the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// limitKey counts writes per signed-in user and per client address otherwise.
func (s *Server) limitKey(r *http.Request) string {
	if sess := auth.FromContext(r.Context()); sess.State == auth.SignedIn {
		return "user:" + sess.User.ID
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

func (s *Server) handleLimited(w http.ResponseWriter, r *http.Request) {
	applog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, r.RemoteAddr, applog.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "Too many changes. Please wait a minute.").
		Header("Retry-After", "60").
		Write(w)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Ready == nil {
		http.Error(w, "store not configured", http.StatusServiceUnavailable)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	if err := s.cfg.Ready(ctx); err != nil {
		s.logger.WarnContext(ctx, "Readiness check failed", applog.FieldError, err)
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// requirePageSession lets signed-in requests through, sends signed-out
// visitors to the login page and holds pages while the provider is pending.
func (s *Server) requirePageSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch auth.FromContext(r.Context()).State {
		case auth.SignedIn:
			next.ServeHTTP(w, r)
		case auth.Pending:
			s.renderPending(w, r)
		default:
			http.Redirect(w, r, "/login", http.StatusSeeOther)
		}
	})
}

func (s *Server) requireAPISession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch auth.FromContext(r.Context()).State {
		case auth.SignedIn:
			next.ServeHTTP(w, r)
		case auth.Pending:
			writeJSONError(w, http.StatusServiceUnavailable, auth.ErrNotReady.Error())
		default:
			writeJSONError(w, http.StatusUnauthorized, auth.ErrNoToken.Error())
		}
	})
}

func userID(r *http.Request) string {
	return auth.FromContext(r.Context()).User.ID
}

// loadDashboard reads the user's data, running a reset pass first so that
// stale paid flags are cleared before anything is rendered.
func (s *Server) loadDashboard(ctx context.Context, uid string) services.Dashboard {
	today := s.cfg.Clock.Today()
	subs, subErr := s.cfg.Subscriptions.List(ctx, uid)
	if subErr == nil && s.cfg.Resetter != nil && s.cfg.Resetter.Pass(ctx, uid, subs, today) > 0 {
		subs, subErr = s.cfg.Subscriptions.List(ctx, uid)
	}
	txs, txErr := s.cfg.Transactions.List(ctx, uid)

	d := services.BuildDashboard(uid, subs, txs, today)
	d.Err = errors.Join(subErr, txErr)
	if d.Err != nil {
		applog.FromContext(ctx).ErrorContext(ctx, "Failed to load dashboard",
			applog.NewFields().WithRecord(uid, "", "").WithError(d.Err).ToSlice()...)
	}
	return d
}

// Package httpapi serves the registration engine over HTTP with a chi
// router. Request bodies are validated before they reach the engine;
// session-state outcomes are mapped to status codes.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	goSignup "github.com/MrEthical07/goSignup"
	"github.com/MrEthical07/goSignup/middleware"
)

// Registrar is the part of *goSignup.Engine the handlers call.
type Registrar interface {
	StartRegistration(ctx context.Context, req goSignup.RegistrationRequest) (goSignup.StartResult, error)
	SubmitCode(ctx context.Context, sessionID, code string) (goSignup.VerifyResult, error)
	SubmitLink(ctx context.Context, token string) (goSignup.VerifyResult, error)
	RequestResend(ctx context.Context, sessionID string) (goSignup.ResendResult, error)
	ReconcileRegistration(ctx context.Context, sessionID string) (goSignup.VerifyResult, error)
	SessionStatus(ctx context.Context, sessionID string) (goSignup.SessionInfo, error)
}

type Options struct {
	AllowedOrigins []string
	// TrustProxy takes the client IP from X-Forwarded-For / X-Real-IP.
	TrustProxy bool
	// TenantHeader reads the tenant from middleware.TenantHeader.
	TenantHeader bool
	// Metrics is mounted at GET /metrics when set.
	Metrics http.Handler
	// Health is called by GET /healthz; nil always reports healthy.
	Health func(ctx context.Context) error
	Logger *slog.Logger
	// RequestTimeout bounds every request; zero means 30s.
	RequestTimeout time.Duration
}

// NewRouter builds the registration API.
func NewRouter(reg Registrar, opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}

	h := &handler{reg: reg, logger: opts.Logger}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	if opts.TrustProxy {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(requestLogger(opts.Logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(opts.RequestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", middleware.TenantHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", healthHandler(opts.Health))
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Route("/register", func(r chi.Router) {
		r.Use(middleware.ClientContext(opts.TenantHeader))

		r.Post("/", h.start)
		r.Post("/verify", h.verify)
		r.Post("/resend", h.resend)
		r.Post("/reconcile", h.reconcile)
		r.Get("/verify-link", h.verifyLink)
		r.Get("/{sessionID}", h.status)
	})

	return r
}

func healthHandler(check func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			if err := check(r.Context()); err != nil {
				writeError(w, http.StatusServiceUnavailable, "unhealthy")
				return
			}
		}
		writeJSON(w, http.StatusOK, MessageEnvelope{Message: "ok"})
	}
}

// requestLogger logs one line per request. Bodies and query strings are
// never logged: they carry codes, passwords and link tokens.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			logger.InfoContext(r.Context(), "http request",
				slog.String("request_id", chimiddleware.GetReqID(r.Context())),
				slog.String("method", r.Method),
				slog.String("route", route),
				slog.Int("status", ww.Status()),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

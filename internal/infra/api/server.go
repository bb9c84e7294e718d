package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"pix-checkout/internal/infra/logging"
	"pix-checkout/internal/infra/metrics"
	"pix-checkout/internal/usecase"
)

// Deps are the use cases and settings the HTTP layer is built from.
type Deps struct {
	Checkout usecase.CheckoutUseCase
	Webhook  usecase.WebhookUseCase
	Orders   usecase.OrderUseCase
	Catalog  usecase.CatalogUseCase
	Auth     *AuthManager // nil disables /api/admin

	WebhookPath    string
	WebhookSecret  string // empty skips signature checks
	RequestTimeout time.Duration
	// Health reports whether the backing store is reachable.
	Health func(ctx context.Context) error
	// DevCharges exposes manual settlement of in-memory charges (--dev only).
	DevCharges DevCharges
}

// DevCharges is implemented by the in-memory gateway.
type DevCharges interface {
	Complete(correlationID string) error
	Expire(correlationID string) error
}

type Server struct {
	deps Deps
	log  *zerolog.Logger
}

func NewServer(deps Deps, logger *zerolog.Logger) *Server {
	if logger == nil {
		logger = logging.Nop()
	}
	if deps.WebhookPath == "" {
		deps.WebhookPath = "/webhook/pix"
	}
	if deps.RequestTimeout <= 0 {
		deps.RequestTimeout = 10 * time.Second
	}
	return &Server{deps: deps, log: logger}
}

// Routes builds the chi router with every public, webhook and admin route.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(TraceID())
	r.Use(Recover(s.log))
	r.Use(RequestLog(s.log))
	r.Use(Timeout(s.deps.RequestTimeout))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", metrics.Handler())

	r.Route(s.deps.WebhookPath, func(r chi.Router) {
		r.Post("/", s.handleWebhook)
		r.Get("/", s.handleWebhookProbe)
		r.Options("/", s.handleWebhookProbe)
	})

	r.Route("/api/checkout", func(r chi.Router) {
		r.Post("/", s.handleSubmit)
		r.Get("/products/{productId}", s.handleOffer)
		r.Get("/{correlationId}", s.handleStatus)
		r.Delete("/{correlationId}", s.handleTeardown)
	})
	r.Get("/api/orders/{correlationId}", s.handleConfirmation)

	if s.deps.Auth != nil {
		r.Route("/api/admin", s.adminRoutes)
	}
	if s.deps.DevCharges != nil {
		r.Post("/dev/charges/{correlationId}/complete", s.devChargeHandler(s.deps.DevCharges.Complete))
		r.Post("/dev/charges/{correlationId}/expire", s.devChargeHandler(s.deps.DevCharges.Expire))
	}
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.Health != nil {
		if err := s.deps.Health(r.Context()); err != nil {
			logging.With(r.Context(), s.log).Warn().Err(err).Msg("health check failed")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("UNAVAILABLE"))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) devChargeHandler(apply func(string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathParam(r, "correlationId")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := apply(id); err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

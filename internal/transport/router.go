package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/pitabwire/tripflow/internal/config"
	"github.com/pitabwire/tripflow/internal/observability"
	"github.com/pitabwire/tripflow/internal/openapi"
)

// Dependencies holds all injected dependencies for the HTTP transport layer.
type Dependencies struct {
	Config       *config.Config
	Logger       *zap.Logger
	Service      TripService
	API          *openapi.Index
	Metrics      *observability.Metrics
	Readiness    observability.ReadinessChecks
	Authenticate func(http.Handler) http.Handler
}

// NewRouter creates a chi.Router with the full middleware pipeline and all
// route registrations. Health, readiness, metrics, and the API document
// bypass authentication.
func NewRouter(deps Dependencies) chi.Router {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := deps.Config
	if cfg == nil {
		cfg = config.Defaults()
	}

	r := chi.NewRouter()

	// Global middleware: applied to all routes including health.
	r.Use(Recovery(logger))
	r.Use(observability.TracingMiddleware)
	if deps.Metrics != nil {
		r.Use(deps.Metrics.MetricsMiddleware)
	}
	r.Use(CORS(cfg.Server.CORS))
	r.Use(RequestID)
	r.Use(SecurityHeaders)

	r.Get("/healthz", observability.HandleHealth())
	r.Get("/readyz", observability.HandleReady(deps.Readiness))
	if cfg.Observability.Metrics.Enabled {
		r.Method(http.MethodGet, cfg.Observability.Metrics.Path, observability.Handler())
	}
	r.Get("/openapi.yaml", handleAPIDocument(deps.API))

	auth := deps.Authenticate
	if auth == nil {
		auth = func(next http.Handler) http.Handler { return next }
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(auth)
		r.Use(BuildRequestContext(logger))
		r.Use(HandlerTimeout(cfg.Server.HandlerTimeout))
		r.Use(LimitBody(cfg.Server.MaxBodyBytes))
		r.Use(RequestLogging(logger))

		svc := deps.Service
		r.Get("/trips", handleTripList(svc))
		r.Get("/trips/{tripId}", handleTripGet(svc))
		r.Put("/trips/{tripId}", handleTripPut(svc, deps.API))
		r.Delete("/trips/{tripId}", handleTripDelete(svc))
		r.Post("/trips/{tripId}/recompute", handleTripRecompute(svc, deps.API))
		r.Post("/trips/{tripId}/actions", handleTripActions(svc, deps.API))
		r.Post("/trips/{tripId}/links/validate", handleTripValidateLinks(svc))
		r.Get("/trips/{tripId}/report", handleTripReport(svc))
		r.Get("/trips/{tripId}/comments", handleTripComments(svc))
	})

	return r
}

package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/yndnr/licmesh/internal/core/domain"
	"github.com/yndnr/licmesh/internal/core/service"
	"github.com/yndnr/licmesh/internal/host"
	"github.com/yndnr/licmesh/internal/server/httpserver/handler"
	"github.com/yndnr/licmesh/internal/telemetry/metric"
)

// RouterConfig holds configuration for the HTTP router.
type RouterConfig struct {
	// Ledger serves transitions and reads.
	Ledger host.Ledger

	// Access issues and verifies credentials.
	Access *service.AccessService

	// Reconciler backs the parked-event admin endpoints. Optional.
	Reconciler *service.Reconciler

	// Auth resolves API keys to callers. Without it every request is
	// anonymous.
	Auth *service.AuthService

	// Authorizer decides admin access.
	Authorizer domain.Authorizer

	// Forward relays ledger writes from a follower to the leader. Optional;
	// Forward.Leader nil serves every write locally.
	Forward ForwardConfig

	// Ready reports write readiness for GET /ready. Optional.
	Ready func() error

	// Metrics records request durations and serves /metrics. Optional.
	Metrics *metric.Registry

	// Logger for request logging.
	Logger *slog.Logger
}

// NewRouter creates and configures the HTTP router with all routes and middleware.
func NewRouter(cfg *RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	h := handler.New(handler.Config{
		Ledger:     cfg.Ledger,
		Access:     cfg.Access,
		Reconciler: cfg.Reconciler,
		Ready:      cfg.Ready,
		Logger:     logger,
	})

	mux := http.NewServeMux()

	// Order: Recover -> RequestID -> Audit -> [ForwardToLeader | Caller -> AdminOnly] -> Handler
	mount := func(pattern string, extra ...Middleware) {
		chain := []Middleware{Recover(logger), RequestID(logger), Audit(logger, cfg.Metrics, pattern)}
		mux.Handle(pattern, Chain(h, append(chain, extra...)...))
	}

	// Health endpoints - no api key required
	for _, pattern := range handler.PublicRoutes {
		mount(pattern)
	}

	// Business API endpoints; ledger writes go to the leader before any
	// local authentication, which the leader repeats.
	forward := cfg.Forward
	if forward.Logger == nil {
		forward.Logger = logger
	}
	if forward.Metrics == nil {
		forward.Metrics = cfg.Metrics
	}
	for _, pattern := range handler.APIRoutes {
		if handler.LedgerWriteRoutes[pattern] {
			mount(pattern, ForwardToLeader(forward), Caller(cfg.Auth))
			continue
		}
		mount(pattern, Caller(cfg.Auth))
	}

	// Admin endpoints
	for _, pattern := range handler.AdminRoutes {
		mount(pattern, Caller(cfg.Auth), AdminOnly(cfg.Authorizer))
	}

	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics.Handler())
	}

	return mux
}

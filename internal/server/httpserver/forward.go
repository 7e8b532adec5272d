package httpserver

import (
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/yndnr/licmesh/internal/core/domain"
	"github.com/yndnr/licmesh/internal/server/httpserver/handler"
	"github.com/yndnr/licmesh/internal/telemetry/logger"
	"github.com/yndnr/licmesh/internal/telemetry/metric"
)

// LeaderLocator finds the node that must execute ledger writes.
// LeaderAPI returns local=true on the leader. Otherwise it returns the
// leader's API base URL, or nil when the leader or its URL is unknown.
type LeaderLocator interface {
	LeaderAPI() (api *url.URL, local bool)
}

// ForwardConfig configures ForwardToLeader.
type ForwardConfig struct {
	Leader LeaderLocator

	// NodeID is sent in HeaderForwardedBy.
	NodeID string

	// Transport reaches the leader. Defaults to http.DefaultTransport.
	Transport http.RoundTripper

	Metrics *metric.Registry
	Logger  *slog.Logger
}

// ForwardToLeader proxies a ledger write to the leader when this node is a
// follower. The request, API key included, is relayed unchanged and the
// leader authenticates it. When the leader is unknown, or the request was
// already forwarded once, the local handler runs and answers not-leader.
func ForwardToLeader(cfg ForwardConfig) Middleware {
	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.Leader == nil || r.Header.Get(handler.HeaderForwardedBy) != "" {
				next.ServeHTTP(w, r)
				return
			}
			target, local := cfg.Leader.LeaderAPI()
			if local || target == nil {
				next.ServeHTTP(w, r)
				return
			}

			proxy := &httputil.ReverseProxy{
				Rewrite: func(pr *httputil.ProxyRequest) {
					pr.SetURL(target)
					pr.SetXForwarded()
					pr.Out.Header.Set(handler.HeaderForwardedBy, cfg.NodeID)
					if id := logger.RequestIDFromContext(pr.In.Context()); id != "" {
						pr.Out.Header.Set(handler.HeaderRequestID, id)
					}
				},
				Transport: transport,
				ModifyResponse: func(resp *http.Response) error {
					// RequestID already set the header on w.
					resp.Header.Del(handler.HeaderRequestID)
					cfg.Metrics.ObserveForward("ok")
					return nil
				},
				ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
					cfg.Metrics.ObserveForward("unreachable")
					log.Warn("forward to leader failed",
						"leader", target.String(),
						"path", r.URL.Path,
						"error", err)
					writeMiddlewareError(w, r, domain.ErrNotLeader.WithDetailsf("leader at %s unreachable", target.Host))
				},
			}
			proxy.ServeHTTP(w, r)
		})
	}
}

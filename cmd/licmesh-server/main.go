package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/yndnr/licmesh/internal/cluster"
	"github.com/yndnr/licmesh/internal/core/service"
	"github.com/yndnr/licmesh/internal/host"
	"github.com/yndnr/licmesh/internal/infra/buildinfo"
	"github.com/yndnr/licmesh/internal/infra/confloader"
	"github.com/yndnr/licmesh/internal/infra/shutdown"
	"github.com/yndnr/licmesh/internal/infra/tlsroots"
	"github.com/yndnr/licmesh/internal/ledger"
	"github.com/yndnr/licmesh/internal/server/config"
	"github.com/yndnr/licmesh/internal/server/httpserver"
	"github.com/yndnr/licmesh/internal/storage"
	"github.com/yndnr/licmesh/internal/storage/journal"
	"github.com/yndnr/licmesh/internal/storage/memory"
	"github.com/yndnr/licmesh/internal/telemetry/logger"
	"github.com/yndnr/licmesh/internal/telemetry/metric"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("licmesh-server %s\n", buildinfo.String())
		return nil
	}

	cfg, sources, err := loadConfig(*configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, slogLogger, err := initLogger(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	info := buildinfo.Get()
	log.Info("starting licmesh-server",
		"version", info.Version,
		"commit", info.Commit,
		"config", *configFile,
		"config_sources", sources)
	log.Debug("effective configuration", "config", config.Sanitize(cfg))

	metrics := metric.NewRegistry()
	shutdownHandler := shutdown.NewHandler(cfg.HTTP.ShutdownTimeout, shutdown.WithLogger(slogLogger))

	// Hooks run in reverse registration order, so register teardown of
	// the lower layers first.
	ledgerHost, ready, err := initLedger(cfg, metrics, slogLogger, shutdownHandler)
	if err != nil {
		return fmt.Errorf("init ledger: %w", err)
	}
	metrics.MustRegister(metric.NewCollector(func() metric.LedgerStats {
		s := ledgerHost.Stats()
		return metric.LedgerStats{Live: s.Live, Minted: s.Minted, Slots: s.Slots, Orphaned: s.Orphaned, Seq: s.Seq}
	}))

	store, err := initCredentialStore(cfg, metrics, slogLogger, shutdownHandler)
	if err != nil {
		return fmt.Errorf("init credential store: %w", err)
	}

	signer, err := service.NewSigner([]byte(cfg.Credential.Secret), cfg.Credential.Issuer)
	if err != nil {
		return fmt.Errorf("init signer: %w", err)
	}
	access := service.NewAccessService(ledgerHost, store, signer, service.AccessConfig{
		TTL:     cfg.Credential.TTL,
		Metrics: metrics,
	})
	reconciler := service.NewReconciler(ledgerHost.Feed(), store, service.ReconcilerConfig{
		BatchSize:     cfg.Reconciler.BatchSize,
		MaxAttempts:   cfg.Reconciler.MaxAttempts,
		Backoff:       cfg.Reconciler.Backoff,
		CompactSource: true,
		Metrics:       metrics,
	})

	bgCtx, stopBackground := context.WithCancel(context.Background())
	reconcilerDone := make(chan struct{})
	go func() {
		defer close(reconcilerDone)
		if err := reconciler.Run(bgCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("reconciler stopped", "error", err)
			shutdownHandler.Trigger("reconciler failure")
		}
	}()
	go gcLoop(bgCtx, store, cfg.Credential.GCInterval, slogLogger)
	shutdownHandler.OnShutdown("background workers", func(ctx context.Context) error {
		stopBackground()
		select {
		case <-reconcilerDone:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	authorizer, err := config.ToAuthorizer(cfg)
	if err != nil {
		return err
	}
	apiKeys, err := config.ToAPIKeys(cfg)
	if err != nil {
		return err
	}
	auth, err := service.NewAuthService(apiKeys, service.AuthConfig{Metrics: metrics})
	if err != nil {
		return err
	}
	if auth.Len() == 0 {
		log.Warn("no api keys configured; every request is anonymous and writes are refused")
	}

	var keyPair *tlsroots.KeyPair
	if cfg.HTTP.TLSCertFile != "" {
		keyPair, err = tlsroots.LoadKeyPair(cfg.HTTP.TLSCertFile, cfg.HTTP.TLSKeyFile, slogLogger)
		if err != nil {
			return fmt.Errorf("load TLS key pair: %w", err)
		}
	}

	forward, err := initForward(cfg, ledgerHost)
	if err != nil {
		return fmt.Errorf("init leader forwarding: %w", err)
	}

	router := httpserver.NewRouter(&httpserver.RouterConfig{
		Ledger:     ledgerHost,
		Access:     access,
		Reconciler: reconciler,
		Auth:       auth,
		Authorizer: authorizer,
		Forward:    forward,
		Ready:      ready,
		Metrics:    metrics,
		Logger:     slogLogger,
	})
	httpServer := httpserver.New(httpserver.Config{
		Addr:         cfg.HTTP.Addr,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		KeyPair:      keyPair,
	}, router)

	if *configFile != "" || keyPair != nil {
		watcher, err := startWatcher(*configFile, cfg, keyPair, auth, slogLogger)
		if err != nil {
			log.Warn("config watcher disabled", "error", err)
		} else {
			shutdownHandler.OnShutdown("config watcher", func(context.Context) error {
				return watcher.Stop()
			})
		}
	}

	shutdownHandler.OnShutdown("http server", func(ctx context.Context) error {
		return httpServer.Shutdown(ctx)
	})

	go func() {
		log.Info("HTTP server listening", "addr", cfg.HTTP.Addr, "tls", httpServer.TLS())
		if err := httpServer.ListenAndServe(); err != nil {
			log.Error("HTTP server error", "error", err)
			shutdownHandler.Trigger("http server failure")
		}
	}()

	log.Info("server started, press Ctrl+C to stop")
	if err := shutdownHandler.Wait(); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}

	log.Info("server stopped gracefully")
	return nil
}

// loadConfig layers the file and LICMESH_* environment over the defaults
// and verifies the result. It also reports the sources that contributed.
func loadConfig(configFile string) (*config.ServerConfig, []string, error) {
	var opts []confloader.Option
	if configFile != "" {
		opts = append(opts, confloader.WithConfigFile(configFile))
	}

	cfg := config.Default()
	loader := confloader.NewLoader(opts...)
	if err := loader.Load(cfg); err != nil {
		return nil, nil, err
	}
	if err := config.Verify(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, loader.Sources(), nil
}

// initLogger initializes the structured logger.
// Returns both the logger interface and slog.Logger for components that need it.
func initLogger(cfg *config.ServerConfig) (logger.Logger, *slog.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
	})
	if err != nil {
		return nil, nil, err
	}
	logger.SetDefault(log)
	return log, logger.Slog(log), nil
}

// initLedger builds the engine and the host that orders its transitions:
// a journaled local host, or a Raft replica when clustering is enabled.
// The returned func reports write readiness.
func initLedger(cfg *config.ServerConfig, metrics *metric.Registry, log *slog.Logger, sh *shutdown.Handler) (host.Ledger, func() error, error) {
	opts, err := config.ToLedgerOptions(cfg)
	if err != nil {
		return nil, nil, err
	}
	authorizer, err := config.ToAuthorizer(cfg)
	if err != nil {
		return nil, nil, err
	}
	engine, err := ledger.NewEngine(authorizer, opts)
	if err != nil {
		return nil, nil, err
	}

	if cfg.Cluster.Enabled {
		return initCluster(cfg, engine, metrics, log, sh)
	}

	j, err := journal.Open(config.ToJournalConfig(cfg, log))
	if err != nil {
		return nil, nil, err
	}
	sh.OnShutdown("journal", func(context.Context) error {
		return j.Close()
	})

	local := host.NewLocal(engine, host.LocalConfig{
		Journal: j,
		Metrics: metrics,
		Logger:  log,
	})
	if err := local.Recover(context.Background()); err != nil {
		return nil, nil, err
	}
	return local, local.Err, nil
}

func initCluster(cfg *config.ServerConfig, engine *ledger.Engine, metrics *metric.Registry, log *slog.Logger, sh *shutdown.Handler) (host.Ledger, func() error, error) {
	raftCfg, err := config.ToRaftConfig(cfg, log)
	if err != nil {
		return nil, nil, err
	}

	fsm := cluster.NewFSM(engine, host.NewFeed(), log)
	node, err := cluster.NewRaftNode(raftCfg, fsm)
	if err != nil {
		return nil, nil, fmt.Errorf("start raft node: %w", err)
	}
	sh.OnShutdown("raft node", func(context.Context) error {
		return node.Close()
	})

	log.Info("raft node started",
		"node_id", raftCfg.NodeID,
		"raft_addr", raftCfg.BindAddr,
		"bootstrap", raftCfg.Bootstrap)

	apis, err := config.ToClusterAPIs(cfg)
	if err != nil {
		return nil, nil, err
	}
	h := cluster.NewRaftHost(node, fsm, cluster.HostConfig{
		ApplyTimeout: cfg.Cluster.ApplyTimeout,
		APIs:         apis,
		Metrics:      metrics,
		Logger:       log,
	})
	ready := func() error {
		if node.Leader() == "" {
			return errors.New("no raft leader elected")
		}
		return nil
	}
	return h, ready, nil
}

// initForward lets a Raft follower relay ledger writes to the leader's
// API. A local host never forwards.
func initForward(cfg *config.ServerConfig, h host.Ledger) (httpserver.ForwardConfig, error) {
	rh, ok := h.(*cluster.RaftHost)
	if !ok {
		return httpserver.ForwardConfig{}, nil
	}

	roots := tlsroots.NewPool()
	if cfg.Cluster.ForwardCAFile != "" {
		if err := roots.AddCertFile(cfg.Cluster.ForwardCAFile); err != nil {
			return httpserver.ForwardConfig{}, err
		}
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = roots.ClientTLSConfig(false)

	return httpserver.ForwardConfig{
		Leader:    rh,
		NodeID:    rh.Node().NodeID(),
		Transport: transport,
	}, nil
}

// initCredentialStore opens the issued-credential store named by
// storage.credential_backend.
func initCredentialStore(cfg *config.ServerConfig, metrics *metric.Registry, log *slog.Logger, sh *shutdown.Handler) (service.CredentialStore, error) {
	if cfg.Storage.CredentialBackend != config.BackendBadger {
		log.Info("credential store initialized", "backend", config.BackendMemory)
		return memory.New(), nil
	}

	engine, err := storage.NewBadgerEngine(config.ToKVConfig(cfg), log)
	if err != nil {
		return nil, err
	}
	engine.RegisterMetrics(metrics.Prometheus())
	sh.OnShutdown("credential store", func(context.Context) error {
		return engine.Close()
	})
	log.Info("credential store initialized", "backend", config.BackendBadger)
	return storage.NewBadgerCredentialStore(engine), nil
}

// gcLoop drops expired credential records every interval.
func gcLoop(ctx context.Context, store service.CredentialStore, interval time.Duration, log *slog.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := store.DeleteExpired(ctx, now.UnixMilli())
			if err != nil {
				log.Warn("credential gc failed", "error", err)
				continue
			}
			if n > 0 {
				log.Debug("credential gc", "deleted", n)
			}
		}
	}
}

// startWatcher reloads the log level and API keys when the config file
// changes and the TLS key pair when its files are rewritten. Other settings
// need a restart.
func startWatcher(configFile string, current *config.ServerConfig, keyPair *tlsroots.KeyPair, auth *service.AuthService, log *slog.Logger) (*confloader.Watcher, error) {
	w, err := confloader.NewWatcher(confloader.WithWatcherLogger(log))
	if err != nil {
		return nil, err
	}

	paths := []string{}
	if configFile != "" {
		paths = append(paths, configFile)
	}
	if keyPair != nil {
		paths = append(paths, current.HTTP.TLSCertFile, current.HTTP.TLSKeyFile)
	}
	for _, p := range paths {
		if err := w.Watch(p); err != nil {
			w.Stop()
			return nil, err
		}
	}

	w.OnChange(func(path string) {
		if keyPair != nil && keyPair.Owns(path) {
			if err := keyPair.Reload(); err != nil {
				log.Error("TLS key pair reload failed", "path", path, "error", err)
			}
			return
		}
		cfg, _, err := loadConfig(configFile)
		if err != nil {
			log.Error("config reload rejected", "path", path, "error", err)
			return
		}
		if prev := logger.Level(); !strings.EqualFold(cfg.Log.Level, prev) {
			if err := logger.SetLevel(cfg.Log.Level); err != nil {
				log.Error("log level not changed", "error", err)
			} else {
				log.Info("log level changed", "from", prev, "to", logger.Level())
			}
		}
		keys, err := config.ToAPIKeys(cfg)
		if err == nil {
			err = auth.SetKeys(keys)
		}
		if err != nil {
			log.Error("api key reload rejected", "path", path, "error", err)
			return
		}
		log.Info("api keys reloaded", "count", len(keys))
	})
	w.StartAsync()
	return w, nil
}

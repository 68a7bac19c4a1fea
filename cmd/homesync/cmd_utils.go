package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/nhle/homesync/internal/api"
	"github.com/nhle/homesync/internal/credential"
	"github.com/nhle/homesync/internal/logging"
	"github.com/nhle/homesync/internal/metrics"
	"github.com/nhle/homesync/internal/mockapi"
	"github.com/nhle/homesync/internal/model"
	"github.com/nhle/homesync/internal/push"
	"github.com/nhle/homesync/internal/session"
	"github.com/nhle/homesync/internal/store"
)

// runtime holds what every command opens: config, logger, local store
// and optionally the metrics endpoint.
type runtime struct {
	cfg     *model.AppConfig
	log     zerolog.Logger
	kv      *store.SQLiteStore
	metrics *metrics.Metrics

	closers []io.Closer
	server  *http.Server
}

func openRuntime() (*runtime, error) {
	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if offline {
		cfg.Offline = true
	}

	log, logCloser, err := logging.Open(cfg.Log, os.Stderr)
	if err != nil {
		return nil, err
	}
	rt := &runtime{cfg: cfg, log: log, closers: []io.Closer{logCloser}}

	kv, err := store.NewSQLiteStore(cfg.Storage.Path, logging.Component(log, "store"))
	if err != nil {
		rt.close()
		return nil, err
	}
	rt.kv = kv
	rt.closers = append(rt.closers, kv)

	if metricsAddr != "" {
		reg := prometheus.NewRegistry()
		rt.metrics = metrics.New(reg)
		rt.serveMetrics(reg)
	}
	return rt, nil
}

func (rt *runtime) serveMetrics(reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	rt.server = &http.Server{
		Addr:              metricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		err := rt.server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			rt.log.Error().Err(err).Str("addr", metricsAddr).Msg("metrics server stopped")
		}
	}()
	rt.log.Info().Str("addr", metricsAddr).Msg("serving metrics")
}

func (rt *runtime) close() {
	if rt.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		_ = rt.server.Shutdown(ctx)
		cancel()
	}
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i].Close(); err != nil {
			fmt.Fprintln(os.Stderr, "closing:", err)
		}
	}
}

func (rt *runtime) openTokens() (*credential.Tokens, error) {
	return credential.OpenTokens(model.ConfigDir())
}

// sessionDeps builds the backend and push transport. withPush is false
// for one-shot commands, which only need REST.
func (rt *runtime) sessionDeps(withPush bool) (session.Deps, error) {
	cfg := rt.cfg
	deps := session.Deps{
		KV:      rt.kv,
		Sync:    cfg.Sync,
		Timeout: model.Seconds(cfg.Server.RequestTimeoutSec),
		Metrics: rt.metrics,
		Log:     rt.log,
	}

	if cfg.Offline {
		backend := mockapi.Seeded(time.Now(), mockapi.WithLatency(150*time.Millisecond))
		deps.Backend = backend
		if withPush {
			deps.Dialer = backend.Feed()
			deps.PushURL = func(householdID string) (string, error) {
				return push.URL("http://offline", cfg.Server.WebSocketPath, householdID)
			}
		}
		return deps, nil
	}

	tokens, err := rt.openTokens()
	if err != nil {
		return deps, err
	}
	token, err := tokens.Token(cfg.Server.BaseURL)
	if err != nil {
		return deps, err
	}

	deps.Backend = api.NewClient(cfg.Server.BaseURL, tokens.Source(cfg.Server.BaseURL),
		api.WithTimeout(model.Seconds(cfg.Server.RequestTimeoutSec)),
		api.WithRetry(cfg.Server.MaxRetries, time.Second, 30*time.Second),
		api.WithRateLimit(cfg.Server.RequestsPerSecond),
		api.WithMetrics(rt.metrics),
		api.WithLogger(logging.Component(rt.log, "api")),
	)
	if withPush {
		deps.Dialer = push.NewWebSocketDialer()
		deps.PushURL = func(householdID string) (string, error) {
			return push.URL(cfg.Server.BaseURL, cfg.Server.WebSocketPath, householdID)
		}
		deps.PushHeader = http.Header{"Authorization": []string{"Bearer " + token}}
	}
	return deps, nil
}

func (rt *runtime) startSession(ctx context.Context, withPush bool) (*session.Session, error) {
	deps, err := rt.sessionDeps(withPush)
	if err != nil {
		return nil, err
	}
	sess, err := session.Start(ctx, deps)
	var authErr *api.AuthError
	if errors.As(err, &authErr) {
		return nil, fmt.Errorf("%w; run `homesync login`", err)
	}
	return sess, err
}

// withSession runs fn against a REST-only session and tears everything
// down afterwards.
func withSession(ctx context.Context, fn func(context.Context, *runtime, *session.Session) error) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	sess, err := rt.startSession(ctx, false)
	if err != nil {
		return err
	}
	defer sess.Close()

	return fn(ctx, rt, sess)
}

func defaultPreferences(cfg *model.AppConfig) model.Preferences {
	return model.Preferences{
		Theme:         cfg.Display.Theme,
		HighContrast:  cfg.Display.HighContrast,
		ReducedMotion: cfg.Display.ReducedMotion,
	}
}

package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"funding-rate-alerts/internal/alerting"
	"funding-rate-alerts/internal/cache"
	"funding-rate-alerts/internal/config"
	"funding-rate-alerts/internal/monitor"
	"funding-rate-alerts/internal/proxy"
	"funding-rate-alerts/internal/scheduler"
	"funding-rate-alerts/internal/upstream"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newUpstreamClient() *upstream.Client {
	return upstream.NewClient(upstream.Options{
		BaseURL:      a.Config.Upstream.BaseURL,
		APIKey:       a.Config.Upstream.APIKey,
		APIKeyHeader: a.Config.Upstream.APIKeyHeader,
		Timeout:      a.Config.Upstream.RequestTimeout,
		UserAgent:    a.Config.Upstream.UserAgent,
	}, a.Logger)
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.WebhookURL == "" {
		a.Logger.Warn().Msg("alerting.webhook_url not configured; notifications degrade to log lines")
		return alerting.NewNoopNotifier(a.Logger)
	}
	return alerting.NewWebhookNotifier(a.Config.Alerting.WebhookURL, a.Config.Alerting.RequestTimeout, a.Logger)
}

// Serve runs the proxy HTTP server until interrupted.
func (a *App) Serve(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	responseCache := cache.New(a.Config.Proxy.CacheTTL)
	server := proxy.NewServer(proxy.Options{
		ListenAddr:     a.Config.Proxy.ListenAddr,
		DefaultSymbol:  a.Config.Proxy.DefaultSymbol,
		MaxAttempts:    a.Config.Proxy.MaxAttempts,
		InitialBackoff: a.Config.Proxy.InitialBackoff,
	}, a.newUpstreamClient(), responseCache, a.Logger)

	a.Logger.Info().Msg("starting proxy server")
	err := server.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("proxy terminated with error")
		return err
	}

	a.Logger.Info().Msg("proxy server stopped")
	return nil
}

// Run executes the long-running monitoring loop until interrupted.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Monitor.PollInterval,
		AlignToClock: a.Config.Monitor.AlignToClock,
		StartupDelay: a.Config.Monitor.StartupDelay,
	}, a.Logger)

	client := monitor.NewClient(a.Config.Monitor.ProxyBaseURL, a.Config.Monitor.RequestTimeout, a.Logger)
	poller := monitor.NewPoller(
		client,
		a.Config.CanonicalResources(),
		a.Config.Monitor.Symbols,
		a.Config.Monitor.FailureThreshold,
		monitor.NewDeduplicator(a.Config.Alerting.MinResendInterval),
		monitor.NewFailureTracker(),
		a.newNotifier(),
		a.Logger,
	)

	a.Logger.Info().
		Strs("resources", a.Config.CanonicalResources()).
		Strs("symbols", a.Config.Monitor.Symbols).
		Dur("interval", a.Config.Monitor.PollInterval).
		Msg("starting monitoring loop")

	err := sched.Run(ctx, poller.Tick)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("monitor terminated with error")
		return err
	}

	a.Logger.Info().Msg("monitoring loop stopped")
	return nil
}

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/commercehub/notifier/internal/api"
	"github.com/commercehub/notifier/internal/conf"
	"github.com/commercehub/notifier/internal/datastore"
	"github.com/commercehub/notifier/internal/httpclient"
	"github.com/commercehub/notifier/internal/logging"
	"github.com/commercehub/notifier/internal/notification"
	"github.com/commercehub/notifier/internal/observability"
	"github.com/commercehub/notifier/internal/odoo"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the notification service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := conf.Load(configPath)
			if err != nil {
				return fmt.Errorf("loading configuration: %w", err)
			}
			if debugFlag {
				settings.Debug = true
			}
			return runServe(cmd.Context(), settings)
		},
	}
}

func runServe(ctx context.Context, settings *conf.Settings) error {
	logging.Init(settings.Debug)
	logger := logging.Structured()

	if settings.Main.Log.Enabled {
		fileLogger, closeLog, err := logging.NewFileLogger(settings.Main.Log.Path, "notifier", logLevel(settings.Debug))
		if err != nil {
			return fmt.Errorf("setting up file logging: %w", err)
		}
		defer func() { _ = closeLog() }()
		logger = fileLogger
	}

	store, err := datastore.Open(settings.Database.Path, logger)
	if err != nil {
		return fmt.Errorf("opening datastore: %w", err)
	}
	defer func() { _ = store.Close() }()

	registry := prometheus.NewRegistry()
	metrics, err := observability.NewMetrics(registry)
	if err != nil {
		return fmt.Errorf("registering metrics: %w", err)
	}

	httpClient := httpclient.New(nil)
	defer httpClient.Close()

	users := store.Users()
	dispatcher := notification.NewDispatcher(
		transportConfig(&settings.Notification.Channels),
		httpClient, users, store.Records(), metrics, logger)

	service := notification.NewService(notification.ServiceConfig{
		DefaultChannels: parseChannels(settings.Notification.DefaultChannels),
		EmailTypes:      settings.Notification.EmailTypes,
		Expiry:          settings.Notification.Expiry,
		CleanupInterval: settings.Notification.CleanupInterval,
		Debug:           settings.Debug || settings.Notification.Debug,
	}, store.Records(), users, dispatcher, metrics, logger)
	defer service.Stop()

	var worker *odoo.Worker
	if settings.Odoo.Enabled {
		client := odoo.NewClient(odoo.ClientConfig{
			URL:      settings.Odoo.URL,
			Database: settings.Odoo.Database,
			Login:    settings.Odoo.Login,
			Password: settings.Odoo.Password,
		}, httpClient, logger)

		if !settings.OdooConnectionConfigured() {
			logger.Warn("odoo sync enabled but connection settings incomplete, worker idle")
		}

		dedup := odoo.NewTTLDedup(settings.Odoo.DedupWindow, settings.Odoo.DedupRetention)
		worker = odoo.NewWorker(odoo.WorkerConfig{
			Interval:    settings.Odoo.SyncInterval,
			Lookback:    settings.Odoo.Lookback,
			PageSize:    settings.Odoo.PageSize,
			AdminUserID: settings.Odoo.AdminUserID,
		}, client, store.SyncStates(), dedup, service, metrics, logger)
		worker.Start()
		defer worker.Stop()
	}

	// HTTP logs go to the console logger even when file logging is on,
	// so access-level noise stays out of the service log
	controller := api.New(api.Config{
		Port:          settings.WebServer.Port,
		WebhookSecret: settings.Odoo.WebhookSecret,
		Debug:         settings.WebServer.Debug,
	}, service, users, registry, logging.ForService("api"))

	errCh := make(chan error, 1)
	go func() {
		errCh <- controller.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return controller.Shutdown(shutdownCtx)
}

func logLevel(debug bool) slog.Level {
	if debug {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// transportConfig resolves per-channel transports from settings once at
// startup.
func transportConfig(channels *conf.ChannelSettings) *notification.TransportConfig {
	return &notification.TransportConfig{
		Email: notification.EmailTransport{
			SMTPURL: channels.Email.SMTPURL,
			From:    channels.Email.From,
			Webhook: webhookEndpoint(channels.Email.WebhookChannelSettings),
		},
		SMS:     webhookEndpoint(channels.SMS),
		Push:    webhookEndpoint(channels.Push),
		WebPush: webhookEndpoint(channels.WebPush),
	}
}

func webhookEndpoint(cfg conf.WebhookChannelSettings) notification.WebhookEndpoint {
	return notification.WebhookEndpoint{
		URL:     cfg.URL,
		Secret:  cfg.Secret,
		Timeout: cfg.Timeout,
	}
}

func parseChannels(names []string) []notification.Channel {
	channels := make([]notification.Channel, 0, len(names))
	for _, name := range names {
		if c, ok := notification.ParseChannel(name); ok {
			channels = append(channels, c)
		}
	}
	return channels
}

// Package api exposes the HTTP surface: the signed ERP webhook ingress, the
// notification REST API, the SSE stream and operational endpoints.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/commercehub/notifier/internal/errors"
	"github.com/commercehub/notifier/internal/notification"
)

// Config holds API server settings.
type Config struct {
	Port          string
	WebhookSecret string // shared secret for the ERP webhook ingress
	Debug         bool
}

// Controller wires the HTTP routes to the notification service.
type Controller struct {
	echo    *echo.Echo
	config  Config
	service *notification.Service
	users   notification.UserDirectory
	logger  *slog.Logger
}

// New creates the API controller and registers all routes. The logger is
// used as-is; callers hand in a service-scoped logger.
func New(config Config, service *notification.Service, users notification.UserDirectory, registry prometheus.Gatherer, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default().With("service", "api")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	ctrl := &Controller{
		echo:    e,
		config:  config,
		service: service,
		users:   users,
		logger:  logger,
	}

	v1 := e.Group("/api/v1")
	v1.POST("/events/approval", ctrl.HandleApprovalEvent)

	v1.GET("/notifications", ctrl.ListNotifications)
	v1.GET("/notifications/stream", ctrl.StreamNotifications)
	v1.GET("/notifications/unread/count", ctrl.GetUnreadCount)
	v1.GET("/notifications/stats", ctrl.GetStats)
	v1.GET("/notifications/:id", ctrl.GetNotification)
	v1.PUT("/notifications/:id/read", ctrl.MarkAsRead)
	v1.PUT("/notifications/:id/archive", ctrl.ArchiveNotification)
	v1.DELETE("/notifications/:id", ctrl.DeleteNotification)

	v1.GET("/health", ctrl.Health)
	if registry != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	}

	return ctrl
}

// Echo exposes the underlying echo instance for tests.
func (ctrl *Controller) Echo() *echo.Echo {
	return ctrl.echo
}

// Start runs the HTTP server. Blocks until the server stops.
func (ctrl *Controller) Start() error {
	ctrl.logger.Info("http server starting", "port", ctrl.config.Port)
	return ctrl.echo.Start(":" + ctrl.config.Port)
}

// Shutdown gracefully stops the HTTP server.
func (ctrl *Controller) Shutdown(ctx context.Context) error {
	return ctrl.echo.Shutdown(ctx)
}

// Health reports service liveness.
func (ctrl *Controller) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status": "ok",
		"time":   time.Now().UTC(),
	})
}

// errorStatus maps store errors to HTTP status codes.
func errorStatus(err error) int {
	if errors.IsNotFound(err) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

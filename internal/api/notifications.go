package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/commercehub/notifier/internal/errors"
	"github.com/commercehub/notifier/internal/notification"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200

	// sseHeartbeatInterval keeps idle SSE connections alive through proxies.
	sseHeartbeatInterval = 30 * time.Second
	// sseMaxConnDuration bounds a single SSE connection; clients reconnect.
	sseMaxConnDuration = 10 * time.Minute
)

// ListNotifications returns a user's notifications, newest first.
// Query params: user (required), status, type, limit, offset.
func (ctrl *Controller) ListNotifications(c echo.Context) error {
	userID := c.QueryParam("user")
	if userID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "user parameter required"})
	}

	filter := &notification.FilterOptions{
		UserID: userID,
		Limit:  defaultListLimit,
	}
	if status := c.QueryParam("status"); status != "" {
		filter.Status = []notification.Status{notification.Status(status)}
	}
	if notifType := c.QueryParam("type"); notifType != "" {
		filter.Types = []notification.Type{notification.Type(notifType)}
	}
	if raw := c.QueryParam("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid limit"})
		}
		filter.Limit = min(limit, maxListLimit)
	}
	if raw := c.QueryParam("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid offset"})
		}
		filter.Offset = offset
	}

	records, err := ctrl.service.List(filter)
	if err != nil {
		return c.JSON(errorStatus(err), map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"notifications": records,
		"count":         len(records),
	})
}

// GetNotification returns a single notification by id.
func (ctrl *Controller) GetNotification(c echo.Context) error {
	record, err := ctrl.service.Get(c.Param("id"))
	if err != nil {
		return c.JSON(errorStatus(err), map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, record)
}

// MarkAsRead transitions a notification to read.
func (ctrl *Controller) MarkAsRead(c echo.Context) error {
	return ctrl.updateStatus(c, ctrl.service.MarkAsRead)
}

// ArchiveNotification transitions a notification to archived.
func (ctrl *Controller) ArchiveNotification(c echo.Context) error {
	return ctrl.updateStatus(c, ctrl.service.Archive)
}

// DeleteNotification transitions a notification to deleted.
func (ctrl *Controller) DeleteNotification(c echo.Context) error {
	return ctrl.updateStatus(c, ctrl.service.Delete)
}

func (ctrl *Controller) updateStatus(c echo.Context, op func(string) (*notification.Notification, error)) error {
	record, err := op(c.Param("id"))
	if err != nil {
		if errors.IsCategory(err, errors.CategoryState) {
			return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
		}
		return c.JSON(errorStatus(err), map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, record)
}

// GetUnreadCount returns the number of unread notifications for a user.
func (ctrl *Controller) GetUnreadCount(c echo.Context) error {
	userID := c.QueryParam("user")
	if userID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "user parameter required"})
	}
	count, err := ctrl.service.GetUnreadCount(userID)
	if err != nil {
		return c.JSON(errorStatus(err), map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]int{"count": count})
}

// GetStats summarizes a user's notifications.
func (ctrl *Controller) GetStats(c echo.Context) error {
	userID := c.QueryParam("user")
	if userID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "user parameter required"})
	}
	stats, err := ctrl.service.GetStats(userID)
	if err != nil {
		return c.JSON(errorStatus(err), map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, stats)
}

// StreamNotifications mirrors a user's notifications over SSE as they are
// created. The connection is bounded; clients are expected to reconnect.
func (ctrl *Controller) StreamNotifications(c echo.Context) error {
	userID := c.QueryParam("user")
	if userID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "user parameter required"})
	}

	w := c.Response()
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	flusher, ok := w.Writer.(http.Flusher)
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError, "streaming unsupported")
	}

	events, cancel := ctrl.service.Subscribe(userID)
	defer cancel()

	heartbeat := time.NewTicker(sseHeartbeatInterval)
	defer heartbeat.Stop()
	deadline := time.NewTimer(sseMaxConnDuration)
	defer deadline.Stop()

	if _, err := fmt.Fprintf(w, "event: connected\ndata: {\"user\":%q}\n\n", userID); err != nil {
		return nil
	}
	flusher.Flush()

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-deadline.C:
			return nil
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": heartbeat\n\n"); err != nil {
				return nil
			}
			flusher.Flush()
		case n, open := <-events:
			if !open {
				return nil
			}
			payload, err := json.Marshal(n)
			if err != nil {
				ctrl.logger.Error("failed to encode sse notification", "error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: notification\ndata: %s\n\n", payload); err != nil {
				return nil
			}
			flusher.Flush()
		}
	}
}

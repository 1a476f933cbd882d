package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/commercehub/notifier/internal/errors"
	"github.com/commercehub/notifier/internal/notification"
	"github.com/commercehub/notifier/internal/odoo"
)

// OdooSignatureHeader carries the hex HMAC-SHA256 of the inbound webhook
// body.
const OdooSignatureHeader = "X-Odoo-Signature"

// maxWebhookBody bounds the inbound payload size.
const maxWebhookBody = 1 << 20

// ApprovalEvent is the inbound ERP webhook payload.
type ApprovalEvent struct {
	Event         string  `json:"event"`
	OrderName     string  `json:"orderName"`
	OrderID       int64   `json:"orderId"`
	ApprovalState string  `json:"approvalState"`
	State         string  `json:"state"`
	AmountTotal   float64 `json:"amountTotal"`
	Customer      string  `json:"customer"`
	URL           string  `json:"url"`
	Recipients    struct {
		UserIDs   []string `json:"userIds"`
		Usernames []string `json:"usernames"`
		Roles     []string `json:"roles"`
	} `json:"recipients"`
}

// approvalChannels is the channel set for webhook-originated notifications.
var approvalChannels = []notification.Channel{
	notification.ChannelInApp,
	notification.ChannelEmail,
	notification.ChannelWebPush,
}

// HandleApprovalEvent verifies the signature of an inbound approval-state
// event, resolves the recipient set and creates one notification per
// recipient. This path performs no deduplication; the ERP is expected to
// fire once per real transition.
func (ctrl *Controller) HandleApprovalEvent(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "unreadable body"})
	}

	signature := c.Request().Header.Get(OdooSignatureHeader)
	if !notification.VerifySignature(ctrl.config.WebhookSecret, body, signature) {
		ctrl.logger.Warn("rejected approval event with invalid signature",
			"remote", c.RealIP())
		return c.JSON(http.StatusForbidden, map[string]string{"error": "invalid signature"})
	}

	var event ApprovalEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "malformed payload"})
	}

	ctx := c.Request().Context()
	recipients, err := ctrl.users.ResolveIDs(ctx,
		event.Recipients.UserIDs, event.Recipients.Usernames, event.Recipients.Roles)
	if err != nil {
		ctrl.logger.Error("recipient resolution failed", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "recipient resolution failed"})
	}
	if len(recipients) == 0 {
		recipients, err = ctrl.users.ListByRoles(ctx, "admin", "moderator")
		if err != nil {
			ctrl.logger.Error("recipient fallback failed", "error", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "recipient resolution failed"})
		}
	}

	title := odoo.ApprovalTitle(event.ApprovalState)
	message := fmt.Sprintf("%s: %s (%.2f)", title, event.OrderName, event.AmountTotal)
	data := map[string]any{
		"event":          event.Event,
		"order_id":       event.OrderID,
		"order_name":     event.OrderName,
		"approval_state": event.ApprovalState,
		"state":          event.State,
		"amount":         event.AmountTotal,
		"customer":       event.Customer,
		"url":            event.URL,
	}

	accepted := 0
	for _, userID := range recipients {
		record, err := ctrl.service.NotifySystemAnnouncement(ctx, userID, title, message,
			notification.PriorityHigh, data, approvalChannels)
		if err != nil {
			// one recipient's failure never blocks the rest
			if !errors.IsNotFound(err) {
				ctrl.logger.Error("approval notification failed",
					"user_id", userID,
					"error", err)
			}
			continue
		}
		if record != nil {
			accepted++
		}
	}

	ctrl.logger.Info("approval event processed",
		"order", event.OrderName,
		"approval_state", event.ApprovalState,
		"recipients", len(recipients),
		"accepted", accepted)
	return c.JSON(http.StatusCreated, map[string]int{"accepted": accepted})
}

package notification

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/nicholas-fedor/shoutrrr"
	shoutrrrtypes "github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/commercehub/notifier/internal/errors"
	"github.com/commercehub/notifier/internal/httpclient"
)

// SignatureHeader carries the hex HMAC-SHA256 of the webhook body.
const SignatureHeader = "X-Notify-Signature"

// defaultSendTimeout bounds every outbound channel transport call.
const defaultSendTimeout = 5 * time.Second

// Receipt is the result of a successful channel send.
type Receipt struct {
	Delivered bool
}

// Sender delivers a notification over one channel. All channel variants share
// this shape so the dispatcher can invoke them uniformly.
type Sender interface {
	Name() Channel
	Send(ctx context.Context, n *Notification) (Receipt, error)
}

// WebhookEndpoint configures a signed-webhook transport for a channel.
// An empty URL means the channel has no transport.
type WebhookEndpoint struct {
	URL     string
	Secret  string
	Timeout time.Duration
}

// Configured reports whether the endpoint has a target URL.
func (e WebhookEndpoint) Configured() bool {
	return e.URL != ""
}

// EmailTransport configures the email channel. SMTPURL takes precedence over
// the webhook endpoint when both are set.
type EmailTransport struct {
	SMTPURL string
	From    string
	Webhook WebhookEndpoint
}

// TransportConfig resolves every channel's transport once at startup.
// Unconfigured channels degrade to soft no-op senders.
type TransportConfig struct {
	Email   EmailTransport
	SMS     WebhookEndpoint
	Push    WebhookEndpoint
	WebPush WebhookEndpoint
}

// EmailResolver looks up a user's email address for direct SMTP delivery.
type EmailResolver interface {
	GetEmail(ctx context.Context, userID string) (string, error)
}

// inAppSender has no external transport. Delivery to connected clients
// happens out-of-band through the real-time broadcast, so an in-app send
// always reports delivered.
type inAppSender struct{}

func (inAppSender) Name() Channel { return ChannelInApp }

func (inAppSender) Send(_ context.Context, _ *Notification) (Receipt, error) {
	return Receipt{Delivered: true}, nil
}

// softSender reports delivered without performing transport. Used for
// channels with no configured endpoint so partial deployments do not block
// the pipeline.
type softSender struct {
	channel Channel
}

func (s softSender) Name() Channel { return s.channel }

func (s softSender) Send(_ context.Context, _ *Notification) (Receipt, error) {
	return Receipt{Delivered: true}, nil
}

// webhookPayload is the body POSTed to channel webhook endpoints.
type webhookPayload struct {
	ID       string         `json:"id"`
	UserID   string         `json:"user_id"`
	Channel  Channel        `json:"channel"`
	Type     Type           `json:"type"`
	Priority Priority       `json:"priority"`
	Title    string         `json:"title"`
	Message  string         `json:"message"`
	Data     map[string]any `json:"data,omitempty"`
	SentAt   time.Time      `json:"sent_at"`
}

// webhookSender POSTs a signed JSON payload to a configured endpoint.
// 2xx means delivered; timeouts and other statuses are failures and are not
// retried here.
type webhookSender struct {
	channel  Channel
	endpoint WebhookEndpoint
	client   *httpclient.Client
}

func newWebhookSender(channel Channel, endpoint WebhookEndpoint, client *httpclient.Client) *webhookSender {
	if endpoint.Timeout <= 0 {
		endpoint.Timeout = defaultSendTimeout
	}
	return &webhookSender{channel: channel, endpoint: endpoint, client: client}
}

func (s *webhookSender) Name() Channel { return s.channel }

func (s *webhookSender) Send(ctx context.Context, n *Notification) (Receipt, error) {
	body, err := json.Marshal(webhookPayload{
		ID:       n.ID,
		UserID:   n.UserID,
		Channel:  s.channel,
		Type:     n.Type,
		Priority: n.Priority,
		Title:    n.Title,
		Message:  n.Message,
		Data:     n.Data,
		SentAt:   time.Now().UTC(),
	})
	if err != nil {
		return Receipt{}, errors.New(err).
			Component("notification").
			Category(errors.CategoryDelivery).
			Context("channel", string(s.channel)).
			Build()
	}

	ctx, cancel := context.WithTimeout(ctx, s.endpoint.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint.URL, bytes.NewReader(body))
	if err != nil {
		return Receipt{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, Sign(s.endpoint.Secret, body))

	resp, err := s.client.Do(ctx, req)
	if err != nil {
		return Receipt{}, errors.New(err).
			Component("notification").
			Category(errors.CategoryNetwork).
			Context("channel", string(s.channel)).
			Build()
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Receipt{}, errors.Newf("webhook returned status %d", resp.StatusCode).
			Component("notification").
			Category(errors.CategoryDelivery).
			Context("channel", string(s.channel)).
			Context("status_code", resp.StatusCode).
			Build()
	}
	return Receipt{Delivered: true}, nil
}

// Sign computes the hex HMAC-SHA256 of body with secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature compares a provided hex signature against the expected
// HMAC of body in constant time.
func VerifySignature(secret string, body []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	expected := Sign(secret, body)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// smtpSender delivers email directly over SMTP using a shoutrrr service URL.
// The recipient address is resolved per send and injected into the URL.
type smtpSender struct {
	baseURL string
	from    string
	resolve EmailResolver
}

func (s *smtpSender) Name() Channel { return ChannelEmail }

func (s *smtpSender) Send(ctx context.Context, n *Notification) (Receipt, error) {
	address, err := s.resolve.GetEmail(ctx, n.UserID)
	if err != nil {
		return Receipt{}, err
	}
	if address == "" {
		return Receipt{}, errors.Newf("user %s has no email address", n.UserID).
			Component("notification").
			Category(errors.CategoryDelivery).
			Build()
	}

	serviceURL, err := s.recipientURL(address)
	if err != nil {
		return Receipt{}, err
	}

	sender, err := shoutrrr.CreateSender(serviceURL)
	if err != nil {
		return Receipt{}, errors.New(err).
			Component("notification").
			Category(errors.CategoryConfiguration).
			Context("channel", "email").
			Build()
	}

	params := shoutrrrtypes.Params{"title": n.Title}
	for _, sendErr := range sender.Send(n.Message, &params) {
		if sendErr != nil {
			return Receipt{}, errors.New(sendErr).
				Component("notification").
				Category(errors.CategoryDelivery).
				Context("channel", "email").
				Build()
		}
	}
	return Receipt{Delivered: true}, nil
}

// recipientURL rewrites the configured smtp:// URL with the recipient's
// address.
func (s *smtpSender) recipientURL(address string) (string, error) {
	u, err := url.Parse(s.baseURL)
	if err != nil {
		return "", errors.New(err).
			Component("notification").
			Category(errors.CategoryConfiguration).
			Build()
	}
	q := u.Query()
	q.Set("toaddresses", address)
	if s.from != "" && q.Get("fromaddress") == "" {
		q.Set("fromaddress", s.from)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// DispatchObserver receives per-channel dispatch outcomes. Implemented by
// the observability metrics; a nil observer is skipped.
type DispatchObserver interface {
	ChannelSend(channel string, success bool)
}

// Dispatcher fans a notification out to its requested channels and records
// each channel's outcome independently.
type Dispatcher struct {
	senders  map[Channel]Sender
	store    RecordStore
	observer DispatchObserver
	logger   *slog.Logger
}

// NewDispatcher builds a dispatcher with one sender per channel, resolving
// each channel's transport from cfg once. Channels without a configured
// transport get a soft no-op sender.
func NewDispatcher(cfg *TransportConfig, client *httpclient.Client, emails EmailResolver, store RecordStore, observer DispatchObserver, logger *slog.Logger) *Dispatcher {
	if cfg == nil {
		cfg = &TransportConfig{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	senders := map[Channel]Sender{
		ChannelInApp:   inAppSender{},
		ChannelEmail:   resolveEmailSender(cfg.Email, client, emails),
		ChannelSMS:     resolveWebhookSender(ChannelSMS, cfg.SMS, client),
		ChannelPush:    resolveWebhookSender(ChannelPush, cfg.Push, client),
		ChannelWebPush: resolveWebhookSender(ChannelWebPush, cfg.WebPush, client),
	}

	return &Dispatcher{
		senders:  senders,
		store:    store,
		observer: observer,
		logger:   logger.With("component", "dispatcher"),
	}
}

func resolveWebhookSender(channel Channel, endpoint WebhookEndpoint, client *httpclient.Client) Sender {
	if endpoint.Configured() {
		return newWebhookSender(channel, endpoint, client)
	}
	return softSender{channel: channel}
}

func resolveEmailSender(cfg EmailTransport, client *httpclient.Client, emails EmailResolver) Sender {
	switch {
	case cfg.SMTPURL != "" && emails != nil:
		return &smtpSender{baseURL: cfg.SMTPURL, from: cfg.From, resolve: emails}
	case cfg.Webhook.Configured():
		return newWebhookSender(ChannelEmail, cfg.Webhook, client)
	default:
		return softSender{channel: ChannelEmail}
	}
}

// Dispatch sends n over every channel in its channel list concurrently and
// blocks until all attempts settle. A failing channel records its error on
// the record and never affects siblings.
func (d *Dispatcher) Dispatch(ctx context.Context, n *Notification) {
	var wg sync.WaitGroup
	for _, channel := range n.Channels {
		sender, ok := d.senders[channel]
		if !ok {
			d.recordOutcome(n.ID, channel, Receipt{}, fmt.Errorf("no sender for channel %q", channel))
			continue
		}
		wg.Add(1)
		go func(sender Sender, channel Channel) {
			defer wg.Done()
			receipt, err := sender.Send(ctx, n.Clone())
			d.recordOutcome(n.ID, channel, receipt, err)
		}(sender, channel)
	}
	wg.Wait()
}

func (d *Dispatcher) recordOutcome(id string, channel Channel, receipt Receipt, sendErr error) {
	state := DeliveryState{Sent: sendErr == nil, Delivered: receipt.Delivered, At: time.Now()}
	if sendErr != nil {
		state.Error = sendErr.Error()
		d.logger.Warn("channel send failed",
			"notification_id", id,
			"channel", channel,
			"error", sendErr)
	}
	if d.observer != nil {
		d.observer.ChannelSend(string(channel), sendErr == nil)
	}
	if err := d.store.SetDeliveryStatus(id, channel, state); err != nil {
		d.logger.Error("failed to record delivery status",
			"notification_id", id,
			"channel", channel,
			"error", err)
	}
}

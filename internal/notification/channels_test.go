package notification

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commercehub/notifier/internal/httpclient"
)

func TestWebhookSenderSignsPayload(t *testing.T) {
	t.Parallel()

	const secret = "test-secret"
	var gotSignature string
	var gotBody []byte

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSignature = r.Header.Get(SignatureHeader)
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sender := newWebhookSender(ChannelPush, WebhookEndpoint{
		URL:     server.URL,
		Secret:  secret,
		Timeout: 2 * time.Second,
	}, httpclient.New(nil))

	n := newTestNotification("user-1")
	receipt, err := sender.Send(context.Background(), n)
	require.NoError(t, err)
	assert.True(t, receipt.Delivered)

	// receiver can verify the body with the shared secret
	require.NotEmpty(t, gotSignature)
	assert.True(t, VerifySignature(secret, gotBody, gotSignature))
	// a tampered body no longer matches
	assert.False(t, VerifySignature(secret, append(gotBody, 'x'), gotSignature))
}

func TestWebhookSenderNon2xxIsFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	sender := newWebhookSender(ChannelSMS, WebhookEndpoint{
		URL:     server.URL,
		Secret:  "s",
		Timeout: 2 * time.Second,
	}, httpclient.New(nil))

	receipt, err := sender.Send(context.Background(), newTestNotification("user-1"))
	require.Error(t, err)
	assert.False(t, receipt.Delivered)
}

func TestSoftSenderReportsDelivered(t *testing.T) {
	t.Parallel()

	sender := softSender{channel: ChannelSMS}
	receipt, err := sender.Send(context.Background(), newTestNotification("user-1"))
	require.NoError(t, err)
	assert.True(t, receipt.Delivered)
}

func TestVerifySignature(t *testing.T) {
	t.Parallel()

	body := []byte(`{"event":"approval"}`)
	sig := Sign("secret", body)

	assert.True(t, VerifySignature("secret", body, sig))
	assert.False(t, VerifySignature("secret", body, sig+"00"))
	assert.False(t, VerifySignature("other", body, sig))
	assert.False(t, VerifySignature("", body, sig), "missing secret always rejects")
	assert.False(t, VerifySignature("secret", body, ""))
}

// One failing channel must never affect its siblings or roll the record
// back.
func TestDispatcherPartialFailureIsolation(t *testing.T) {
	t.Parallel()

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer failing.Close()

	store := NewInMemoryStore()
	cfg := &TransportConfig{
		Email: EmailTransport{Webhook: WebhookEndpoint{URL: failing.URL, Secret: "s", Timeout: 2 * time.Second}},
		// web_push stays unconfigured and soft-succeeds
	}
	dispatcher := NewDispatcher(cfg, httpclient.New(nil), nil, store, nil, nil)

	n := newTestNotification("user-1")
	n.Channels = []Channel{ChannelInApp, ChannelEmail, ChannelWebPush}
	require.NoError(t, store.Save(n))

	dispatcher.Dispatch(context.Background(), n)

	got, err := store.Get(n.ID)
	require.NoError(t, err)

	assert.True(t, got.Delivery[ChannelInApp].Sent)
	assert.True(t, got.Delivery[ChannelInApp].Delivered)

	assert.False(t, got.Delivery[ChannelEmail].Sent)
	assert.NotEmpty(t, got.Delivery[ChannelEmail].Error)

	assert.True(t, got.Delivery[ChannelWebPush].Sent)
	assert.True(t, got.Delivery[ChannelWebPush].Delivered)
}

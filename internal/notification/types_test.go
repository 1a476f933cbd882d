package notification

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAppliesDefaultsAndTruncates(t *testing.T) {
	t.Parallel()

	n := New("user-1", TypeOrderCreated, strings.Repeat("t", MaxTitleLength+50), strings.Repeat("m", MaxMessageLength+50))
	assert.NotEmpty(t, n.ID)
	assert.Equal(t, StatusUnread, n.Status)
	assert.Equal(t, PriorityNormal, n.Priority)
	assert.Len(t, n.Title, MaxTitleLength)
	assert.Len(t, n.Message, MaxMessageLength)
	assert.WithinDuration(t, n.CreatedAt.Add(DefaultExpiry), n.ExpiresAt, time.Second)
}

func TestIsExpired(t *testing.T) {
	t.Parallel()

	n := New("user-1", TypeOrderCreated, "t", "m")
	assert.False(t, n.IsExpired(), "fresh notification is not expired")

	n.WithExpiry(-time.Minute)
	assert.True(t, n.IsExpired())

	// zero expiry means never expires
	n.ExpiresAt = time.Time{}
	assert.False(t, n.IsExpired())
}

func TestWithExpiryAnchorsOnCreation(t *testing.T) {
	t.Parallel()

	n := New("user-1", TypePromotionAvailable, "t", "m")
	n.WithExpiry(time.Hour)
	assert.Equal(t, n.CreatedAt.Add(time.Hour), n.ExpiresAt)
}

func TestCloneIsIndependent(t *testing.T) {
	t.Parallel()

	n := New("user-1", TypeOrderCreated, "t", "m").
		WithData("order_id", "SO100").
		WithTags("order")
	n.Channels = []Channel{ChannelInApp}
	n.Delivery = map[Channel]DeliveryState{ChannelInApp: {Sent: true}}

	clone := n.Clone()
	clone.Data["order_id"] = "SO999"
	clone.Tags[0] = "mutated"
	clone.Channels[0] = ChannelEmail
	clone.Delivery[ChannelInApp] = DeliveryState{Sent: true, Delivered: true}

	assert.Equal(t, "SO100", n.Data["order_id"])
	assert.Equal(t, "order", n.Tags[0])
	assert.Equal(t, ChannelInApp, n.Channels[0])
	assert.False(t, n.Delivery[ChannelInApp].Delivered)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	valid := New("user-1", TypeOrderCreated, "t", "m")
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Notification)
	}{
		{"missing user", func(n *Notification) { n.UserID = "" }},
		{"missing type", func(n *Notification) { n.Type = "" }},
		{"title too long", func(n *Notification) { n.Title = strings.Repeat("t", MaxTitleLength+1) }},
		{"message too long", func(n *Notification) { n.Message = strings.Repeat("m", MaxMessageLength+1) }},
		{"unknown status", func(n *Notification) { n.Status = Status("limbo") }},
		{"delivery for unknown channel", func(n *Notification) {
			n.Delivery = map[Channel]DeliveryState{ChannelSMS: {Sent: true}}
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			n := New("user-1", TypeOrderCreated, "t", "m")
			tc.mutate(n)
			assert.Error(t, n.Validate())
		})
	}
}

func TestStatusTransitions(t *testing.T) {
	t.Parallel()

	assert.True(t, StatusUnread.CanTransitionTo(StatusRead))
	assert.True(t, StatusRead.CanTransitionTo(StatusRead), "same-state is a no-op")
	assert.True(t, StatusArchived.CanTransitionTo(StatusDeleted))
	assert.False(t, StatusDeleted.CanTransitionTo(StatusUnread))
	assert.False(t, StatusRead.CanTransitionTo(StatusUnread))
	assert.False(t, Status("limbo").CanTransitionTo(StatusRead))
}

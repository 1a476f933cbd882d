package notification

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifyPromotionHasShortExpiry(t *testing.T) {
	t.Parallel()

	store := NewInMemoryStore()
	users := &stubDirectory{prefs: map[string]*Preferences{"user-1": nil}}
	service := newTestService(t, store, users)

	record, err := service.NotifyPromotion(context.Background(), "user-1",
		"Summer sale", "Everything 20% off", map[string]any{"campaign": "summer"})
	require.NoError(t, err)
	require.NotNil(t, record)

	assert.Equal(t, TypePromotionAvailable, record.Type)
	assert.Equal(t, "summer", record.Data["campaign"])

	// promotions expire well before the default window
	want := record.CreatedAt.Add(promotionExpiry)
	assert.WithinDuration(t, want, record.ExpiresAt, time.Second)
	assert.True(t, record.ExpiresAt.Before(record.CreatedAt.Add(DefaultExpiry)))
}

func TestNotifyPaymentFailedEscalatesPriority(t *testing.T) {
	t.Parallel()

	store := NewInMemoryStore()
	users := &stubDirectory{prefs: map[string]*Preferences{"user-1": nil}}
	service := newTestService(t, store, users)

	record, err := service.NotifyPayment(context.Background(), "user-1", "SO100", 49.90, false)
	require.NoError(t, err)
	require.NotNil(t, record)

	assert.Equal(t, TypePaymentFailed, record.Type)
	assert.Equal(t, PriorityHigh, record.Priority)
	assert.Contains(t, record.Message, "failed")
}

func TestNotifyOrderUnknownEventFallsBack(t *testing.T) {
	t.Parallel()

	store := NewInMemoryStore()
	users := &stubDirectory{prefs: map[string]*Preferences{"user-1": nil}}
	service := newTestService(t, store, users)

	record, err := service.NotifyOrder(context.Background(), "user-1", TypeOrderPaid, "SO100", 10)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "Order paid", record.Title)

	record, err = service.NotifyOrder(context.Background(), "user-1", Type("order_mystery"), "SO101", 10)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "Order update", record.Title)
	assert.Equal(t, "SO101", record.Data["order_id"])
}

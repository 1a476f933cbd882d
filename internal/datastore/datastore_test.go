package datastore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commercehub/notifier/internal/errors"
	"github.com/commercehub/notifier/internal/notification"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newRecord(userID string) *notification.Notification {
	n := notification.New(userID, notification.TypeOrderCreated, "Order placed", "Your order has been placed.")
	n.Channels = []notification.Channel{notification.ChannelInApp, notification.ChannelEmail}
	n.WithData("order_id", "ord-1").WithTags("order")
	return n
}

func TestRecordRoundTrip(t *testing.T) {
	records := newTestStore(t).Records()

	n := newRecord("user-1")
	require.NoError(t, records.Save(n))

	got, err := records.Get(n.ID)
	require.NoError(t, err)
	assert.Equal(t, n.ID, got.ID)
	assert.Equal(t, n.Type, got.Type)
	assert.Equal(t, "ord-1", got.Data["order_id"])
	assert.Equal(t, []string{"order"}, got.Tags)
	assert.Equal(t, n.Channels, got.Channels)

	_, err = records.Get("missing")
	assert.True(t, errors.IsNotFound(err))
}

func TestRecordStatusTransitions(t *testing.T) {
	records := newTestStore(t).Records()

	n := newRecord("user-1")
	require.NoError(t, records.Save(n))

	updated, err := records.UpdateStatus(n.ID, notification.StatusRead)
	require.NoError(t, err)
	assert.Equal(t, notification.StatusRead, updated.Status)

	_, err = records.UpdateStatus(n.ID, notification.StatusUnread)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryState))
}

func TestRecordDeliveryWriteOnce(t *testing.T) {
	records := newTestStore(t).Records()

	n := newRecord("user-1")
	require.NoError(t, records.Save(n))

	require.NoError(t, records.SetDeliveryStatus(n.ID, notification.ChannelEmail,
		notification.DeliveryState{Sent: true, Delivered: true}))
	require.NoError(t, records.SetDeliveryStatus(n.ID, notification.ChannelEmail,
		notification.DeliveryState{Sent: false, Error: "late"}))

	got, err := records.Get(n.ID)
	require.NoError(t, err)
	assert.True(t, got.Delivery[notification.ChannelEmail].Sent)
	assert.Empty(t, got.Delivery[notification.ChannelEmail].Error)

	// channel outside the requested set is rejected
	err = records.SetDeliveryStatus(n.ID, notification.ChannelSMS, notification.DeliveryState{Sent: true})
	assert.True(t, errors.IsCategory(err, errors.CategoryState))
}

func TestRecordListAndCounts(t *testing.T) {
	records := newTestStore(t).Records()

	base := time.Now().UTC()
	var last *notification.Notification
	for i := 0; i < 3; i++ {
		n := newRecord("user-1")
		n.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, records.Save(n))
		last = n
	}
	require.NoError(t, records.Save(newRecord("user-2")))

	got, err := records.List(&notification.FilterOptions{UserID: "user-1"})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, last.ID, got[0].ID, "newest first")

	count, err := records.CountUnread("user-1")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	typed, err := records.List(&notification.FilterOptions{
		UserID: "user-1",
		Types:  []notification.Type{notification.TypePaymentSuccess},
	})
	require.NoError(t, err)
	assert.Empty(t, typed)
}

func TestRecordDeleteExpired(t *testing.T) {
	records := newTestStore(t).Records()

	expired := newRecord("user-1")
	expired.ExpiresAt = time.Now().UTC().Add(-time.Hour)
	require.NoError(t, records.Save(expired))
	require.NoError(t, records.Save(newRecord("user-1")))

	removed, err := records.DeleteExpired(time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	count, err := records.CountUnread("user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSyncStateUpsert(t *testing.T) {
	states := newTestStore(t).SyncStates()

	value, err := states.Get("cursor")
	require.NoError(t, err)
	assert.Empty(t, value, "unset key reads as empty")

	require.NoError(t, states.Set("cursor", "100"))
	require.NoError(t, states.Set("cursor", "200"))

	value, err = states.Get("cursor")
	require.NoError(t, err)
	assert.Equal(t, "200", value)
}

func TestUserDirectory(t *testing.T) {
	users := newTestStore(t).Users()
	ctx := context.Background()

	require.NoError(t, users.Create(&User{ID: "u1", Username: "alice", Email: "alice@example.com", Role: "admin"}, nil))
	require.NoError(t, users.Create(&User{ID: "u2", Username: "bob", Email: "bob@example.com", Role: "moderator"},
		&notification.Preferences{EmailNotifications: notification.BoolPtr(false)}))
	require.NoError(t, users.Create(&User{ID: "u3", Username: "carol", Email: "carol@example.com", Role: "customer"}, nil))

	t.Run("preferences", func(t *testing.T) {
		prefs, err := users.GetPreferences(ctx, "u2")
		require.NoError(t, err)
		assert.False(t, prefs.AllowsChannel(notification.ChannelEmail))
		assert.True(t, prefs.AllowsChannel(notification.ChannelInApp))

		prefs, err = users.GetPreferences(ctx, "u1")
		require.NoError(t, err)
		assert.True(t, prefs.AllowsChannel(notification.ChannelEmail), "no stored preferences allow everything")

		_, err = users.GetPreferences(ctx, "ghost")
		assert.True(t, errors.IsNotFound(err))
	})

	t.Run("email", func(t *testing.T) {
		email, err := users.GetEmail(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, "alice@example.com", email)
	})

	t.Run("resolve union", func(t *testing.T) {
		ids, err := users.ResolveIDs(ctx, []string{"u3", "ghost"}, []string{"alice"}, []string{"moderator"})
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"u1", "u2", "u3"}, ids)
	})

	t.Run("list by roles", func(t *testing.T) {
		ids, err := users.ListByRoles(ctx, "admin", "moderator")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"u1", "u2"}, ids)
	})
}

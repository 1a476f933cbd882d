package notification

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commercehub/notifier/internal/errors"
)

// stubDirectory is a fixed-content user directory for tests.
type stubDirectory struct {
	prefs  map[string]*Preferences
	emails map[string]string
	roles  map[string][]string // role -> user ids
}

func (d *stubDirectory) GetPreferences(_ context.Context, userID string) (*Preferences, error) {
	prefs, ok := d.prefs[userID]
	if !ok {
		return nil, errors.Newf("user not found: %s", userID).
			Component("test").
			Category(errors.CategoryNotFound).
			Build()
	}
	if prefs == nil {
		return &Preferences{}, nil
	}
	return prefs, nil
}

func (d *stubDirectory) GetEmail(_ context.Context, userID string) (string, error) {
	return d.emails[userID], nil
}

func (d *stubDirectory) ResolveIDs(_ context.Context, userIDs, usernames, roles []string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	add := func(id string) {
		if _, ok := d.prefs[id]; ok && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	for _, id := range userIDs {
		add(id)
	}
	for _, role := range roles {
		for _, id := range d.roles[role] {
			add(id)
		}
	}
	_ = usernames
	return out, nil
}

func (d *stubDirectory) ListByRoles(_ context.Context, roles ...string) ([]string, error) {
	var out []string
	for _, role := range roles {
		out = append(out, d.roles[role]...)
	}
	return out, nil
}

func newTestService(t *testing.T, store RecordStore, users UserDirectory) *Service {
	t.Helper()
	dispatcher := NewDispatcher(nil, nil, nil, store, nil, nil)
	service := NewService(ServiceConfig{
		EmailTypes: []string{"order_created", "payment_success"},
	}, store, users, dispatcher, nil, nil)
	t.Cleanup(service.Stop)
	return service
}

func TestCreateAndSendUnknownUser(t *testing.T) {
	t.Parallel()

	service := newTestService(t, NewInMemoryStore(), &stubDirectory{prefs: map[string]*Preferences{}})
	n := New("ghost", TypeOrderCreated, "t", "m")
	_, err := service.CreateAndSend(context.Background(), n, []Channel{ChannelInApp})
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestCreateAndSendTypeSuppression(t *testing.T) {
	t.Parallel()

	store := NewInMemoryStore()
	users := &stubDirectory{prefs: map[string]*Preferences{
		"user-1": {OrderUpdates: BoolPtr(false)},
	}}
	service := newTestService(t, store, users)

	record, err := service.CreateAndSend(context.Background(),
		New("user-1", TypeOrderCreated, "Order placed", "m"),
		[]Channel{ChannelInApp, ChannelEmail})
	require.NoError(t, err)
	assert.Nil(t, record, "suppressed notification returns no record")

	// no record and no channel side effects
	got, err := store.List(&FilterOptions{UserID: "user-1"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCreateAndSendChannelSuppression(t *testing.T) {
	t.Parallel()

	store := NewInMemoryStore()
	users := &stubDirectory{prefs: map[string]*Preferences{
		"user-1": {
			InAppNotifications: BoolPtr(false),
			EmailNotifications: BoolPtr(false),
		},
	}}
	service := newTestService(t, store, users)

	record, err := service.CreateAndSend(context.Background(),
		New("user-1", TypeOrderCreated, "Order placed", "m"),
		[]Channel{ChannelInApp, ChannelEmail})
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestCreateAndSendEmailFilteredByPreference(t *testing.T) {
	t.Parallel()

	store := NewInMemoryStore()
	users := &stubDirectory{prefs: map[string]*Preferences{
		"user-1": {EmailNotifications: BoolPtr(false)},
	}}
	service := newTestService(t, store, users)

	record, err := service.CreateAndSend(context.Background(),
		New("user-1", TypeOrderCreated, "Order placed", "m"),
		[]Channel{ChannelInApp, ChannelEmail})
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, []Channel{ChannelInApp}, record.Channels)
}

func TestCreateAndSendEmailAllowList(t *testing.T) {
	t.Parallel()

	store := NewInMemoryStore()
	users := &stubDirectory{prefs: map[string]*Preferences{
		"user-1": {EmailNotifications: BoolPtr(true), SocialInteractions: BoolPtr(true)},
	}}
	service := newTestService(t, store, users)

	// social_follow is not on the transactional allow-list, so email drops
	// even though the user enabled email notifications
	record, err := service.CreateAndSend(context.Background(),
		New("user-1", TypeSocialFollow, "New follower", "m"),
		[]Channel{ChannelInApp, ChannelEmail})
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.NotContains(t, record.Channels, ChannelEmail)
	assert.Contains(t, record.Channels, ChannelInApp)
}

func TestCreateAndSendPersistsAndDelivers(t *testing.T) {
	t.Parallel()

	store := NewInMemoryStore()
	users := &stubDirectory{prefs: map[string]*Preferences{"user-1": nil}}
	service := newTestService(t, store, users)

	record, err := service.CreateAndSend(context.Background(),
		New("user-1", TypeOrderCreated, "Order placed", "m"),
		[]Channel{ChannelInApp})
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.False(t, record.ExpiresAt.IsZero(), "default expiry applied")

	// delivery settles asynchronously
	require.Eventually(t, func() bool {
		got, err := store.Get(record.ID)
		if err != nil {
			return false
		}
		state, ok := got.Delivery[ChannelInApp]
		return ok && state.Sent && state.Delivered
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSubscribeReceivesBroadcast(t *testing.T) {
	t.Parallel()

	store := NewInMemoryStore()
	users := &stubDirectory{prefs: map[string]*Preferences{"user-1": nil}}
	service := newTestService(t, store, users)

	events, cancel := service.Subscribe("user-1")
	defer cancel()

	record, err := service.CreateAndSend(context.Background(),
		New("user-1", TypeOrderCreated, "Order placed", "m"),
		[]Channel{ChannelInApp})
	require.NoError(t, err)
	require.NotNil(t, record)

	select {
	case got := <-events:
		assert.Equal(t, record.ID, got.ID)
	case <-time.After(time.Second):
		t.Fatal("no broadcast received")
	}
}

func TestSubscribeDropsOnFullBuffer(t *testing.T) {
	t.Parallel()

	store := NewInMemoryStore()
	users := &stubDirectory{prefs: map[string]*Preferences{"user-1": nil}}
	service := newTestService(t, store, users)

	events, cancel := service.Subscribe("user-1")
	defer cancel()

	// never read: broadcasts beyond the buffer must be dropped, not block
	for i := 0; i < subscriberBufferSize+8; i++ {
		_, err := service.CreateAndSend(context.Background(),
			New("user-1", TypeOrderCreated, "Order placed", "m"),
			[]Channel{ChannelInApp})
		require.NoError(t, err)
	}
	assert.Len(t, events, subscriberBufferSize)
}

func TestLifecycleOperations(t *testing.T) {
	t.Parallel()

	store := NewInMemoryStore()
	users := &stubDirectory{prefs: map[string]*Preferences{"user-1": nil}}
	service := newTestService(t, store, users)

	record, err := service.CreateAndSend(context.Background(),
		New("user-1", TypeOrderCreated, "Order placed", "m"),
		[]Channel{ChannelInApp})
	require.NoError(t, err)
	require.NotNil(t, record)

	read, err := service.MarkAsRead(record.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRead, read.Status)

	count, err := service.GetUnreadCount("user-1")
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	stats, err := service.GetStats("user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 0, stats.Unread)
	assert.Equal(t, 1, stats.ByType[TypeOrderCreated])

	deleted, err := service.Delete(record.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusDeleted, deleted.Status)

	stats, err = service.GetStats("user-1")
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Total)
}

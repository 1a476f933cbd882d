package notification

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/commercehub/notifier/internal/errors"
)

// UserDirectory is the external user lookup consumed by the notification
// engine. It returns identifiers and preference data only.
type UserDirectory interface {
	EmailResolver
	// GetPreferences returns the user's notification preferences.
	// Returns a not-found error if the user does not exist.
	GetPreferences(ctx context.Context, userID string) (*Preferences, error)
	// ResolveIDs returns the union of users matched by id, username or role.
	ResolveIDs(ctx context.Context, userIDs, usernames, roles []string) ([]string, error)
	// ListByRoles returns the ids of all users holding any of the roles.
	ListByRoles(ctx context.Context, roles ...string) ([]string, error)
}

// Observer receives service-level events. Implemented by the observability
// metrics; a nil observer is skipped.
type Observer interface {
	DispatchObserver
	NotificationCreated(notifType string)
	NotificationSuppressed(reason string)
}

// suppression reasons reported to the observer
const (
	SuppressedByType     = "type_disabled"
	SuppressedByChannels = "no_channels"
)

const subscriberBufferSize = 16

// ServiceConfig holds notification service configuration.
type ServiceConfig struct {
	// DefaultChannels are used when a producer passes no channel list.
	DefaultChannels []Channel
	// EmailTypes is the allow-list of types eligible for the email channel.
	EmailTypes []string
	// Expiry is the default record lifetime.
	Expiry time.Duration
	// CleanupInterval is how often expired records are removed.
	CleanupInterval time.Duration
	Debug           bool
}

// Service orchestrates preference filtering, record creation, channel
// fan-out and delivery-status persistence. It is the single entry point used
// by order/payment/social/ERP producers.
type Service struct {
	config      ServiceConfig
	store       RecordStore
	users       UserDirectory
	dispatcher  *Dispatcher
	emailPolicy *EmailPolicy
	observer    Observer
	logger      *slog.Logger

	mu          sync.RWMutex
	subscribers map[string][]chan *Notification

	dispatchWG sync.WaitGroup
	done       chan struct{}
	closeOnce  sync.Once
}

// NewService creates a notification service and starts its cleanup loop.
func NewService(config ServiceConfig, store RecordStore, users UserDirectory, dispatcher *Dispatcher, observer Observer, logger *slog.Logger) *Service {
	if len(config.DefaultChannels) == 0 {
		config.DefaultChannels = []Channel{ChannelInApp}
	}
	if config.Expiry <= 0 {
		config.Expiry = DefaultExpiry
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Service{
		config:      config,
		store:       store,
		users:       users,
		dispatcher:  dispatcher,
		emailPolicy: NewEmailPolicy(config.EmailTypes),
		observer:    observer,
		logger:      logger.With("service", "notification"),
		subscribers: make(map[string][]chan *Notification),
		done:        make(chan struct{}),
	}

	go s.cleanupLoop()
	return s
}

// Stop shuts down the cleanup loop and waits for in-flight channel
// dispatches to settle.
func (s *Service) Stop() {
	s.closeOnce.Do(func() { close(s.done) })
	s.dispatchWG.Wait()
}

// CreateAndSend applies the user's preferences, persists the record and fans
// delivery out to the surviving channels.
//
// A nil record with a nil error means the notification was suppressed by
// preference policy: no record exists and no channel was touched. Channel
// delivery settles asynchronously after this call returns; callers must not
// assume delivery status is final for channels other than in-app.
func (s *Service) CreateAndSend(ctx context.Context, n *Notification, channels []Channel) (*Notification, error) {
	if n == nil {
		return nil, errors.Newf("nil notification").
			Component("notification").
			Category(errors.CategoryValidation).
			Build()
	}

	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}

	prefs, err := s.users.GetPreferences(ctx, n.UserID)
	if err != nil {
		return nil, err
	}

	if !prefs.AllowsType(n.Type) {
		s.suppressed(n, SuppressedByType)
		return nil, nil
	}

	if len(channels) == 0 {
		channels = s.config.DefaultChannels
	}
	filtered := prefs.FilterChannels(channels)
	filtered = s.emailPolicy.Apply(n.Type, filtered)
	if len(filtered) == 0 {
		s.suppressed(n, SuppressedByChannels)
		return nil, nil
	}

	n.Channels = filtered
	if n.ExpiresAt.IsZero() {
		n.ExpiresAt = n.CreatedAt.Add(s.config.Expiry)
	}

	if err := s.store.Save(n); err != nil {
		return nil, err
	}

	if s.observer != nil {
		s.observer.NotificationCreated(string(n.Type))
	}
	if s.config.Debug {
		s.logger.Debug("notification created",
			"notification_id", n.ID,
			"user_id", n.UserID,
			"type", n.Type,
			"channels", filtered)
	}

	// Record persistence precedes any channel dispatch; delivery outcomes
	// land on the record as each channel settles.
	dispatchCtx := context.WithoutCancel(ctx)
	s.dispatchWG.Add(1)
	go func() {
		defer s.dispatchWG.Done()
		s.dispatcher.Dispatch(dispatchCtx, n)
	}()

	s.broadcast(n)
	return n, nil
}

func (s *Service) suppressed(n *Notification, reason string) {
	if s.observer != nil {
		s.observer.NotificationSuppressed(reason)
	}
	if s.config.Debug {
		s.logger.Debug("notification suppressed",
			"user_id", n.UserID,
			"type", n.Type,
			"reason", reason)
	}
}

// Subscribe registers a real-time listener for a user's notifications.
// The returned cancel function removes the subscription. Slow consumers are
// not waited on: a full buffer drops the notification for that subscriber.
func (s *Service) Subscribe(userID string) (<-chan *Notification, func()) {
	ch := make(chan *Notification, subscriberBufferSize)

	s.mu.Lock()
	s.subscribers[userID] = append(s.subscribers[userID], ch)
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		subs := s.subscribers[userID]
		for i, c := range subs {
			if c == ch {
				s.subscribers[userID] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		if len(s.subscribers[userID]) == 0 {
			delete(s.subscribers, userID)
		}
	}
	return ch, cancel
}

// broadcast mirrors a persisted notification to the owner's subscribers.
func (s *Service) broadcast(n *Notification) {
	s.mu.RLock()
	subs := s.subscribers[n.UserID]
	s.mu.RUnlock()

	for _, ch := range subs {
		select {
		case ch <- n.Clone():
		default:
			// subscriber buffer full, drop rather than block dispatch
		}
	}
}

// Get retrieves a notification by id.
func (s *Service) Get(id string) (*Notification, error) {
	return s.store.Get(id)
}

// MarkAsRead transitions a notification to read.
func (s *Service) MarkAsRead(id string) (*Notification, error) {
	return s.store.UpdateStatus(id, StatusRead)
}

// Archive transitions a notification to archived.
func (s *Service) Archive(id string) (*Notification, error) {
	return s.store.UpdateStatus(id, StatusArchived)
}

// Delete transitions a notification to deleted.
func (s *Service) Delete(id string) (*Notification, error) {
	return s.store.UpdateStatus(id, StatusDeleted)
}

// List returns a user's notifications, newest first.
func (s *Service) List(filter *FilterOptions) ([]*Notification, error) {
	return s.store.List(filter)
}

// GetUnreadCount returns the number of unread notifications for a user.
func (s *Service) GetUnreadCount(userID string) (int, error) {
	return s.store.CountUnread(userID)
}

// Stats summarizes a user's notifications.
type Stats struct {
	Total  int          `json:"total"`
	Unread int          `json:"unread"`
	ByType map[Type]int `json:"by_type"`
}

// GetStats computes notification counts for a user.
func (s *Service) GetStats(userID string) (*Stats, error) {
	records, err := s.store.List(&FilterOptions{UserID: userID})
	if err != nil {
		return nil, err
	}
	stats := &Stats{ByType: make(map[Type]int)}
	for _, n := range records {
		if n.Status == StatusDeleted {
			continue
		}
		stats.Total++
		if n.Status == StatusUnread {
			stats.Unread++
		}
		stats.ByType[n.Type]++
	}
	return stats, nil
}

// cleanupLoop removes expired records on a fixed interval until Stop.
func (s *Service) cleanupLoop() {
	ticker := time.NewTicker(s.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			removed, err := s.store.DeleteExpired(time.Now())
			if err != nil {
				s.logger.Error("expired notification cleanup failed", "error", err)
				continue
			}
			if removed > 0 {
				s.logger.Info("removed expired notifications", "count", removed)
			}
		}
	}
}

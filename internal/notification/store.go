package notification

import (
	"sort"
	"sync"
	"time"

	"github.com/commercehub/notifier/internal/errors"
)

// FilterOptions controls notification listing.
type FilterOptions struct {
	UserID string // required: owner of the records
	Status []Status
	Types  []Type
	Limit  int
	Offset int
}

// RecordStore defines the interface for notification persistence.
type RecordStore interface {
	// Save persists a new notification record.
	Save(n *Notification) error
	// Get retrieves a notification by id.
	Get(id string) (*Notification, error)
	// UpdateStatus applies a lifecycle transition. Backward transitions
	// are rejected with a state error.
	UpdateStatus(id string, status Status) (*Notification, error)
	// SetDeliveryStatus records the outcome of one channel's delivery
	// attempt. The outcome for a channel is written once.
	SetDeliveryStatus(id string, channel Channel, state DeliveryState) error
	// List returns notifications matching the filter, newest first.
	List(filter *FilterOptions) ([]*Notification, error)
	// CountUnread returns the number of unread notifications for a user.
	CountUnread(userID string) (int, error)
	// DeleteExpired removes records past their expiry and returns the count.
	DeleteExpired(now time.Time) (int, error)
}

func notFoundErr(id string) error {
	return errors.Newf("notification not found: %s", id).
		Component("notification").
		Category(errors.CategoryNotFound).
		Context("notification_id", id).
		Build()
}

// InMemoryStore is a thread-safe in-memory RecordStore. It backs tests and
// deployments without a configured database.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]*Notification
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[string]*Notification)}
}

// Save persists a copy of the notification.
func (s *InMemoryStore) Save(n *Notification) error {
	if err := n.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[n.ID] = n.Clone()
	return nil
}

// Get retrieves a notification by id.
func (s *InMemoryStore) Get(id string) (*Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.records[id]
	if !ok {
		return nil, notFoundErr(id)
	}
	return n.Clone(), nil
}

// UpdateStatus applies a forward-only lifecycle transition.
func (s *InMemoryStore) UpdateStatus(id string, status Status) (*Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.records[id]
	if !ok {
		return nil, notFoundErr(id)
	}
	if !n.Status.CanTransitionTo(status) {
		return nil, errors.Newf("illegal status transition %s -> %s", n.Status, status).
			Component("notification").
			Category(errors.CategoryState).
			Context("notification_id", id).
			Build()
	}
	n.Status = status
	return n.Clone(), nil
}

// SetDeliveryStatus records a channel outcome. An outcome already recorded
// for the channel is left untouched.
func (s *InMemoryStore) SetDeliveryStatus(id string, channel Channel, state DeliveryState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.records[id]
	if !ok {
		return notFoundErr(id)
	}
	if !n.HasChannel(channel) {
		return errors.Newf("channel %q not requested for notification %s", channel, id).
			Component("notification").
			Category(errors.CategoryState).
			Build()
	}
	if n.Delivery == nil {
		n.Delivery = make(map[Channel]DeliveryState)
	}
	if _, done := n.Delivery[channel]; done {
		return nil
	}
	if state.At.IsZero() {
		state.At = time.Now()
	}
	n.Delivery[channel] = state
	return nil
}

// List returns matching notifications ordered newest first.
func (s *InMemoryStore) List(filter *FilterOptions) ([]*Notification, error) {
	if filter == nil || filter.UserID == "" {
		return nil, errors.Newf("list filter requires a user id").
			Component("notification").
			Category(errors.CategoryValidation).
			Build()
	}
	s.mu.RLock()
	var matched []*Notification
	for _, n := range s.records {
		if n.UserID != filter.UserID {
			continue
		}
		if len(filter.Status) > 0 && !containsStatus(filter.Status, n.Status) {
			continue
		}
		if len(filter.Types) > 0 && !containsType(filter.Types, n.Type) {
			continue
		}
		matched = append(matched, n.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			return nil, nil
		}
		matched = matched[filter.Offset:]
	}
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

// CountUnread returns the number of unread notifications for a user.
func (s *InMemoryStore) CountUnread(userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, n := range s.records {
		if n.UserID == userID && n.Status == StatusUnread {
			count++
		}
	}
	return count, nil
}

// DeleteExpired removes expired records.
func (s *InMemoryStore) DeleteExpired(now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, n := range s.records {
		if !n.ExpiresAt.IsZero() && now.After(n.ExpiresAt) {
			delete(s.records, id)
			removed++
		}
	}
	return removed, nil
}

func containsStatus(haystack []Status, needle Status) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

func containsType(haystack []Type, needle Type) bool {
	for _, t := range haystack {
		if t == needle {
			return true
		}
	}
	return false
}

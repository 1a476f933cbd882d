// Package notification provides the core notification dispatch engine:
// preference-aware channel fan-out with per-channel delivery bookkeeping.
package notification

import (
	"time"

	"github.com/google/uuid"

	"github.com/commercehub/notifier/internal/errors"
)

// Type represents the category of notification
type Type string

const (
	// Order lifecycle
	TypeOrderCreated   Type = "order_created"
	TypeOrderPaid      Type = "order_paid"
	TypeOrderShipped   Type = "order_shipped"
	TypeOrderDelivered Type = "order_delivered"
	TypeOrderCancelled Type = "order_cancelled"

	// Payments
	TypePaymentSuccess Type = "payment_success"
	TypePaymentFailed  Type = "payment_failed"

	// Refunds
	TypeRefundRequested Type = "refund_requested"
	TypeRefundApproved  Type = "refund_approved"
	TypeRefundRejected  Type = "refund_rejected"
	TypeRefundCompleted Type = "refund_completed"

	// Merchandising
	TypeStockAlert         Type = "stock_alert"
	TypePriceDrop          Type = "price_drop"
	TypePromotionAvailable Type = "promotion_available"
	TypeCouponReceived     Type = "coupon_received"

	// Loyalty
	TypePointsEarned Type = "points_earned"
	TypeLevelUp      Type = "level_up"

	// Wishlist
	TypeWishlistRestock   Type = "wishlist_restock"
	TypeWishlistPriceDrop Type = "wishlist_price_drop"

	// Social
	TypeSocialFollow  Type = "social_follow"
	TypeSocialLike    Type = "social_like"
	TypeSocialComment Type = "social_comment"
	TypeSocialShare   Type = "social_share"
	TypeChatMessage   Type = "chat_message"

	// Platform
	TypeSystemAnnouncement Type = "system_announcement"
	TypeSecurityAlert      Type = "security_alert"
	TypeWelcome            Type = "welcome"
)

// Priority represents the urgency level of a notification
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Status represents the lifecycle state of a notification record.
// Transitions are monotonic forward only: unread -> read -> archived -> deleted.
type Status string

const (
	StatusUnread   Status = "unread"
	StatusRead     Status = "read"
	StatusArchived Status = "archived"
	StatusDeleted  Status = "deleted"
)

// statusRank orders lifecycle states for the monotonic transition check.
var statusRank = map[Status]int{
	StatusUnread:   0,
	StatusRead:     1,
	StatusArchived: 2,
	StatusDeleted:  3,
}

// Valid reports whether s is one of the known lifecycle states.
func (s Status) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// CanTransitionTo reports whether moving from s to target is a legal forward
// transition. Same-state transitions are allowed and treated as no-ops by the
// store.
func (s Status) CanTransitionTo(target Status) bool {
	from, ok := statusRank[s]
	if !ok {
		return false
	}
	to, ok := statusRank[target]
	if !ok {
		return false
	}
	return to >= from
}

// Channel identifies a delivery transport for a notification.
type Channel string

const (
	ChannelInApp   Channel = "in_app"
	ChannelEmail   Channel = "email"
	ChannelSMS     Channel = "sms"
	ChannelPush    Channel = "push"
	ChannelWebPush Channel = "web_push"
)

// AllChannels lists every supported delivery channel.
func AllChannels() []Channel {
	return []Channel{ChannelInApp, ChannelEmail, ChannelSMS, ChannelPush, ChannelWebPush}
}

// ParseChannel converts a string to a Channel, reporting whether it is known.
func ParseChannel(s string) (Channel, bool) {
	switch Channel(s) {
	case ChannelInApp, ChannelEmail, ChannelSMS, ChannelPush, ChannelWebPush:
		return Channel(s), true
	}
	return "", false
}

const (
	// MaxTitleLength is the maximum length of a notification title
	MaxTitleLength = 200
	// MaxMessageLength is the maximum length of a notification message
	MaxMessageLength = 500
	// DefaultExpiry is applied at creation time when no expiry is set
	DefaultExpiry = 30 * 24 * time.Hour
)

// DeliveryState tracks the outcome of a single channel's delivery attempt.
// It is written once per channel and never rolled back.
type DeliveryState struct {
	Sent      bool      `json:"sent"`
	Delivered bool      `json:"delivered"`
	Error     string    `json:"error,omitempty"`
	At        time.Time `json:"at,omitzero"`
}

// Notification represents a single notification record.
type Notification struct {
	ID        string                    `json:"id"`
	UserID    string                    `json:"user_id"`
	Type      Type                      `json:"type"`
	Priority  Priority                  `json:"priority"`
	Status    Status                    `json:"status"`
	Title     string                    `json:"title"`
	Message   string                    `json:"message"`
	Data      map[string]any            `json:"data,omitempty"`
	Tags      []string                  `json:"tags,omitempty"`
	Channels  []Channel                 `json:"channels,omitempty"`
	Delivery  map[Channel]DeliveryState `json:"delivery,omitempty"`
	CreatedAt time.Time                 `json:"created_at"`
	ExpiresAt time.Time                 `json:"expires_at,omitzero"`
}

// New creates a notification with defaults applied: generated id, unread
// status, normal priority, creation timestamp and the default expiry.
func New(userID string, notifType Type, title, message string) *Notification {
	now := time.Now()
	return &Notification{
		ID:        uuid.New().String(),
		UserID:    userID,
		Type:      notifType,
		Priority:  PriorityNormal,
		Status:    StatusUnread,
		Title:     truncate(title, MaxTitleLength),
		Message:   truncate(message, MaxMessageLength),
		CreatedAt: now,
		ExpiresAt: now.Add(DefaultExpiry),
	}
}

// WithPriority sets the priority and returns the notification for chaining.
func (n *Notification) WithPriority(p Priority) *Notification {
	n.Priority = p
	return n
}

// WithData attaches a structured payload field.
func (n *Notification) WithData(key string, value any) *Notification {
	if n.Data == nil {
		n.Data = make(map[string]any)
	}
	n.Data[key] = value
	return n
}

// WithTags appends category labels.
func (n *Notification) WithTags(tags ...string) *Notification {
	n.Tags = append(n.Tags, tags...)
	return n
}

// WithExpiry overrides the default expiry.
func (n *Notification) WithExpiry(d time.Duration) *Notification {
	n.ExpiresAt = n.CreatedAt.Add(d)
	return n
}

// IsExpired checks if the notification has passed its expiry time.
func (n *Notification) IsExpired() bool {
	return !n.ExpiresAt.IsZero() && time.Now().After(n.ExpiresAt)
}

// HasChannel reports whether c is in the notification's channel list.
func (n *Notification) HasChannel(c Channel) bool {
	for _, have := range n.Channels {
		if have == c {
			return true
		}
	}
	return false
}

// Clone returns a deep copy. Used when handing notifications to subscribers
// so concurrent delivery-status updates never race with readers.
func (n *Notification) Clone() *Notification {
	clone := *n
	if n.Data != nil {
		clone.Data = make(map[string]any, len(n.Data))
		for k, v := range n.Data {
			clone.Data[k] = v
		}
	}
	if n.Tags != nil {
		clone.Tags = append([]string(nil), n.Tags...)
	}
	if n.Channels != nil {
		clone.Channels = append([]Channel(nil), n.Channels...)
	}
	if n.Delivery != nil {
		clone.Delivery = make(map[Channel]DeliveryState, len(n.Delivery))
		for k, v := range n.Delivery {
			clone.Delivery[k] = v
		}
	}
	return &clone
}

// Validate checks the notification for required fields and length limits.
func (n *Notification) Validate() error {
	if n.UserID == "" {
		return errors.Newf("notification has no owning user").
			Component("notification").
			Category(errors.CategoryValidation).
			Build()
	}
	if n.Type == "" {
		return errors.Newf("notification has no type").
			Component("notification").
			Category(errors.CategoryValidation).
			Build()
	}
	if len(n.Title) > MaxTitleLength {
		return errors.Newf("title exceeds %d characters", MaxTitleLength).
			Component("notification").
			Category(errors.CategoryValidation).
			Build()
	}
	if len(n.Message) > MaxMessageLength {
		return errors.Newf("message exceeds %d characters", MaxMessageLength).
			Component("notification").
			Category(errors.CategoryValidation).
			Build()
	}
	if !n.Status.Valid() {
		return errors.Newf("unknown status %q", n.Status).
			Component("notification").
			Category(errors.CategoryValidation).
			Build()
	}
	for c := range n.Delivery {
		if !n.HasChannel(c) {
			return errors.Newf("delivery state for channel %q not in channel list", c).
				Component("notification").
				Category(errors.CategoryValidation).
				Build()
		}
	}
	return nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}

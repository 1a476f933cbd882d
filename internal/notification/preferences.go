package notification

// Preferences holds a user's notification settings: per-category flags
// gating whole notification types, and per-channel toggles gating delivery
// transports. A nil flag means "not set" and defaults to allow; only an
// explicit false suppresses.
type Preferences struct {
	// Category flags
	OrderUpdates        *bool `json:"orderUpdates,omitempty"`
	PaymentUpdates      *bool `json:"paymentUpdates,omitempty"`
	RefundUpdates       *bool `json:"refundUpdates,omitempty"`
	StockAlerts         *bool `json:"stockAlerts,omitempty"`
	Promotions          *bool `json:"promotions,omitempty"`
	SocialInteractions  *bool `json:"socialInteractions,omitempty"`
	SystemAnnouncements *bool `json:"systemAnnouncements,omitempty"`
	SecurityAlerts      *bool `json:"securityAlerts,omitempty"`

	// Channel toggles. WebPush has no toggle of its own and rides on Push.
	InAppNotifications *bool `json:"inAppNotifications,omitempty"`
	EmailNotifications *bool `json:"emailNotifications,omitempty"`
	SMSNotifications   *bool `json:"smsNotifications,omitempty"`
	PushNotifications  *bool `json:"pushNotifications,omitempty"`
}

// categoryFlag maps a notification type to the preference flag that gates
// it. Types without a mapping are always allowed.
func (p *Preferences) categoryFlag(t Type) *bool {
	if p == nil {
		return nil
	}
	switch t {
	case TypeOrderCreated, TypeOrderPaid, TypeOrderShipped, TypeOrderDelivered, TypeOrderCancelled:
		return p.OrderUpdates
	case TypePaymentSuccess, TypePaymentFailed:
		return p.PaymentUpdates
	case TypeRefundRequested, TypeRefundApproved, TypeRefundRejected, TypeRefundCompleted:
		return p.RefundUpdates
	case TypeStockAlert, TypePriceDrop, TypeWishlistRestock, TypeWishlistPriceDrop:
		return p.StockAlerts
	case TypePromotionAvailable, TypeCouponReceived:
		return p.Promotions
	case TypeSocialFollow, TypeSocialLike, TypeSocialComment, TypeSocialShare, TypeChatMessage:
		return p.SocialInteractions
	case TypeSystemAnnouncement:
		return p.SystemAnnouncements
	case TypeSecurityAlert:
		return p.SecurityAlerts
	}
	return nil
}

// AllowsType reports whether the user accepts notifications of type t.
// Unmapped types and unset flags default to allow.
func (p *Preferences) AllowsType(t Type) bool {
	flag := p.categoryFlag(t)
	return flag == nil || *flag
}

// AllowsChannel reports whether the user accepts delivery on channel c.
func (p *Preferences) AllowsChannel(c Channel) bool {
	if p == nil {
		return true
	}
	var flag *bool
	switch c {
	case ChannelInApp:
		flag = p.InAppNotifications
	case ChannelEmail:
		flag = p.EmailNotifications
	case ChannelSMS:
		flag = p.SMSNotifications
	case ChannelPush, ChannelWebPush:
		flag = p.PushNotifications
	default:
		return false
	}
	return flag == nil || *flag
}

// FilterChannels drops channels the user has explicitly disabled, preserving
// the requested order.
func (p *Preferences) FilterChannels(requested []Channel) []Channel {
	filtered := make([]Channel, 0, len(requested))
	for _, c := range requested {
		if p.AllowsChannel(c) {
			filtered = append(filtered, c)
		}
	}
	return filtered
}

// EmailPolicy is the system-wide allow-list restricting the email channel to
// transactional notification types. It is independent of user preference and
// applied after preference filtering.
type EmailPolicy struct {
	allowed map[Type]bool
}

// NewEmailPolicy builds the policy from configured type names.
func NewEmailPolicy(types []string) *EmailPolicy {
	allowed := make(map[Type]bool, len(types))
	for _, t := range types {
		allowed[Type(t)] = true
	}
	return &EmailPolicy{allowed: allowed}
}

// Allows reports whether type t may be delivered over email.
func (ep *EmailPolicy) Allows(t Type) bool {
	if ep == nil {
		return true
	}
	return ep.allowed[t]
}

// Apply removes the email channel unless t is on the allow-list.
func (ep *EmailPolicy) Apply(t Type, channels []Channel) []Channel {
	if ep.Allows(t) {
		return channels
	}
	filtered := make([]Channel, 0, len(channels))
	for _, c := range channels {
		if c != ChannelEmail {
			filtered = append(filtered, c)
		}
	}
	return filtered
}

// BoolPtr returns a pointer to b. Convenience for building Preferences
// literals.
func BoolPtr(b bool) *bool {
	return &b
}

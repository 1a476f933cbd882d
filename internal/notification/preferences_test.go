package notification

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPreferencesAllowsType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		prefs *Preferences
		typ   Type
		want  bool
	}{
		{"nil preferences allow everything", nil, TypeOrderCreated, true},
		{"unset flag allows", &Preferences{}, TypeOrderCreated, true},
		{"order updates disabled", &Preferences{OrderUpdates: BoolPtr(false)}, TypeOrderCreated, false},
		{"order updates disabled covers whole category", &Preferences{OrderUpdates: BoolPtr(false)}, TypeOrderShipped, false},
		{"payment flag independent of order flag", &Preferences{OrderUpdates: BoolPtr(false)}, TypePaymentSuccess, true},
		{"refund updates disabled", &Preferences{RefundUpdates: BoolPtr(false)}, TypeRefundApproved, false},
		{"social disabled", &Preferences{SocialInteractions: BoolPtr(false)}, TypeSocialFollow, false},
		{"security disabled", &Preferences{SecurityAlerts: BoolPtr(false)}, TypeSecurityAlert, false},
		{"system announcements disabled", &Preferences{SystemAnnouncements: BoolPtr(false)}, TypeSystemAnnouncement, false},
		{"explicit true allows", &Preferences{OrderUpdates: BoolPtr(true)}, TypeOrderCreated, true},
		{"unmapped type default-allows", &Preferences{OrderUpdates: BoolPtr(false), Promotions: BoolPtr(false)}, TypeWelcome, true},
		{"wishlist rides stock alerts", &Preferences{StockAlerts: BoolPtr(false)}, TypeWishlistRestock, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.prefs.AllowsType(tt.typ))
		})
	}
}

func TestPreferencesFilterChannels(t *testing.T) {
	t.Parallel()

	t.Run("disabled email channel removed", func(t *testing.T) {
		t.Parallel()
		prefs := &Preferences{EmailNotifications: BoolPtr(false)}
		got := prefs.FilterChannels([]Channel{ChannelInApp, ChannelEmail, ChannelPush})
		assert.Equal(t, []Channel{ChannelInApp, ChannelPush}, got)
	})

	t.Run("web_push rides on push toggle", func(t *testing.T) {
		t.Parallel()
		prefs := &Preferences{PushNotifications: BoolPtr(false)}
		got := prefs.FilterChannels([]Channel{ChannelInApp, ChannelPush, ChannelWebPush})
		assert.Equal(t, []Channel{ChannelInApp}, got)
	})

	t.Run("nil preferences keep everything", func(t *testing.T) {
		t.Parallel()
		var prefs *Preferences
		requested := []Channel{ChannelInApp, ChannelEmail, ChannelSMS}
		assert.Equal(t, requested, prefs.FilterChannels(requested))
	})

	t.Run("all disabled yields empty list", func(t *testing.T) {
		t.Parallel()
		prefs := &Preferences{
			InAppNotifications: BoolPtr(false),
			EmailNotifications: BoolPtr(false),
			SMSNotifications:   BoolPtr(false),
			PushNotifications:  BoolPtr(false),
		}
		assert.Empty(t, prefs.FilterChannels(AllChannels()))
	})
}

func TestEmailPolicy(t *testing.T) {
	t.Parallel()

	policy := NewEmailPolicy([]string{"order_created", "payment_success", "refund_approved"})

	t.Run("transactional type keeps email", func(t *testing.T) {
		t.Parallel()
		got := policy.Apply(TypePaymentSuccess, []Channel{ChannelInApp, ChannelEmail})
		assert.Contains(t, got, ChannelEmail)
	})

	t.Run("social type never gets email", func(t *testing.T) {
		t.Parallel()
		got := policy.Apply(TypeSocialFollow, []Channel{ChannelInApp, ChannelEmail, ChannelWebPush})
		assert.Equal(t, []Channel{ChannelInApp, ChannelWebPush}, got)
	})

	t.Run("transactional set covers full refund lifecycle", func(t *testing.T) {
		t.Parallel()
		transactional := NewEmailPolicy([]string{
			"order_created", "payment_success",
			"refund_requested", "refund_approved", "refund_rejected", "refund_completed",
		})
		for _, typ := range []Type{
			TypeOrderCreated, TypePaymentSuccess,
			TypeRefundRequested, TypeRefundApproved, TypeRefundRejected, TypeRefundCompleted,
		} {
			got := transactional.Apply(typ, []Channel{ChannelInApp, ChannelEmail})
			assert.Contains(t, got, ChannelEmail, "type %s keeps email", typ)
		}
		assert.NotContains(t,
			transactional.Apply(TypeSecurityAlert, []Channel{ChannelInApp, ChannelEmail}),
			ChannelEmail)
	})

	t.Run("nil policy allows all", func(t *testing.T) {
		t.Parallel()
		var nilPolicy *EmailPolicy
		got := nilPolicy.Apply(TypeSocialFollow, []Channel{ChannelEmail})
		assert.Equal(t, []Channel{ChannelEmail}, got)
	})
}

// Scenario from the dispatch contract: user with in-app and email enabled,
// payment_success requested on in_app/email/sms keeps in_app and email; sms
// survives only when enabled.
func TestPreferenceScenarioPaymentSuccess(t *testing.T) {
	t.Parallel()

	prefs := &Preferences{
		InAppNotifications: BoolPtr(true),
		EmailNotifications: BoolPtr(true),
		SMSNotifications:   BoolPtr(false),
	}
	policy := NewEmailPolicy([]string{"payment_success"})

	filtered := prefs.FilterChannels([]Channel{ChannelInApp, ChannelEmail, ChannelSMS})
	filtered = policy.Apply(TypePaymentSuccess, filtered)
	assert.Equal(t, []Channel{ChannelInApp, ChannelEmail}, filtered)
}

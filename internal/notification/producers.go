package notification

import (
	"context"
	"fmt"
	"time"
)

// Producer helpers wrap CreateAndSend with the title, message, priority and
// channel set conventional for each platform event. Producers never see
// delivery failures; a nil record means the user's preferences suppressed
// the notification.

// orderTitles maps order events to display titles.
var orderTitles = map[Type]string{
	TypeOrderCreated:   "Order placed",
	TypeOrderPaid:      "Order paid",
	TypeOrderShipped:   "Order shipped",
	TypeOrderDelivered: "Order delivered",
	TypeOrderCancelled: "Order cancelled",
}

// NotifyOrder sends an order lifecycle notification.
func (s *Service) NotifyOrder(ctx context.Context, userID string, event Type, orderID string, amount float64) (*Notification, error) {
	title, ok := orderTitles[event]
	if !ok {
		title = "Order update"
	}
	n := New(userID, event, title, fmt.Sprintf("Your order %s has been updated.", orderID)).
		WithData("order_id", orderID).
		WithData("amount", amount).
		WithTags("order")
	return s.CreateAndSend(ctx, n, []Channel{ChannelInApp, ChannelEmail, ChannelPush})
}

// NotifyPayment sends a payment outcome notification.
func (s *Service) NotifyPayment(ctx context.Context, userID, orderID string, amount float64, success bool) (*Notification, error) {
	event, title, message := TypePaymentSuccess, "Payment received", fmt.Sprintf("Your payment of %.2f for order %s succeeded.", amount, orderID)
	priority := PriorityNormal
	if !success {
		event, title = TypePaymentFailed, "Payment failed"
		message = fmt.Sprintf("Your payment of %.2f for order %s failed. Please try again.", amount, orderID)
		priority = PriorityHigh
	}
	n := New(userID, event, title, message).
		WithPriority(priority).
		WithData("order_id", orderID).
		WithData("amount", amount).
		WithTags("payment")
	return s.CreateAndSend(ctx, n, []Channel{ChannelInApp, ChannelEmail, ChannelPush})
}

// refundTitles maps refund events to display titles.
var refundTitles = map[Type]string{
	TypeRefundRequested: "Refund requested",
	TypeRefundApproved:  "Refund approved",
	TypeRefundRejected:  "Refund rejected",
	TypeRefundCompleted: "Refund completed",
}

// NotifyRefund sends a refund lifecycle notification.
func (s *Service) NotifyRefund(ctx context.Context, userID string, event Type, orderID string, amount float64) (*Notification, error) {
	title, ok := refundTitles[event]
	if !ok {
		title = "Refund update"
	}
	n := New(userID, event, title, fmt.Sprintf("Refund of %.2f for order %s: %s.", amount, orderID, title)).
		WithData("order_id", orderID).
		WithData("amount", amount).
		WithTags("refund")
	return s.CreateAndSend(ctx, n, []Channel{ChannelInApp, ChannelEmail})
}

// NotifyStockAlert tells a user a watched product is back in stock.
func (s *Service) NotifyStockAlert(ctx context.Context, userID, productID, productName string) (*Notification, error) {
	n := New(userID, TypeStockAlert, "Back in stock", fmt.Sprintf("%s is available again.", productName)).
		WithData("product_id", productID).
		WithTags("stock")
	return s.CreateAndSend(ctx, n, []Channel{ChannelInApp, ChannelPush})
}

// promotionExpiry bounds how long promotion notifications stay visible.
const promotionExpiry = 7 * 24 * time.Hour

// NotifyPromotion announces a promotion to a user.
func (s *Service) NotifyPromotion(ctx context.Context, userID, title, message string, data map[string]any) (*Notification, error) {
	n := New(userID, TypePromotionAvailable, title, message).
		WithExpiry(promotionExpiry).
		WithTags("promotion")
	for k, v := range data {
		n.WithData(k, v)
	}
	return s.CreateAndSend(ctx, n, []Channel{ChannelInApp, ChannelPush, ChannelWebPush})
}

// NotifyCoupon tells a user they received a coupon.
func (s *Service) NotifyCoupon(ctx context.Context, userID, couponCode string) (*Notification, error) {
	n := New(userID, TypeCouponReceived, "Coupon received", fmt.Sprintf("Coupon %s has been added to your account.", couponCode)).
		WithData("coupon_code", couponCode).
		WithTags("promotion")
	return s.CreateAndSend(ctx, n, []Channel{ChannelInApp})
}

// NotifyPointsEarned reports loyalty points earned.
func (s *Service) NotifyPointsEarned(ctx context.Context, userID string, points int, reason string) (*Notification, error) {
	n := New(userID, TypePointsEarned, "Points earned", fmt.Sprintf("You earned %d points: %s", points, reason)).
		WithData("points", points).
		WithTags("loyalty")
	return s.CreateAndSend(ctx, n, []Channel{ChannelInApp})
}

// NotifyLevelUp reports a loyalty level change.
func (s *Service) NotifyLevelUp(ctx context.Context, userID, level string) (*Notification, error) {
	n := New(userID, TypeLevelUp, "Level up", fmt.Sprintf("Congratulations, you reached level %s!", level)).
		WithData("level", level).
		WithTags("loyalty")
	return s.CreateAndSend(ctx, n, []Channel{ChannelInApp, ChannelPush})
}

// NotifySocial sends a social interaction notification.
func (s *Service) NotifySocial(ctx context.Context, userID string, event Type, actorName string) (*Notification, error) {
	var message string
	switch event {
	case TypeSocialFollow:
		message = fmt.Sprintf("%s started following you.", actorName)
	case TypeSocialLike:
		message = fmt.Sprintf("%s liked your post.", actorName)
	case TypeSocialComment:
		message = fmt.Sprintf("%s commented on your post.", actorName)
	case TypeSocialShare:
		message = fmt.Sprintf("%s shared your post.", actorName)
	default:
		message = fmt.Sprintf("New interaction from %s.", actorName)
	}
	n := New(userID, event, "New interaction", message).
		WithData("actor", actorName).
		WithTags("social")
	return s.CreateAndSend(ctx, n, []Channel{ChannelInApp, ChannelWebPush})
}

// NotifySystemAnnouncement sends a platform announcement to a user.
func (s *Service) NotifySystemAnnouncement(ctx context.Context, userID, title, message string, priority Priority, data map[string]any, channels []Channel) (*Notification, error) {
	n := New(userID, TypeSystemAnnouncement, title, message).
		WithPriority(priority).
		WithTags("system")
	for k, v := range data {
		n.WithData(k, v)
	}
	return s.CreateAndSend(ctx, n, channels)
}

// NotifySecurityAlert sends an urgent security notification.
func (s *Service) NotifySecurityAlert(ctx context.Context, userID, message string) (*Notification, error) {
	n := New(userID, TypeSecurityAlert, "Security alert", message).
		WithPriority(PriorityUrgent).
		WithTags("security")
	return s.CreateAndSend(ctx, n, []Channel{ChannelInApp, ChannelEmail, ChannelPush})
}

// NotifyWelcome greets a newly registered user.
func (s *Service) NotifyWelcome(ctx context.Context, userID, displayName string) (*Notification, error) {
	n := New(userID, TypeWelcome, "Welcome!", fmt.Sprintf("Welcome aboard, %s. Happy shopping!", displayName)).
		WithTags("system")
	return s.CreateAndSend(ctx, n, []Channel{ChannelInApp})
}

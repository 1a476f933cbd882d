// defaults.go Default configuration settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// setDefaultConfig initializes viper with default configuration values.
func setDefaultConfig(v *viper.Viper) {
	v.SetDefault("debug", false)

	// Main configuration
	v.SetDefault("main.name", "Notifier")
	v.SetDefault("main.log.enabled", true)
	v.SetDefault("main.log.path", "logs/notifier.log")

	// Web server configuration
	v.SetDefault("webserver.enabled", true)
	v.SetDefault("webserver.port", "8080")
	v.SetDefault("webserver.debug", false)

	// Database configuration
	v.SetDefault("database.path", "notifier.db")

	// Notification service configuration
	v.SetDefault("notification.debug", false)
	v.SetDefault("notification.defaultchannels", []string{"in_app"})
	v.SetDefault("notification.emailtypes", []string{
		"order_created", "payment_success",
		"refund_requested", "refund_approved", "refund_rejected", "refund_completed",
	})
	v.SetDefault("notification.expiry", 30*24*time.Hour)
	v.SetDefault("notification.cleanupinterval", time.Hour)

	v.SetDefault("notification.channels.email.smtpurl", "")
	v.SetDefault("notification.channels.email.from", "")
	v.SetDefault("notification.channels.email.url", "")
	v.SetDefault("notification.channels.email.secret", "")
	v.SetDefault("notification.channels.email.timeout", 5*time.Second)
	v.SetDefault("notification.channels.sms.url", "")
	v.SetDefault("notification.channels.sms.secret", "")
	v.SetDefault("notification.channels.sms.timeout", 5*time.Second)
	v.SetDefault("notification.channels.push.url", "")
	v.SetDefault("notification.channels.push.secret", "")
	v.SetDefault("notification.channels.push.timeout", 5*time.Second)
	v.SetDefault("notification.channels.webpush.url", "")
	v.SetDefault("notification.channels.webpush.secret", "")
	v.SetDefault("notification.channels.webpush.timeout", 5*time.Second)

	// Odoo integration configuration
	v.SetDefault("odoo.enabled", false)
	v.SetDefault("odoo.debug", false)
	v.SetDefault("odoo.url", "")
	v.SetDefault("odoo.database", "")
	v.SetDefault("odoo.login", "")
	v.SetDefault("odoo.password", "")
	v.SetDefault("odoo.webhooksecret", "")
	v.SetDefault("odoo.syncinterval", 5*time.Minute)
	v.SetDefault("odoo.lookback", time.Hour)
	v.SetDefault("odoo.dedupwindow", 10*time.Minute)
	v.SetDefault("odoo.dedupretention", time.Hour)
	v.SetDefault("odoo.pagesize", 50)
	v.SetDefault("odoo.adminuserid", "admin")
}

// config.go: This file contains the configuration for the notifier
// application. It defines the settings struct and functions to load settings
// from file and environment.
package conf

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// LogSettings contains settings for application logging.
type LogSettings struct {
	Enabled bool   // true to enable file logging
	Path    string // path to log file
}

// MainSettings contains main application settings.
type MainSettings struct {
	Name string      // application instance name
	Log  LogSettings // logging settings
}

// WebServerSettings contains settings for the HTTP server.
type WebServerSettings struct {
	Enabled bool   // true to enable the web server
	Port    string // port to listen on
	Debug   bool   // true to enable HTTP debug logging
}

// DatabaseSettings contains settings for the durable record store.
type DatabaseSettings struct {
	Path string // path to the sqlite database file
}

// WebhookChannelSettings configures a signed-webhook delivery transport for a
// single channel. An empty URL means the transport is not configured and the
// channel degrades to a soft no-op.
type WebhookChannelSettings struct {
	URL     string        // webhook endpoint URL
	Secret  string        // HMAC-SHA256 signing secret
	Timeout time.Duration // per-request timeout
}

// EmailChannelSettings configures the email channel. SMTPURL takes precedence
// over the webhook transport when both are set.
type EmailChannelSettings struct {
	SMTPURL string // shoutrrr smtp:// service URL for direct SMTP delivery
	From    string // sender address for direct SMTP delivery

	WebhookChannelSettings `mapstructure:",squash"`
}

// ChannelSettings groups per-channel transport configuration.
type ChannelSettings struct {
	Email   EmailChannelSettings
	SMS     WebhookChannelSettings
	Push    WebhookChannelSettings
	WebPush WebhookChannelSettings
}

// NotificationSettings contains settings for the notification service.
type NotificationSettings struct {
	Debug           bool            // true to enable debug logging
	DefaultChannels []string        // channels used when a producer passes none
	EmailTypes      []string        // notification types allowed to use the email channel
	Expiry          time.Duration   // default record expiry
	CleanupInterval time.Duration   // how often expired records are removed
	Channels        ChannelSettings // per-channel transport configuration
}

// OdooSettings contains settings for the Odoo ERP integration, covering both
// the inbound webhook and the polling synchronization worker.
type OdooSettings struct {
	Enabled        bool          // true to enable the polling sync worker
	Debug          bool          // true to enable debug logging
	URL            string        // base URL of the Odoo instance
	Database       string        // Odoo database name
	Login          string        // RPC login
	Password       string        // RPC password
	WebhookSecret  string        // shared secret for inbound webhook signatures
	SyncInterval   time.Duration // polling interval
	Lookback       time.Duration // first-sync lookback window
	DedupWindow    time.Duration // suppress re-notification for unchanged records
	DedupRetention time.Duration // evict dedup entries older than this
	PageSize       int           // max records pulled per cycle
	AdminUserID    string        // recipient of sync-originated notifications
}

// Settings is the root configuration struct for the application.
type Settings struct {
	Debug bool // global debug flag

	Main         MainSettings
	WebServer    WebServerSettings
	Database     DatabaseSettings
	Notification NotificationSettings
	Odoo         OdooSettings
}

// Load reads configuration from the optional config file and the environment
// and returns the populated settings. Environment variables use the NOTIFIER_
// prefix with underscores for nesting (e.g. NOTIFIER_ODOO_URL).
func Load(configPath string) (*Settings, error) {
	v := viper.New()
	setDefaultConfig(v)

	v.SetEnvPrefix("notifier")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

// Validate checks settings for values that would misconfigure the service in
// ways not recoverable at runtime.
func (s *Settings) Validate() error {
	if s.Notification.Expiry <= 0 {
		return fmt.Errorf("notification.expiry must be positive, got %s", s.Notification.Expiry)
	}
	if s.Odoo.Enabled {
		if s.Odoo.SyncInterval <= 0 {
			return fmt.Errorf("odoo.syncinterval must be positive, got %s", s.Odoo.SyncInterval)
		}
		if s.Odoo.PageSize <= 0 {
			return fmt.Errorf("odoo.pagesize must be positive, got %d", s.Odoo.PageSize)
		}
	}
	return nil
}

// OdooConnectionConfigured reports whether all required ERP connection
// settings are present. A partially configured connection is treated as
// "integration disabled", not an error.
func (s *Settings) OdooConnectionConfigured() bool {
	o := &s.Odoo
	return o.URL != "" && o.Database != "" && o.Login != "" && o.Password != ""
}

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config is the full configuration surface of the notifier.
//
// Files may be JSON or YAML; both are decoded strictly (unknown fields are
// rejected). All durations are Go duration strings (e.g. "500ms", "10s").
type Config struct {
	// Name labels the calculation; it prefixes every caption and scopes the
	// history directory (one subdirectory per name).
	Name string `json:"name,omitempty"`

	// Debug makes internal notifier bugs terminate the process after the
	// critical alert is attempted. Leave off in production.
	Debug bool `json:"debug,omitempty"`

	HistoryDir string `json:"history_dir,omitempty"` // default ./calcnotify_history

	// KeepLast bounds how many bundles keep their remote messages. Minimum 1.
	KeepLast int `json:"keep_last,omitempty"` // default 3

	// TrackUptime adds an uptime line to captions. Pointer so "omitted"
	// (default true) is distinguishable from an explicit false.
	TrackUptime *bool `json:"track_uptime,omitempty"`

	Telegram  TelegramConfig  `json:"telegram"`
	Logging   LoggingConfig   `json:"logging,omitempty"`
	Delivery  DeliveryConfig  `json:"delivery,omitempty"`
	PDF       PDFConfig       `json:"pdf,omitempty"`
	Ledger    LedgerConfig    `json:"ledger,omitempty"`
	Heartbeat HeartbeatConfig `json:"heartbeat,omitempty"`
}

type TelegramConfig struct {
	Enabled  bool   `json:"enabled"`
	Token    string `json:"token,omitempty"`
	ChatID   int64  `json:"chat_id,omitempty"`
	ThreadID int    `json:"thread_id,omitempty"`

	// CallTimeout bounds each Bot API call. Default "60s".
	CallTimeout string `json:"call_timeout,omitempty"`
	RatePerSec  int    `json:"rate_per_sec,omitempty"`
}

type LoggingConfig struct {
	Level   string            `json:"level,omitempty"`
	Console *bool             `json:"console,omitempty"` // default true
	File    LoggingFileConfig `json:"file,omitempty"`
}

type LoggingFileConfig struct {
	Enabled bool   `json:"enabled,omitempty"`
	Path    string `json:"path,omitempty"`
}

// DeliveryConfig controls the background delivery worker pool.
type DeliveryConfig struct {
	Workers   int `json:"workers,omitempty"`    // default 3
	QueueSize int `json:"queue_size,omitempty"` // default 64

	// JobTimeout bounds one whole bundle delivery (all sends). Default "5m".
	JobTimeout string `json:"job_timeout,omitempty"`
}

// PDFConfig controls document assembly and remote delivery of the PDF.
type PDFConfig struct {
	// Enabled toggles PDF assembly. Pointer so "omitted" defaults to true.
	Enabled *bool `json:"enabled,omitempty"`

	// Attach sends the assembled PDF as a document attachment. Off by
	// default: the images already carry the content, and large PDFs are
	// mostly noise in chat.
	Attach bool `json:"attach,omitempty"`
}

type LedgerConfig struct {
	Driver      string `json:"driver,omitempty"` // "file" (default) or "sqlite"
	Path        string `json:"path,omitempty"`   // default <history_dir>/<name>/ledger.json
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

// HeartbeatConfig schedules a periodic "still running" message.
type HeartbeatConfig struct {
	Enabled  bool   `json:"enabled,omitempty"`
	Schedule string `json:"schedule,omitempty"` // cron spec, e.g. "0 * * * *"
}

// Normalize fills defaults in place.
func (c *Config) Normalize() {
	if strings.TrimSpace(c.Name) == "" {
		c.Name = "Calculation"
	}
	if strings.TrimSpace(c.HistoryDir) == "" {
		c.HistoryDir = "./calcnotify_history"
	}
	if c.KeepLast < 1 {
		c.KeepLast = 3
	}
	if c.Delivery.Workers <= 0 {
		c.Delivery.Workers = 3
	}
	if c.Delivery.QueueSize <= 0 {
		c.Delivery.QueueSize = 64
	}
	if c.Telegram.RatePerSec <= 0 {
		c.Telegram.RatePerSec = 10
	}
}

// Validate reports configuration errors that Normalize cannot repair.
func (c *Config) Validate() error {
	if c.Telegram.Enabled {
		if strings.TrimSpace(c.Telegram.Token) == "" {
			return errors.New("telegram.enabled requires telegram.token")
		}
		if c.Telegram.ChatID == 0 {
			return errors.New("telegram.enabled requires telegram.chat_id")
		}
	}
	if _, err := parseDuration(c.Telegram.CallTimeout, 0); err != nil {
		return fmt.Errorf("telegram.call_timeout: %w", err)
	}
	if _, err := parseDuration(c.Delivery.JobTimeout, 0); err != nil {
		return fmt.Errorf("delivery.job_timeout: %w", err)
	}
	if _, err := parseDuration(c.Ledger.BusyTimeout, 0); err != nil {
		return fmt.Errorf("ledger.busy_timeout: %w", err)
	}
	if c.Heartbeat.Enabled && strings.TrimSpace(c.Heartbeat.Schedule) == "" {
		return errors.New("heartbeat.enabled requires heartbeat.schedule")
	}
	return nil
}

// UptimeTracked resolves the TrackUptime default (true when omitted).
func (c *Config) UptimeTracked() bool {
	return c.TrackUptime == nil || *c.TrackUptime
}

// PDFEnabled resolves the PDF.Enabled default (true when omitted).
func (c *Config) PDFEnabled() bool {
	return c.PDF.Enabled == nil || *c.PDF.Enabled
}

// ConsoleLogging resolves the Logging.Console default (true when omitted).
func (c *Config) ConsoleLogging() bool {
	return c.Logging.Console == nil || *c.Logging.Console
}

// CallTimeout returns the parsed telegram.call_timeout, defaulting to 60s.
func (c *Config) CallTimeout() time.Duration {
	d, _ := parseDuration(c.Telegram.CallTimeout, 60*time.Second)
	return d
}

// JobTimeout returns the parsed delivery.job_timeout, defaulting to 5m.
func (c *Config) JobTimeout() time.Duration {
	d, _ := parseDuration(c.Delivery.JobTimeout, 5*time.Minute)
	return d
}

// LedgerBusyTimeout returns the parsed ledger.busy_timeout (sqlite only).
func (c *Config) LedgerBusyTimeout() time.Duration {
	d, _ := parseDuration(c.Ledger.BusyTimeout, 0)
	return d
}

func parseDuration(s string, def time.Duration) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def, err
	}
	if d < 0 {
		return def, fmt.Errorf("negative duration %q", s)
	}
	return d, nil
}

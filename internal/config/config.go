package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds runtime configuration for the storefront backend. It is built
// once at startup and handed to the components that need it.
type Config struct {
	HTTPAddr  string `json:"http_addr" yaml:"http_addr" env:"HTTP_ADDR" env-description:"API listen address"`
	StorePath string `json:"store_path" yaml:"store_path" env:"STORE_PATH" env-description:"order store JSON file"`

	// Shown in notification messages
	StoreName string `json:"store_name" yaml:"store_name" env:"STORE_NAME"`
	Currency  string `json:"currency" yaml:"currency" env:"CURRENCY" env-description:"currency symbol prefixed to amounts"`

	// Upper bound for a single channel attempt
	NotifyTimeout time.Duration `json:"notify_timeout" yaml:"notify_timeout" env:"NOTIFY_TIMEOUT"`

	LogLevel string `json:"log_level" yaml:"log_level" env:"LOG_LEVEL"`
	LogFile  string `json:"log_file" yaml:"log_file" env:"LOG_FILE"`

	MetricsEnabled bool `json:"metrics_enabled" yaml:"metrics_enabled" env:"METRICS_ENABLED"`
	MetricsPort    int  `json:"metrics_port" yaml:"metrics_port" env:"METRICS_PORT"`

	// InfluxDB (push)
	InfluxURL      string        `json:"influx_url" yaml:"influx_url" env:"INFLUX_URL"`
	InfluxToken    string        `json:"influx_token" yaml:"influx_token" env:"INFLUX_TOKEN"`
	InfluxOrg      string        `json:"influx_org" yaml:"influx_org" env:"INFLUX_ORG"`
	InfluxBucket   string        `json:"influx_bucket" yaml:"influx_bucket" env:"INFLUX_BUCKET"`
	InfluxInterval time.Duration `json:"influx_interval" yaml:"influx_interval" env:"INFLUX_INTERVAL"`

	Email    EmailConfig    `json:"email" yaml:"email"`
	Telegram TelegramConfig `json:"telegram" yaml:"telegram"`
	WhatsApp WhatsAppConfig `json:"whatsapp" yaml:"whatsapp"`
}

// EmailConfig configures the SMTP channel. SMTP_* variables take precedence
// over the shorter EMAIL_* ones.
type EmailConfig struct {
	Host       string `json:"host" yaml:"host" env:"SMTP_HOST"`
	Port       int    `json:"port" yaml:"port" env:"SMTP_PORT"`
	TLS        bool   `json:"tls" yaml:"tls" env:"SMTP_TLS"`
	User       string `json:"user" yaml:"user" env:"SMTP_USER,EMAIL_USER"`
	Pass       string `json:"pass" yaml:"pass" env:"SMTP_PASS,EMAIL_PASS"`
	From       string `json:"from" yaml:"from" env:"SMTP_FROM"`
	AdminEmail string `json:"admin_email" yaml:"admin_email" env:"ADMIN_EMAIL"`
}

// Sender is the From address; defaults to the authenticated user.
func (e EmailConfig) Sender() string {
	if e.From != "" {
		return e.From
	}
	return e.User
}

// Recipient is the admin address orders are reported to; defaults to the
// authenticated user so a single mailbox setup works out of the box.
func (e EmailConfig) Recipient() string {
	if e.AdminEmail != "" {
		return e.AdminEmail
	}
	return e.User
}

// Missing lists required settings that are empty or placeholders.
func (e EmailConfig) Missing() []string {
	var out []string
	for _, f := range []struct{ name, val string }{
		{"SMTP_HOST", e.Host},
		{"SMTP_USER", e.User},
		{"SMTP_PASS", e.Pass},
		{"ADMIN_EMAIL", e.Recipient()},
	} {
		if !present(f.val) {
			out = append(out, f.name)
		}
	}
	if e.Port <= 0 {
		out = append(out, "SMTP_PORT")
	}
	return out
}

// Enabled reports whether every required email setting is usable.
func (e EmailConfig) Enabled() bool { return len(e.Missing()) == 0 }

func (e EmailConfig) touched() bool {
	return e.User != "" || e.Pass != "" || e.AdminEmail != ""
}

// TelegramConfig configures the Telegram Bot API channel.
type TelegramConfig struct {
	BotToken string `json:"bot_token" yaml:"bot_token" env:"TELEGRAM_BOT_TOKEN"`
	ChatID   string `json:"chat_id" yaml:"chat_id" env:"TELEGRAM_CHAT_ID"`
	APIBase  string `json:"api_base" yaml:"api_base" env:"TELEGRAM_API_BASE"`
}

// Missing lists required settings that are empty or placeholders.
func (t TelegramConfig) Missing() []string {
	var out []string
	if !present(t.BotToken) {
		out = append(out, "TELEGRAM_BOT_TOKEN")
	}
	if !present(t.ChatID) {
		out = append(out, "TELEGRAM_CHAT_ID")
	}
	return out
}

// Enabled reports whether the bot token and chat id are both usable.
func (t TelegramConfig) Enabled() bool { return len(t.Missing()) == 0 }

func (t TelegramConfig) touched() bool { return t.BotToken != "" || t.ChatID != "" }

// WhatsAppConfig configures the CallMeBot WhatsApp gateway channel.
type WhatsAppConfig struct {
	Phone      string `json:"phone" yaml:"phone" env:"WHATSAPP_PHONE_NUMBER"`
	APIKey     string `json:"api_key" yaml:"api_key" env:"WHATSAPP_API_KEY"`
	GatewayURL string `json:"gateway_url" yaml:"gateway_url" env:"WHATSAPP_GATEWAY_URL"`
}

// Missing lists required settings that are empty or placeholders.
func (w WhatsAppConfig) Missing() []string {
	var out []string
	if !present(w.Phone) {
		out = append(out, "WHATSAPP_PHONE_NUMBER")
	}
	if !present(w.APIKey) {
		out = append(out, "WHATSAPP_API_KEY")
	}
	return out
}

// Enabled reports whether phone number and API key are both usable.
func (w WhatsAppConfig) Enabled() bool { return len(w.Missing()) == 0 }

func (w WhatsAppConfig) touched() bool { return w.Phone != "" || w.APIKey != "" }

// placeholderValues are sample values shipped in env templates.
var placeholderValues = []string{
	"replace_with_your_key",
	"replace_me",
	"changeme",
	"change_me",
	"xxx",
	"todo",
}

// IsPlaceholder reports whether v looks like an unfilled template value
// such as "REPLACE_WITH_YOUR_KEY", "your_bot_token" or "<api-key>".
func IsPlaceholder(v string) bool {
	s := strings.ToLower(strings.TrimSpace(v))
	if s == "" {
		return false
	}
	if strings.HasPrefix(s, "<") && strings.HasSuffix(s, ">") {
		return true
	}
	if strings.HasPrefix(s, "your_") || strings.HasPrefix(s, "your-") {
		return true
	}
	for _, p := range placeholderValues {
		if s == p {
			return true
		}
	}
	return false
}

func present(v string) bool {
	return strings.TrimSpace(v) != "" && !IsPlaceholder(v)
}

// DefaultConfig returns a sane default configuration with every
// notification channel disabled.
func DefaultConfig() *Config {
	return &Config{
		HTTPAddr:      ":5000",
		StorePath:     "data/orders.json",
		StoreName:     "Homly",
		NotifyTimeout: 15 * time.Second,
		LogLevel:      "info",

		// Metrics defaults (opt-in)
		MetricsEnabled: false,
		MetricsPort:    9090,
		InfluxInterval: 1 * time.Minute,

		Email: EmailConfig{
			Host: "smtp.gmail.com",
			Port: 587,
			TLS:  true,
		},
		Telegram: TelegramConfig{APIBase: "https://api.telegram.org"},
		WhatsApp: WhatsAppConfig{GatewayURL: "https://api.callmebot.com/whatsapp.php"},
	}
}

// Validate returns a list of non-fatal configuration warnings, such as
// half-configured channels or placeholder credentials.
func (c *Config) Validate() []string {
	var warnings []string
	checks := []struct {
		cond bool
		msg  string
	}{
		{c.Email.touched() && !c.Email.Enabled(), fmt.Sprintf("email channel disabled, missing or placeholder: %s", strings.Join(c.Email.Missing(), ", "))},
		{c.Telegram.touched() && !c.Telegram.Enabled(), fmt.Sprintf("telegram channel disabled, missing or placeholder: %s", strings.Join(c.Telegram.Missing(), ", "))},
		{c.WhatsApp.touched() && !c.WhatsApp.Enabled(), fmt.Sprintf("whatsapp channel disabled, missing or placeholder: %s", strings.Join(c.WhatsApp.Missing(), ", "))},
		{c.NotifyTimeout <= 0, "notify_timeout must be positive; channel calls will use the default"},
		{c.InfluxURL != "" && c.InfluxBucket == "", "influx URL provided but bucket is missing"},
	}
	for _, ch := range checks {
		if ch.cond {
			warnings = append(warnings, ch.msg)
		}
	}
	return warnings
}

// LoadConfigFromFile loads config from a YAML/JSON file on top of the defaults.
func LoadConfigFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

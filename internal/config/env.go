package config

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/ilyakaznacheev/cleanenv"
)

// ApplyEnvOverrides overlays environment variables onto cfg. Only variables
// that are actually set replace existing values, so defaults and file values
// survive. See the env tags on Config for the recognized names, e.g.
//
//   - SMTP_HOST, SMTP_PORT, SMTP_USER/EMAIL_USER, SMTP_PASS/EMAIL_PASS, ADMIN_EMAIL
//   - TELEGRAM_BOT_TOKEN, TELEGRAM_CHAT_ID
//   - WHATSAPP_PHONE_NUMBER, WHATSAPP_API_KEY
//   - NOTIFY_TIMEOUT (duration, e.g. "15s")
//   - PORT (shorthand for HTTP_ADDR=":<port>")
func ApplyEnvOverrides(cfg *Config) error {
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return fmt.Errorf("invalid environment configuration: %w", err)
	}
	return applyPortEnv(cfg)
}

// applyPortEnv honours the PaaS-style PORT variable unless HTTP_ADDR is set.
func applyPortEnv(cfg *Config) error {
	v := os.Getenv("PORT")
	if v == "" || os.Getenv("HTTP_ADDR") != "" {
		return nil
	}
	p, err := strconv.Atoi(v)
	if err != nil || p <= 0 {
		return fmt.Errorf("invalid PORT: %q", v)
	}
	cfg.HTTPAddr = fmt.Sprintf(":%d", p)
	return nil
}

// WriteEnvUsage prints the recognized environment variables to w.
func WriteEnvUsage(w io.Writer) {
	var cfg Config
	header := "Environment variables:"
	cleanenv.FUsage(w, &cfg, &header)()
}

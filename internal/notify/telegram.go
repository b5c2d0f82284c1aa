package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/homly/storefront/internal/config"
	"github.com/homly/storefront/internal/order"
)

// Telegram posts order summaries to a chat through the Bot API.
type Telegram struct {
	Config    config.TelegramConfig
	Formatter Formatter
	Client    *http.Client
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code,omitempty"`
	Description string `json:"description,omitempty"`
}

func (t *Telegram) Name() string { return ChannelTelegram }

func (t *Telegram) Enabled() bool { return t.Config.Enabled() }

// Send performs one sendMessage call. A body with ok=false is a provider
// rejection even when the HTTP status is 200.
func (t *Telegram) Send(ctx context.Context, o order.Order) error {
	if !t.Enabled() {
		return ErrChannelDisabled
	}
	base := t.Config.APIBase
	if base == "" {
		base = "https://api.telegram.org"
	}
	apiURL := fmt.Sprintf("%s/bot%s/sendMessage", strings.TrimRight(base, "/"), t.Config.BotToken)
	payload := map[string]string{
		"chat_id":    t.Config.ChatID,
		"text":       t.Formatter.TelegramText(o),
		"parse_mode": "HTML",
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return newChannelError(ChannelTelegram, KindTransport, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(b))
	if err != nil {
		return newChannelError(ChannelTelegram, KindTransport, redact(err, t.Config.BotToken))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClientOr(t.Client).Do(req)
	if err != nil {
		return newChannelError(ChannelTelegram, KindTransport, redact(err, t.Config.BotToken))
	}
	defer resp.Body.Close()
	raw := readBody(resp)

	var body telegramResponse
	if err := json.Unmarshal(raw, &body); err != nil {
		if resp.StatusCode >= 300 {
			return newChannelError(ChannelTelegram, statusKind(resp.StatusCode), fmt.Errorf("telegram api returned status %d", resp.StatusCode))
		}
		return newChannelError(ChannelTelegram, KindTransport, fmt.Errorf("decode telegram response: %w", err))
	}
	if !body.OK {
		desc := body.Description
		if desc == "" {
			desc = fmt.Sprintf("telegram api returned status %d", resp.StatusCode)
		}
		kind := KindProviderRejected
		if resp.StatusCode == http.StatusUnauthorized || body.ErrorCode == http.StatusUnauthorized {
			kind = KindAuth
		}
		return newChannelError(ChannelTelegram, kind, errors.New(desc))
	}
	return nil
}

func statusKind(code int) ErrorKind {
	if authStatus(code) {
		return KindAuth
	}
	if code >= 500 {
		return KindTransport
	}
	return KindProviderRejected
}

package notify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/homly/storefront/internal/config"
	"github.com/homly/storefront/internal/order"
)

// WhatsApp sends order summaries through the CallMeBot gateway. The gateway
// has no structured response, so any 2xx counts as delivered.
type WhatsApp struct {
	Config    config.WhatsAppConfig
	Formatter Formatter
	Client    *http.Client
}

func (w *WhatsApp) Name() string { return ChannelWhatsApp }

func (w *WhatsApp) Enabled() bool { return w.Config.Enabled() }

// Send performs one GET against the gateway.
func (w *WhatsApp) Send(ctx context.Context, o order.Order) error {
	if !w.Enabled() {
		return ErrChannelDisabled
	}
	gateway := w.Config.GatewayURL
	if gateway == "" {
		gateway = "https://api.callmebot.com/whatsapp.php"
	}
	u, err := url.Parse(gateway)
	if err != nil {
		return newChannelError(ChannelWhatsApp, KindTransport, fmt.Errorf("parse gateway url: %w", err))
	}
	q := u.Query()
	q.Set("phone", w.Config.Phone)
	q.Set("text", w.Formatter.PlainText(o))
	q.Set("apikey", w.Config.APIKey)
	u.RawQuery = q.Encode()

	secrets := []string{w.Config.APIKey, url.QueryEscape(w.Config.APIKey)}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return newChannelError(ChannelWhatsApp, KindTransport, redact(err, secrets...))
	}
	resp, err := httpClientOr(w.Client).Do(req)
	if err != nil {
		return newChannelError(ChannelWhatsApp, KindTransport, redact(err, secrets...))
	}
	defer resp.Body.Close()
	_ = readBody(resp)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newChannelError(ChannelWhatsApp, statusKind(resp.StatusCode), fmt.Errorf("gateway returned status %d", resp.StatusCode))
	}
	return nil
}

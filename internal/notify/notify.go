// Package notify fans a placed order out to the admin notification channels
// (email, Telegram, WhatsApp). Delivery is best-effort: one attempt per
// channel, failures are reported, never raised.
package notify

import (
	"context"

	"github.com/homly/storefront/internal/order"
)

// Channel is one independent notification transport.
type Channel interface {
	Name() string
	// Enabled reports whether the channel has complete, non-placeholder
	// configuration. Disabled channels are never invoked.
	Enabled() bool
	Send(ctx context.Context, o order.Order) error
}

// Known channel names, in dispatch order.
const (
	ChannelEmail    = "email"
	ChannelTelegram = "telegram"
	ChannelWhatsApp = "whatsapp"
)

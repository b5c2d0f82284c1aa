package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/homly/storefront/internal/config"
	"github.com/homly/storefront/internal/logging"
	"github.com/homly/storefront/internal/metrics"
	"github.com/homly/storefront/internal/order"
)

// DefaultTimeout bounds one fan-out when no positive timeout is configured.
const DefaultTimeout = 15 * time.Second

// Outcome is the result of one channel for one order.
type Outcome struct {
	Enabled bool      `json:"enabled"`
	Success bool      `json:"success"`
	Error   string    `json:"error,omitempty"`
	Kind    ErrorKind `json:"kind,omitempty"`
}

// Report maps channel name to its outcome. It always has one entry per
// channel known to the dispatcher.
type Report map[string]Outcome

// Failed returns the names of enabled channels that did not deliver, sorted.
func (r Report) Failed() []string {
	var out []string
	for name, o := range r {
		if o.Enabled && !o.Success {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Dispatcher fans an order out to every channel. It never returns an error:
// each channel's failure is captured in the Report.
type Dispatcher struct {
	channels []Channel
	timeout  time.Duration
	// Now is injectable for tests.
	Now func() time.Time
	wg  sync.WaitGroup
}

// NewDispatcher returns a dispatcher over the given channels. Nil channels
// are ignored.
func NewDispatcher(timeout time.Duration, channels ...Channel) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	d := &Dispatcher{timeout: timeout, Now: time.Now}
	for _, ch := range channels {
		if ch != nil {
			d.channels = append(d.channels, ch)
		}
	}
	return d
}

// NewFromConfig wires the email, Telegram and WhatsApp channels from cfg.
// Channels with incomplete configuration are still registered so they show
// up as disabled in every report.
func NewFromConfig(cfg *config.Config) *Dispatcher {
	return NewDispatcher(cfg.NotifyTimeout, ChannelsFromConfig(cfg)...)
}

// ChannelsFromConfig builds the production channel clients in dispatch order.
func ChannelsFromConfig(cfg *config.Config) []Channel {
	f := Formatter{StoreName: cfg.StoreName, Currency: cfg.Currency}
	client := &http.Client{Timeout: cfg.NotifyTimeout + 5*time.Second}
	if cfg.NotifyTimeout <= 0 {
		client.Timeout = DefaultTimeout
	}
	return []Channel{
		&Email{Config: cfg.Email, Formatter: f, Mailer: NewGoMailSender(cfg.Email, cfg.NotifyTimeout)},
		&Telegram{Config: cfg.Telegram, Formatter: f, Client: client},
		&WhatsApp{Config: cfg.WhatsApp, Formatter: f, Client: client},
	}
}

// Channels returns the registered channel names in dispatch order.
func (d *Dispatcher) Channels() []string {
	names := make([]string, 0, len(d.channels))
	for _, ch := range d.channels {
		names = append(names, ch.Name())
	}
	return names
}

type channelResult struct {
	name string
	err  error
}

// NotifyOrder attempts every enabled channel concurrently and waits until
// all have finished or the timeout elapses. Channels still running at the
// deadline are reported as timed out; their goroutines finish on their own.
func (d *Dispatcher) NotifyOrder(ctx context.Context, o order.Order) Report {
	start := d.Now()
	report := make(Report, len(d.channels))
	log := logging.Get().With().Str("order_id", o.ID).Logger()

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	results := make(chan channelResult, len(d.channels))
	pending := make(map[string]struct{})
	for _, ch := range d.channels {
		name := ch.Name()
		if !ch.Enabled() {
			report[name] = Outcome{Enabled: false}
			log.Info().Str("channel", name).Msg("notification channel not configured, skipping")
			continue
		}
		pending[name] = struct{}{}
		go d.run(ctx, ch, o, results)
	}

	for len(pending) > 0 {
		select {
		case r := <-results:
			delete(pending, r.name)
			report[r.name] = outcomeFor(r.err)
		case <-ctx.Done():
			for name := range pending {
				report[name] = Outcome{
					Enabled: true,
					Error:   fmt.Sprintf("timed out after %s: %v", d.timeout, ctx.Err()),
					Kind:    KindTransport,
				}
			}
			pending = nil
		}
	}

	d.record(o, report, d.Now().Sub(start))
	return report
}

// run invokes one channel and always delivers exactly one result, even if
// the channel panics.
func (d *Dispatcher) run(ctx context.Context, ch Channel, o order.Order, results chan<- channelResult) {
	var err error
	defer func() {
		if r := recover(); r != nil {
			err = newChannelError(ch.Name(), KindUnexpected, fmt.Errorf("panic: %v", r))
		}
		results <- channelResult{name: ch.Name(), err: err}
	}()
	err = ch.Send(ctx, o)
}

func outcomeFor(err error) Outcome {
	if err == nil {
		return Outcome{Enabled: true, Success: true}
	}
	if errors.Is(err, ErrChannelDisabled) {
		return Outcome{Enabled: false}
	}
	var ce *ChannelError
	if errors.As(err, &ce) {
		return Outcome{Enabled: true, Error: ce.Detail(), Kind: ce.Kind}
	}
	return Outcome{Enabled: true, Error: err.Error(), Kind: KindTransport}
}

// record logs each outcome and feeds the metrics counters.
func (d *Dispatcher) record(o order.Order, report Report, took time.Duration) {
	log := logging.Get().With().Str("order_id", o.ID).Logger()
	for _, name := range d.Channels() {
		out := report[name]
		switch {
		case !out.Enabled:
			metrics.RecordNotification(name, metrics.OutcomeDisabled)
		case out.Success:
			metrics.RecordNotification(name, metrics.OutcomeSuccess)
			log.Info().Str("channel", name).Msg("order notification sent")
		default:
			metrics.RecordNotification(name, metrics.OutcomeFailure)
			log.Warn().Str("channel", name).Str("kind", string(out.Kind)).Str("error", out.Error).Msg("order notification failed")
		}
	}
	metrics.ObserveDispatch(took, d.Now())
}

// Dispatch notifies in the background and returns immediately. The work is
// detached from any request context; its report is only logged.
func (d *Dispatcher) Dispatch(o order.Order) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				logging.Get().Error().Str("order_id", o.ID).Interface("panic", r).Msg("order notification dispatch crashed")
			}
		}()
		report := d.NotifyOrder(context.Background(), o)
		if failed := report.Failed(); len(failed) > 0 {
			logging.Get().Warn().Str("order_id", o.ID).Strs("failed_channels", failed).Msg("order notification incomplete")
		}
	}()
}

// Wait waits for background dispatches to complete or until the provided
// context is cancelled.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

package notify

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/homly/storefront/internal/config"
	"github.com/homly/storefront/internal/order"
)

type stubChannel struct {
	name    string
	enabled bool
	calls   int32
	send    func(ctx context.Context, o order.Order) error
}

func (s *stubChannel) Name() string  { return s.name }
func (s *stubChannel) Enabled() bool { return s.enabled }

func (s *stubChannel) Send(ctx context.Context, o order.Order) error {
	atomic.AddInt32(&s.calls, 1)
	if s.send == nil {
		return nil
	}
	return s.send(ctx, o)
}

func okHandler(w http.ResponseWriter, r *http.Request) {
	_, _ = w.Write([]byte(`{"ok":true}`))
}

func TestNotifyOrderAllDisabled(t *testing.T) {
	server, hits := countingServer(t, okHandler)
	mailer := &fakeMailer{}
	d := NewDispatcher(time.Second,
		&Email{Mailer: mailer},
		&Telegram{Config: config.TelegramConfig{APIBase: server.URL}},
		&WhatsApp{Config: config.WhatsAppConfig{Phone: "1", APIKey: "your_api_key", GatewayURL: server.URL}},
	)

	report := d.NotifyOrder(context.Background(), sampleOrder())

	assert.Equal(t, Report{
		ChannelEmail:    {Enabled: false},
		ChannelTelegram: {Enabled: false},
		ChannelWhatsApp: {Enabled: false},
	}, report)
	assert.Zero(t, atomic.LoadInt64(hits), "no network call expected")
	assert.Zero(t, mailer.Calls(), "no smtp call expected")
	assert.Empty(t, report.Failed())
}

func TestNotifyOrderTelegramRejectedOthersProceed(t *testing.T) {
	tgServer, _ := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":403,"description":"bot was blocked"}`))
	})
	waServer, waHits := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("Message queued"))
	})
	mailer := &fakeMailer{}
	d := NewDispatcher(2*time.Second,
		&Email{Config: enabledEmailConfig(), Mailer: mailer},
		&Telegram{Config: config.TelegramConfig{BotToken: "tok", ChatID: "1", APIBase: tgServer.URL}},
		&WhatsApp{Config: config.WhatsAppConfig{Phone: "1", APIKey: "k", GatewayURL: waServer.URL}},
	)

	report := d.NotifyOrder(context.Background(), sampleOrder())

	assert.Equal(t, Outcome{Enabled: true, Success: false, Error: "bot was blocked", Kind: KindProviderRejected}, report[ChannelTelegram])
	assert.Equal(t, Outcome{Enabled: true, Success: true}, report[ChannelEmail])
	assert.Equal(t, Outcome{Enabled: true, Success: true}, report[ChannelWhatsApp])
	assert.Equal(t, 1, mailer.Calls())
	assert.EqualValues(t, 1, atomic.LoadInt64(waHits))
	assert.Equal(t, []string{ChannelTelegram}, report.Failed())
}

func TestNotifyOrderSMTPAuthFailureWithinTimeout(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	// ignores ctx entirely, like a hung provider client
	hung := &stubChannel{name: ChannelTelegram, enabled: true, send: func(context.Context, order.Order) error {
		<-release
		return nil
	}}
	mailer := &fakeMailer{err: errors.New("535 Authentication failed")}
	d := NewDispatcher(150*time.Millisecond, &Email{Config: enabledEmailConfig(), Mailer: mailer}, hung)

	start := time.Now()
	report := d.NotifyOrder(context.Background(), sampleOrder())
	elapsed := time.Since(start)

	assert.Less(t, elapsed, 2*time.Second)
	require.Len(t, report, 2)
	assert.Equal(t, Outcome{Enabled: true, Error: "535 Authentication failed", Kind: KindAuth}, report[ChannelEmail])

	tg := report[ChannelTelegram]
	assert.True(t, tg.Enabled)
	assert.False(t, tg.Success)
	assert.Equal(t, KindTransport, tg.Kind)
	assert.Contains(t, tg.Error, "timed out")
}

func TestNotifyOrderIsolatesPanics(t *testing.T) {
	boom := &stubChannel{name: "boom", enabled: true, send: func(context.Context, order.Order) error {
		panic("nil map")
	}}
	fine := &stubChannel{name: "fine", enabled: true}
	d := NewDispatcher(time.Second, boom, fine)

	report := d.NotifyOrder(context.Background(), sampleOrder())

	assert.Equal(t, KindUnexpected, report["boom"].Kind)
	assert.Contains(t, report["boom"].Error, "nil map")
	assert.True(t, report["fine"].Success)
}

func TestNotifyOrderSkipsDisabledChannels(t *testing.T) {
	off := &stubChannel{name: "off"}
	on := &stubChannel{name: "on", enabled: true, send: func(context.Context, order.Order) error {
		return errors.New("connection reset")
	}}
	d := NewDispatcher(0, off, on, nil)

	report := d.NotifyOrder(context.Background(), sampleOrder())

	assert.Zero(t, atomic.LoadInt32(&off.calls))
	assert.Equal(t, Outcome{Enabled: false}, report["off"])
	assert.Equal(t, Outcome{Enabled: true, Error: "connection reset", Kind: KindTransport}, report["on"])
	assert.Equal(t, []string{"off", "on"}, d.Channels())
}

func TestNotifyOrderHonoursCallerCancellation(t *testing.T) {
	slow := &stubChannel{name: "slow", enabled: true, send: func(ctx context.Context, _ order.Order) error {
		<-ctx.Done()
		return newChannelError("slow", KindTransport, ctx.Err())
	}}
	d := NewDispatcher(time.Minute, slow)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := d.NotifyOrder(ctx, sampleOrder())

	assert.True(t, report["slow"].Enabled)
	assert.False(t, report["slow"].Success)
}

func TestDispatchAndWait(t *testing.T) {
	var sent int32
	ch := &stubChannel{name: "count", enabled: true, send: func(context.Context, order.Order) error {
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&sent, 1)
		return nil
	}}
	d := NewDispatcher(time.Second, ch)

	d.Dispatch(sampleOrder())
	d.Dispatch(sampleOrder())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, d.Wait(ctx))
	assert.EqualValues(t, 2, atomic.LoadInt32(&sent))
}

func TestWaitRespectsContext(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	ch := &stubChannel{name: "stuck", enabled: true, send: func(context.Context, order.Order) error {
		<-release
		return nil
	}}
	d := NewDispatcher(time.Minute, ch)
	d.Dispatch(sampleOrder())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Wait(ctx), context.DeadlineExceeded)
}

func TestNewFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	d := NewFromConfig(cfg)

	assert.Equal(t, []string{ChannelEmail, ChannelTelegram, ChannelWhatsApp}, d.Channels())
	assert.Equal(t, cfg.NotifyTimeout, d.timeout)

	report := d.NotifyOrder(context.Background(), sampleOrder())
	for _, name := range d.Channels() {
		assert.False(t, report[name].Enabled, name)
	}
}

package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/homly/storefront/internal/config"
	"github.com/homly/storefront/internal/order"
)

const (
	invalidPayloadMsg    = "invalid payload: %v"
	unexpectedPayloadMsg = "unexpected payload: %v"
)

func sampleOrder() order.Order {
	return order.Order{
		ID:            "abc123def456",
		Total:         decimal.NewFromInt(1000),
		PaymentMethod: order.PaymentCOD,
		ShippingAddress: order.Address{
			Name: "Asha <VIP>", Street: "12 Lake Rd", City: "Pune", PostalCode: "411001",
		},
		Items:     []order.Item{{Name: "Widget", Quantity: 2, Price: decimal.NewFromInt(500)}},
		User:      &order.Customer{Name: "Asha", Email: "asha@example.com"},
		CreatedAt: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
	}
}

type fakeMailer struct {
	mu      sync.Mutex
	calls   int
	err     error
	to      string
	subject string
	html    string
	text    string
}

func (f *fakeMailer) Send(ctx context.Context, to, subject, htmlBody, textBody string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.to, f.subject, f.html, f.text = to, subject, htmlBody, textBody
	return f.err
}

func (f *fakeMailer) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func enabledEmailConfig() config.EmailConfig {
	return config.EmailConfig{Host: "smtp.test", Port: 587, User: "shop@example.com", Pass: "secret", AdminEmail: "owner@example.com"}
}

func TestTelegramPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bottok/sendMessage" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var payload map[string]string
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf(invalidPayloadMsg, err)
		}
		if payload["chat_id"] != "123" || payload["parse_mode"] != "HTML" {
			t.Errorf(unexpectedPayloadMsg, payload)
		}
		if !strings.Contains(payload["text"], "#23DEF456") || !strings.Contains(payload["text"], "2x Widget") {
			t.Errorf(unexpectedPayloadMsg, payload)
		}
		_, _ = w.Write([]byte(`{"ok":true,"result":{}}`))
	}))
	defer server.Close()

	tg := &Telegram{Config: config.TelegramConfig{BotToken: "tok", ChatID: "123", APIBase: server.URL}}
	if err := tg.Send(context.Background(), sampleOrder()); err != nil {
		t.Fatalf("telegram send failed: %v", err)
	}
}

func TestTelegramRejected(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   ErrorKind
		detail string
	}{
		{"ok false with 200", http.StatusOK, `{"ok":false,"description":"bot was blocked"}`, KindProviderRejected, "bot was blocked"},
		{"blocked 403", http.StatusForbidden, `{"ok":false,"error_code":403,"description":"Forbidden: bot was blocked by the user"}`, KindProviderRejected, "Forbidden: bot was blocked by the user"},
		{"bad token", http.StatusUnauthorized, `{"ok":false,"error_code":401,"description":"Unauthorized"}`, KindAuth, "Unauthorized"},
		{"gateway html error", http.StatusBadGateway, `<html>bad gateway</html>`, KindTransport, "telegram api returned status 502"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			tg := &Telegram{Config: config.TelegramConfig{BotToken: "tok", ChatID: "1", APIBase: server.URL}}
			err := tg.Send(context.Background(), sampleOrder())
			var ce *ChannelError
			if !errors.As(err, &ce) {
				t.Fatalf("expected ChannelError, got %v", err)
			}
			if ce.Kind != tt.kind || ce.Detail() != tt.detail {
				t.Fatalf("got kind=%s detail=%q", ce.Kind, ce.Detail())
			}
		})
	}
}

func TestTelegramTransportErrorRedactsToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := server.URL
	server.Close()

	tg := &Telegram{Config: config.TelegramConfig{BotToken: "7001:SECRET", ChatID: "1", APIBase: base}}
	err := tg.Send(context.Background(), sampleOrder())
	var ce *ChannelError
	if !errors.As(err, &ce) || ce.Kind != KindTransport {
		t.Fatalf("expected transport failure, got %v", err)
	}
	if strings.Contains(err.Error(), "SECRET") {
		t.Fatalf("bot token leaked into error: %v", err)
	}
}

func TestWhatsAppQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		q := r.URL.Query()
		if q.Get("phone") != "+15550100" || q.Get("apikey") != "424242" {
			t.Errorf("unexpected query: %v", q)
		}
		text := q.Get("text")
		if !strings.Contains(text, "New Order #23DEF456") || strings.Contains(text, "<b>") {
			t.Errorf("unexpected text: %q", text)
		}
		_, _ = w.Write([]byte("Message queued"))
	}))
	defer server.Close()

	wa := &WhatsApp{Config: config.WhatsAppConfig{Phone: "+15550100", APIKey: "424242", GatewayURL: server.URL}}
	if err := wa.Send(context.Background(), sampleOrder()); err != nil {
		t.Fatalf("whatsapp send failed: %v", err)
	}
}

func TestWhatsAppStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	wa := &WhatsApp{Config: config.WhatsAppConfig{Phone: "1", APIKey: "k", GatewayURL: server.URL}}
	err := wa.Send(context.Background(), sampleOrder())
	var ce *ChannelError
	if !errors.As(err, &ce) || ce.Kind != KindAuth {
		t.Fatalf("expected auth failure, got %v", err)
	}
}

func TestDisabledChannelsRefuseToSend(t *testing.T) {
	ctx := context.Background()
	o := sampleOrder()
	wa := &WhatsApp{Config: config.WhatsAppConfig{Phone: "1", APIKey: "REPLACE_WITH_YOUR_KEY"}}
	if err := wa.Send(ctx, o); !errors.Is(err, ErrChannelDisabled) {
		t.Fatalf("expected ErrChannelDisabled, got %v", err)
	}
	if err := (&Telegram{}).Send(ctx, o); !errors.Is(err, ErrChannelDisabled) {
		t.Fatalf("expected ErrChannelDisabled, got %v", err)
	}
	if err := (&Email{Config: enabledEmailConfig()}).Send(ctx, o); !errors.Is(err, ErrChannelDisabled) {
		t.Fatalf("expected ErrChannelDisabled without mailer, got %v", err)
	}
}

func TestEmailSend(t *testing.T) {
	m := &fakeMailer{}
	e := &Email{Config: enabledEmailConfig(), Formatter: Formatter{StoreName: "Homly"}, Mailer: m}
	if err := e.Send(context.Background(), sampleOrder()); err != nil {
		t.Fatalf("email send failed: %v", err)
	}
	if m.to != "owner@example.com" {
		t.Fatalf("unexpected recipient %q", m.to)
	}
	if m.subject != "[Homly] New Order #23DEF456 - 1000.00" {
		t.Fatalf("unexpected subject %q", m.subject)
	}
	if !strings.Contains(m.html, "Asha &lt;VIP&gt;") {
		t.Fatalf("expected escaped customer name in html body: %s", m.html)
	}
	if !strings.Contains(m.text, "- 2x Widget (500.00)") {
		t.Fatalf("unexpected text body: %s", m.text)
	}
}

func TestEmailAuthFailure(t *testing.T) {
	m := &fakeMailer{err: errors.New("535 5.7.8 Username and Password not accepted")}
	e := &Email{Config: enabledEmailConfig(), Mailer: m}
	err := e.Send(context.Background(), sampleOrder())
	var ce *ChannelError
	if !errors.As(err, &ce) || ce.Kind != KindAuth {
		t.Fatalf("expected auth failure, got %v", err)
	}
	if ce.Detail() != "535 5.7.8 Username and Password not accepted" {
		t.Fatalf("provider message not preserved: %q", ce.Detail())
	}
}

func TestClassifySMTPError(t *testing.T) {
	cases := map[string]ErrorKind{
		"SMTP AUTH failed: invalid credentials":             KindAuth,
		"dial tcp 10.0.0.1:587: i/o timeout":                KindTransport,
		"failed to dial to SMTP server: connection refused": KindTransport,
	}
	for msg, want := range cases {
		if got := classifySMTPError(errors.New(msg)); got != want {
			t.Errorf("classifySMTPError(%q) = %s, want %s", msg, got, want)
		}
	}
}

func TestGoMailSenderOptions(t *testing.T) {
	cfg := enabledEmailConfig()
	if n := len(NewGoMailSender(cfg, 0).options()); n != 6 {
		t.Fatalf("expected 6 options, got %d", n)
	}
	if s := NewGoMailSender(cfg, 0); s.timeout != 15*time.Second {
		t.Fatalf("expected default timeout, got %v", s.timeout)
	}
}

var _ Channel = (*Email)(nil)
var _ Channel = (*Telegram)(nil)
var _ Channel = (*WhatsApp)(nil)
var _ MailSender = (*GoMailSender)(nil)

func TestRedact(t *testing.T) {
	cause := errors.New("Post https://x/botSECRET/sendMessage: " + context.DeadlineExceeded.Error())
	err := redact(cause, "SECRET")
	if strings.Contains(err.Error(), "SECRET") {
		t.Fatalf("secret not redacted: %v", err)
	}
	if !errors.Is(err, cause) {
		t.Fatal("redacted error must unwrap to its cause")
	}
	if redact(nil, "x") != nil {
		t.Fatal("redact(nil) must be nil")
	}
}

// countingServer counts hits so tests can assert that no network call was made.
func countingServer(t *testing.T, h http.HandlerFunc) (*httptest.Server, *int64) {
	t.Helper()
	var hits int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		h(w, r)
	}))
	t.Cleanup(server.Close)
	return server, &hits
}

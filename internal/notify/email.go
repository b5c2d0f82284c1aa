package notify

import (
	"context"
	"errors"
	"fmt"
	"net/textproto"
	"strings"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/homly/storefront/internal/config"
	"github.com/homly/storefront/internal/order"
)

// MailSender delivers one message over SMTP.
type MailSender interface {
	Send(ctx context.Context, to, subject, htmlBody, textBody string) error
}

// Email reports orders to the admin mailbox.
type Email struct {
	Config    config.EmailConfig
	Formatter Formatter
	Mailer    MailSender
}

func (e *Email) Name() string { return ChannelEmail }

func (e *Email) Enabled() bool { return e.Config.Enabled() && e.Mailer != nil }

// Send renders the order and hands it to the mailer once. Connection and
// authentication problems surface immediately; nothing is retried.
func (e *Email) Send(ctx context.Context, o order.Order) error {
	if !e.Enabled() {
		return ErrChannelDisabled
	}
	htmlBody, err := e.Formatter.EmailHTML(o)
	if err != nil {
		return newChannelError(ChannelEmail, KindUnexpected, err)
	}
	err = e.Mailer.Send(ctx, e.Config.Recipient(), e.Formatter.Subject(o), htmlBody, e.Formatter.PlainText(o))
	if err != nil {
		return newChannelError(ChannelEmail, classifySMTPError(err), err)
	}
	return nil
}

// classifySMTPError separates credential rejections from everything else.
func classifySMTPError(err error) ErrorKind {
	var tpErr *textproto.Error
	if errors.As(err, &tpErr) {
		switch tpErr.Code {
		case 530, 534, 535:
			return KindAuth
		}
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"auth", "535", "534", "username and password", "credentials"} {
		if strings.Contains(msg, marker) {
			return KindAuth
		}
	}
	return KindTransport
}

// GoMailSender is the production MailSender. A client is created per send
// so a broken session never leaks into the next order.
type GoMailSender struct {
	cfg     config.EmailConfig
	timeout time.Duration
}

// NewGoMailSender returns a sender for the given SMTP settings.
func NewGoMailSender(cfg config.EmailConfig, timeout time.Duration) *GoMailSender {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &GoMailSender{cfg: cfg, timeout: timeout}
}

func (g *GoMailSender) options() []mail.Option {
	opts := []mail.Option{
		mail.WithPort(g.cfg.Port),
		mail.WithTimeout(g.timeout),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(g.cfg.User),
		mail.WithPassword(g.cfg.Pass),
	}
	switch {
	case g.cfg.Port == 465:
		opts = append(opts, mail.WithSSL())
	case g.cfg.TLS:
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	default:
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}
	return opts
}

// Send builds a multipart (text + HTML) message and delivers it.
func (g *GoMailSender) Send(ctx context.Context, to, subject, htmlBody, textBody string) error {
	msg := mail.NewMsg()
	if err := msg.From(g.cfg.Sender()); err != nil {
		return fmt.Errorf("set from address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("set to address: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, textBody)
	msg.AddAlternativeString(mail.TypeTextHTML, htmlBody)

	client, err := mail.NewClient(g.cfg.Host, g.options()...)
	if err != nil {
		return fmt.Errorf("create mail client: %w", err)
	}
	return client.DialAndSendWithContext(ctx, msg)
}

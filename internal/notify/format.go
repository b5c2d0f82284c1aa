package notify

import (
	"bytes"
	"fmt"
	"html"
	"html/template"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/homly/storefront/internal/order"
)

// orderRefLength is how many trailing ID characters identify an order in
// human facing messages.
const orderRefLength = 8

// timeLayout renders the order creation time. Messages only ever carry the
// order's own timestamp, so output is a pure function of the order.
const timeLayout = "2006-01-02 15:04 MST"

// OrderRef returns the short, uppercased order reference shown to admins.
func OrderRef(id string) string {
	if len(id) > orderRefLength {
		id = id[len(id)-orderRefLength:]
	}
	return strings.ToUpper(id)
}

// Formatter renders order summaries for each channel. The zero value is
// usable; StoreName and Currency only decorate the output.
type Formatter struct {
	StoreName string
	Currency  string
}

type lineSummary struct {
	Name     string
	Quantity int
	Price    string
}

type summary struct {
	Ref           string
	Store         string
	Total         string
	Payment       string
	Customer      string
	CustomerEmail string
	Address       string
	Time          string
	Items         []lineSummary
}

func (f Formatter) amount(d decimal.Decimal) string {
	return f.Currency + d.StringFixed(2)
}

func (f Formatter) summarize(o order.Order) summary {
	s := summary{
		Ref:      OrderRef(o.ID),
		Store:    f.StoreName,
		Total:    f.amount(o.Total),
		Payment:  o.PaymentMethod.Label(),
		Customer: o.CustomerName(),
		Address:  joinNonEmpty(", ", o.ShippingAddress.Street, o.ShippingAddress.City, o.ShippingAddress.PostalCode),
	}
	if o.User != nil {
		s.CustomerEmail = o.User.Email
	}
	if !o.CreatedAt.IsZero() {
		s.Time = o.CreatedAt.UTC().Format(timeLayout)
	}
	for _, it := range o.Items {
		s.Items = append(s.Items, lineSummary{Name: it.Name, Quantity: it.Quantity, Price: f.amount(it.Price)})
	}
	return s
}

func joinNonEmpty(sep string, parts ...string) string {
	var out []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}

// Subject is the email subject line.
func (f Formatter) Subject(o order.Order) string {
	s := f.summarize(o)
	prefix := ""
	if s.Store != "" {
		prefix = "[" + s.Store + "] "
	}
	return fmt.Sprintf("%sNew Order #%s - %s", prefix, s.Ref, s.Total)
}

var emailTemplate = template.Must(template.New("order").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #222;">
  <h2>New order #{{.Ref}}</h2>
  <p>
    <strong>Total:</strong> {{.Total}}<br>
    <strong>Payment:</strong> {{.Payment}}{{if .Time}}<br>
    <strong>Placed:</strong> {{.Time}}{{end}}
  </p>
  <h3>Customer</h3>
  <p>{{.Customer}}{{if .CustomerEmail}} &lt;{{.CustomerEmail}}&gt;{{end}}{{if .Address}}<br>{{.Address}}{{end}}</p>
  <h3>Items</h3>
  <table cellpadding="4" style="border-collapse: collapse;">
{{- range .Items}}
    <tr><td>{{.Quantity}}x</td><td>{{.Name}}</td><td align="right">{{.Price}}</td></tr>
{{- end}}
  </table>
{{- if .Store}}
  <p style="color: #666; font-size: 12px;">{{.Store}} order notification</p>
{{- end}}
</body>
</html>
`))

// EmailHTML renders the HTML email body.
func (f Formatter) EmailHTML(o order.Order) (string, error) {
	var buf bytes.Buffer
	if err := emailTemplate.Execute(&buf, f.summarize(o)); err != nil {
		return "", fmt.Errorf("render email: %w", err)
	}
	return buf.String(), nil
}

// PlainText renders the plain-text summary used for the email alternative
// part and for WhatsApp.
func (f Formatter) PlainText(o order.Order) string {
	s := f.summarize(o)
	var b strings.Builder
	if s.Store != "" {
		fmt.Fprintf(&b, "%s: ", s.Store)
	}
	fmt.Fprintf(&b, "New Order #%s\n", s.Ref)
	fmt.Fprintf(&b, "Total: %s\n", s.Total)
	fmt.Fprintf(&b, "Payment: %s\n", s.Payment)
	fmt.Fprintf(&b, "Customer: %s\n", s.Customer)
	if s.Address != "" {
		fmt.Fprintf(&b, "Address: %s\n", s.Address)
	}
	if s.Time != "" {
		fmt.Fprintf(&b, "Time: %s\n", s.Time)
	}
	b.WriteString("Items:\n")
	for _, it := range s.Items {
		fmt.Fprintf(&b, "- %dx %s (%s)\n", it.Quantity, it.Name, it.Price)
	}
	return strings.TrimRight(b.String(), "\n")
}

// TelegramText renders the Telegram message using its HTML subset. All
// order supplied strings are escaped.
func (f Formatter) TelegramText(o order.Order) string {
	s := f.summarize(o)
	e := html.EscapeString
	var b strings.Builder
	fmt.Fprintf(&b, "🛍️ <b>New Order #%s</b>", e(s.Ref))
	if s.Store != "" {
		fmt.Fprintf(&b, " · %s", e(s.Store))
	}
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "💰 <b>Total:</b> %s\n", e(s.Total))
	fmt.Fprintf(&b, "💳 <b>Payment:</b> %s\n", e(s.Payment))
	fmt.Fprintf(&b, "👤 <b>Customer:</b> %s\n", e(s.Customer))
	if s.Address != "" {
		fmt.Fprintf(&b, "📍 <b>Address:</b> %s\n", e(s.Address))
	}
	if s.Time != "" {
		fmt.Fprintf(&b, "🕒 <b>Time:</b> %s\n", e(s.Time))
	}
	b.WriteString("\n📦 <b>Items:</b>\n")
	for _, it := range s.Items {
		fmt.Fprintf(&b, "• %dx %s (%s)\n", it.Quantity, e(it.Name), e(it.Price))
	}
	return strings.TrimRight(b.String(), "\n")
}

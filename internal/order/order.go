// Package order defines the order entity shared by the API, the store and
// the notification channels.
package order

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentMethod is the kind of payment chosen at checkout.
type PaymentMethod string

const (
	PaymentCOD    PaymentMethod = "COD"
	PaymentCard   PaymentMethod = "CARD"
	PaymentWallet PaymentMethod = "WALLET"
)

var paymentLabels = map[PaymentMethod]string{
	PaymentCOD:    "Cash on Delivery",
	PaymentCard:   "Card",
	PaymentWallet: "Wallet",
}

// Valid reports whether p is one of the known payment kinds.
func (p PaymentMethod) Valid() bool {
	_, ok := paymentLabels[p]
	return ok
}

// Label is the human readable payment name; unknown kinds are returned as-is.
func (p PaymentMethod) Label() string {
	if l, ok := paymentLabels[p]; ok {
		return l
	}
	return string(p)
}

// Address is the shipping destination.
type Address struct {
	Name       string `json:"name,omitempty"`
	Street     string `json:"street,omitempty"`
	City       string `json:"city,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
}

// Item is one order line.
type Item struct {
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// LineTotal is quantity times unit price.
func (i Item) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Customer is the optional account that placed the order.
type Customer struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// Order is a placed order. Amounts are currency-agnostic.
type Order struct {
	ID              string          `json:"id"`
	Total           decimal.Decimal `json:"total"`
	PaymentMethod   PaymentMethod   `json:"paymentMethod"`
	ShippingAddress Address         `json:"shippingAddress"`
	Items           []Item          `json:"items"`
	User            *Customer       `json:"user,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
}

// CustomerName prefers the shipping name and falls back to the account name.
func (o Order) CustomerName() string {
	if o.ShippingAddress.Name != "" {
		return o.ShippingAddress.Name
	}
	if o.User != nil && o.User.Name != "" {
		return o.User.Name
	}
	return "Guest"
}

// ItemsTotal sums the line totals.
func (o Order) ItemsTotal() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range o.Items {
		sum = sum.Add(it.LineTotal())
	}
	return sum
}

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid order")

// Validate checks the order is complete enough to be accepted.
func (o Order) Validate() error {
	var problems []string
	if len(o.Items) == 0 {
		problems = append(problems, "at least one item is required")
	}
	for i, it := range o.Items {
		if strings.TrimSpace(it.Name) == "" {
			problems = append(problems, fmt.Sprintf("item %d: name is required", i))
		}
		if it.Quantity <= 0 {
			problems = append(problems, fmt.Sprintf("item %d: quantity must be positive", i))
		}
		if it.Price.IsNegative() {
			problems = append(problems, fmt.Sprintf("item %d: price must not be negative", i))
		}
	}
	if o.Total.IsNegative() {
		problems = append(problems, "total must not be negative")
	}
	if !o.PaymentMethod.Valid() {
		problems = append(problems, fmt.Sprintf("unknown payment method %q", o.PaymentMethod))
	}
	a := o.ShippingAddress
	if a.Name == "" || a.Street == "" || a.City == "" || a.PostalCode == "" {
		problems = append(problems, "shipping address requires name, street, city and postal code")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// NewID returns a fresh opaque order identifier (32 lowercase hex chars).
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

package api

import "github.com/homly/storefront/internal/order"

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// OrderList is the body of GET /api/orders.
type OrderList struct {
	Orders []order.Order `json:"orders"`
}

// Package notify fans order lifecycle events out to the operator-facing
// dashboards over a pub/sub relay. Delivery is at least once with no ordering
// guarantee across channels; publish failures are never fatal to the caller.
package notify

import (
	"context"
	"time"
)

// Channel names for the dashboard subscriptions.
const (
	ChannelAdmin   = "admin"
	ChannelKitchen = "kitchen"
)

// Event names.
const (
	EventNewOrder    = "admin.new_order"
	EventOrderPaid   = "admin.order_paid"
	EventKitchenPaid = "kitchen.order_paid"
	EventPaid        = "order.paid"
)

// OrderChannel returns the order-specific channel a customer's confirmation
// page subscribes to.
func OrderChannel(orderID string) string {
	return "order." + orderID
}

// Publisher publishes an event payload to a named channel.
type Publisher interface {
	Publish(ctx context.Context, channel, event string, payload any) error
}

// EventItem is a line item as carried in dashboard event payloads.
type EventItem struct {
	ProductID      string `json:"product_id"`
	Name           string `json:"name"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	Quantity       int    `json:"quantity"`
	LineTotalCents int64  `json:"line_total_cents"`
	Notes          string `json:"notes,omitempty"`
}

// NewOrderEvent announces a freshly placed (not yet paid) order to the admin
// dashboard.
type NewOrderEvent struct {
	OrderID       string      `json:"order_id"`
	CustomerName  string      `json:"customer_name"`
	TableNumber   string      `json:"table_number"`
	Phone         string      `json:"phone,omitempty"`
	Email         string      `json:"email,omitempty"`
	Items         []EventItem `json:"items"`
	TotalCents    int64       `json:"total_cents"`
	Status        string      `json:"status"`
	PaymentStatus string      `json:"payment_status"`
	VoucherCode   string      `json:"voucher_code,omitempty"`
	DiscountCents int64       `json:"discount_cents,omitempty"`
	OrderNotes    string      `json:"order_notes,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
}

// KitchenOrderEvent carries full order detail to the kitchen display. It is
// published only once payment is confirmed, so the kitchen never sees unpaid
// orders.
type KitchenOrderEvent struct {
	OrderID      string      `json:"order_id"`
	CustomerName string      `json:"customer_name"`
	TableNumber  string      `json:"table_number"`
	Phone        string      `json:"phone,omitempty"`
	Email        string      `json:"email,omitempty"`
	Items        []EventItem `json:"items"`
	TotalCents   int64       `json:"total_cents"`
	OrderNotes   string      `json:"order_notes,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
}

// StatusChangedEvent tells the admin dashboard an order's status changed.
type StatusChangedEvent struct {
	OrderID       string `json:"order_id"`
	Status        string `json:"status"`
	PaymentStatus string `json:"payment_status"`
}

// PaidEvent tells the customer's confirmation page the order is paid.
type PaidEvent struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

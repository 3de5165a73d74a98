package domain

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// transitions lists every allowed move. Delivered and cancelled are terminal.
var transitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered, OrderStatusCancelled},
	OrderStatusDelivered:  nil,
	OrderStatusCancelled:  nil,
}

func ParseOrderStatus(s string) (OrderStatus, error) {
	status := OrderStatus(s)
	if _, ok := transitions[status]; !ok {
		return "", Invalid("status", "unknown order status %q", s)
	}
	return status, nil
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s OrderStatus) Terminal() bool {
	return len(transitions[s]) == 0
}

// CheckTransition returns ErrInvalidTransition wrapped with both states.
func (s OrderStatus) CheckTransition(next OrderStatus) error {
	if !s.CanTransitionTo(next) {
		return fmt.Errorf("%s -> %s: %w", s, next, ErrInvalidTransition)
	}
	return nil
}

type OrderItem struct {
	ProductID string          `json:"productId"`
	ArtisanID string          `json:"artisanId"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

func (i OrderItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type Order struct {
	ID        string          `json:"id"`
	BuyerID   string          `json:"buyerId"`
	Items     []OrderItem     `json:"items"`
	Status    OrderStatus     `json:"status"`
	Total     decimal.Decimal `json:"total"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

func SumItems(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// HasArtisan reports whether any line item was sold by artisanID.
func (o *Order) HasArtisan(artisanID string) bool {
	for _, item := range o.Items {
		if item.ArtisanID == artisanID {
			return true
		}
	}
	return false
}

// LineRequest is one cart entry submitted at checkout.
type LineRequest struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"min=1"`
}

// MergeLines folds duplicate products together and orders the result by
// product id, which is also the row-lock order used when placing an order.
func MergeLines(lines []LineRequest) []LineRequest {
	byID := make(map[string]int, len(lines))
	for _, line := range lines {
		byID[line.ProductID] += line.Quantity
	}

	merged := make([]LineRequest, 0, len(byID))
	for id, qty := range byID {
		merged = append(merged, LineRequest{ProductID: id, Quantity: qty})
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].ProductID < merged[j].ProductID })
	return merged
}

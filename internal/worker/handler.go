package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/zaymazone/marketplace/internal/domain"
	"github.com/zaymazone/marketplace/internal/messaging"
)

// Ledger applies artisan sales deltas exactly once per event id.
type Ledger interface {
	ApplySales(ctx context.Context, eventID string, deltas map[string]int) error
}

// SalesHandler keeps artisan totalSales in step with order events. Placed
// orders add their quantities and cancellations take them back.
type SalesHandler struct {
	ledger Ledger
	logger *slog.Logger
}

func NewSalesHandler(ledger Ledger, logger *slog.Logger) *SalesHandler {
	return &SalesHandler{
		ledger: ledger,
		logger: logger,
	}
}

func (h *SalesHandler) Handle(ctx context.Context, topic string, payload []byte) error {
	switch topic {
	case domain.TopicOrderPlaced:
		return h.handlePlaced(ctx, payload)
	case domain.TopicOrderStatusChanged:
		return h.handleStatusChanged(ctx, payload)
	default:
		h.logger.Warn("ignoring message from unexpected topic", "topic", topic)
		return nil
	}
}

func (h *SalesHandler) handlePlaced(ctx context.Context, payload []byte) error {
	var event domain.OrderPlacedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("unmarshal order placed event: %w: %w", messaging.ErrMalformed, err)
	}

	h.logger.Info("processing order placed event", "order_id", event.OrderID, "buyer_id", event.BuyerID)

	deltas := salesByArtisan(event.Items, 1)
	if err := h.ledger.ApplySales(ctx, event.EventID, deltas); err != nil {
		h.logger.Error("failed to record sales", "error", err, "order_id", event.OrderID)
		return fmt.Errorf("record sales for order %s: %w", event.OrderID, err)
	}

	h.logger.Info("sales recorded", "order_id", event.OrderID, "artisans", len(deltas))
	return nil
}

func (h *SalesHandler) handleStatusChanged(ctx context.Context, payload []byte) error {
	var event domain.OrderStatusChangedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("unmarshal order status event: %w: %w", messaging.ErrMalformed, err)
	}

	if event.To != domain.OrderStatusCancelled {
		return nil
	}

	h.logger.Info("processing order cancellation", "order_id", event.OrderID, "from", event.From)

	deltas := salesByArtisan(event.Items, -1)
	if err := h.ledger.ApplySales(ctx, event.EventID, deltas); err != nil {
		h.logger.Error("failed to reverse sales", "error", err, "order_id", event.OrderID)
		return fmt.Errorf("reverse sales for order %s: %w", event.OrderID, err)
	}

	h.logger.Info("sales reversed", "order_id", event.OrderID, "artisans", len(deltas))
	return nil
}

func salesByArtisan(items []domain.OrderItem, sign int) map[string]int {
	deltas := make(map[string]int)
	for _, item := range items {
		deltas[item.ArtisanID] += sign * item.Quantity
	}
	return deltas
}

package orders

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/zaymazone/marketplace/internal/auth"
	"github.com/zaymazone/marketplace/internal/domain"
	"github.com/zaymazone/marketplace/internal/httpx"
)

const (
	defaultRecentLimit = 5
	maxRecentLimit     = 50
)

type Store interface {
	Place(ctx context.Context, buyerID string, lines []domain.LineRequest) (*domain.Order, error)
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	ListByBuyer(ctx context.Context, buyerID string) ([]domain.Order, error)
	ListBySeller(ctx context.Context, sellerID string, limit int) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, id string, next domain.OrderStatus, check func(*domain.Order) error) (*domain.Order, error)
}

// Publisher sends order events. A nil Publisher disables publishing.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, event any) error
}

type Handler struct {
	store         Store
	publisher     Publisher
	logger        *slog.Logger
	ordersPlaced  metric.Int64Counter
	statusChanges metric.Int64Counter
}

func NewHandler(store Store, publisher Publisher, logger *slog.Logger) (*Handler, error) {
	meter := otel.Meter("github.com/zaymazone/marketplace/internal/orders")

	ordersPlaced, err := meter.Int64Counter("orders.placed",
		metric.WithDescription("Orders accepted at checkout"),
	)
	if err != nil {
		return nil, err
	}

	statusChanges, err := meter.Int64Counter("orders.status_changes",
		metric.WithDescription("Order status transitions by target status"),
	)
	if err != nil {
		return nil, err
	}

	return &Handler{
		store:         store,
		publisher:     publisher,
		logger:        logger,
		ordersPlaced:  ordersPlaced,
		statusChanges: statusChanges,
	}, nil
}

type createOrderRequest struct {
	Items []domain.LineRequest `json:"items" validate:"min=1,dive"`
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	var req createOrderRequest
	if err := httpx.Decode(w, r, &req); err != nil {
		h.fail(w, err, "invalid order body")
		return
	}
	if err := domain.Validate(&req); err != nil {
		h.fail(w, err, "invalid order request")
		return
	}

	order, err := h.store.Place(r.Context(), user.ID, domain.MergeLines(req.Items))
	if err != nil {
		h.fail(w, err, "failed to place order", "buyer_id", user.ID)
		return
	}
	h.ordersPlaced.Add(r.Context(), 1)

	h.publish(r.Context(), domain.TopicOrderPlaced, order.ID, domain.OrderPlacedEvent{
		EventID:   order.ID + ":placed",
		OrderID:   order.ID,
		BuyerID:   order.BuyerID,
		Items:     order.Items,
		Timestamp: order.CreatedAt,
	})

	h.logger.Info("order created", "order_id", order.ID, "buyer_id", order.BuyerID, "total", order.Total)
	h.writeJSON(w, http.StatusCreated, order)
}

// HandleGet returns an order to its buyer, to any seller with a line in it, or
// to an admin.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		h.fail(w, err, "missing order id")
		return
	}

	order, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		h.fail(w, err, "failed to get order", "id", id)
		return
	}

	user, _ := auth.UserFromContext(r.Context())
	if !canView(user, order) {
		h.writeError(w, http.StatusForbidden, "not authorized to view this order")
		return
	}

	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) HandleListByBuyer(w http.ResponseWriter, r *http.Request) {
	buyerID, ok := h.selfOrAdmin(w, r, "userId")
	if !ok {
		return
	}

	orders, err := h.store.ListByBuyer(r.Context(), buyerID)
	if err != nil {
		h.fail(w, err, "failed to list buyer orders", "buyer_id", buyerID)
		return
	}

	h.logger.Info("buyer orders listed", "buyer_id", buyerID, "count", len(orders))
	h.writeJSON(w, http.StatusOK, orders)
}

func (h *Handler) HandleListBySeller(w http.ResponseWriter, r *http.Request) {
	sellerID, ok := h.selfOrAdmin(w, r, "sellerId")
	if !ok {
		return
	}

	orders, err := h.store.ListBySeller(r.Context(), sellerID, 0)
	if err != nil {
		h.fail(w, err, "failed to list seller orders", "seller_id", sellerID)
		return
	}

	h.logger.Info("seller orders listed", "seller_id", sellerID, "count", len(orders))
	h.writeJSON(w, http.StatusOK, orders)
}

func (h *Handler) HandleListRecent(w http.ResponseWriter, r *http.Request) {
	sellerID, ok := h.selfOrAdmin(w, r, "sellerId")
	if !ok {
		return
	}

	limit, err := httpx.ParseLimit(r.URL.Query().Get("limit"), defaultRecentLimit, maxRecentLimit)
	if err != nil {
		h.fail(w, err, "invalid limit")
		return
	}

	orders, err := h.store.ListBySeller(r.Context(), sellerID, limit)
	if err != nil {
		h.fail(w, err, "failed to list recent orders", "seller_id", sellerID)
		return
	}

	h.writeJSON(w, http.StatusOK, orders)
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		h.fail(w, err, "missing order id")
		return
	}

	var req updateStatusRequest
	if err := httpx.Decode(w, r, &req); err != nil {
		h.fail(w, err, "invalid status body")
		return
	}
	if err := domain.Validate(&req); err != nil {
		h.fail(w, err, "invalid status request")
		return
	}
	next, err := domain.ParseOrderStatus(req.Status)
	if err != nil {
		h.fail(w, err, "invalid status")
		return
	}

	user, _ := auth.UserFromContext(r.Context())
	var from domain.OrderStatus
	order, err := h.store.UpdateStatus(r.Context(), id, next, func(current *domain.Order) error {
		from = current.Status
		if !canMove(user, current, next) {
			return domain.ErrForbidden
		}
		return nil
	})
	if err != nil {
		h.fail(w, err, "failed to update order status", "id", id)
		return
	}
	h.statusChanges.Add(r.Context(), 1, metric.WithAttributes(attribute.String("status", string(next))))

	h.publish(r.Context(), domain.TopicOrderStatusChanged, order.ID, domain.OrderStatusChangedEvent{
		EventID:   order.ID + ":" + string(next),
		OrderID:   order.ID,
		From:      from,
		To:        next,
		Items:     order.Items,
		Timestamp: time.Now().UTC(),
	})

	h.logger.Info("order status updated", "order_id", order.ID, "from", from, "status", order.Status)
	h.writeJSON(w, http.StatusOK, order)
}

func canView(user *domain.User, order *domain.Order) bool {
	switch user.Role {
	case domain.RoleAdmin:
		return true
	case domain.RoleSeller:
		return order.BuyerID == user.ID || order.HasArtisan(user.ID)
	case domain.RoleBuyer:
		return order.BuyerID == user.ID
	default:
		return false
	}
}

// canMove reports whether user may apply next to order. Sellers with a line
// in the order move it forward; buyers may only cancel their own.
func canMove(user *domain.User, order *domain.Order, next domain.OrderStatus) bool {
	ownCancel := order.BuyerID == user.ID && next == domain.OrderStatusCancelled
	switch user.Role {
	case domain.RoleAdmin:
		return true
	case domain.RoleSeller:
		return order.HasArtisan(user.ID) || ownCancel
	case domain.RoleBuyer:
		return ownCancel
	default:
		return false
	}
}

func (h *Handler) selfOrAdmin(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	id, err := httpx.PathID(r, name)
	if err != nil {
		h.fail(w, err, "missing path id")
		return "", false
	}

	user, _ := auth.UserFromContext(r.Context())
	if user.ID != id && user.Role != domain.RoleAdmin {
		h.writeError(w, http.StatusForbidden, "not authorized to view these orders")
		return "", false
	}
	return id, true
}

func (h *Handler) publish(ctx context.Context, topic, key string, event any) {
	if h.publisher == nil {
		return
	}
	if err := h.publisher.Publish(ctx, topic, key, event); err != nil {
		h.logger.Error("failed to publish order event", "error", err, "topic", topic, "order_id", key)
	}
}

func (h *Handler) fail(w http.ResponseWriter, err error, msg string, args ...any) {
	httpx.Fail(w, h.logger, err, "order not found", msg, args...)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	httpx.WriteJSON(w, h.logger, status, data)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	httpx.WriteError(w, h.logger, status, message)
}

package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/zaymazone/marketplace/internal/domain"
)

func (c *Client) CreateOrder(ctx context.Context, items []domain.LineRequest) (*domain.Order, error) {
	body := struct {
		Items []domain.LineRequest `json:"items"`
	}{Items: items}

	var order domain.Order
	if err := c.do(ctx, http.MethodPost, "/api/orders", nil, body, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *Client) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	var order domain.Order
	if err := c.do(ctx, http.MethodGet, "/api/orders/"+escape(id), nil, nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *Client) ListOrdersByBuyer(ctx context.Context, userID string) ([]domain.Order, error) {
	return c.listOrders(ctx, "/api/orders/user/"+escape(userID), nil)
}

func (c *Client) ListOrdersBySeller(ctx context.Context, sellerID string) ([]domain.Order, error) {
	return c.listOrders(ctx, "/api/orders/seller/"+escape(sellerID), nil)
}

// RecentOrders lists the seller's newest orders; limit <= 0 leaves the
// server default.
func (c *Client) RecentOrders(ctx context.Context, sellerID string, limit int) ([]domain.Order, error) {
	return c.listOrders(ctx, "/api/orders/recent/"+escape(sellerID), limitQuery(limit))
}

func (c *Client) UpdateOrderStatus(ctx context.Context, id string, status domain.OrderStatus) (*domain.Order, error) {
	body := map[string]domain.OrderStatus{"status": status}
	var order domain.Order
	if err := c.do(ctx, http.MethodPut, "/api/orders/"+escape(id), nil, body, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *Client) listOrders(ctx context.Context, path string, query url.Values) ([]domain.Order, error) {
	var orders []domain.Order
	if err := c.do(ctx, http.MethodGet, path, query, nil, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

type Health struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Health reports server liveness. A 503 is returned as an *APIError.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var h Health
	if err := c.do(ctx, http.MethodGet, "/api/health", nil, nil, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

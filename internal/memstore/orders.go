package memstore

import (
	"context"
	"fmt"
	"sort"

	"github.com/zaymazone/marketplace/internal/domain"
)

type OrderStore struct {
	db *DB
}

// Place checks every line against current stock before touching anything, so
// a rejected order leaves the catalog unchanged.
func (s *OrderStore) Place(_ context.Context, buyerID string, lines []domain.LineRequest) (*domain.Order, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	lines = domain.MergeLines(lines)
	items := make([]domain.OrderItem, 0, len(lines))
	for _, line := range lines {
		row, ok := s.db.products[line.ProductID]
		if !ok {
			return nil, domain.Invalid("items", "unknown product %s", line.ProductID)
		}
		if row.product.Stock < line.Quantity {
			return nil, fmt.Errorf("product %s: %w", line.ProductID, domain.ErrInsufficientStock)
		}
		items = append(items, domain.OrderItem{
			ProductID: row.product.ID,
			ArtisanID: row.product.ArtisanID,
			Name:      row.product.Name,
			Quantity:  line.Quantity,
			Price:     row.product.Price,
		})
	}

	now := s.db.now()
	for _, item := range items {
		row := s.db.products[item.ProductID]
		row.product.Stock -= item.Quantity
		row.product.UpdatedAt = now
	}

	order := domain.Order{
		ID:        newID(),
		BuyerID:   buyerID,
		Items:     items,
		Status:    domain.OrderStatusPending,
		Total:     domain.SumItems(items),
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.db.orders[order.ID] = &orderRow{order: order, seq: s.db.nextSeq()}

	out := copyOrder(&order)
	return &out, nil
}

func (s *OrderStore) GetByID(_ context.Context, id string) (*domain.Order, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	row, ok := s.db.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := copyOrder(&row.order)
	return &out, nil
}

func (s *OrderStore) ListByBuyer(_ context.Context, buyerID string) ([]domain.Order, error) {
	return s.collect(func(o *domain.Order) bool { return o.BuyerID == buyerID }, 0), nil
}

// ListBySeller returns orders with at least one line sold by sellerID, newest
// first. A limit of zero returns everything.
func (s *OrderStore) ListBySeller(_ context.Context, sellerID string, limit int) ([]domain.Order, error) {
	return s.collect(func(o *domain.Order) bool { return o.HasArtisan(sellerID) }, limit), nil
}

// UpdateStatus runs check against the current order, validates the move and
// applies it. Cancelling returns the line quantities to stock.
func (s *OrderStore) UpdateStatus(_ context.Context, id string, next domain.OrderStatus, check func(*domain.Order) error) (*domain.Order, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	row, ok := s.db.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}

	current := copyOrder(&row.order)
	if check != nil {
		if err := check(&current); err != nil {
			return nil, err
		}
	}
	if err := row.order.Status.CheckTransition(next); err != nil {
		return nil, err
	}

	now := s.db.now()
	if next == domain.OrderStatusCancelled {
		for _, item := range row.order.Items {
			if product, ok := s.db.products[item.ProductID]; ok {
				product.product.Stock += item.Quantity
				product.product.UpdatedAt = now
			}
		}
	}

	row.order.Status = next
	row.order.UpdatedAt = now
	out := copyOrder(&row.order)
	return &out, nil
}

func (s *OrderStore) collect(match func(*domain.Order) bool, limit int) []domain.Order {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	rows := []*orderRow{}
	for _, row := range s.db.orders {
		if match(&row.order) {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if !a.order.CreatedAt.Equal(b.order.CreatedAt) {
			return a.order.CreatedAt.After(b.order.CreatedAt)
		}
		return a.seq > b.seq
	})
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}

	orders := make([]domain.Order, 0, len(rows))
	for _, row := range rows {
		orders = append(orders, copyOrder(&row.order))
	}
	return orders
}

func copyOrder(o *domain.Order) domain.Order {
	out := *o
	out.Items = make([]domain.OrderItem, len(o.Items))
	copy(out.Items, o.Items)
	return out
}

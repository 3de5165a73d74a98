package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/zaymazone/marketplace/internal/domain"
)

const selectOrders = `
	SELECT o.id, o.buyer_id, o.status, o.total, o.created_at, o.updated_at
	FROM orders o
`

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

type lockedProduct struct {
	artisanID string
	name      string
	price     decimal.Decimal
	stock     int
}

// Place prices the lines from the catalog, decrements stock and inserts the
// order in one transaction. Product rows are locked in id order.
func (r *OrderRepository) Place(ctx context.Context, buyerID string, lines []domain.LineRequest) (*domain.Order, error) {
	lines = domain.MergeLines(lines)
	ids := make([]string, 0, len(lines))
	for _, line := range lines {
		if _, err := uuid.Parse(line.ProductID); err != nil {
			return nil, domain.Invalid("items", "unknown product %s", line.ProductID)
		}
		ids = append(ids, line.ProductID)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin order tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `
		SELECT id, artisan_id, name, price, stock
		FROM products
		WHERE id = ANY($1::uuid[])
		ORDER BY id
		FOR UPDATE
	`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("lock products: %w", err)
	}

	locked := make(map[string]lockedProduct, len(ids))
	for rows.Next() {
		var id string
		var p lockedProduct
		if err := rows.Scan(&id, &p.artisanID, &p.name, &p.price, &p.stock); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan locked product: %w", err)
		}
		locked[id] = p
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("iterate locked products: %w", err)
	}
	_ = rows.Close()

	items := make([]domain.OrderItem, 0, len(lines))
	for _, line := range lines {
		p, ok := locked[line.ProductID]
		if !ok {
			return nil, domain.Invalid("items", "unknown product %s", line.ProductID)
		}
		if p.stock < line.Quantity {
			return nil, fmt.Errorf("product %s: %w", line.ProductID, domain.ErrInsufficientStock)
		}
		items = append(items, domain.OrderItem{
			ProductID: line.ProductID,
			ArtisanID: p.artisanID,
			Name:      p.name,
			Quantity:  line.Quantity,
			Price:     p.price,
		})
	}

	for _, item := range items {
		_, err := tx.ExecContext(ctx, `
			UPDATE products SET stock = stock - $2, updated_at = NOW()
			WHERE id = $1
		`, item.ProductID, item.Quantity)
		if err != nil {
			return nil, fmt.Errorf("decrement stock for %s: %w", item.ProductID, err)
		}
	}

	now := time.Now().UTC()
	order := &domain.Order{
		ID:        uuid.New().String(),
		BuyerID:   buyerID,
		Items:     items,
		Status:    domain.OrderStatusPending,
		Total:     domain.SumItems(items),
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, buyer_id, status, total, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
	`, order.ID, order.BuyerID, string(order.Status), order.Total, now)
	if err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}

	for i, item := range order.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, position, product_id, artisan_id, name, quantity, price)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, order.ID, i, item.ProductID, item.ArtisanID, item.Name, item.Quantity, item.Price)
		if err != nil {
			return nil, fmt.Errorf("insert order item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit order: %w", err)
	}
	return order, nil
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrNotFound
	}

	orders, err := r.list(ctx, r.db, selectOrders+"WHERE o.id = $1", id)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, domain.ErrNotFound
	}
	return &orders[0], nil
}

func (r *OrderRepository) ListByBuyer(ctx context.Context, buyerID string) ([]domain.Order, error) {
	if _, err := uuid.Parse(buyerID); err != nil {
		return []domain.Order{}, nil
	}
	return r.list(ctx, r.db, selectOrders+`WHERE o.buyer_id = $1
		ORDER BY o.created_at DESC, o.id DESC`, buyerID)
}

// ListBySeller uses the order_items artisan index. A limit of zero returns
// every matching order.
func (r *OrderRepository) ListBySeller(ctx context.Context, sellerID string, limit int) ([]domain.Order, error) {
	if _, err := uuid.Parse(sellerID); err != nil {
		return []domain.Order{}, nil
	}

	var limitArg sql.NullInt64
	if limit > 0 {
		limitArg = sql.NullInt64{Int64: int64(limit), Valid: true}
	}

	return r.list(ctx, r.db, selectOrders+`WHERE EXISTS (
			SELECT 1 FROM order_items i WHERE i.order_id = o.id AND i.artisan_id = $1
		)
		ORDER BY o.created_at DESC, o.id DESC
		LIMIT $2`, sellerID, limitArg)
}

// UpdateStatus locks the order row, runs check, validates the transition and
// applies it. Cancelling returns the line quantities to stock in the same
// transaction.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, next domain.OrderStatus, check func(*domain.Order) error) (*domain.Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrNotFound
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin status tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	orders, err := r.list(ctx, tx, selectOrders+"WHERE o.id = $1\nFOR UPDATE", id)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, domain.ErrNotFound
	}
	order := &orders[0]

	if check != nil {
		if err := check(order); err != nil {
			return nil, err
		}
	}
	if err := order.Status.CheckTransition(next); err != nil {
		return nil, err
	}

	if next == domain.OrderStatusCancelled {
		restock := make([]domain.OrderItem, len(order.Items))
		copy(restock, order.Items)
		sort.Slice(restock, func(i, j int) bool { return restock[i].ProductID < restock[j].ProductID })

		for _, item := range restock {
			_, err := tx.ExecContext(ctx, `
				UPDATE products SET stock = stock + $2, updated_at = NOW()
				WHERE id = $1
			`, item.ProductID, item.Quantity)
			if err != nil {
				return nil, fmt.Errorf("restock %s: %w", item.ProductID, err)
			}
		}
	}

	err = tx.QueryRowContext(ctx, `
		UPDATE orders SET status = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`, id, string(next)).Scan(&order.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}
	order.Status = next

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit status change: %w", err)
	}
	return order, nil
}

// list runs an order query and attaches line items with a single follow-up
// query.
func (r *OrderRepository) list(ctx context.Context, q querier, query string, args ...any) ([]domain.Order, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}

	orderMap := make(map[string]*domain.Order)
	var orderIDs []string
	var orders []*domain.Order

	for rows.Next() {
		order := &domain.Order{Items: []domain.OrderItem{}}
		if err := rows.Scan(&order.ID, &order.BuyerID, &order.Status, &order.Total, &order.CreatedAt, &order.UpdatedAt); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orderMap[order.ID] = order
		orderIDs = append(orderIDs, order.ID)
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("iterate orders: %w", err)
	}
	_ = rows.Close()

	if len(orderIDs) == 0 {
		return []domain.Order{}, nil
	}

	itemRows, err := q.QueryContext(ctx, `
		SELECT order_id, product_id, artisan_id, name, quantity, price
		FROM order_items
		WHERE order_id = ANY($1::uuid[])
		ORDER BY order_id, position
	`, pq.Array(orderIDs))
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer func() { _ = itemRows.Close() }()

	for itemRows.Next() {
		var orderID string
		var item domain.OrderItem
		if err := itemRows.Scan(&orderID, &item.ProductID, &item.ArtisanID, &item.Name, &item.Quantity, &item.Price); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		order, ok := orderMap[orderID]
		if !ok {
			return nil, errors.New("order item references an unknown order")
		}
		order.Items = append(order.Items, item)
	}
	if err := itemRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w", err)
	}

	out := make([]domain.Order, 0, len(orders))
	for _, order := range orders {
		out = append(out, *order)
	}
	return out, nil
}

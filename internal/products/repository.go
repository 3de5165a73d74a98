package products

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/zaymazone/marketplace/internal/domain"
)

const selectProducts = `
	SELECT p.id, p.name, p.price, p.images, p.rating, p.reviews, p.category,
		p.description, p.features, p.stock, p.artisan_id, p.created_at, p.updated_at,
		u.name, u.location, u.avatar, u.total_sales, u.rating
	FROM products p
	JOIN users u ON u.id = p.artisan_id
`

type ProductRepository struct {
	db *sql.DB
}

func NewProductRepository(db *sql.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

func (r *ProductRepository) List(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	var (
		conds []string
		args  []any
	)
	where := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter.Category != "" {
		where("p.category = $%d", string(filter.Category))
	}
	if filter.MinPrice != nil {
		where("p.price >= $%d", *filter.MinPrice)
	}
	if filter.MaxPrice != nil {
		where("p.price <= $%d", *filter.MaxPrice)
	}
	if filter.MinRating != nil {
		where("p.rating >= $%d", *filter.MinRating)
	}
	if filter.Search != "" {
		where("p.search @@ plainto_tsquery('english', $%d)", filter.Search)
	}

	query := selectProducts
	if len(conds) > 0 {
		query += "WHERE " + strings.Join(conds, " AND ") + "\n"
	}
	query += "ORDER BY " + orderBy(filter.Sort)

	return r.query(ctx, query, args...)
}

func orderBy(key domain.SortKey) string {
	switch key {
	case domain.SortPriceLowHigh:
		return "p.price ASC, p.id ASC"
	case domain.SortPriceHighLow:
		return "p.price DESC, p.id ASC"
	case domain.SortRating:
		return "p.rating DESC, p.id ASC"
	default:
		return "p.created_at DESC, p.id ASC"
	}
}

func (r *ProductRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrNotFound
	}

	product, err := scanProduct(r.db.QueryRowContext(ctx, selectProducts+"WHERE p.id = $1", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get product %s: %w", id, err)
	}
	return product, nil
}

func (r *ProductRepository) ListByArtisan(ctx context.Context, artisanID string) ([]domain.Product, error) {
	if _, err := uuid.Parse(artisanID); err != nil {
		return []domain.Product{}, nil
	}
	return r.query(ctx, selectProducts+"WHERE p.artisan_id = $1\nORDER BY p.created_at DESC, p.id ASC", artisanID)
}

func (r *ProductRepository) Create(ctx context.Context, product *domain.Product) error {
	if _, err := uuid.Parse(product.ArtisanID); err != nil {
		return domain.Invalid("artisanId", "unknown artisan")
	}

	product.ID = uuid.New().String()
	now := time.Now().UTC()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO products (id, artisan_id, name, description, price, images, features,
			category, rating, reviews, stock, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)
	`, product.ID, product.ArtisanID, product.Name, product.Description, product.Price,
		pq.Array(nonNil(product.Images)), pq.Array(nonNil(product.Features)),
		string(product.Category), product.Rating, product.Reviews, product.Stock, now)
	if err != nil {
		if isViolation(err, "foreign_key_violation") {
			return domain.Invalid("artisanId", "unknown artisan")
		}
		return fmt.Errorf("insert product: %w", err)
	}

	return r.reload(ctx, product)
}

func (r *ProductRepository) Update(ctx context.Context, product *domain.Product) error {
	if _, err := uuid.Parse(product.ID); err != nil {
		return domain.ErrNotFound
	}
	if _, err := uuid.Parse(product.ArtisanID); err != nil {
		return domain.Invalid("artisanId", "unknown artisan")
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE products
		SET artisan_id = $2, name = $3, description = $4, price = $5, images = $6,
			features = $7, category = $8, rating = $9, reviews = $10, stock = $11,
			updated_at = NOW()
		WHERE id = $1
	`, product.ID, product.ArtisanID, product.Name, product.Description, product.Price,
		pq.Array(nonNil(product.Images)), pq.Array(nonNil(product.Features)),
		string(product.Category), product.Rating, product.Reviews, product.Stock)
	if err != nil {
		if isViolation(err, "foreign_key_violation") {
			return domain.Invalid("artisanId", "unknown artisan")
		}
		return fmt.Errorf("update product %s: %w", product.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update product %s: %w", product.ID, err)
	}
	if rowsAffected == 0 {
		return domain.ErrNotFound
	}

	return r.reload(ctx, product)
}

func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return domain.ErrNotFound
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete product %s: %w", id, err)
	}
	if rowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *ProductRepository) reload(ctx context.Context, product *domain.Product) error {
	stored, err := r.GetByID(ctx, product.ID)
	if err != nil {
		return err
	}
	*product = *stored
	return nil
}

func (r *ProductRepository) query(ctx context.Context, query string, args ...any) ([]domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer func() { _ = rows.Close() }()

	products := []domain.Product{}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, *product)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}

	return products, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProduct(row scanner) (*domain.Product, error) {
	var p domain.Product
	err := row.Scan(
		&p.ID, &p.Name, &p.Price, pq.Array(&p.Images), &p.Rating, &p.Reviews, &p.Category,
		&p.Description, pq.Array(&p.Features), &p.Stock, &p.ArtisanID, &p.CreatedAt, &p.UpdatedAt,
		&p.Artisan.Name, &p.Artisan.Location, &p.Artisan.Avatar, &p.Artisan.TotalSales, &p.Artisan.Rating,
	)
	if err != nil {
		return nil, err
	}
	p.Images = nonNil(p.Images)
	p.Features = nonNil(p.Features)
	return &p, nil
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

func isViolation(err error, name string) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code.Name() == name
}

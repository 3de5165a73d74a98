package memstore

import (
	"context"

	"github.com/zaymazone/marketplace/internal/domain"
)

type ProductStore struct {
	db *DB
}

func (s *ProductStore) List(_ context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	products := []domain.Product{}
	for _, row := range s.db.products {
		if filter.Matches(&row.product) {
			products = append(products, s.read(row))
		}
	}
	domain.SortProducts(products, filter.Sort)
	return products, nil
}

func (s *ProductStore) GetByID(_ context.Context, id string) (*domain.Product, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	row, ok := s.db.products[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	product := s.read(row)
	return &product, nil
}

func (s *ProductStore) ListByArtisan(_ context.Context, artisanID string) ([]domain.Product, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	products := []domain.Product{}
	for _, row := range s.db.products {
		if row.product.ArtisanID == artisanID {
			products = append(products, s.read(row))
		}
	}
	domain.SortProducts(products, domain.SortNewest)
	return products, nil
}

func (s *ProductStore) Create(_ context.Context, product *domain.Product) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if _, ok := s.db.users[product.ArtisanID]; !ok {
		return domain.Invalid("artisanId", "unknown artisan")
	}

	now := s.db.now()
	product.ID = newID()
	product.CreatedAt = now
	product.UpdatedAt = now
	row := &productRow{product: copyProduct(product)}
	s.db.products[product.ID] = row
	*product = s.read(row)
	return nil
}

func (s *ProductStore) Update(_ context.Context, product *domain.Product) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	row, ok := s.db.products[product.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if _, ok := s.db.users[product.ArtisanID]; !ok {
		return domain.Invalid("artisanId", "unknown artisan")
	}

	updated := copyProduct(product)
	updated.CreatedAt = row.product.CreatedAt
	updated.UpdatedAt = s.db.now()
	row.product = updated
	*product = s.read(row)
	return nil
}

func (s *ProductStore) Delete(_ context.Context, id string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if _, ok := s.db.products[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.db.products, id)
	return nil
}

// read returns a detached copy with the artisan summary filled from the
// owning user. Callers hold the lock.
func (s *ProductStore) read(row *productRow) domain.Product {
	product := copyProduct(&row.product)
	product.Artisan = domain.ArtisanSummary{}
	if user, ok := s.db.users[product.ArtisanID]; ok {
		product.Artisan = domain.ArtisanSummary{
			Name:       user.Name,
			Location:   user.Location,
			Avatar:     user.Avatar,
			TotalSales: user.TotalSales,
			Rating:     user.Rating,
		}
	}
	return product
}

func copyProduct(p *domain.Product) domain.Product {
	out := *p
	out.Images = cloneStrings(p.Images)
	out.Features = cloneStrings(p.Features)
	return out
}

package products

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/zaymazone/marketplace/internal/auth"
	"github.com/zaymazone/marketplace/internal/domain"
	"github.com/zaymazone/marketplace/internal/httpx"
)

// Store is the product persistence used by Handler. ProductRepository and
// memstore.ProductStore both satisfy it.
type Store interface {
	List(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error)
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	ListByArtisan(ctx context.Context, artisanID string) ([]domain.Product, error)
	Create(ctx context.Context, product *domain.Product) error
	Update(ctx context.Context, product *domain.Product) error
	Delete(ctx context.Context, id string) error
}

type Handler struct {
	store  Store
	logger *slog.Logger
}

func NewHandler(store Store, logger *slog.Logger) *Handler {
	return &Handler{
		store:  store,
		logger: logger,
	}
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r.URL.Query())
	if err != nil {
		h.fail(w, err, "failed to parse product filter")
		return
	}

	products, err := h.store.List(r.Context(), filter)
	if err != nil {
		h.fail(w, err, "failed to list products")
		return
	}

	h.logger.Info("products listed", "count", len(products), "sort", filter.Sort)
	h.writeJSON(w, http.StatusOK, products)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		h.fail(w, err, "missing product id")
		return
	}

	product, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		h.fail(w, err, "failed to get product", "id", id)
		return
	}

	h.writeJSON(w, http.StatusOK, product)
}

func (h *Handler) HandleListByArtisan(w http.ResponseWriter, r *http.Request) {
	artisanID, err := httpx.PathID(r, "artisanId")
	if err != nil {
		h.fail(w, err, "missing artisan id")
		return
	}

	products, err := h.store.ListByArtisan(r.Context(), artisanID)
	if err != nil {
		h.fail(w, err, "failed to list artisan products", "artisan_id", artisanID)
		return
	}

	h.logger.Info("artisan products listed", "artisan_id", artisanID, "count", len(products))
	h.writeJSON(w, http.StatusOK, products)
}

// HandleCreate lists a new product for the caller. Admins may list on behalf
// of another seller by naming artisanId.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	var in productInput
	if err := httpx.Decode(w, r, &in); err != nil {
		h.fail(w, err, "invalid product body")
		return
	}

	product := domain.Product{Images: []string{}, Features: []string{}}
	in.apply(&product)
	product.ArtisanID = user.ID
	if user.Role == domain.RoleAdmin && in.ArtisanID != nil {
		product.ArtisanID = *in.ArtisanID
	}

	if err := domain.Validate(&product); err != nil {
		h.fail(w, err, "invalid product")
		return
	}

	if err := h.store.Create(r.Context(), &product); err != nil {
		h.fail(w, err, "failed to create product")
		return
	}

	h.logger.Info("product created", "product_id", product.ID, "artisan_id", product.ArtisanID)
	h.writeJSON(w, http.StatusCreated, product)
}

// HandleUpdate merges the request body over the stored product. Absent fields
// keep their current value.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	product, ok := h.loadOwned(w, r)
	if !ok {
		return
	}
	user, _ := auth.UserFromContext(r.Context())

	var in productInput
	if err := httpx.Decode(w, r, &in); err != nil {
		h.fail(w, err, "invalid product body")
		return
	}

	in.apply(product)
	if user.Role == domain.RoleAdmin && in.ArtisanID != nil {
		product.ArtisanID = *in.ArtisanID
	}

	if err := domain.Validate(product); err != nil {
		h.fail(w, err, "invalid product")
		return
	}

	if err := h.store.Update(r.Context(), product); err != nil {
		h.fail(w, err, "failed to update product", "id", product.ID)
		return
	}

	h.logger.Info("product updated", "product_id", product.ID)
	h.writeJSON(w, http.StatusOK, product)
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	product, ok := h.loadOwned(w, r)
	if !ok {
		return
	}

	if err := h.store.Delete(r.Context(), product.ID); err != nil {
		h.fail(w, err, "failed to delete product", "id", product.ID)
		return
	}

	h.logger.Info("product deleted", "product_id", product.ID)
	h.writeJSON(w, http.StatusOK, map[string]string{"message": "product removed"})
}

// loadOwned fetches the product named in the path and checks that the caller
// is its artisan or an admin.
func (h *Handler) loadOwned(w http.ResponseWriter, r *http.Request) (*domain.Product, bool) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		h.fail(w, err, "missing product id")
		return nil, false
	}

	product, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		h.fail(w, err, "failed to get product", "id", id)
		return nil, false
	}

	user, _ := auth.UserFromContext(r.Context())
	if user.Role != domain.RoleAdmin && product.ArtisanID != user.ID {
		h.writeError(w, http.StatusForbidden, "not authorized to modify this product")
		return nil, false
	}

	return product, true
}

type productInput struct {
	Name        *string          `json:"name"`
	Price       *decimal.Decimal `json:"price"`
	Images      []string         `json:"images"`
	Rating      *float64         `json:"rating"`
	Reviews     *int             `json:"reviews"`
	Category    *domain.Category `json:"category"`
	Description *string          `json:"description"`
	Features    []string         `json:"features"`
	Stock       *int             `json:"stock"`
	ArtisanID   *string          `json:"artisanId"`
}

func (in *productInput) apply(p *domain.Product) {
	if in.Name != nil {
		p.Name = strings.TrimSpace(*in.Name)
	}
	if in.Price != nil {
		p.Price = *in.Price
	}
	if in.Images != nil {
		p.Images = in.Images
	}
	if in.Rating != nil {
		p.Rating = *in.Rating
	}
	if in.Reviews != nil {
		p.Reviews = *in.Reviews
	}
	if in.Category != nil {
		p.Category = *in.Category
	}
	if in.Description != nil {
		p.Description = *in.Description
	}
	if in.Features != nil {
		p.Features = in.Features
	}
	if in.Stock != nil {
		p.Stock = *in.Stock
	}
}

// parseFilter reads the catalog query string. Either price bound may be given
// on its own.
func parseFilter(q url.Values) (domain.ProductFilter, error) {
	filter := domain.ProductFilter{
		Search: strings.TrimSpace(q.Get("search")),
		Sort:   domain.ParseSortKey(q.Get("sortBy")),
	}

	if c := q.Get("category"); c != "" && !strings.EqualFold(c, "all") {
		category := domain.Category(c)
		if !category.Valid() {
			return filter, domain.Invalid("category", "%s is not a valid category", c)
		}
		filter.Category = category
	}

	var err error
	if filter.MinPrice, err = parsePrice(q, "minPrice"); err != nil {
		return filter, err
	}
	if filter.MaxPrice, err = parsePrice(q, "maxPrice"); err != nil {
		return filter, err
	}

	if raw := q.Get("rating"); raw != "" {
		rating, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return filter, domain.Invalid("rating", "must be a number")
		}
		filter.MinRating = &rating
	}

	return filter, nil
}

func parsePrice(q url.Values, key string) (*decimal.Decimal, error) {
	raw := q.Get(key)
	if raw == "" {
		return nil, nil
	}
	price, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, domain.Invalid(key, "must be a number")
	}
	return &price, nil
}

func (h *Handler) fail(w http.ResponseWriter, err error, msg string, args ...any) {
	httpx.Fail(w, h.logger, err, "product not found", msg, args...)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	httpx.WriteJSON(w, h.logger, status, data)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	httpx.WriteError(w, h.logger, status, message)
}

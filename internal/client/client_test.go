package client

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zaymazone/marketplace/internal/auth"
	"github.com/zaymazone/marketplace/internal/domain"
	"github.com/zaymazone/marketplace/internal/memstore"
	"github.com/zaymazone/marketplace/internal/server"
)

func newAPI(t *testing.T) *Client {
	t.Helper()
	db := memstore.New()
	tokens, err := auth.NewTokens("client-test-secret-0123", time.Hour)
	if err != nil {
		t.Fatalf("new tokens: %v", err)
	}
	handler, err := server.NewRouter(server.Deps{
		Products: db.Products(),
		Users:    db.Users(),
		Orders:   db.Orders(),
		Tokens:   tokens,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Pinger:   db,
	})
	if err != nil {
		t.Fatalf("new router: %v", err)
	}
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL, WithHTTPClient(srv.Client()))
}

func ptr[T any](v T) *T { return &v }

func TestClient_MarketplaceFlow(t *testing.T) {
	ctx := context.Background()
	api := newAPI(t)

	seller, err := api.Register(ctx, RegisterRequest{Name: "Mira", Email: "mira@example.com", Password: "secret1", Role: domain.RoleSeller, Location: "Oaxaca"})
	if err != nil {
		t.Fatalf("register seller: %v", err)
	}
	buyer, err := api.Register(ctx, RegisterRequest{Name: "Ben", Email: "ben@example.com", Password: "secret2"})
	if err != nil {
		t.Fatalf("register buyer: %v", err)
	}
	if buyer.User.Role != domain.RoleBuyer {
		t.Errorf("expected default role buyer, got %s", buyer.User.Role)
	}

	sellerAPI := api.WithToken(seller.Token)
	buyerAPI := api.WithToken(buyer.Token)

	product, err := sellerAPI.CreateProduct(ctx, ProductInput{
		Name:        ptr("Vase"),
		Price:       ptr(decimal.NewFromInt(50)),
		Images:      []string{"https://img.example.com/vase.jpg"},
		Category:    ptr(domain.CategoryHomeDecor),
		Description: ptr("Hand-thrown stoneware vase"),
		Stock:       ptr(3),
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	if product.Artisan.Name != "Mira" {
		t.Errorf("expected artisan summary Mira, got %q", product.Artisan.Name)
	}

	t.Run("catalog filters round-trip", func(t *testing.T) {
		found, err := api.ListProducts(ctx, domain.ProductFilter{Category: domain.CategoryHomeDecor, MaxPrice: ptr(decimal.NewFromInt(60)), Search: "vase"})
		if err != nil {
			t.Fatalf("list products: %v", err)
		}
		if len(found) != 1 || found[0].ID != product.ID {
			t.Errorf("expected the vase, got %+v", found)
		}

		none, err := api.ListProducts(ctx, domain.ProductFilter{MinPrice: ptr(decimal.NewFromInt(60))})
		if err != nil {
			t.Fatalf("list products: %v", err)
		}
		if len(none) != 0 {
			t.Errorf("expected no products above 60, got %d", len(none))
		}
	})

	t.Run("buyer cannot create products", func(t *testing.T) {
		_, err := buyerAPI.CreateProduct(ctx, ProductInput{Name: ptr("Nope")})
		if StatusOf(err) != http.StatusForbidden {
			t.Errorf("expected 403, got %v", err)
		}
	})

	order, err := buyerAPI.CreateOrder(ctx, []domain.LineRequest{{ProductID: product.ID, Quantity: 2}})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if !order.Total.Equal(decimal.NewFromInt(100)) {
		t.Errorf("expected total 100, got %s", order.Total)
	}

	t.Run("oversell is rejected", func(t *testing.T) {
		_, err := buyerAPI.CreateOrder(ctx, []domain.LineRequest{{ProductID: product.ID, Quantity: 2}})
		if StatusOf(err) != http.StatusConflict {
			t.Errorf("expected 409, got %v", err)
		}
	})

	t.Run("seller sees the order", func(t *testing.T) {
		recent, err := sellerAPI.RecentOrders(ctx, seller.User.ID, 1)
		if err != nil {
			t.Fatalf("recent orders: %v", err)
		}
		if len(recent) != 1 || recent[0].ID != order.ID {
			t.Errorf("expected the placed order, got %+v", recent)
		}
	})

	t.Run("status moves forward", func(t *testing.T) {
		updated, err := sellerAPI.UpdateOrderStatus(ctx, order.ID, domain.OrderStatusProcessing)
		if err != nil {
			t.Fatalf("update status: %v", err)
		}
		if updated.Status != domain.OrderStatusProcessing {
			t.Errorf("expected processing, got %s", updated.Status)
		}

		_, err = sellerAPI.UpdateOrderStatus(ctx, order.ID, domain.OrderStatusPending)
		if StatusOf(err) != http.StatusConflict {
			t.Errorf("expected 409 for backwards move, got %v", err)
		}
	})

	t.Run("buyer cancels and stock returns", func(t *testing.T) {
		if _, err := buyerAPI.UpdateOrderStatus(ctx, order.ID, domain.OrderStatusCancelled); err != nil {
			t.Fatalf("cancel: %v", err)
		}
		got, err := api.GetProduct(ctx, product.ID)
		if err != nil {
			t.Fatalf("get product: %v", err)
		}
		if got.Stock != 3 {
			t.Errorf("expected stock 3 after cancel, got %d", got.Stock)
		}
	})

	t.Run("profile and update", func(t *testing.T) {
		me, err := buyerAPI.Profile(ctx)
		if err != nil {
			t.Fatalf("profile: %v", err)
		}
		if me.ID != buyer.User.ID {
			t.Errorf("expected %s, got %s", buyer.User.ID, me.ID)
		}

		updated, err := buyerAPI.UpdateUser(ctx, me.ID, UserUpdate{Location: ptr("Lisbon")})
		if err != nil {
			t.Fatalf("update user: %v", err)
		}
		if updated.Location != "Lisbon" {
			t.Errorf("expected Lisbon, got %q", updated.Location)
		}
	})

	t.Run("delete product", func(t *testing.T) {
		if err := sellerAPI.DeleteProduct(ctx, product.ID); err != nil {
			t.Fatalf("delete: %v", err)
		}
		_, err := api.GetProduct(ctx, product.ID)
		if StatusOf(err) != http.StatusNotFound {
			t.Errorf("expected 404, got %v", err)
		}
	})
}

func TestClient_Login(t *testing.T) {
	ctx := context.Background()
	api := newAPI(t)

	if _, err := api.Register(ctx, RegisterRequest{Name: "Ada", Email: "ada@example.com", Password: "hunter22"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	resp, err := api.Login(ctx, "ADA@example.com", "hunter22")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if resp.Token == "" || resp.User.Email != "ada@example.com" {
		t.Errorf("unexpected login response %+v", resp)
	}

	_, err = api.Login(ctx, "ada@example.com", "wrong")
	if StatusOf(err) != http.StatusUnauthorized {
		t.Errorf("expected 401, got %v", err)
	}
}

func TestClient_Health(t *testing.T) {
	h, err := newAPI(t).Health(context.Background())
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if h.Status != "ok" {
		t.Errorf("expected ok, got %q", h.Status)
	}
}

func TestClient_ErrorDecoding(t *testing.T) {
	t.Run("error body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if got := r.Header.Get("Authorization"); got != "Bearer tok" {
				t.Errorf("expected bearer header, got %q", got)
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"order not found"}`))
		}))
		defer srv.Close()

		_, err := New(srv.URL).WithToken("tok").GetOrder(context.Background(), "abc")
		apiErr, ok := err.(*APIError)
		if !ok {
			t.Fatalf("expected *APIError, got %T", err)
		}
		if apiErr.Status != http.StatusNotFound || apiErr.Message != "order not found" {
			t.Errorf("unexpected error %+v", apiErr)
		}
	})

	t.Run("empty body falls back to status text", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		_, err := New(srv.URL).ListArtisans(context.Background())
		if StatusOf(err) != http.StatusBadGateway {
			t.Fatalf("expected 502, got %v", err)
		}
		if err.Error() != "api error 502: bad gateway" {
			t.Errorf("unexpected message %q", err.Error())
		}
	})

	t.Run("transport errors carry no status", func(t *testing.T) {
		_, err := New("http://127.0.0.1:1").ListArtisans(context.Background())
		if err == nil {
			t.Fatal("expected an error")
		}
		if StatusOf(err) != 0 {
			t.Errorf("expected status 0, got %d", StatusOf(err))
		}
	})
}

func TestWithTracing_KeepsTimeout(t *testing.T) {
	c := New("http://example.com", WithTracing())
	if c.http.Timeout != 10*time.Second {
		t.Errorf("expected timeout preserved, got %s", c.http.Timeout)
	}
	if c.http.Transport == nil {
		t.Error("expected an instrumented transport")
	}
}

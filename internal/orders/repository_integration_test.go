//go:build integration

package orders

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zaymazone/marketplace/internal/domain"
	"github.com/zaymazone/marketplace/internal/testsupport"
)

func stockOf(ctx context.Context, t *testing.T, repo *OrderRepository, productID string) int {
	t.Helper()
	var stock int
	if err := repo.db.QueryRowContext(ctx, `SELECT stock FROM products WHERE id = $1`, productID).Scan(&stock); err != nil {
		t.Fatalf("failed to read stock: %v", err)
	}
	return stock
}

func TestOrderRepository_Lifecycle(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db := testsupport.SetupPostgres(ctx, t)
	repo := NewOrderRepository(db)

	seller := testsupport.SeedUser(ctx, t, db, "mira", domain.RoleSeller)
	other := testsupport.SeedUser(ctx, t, db, "otto", domain.RoleSeller)
	buyer := testsupport.SeedUser(ctx, t, db, "ben", domain.RoleBuyer)
	vase := testsupport.SeedProduct(ctx, t, db, seller.ID, "Vase", "50.00", 3)
	rug := testsupport.SeedProduct(ctx, t, db, other.ID, "Rug", "120.50", 5)

	order, err := repo.Place(ctx, buyer.ID, []domain.LineRequest{
		{ProductID: vase, Quantity: 2},
		{ProductID: rug, Quantity: 1},
	})
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	if !order.Total.Equal(decimal.RequireFromString("220.50")) {
		t.Fatalf("expected total 220.50, got %s", order.Total)
	}
	if order.Status != domain.OrderStatusPending {
		t.Fatalf("expected pending, got %s", order.Status)
	}
	if got := stockOf(ctx, t, repo, vase); got != 1 {
		t.Fatalf("expected vase stock 1, got %d", got)
	}

	t.Run("oversell leaves stock untouched", func(t *testing.T) {
		_, err := repo.Place(ctx, buyer.ID, []domain.LineRequest{
			{ProductID: rug, Quantity: 1},
			{ProductID: vase, Quantity: 2},
		})
		if !errors.Is(err, domain.ErrInsufficientStock) {
			t.Fatalf("expected ErrInsufficientStock, got %v", err)
		}
		if got := stockOf(ctx, t, repo, rug); got != 4 {
			t.Fatalf("expected rug stock 4 after rollback, got %d", got)
		}
	})

	t.Run("fetch and list", func(t *testing.T) {
		fetched, err := repo.GetByID(ctx, order.ID)
		if err != nil {
			t.Fatalf("get order: %v", err)
		}
		if len(fetched.Items) != 2 || !fetched.HasArtisan(seller.ID) || !fetched.HasArtisan(other.ID) {
			t.Fatalf("expected one line per seller, got %+v", fetched.Items)
		}

		byBuyer, err := repo.ListByBuyer(ctx, buyer.ID)
		if err != nil {
			t.Fatalf("list by buyer: %v", err)
		}
		if len(byBuyer) != 1 {
			t.Fatalf("expected 1 order for buyer, got %d", len(byBuyer))
		}

		bySeller, err := repo.ListBySeller(ctx, other.ID, 0)
		if err != nil {
			t.Fatalf("list by seller: %v", err)
		}
		if len(bySeller) != 1 || bySeller[0].ID != order.ID {
			t.Fatalf("expected the order for the rug seller, got %+v", bySeller)
		}

		if _, err := repo.GetByID(ctx, "not-a-uuid"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("check runs inside the transaction", func(t *testing.T) {
		denied := errors.New("denied")
		_, err := repo.UpdateStatus(ctx, order.ID, domain.OrderStatusProcessing, func(*domain.Order) error { return denied })
		if !errors.Is(err, denied) {
			t.Fatalf("expected check error, got %v", err)
		}
	})

	t.Run("forward then cancel restocks", func(t *testing.T) {
		if _, err := repo.UpdateStatus(ctx, order.ID, domain.OrderStatusProcessing, nil); err != nil {
			t.Fatalf("move to processing: %v", err)
		}
		if _, err := repo.UpdateStatus(ctx, order.ID, domain.OrderStatusPending, nil); !errors.Is(err, domain.ErrInvalidTransition) {
			t.Fatalf("expected ErrInvalidTransition, got %v", err)
		}

		cancelled, err := repo.UpdateStatus(ctx, order.ID, domain.OrderStatusCancelled, nil)
		if err != nil {
			t.Fatalf("cancel: %v", err)
		}
		if cancelled.Status != domain.OrderStatusCancelled {
			t.Fatalf("expected cancelled, got %s", cancelled.Status)
		}
		if got := stockOf(ctx, t, repo, vase); got != 3 {
			t.Fatalf("expected vase stock 3 after cancel, got %d", got)
		}
		if got := stockOf(ctx, t, repo, rug); got != 5 {
			t.Fatalf("expected rug stock 5 after cancel, got %d", got)
		}

		if _, err := repo.UpdateStatus(ctx, order.ID, domain.OrderStatusShipped, nil); !errors.Is(err, domain.ErrInvalidTransition) {
			t.Fatalf("expected terminal state to reject moves, got %v", err)
		}
	})
}

func TestOrderRepository_ConcurrentCheckoutNeverOversells(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db := testsupport.SetupPostgres(ctx, t)
	repo := NewOrderRepository(db)

	seller := testsupport.SeedUser(ctx, t, db, "mira", domain.RoleSeller)
	buyer := testsupport.SeedUser(ctx, t, db, "ben", domain.RoleBuyer)
	bowl := testsupport.SeedProduct(ctx, t, db, seller.ID, "Bowl", "18.00", 3)

	const buyers = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for range buyers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Place(ctx, buyer.ID, []domain.LineRequest{{ProductID: bowl, Quantity: 1}})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			if !errors.Is(err, domain.ErrInsufficientStock) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != 3 {
		t.Fatalf("expected exactly 3 successful orders, got %d", succeeded)
	}
	if got := stockOf(ctx, t, repo, bowl); got != 0 {
		t.Fatalf("expected stock 0, got %d", got)
	}
}

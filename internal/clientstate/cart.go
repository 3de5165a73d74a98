package clientstate

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/zaymazone/marketplace/internal/domain"
)

// CartItem is a snapshot of a product taken when it was put in the cart.
type CartItem struct {
	ProductID string          `json:"productId"`
	ArtisanID string          `json:"artisanId"`
	Name      string          `json:"name"`
	Image     string          `json:"image,omitempty"`
	Price     decimal.Decimal `json:"price"`
	Stock     int             `json:"stock"`
	Quantity  int             `json:"quantity"`
}

func (i CartItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// CartState always satisfies Total = sum(price x quantity) and
// Count = sum(quantity) over Items.
type CartState struct {
	Items []CartItem      `json:"items"`
	Total decimal.Decimal `json:"total"`
	Count int             `json:"count"`
}

// CartAction is one of AddToCart, RemoveFromCart, SetCartQuantity, ClearCart
// or SettleCart.
type CartAction interface {
	cartAction()
}

type AddToCart struct {
	Product  domain.Product
	Quantity int
}

type RemoveFromCart struct {
	ProductID string
}

// SetCartQuantity removes the item when Quantity <= 0.
type SetCartQuantity struct {
	ProductID string
	Quantity  int
}

type ClearCart struct{}

// SettleCart takes the quantities of a placed order out of the cart. Items
// added after the order was submitted stay.
type SettleCart struct {
	Lines []domain.LineRequest
}

func (AddToCart) cartAction()       {}
func (RemoveFromCart) cartAction()  {}
func (SetCartQuantity) cartAction() {}
func (ClearCart) cartAction()       {}
func (SettleCart) cartAction()      {}

// ReduceCart returns the state after applying action. The input state is not
// modified. Quantities are capped at the item's known stock when that stock
// is positive; the server still rejects any oversell at checkout.
func ReduceCart(state CartState, action CartAction) CartState {
	items := slices.Clone(state.Items)

	switch a := action.(type) {
	case AddToCart:
		if a.Quantity < 1 {
			return state
		}
		snapshot := itemFrom(a.Product)
		if i := indexOf(items, a.Product.ID); i >= 0 {
			snapshot.Quantity = items[i].Quantity + a.Quantity
			items[i] = clamp(snapshot)
		} else {
			snapshot.Quantity = a.Quantity
			items = append(items, clamp(snapshot))
		}

	case RemoveFromCart:
		items = slices.DeleteFunc(items, func(it CartItem) bool { return it.ProductID == a.ProductID })

	case SetCartQuantity:
		i := indexOf(items, a.ProductID)
		if i < 0 {
			return state
		}
		if a.Quantity <= 0 {
			items = slices.Delete(items, i, i+1)
			break
		}
		items[i].Quantity = a.Quantity
		items[i] = clamp(items[i])

	case ClearCart:
		items = nil

	case SettleCart:
		for _, line := range a.Lines {
			if i := indexOf(items, line.ProductID); i >= 0 {
				items[i].Quantity -= line.Quantity
			}
		}
		items = slices.DeleteFunc(items, func(it CartItem) bool { return it.Quantity <= 0 })
	}

	return totals(items)
}

func itemFrom(p domain.Product) CartItem {
	item := CartItem{
		ProductID: p.ID,
		ArtisanID: p.ArtisanID,
		Name:      p.Name,
		Price:     p.Price,
		Stock:     p.Stock,
	}
	if len(p.Images) > 0 {
		item.Image = p.Images[0]
	}
	return item
}

func clamp(item CartItem) CartItem {
	if item.Stock > 0 && item.Quantity > item.Stock {
		item.Quantity = item.Stock
	}
	return item
}

func indexOf(items []CartItem, productID string) int {
	return slices.IndexFunc(items, func(it CartItem) bool { return it.ProductID == productID })
}

func totals(items []CartItem) CartState {
	state := CartState{Items: items, Total: decimal.Zero}
	for _, it := range items {
		state.Total = state.Total.Add(it.LineTotal())
		state.Count += it.Quantity
	}
	return state
}

var (
	freeShippingOver = decimal.NewFromInt(75)
	flatShipping     = decimal.RequireFromString("9.99")
	taxRate          = decimal.RequireFromString("0.08")
)

// Quote is the checkout breakdown shown before an order is placed.
type Quote struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Shipping decimal.Decimal `json:"shipping"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
}

// QuoteFor prices a cart: shipping is free above 75.00 and 9.99 otherwise,
// tax is 8% of the subtotal. An empty cart costs nothing.
func QuoteFor(state CartState) Quote {
	q := Quote{Subtotal: state.Total, Shipping: decimal.Zero, Tax: decimal.Zero}
	if len(state.Items) == 0 {
		q.Total = decimal.Zero
		return q
	}
	if !q.Subtotal.GreaterThan(freeShippingOver) {
		q.Shipping = flatShipping
	}
	q.Tax = q.Subtotal.Mul(taxRate).Round(2)
	q.Total = q.Subtotal.Add(q.Shipping).Add(q.Tax)
	return q
}

// OrderLines converts the cart into the body of an order request.
func OrderLines(state CartState) []domain.LineRequest {
	lines := make([]domain.LineRequest, 0, len(state.Items))
	for _, it := range state.Items {
		lines = append(lines, domain.LineRequest{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return lines
}

var ErrEmptyCart = errors.New("cart is empty")

// OrderAPI places orders; *client.Client satisfies it.
type OrderAPI interface {
	CreateOrder(ctx context.Context, items []domain.LineRequest) (*domain.Order, error)
}

// Cart is the persisted cart container. It is safe for concurrent use.
type Cart struct {
	mu    sync.Mutex
	store Persister
	state CartState
}

// NewCart restores the cart saved in store, if any.
func NewCart(store Persister) (*Cart, error) {
	var saved CartState
	if err := load(store, KeyCart, &saved); err != nil {
		return nil, err
	}
	return &Cart{store: store, state: totals(saved.Items)}, nil
}

// Dispatch applies action and persists the result. On a persistence error
// the in-memory state is left unchanged.
func (c *Cart) Dispatch(action CartAction) (CartState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := ReduceCart(c.state, action)
	if err := save(c.store, KeyCart, next); err != nil {
		return c.snapshot(), err
	}
	c.state = next
	return c.snapshot(), nil
}

func (c *Cart) Add(product domain.Product, quantity int) (CartState, error) {
	return c.Dispatch(AddToCart{Product: product, Quantity: quantity})
}

func (c *Cart) Remove(productID string) (CartState, error) {
	return c.Dispatch(RemoveFromCart{ProductID: productID})
}

func (c *Cart) SetQuantity(productID string, quantity int) (CartState, error) {
	return c.Dispatch(SetCartQuantity{ProductID: productID, Quantity: quantity})
}

func (c *Cart) Clear() (CartState, error) {
	return c.Dispatch(ClearCart{})
}

func (c *Cart) State() CartState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot()
}

func (c *Cart) Quote() Quote {
	return QuoteFor(c.State())
}

// Checkout places an order for the current contents and, once the server
// accepts it, removes exactly the ordered quantities from the cart.
func (c *Cart) Checkout(ctx context.Context, api OrderAPI) (*domain.Order, error) {
	state := c.State()
	if len(state.Items) == 0 {
		return nil, ErrEmptyCart
	}

	lines := OrderLines(state)
	order, err := api.CreateOrder(ctx, lines)
	if err != nil {
		return nil, fmt.Errorf("place order: %w", err)
	}
	if _, err := c.Dispatch(SettleCart{Lines: lines}); err != nil {
		return order, fmt.Errorf("order %s placed but cart not cleared: %w", order.ID, err)
	}
	return order, nil
}

func (c *Cart) snapshot() CartState {
	s := c.state
	s.Items = slices.Clone(s.Items)
	return s
}

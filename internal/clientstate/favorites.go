package clientstate

import (
	"slices"
	"sync"

	"github.com/zaymazone/marketplace/internal/domain"
)

// FavoritesState lists saved products in the order they were added.
type FavoritesState struct {
	Items []domain.Product `json:"items"`
}

func (s FavoritesState) Contains(productID string) bool {
	return slices.ContainsFunc(s.Items, func(p domain.Product) bool { return p.ID == productID })
}

// FavoritesAction is one of AddFavorite, RemoveFavorite or ToggleFavorite.
type FavoritesAction interface {
	favoritesAction()
}

type AddFavorite struct {
	Product domain.Product
}

type RemoveFavorite struct {
	ProductID string
}

type ToggleFavorite struct {
	Product domain.Product
}

func (AddFavorite) favoritesAction()    {}
func (RemoveFavorite) favoritesAction() {}
func (ToggleFavorite) favoritesAction() {}

// ReduceFavorites returns the state after applying action without modifying
// the input. Adding an existing favorite is a no-op.
func ReduceFavorites(state FavoritesState, action FavoritesAction) FavoritesState {
	switch a := action.(type) {
	case AddFavorite:
		if state.Contains(a.Product.ID) {
			return state
		}
		return FavoritesState{Items: append(slices.Clone(state.Items), a.Product)}

	case RemoveFavorite:
		return FavoritesState{Items: slices.DeleteFunc(slices.Clone(state.Items), func(p domain.Product) bool {
			return p.ID == a.ProductID
		})}

	case ToggleFavorite:
		if state.Contains(a.Product.ID) {
			return ReduceFavorites(state, RemoveFavorite{ProductID: a.Product.ID})
		}
		return ReduceFavorites(state, AddFavorite(a))
	}
	return state
}

type Favorites struct {
	mu    sync.Mutex
	store Persister
	state FavoritesState
}

func NewFavorites(store Persister) (*Favorites, error) {
	f := &Favorites{store: store}
	if err := load(store, KeyFavorites, &f.state); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *Favorites) Dispatch(action FavoritesAction) (FavoritesState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	next := ReduceFavorites(f.state, action)
	if err := save(f.store, KeyFavorites, next); err != nil {
		return f.snapshot(), err
	}
	f.state = next
	return f.snapshot(), nil
}

func (f *Favorites) Add(product domain.Product) error {
	_, err := f.Dispatch(AddFavorite{Product: product})
	return err
}

func (f *Favorites) Remove(productID string) error {
	_, err := f.Dispatch(RemoveFavorite{ProductID: productID})
	return err
}

// Toggle flips membership and reports whether the product is now a favorite.
func (f *Favorites) Toggle(product domain.Product) (bool, error) {
	state, err := f.Dispatch(ToggleFavorite{Product: product})
	if err != nil {
		return false, err
	}
	return state.Contains(product.ID), nil
}

func (f *Favorites) IsFavorite(productID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state.Contains(productID)
}

func (f *Favorites) List() []domain.Product {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshot().Items
}

func (f *Favorites) snapshot() FavoritesState {
	return FavoritesState{Items: slices.Clone(f.state.Items)}
}

// Package memstore is an in-process implementation of the product, user and
// order stores. It backs the memory driver and the handler tests.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zaymazone/marketplace/internal/domain"
)

// DB holds every collection behind one mutex so that order placement can
// touch products and orders atomically.
type DB struct {
	mu        sync.Mutex
	now       func() time.Time
	seq       int64
	users     map[string]*domain.User
	products  map[string]*productRow
	orders    map[string]*orderRow
	processed map[string]struct{}
}

type productRow struct {
	product domain.Product
}

type orderRow struct {
	order domain.Order
	seq   int64
}

type Option func(*DB)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(db *DB) {
		db.now = now
	}
}

func New(opts ...Option) *DB {
	db := &DB{
		now:       func() time.Time { return time.Now().UTC() },
		users:     make(map[string]*domain.User),
		products:  make(map[string]*productRow),
		orders:    make(map[string]*orderRow),
		processed: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(db)
	}
	return db
}

func (db *DB) Products() *ProductStore { return &ProductStore{db: db} }
func (db *DB) Users() *UserStore       { return &UserStore{db: db} }
func (db *DB) Orders() *OrderStore     { return &OrderStore{db: db} }

// PingContext always succeeds.
func (db *DB) PingContext(context.Context) error { return nil }

func (db *DB) nextSeq() int64 {
	db.seq++
	return db.seq
}

func newID() string {
	return uuid.New().String()
}

func cloneStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

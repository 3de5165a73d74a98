package memstore

import (
	"context"
	"sort"
	"strings"

	"github.com/zaymazone/marketplace/internal/domain"
)

type UserStore struct {
	db *DB
}

func (s *UserStore) Create(_ context.Context, user *domain.User) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if s.emailTaken(user.Email, "") {
		return domain.ErrDuplicateEmail
	}

	now := s.db.now()
	user.ID = newID()
	user.CreatedAt = now
	user.UpdatedAt = now
	stored := *user
	s.db.users[user.ID] = &stored
	return nil
}

func (s *UserStore) GetByID(_ context.Context, id string) (*domain.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	user, ok := s.db.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := *user
	return &out, nil
}

func (s *UserStore) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	for _, user := range s.db.users {
		if strings.EqualFold(user.Email, email) {
			out := *user
			return &out, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *UserStore) Update(_ context.Context, user *domain.User) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	stored, ok := s.db.users[user.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if s.emailTaken(user.Email, user.ID) {
		return domain.ErrDuplicateEmail
	}

	stored.Name = user.Name
	stored.Email = user.Email
	stored.PasswordHash = user.PasswordHash
	stored.Avatar = user.Avatar
	stored.Location = user.Location
	stored.UpdatedAt = s.db.now()
	*user = *stored
	return nil
}

func (s *UserStore) ListSellers(_ context.Context) ([]domain.User, error) {
	sellers := s.sellers()
	sort.SliceStable(sellers, func(i, j int) bool {
		if sellers[i].Name != sellers[j].Name {
			return sellers[i].Name < sellers[j].Name
		}
		return sellers[i].ID < sellers[j].ID
	})
	return sellers, nil
}

func (s *UserStore) TopSellers(_ context.Context, limit int) ([]domain.User, error) {
	sellers := s.sellers()
	sort.SliceStable(sellers, func(i, j int) bool {
		a, b := sellers[i], sellers[j]
		if a.Rating != b.Rating {
			return a.Rating > b.Rating
		}
		if a.TotalSales != b.TotalSales {
			return a.TotalSales > b.TotalSales
		}
		return a.ID < b.ID
	})
	if limit > 0 && len(sellers) > limit {
		sellers = sellers[:limit]
	}
	return sellers, nil
}

// ApplySales adds deltas to artisan sales counters once per eventID. Counters
// never drop below zero.
func (s *UserStore) ApplySales(_ context.Context, eventID string, deltas map[string]int) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if _, done := s.db.processed[eventID]; done {
		return nil
	}
	for id, delta := range deltas {
		user, ok := s.db.users[id]
		if !ok {
			continue
		}
		user.TotalSales = max(user.TotalSales+delta, 0)
	}
	s.db.processed[eventID] = struct{}{}
	return nil
}

func (s *UserStore) sellers() []domain.User {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	sellers := []domain.User{}
	for _, user := range s.db.users {
		if user.Role == domain.RoleSeller {
			sellers = append(sellers, *user)
		}
	}
	return sellers
}

func (s *UserStore) emailTaken(email, exceptID string) bool {
	for id, user := range s.db.users {
		if id != exceptID && strings.EqualFold(user.Email, email) {
			return true
		}
	}
	return false
}

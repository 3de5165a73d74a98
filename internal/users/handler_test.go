package users

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/zaymazone/marketplace/internal/auth"
	"github.com/zaymazone/marketplace/internal/domain"
	"github.com/zaymazone/marketplace/internal/memstore"
)

func newTestHandler(t *testing.T) (*Handler, *auth.Tokens) {
	t.Helper()
	tokens, err := auth.NewTokens("users-test-secret-0123", time.Hour)
	if err != nil {
		t.Fatalf("new tokens: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewHandler(memstore.New().Users(), tokens, logger), tokens
}

func call(h http.HandlerFunc, method string, user *domain.User, body any, pathValues ...string) *httptest.ResponseRecorder {
	var reader io.Reader = http.NoBody
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, "/", reader)
	if user != nil {
		req = req.WithContext(auth.WithUser(req.Context(), user))
	}
	for i := 0; i+1 < len(pathValues); i += 2 {
		req.SetPathValue(pathValues[i], pathValues[i+1])
	}
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func register(t *testing.T, h *Handler, body map[string]any) AuthResponse {
	t.Helper()
	rec := call(h.HandleRegister, http.MethodPost, nil, body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp AuthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode auth response: %v", err)
	}
	return resp
}

func TestRegisterAndLogin(t *testing.T) {
	h, tokens := newTestHandler(t)

	resp := register(t, h, map[string]any{
		"name": "Ana", "email": "ana@example.com", "password": "secret1", "role": "seller",
	})
	if resp.User.Role != domain.RoleSeller || resp.User.ID == "" {
		t.Fatalf("unexpected user: %+v", resp.User)
	}
	claims, err := tokens.Parse(resp.Token)
	if err != nil || claims.Subject != resp.User.ID {
		t.Fatalf("token does not identify the user: %v", err)
	}

	t.Run("password never serialised", func(t *testing.T) {
		rec := call(h.HandleGet, http.MethodGet, nil, nil, "id", resp.User.ID)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if strings.Contains(strings.ToLower(rec.Body.String()), "password") {
			t.Errorf("password leaked: %s", rec.Body.String())
		}
	})

	t.Run("duplicate email conflicts", func(t *testing.T) {
		rec := call(h.HandleRegister, http.MethodPost, nil, map[string]any{
			"name": "Ana Two", "email": "ANA@example.com", "password": "secret2",
		})
		if rec.Code != http.StatusConflict {
			t.Errorf("expected 409, got %d", rec.Code)
		}
	})

	t.Run("login succeeds with same credentials", func(t *testing.T) {
		rec := call(h.HandleLogin, http.MethodPost, nil, map[string]any{"email": "ana@example.com", "password": "secret1"})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("wrong password and unknown email look the same", func(t *testing.T) {
		for _, body := range []map[string]any{
			{"email": "ana@example.com", "password": "wrong"},
			{"email": "nobody@example.com", "password": "secret1"},
		} {
			rec := call(h.HandleLogin, http.MethodPost, nil, body)
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("expected 401, got %d", rec.Code)
			}
			if !strings.Contains(rec.Body.String(), "invalid email or password") {
				t.Errorf("unexpected body: %s", rec.Body.String())
			}
		}
	})
}

func TestRegisterValidation(t *testing.T) {
	h, _ := newTestHandler(t)
	cases := map[string]map[string]any{
		"admin role":     {"name": "Eve", "email": "eve@example.com", "password": "secret1", "role": "admin"},
		"short password": {"name": "Eve", "email": "eve@example.com", "password": "123"},
		"bad email":      {"name": "Eve", "email": "eve", "password": "secret1"},
		"missing name":   {"email": "eve@example.com", "password": "secret1"},
		"blank name":     {"name": "   ", "email": "eve@example.com", "password": "secret1"},
		"long password":  {"name": "Eve", "email": "eve@example.com", "password": strings.Repeat("a", 80)},
		"long multibyte": {"name": "Eve", "email": "eve@example.com", "password": strings.Repeat("é", 40)},
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := call(h.HandleRegister, http.MethodPost, nil, body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestUpdateProfile(t *testing.T) {
	h, _ := newTestHandler(t)
	ana := register(t, h, map[string]any{"name": "Ana", "email": "ana@example.com", "password": "secret1"}).User
	bob := register(t, h, map[string]any{"name": "Bob", "email": "bob@example.com", "password": "secret1"}).User

	t.Run("other users are forbidden", func(t *testing.T) {
		rec := call(h.HandleUpdate, http.MethodPut, bob, map[string]any{"name": "Hacked"}, "id", ana.ID)
		if rec.Code != http.StatusForbidden {
			t.Errorf("expected 403, got %d", rec.Code)
		}
	})

	t.Run("self update merges fields", func(t *testing.T) {
		rec := call(h.HandleUpdate, http.MethodPut, ana, map[string]any{"location": "Lisbon"}, "id", ana.ID)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		var updated domain.User
		_ = json.NewDecoder(rec.Body).Decode(&updated)
		if updated.Location != "Lisbon" || updated.Name != "Ana" {
			t.Errorf("unexpected user: %+v", updated)
		}
	})

	t.Run("blank name is rejected", func(t *testing.T) {
		rec := call(h.HandleUpdate, http.MethodPut, ana, map[string]any{"name": "   "}, "id", ana.ID)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
		}
		rec = call(h.HandleGet, http.MethodGet, nil, nil, "id", ana.ID)
		var stored domain.User
		_ = json.NewDecoder(rec.Body).Decode(&stored)
		if stored.Name != "Ana" {
			t.Errorf("name changed to %q", stored.Name)
		}
	})

	t.Run("names are trimmed", func(t *testing.T) {
		rec := call(h.HandleUpdate, http.MethodPut, bob, map[string]any{"name": "  Bobby "}, "id", bob.ID)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		var updated domain.User
		_ = json.NewDecoder(rec.Body).Decode(&updated)
		if updated.Name != "Bobby" {
			t.Errorf("expected trimmed name, got %q", updated.Name)
		}
	})

	t.Run("password longer than bcrypt accepts", func(t *testing.T) {
		body := map[string]any{"password": strings.Repeat("a", 80), "currentPassword": "secret1"}
		rec := call(h.HandleUpdate, http.MethodPut, ana, body, "id", ana.ID)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
		}
		if !strings.Contains(rec.Body.String(), "72 bytes") {
			t.Errorf("unexpected body: %s", rec.Body.String())
		}
	})

	t.Run("email collision conflicts", func(t *testing.T) {
		rec := call(h.HandleUpdate, http.MethodPut, ana, map[string]any{"email": "bob@example.com"}, "id", ana.ID)
		if rec.Code != http.StatusConflict {
			t.Errorf("expected 409, got %d", rec.Code)
		}
	})

	t.Run("password change requires current password", func(t *testing.T) {
		rec := call(h.HandleUpdate, http.MethodPut, ana, map[string]any{"password": "newpass1"}, "id", ana.ID)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
		rec = call(h.HandleUpdate, http.MethodPut, ana, map[string]any{"password": "newpass1", "currentPassword": "nope"}, "id", ana.ID)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rec.Code)
		}
		rec = call(h.HandleUpdate, http.MethodPut, ana, map[string]any{"password": "newpass1", "currentPassword": "secret1"}, "id", ana.ID)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		rec = call(h.HandleLogin, http.MethodPost, nil, map[string]any{"email": "ana@example.com", "password": "newpass1"})
		if rec.Code != http.StatusOK {
			t.Errorf("expected login with new password, got %d", rec.Code)
		}
	})
}

func TestSellerListings(t *testing.T) {
	h, _ := newTestHandler(t)
	for _, name := range []string{"Zoe", "Ana", "Mia"} {
		register(t, h, map[string]any{"name": name, "email": strings.ToLower(name) + "@example.com", "password": "secret1", "role": "seller"})
	}
	register(t, h, map[string]any{"name": "Buyer", "email": "buyer@example.com", "password": "secret1"})

	rec := call(h.HandleListSellers, http.MethodGet, nil, nil)
	var sellers []domain.User
	_ = json.NewDecoder(rec.Body).Decode(&sellers)
	if len(sellers) != 3 || sellers[0].Name != "Ana" || sellers[2].Name != "Zoe" {
		t.Errorf("unexpected sellers: %+v", sellers)
	}

	req := httptest.NewRequest(http.MethodGet, "/?limit=2", nil)
	rr := httptest.NewRecorder()
	h.HandleTopSellers(rr, req)
	var top []domain.User
	_ = json.NewDecoder(rr.Body).Decode(&top)
	if rr.Code != http.StatusOK || len(top) != 2 {
		t.Errorf("expected 2 top sellers, got %d (%d)", len(top), rr.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/?limit=zero", nil)
	rr = httptest.NewRecorder()
	h.HandleTopSellers(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rr.Code)
	}
}

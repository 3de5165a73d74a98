package httpx

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/zaymazone/marketplace/internal/domain"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
		msg  string
	}{
		{"validation", domain.Invalid("name", "is required"), http.StatusBadRequest, "name: is required"},
		{"not found", fmt.Errorf("product p1: %w", domain.ErrNotFound), http.StatusNotFound, "not found"},
		{"duplicate email", domain.ErrDuplicateEmail, http.StatusConflict, "user already exists"},
		{"stock", fmt.Errorf("product p1: %w", domain.ErrInsufficientStock), http.StatusConflict, "insufficient stock"},
		{"transition", domain.OrderStatusDelivered.CheckTransition(domain.OrderStatusPending), http.StatusConflict, "invalid status transition"},
		{"credentials", domain.ErrInvalidCredentials, http.StatusUnauthorized, "invalid email or password"},
		{"forbidden", domain.ErrForbidden, http.StatusForbidden, "not authorized"},
		{"internal", errors.New("connection reset"), http.StatusInternalServerError, "internal server error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := StatusFor(tc.err); got != tc.want {
				t.Errorf("expected status %d, got %d", tc.want, got)
			}
			if got := Message(tc.err); got != tc.msg {
				t.Errorf("expected message %q, got %q", tc.msg, got)
			}
		})
	}
}

func TestFail_HidesInternalDetail(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rec := httptest.NewRecorder()

	Fail(rec, logger, errors.New("pq: password authentication failed"), "product not found", "failed to get product")

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "pq:") {
		t.Errorf("internal detail leaked: %s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	Fail(rec, logger, domain.ErrNotFound, "product not found", "failed to get product")
	if rec.Code != http.StatusNotFound || !strings.Contains(rec.Body.String(), "product not found") {
		t.Errorf("unexpected 404 response: %d %s", rec.Code, rec.Body.String())
	}
}

func TestParseLimit(t *testing.T) {
	if n, err := ParseLimit("", 5, 50); err != nil || n != 5 {
		t.Errorf("expected default 5, got %d, %v", n, err)
	}
	if n, err := ParseLimit("2", 5, 50); err != nil || n != 2 {
		t.Errorf("expected 2, got %d, %v", n, err)
	}
	if n, err := ParseLimit("500", 5, 50); err != nil || n != 50 {
		t.Errorf("expected cap 50, got %d, %v", n, err)
	}
	for _, raw := range []string{"0", "-1", "abc"} {
		if _, err := ParseLimit(raw, 5, 50); StatusFor(err) != http.StatusBadRequest {
			t.Errorf("expected validation error for %q, got %v", raw, err)
		}
	}
}

func TestDecode_RejectsMalformedBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{not json"))
	var dst map[string]any
	err := Decode(httptest.NewRecorder(), req, &dst)
	if StatusFor(err) != http.StatusBadRequest {
		t.Errorf("expected 400 mapping, got %v", err)
	}
}

func TestDecode_IgnoresUnknownFields(t *testing.T) {
	body := `{"name":"Vase","id":"p1","artisan":{"name":"Ana"}}`
	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(body))
	var dst struct {
		Name string `json:"name"`
	}
	if err := Decode(httptest.NewRecorder(), req, &dst); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if dst.Name != "Vase" {
		t.Errorf("expected name Vase, got %q", dst.Name)
	}
}

func TestDecode_RejectsOversizedBody(t *testing.T) {
	body := `{"name":"` + strings.Repeat("a", maxBodyBytes) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	var dst map[string]any
	err := Decode(httptest.NewRecorder(), req, &dst)
	if StatusFor(err) != http.StatusBadRequest {
		t.Errorf("expected 400 mapping, got %v", err)
	}
}

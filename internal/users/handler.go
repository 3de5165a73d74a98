package users

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/zaymazone/marketplace/internal/auth"
	"github.com/zaymazone/marketplace/internal/domain"
	"github.com/zaymazone/marketplace/internal/httpx"
)

const (
	defaultTopSellers = 5
	maxTopSellers     = 50
)

type Store interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Update(ctx context.Context, user *domain.User) error
	ListSellers(ctx context.Context) ([]domain.User, error)
	TopSellers(ctx context.Context, limit int) ([]domain.User, error)
}

type Handler struct {
	store  Store
	tokens *auth.Tokens
	logger *slog.Logger
}

func NewHandler(store Store, tokens *auth.Tokens, logger *slog.Logger) *Handler {
	return &Handler{
		store:  store,
		tokens: tokens,
		logger: logger,
	}
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	Token string       `json:"token"`
	User  *domain.User `json:"user"`
}

type registerRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,password"`
	Role     string `json:"role" validate:"omitempty,oneof=buyer seller"`
	Avatar   string `json:"avatar"`
	Location string `json:"location"`
}

func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpx.Decode(w, r, &req); err != nil {
		h.fail(w, err, "invalid register body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)

	if err := domain.Validate(&req); err != nil {
		h.fail(w, err, "invalid register request")
		return
	}

	role := domain.RoleBuyer
	if req.Role != "" {
		role, _ = domain.ParseRole(req.Role)
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.fail(w, err, "failed to hash password")
		return
	}

	user := &domain.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         role,
		Avatar:       req.Avatar,
		Location:     req.Location,
	}
	if err := h.store.Create(r.Context(), user); err != nil {
		h.fail(w, err, "failed to create user")
		return
	}

	h.logger.Info("user registered", "user_id", user.ID, "role", user.Role)
	h.respondWithToken(w, http.StatusCreated, user)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.Decode(w, r, &req); err != nil {
		h.fail(w, err, "invalid login body")
		return
	}
	if err := domain.Validate(&req); err != nil {
		h.fail(w, err, "invalid login request")
		return
	}

	user, err := h.store.GetByEmail(r.Context(), strings.TrimSpace(req.Email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			err = domain.ErrInvalidCredentials
		}
		h.fail(w, err, "failed to load user for login")
		return
	}

	ok, err := auth.CheckPassword(user.PasswordHash, req.Password)
	if err != nil {
		h.fail(w, err, "failed to check password", "user_id", user.ID)
		return
	}
	if !ok {
		h.fail(w, domain.ErrInvalidCredentials, "login rejected")
		return
	}

	h.logger.Info("user logged in", "user_id", user.ID)
	h.respondWithToken(w, http.StatusOK, user)
}

func (h *Handler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	h.writeJSON(w, http.StatusOK, user)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		h.fail(w, err, "missing user id")
		return
	}

	user, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		h.fail(w, err, "failed to get user", "id", id)
		return
	}

	h.writeJSON(w, http.StatusOK, user)
}

type updateRequest struct {
	Name            *string `json:"name" validate:"omitempty,min=1,max=100"`
	Email           *string `json:"email" validate:"omitempty,email"`
	Avatar          *string `json:"avatar"`
	Location        *string `json:"location"`
	Password        *string `json:"password" validate:"omitempty,min=6,password"`
	CurrentPassword string  `json:"currentPassword"`
}

// HandleUpdate edits the caller's own profile. Changing the password requires
// the current one.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		h.fail(w, err, "missing user id")
		return
	}

	caller, _ := auth.UserFromContext(r.Context())
	if caller.ID != id {
		h.writeError(w, http.StatusForbidden, "not authorized to update this profile")
		return
	}

	var req updateRequest
	if err := httpx.Decode(w, r, &req); err != nil {
		h.fail(w, err, "invalid profile body")
		return
	}
	trim(req.Name)
	trim(req.Email)
	if err := domain.Validate(&req); err != nil {
		h.fail(w, err, "invalid profile update")
		return
	}

	user, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		h.fail(w, err, "failed to get user", "id", id)
		return
	}

	if req.Name != nil {
		user.Name = *req.Name
	}
	if req.Email != nil {
		user.Email = *req.Email
	}
	if req.Avatar != nil {
		user.Avatar = *req.Avatar
	}
	if req.Location != nil {
		user.Location = *req.Location
	}

	if req.Password != nil {
		if req.CurrentPassword == "" {
			h.fail(w, domain.Invalid("currentPassword", "is required to change password"), "missing current password")
			return
		}
		ok, err := auth.CheckPassword(user.PasswordHash, req.CurrentPassword)
		if err != nil {
			h.fail(w, err, "failed to check password", "user_id", user.ID)
			return
		}
		if !ok {
			h.writeError(w, http.StatusUnauthorized, "current password is incorrect")
			return
		}
		if user.PasswordHash, err = auth.HashPassword(*req.Password); err != nil {
			h.fail(w, err, "failed to hash password")
			return
		}
	}

	if err := h.store.Update(r.Context(), user); err != nil {
		h.fail(w, err, "failed to update user", "id", id)
		return
	}

	h.logger.Info("user updated", "user_id", user.ID)
	h.writeJSON(w, http.StatusOK, user)
}

func trim(s *string) {
	if s != nil {
		*s = strings.TrimSpace(*s)
	}
}

func (h *Handler) HandleListSellers(w http.ResponseWriter, r *http.Request) {
	sellers, err := h.store.ListSellers(r.Context())
	if err != nil {
		h.fail(w, err, "failed to list sellers")
		return
	}

	h.logger.Info("sellers listed", "count", len(sellers))
	h.writeJSON(w, http.StatusOK, sellers)
}

func (h *Handler) HandleTopSellers(w http.ResponseWriter, r *http.Request) {
	limit, err := httpx.ParseLimit(r.URL.Query().Get("limit"), defaultTopSellers, maxTopSellers)
	if err != nil {
		h.fail(w, err, "invalid limit")
		return
	}

	sellers, err := h.store.TopSellers(r.Context(), limit)
	if err != nil {
		h.fail(w, err, "failed to list top sellers")
		return
	}

	h.writeJSON(w, http.StatusOK, sellers)
}

func (h *Handler) respondWithToken(w http.ResponseWriter, status int, user *domain.User) {
	token, err := h.tokens.Issue(user)
	if err != nil {
		h.fail(w, err, "failed to issue token", "user_id", user.ID)
		return
	}
	h.writeJSON(w, status, AuthResponse{Token: token, User: user})
}

func (h *Handler) fail(w http.ResponseWriter, err error, msg string, args ...any) {
	httpx.Fail(w, h.logger, err, "user not found", msg, args...)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	httpx.WriteJSON(w, h.logger, status, data)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	httpx.WriteError(w, h.logger, status, message)
}

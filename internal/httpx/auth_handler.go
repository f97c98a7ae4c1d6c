package httpx

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wearagain/thriftmarket/internal/apperr"
	"github.com/wearagain/thriftmarket/internal/auth"
	"github.com/wearagain/thriftmarket/internal/users"
)

type UserStore interface {
	Create(ctx context.Context, u *users.User) error
	GetByID(ctx context.Context, id string) (*users.User, error)
	GetByEmail(ctx context.Context, email string) (*users.User, error)
	List(ctx context.Context) ([]users.User, error)
	UpdateRole(ctx context.Context, id, role string) (*users.User, error)
}

type TokenIssuer interface {
	Issue(userID, email, role string) (string, error)
}

type AuthHandler struct {
	Store     UserStore
	Tokens    TokenIssuer
	Hasher    auth.Hasher
	AdminCode string
}

func (h *AuthHandler) Register(r chi.Router, mw *AuthMiddleware) {
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.register)
		r.Post("/login", h.login)
		r.With(mw.RequireAuth).Get("/me", h.me)
	})
}

type registerReq struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=6"`
	Name      string `json:"name" validate:"required"`
	Role      string `json:"role" validate:"omitempty,oneof=USER ADMIN"`
	AdminCode string `json:"adminCode"`
}

type authResp struct {
	User  *users.User `json:"user"`
	Token string      `json:"token"`
}

func (h *AuthHandler) register(w http.ResponseWriter, r *http.Request) {
	var req registerReq
	if err := decodeValid(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Role == "" {
		req.Role = users.RoleUser
	}
	if req.Role == users.RoleAdmin {
		if h.AdminCode == "" || req.AdminCode != h.AdminCode {
			writeError(w, r, fmt.Errorf("%w: invalid admin code", apperr.ErrForbidden))
			return
		}
	}

	hash, err := h.Hasher.Hash(req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	u := &users.User{
		ID:           uuid.NewString(),
		Email:        req.Email,
		PasswordHash: hash,
		Name:         req.Name,
		Role:         req.Role,
	}
	if err := h.Store.Create(r.Context(), u); err != nil {
		writeError(w, r, err)
		return
	}

	token, err := h.Tokens.Issue(u.ID, u.Email, u.Role)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, authResp{User: u, Token: token})
}

type loginReq struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	var req loginReq
	if err := decodeValid(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	// Identical failure for unknown email and wrong password so the
	// endpoint cannot be used to enumerate accounts.
	u, err := h.Store.GetByEmail(r.Context(), req.Email)
	if err != nil || !h.Hasher.Check(u.PasswordHash, req.Password) {
		writeError(w, r, fmt.Errorf("%w: invalid credentials", apperr.ErrValidation))
		return
	}

	token, err := h.Tokens.Issue(u.ID, u.Email, u.Role)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, authResp{User: u, Token: token})
}

func (h *AuthHandler) me(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())
	u, err := h.Store.GetByID(r.Context(), id.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]*users.User{"user": u})
}

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/BradenHooton/restgate/internal/models"
	"github.com/BradenHooton/restgate/internal/services"
	pkghttp "github.com/BradenHooton/restgate/pkg/http"
	"github.com/go-chi/chi/v5"
)

const maxRequestBodyBytes = 1 << 20

// UserService defines the interface for user business logic
type UserService interface {
	GetUser(ctx context.Context, email string) (*models.Principal, error)
	ListUsers(ctx context.Context) ([]*models.Principal, error)
	CreateUser(ctx context.Context, input services.CreateUserInput) (*models.Principal, error)
	UpdateUser(ctx context.Context, email string, input services.UpdateUserInput) (*models.Principal, error)
}

// UserHandler handles user-related HTTP requests
type UserHandler struct {
	service UserService
	logger  *slog.Logger
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(service UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		service: service,
		logger:  logger,
	}
}

// CreateUserRequest represents the request body for creating a user
type CreateUserRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,basicstring"`
	Role     string `json:"role" validate:"omitempty,oneof=ROLE_USER ROLE_ADMIN"`
}

// UpdateUserRequest represents the request body for updating a user
type UpdateUserRequest struct {
	Role   string `json:"role" validate:"omitempty,oneof=ROLE_USER ROLE_ADMIN"`
	Active *bool  `json:"active"`
}

// RegisterRoutes registers the user routes. Callers mount them behind
// auth.RequireAuthenticated.
func (h *UserHandler) RegisterRoutes(router chi.Router) {
	router.Route("/users", func(r chi.Router) {
		r.Get("/", h.ListUsers)         // GET /users
		r.Post("/", h.CreateUser)       // POST /users
		r.Get("/{email}", h.GetUser)    // GET /users/{email}
		r.Put("/{email}", h.UpdateUser) // PUT /users/{email}
	})
}

func emailParam(r *http.Request) string {
	raw := chi.URLParam(r, "email")
	if email, err := url.PathUnescape(raw); err == nil {
		return email
	}
	return raw
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return models.NewValidationError("Invalid request body")
	}
	return nil
}

// ListUsers returns every account's identity
//
// @Summary List users
// @Produce json
// @Success 200 {array} models.Principal
// @Failure 401 {object} pkghttp.ErrorResponse
// @Router /users [get]
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		pkghttp.WriteSecurityError(w, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, users)
}

// GetUser returns one account's identity. An unknown email yields the
// anonymous identity rather than 404.
//
// @Summary Get user by email
// @Param email path string true "User email"
// @Produce json
// @Success 200 {object} models.Principal
// @Failure 401 {object} pkghttp.ErrorResponse
// @Router /users/{email} [get]
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.GetUser(r.Context(), emailParam(r))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteJSON(w, http.StatusOK, models.AnonymousPrincipal())
			return
		}
		pkghttp.WriteSecurityError(w, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, user)
}

// CreateUser creates a new account
//
// @Summary Create a new user
// @Accept json
// @Param request body CreateUserRequest true "Create user request"
// @Produce json
// @Success 201 {object} models.Principal
// @Failure 400 {object} pkghttp.ErrorResponse
// @Failure 403 {object} pkghttp.ErrorResponse
// @Failure 409 {object} pkghttp.ErrorResponse
// @Router /users [post]
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		pkghttp.WriteSecurityError(w, h.logger, err)
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteSecurityError(w, h.logger, err)
		return
	}

	created, err := h.service.CreateUser(r.Context(), services.CreateUserInput{
		Email:    req.Email,
		Password: req.Password,
		Role:     models.Role(req.Role),
	})
	if err != nil {
		pkghttp.WriteSecurityError(w, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, created)
}

// UpdateUser changes an account's role or active flag
//
// @Summary Update a user
// @Param email path string true "User email"
// @Accept json
// @Param request body UpdateUserRequest true "Update user request"
// @Produce json
// @Success 200 {object} models.Principal
// @Failure 400 {object} pkghttp.ErrorResponse
// @Failure 403 {object} pkghttp.ErrorResponse
// @Failure 404 {object} pkghttp.ErrorResponse
// @Router /users/{email} [put]
func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var req UpdateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		pkghttp.WriteSecurityError(w, h.logger, err)
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteSecurityError(w, h.logger, err)
		return
	}

	updated, err := h.service.UpdateUser(r.Context(), emailParam(r), services.UpdateUserInput{
		Role:   models.Role(req.Role),
		Active: req.Active,
	})
	if err != nil {
		pkghttp.WriteSecurityError(w, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, updated)
}

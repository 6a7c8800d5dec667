package user

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/FACorreiaa/go-user-identity/internal/api"
	"github.com/FACorreiaa/go-user-identity/internal/types"
)

var _ Handler = (*HandlerImpl)(nil)

type Handler interface {
	CreateUser(w http.ResponseWriter, r *http.Request)
	DeleteUser(w http.ResponseWriter, r *http.Request)
	GetUser(w http.ResponseWriter, r *http.Request)
	ListUsers(w http.ResponseWriter, r *http.Request)
	UpdateUsername(w http.ResponseWriter, r *http.Request)
	UpdatePassword(w http.ResponseWriter, r *http.Request)
}

type HandlerImpl struct {
	userService UserService
	logger      *slog.Logger
}

// NewHandlerImpl creates a new user HandlerImpl instance.
func NewHandlerImpl(userService UserService, logger *slog.Logger) *HandlerImpl {
	return &HandlerImpl{
		userService: userService,
		logger:      logger,
	}
}

// userIDParam reads {id} from the route. Anything that is not a UUID cannot
// name a user, so callers answer 404 when ok is false.
func userIDParam(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// writeServiceError maps service outcomes onto status codes.
func writeServiceError(w http.ResponseWriter, r *http.Request, l *slog.Logger, err error, fallback string) {
	switch {
	case errors.Is(err, types.ErrInvalidArgument), errors.Is(err, types.ErrConflict):
		l.WarnContext(r.Context(), "Rejected request", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, types.ErrNotFound):
		api.ErrorResponse(w, r, http.StatusNotFound, "User not found")
	default:
		l.ErrorContext(r.Context(), fallback, slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, fallback)
	}
}

// CreateUser godoc
// @Summary      Create User
// @Description  Registers a new account with a unique username.
// @Tags         Users
// @Accept       json
// @Produce      json
// @Param        user body types.CreateUserRequest true "Username and password"
// @Success      200 {object} types.UserResponse "Created user"
// @Failure      400 {object} types.Response "Invalid input or username taken"
// @Failure      500 {object} types.Response "Internal Server Error"
// @Router       /api/users [post]
func (h *HandlerImpl) CreateUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("HandlerImpl", "CreateUser"))

	var req types.CreateUserRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.WarnContext(ctx, "Failed to decode request", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	created, err := h.userService.CreateUser(ctx, req.Username, req.Password)
	if err != nil {
		writeServiceError(w, r, l, err, "Failed to create user")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, created)
}

// DeleteUser godoc
// @Summary      Delete User
// @Tags         Users
// @Produce      json
// @Param        id path string true "User ID"
// @Success      200 {object} types.Response "User deleted"
// @Failure      404 {object} types.Response "User Not Found"
// @Router       /api/users/{id} [delete]
func (h *HandlerImpl) DeleteUser(w http.ResponseWriter, r *http.Request) {
	l := h.logger.With(slog.String("HandlerImpl", "DeleteUser"))

	id, ok := userIDParam(r)
	if !ok {
		api.ErrorResponse(w, r, http.StatusNotFound, "User not found")
		return
	}

	if err := h.userService.DeleteUser(r.Context(), id); err != nil {
		writeServiceError(w, r, l, err, "Failed to delete user")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, types.Response{
		Success: true,
		Message: "User deleted successfully",
	})
}

// GetUser godoc
// @Summary      Get User
// @Tags         Users
// @Produce      json
// @Param        id path string true "User ID"
// @Success      200 {object} types.UserResponse "User"
// @Failure      404 {object} types.Response "User Not Found"
// @Router       /api/users/{id} [get]
func (h *HandlerImpl) GetUser(w http.ResponseWriter, r *http.Request) {
	l := h.logger.With(slog.String("HandlerImpl", "GetUser"))

	id, ok := userIDParam(r)
	if !ok {
		api.ErrorResponse(w, r, http.StatusNotFound, "User not found")
		return
	}

	u, err := h.userService.GetUser(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, l, err, "Failed to retrieve user")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, u)
}

// ListUsers godoc
// @Summary      List Users
// @Tags         Users
// @Produce      json
// @Success      200 {object} types.UsersResponse "All users"
// @Failure      500 {object} types.Response "Internal Server Error"
// @Router       /api/users [get]
func (h *HandlerImpl) ListUsers(w http.ResponseWriter, r *http.Request) {
	l := h.logger.With(slog.String("HandlerImpl", "ListUsers"))

	users, err := h.userService.ListUsers(r.Context())
	if err != nil {
		writeServiceError(w, r, l, err, "Failed to list users")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, types.UsersResponse{Users: users})
}

// UpdateUsername godoc
// @Summary      Update Username
// @Tags         Users
// @Accept       json
// @Produce      json
// @Param        id path string true "User ID"
// @Param        user body types.UpdateUserRequest true "New username"
// @Success      200 {object} types.UserResponse "Updated user"
// @Failure      400 {object} types.Response "Invalid input or username taken"
// @Failure      404 {object} types.Response "User Not Found"
// @Router       /api/users/{id} [put]
func (h *HandlerImpl) UpdateUsername(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("HandlerImpl", "UpdateUsername"))

	id, ok := userIDParam(r)
	if !ok {
		api.ErrorResponse(w, r, http.StatusNotFound, "User not found")
		return
	}

	var req types.UpdateUserRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.WarnContext(ctx, "Failed to decode request", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	u, err := h.userService.UpdateUsername(ctx, id, req.Username)
	if err != nil {
		writeServiceError(w, r, l, err, "Failed to update user")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, u)
}

// UpdatePassword godoc
// @Summary      Update Password
// @Tags         Users
// @Accept       json
// @Produce      json
// @Param        id path string true "User ID"
// @Param        password body types.UpdatePasswordRequest true "New password"
// @Success      200 {object} types.Response "Password updated"
// @Failure      400 {object} types.Response "Invalid input"
// @Failure      404 {object} types.Response "User Not Found"
// @Router       /api/users/{id}/password [put]
func (h *HandlerImpl) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("HandlerImpl", "UpdatePassword"))

	id, ok := userIDParam(r)
	if !ok {
		api.ErrorResponse(w, r, http.StatusNotFound, "User not found")
		return
	}

	var req types.UpdatePasswordRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.WarnContext(ctx, "Failed to decode request", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := h.userService.UpdatePassword(ctx, id, req.Password); err != nil {
		writeServiceError(w, r, l, err, "Failed to update password")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, types.Response{
		Success: true,
		Message: "Password updated successfully",
	})
}

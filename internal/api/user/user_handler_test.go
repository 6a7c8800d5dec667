package user

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/go-user-identity/internal/types"
)

// MockUserService is a mock implementation of the UserService interface
type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) CreateUser(ctx context.Context, username, password string) (*types.UserResponse, error) {
	args := m.Called(ctx, username, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.UserResponse), args.Error(1)
}

func (m *MockUserService) DeleteUser(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockUserService) GetUser(ctx context.Context, id uuid.UUID) (*types.UserResponse, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.UserResponse), args.Error(1)
}

func (m *MockUserService) ListUsers(ctx context.Context) ([]types.UserResponse, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.UserResponse), args.Error(1)
}

func (m *MockUserService) UpdateUsername(ctx context.Context, id uuid.UUID, username string) (*types.UserResponse, error) {
	args := m.Called(ctx, id, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.UserResponse), args.Error(1)
}

func (m *MockUserService) UpdatePassword(ctx context.Context, id uuid.UUID, password string) error {
	return m.Called(ctx, id, password).Error(0)
}

func withIDParam(r *http.Request, id string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func jsonBody(t *testing.T, v any) *bytes.Buffer {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewBuffer(b)
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, false, body["success"])
	msg, _ := body["error"].(string)
	return msg
}

func TestCreateUserHandler(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		svc := new(MockUserService)
		h := NewHandlerImpl(svc, slog.Default())
		id := uuid.New()
		svc.On("CreateUser", mock.Anything, "alice", "Secret123").
			Return(&types.UserResponse{ID: id, Username: "alice"}, nil).Once()

		req := httptest.NewRequest(http.MethodPost, "/api/users", jsonBody(t, types.CreateUserRequest{Username: "alice", Password: "Secret123"}))
		w := httptest.NewRecorder()
		h.CreateUser(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		var resp map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, id.String(), resp["id"])
		assert.Equal(t, "alice", resp["username"])
		assert.NotContains(t, resp, "password")
		assert.NotContains(t, resp, "passwordHash")
		svc.AssertExpectations(t)
	})

	t.Run("ValidationAndConflictAre400", func(t *testing.T) {
		for _, svcErr := range []error{types.ErrInvalidArgument, types.ErrConflict} {
			svc := new(MockUserService)
			h := NewHandlerImpl(svc, slog.Default())
			svc.On("CreateUser", mock.Anything, "alice", "x").Return(nil, svcErr).Once()

			req := httptest.NewRequest(http.MethodPost, "/api/users", jsonBody(t, types.CreateUserRequest{Username: "alice", Password: "x"}))
			w := httptest.NewRecorder()
			h.CreateUser(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.NotEmpty(t, decodeError(t, w))
		}
	})

	t.Run("MalformedJSON", func(t *testing.T) {
		svc := new(MockUserService)
		h := NewHandlerImpl(svc, slog.Default())

		req := httptest.NewRequest(http.MethodPost, "/api/users", bytes.NewBufferString(`{"username": "alice", "password":}`))
		w := httptest.NewRecorder()
		h.CreateUser(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		svc.AssertNotCalled(t, "CreateUser", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("UnexpectedErrorIs500", func(t *testing.T) {
		svc := new(MockUserService)
		h := NewHandlerImpl(svc, slog.Default())
		svc.On("CreateUser", mock.Anything, "alice", "Secret123").Return(nil, errors.New("db down")).Once()

		req := httptest.NewRequest(http.MethodPost, "/api/users", jsonBody(t, types.CreateUserRequest{Username: "alice", Password: "Secret123"}))
		w := httptest.NewRecorder()
		h.CreateUser(w, req)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, decodeError(t, w), "db down")
	})
}

func TestGetUserHandler(t *testing.T) {
	id := uuid.New()

	t.Run("Success", func(t *testing.T) {
		svc := new(MockUserService)
		h := NewHandlerImpl(svc, slog.Default())
		svc.On("GetUser", mock.Anything, id).Return(&types.UserResponse{ID: id, Username: "alice"}, nil).Once()

		w := httptest.NewRecorder()
		h.GetUser(w, withIDParam(httptest.NewRequest(http.MethodGet, "/api/users/"+id.String(), nil), id.String()))

		assert.Equal(t, http.StatusOK, w.Code)
		var resp types.UserResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, types.UserResponse{ID: id, Username: "alice"}, resp)
	})

	t.Run("NotFound", func(t *testing.T) {
		svc := new(MockUserService)
		h := NewHandlerImpl(svc, slog.Default())
		svc.On("GetUser", mock.Anything, id).Return(nil, types.ErrNotFound).Once()

		w := httptest.NewRecorder()
		h.GetUser(w, withIDParam(httptest.NewRequest(http.MethodGet, "/", nil), id.String()))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("MalformedIDIsNotFound", func(t *testing.T) {
		svc := new(MockUserService)
		h := NewHandlerImpl(svc, slog.Default())

		w := httptest.NewRecorder()
		h.GetUser(w, withIDParam(httptest.NewRequest(http.MethodGet, "/", nil), "not-a-uuid"))
		assert.Equal(t, http.StatusNotFound, w.Code)
		svc.AssertNotCalled(t, "GetUser", mock.Anything, mock.Anything)
	})
}

func TestListUsersHandler(t *testing.T) {
	svc := new(MockUserService)
	h := NewHandlerImpl(svc, slog.Default())
	svc.On("ListUsers", mock.Anything).Return([]types.UserResponse{}, nil).Once()

	w := httptest.NewRecorder()
	h.ListUsers(w, httptest.NewRequest(http.MethodGet, "/api/users", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"users": []}`, w.Body.String())
}

func TestDeleteUserHandler(t *testing.T) {
	id := uuid.New()

	t.Run("Success", func(t *testing.T) {
		svc := new(MockUserService)
		h := NewHandlerImpl(svc, slog.Default())
		svc.On("DeleteUser", mock.Anything, id).Return(nil).Once()

		w := httptest.NewRecorder()
		h.DeleteUser(w, withIDParam(httptest.NewRequest(http.MethodDelete, "/", nil), id.String()))
		assert.Equal(t, http.StatusOK, w.Code)
		svc.AssertExpectations(t)
	})

	t.Run("NotFound", func(t *testing.T) {
		svc := new(MockUserService)
		h := NewHandlerImpl(svc, slog.Default())
		svc.On("DeleteUser", mock.Anything, id).Return(types.ErrNotFound).Once()

		w := httptest.NewRecorder()
		h.DeleteUser(w, withIDParam(httptest.NewRequest(http.MethodDelete, "/", nil), id.String()))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestUpdateUsernameHandler(t *testing.T) {
	id := uuid.New()

	tests := []struct {
		name     string
		svcErr   error
		wantCode int
	}{
		{"Success", nil, http.StatusOK},
		{"Invalid", types.ErrInvalidArgument, http.StatusBadRequest},
		{"Taken", types.ErrConflict, http.StatusBadRequest},
		{"NotFound", types.ErrNotFound, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockUserService)
			h := NewHandlerImpl(svc, slog.Default())
			if tt.svcErr == nil {
				svc.On("UpdateUsername", mock.Anything, id, "alice2").
					Return(&types.UserResponse{ID: id, Username: "alice2"}, nil).Once()
			} else {
				svc.On("UpdateUsername", mock.Anything, id, "alice2").Return(nil, tt.svcErr).Once()
			}

			req := httptest.NewRequest(http.MethodPut, "/", jsonBody(t, types.UpdateUserRequest{Username: "alice2"}))
			w := httptest.NewRecorder()
			h.UpdateUsername(w, withIDParam(req, id.String()))

			assert.Equal(t, tt.wantCode, w.Code)
			svc.AssertExpectations(t)
		})
	}
}

func TestUpdatePasswordHandler(t *testing.T) {
	id := uuid.New()

	t.Run("Success", func(t *testing.T) {
		svc := new(MockUserService)
		h := NewHandlerImpl(svc, slog.Default())
		svc.On("UpdatePassword", mock.Anything, id, "N3wSecret!").Return(nil).Once()

		req := httptest.NewRequest(http.MethodPut, "/", jsonBody(t, types.UpdatePasswordRequest{Password: "N3wSecret!"}))
		w := httptest.NewRecorder()
		h.UpdatePassword(w, withIDParam(req, id.String()))

		assert.Equal(t, http.StatusOK, w.Code)
		svc.AssertExpectations(t)
	})

	t.Run("Invalid", func(t *testing.T) {
		svc := new(MockUserService)
		h := NewHandlerImpl(svc, slog.Default())
		svc.On("UpdatePassword", mock.Anything, id, " ").Return(types.ErrInvalidArgument).Once()

		req := httptest.NewRequest(http.MethodPut, "/", jsonBody(t, types.UpdatePasswordRequest{Password: " "}))
		w := httptest.NewRecorder()
		h.UpdatePassword(w, withIDParam(req, id.String()))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("UnknownFieldRejected", func(t *testing.T) {
		svc := new(MockUserService)
		h := NewHandlerImpl(svc, slog.Default())

		req := httptest.NewRequest(http.MethodPut, "/", bytes.NewBufferString(`{"password":"x","admin":true}`))
		w := httptest.NewRecorder()
		h.UpdatePassword(w, withIDParam(req, id.String()))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		svc.AssertNotCalled(t, "UpdatePassword", mock.Anything, mock.Anything, mock.Anything)
	})
}

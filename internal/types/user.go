package types

import (
	"time"

	"github.com/google/uuid"
)

// User is the persisted account record.
type User struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"` // Never exposed.
	RefreshToken *string   `json:"-"` // Set by a successful login, nil before that.
	CreatedAt    time.Time `json:"-"`
	UpdatedAt    time.Time `json:"-"`
}

// UserResponse is the public projection of a User.
type UserResponse struct {
	ID       uuid.UUID `json:"id" example:"d290f1ee-6c54-4b01-90e6-d701748f0851"`
	Username string    `json:"username" example:"alice"`
}

// UsersResponse wraps the list projection.
type UsersResponse struct {
	Users []UserResponse `json:"users"`
}

// ToResponse projects a user without credential material.
func (u *User) ToResponse() UserResponse {
	return UserResponse{ID: u.ID, Username: u.Username}
}

// CreateUserRequest is the body of POST /api/users.
type CreateUserRequest struct {
	Username string `json:"username" example:"alice"`
	Password string `json:"password" example:"Secret123"`
}

// UpdateUserRequest is the body of PUT /api/users/{id}.
type UpdateUserRequest struct {
	Username string `json:"username" example:"alice2"`
}

// UpdatePasswordRequest is the body of PUT /api/users/{id}/password.
type UpdatePasswordRequest struct {
	Password string `json:"password" example:"N3wSecret!"`
}

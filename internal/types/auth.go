package types

// LoginRequest is the body of POST /api/users/login.
type LoginRequest struct {
	Username string `json:"username" example:"alice"`
	Password string `json:"password" example:"Secret123"`
}

// TokenPair is returned by a successful login.
type TokenPair struct {
	AccessToken  string `json:"accessToken" example:"eyJhbGciOiJI..."` // Signed HS256 JWT.
	RefreshToken string `json:"refreshToken" example:"4f1c9e..."`      // Opaque, stored on the user.
}

// Response is the generic success/error envelope.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

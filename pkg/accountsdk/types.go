package accountsdk

import "time"

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	// Error is a machine-readable code (e.g., "not_found", "already_exists")
	Error string `json:"error"`

	// ErrorDescription is a human-readable description of the error
	ErrorDescription string `json:"error_description"`
}

// ============================================================================
// Authentication Types
// ============================================================================

// RegisterRequest creates a self-service account. The role is always User.
type RegisterRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// CreateUserRequest is the admin variant of RegisterRequest that may set a role.
type CreateUserRequest struct {
	RegisterRequest

	// Role is "Admin" or "User". Empty defaults to "User".
	Role string `json:"role,omitempty"`
}

// LoginRequest carries credentials for POST /v1/auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenResponse is returned by a successful login.
type TokenResponse struct {
	// Token is the signed JWT access token
	Token string `json:"token"`

	// TokenType is always "Bearer"
	TokenType string `json:"token_type"`

	Username string `json:"username"`
	Role     string `json:"role"`

	// ExpiresAt is the absolute expiry of the token
	ExpiresAt time.Time `json:"expires_at"`

	// ExpiresIn is the token lifetime in seconds at the time of issue
	ExpiresIn int64 `json:"expires_in"`
}

// ============================================================================
// User Types
// ============================================================================

// UserResponse is the public projection of a user. It never carries the
// password digest.
type UserResponse struct {
	ID         int64      `json:"id"`
	Username   string     `json:"username"`
	Email      string     `json:"email"`
	FirstName  string     `json:"first_name"`
	LastName   string     `json:"last_name"`
	Role       string     `json:"role"`
	CreatedAt  time.Time  `json:"created_at"`
	ModifiedAt *time.Time `json:"modified_at,omitempty"`
}

// UpdateUserRequest is a partial update. Nil fields are left unchanged.
type UpdateUserRequest struct {
	Username  *string `json:"username,omitempty"`
	Email     *string `json:"email,omitempty"`
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`

	// Role may only be changed by an Admin
	Role *string `json:"role,omitempty"`
}

// ListUsersParams are the query parameters of GET /v1/users. Zero values are omitted.
type ListUsersParams struct {
	Page     int
	PageSize int

	Role     string
	Username string
	Email    string
	Name     string

	CreatedFrom *time.Time
	CreatedTo   *time.Time

	// Filter is an AIP-160 expression, e.g. `role = "Admin" AND username:"ali"`
	Filter string
}

// ListUsersResponse is one page of users.
type ListUsersResponse struct {
	Data         []UserResponse `json:"data"`
	TotalRecords int64          `json:"total_records"`
	PageNumber   int            `json:"page_number"`
	PageSize     int            `json:"page_size"`
	TotalPages   int            `json:"total_pages"`
}

// ============================================================================
// Health Types
// ============================================================================

// HealthResponse represents the response structure for health check endpoints.
// Used by both /livez and /readyz endpoints (readyz includes additional Checks field).
type HealthResponse struct {
	// Status indicates the overall health status (e.g., "ok")
	Status string `json:"status"`

	// Uptime is the service uptime duration as a string (e.g., "1h23m45s")
	Uptime string `json:"uptime,omitempty"`

	// Version is the service version string
	Version string `json:"version,omitempty"`

	// Checks contains readiness check results for critical dependencies (only for /readyz)
	Checks *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks represents the status of critical service dependencies.
type HealthChecks struct {
	// Database indicates the database connection status
	Database string `json:"database"`
}

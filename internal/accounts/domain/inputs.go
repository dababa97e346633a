package domain

import "time"

// RegisterInput carries a new account. Password is plaintext and lives only
// for the duration of the call.
type RegisterInput struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      Role // empty means RoleUser
}

type LoginInput struct {
	Username string
	Password string
}

// UpdateInput is a partial update; nil fields are left as they are.
// The password cannot be changed through an update.
type UpdateInput struct {
	Username  *string
	Email     *string
	FirstName *string
	LastName  *string
	Role      *Role
}

// TokenView is the result of a successful login.
type TokenView struct {
	Token     string
	Username  string
	Role      Role
	ExpiresAt time.Time
}

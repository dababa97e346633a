package domain

import "time"

type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string // PHC-encoded digest, never plaintext
	FirstName    string
	LastName     string
	Role         Role
	CreatedAt    time.Time
	ModifiedAt   *time.Time // nil until the first update
}

// UserView is the read-only projection handed out of the service. It has
// no password field.
type UserView struct {
	ID         int64
	Username   string
	Email      string
	FirstName  string
	LastName   string
	Role       Role
	CreatedAt  time.Time
	ModifiedAt *time.Time
}

// View projects u, dropping the password digest.
func (u User) View() UserView {
	return UserView{
		ID:         u.ID,
		Username:   u.Username,
		Email:      u.Email,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		Role:       u.Role,
		CreatedAt:  u.CreatedAt,
		ModifiedAt: u.ModifiedAt,
	}
}

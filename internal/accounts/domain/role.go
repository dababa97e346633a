package domain

import (
	"fmt"
	"slices"
	"strings"
)

type Role string

const (
	RoleAdmin Role = "Admin"
	RoleUser  Role = "User"
)

// Roles lists every known role.
var Roles = []Role{RoleAdmin, RoleUser}

// ParseRole matches s case-insensitively against the known roles.
func ParseRole(s string) (Role, error) {
	for _, r := range Roles {
		if strings.EqualFold(strings.TrimSpace(s), string(r)) {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Valid reports whether r is exactly one of the known roles.
func (r Role) Valid() bool { return slices.Contains(Roles, r) }

func (r Role) String() string { return string(r) }

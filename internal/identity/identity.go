// Package identity holds the authenticated principal and the lookup contract
// the pipeline depends on. Persistence of users, roles and permissions lives
// outside this module; Store is the seam it plugs in through.
package identity

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("user not found")

// Identity is the principal attached to a request after token verification.
type Identity struct {
	ID          string   `json:"id"`
	Email       string   `json:"email"`
	Username    string   `json:"username"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
}

func (id Identity) HasRole(role string) bool {
	for _, r := range id.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func (id Identity) HasPermission(perm string) bool {
	for _, p := range id.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

// User is a stored principal. PasswordHash is bcrypt output and never leaves
// the store layer.
type User struct {
	Identity
	PasswordHash string `json:"-"`
}

// Store resolves principals by id or email. Implementations are external
// collaborators; the in-memory one here exists for the demo wiring and tests.
type Store interface {
	FindByID(ctx context.Context, id string) (User, error)
	FindByEmail(ctx context.Context, email string) (User, error)
	Delete(ctx context.Context, id string) error
}

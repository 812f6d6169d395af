package auth

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// EnsureAdmin creates the named admin account if it does not exist.
// Called at startup so a fresh deployment is reachable; an existing
// account, whatever its role or password, is left untouched.
func EnsureAdmin(ctx context.Context, repo UserRepository, username, password string) (created bool, err error) {
	if _, err := repo.GetByUsername(ctx, username); err == nil {
		return false, nil
	}

	hash, err := HashPassword(password)
	if err != nil {
		return false, fmt.Errorf("hashing admin password: %w", err)
	}

	user := &User{
		ID:           uuid.NewString(),
		Username:     username,
		DisplayName:  "Administrator",
		PasswordHash: hash,
		Role:         RoleAdmin,
		IsActive:     true,
	}
	if err := repo.Create(ctx, user); err != nil {
		return false, fmt.Errorf("creating admin account: %w", err)
	}
	return true, nil
}

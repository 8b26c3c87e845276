package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/geocoder89/inventoryhub/internal/config"
	"github.com/geocoder89/inventoryhub/internal/domain/user"
	"github.com/geocoder89/inventoryhub/internal/security"
)

type SeedUsers interface {
	GetByEmail(ctx context.Context, email string) (user.User, error)
	Create(ctx context.Context, u user.User) (user.User, error)
}

// EnsureSeedUser creates the configured bootstrap account once. It reports
// whether a user was created and is a no-op when no seed user is configured.
func EnsureSeedUser(ctx context.Context, users SeedUsers, cfg config.Config) (bool, error) {
	if cfg.SeedUserEmail == "" || cfg.SeedUserPassword == "" {
		return false, nil
	}

	email := user.NormalizeEmail(cfg.SeedUserEmail)

	_, err := users.GetByEmail(ctx, email)
	if err == nil {
		return false, nil
	}

	if !errors.Is(err, user.ErrNotFound) {
		return false, fmt.Errorf("look up seed user: %w", err)
	}

	hash, err := security.HashPassword(cfg.SeedUserPassword)
	if err != nil {
		return false, err
	}

	name := cfg.SeedUserName
	if name == "" {
		name = email
	}

	_, err = users.Create(ctx, user.User{
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	})
	if errors.Is(err, user.ErrEmailTaken) {
		// another instance won the race
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("create seed user: %w", err)
	}

	return true, nil
}

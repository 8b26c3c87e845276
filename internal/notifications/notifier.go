package notifications

import (
	"context"

	"github.com/geocoder89/inventoryhub/internal/domain/role"
)

type AccessGrantedInput struct {
	Email         string
	Name          string
	InventoryID   int64
	InventoryName string
	Role          role.Role
}

type Notifier interface {
	SendAccessGranted(ctx context.Context, input AccessGrantedInput) error
}

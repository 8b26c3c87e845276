package authz

import (
	"github.com/geocoder89/inventoryhub/internal/domain/inventory"
	"github.com/geocoder89/inventoryhub/internal/domain/role"
	"github.com/geocoder89/inventoryhub/internal/domain/user"
)

// Scope is handed to a handler once the actor has been authorized inside an inventory.
type Scope struct {
	Actor     user.User
	Inventory inventory.Inventory
	Role      role.Role
}

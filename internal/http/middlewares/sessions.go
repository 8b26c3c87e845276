package middlewares

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/geocoder89/inventoryhub/internal/accounts"
	"github.com/geocoder89/inventoryhub/internal/authz"
	"github.com/geocoder89/inventoryhub/internal/domain/inventory"
	"github.com/geocoder89/inventoryhub/internal/domain/role"
	"github.com/geocoder89/inventoryhub/internal/domain/user"
	"github.com/geocoder89/inventoryhub/internal/http/handlers"
)

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (user.User, error)
}

// InventoryLoader may serve GetInventory from a cache; LoadInventory always
// reads the store.
type InventoryLoader interface {
	GetInventory(ctx context.Context, id int64) (inventory.Inventory, error)
	LoadInventory(ctx context.Context, id int64) (inventory.Inventory, error)
}

type Authorizer interface {
	Check(ctx context.Context, userID, inventoryID int64, required role.Role) (authz.Decision, error)
}

// Sessions turns the session cookie into an explicit identity argument.
// Handlers wrapped by Authed or Scoped never run for a rejected request.
type Sessions struct {
	accounts    Authenticator
	inventories InventoryLoader
	gate        Authorizer
	cookies     handlers.CookiePolicy
	logger      *slog.Logger
}

func NewSessions(accounts Authenticator, inventories InventoryLoader, gate Authorizer, cookies handlers.CookiePolicy, logger *slog.Logger) *Sessions {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sessions{
		accounts:    accounts,
		inventories: inventories,
		gate:        gate,
		cookies:     cookies,
		logger:      logger,
	}
}

// Authed runs next with the user named by a valid session cookie.
func (s *Sessions) Authed(next func(*gin.Context, user.User)) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, ok := s.resolve(c)
		if !ok {
			return
		}
		next(c, u)
	}
}

// Scoped additionally loads the :inventoryId inventory and runs next only when
// the user holds at least required in it. The role check and the 404/403
// choice always read the store; only an allowed member's inventory body may
// come from the cache, at most one TTL old.
func (s *Sessions) Scoped(required role.Role, next func(*gin.Context, authz.Scope)) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, ok := s.resolve(c)
		if !ok {
			return
		}

		invID, ok := handlers.PathNumber(c, "inventoryId")
		if !ok {
			return
		}

		ctx := c.Request.Context()

		d, err := s.gate.Check(ctx, u.ID, invID, required)
		if err != nil {
			s.logger.ErrorContext(ctx, "authz.check_failed", "inventory_id", invID, "user_id", u.ID, "err", err)
			handlers.RespondInternal(c, "Could not check permissions")
			return
		}

		load := s.inventories.GetInventory
		if d.Held == "" {
			// a non-member gets 404 for a missing inventory, 403 otherwise
			load = s.inventories.LoadInventory
		}

		inv, err := load(ctx, invID)
		if err != nil {
			if errors.Is(err, inventory.ErrNotFound) {
				handlers.RespondNotFound(c, "Inventory not found")
				return
			}
			s.logger.ErrorContext(ctx, "authz.load_inventory_failed", "inventory_id", invID, "err", err)
			handlers.RespondInternal(c, "Could not load inventory")
			return
		}

		if !d.Allowed {
			handlers.RespondForbidden(c, "Requestor doesn't have the "+string(required)+" role or higher for this inventory.")
			return
		}

		next(c, authz.Scope{Actor: u, Inventory: inv, Role: d.Held})
	}
}

func (s *Sessions) resolve(c *gin.Context) (user.User, bool) {
	token, err := c.Cookie(handlers.SessionCookieName)
	if err != nil || token == "" {
		handlers.RespondUnauthorized(c, "unauthorized", "Invalid credentials (need valid JWT as cookie)")
		return user.User{}, false
	}

	u, err := s.accounts.Authenticate(c.Request.Context(), token)
	switch {
	case err == nil:
		return u, true
	case errors.Is(err, accounts.ErrAccountGone):
		s.cookies.Clear(c)
		handlers.RespondUnauthorized(c, "account_gone", "Account doesn't exist; token invalid")
	case errors.Is(err, accounts.ErrInvalidSession):
		s.cookies.Clear(c)
		handlers.RespondUnauthorized(c, "unauthorized", "Invalid credentials (need valid JWT as cookie)")
	default:
		s.logger.ErrorContext(c.Request.Context(), "session.resolve_failed", "err", err)
		handlers.RespondInternal(c, "Could not verify session")
	}

	return user.User{}, false
}

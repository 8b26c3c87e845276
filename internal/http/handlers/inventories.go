package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/geocoder89/inventoryhub/internal/authz"
	"github.com/geocoder89/inventoryhub/internal/cache"
	"github.com/geocoder89/inventoryhub/internal/domain/inventory"
	"github.com/geocoder89/inventoryhub/internal/domain/user"
)

type InventoryStore interface {
	GetInventory(ctx context.Context, id int64) (inventory.Inventory, error)
	ListForUser(ctx context.Context, userID int64) ([]inventory.Summary, error)
	DeleteInventory(ctx context.Context, id int64) error
}

type MembershipManager interface {
	Create(ctx context.Context, ownerID int64, name string, admins, writeables, readables []int64) (inventory.Inventory, error)
	Replace(ctx context.Context, inventoryID int64, name string, ownerID int64, admins, writeables, readables []int64) (inventory.Inventory, error)
}

// CachedInventories serves inventory lookups through a short-lived cache.
// Writers invalidate their entry on this process; other replicas see the
// change once the TTL expires.
type CachedInventories struct {
	store InventoryStore
	cache *cache.Cache[inventory.Inventory]
}

func NewCachedInventories(store InventoryStore, c *cache.Cache[inventory.Inventory]) *CachedInventories {
	return &CachedInventories{store: store, cache: c}
}

func (c *CachedInventories) GetInventory(ctx context.Context, id int64) (inventory.Inventory, error) {
	key := cache.InventoryKey(id)

	if inv, ok := c.cache.Get(key); ok {
		return inv, nil
	}

	inv, err := c.store.GetInventory(ctx, id)
	if err != nil {
		return inventory.Inventory{}, err
	}

	c.cache.Set(key, inv)
	return inv, nil
}

// LoadInventory reads the store and refreshes the cached entry.
func (c *CachedInventories) LoadInventory(ctx context.Context, id int64) (inventory.Inventory, error) {
	key := cache.InventoryKey(id)

	inv, err := c.store.GetInventory(ctx, id)
	if err != nil {
		if errors.Is(err, inventory.ErrNotFound) {
			c.cache.Delete(key)
		}
		return inventory.Inventory{}, err
	}

	c.cache.Set(key, inv)
	return inv, nil
}

func (c *CachedInventories) Invalidate(id int64) {
	c.cache.Delete(cache.InventoryKey(id))
}

type InventoriesHandler struct {
	store   InventoryStore
	manager MembershipManager
	cached  *CachedInventories
}

func NewInventoriesHandler(store InventoryStore, manager MembershipManager, cached *CachedInventories) *InventoriesHandler {
	return &InventoriesHandler{store: store, manager: manager, cached: cached}
}

func (h *InventoriesHandler) List(ctx *gin.Context, actor user.User) {
	items, err := h.store.ListForUser(ctx.Request.Context(), actor.ID)
	if err != nil {
		RespondInternal(ctx, "Could not list inventories")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"items": items,
		"count": len(items),
	})
}

// Create makes the acting user the owner of a new inventory.
func (h *InventoriesHandler) Create(ctx *gin.Context, actor user.User) {
	var req inventory.CreateInventoryRequest

	if !BindJSON(ctx, &req) {
		return
	}

	inv, err := h.manager.Create(ctx.Request.Context(), actor.ID, req.Name, req.Admins, req.Writeables, req.Readables)
	if err != nil {
		RespondDomainError(ctx, err, "Could not add inventory")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"status":  http.StatusOK,
		"message": "Added inventory",
		"inventory": gin.H{
			"id":   inv.ID,
			"name": inv.Name,
		},
	})
}

func (h *InventoriesHandler) Get(ctx *gin.Context, scope authz.Scope) {
	RespondJSONWithETag(ctx, http.StatusOK, scope.Inventory)
}

func (h *InventoriesHandler) Replace(ctx *gin.Context, scope authz.Scope) {
	var req inventory.ReplaceInventoryRequest

	if !BindJSON(ctx, &req) {
		return
	}

	inv, err := h.manager.Replace(ctx.Request.Context(), scope.Inventory.ID, req.Name, req.Owner, req.Admins, req.Writeables, req.Readables)
	h.cached.Invalidate(scope.Inventory.ID)
	if err != nil {
		RespondDomainError(ctx, err, "Could not update inventory")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"status":    http.StatusOK,
		"message":   "Updated inventory",
		"inventory": inv,
	})
}

func (h *InventoriesHandler) Delete(ctx *gin.Context, scope authz.Scope) {
	err := h.store.DeleteInventory(ctx.Request.Context(), scope.Inventory.ID)
	h.cached.Invalidate(scope.Inventory.ID)
	if err != nil {
		RespondDomainError(ctx, err, "Could not delete inventory")
		return
	}

	ctx.Status(http.StatusNoContent)
}

package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/geocoder89/inventoryhub/internal/authz"
	"github.com/geocoder89/inventoryhub/internal/domain/category"
)

type CategoryStore interface {
	ListCategories(ctx context.Context, inventoryID int64) ([]category.Category, error)
	GetCategory(ctx context.Context, inventoryID, number int64) (category.Category, error)
	CreateCategory(ctx context.Context, c category.Category) (category.Category, error)
	UpdateCategory(ctx context.Context, c category.Category) (category.Category, error)
	DeleteCategory(ctx context.Context, inventoryID, number int64) error
}

type CategoriesHandler struct {
	store CategoryStore
}

func NewCategoriesHandler(store CategoryStore) *CategoriesHandler {
	return &CategoriesHandler{store: store}
}

func (h *CategoriesHandler) List(ctx *gin.Context, scope authz.Scope) {
	items, err := h.store.ListCategories(ctx.Request.Context(), scope.Inventory.ID)
	if err != nil {
		RespondInternal(ctx, "Could not list categories")
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, gin.H{
		"items": items,
		"count": len(items),
	})
}

func (h *CategoriesHandler) Get(ctx *gin.Context, scope authz.Scope) {
	number, ok := PathNumber(ctx, "categoryNo")
	if !ok {
		return
	}

	c, err := h.store.GetCategory(ctx.Request.Context(), scope.Inventory.ID, number)
	if err != nil {
		RespondDomainError(ctx, err, "Could not fetch category")
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, c)
}

func (h *CategoriesHandler) Create(ctx *gin.Context, scope authz.Scope) {
	h.upsert(ctx, scope, true)
}

// Update replaces name, parent and children; omitted children means none.
func (h *CategoriesHandler) Update(ctx *gin.Context, scope authz.Scope) {
	h.upsert(ctx, scope, false)
}

func (h *CategoriesHandler) upsert(ctx *gin.Context, scope authz.Scope, create bool) {
	number, ok := PathNumber(ctx, "categoryNo")
	if !ok {
		return
	}

	var req category.UpsertCategoryRequest
	if !BindJSON(ctx, &req) {
		return
	}

	c := category.Category{
		InventoryID: scope.Inventory.ID,
		Number:      number,
		Name:        req.Name,
		Parent:      req.Parent,
		Children:    req.Children,
	}

	var (
		out category.Category
		err error
	)
	if create {
		out, err = h.store.CreateCategory(ctx.Request.Context(), c)
	} else {
		out, err = h.store.UpdateCategory(ctx.Request.Context(), c)
	}
	if err != nil {
		RespondDomainError(ctx, err, "Could not save category")
		return
	}

	status := http.StatusOK
	if create {
		status = http.StatusCreated
	}
	ctx.JSON(status, out)
}

func (h *CategoriesHandler) Delete(ctx *gin.Context, scope authz.Scope) {
	number, ok := PathNumber(ctx, "categoryNo")
	if !ok {
		return
	}

	if err := h.store.DeleteCategory(ctx.Request.Context(), scope.Inventory.ID, number); err != nil {
		RespondDomainError(ctx, err, "Could not delete category")
		return
	}

	ctx.Status(http.StatusNoContent)
}

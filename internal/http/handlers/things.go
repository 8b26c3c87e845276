package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/geocoder89/inventoryhub/internal/authz"
	"github.com/geocoder89/inventoryhub/internal/domain/thing"
)

type ThingStore interface {
	ListThings(ctx context.Context, inventoryID int64) ([]thing.Thing, error)
	GetThing(ctx context.Context, inventoryID, number int64) (thing.Thing, error)
	CreateThing(ctx context.Context, t thing.Thing) (thing.Thing, error)
	UpdateThing(ctx context.Context, t thing.Thing) (thing.Thing, error)
	DeleteThing(ctx context.Context, inventoryID, number int64) error

	ListStocks(ctx context.Context, inventoryID, thingNumber int64) ([]thing.Stock, error)
	GetStock(ctx context.Context, inventoryID, thingNumber, number int64) (thing.Stock, error)
	CreateStock(ctx context.Context, s thing.Stock) (thing.Stock, error)
	UpdateStock(ctx context.Context, s thing.Stock) (thing.Stock, error)
	DeleteStock(ctx context.Context, inventoryID, thingNumber, number int64) error
}

type ThingsHandler struct {
	store ThingStore
}

func NewThingsHandler(store ThingStore) *ThingsHandler {
	return &ThingsHandler{store: store}
}

func (h *ThingsHandler) List(ctx *gin.Context, scope authz.Scope) {
	items, err := h.store.ListThings(ctx.Request.Context(), scope.Inventory.ID)
	if err != nil {
		RespondInternal(ctx, "Could not list things")
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, gin.H{
		"items": items,
		"count": len(items),
	})
}

func (h *ThingsHandler) Get(ctx *gin.Context, scope authz.Scope) {
	number, ok := PathNumber(ctx, "thingNo")
	if !ok {
		return
	}

	t, err := h.store.GetThing(ctx.Request.Context(), scope.Inventory.ID, number)
	if err != nil {
		RespondDomainError(ctx, err, "Could not fetch thing")
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, t)
}

func (h *ThingsHandler) Create(ctx *gin.Context, scope authz.Scope) {
	var req thing.UpsertThingRequest
	if !BindJSON(ctx, &req) {
		return
	}

	t, err := h.store.CreateThing(ctx.Request.Context(), thing.Thing{
		InventoryID: scope.Inventory.ID,
		Name:        req.Name,
		Categories:  req.Categories,
	})
	if err != nil {
		RespondDomainError(ctx, err, "Could not create thing")
		return
	}

	ctx.JSON(http.StatusCreated, t)
}

func (h *ThingsHandler) Update(ctx *gin.Context, scope authz.Scope) {
	number, ok := PathNumber(ctx, "thingNo")
	if !ok {
		return
	}

	var req thing.UpsertThingRequest
	if !BindJSON(ctx, &req) {
		return
	}

	t, err := h.store.UpdateThing(ctx.Request.Context(), thing.Thing{
		InventoryID: scope.Inventory.ID,
		Number:      number,
		Name:        req.Name,
		Categories:  req.Categories,
	})
	if err != nil {
		RespondDomainError(ctx, err, "Could not update thing")
		return
	}

	ctx.JSON(http.StatusOK, t)
}

func (h *ThingsHandler) Delete(ctx *gin.Context, scope authz.Scope) {
	number, ok := PathNumber(ctx, "thingNo")
	if !ok {
		return
	}

	if err := h.store.DeleteThing(ctx.Request.Context(), scope.Inventory.ID, number); err != nil {
		RespondDomainError(ctx, err, "Could not delete thing")
		return
	}

	ctx.Status(http.StatusNoContent)
}

// stocks

func (h *ThingsHandler) ListStocks(ctx *gin.Context, scope authz.Scope) {
	thingNo, ok := PathNumber(ctx, "thingNo")
	if !ok {
		return
	}

	items, err := h.store.ListStocks(ctx.Request.Context(), scope.Inventory.ID, thingNo)
	if err != nil {
		RespondDomainError(ctx, err, "Could not list stocks")
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, gin.H{
		"items": items,
		"count": len(items),
	})
}

func (h *ThingsHandler) GetStock(ctx *gin.Context, scope authz.Scope) {
	thingNo, ok := PathNumber(ctx, "thingNo")
	if !ok {
		return
	}
	stockNo, ok := PathNumber(ctx, "stockNo")
	if !ok {
		return
	}

	s, err := h.store.GetStock(ctx.Request.Context(), scope.Inventory.ID, thingNo, stockNo)
	if err != nil {
		RespondDomainError(ctx, err, "Could not fetch stock")
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, s)
}

func (h *ThingsHandler) CreateStock(ctx *gin.Context, scope authz.Scope) {
	thingNo, ok := PathNumber(ctx, "thingNo")
	if !ok {
		return
	}

	var req thing.UpsertStockRequest
	if !BindJSON(ctx, &req) {
		return
	}

	s, err := h.store.CreateStock(ctx.Request.Context(), thing.Stock{
		InventoryID: scope.Inventory.ID,
		ThingNumber: thingNo,
		ExDate:      req.ExDate,
		Quantity:    req.Quantity,
		PercentLeft: req.PercentLeftOrDefault(),
	})
	if err != nil {
		RespondDomainError(ctx, err, "Could not create stock")
		return
	}

	ctx.JSON(http.StatusCreated, s)
}

func (h *ThingsHandler) UpdateStock(ctx *gin.Context, scope authz.Scope) {
	thingNo, ok := PathNumber(ctx, "thingNo")
	if !ok {
		return
	}
	stockNo, ok := PathNumber(ctx, "stockNo")
	if !ok {
		return
	}

	var req thing.UpsertStockRequest
	if !BindJSON(ctx, &req) {
		return
	}

	s, err := h.store.UpdateStock(ctx.Request.Context(), thing.Stock{
		InventoryID: scope.Inventory.ID,
		ThingNumber: thingNo,
		Number:      stockNo,
		ExDate:      req.ExDate,
		Quantity:    req.Quantity,
		PercentLeft: req.PercentLeftOrDefault(),
	})
	if err != nil {
		RespondDomainError(ctx, err, "Could not update stock")
		return
	}

	ctx.JSON(http.StatusOK, s)
}

func (h *ThingsHandler) DeleteStock(ctx *gin.Context, scope authz.Scope) {
	thingNo, ok := PathNumber(ctx, "thingNo")
	if !ok {
		return
	}
	stockNo, ok := PathNumber(ctx, "stockNo")
	if !ok {
		return
	}

	if err := h.store.DeleteStock(ctx.Request.Context(), scope.Inventory.ID, thingNo, stockNo); err != nil {
		RespondDomainError(ctx, err, "Could not delete stock")
		return
	}

	ctx.Status(http.StatusNoContent)
}

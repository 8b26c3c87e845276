package thing

import (
	"errors"
	"time"
)

var (
	ErrNotFound      = errors.New("thing not found")
	ErrStockNotFound = errors.New("stock not found")
	// ErrUnknownCategory is returned when a thing references a category missing from its inventory.
	ErrUnknownCategory = errors.New("one or more categories could not be found")
)

// Thing is numbered per inventory; numbers are assigned by the server.
type Thing struct {
	InventoryID   int64   `json:"-"`
	Number        int64   `json:"number"`
	Name          string  `json:"name"`
	Categories    []int64 `json:"categories"`
	TotalQuantity int64   `json:"totalQuantity"`
}

// Stock is one batch of a thing, numbered per thing.
type Stock struct {
	InventoryID int64      `json:"-"`
	ThingNumber int64      `json:"-"`
	Number      int64      `json:"number"`
	ExDate      *time.Time `json:"exDate,omitempty"`
	Quantity    int64      `json:"quantity"`
	PercentLeft int        `json:"percentLeft"`
	AddedOn     time.Time  `json:"addedOn"`
}

type UpsertThingRequest struct {
	Name       string  `json:"name" binding:"required,min=1,max=200"`
	Categories []int64 `json:"categories"`
}

type UpsertStockRequest struct {
	ExDate      *time.Time `json:"exDate"`
	Quantity    int64      `json:"quantity" binding:"gte=0"`
	PercentLeft *int       `json:"percentLeft" binding:"omitempty,gte=0,lte=100"`
}

// PercentLeftOrDefault treats a missing value as a full batch.
func (r UpsertStockRequest) PercentLeftOrDefault() int {
	if r.PercentLeft == nil {
		return 100
	}
	return *r.PercentLeft
}

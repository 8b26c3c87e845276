package jobs

import (
	"github.com/geocoder89/inventoryhub/internal/domain/role"
)

// AccessGrantedPayload stays ID-based; the worker loads the recipient itself.
type AccessGrantedPayload struct {
	InventoryID   int64     `json:"inventoryId"`
	InventoryName string    `json:"inventoryName"`
	UserID        int64     `json:"userId"`
	Role          role.Role `json:"role"`
	RequestID     string    `json:"requestId,omitempty"`
}

// NewAccessGranted builds the outbox request for one granted membership.
func NewAccessGranted(p AccessGrantedPayload) (CreateRequest, error) {
	if err := ValidatePayload(TypeAccessGranted, p); err != nil {
		return CreateRequest{}, err
	}

	b, err := EncodePayload(TypeAccessGranted, p)
	if err != nil {
		return CreateRequest{}, err
	}

	return CreateRequest{Type: TypeAccessGranted, Payload: b}, nil
}

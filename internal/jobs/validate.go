package jobs

import "strings"

// ValidatePayload performs minimal validation on decoded payloads.
func ValidatePayload(t Type, payload any) error {
	if !t.IsValid() {
		return ErrInvalidJobType
	}

	switch t {
	case TypeAccessGranted:
		var p AccessGrantedPayload
		switch v := payload.(type) {
		case AccessGrantedPayload:
			p = v
		case *AccessGrantedPayload:
			p = *v
		default:
			return ErrPayloadTypeMismatch
		}
		if p.InventoryID <= 0 || p.UserID <= 0 || !p.Role.IsValid() || strings.TrimSpace(p.InventoryName) == "" {
			return ErrInvalidJobPayload
		}
		return nil

	default:
		return ErrInvalidJobType
	}
}

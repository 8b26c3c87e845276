package jobs

type Type string

const (
	// TypeAccessGranted tells a user they were given a role in an inventory.
	TypeAccessGranted Type = "inventory.access_granted"
)

func (t Type) IsValid() bool {
	switch t {
	case TypeAccessGranted:
		return true
	default:
		return false
	}
}

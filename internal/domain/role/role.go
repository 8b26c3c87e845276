package role

import (
	"errors"
	"strings"
)

// Role is the privilege a user holds inside one inventory.
type Role string

const (
	Owner Role = "owner"
	Admin Role = "admin"
	Write Role = "write"
	Read  Role = "read"
)

var ErrUnknownRole = errors.New("unknown role")

// Comparison is the sign of a role comparison.
type Comparison int

const (
	Lower  Comparison = -1
	Equal  Comparison = 0
	Higher Comparison = 1
)

func (c Comparison) String() string {
	switch c {
	case Lower:
		return "lower"
	case Equal:
		return "equal"
	case Higher:
		return "higher"
	default:
		return "invalid"
	}
}

// All lists the roles from most to least privileged.
func All() []Role {
	return []Role{Owner, Admin, Write, Read}
}

// rank is the privilege level of a role, independent of declaration order.
func rank(r Role) (int, bool) {
	switch r {
	case Owner:
		return 4, true
	case Admin:
		return 3, true
	case Write:
		return 2, true
	case Read:
		return 1, true
	default:
		return 0, false
	}
}

func (r Role) IsValid() bool {
	_, ok := rank(r)
	return ok
}

func Parse(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))

	if !r.IsValid() {
		return "", ErrUnknownRole
	}

	return r, nil
}

// Compare reports whether candidate is Lower, Equal or Higher than required.
func Compare(candidate, required Role) (Comparison, error) {
	c, ok := rank(candidate)
	if !ok {
		return Lower, ErrUnknownRole
	}

	r, ok := rank(required)
	if !ok {
		return Lower, ErrUnknownRole
	}

	switch {
	case c == r:
		return Equal, nil
	case c > r:
		return Higher, nil
	default:
		return Lower, nil
	}
}

// AtLeast is true when r grants everything required grants.
// Unknown values never satisfy a requirement.
func (r Role) AtLeast(required Role) bool {
	cmp, err := Compare(r, required)
	if err != nil {
		return false
	}

	return cmp == Equal || cmp == Higher
}

package inventory

import (
	"errors"
	"time"

	"github.com/geocoder89/inventoryhub/internal/domain/role"
)

var (
	ErrNotFound           = errors.New("inventory not found")
	ErrMembershipNotFound = errors.New("membership not found")
	// ErrUnknownUser is returned when a member set references a user that does not exist.
	ErrUnknownUser = errors.New("one or more specified users could not be found")
	// ErrDuplicateMember is returned when one user would hold two roles in the same inventory.
	ErrDuplicateMember = errors.New("a user can't hold multiple roles in one inventory")
)

type Inventory struct {
	ID        int64        `json:"id"`
	Name      string       `json:"name"`
	CreatedAt time.Time    `json:"createdOn"`
	Members   []Membership `json:"users"`
}

// Membership binds one user to one inventory with exactly one role.
type Membership struct {
	InventoryID int64     `json:"-"`
	UserID      int64     `json:"userId"`
	Role        role.Role `json:"role"`
}

// Summary is an inventory as seen by one of its members.
type Summary struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdOn"`
	Role      role.Role `json:"role"`
}

// MemberSet is the full desired membership of an inventory.
type MemberSet struct {
	Owner      int64
	Admins     []int64
	Writeables []int64
	Readables  []int64
}

// UserIDs returns every referenced id in declaration order, duplicates included.
func (s MemberSet) UserIDs() []int64 {
	ids := make([]int64, 0, 1+len(s.Admins)+len(s.Writeables)+len(s.Readables))
	ids = append(ids, s.Owner)
	ids = append(ids, s.Admins...)
	ids = append(ids, s.Writeables...)
	ids = append(ids, s.Readables...)

	return ids
}

// Memberships expands the set into one membership per (user, role) and
// rejects any user that appears more than once.
func (s MemberSet) Memberships(inventoryID int64) ([]Membership, error) {
	out := make([]Membership, 0, 1+len(s.Admins)+len(s.Writeables)+len(s.Readables))

	out = append(out, Membership{InventoryID: inventoryID, UserID: s.Owner, Role: role.Owner})

	groups := []struct {
		ids  []int64
		role role.Role
	}{
		{s.Admins, role.Admin},
		{s.Writeables, role.Write},
		{s.Readables, role.Read},
	}

	for _, g := range groups {
		for _, id := range g.ids {
			out = append(out, Membership{InventoryID: inventoryID, UserID: id, Role: g.role})
		}
	}

	seen := make(map[int64]struct{}, len(out))
	for _, m := range out {
		if _, dup := seen[m.UserID]; dup {
			return nil, ErrDuplicateMember
		}
		seen[m.UserID] = struct{}{}
	}

	return out, nil
}

// RoleOf returns the role a user holds in the inventory's loaded member list.
func (inv Inventory) RoleOf(userID int64) (role.Role, bool) {
	for _, m := range inv.Members {
		if m.UserID == userID {
			return m.Role, true
		}
	}

	return "", false
}

// Grants lists memberships in next that are new or changed compared to prev.
func Grants(prev, next []Membership) []Membership {
	held := make(map[int64]role.Role, len(prev))
	for _, m := range prev {
		held[m.UserID] = m.Role
	}

	out := make([]Membership, 0)
	for _, m := range next {
		if r, ok := held[m.UserID]; ok && r == m.Role {
			continue
		}
		out = append(out, m)
	}

	return out
}

type CreateInventoryRequest struct {
	Name       string  `json:"name" binding:"required,min=1,max=200"`
	Admins     []int64 `json:"admins"`
	Writeables []int64 `json:"writeables"`
	Readables  []int64 `json:"readables"`
}

type ReplaceInventoryRequest struct {
	Name       string  `json:"name" binding:"required,min=1,max=200"`
	Owner      int64   `json:"owner" binding:"required,gt=0"`
	Admins     []int64 `json:"admins"`
	Writeables []int64 `json:"writeables"`
	Readables  []int64 `json:"readables"`
}

package memory

import (
	"cmp"
	"context"
	"slices"

	"github.com/geocoder89/inventoryhub/internal/domain/inventory"
	"github.com/geocoder89/inventoryhub/internal/domain/role"
	"github.com/geocoder89/inventoryhub/internal/jobs"
)

type memTx struct {
	store *Store
	st    *state
}

func (tx *memTx) CreateInventory(_ context.Context, name string) (inventory.Inventory, error) {
	if err := tx.store.injected("inventories.create"); err != nil {
		return inventory.Inventory{}, err
	}
	tx.st.nextInvID++
	inv := inventory.Inventory{ID: tx.st.nextInvID, Name: name, CreatedAt: tx.store.now().UTC()}
	tx.st.inventories[inv.ID] = inv
	return inv, nil
}

func (tx *memTx) UpdateInventoryName(_ context.Context, id int64, name string) (inventory.Inventory, error) {
	if err := tx.store.injected("inventories.update_name"); err != nil {
		return inventory.Inventory{}, err
	}
	inv, ok := tx.st.inventories[id]
	if !ok {
		return inventory.Inventory{}, inventory.ErrNotFound
	}
	inv.Name = name
	tx.st.inventories[id] = inv
	return inv, nil
}

func (tx *memTx) ListMemberships(_ context.Context, inventoryID int64) ([]inventory.Membership, error) {
	return membersOf(tx.st, inventoryID), nil
}

func (tx *memTx) ReplaceMemberships(_ context.Context, inventoryID int64, members []inventory.Membership) error {
	if err := tx.store.injected("memberships.replace"); err != nil {
		return err
	}
	next := make(map[int64]role.Role, len(members))
	for _, m := range members {
		if _, ok := tx.st.users[m.UserID]; !ok {
			return inventory.ErrUnknownUser
		}
		if _, dup := next[m.UserID]; dup {
			return inventory.ErrDuplicateMember
		}
		next[m.UserID] = m.Role
	}
	tx.st.members[inventoryID] = next
	return nil
}

func (tx *memTx) EnqueueJob(_ context.Context, req jobs.CreateRequest) error {
	if err := tx.store.injected("jobs.create_tx"); err != nil {
		return err
	}
	j := jobs.New(req)
	tx.st.jobs[j.ID] = j
	tx.st.jobOrder = append(tx.st.jobOrder, j.ID)
	return nil
}

func rank(r role.Role) int {
	switch r {
	case role.Owner:
		return 0
	case role.Admin:
		return 1
	case role.Write:
		return 2
	default:
		return 3
	}
}

// membersOf lists memberships owner first, then by role, then by user id.
func membersOf(st *state, inventoryID int64) []inventory.Membership {
	out := make([]inventory.Membership, 0, len(st.members[inventoryID]))
	for uid, r := range st.members[inventoryID] {
		out = append(out, inventory.Membership{InventoryID: inventoryID, UserID: uid, Role: r})
	}
	slices.SortFunc(out, func(a, b inventory.Membership) int {
		if d := rank(a.Role) - rank(b.Role); d != 0 {
			return d
		}
		return cmp.Compare(a.UserID, b.UserID)
	})
	return out
}

func (s *Store) GetMembership(_ context.Context, userID, inventoryID int64) (inventory.Membership, error) {
	var out inventory.Membership
	err := s.read("memberships.get", func(st *state) error {
		r, ok := st.members[inventoryID][userID]
		if !ok {
			return inventory.ErrMembershipNotFound
		}
		out = inventory.Membership{InventoryID: inventoryID, UserID: userID, Role: r}
		return nil
	})
	return out, err
}

func (s *Store) GetInventory(_ context.Context, id int64) (inventory.Inventory, error) {
	var out inventory.Inventory
	err := s.read("inventories.get", func(st *state) error {
		inv, ok := st.inventories[id]
		if !ok {
			return inventory.ErrNotFound
		}
		inv.Members = membersOf(st, id)
		out = inv
		return nil
	})
	return out, err
}

func (s *Store) ListForUser(_ context.Context, userID int64) ([]inventory.Summary, error) {
	out := make([]inventory.Summary, 0)
	err := s.read("inventories.list_for_user", func(st *state) error {
		for invID, m := range st.members {
			r, ok := m[userID]
			if !ok {
				continue
			}
			inv := st.inventories[invID]
			out = append(out, inventory.Summary{ID: inv.ID, Name: inv.Name, CreatedAt: inv.CreatedAt, Role: r})
		}
		return nil
	})
	slices.SortFunc(out, func(a, b inventory.Summary) int { return cmp.Compare(a.ID, b.ID) })
	return out, err
}

// DeleteInventory removes the inventory with its memberships and catalog.
func (s *Store) DeleteInventory(_ context.Context, id int64) error {
	return s.write("inventories.delete", func(st *state) error {
		if _, ok := st.inventories[id]; !ok {
			return inventory.ErrNotFound
		}
		delete(st.inventories, id)
		delete(st.members, id)
		delete(st.categories, id)
		delete(st.things, id)
		for k := range st.stocks {
			if k.inventoryID == id {
				delete(st.stocks, k)
			}
		}
		return nil
	})
}

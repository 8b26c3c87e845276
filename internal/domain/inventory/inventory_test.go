package inventory_test

import (
	"errors"
	"testing"

	"github.com/geocoder89/inventoryhub/internal/domain/inventory"
	"github.com/geocoder89/inventoryhub/internal/domain/role"
)

func TestMemberships_ExpandsRoles(t *testing.T) {
	set := inventory.MemberSet{Owner: 1, Admins: []int64{2}, Writeables: []int64{3}, Readables: []int64{4, 5}}

	got, err := set.Memberships(9)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []inventory.Membership{
		{InventoryID: 9, UserID: 1, Role: role.Owner},
		{InventoryID: 9, UserID: 2, Role: role.Admin},
		{InventoryID: 9, UserID: 3, Role: role.Write},
		{InventoryID: 9, UserID: 4, Role: role.Read},
		{InventoryID: 9, UserID: 5, Role: role.Read},
	}

	if len(got) != len(want) {
		t.Fatalf("got %d memberships, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("membership %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestMemberships_RejectsDuplicates(t *testing.T) {
	tests := []struct {
		name string
		set  inventory.MemberSet
	}{
		{name: "admin and readable", set: inventory.MemberSet{Owner: 1, Admins: []int64{2}, Readables: []int64{2}}},
		{name: "owner also writer", set: inventory.MemberSet{Owner: 1, Writeables: []int64{1}}},
		{name: "twice in one list", set: inventory.MemberSet{Owner: 1, Readables: []int64{3, 3}}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.set.Memberships(1)
			if !errors.Is(err, inventory.ErrDuplicateMember) {
				t.Fatalf("got %v, want ErrDuplicateMember", err)
			}
		})
	}
}

func TestGrants(t *testing.T) {
	prev := []inventory.Membership{
		{UserID: 1, Role: role.Owner},
		{UserID: 2, Role: role.Read},
		{UserID: 3, Role: role.Write},
	}
	next := []inventory.Membership{
		{UserID: 1, Role: role.Owner},
		{UserID: 2, Role: role.Admin},
		{UserID: 4, Role: role.Read},
	}

	got := inventory.Grants(prev, next)
	if len(got) != 2 || got[0].UserID != 2 || got[1].UserID != 4 {
		t.Fatalf("unexpected grants: %+v", got)
	}
}

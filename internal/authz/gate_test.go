package authz

import (
	"context"
	"errors"
	"testing"

	"github.com/geocoder89/inventoryhub/internal/domain/inventory"
	"github.com/geocoder89/inventoryhub/internal/domain/role"
)

type stubMemberships struct {
	byKey map[[2]int64]role.Role
	err   error
	calls int
}

func (s *stubMemberships) GetMembership(_ context.Context, userID, inventoryID int64) (inventory.Membership, error) {
	s.calls++
	if s.err != nil {
		return inventory.Membership{}, s.err
	}
	r, ok := s.byKey[[2]int64{userID, inventoryID}]
	if !ok {
		return inventory.Membership{}, inventory.ErrMembershipNotFound
	}
	return inventory.Membership{InventoryID: inventoryID, UserID: userID, Role: r}, nil
}

func TestGate_NonMemberDeniedForEveryRole(t *testing.T) {
	g := NewGate(&stubMemberships{byKey: map[[2]int64]role.Role{}}, nil)

	for _, required := range role.All() {
		d, err := g.Check(context.Background(), 1, 10, required)
		if err != nil {
			t.Fatalf("%s: unexpected error %v", required, err)
		}
		if d.Allowed {
			t.Fatalf("%s: non-member must be denied", required)
		}
		if d.Held != "" {
			t.Fatalf("%s: expected no held role, got %q", required, d.Held)
		}
	}
}

func TestGate_MatchesRoleOrdering(t *testing.T) {
	for _, held := range role.All() {
		for _, required := range role.All() {
			store := &stubMemberships{byKey: map[[2]int64]role.Role{{1, 10}: held}}
			g := NewGate(store, nil)

			ok, err := g.IsAuthorized(context.Background(), 1, 10, required)
			if err != nil {
				t.Fatalf("held=%s required=%s: %v", held, required, err)
			}

			cmp, _ := role.Compare(held, required)
			want := cmp == role.Equal || cmp == role.Higher
			if ok != want {
				t.Fatalf("held=%s required=%s: got %v want %v", held, required, ok, want)
			}
		}
	}
}

func TestGate_MembershipIsPerInventory(t *testing.T) {
	store := &stubMemberships{byKey: map[[2]int64]role.Role{{1, 10}: role.Owner}}
	g := NewGate(store, nil)

	ok, err := g.IsAuthorized(context.Background(), 1, 11, role.Read)
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if ok {
		t.Fatalf("owner of inventory 10 must not read inventory 11")
	}
}

func TestGate_StoreFailureIsAnError(t *testing.T) {
	boom := errors.New("connection reset")
	g := NewGate(&stubMemberships{err: boom}, nil)

	ok, err := g.IsAuthorized(context.Background(), 1, 10, role.Read)
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
	if ok {
		t.Fatalf("store failure must not authorize")
	}
}

func TestGate_DecisionCarriesRoles(t *testing.T) {
	g := NewGate(&stubMemberships{byKey: map[[2]int64]role.Role{{2, 5}: role.Write}}, nil)

	d, err := g.Check(context.Background(), 2, 5, role.Admin)
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if d.Allowed || d.Held != role.Write || d.Required != role.Admin {
		t.Fatalf("unexpected decision %+v", d)
	}
}

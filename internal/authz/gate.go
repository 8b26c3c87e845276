package authz

import (
	"context"
	"errors"
	"fmt"

	"github.com/geocoder89/inventoryhub/internal/domain/inventory"
	"github.com/geocoder89/inventoryhub/internal/domain/role"
	"github.com/geocoder89/inventoryhub/internal/observability"
)

type MembershipReader interface {
	GetMembership(ctx context.Context, userID, inventoryID int64) (inventory.Membership, error)
}

// Decision is the outcome of one role check.
type Decision struct {
	Allowed  bool
	Held     role.Role // empty when the user is not a member
	Required role.Role
}

// Gate decides whether a user holds at least a given role in an inventory.
// It never writes.
type Gate struct {
	memberships MembershipReader
	prom        *observability.Prom
}

func NewGate(memberships MembershipReader, prom *observability.Prom) *Gate {
	return &Gate{memberships: memberships, prom: prom}
}

// Check denies non-members without error. Errors are store failures only.
func (g *Gate) Check(ctx context.Context, userID, inventoryID int64, required role.Role) (Decision, error) {
	d := Decision{Required: required}

	m, err := g.memberships.GetMembership(ctx, userID, inventoryID)
	if err != nil {
		if errors.Is(err, inventory.ErrMembershipNotFound) {
			g.prom.ObserveAuthz(string(required), false)
			return d, nil
		}
		return d, fmt.Errorf("load membership: %w", err)
	}

	d.Held = m.Role
	d.Allowed = m.Role.AtLeast(required)

	g.prom.ObserveAuthz(string(required), d.Allowed)

	return d, nil
}

func (g *Gate) IsAuthorized(ctx context.Context, userID, inventoryID int64, required role.Role) (bool, error) {
	d, err := g.Check(ctx, userID, inventoryID, required)
	if err != nil {
		return false, err
	}
	return d.Allowed, nil
}

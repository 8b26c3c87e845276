package membership

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/geocoder89/inventoryhub/internal/domain/inventory"
	"github.com/geocoder89/inventoryhub/internal/jobs"
	"github.com/geocoder89/inventoryhub/internal/observability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("inventoryhub/membership")

// Tx is the unit of work a membership replacement runs in.
type Tx interface {
	CreateInventory(ctx context.Context, name string) (inventory.Inventory, error)
	UpdateInventoryName(ctx context.Context, id int64, name string) (inventory.Inventory, error)
	ListMemberships(ctx context.Context, inventoryID int64) ([]inventory.Membership, error)
	ReplaceMemberships(ctx context.Context, inventoryID int64, members []inventory.Membership) error
	EnqueueJob(ctx context.Context, req jobs.CreateRequest) error
}

// Store runs fn inside one SERIALIZABLE transaction; any error from fn rolls back.
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

type UserResolver interface {
	// MissingUsers returns the ids among ids that do not exist.
	MissingUsers(ctx context.Context, ids []int64) ([]int64, error)
}

type Manager struct {
	store  Store
	users  UserResolver
	logger *slog.Logger
}

func NewManager(store Store, users UserResolver, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{store: store, users: users, logger: logger}
}

// Create makes a new inventory owned by ownerID with the given member lists.
func (m *Manager) Create(ctx context.Context, ownerID int64, name string, admins, writeables, readables []int64) (inventory.Inventory, error) {
	set := inventory.MemberSet{Owner: ownerID, Admins: admins, Writeables: writeables, Readables: readables}
	return m.ReplaceMembershipSet(ctx, inventory.Inventory{Name: name}, set)
}

// Replace renames an existing inventory and swaps its whole member set.
func (m *Manager) Replace(ctx context.Context, inventoryID int64, name string, ownerID int64, admins, writeables, readables []int64) (inventory.Inventory, error) {
	set := inventory.MemberSet{Owner: ownerID, Admins: admins, Writeables: writeables, Readables: readables}
	return m.ReplaceMembershipSet(ctx, inventory.Inventory{ID: inventoryID, Name: name}, set)
}

// ReplaceMembershipSet makes set the complete membership of inv. An inv with
// a zero ID is created. Either everything is written or nothing is.
func (m *Manager) ReplaceMembershipSet(ctx context.Context, inv inventory.Inventory, set inventory.MemberSet) (inventory.Inventory, error) {
	ctx, span := tracer.Start(ctx, "Membership.ReplaceSet", trace.WithAttributes(
		attribute.Int64("inventory.id", inv.ID),
		attribute.Int("members.count", len(set.UserIDs())),
	))
	defer span.End()

	missing, err := m.users.MissingUsers(ctx, set.UserIDs())
	if err != nil {
		fail(span, err, "resolve users")
		return inventory.Inventory{}, fmt.Errorf("resolve users: %w", err)
	}
	if len(missing) > 0 {
		span.SetAttributes(attribute.Int("members.missing", len(missing)))
		return inventory.Inventory{}, inventory.ErrUnknownUser
	}

	// validated with a placeholder id; the real one may not exist yet
	if _, err := set.Memberships(inv.ID); err != nil {
		return inventory.Inventory{}, err
	}

	requestID := observability.RequestIDFrom(ctx)

	var out inventory.Inventory

	err = m.store.InTx(ctx, func(tx Tx) error {
		var err error

		if inv.ID == 0 {
			out, err = tx.CreateInventory(ctx, inv.Name)
		} else {
			out, err = tx.UpdateInventoryName(ctx, inv.ID, inv.Name)
		}
		if err != nil {
			return err
		}

		members, err := set.Memberships(out.ID)
		if err != nil {
			return err
		}

		prev, err := tx.ListMemberships(ctx, out.ID)
		if err != nil {
			return err
		}

		if err := tx.ReplaceMemberships(ctx, out.ID, members); err != nil {
			return err
		}

		for _, g := range inventory.Grants(prev, members) {
			req, err := jobs.NewAccessGranted(jobs.AccessGrantedPayload{
				InventoryID:   out.ID,
				InventoryName: out.Name,
				UserID:        g.UserID,
				Role:          g.Role,
				RequestID:     requestID,
			})
			if err != nil {
				return err
			}
			if err := tx.EnqueueJob(ctx, req); err != nil {
				return err
			}
		}

		out.Members = members
		return nil
	})
	if err != nil {
		if errors.Is(err, inventory.ErrNotFound) {
			return inventory.Inventory{}, err
		}
		fail(span, err, "persist membership set")
		m.logger.ErrorContext(ctx, "membership.replace_failed", "inventory_id", inv.ID, "err", err)
		return inventory.Inventory{}, fmt.Errorf("replace membership set: %w", err)
	}

	span.SetAttributes(attribute.Int64("inventory.id", out.ID))
	m.logger.InfoContext(ctx, "membership.replaced", "inventory_id", out.ID, "members", len(out.Members))

	return out, nil
}

func fail(span trace.Span, err error, msg string) {
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
}

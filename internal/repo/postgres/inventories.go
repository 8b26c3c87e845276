package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/geocoder89/inventoryhub/internal/domain/inventory"
	"github.com/geocoder89/inventoryhub/internal/domain/role"
	"github.com/geocoder89/inventoryhub/internal/jobs"
	"github.com/geocoder89/inventoryhub/internal/membership"
	"github.com/geocoder89/inventoryhub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type InventoriesRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
	jobs *JobsRepo
}

func NewInventoriesRepo(pool *pgxpool.Pool, prom *observability.Prom) *InventoriesRepo {
	return &InventoriesRepo{pool: pool, prom: prom, jobs: NewJobsRepo(pool, prom)}
}

// InTx runs fn in a SERIALIZABLE transaction. Serialization failures are
// returned to the caller, not retried.
func (r *InventoriesRepo) InTx(ctx context.Context, fn func(tx membership.Tx) error) (err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err = fn(&pgTx{tx: tx, prom: r.prom, jobs: r.jobs}); err != nil {
		return err
	}

	err = observe(r.prom, "memberships.commit", func() error {
		return tx.Commit(ctx)
	})
	return err
}

type pgTx struct {
	tx   pgx.Tx
	prom *observability.Prom
	jobs *JobsRepo
}

func (t *pgTx) CreateInventory(ctx context.Context, name string) (inventory.Inventory, error) {
	var inv inventory.Inventory

	err := observe(t.prom, "inventories.create", func() error {
		return t.tx.QueryRow(ctx, `
			INSERT INTO inventories (name) VALUES ($1)
			RETURNING id, name, created_at
		`, name).Scan(&inv.ID, &inv.Name, &inv.CreatedAt)
	})

	return inv, err
}

func (t *pgTx) UpdateInventoryName(ctx context.Context, id int64, name string) (inventory.Inventory, error) {
	var inv inventory.Inventory

	err := observe(t.prom, "inventories.update_name", func() error {
		return t.tx.QueryRow(ctx, `
			UPDATE inventories SET name = $2 WHERE id = $1
			RETURNING id, name, created_at
		`, id, name).Scan(&inv.ID, &inv.Name, &inv.CreatedAt)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return inventory.Inventory{}, inventory.ErrNotFound
		}
		return inventory.Inventory{}, err
	}
	return inv, nil
}

func (t *pgTx) ListMemberships(ctx context.Context, inventoryID int64) ([]inventory.Membership, error) {
	return listMemberships(ctx, t.tx, t.prom, inventoryID)
}

func (t *pgTx) ReplaceMemberships(ctx context.Context, inventoryID int64, members []inventory.Membership) error {
	err := observe(t.prom, "memberships.delete_all", func() error {
		_, err := t.tx.Exec(ctx, `DELETE FROM inventory_users WHERE inventory_id = $1`, inventoryID)
		return err
	})
	if err != nil {
		return err
	}

	userIDs := make([]int64, len(members))
	roles := make([]string, len(members))
	for i, m := range members {
		userIDs[i] = m.UserID
		roles[i] = string(m.Role)
	}

	err = observe(t.prom, "memberships.insert_set", func() error {
		_, err := t.tx.Exec(ctx, `
			INSERT INTO inventory_users (inventory_id, user_id, role)
			SELECT $1, m.user_id, m.role
			FROM unnest($2::bigint[], $3::text[]) AS m(user_id, role)
		`, inventoryID, userIDs, roles)
		return err
	})

	switch {
	case err == nil:
		return nil
	case IsUniqueViolation(err):
		return inventory.ErrDuplicateMember
	case isForeignKeyViolation(err):
		return inventory.ErrUnknownUser
	default:
		return err
	}
}

func (t *pgTx) EnqueueJob(ctx context.Context, req jobs.CreateRequest) error {
	_, err := t.jobs.CreateTx(ctx, t.tx, req)
	return err
}

// listMemberships orders the owner first, then admins, writers and readers.
func listMemberships(ctx context.Context, q querier, prom *observability.Prom, inventoryID int64) ([]inventory.Membership, error) {
	out := make([]inventory.Membership, 0)

	err := observe(prom, "memberships.list", func() error {
		rows, err := q.Query(ctx, `
			SELECT inventory_id, user_id, role
			FROM inventory_users
			WHERE inventory_id = $1
			ORDER BY CASE role WHEN 'owner' THEN 0 WHEN 'admin' THEN 1 WHEN 'write' THEN 2 ELSE 3 END, user_id
		`, inventoryID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var m inventory.Membership
			var r string
			if err := rows.Scan(&m.InventoryID, &m.UserID, &r); err != nil {
				return err
			}
			m.Role = role.Role(r)
			out = append(out, m)
		}
		return rows.Err()
	})

	return out, err
}

func (r *InventoriesRepo) GetMembership(ctx context.Context, userID, inventoryID int64) (inventory.Membership, error) {
	m := inventory.Membership{InventoryID: inventoryID, UserID: userID}

	err := observe(r.prom, "memberships.get", func() error {
		var held string
		err := r.pool.QueryRow(ctx, `
			SELECT role FROM inventory_users
			WHERE inventory_id = $1 AND user_id = $2
		`, inventoryID, userID).Scan(&held)
		m.Role = role.Role(held)
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return inventory.Membership{}, inventory.ErrMembershipNotFound
		}
		return inventory.Membership{}, err
	}
	return m, nil
}

func (r *InventoriesRepo) GetInventory(ctx context.Context, id int64) (inventory.Inventory, error) {
	var inv inventory.Inventory

	err := observe(r.prom, "inventories.get", func() error {
		return r.pool.QueryRow(ctx, `SELECT id, name, created_at FROM inventories WHERE id = $1`, id).
			Scan(&inv.ID, &inv.Name, &inv.CreatedAt)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return inventory.Inventory{}, inventory.ErrNotFound
		}
		return inventory.Inventory{}, err
	}

	inv.Members, err = listMemberships(ctx, r.pool, r.prom, id)
	if err != nil {
		return inventory.Inventory{}, err
	}
	return inv, nil
}

func (r *InventoriesRepo) ListForUser(ctx context.Context, userID int64) ([]inventory.Summary, error) {
	out := make([]inventory.Summary, 0)

	err := observe(r.prom, "inventories.list_for_user", func() error {
		rows, err := r.pool.Query(ctx, `
			SELECT i.id, i.name, i.created_at, iu.role
			FROM inventories i
			JOIN inventory_users iu ON iu.inventory_id = i.id
			WHERE iu.user_id = $1
			ORDER BY i.id
		`, userID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var s inventory.Summary
			var held string
			if err := rows.Scan(&s.ID, &s.Name, &s.CreatedAt, &held); err != nil {
				return err
			}
			s.Role = role.Role(held)
			out = append(out, s)
		}
		return rows.Err()
	})

	return out, err
}

// DeleteInventory relies on ON DELETE CASCADE for memberships and the catalog.
func (r *InventoriesRepo) DeleteInventory(ctx context.Context, id int64) error {
	var tag pgconn.CommandTag

	err := observe(r.prom, "inventories.delete", func() error {
		var err error
		tag, err = r.pool.Exec(ctx, `DELETE FROM inventories WHERE id = $1`, id)
		return err
	})
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return inventory.ErrNotFound
	}
	return nil
}

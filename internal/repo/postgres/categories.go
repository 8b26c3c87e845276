package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/geocoder89/inventoryhub/internal/domain/category"
	"github.com/geocoder89/inventoryhub/internal/domain/inventory"
	"github.com/geocoder89/inventoryhub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type CategoriesRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewCategoriesRepo(pool *pgxpool.Pool, prom *observability.Prom) *CategoriesRepo {
	return &CategoriesRepo{pool: pool, prom: prom}
}

const categorySelect = `
	SELECT c.inventory_id, c.number, c.name, c.parent_number,
	       COALESCE(array_agg(ch.number ORDER BY ch.number) FILTER (WHERE ch.number IS NOT NULL), '{}')
	FROM categories c
	LEFT JOIN categories ch ON ch.inventory_id = c.inventory_id AND ch.parent_number = c.number
`

func scanCategories(rows pgx.Rows) ([]category.Category, error) {
	defer rows.Close()

	out := make([]category.Category, 0)
	for rows.Next() {
		var c category.Category
		if err := rows.Scan(&c.InventoryID, &c.Number, &c.Name, &c.Parent, &c.Children); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func listCategories(ctx context.Context, q querier, inventoryID int64) ([]category.Category, error) {
	rows, err := q.Query(ctx, categorySelect+`
		WHERE c.inventory_id = $1
		GROUP BY c.inventory_id, c.number
		ORDER BY c.number
	`, inventoryID)
	if err != nil {
		return nil, err
	}
	return scanCategories(rows)
}

func (r *CategoriesRepo) ListCategories(ctx context.Context, inventoryID int64) ([]category.Category, error) {
	var out []category.Category

	err := observe(r.prom, "categories.list", func() error {
		var err error
		out, err = listCategories(ctx, r.pool, inventoryID)
		return err
	})
	return out, err
}

func (r *CategoriesRepo) GetCategory(ctx context.Context, inventoryID, number int64) (category.Category, error) {
	return getCategory(ctx, r.pool, r.prom, inventoryID, number)
}

func getCategory(ctx context.Context, q querier, prom *observability.Prom, inventoryID, number int64) (category.Category, error) {
	var out []category.Category

	err := observe(prom, "categories.get", func() error {
		rows, err := q.Query(ctx, categorySelect+`
			WHERE c.inventory_id = $1 AND c.number = $2
			GROUP BY c.inventory_id, c.number
		`, inventoryID, number)
		if err != nil {
			return err
		}
		out, err = scanCategories(rows)
		return err
	})
	if err != nil {
		return category.Category{}, err
	}
	if len(out) == 0 {
		return category.Category{}, category.ErrNotFound
	}
	return out[0], nil
}

func (r *CategoriesRepo) CreateCategory(ctx context.Context, c category.Category) (category.Category, error) {
	return r.upsert(ctx, "categories.create", c, true)
}

func (r *CategoriesRepo) UpdateCategory(ctx context.Context, c category.Category) (category.Category, error) {
	return r.upsert(ctx, "categories.update", c, false)
}

// upsert writes c with exactly the requested parent and children. Catalog
// writes of one inventory are serialized on its row lock.
func (r *CategoriesRepo) upsert(ctx context.Context, op string, c category.Category, create bool) (out category.Category, err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return category.Category{}, fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err = lockInventory(ctx, tx, r.prom, c.InventoryID); err != nil {
		return
	}

	all, err := listCategories(ctx, tx, c.InventoryID)
	if err != nil {
		return
	}

	known := make(map[int64]bool, len(all))
	for _, existing := range all {
		known[existing.Number] = true
	}

	switch {
	case create && known[c.Number]:
		return category.Category{}, category.ErrExists
	case !create && !known[c.Number]:
		return category.Category{}, category.ErrNotFound
	}

	if c.Parent != nil && !known[*c.Parent] {
		return category.Category{}, category.ErrNotFound
	}
	for _, child := range c.Children {
		if !known[child] {
			return category.Category{}, category.ErrNotFound
		}
	}

	if err = category.ValidateHierarchy(all, c.Number, c.Parent, c.Children); err != nil {
		return
	}

	children := c.Children
	if children == nil {
		children = []int64{}
	}

	err = observe(r.prom, op, func() error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO categories (inventory_id, number, name, parent_number)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (inventory_id, number) DO UPDATE
			SET name = EXCLUDED.name, parent_number = EXCLUDED.parent_number
		`, c.InventoryID, c.Number, c.Name, c.Parent); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `
			UPDATE categories SET parent_number = NULL
			WHERE inventory_id = $1 AND parent_number = $2 AND NOT (number = ANY($3::bigint[]))
		`, c.InventoryID, c.Number, children); err != nil {
			return err
		}

		_, err := tx.Exec(ctx, `
			UPDATE categories SET parent_number = $2
			WHERE inventory_id = $1 AND number = ANY($3::bigint[])
		`, c.InventoryID, c.Number, children)
		return err
	})
	if err != nil {
		return
	}

	out, err = getCategory(ctx, tx, r.prom, c.InventoryID, c.Number)
	if err != nil {
		return
	}

	err = tx.Commit(ctx)
	return
}

// DeleteCategory detaches the category's children before removing it.
func (r *CategoriesRepo) DeleteCategory(ctx context.Context, inventoryID, number int64) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var tag pgconn.CommandTag

	err = observe(r.prom, "categories.delete", func() error {
		if _, err := tx.Exec(ctx, `
			UPDATE categories SET parent_number = NULL
			WHERE inventory_id = $1 AND parent_number = $2
		`, inventoryID, number); err != nil {
			return err
		}

		var err error
		tag, err = tx.Exec(ctx, `DELETE FROM categories WHERE inventory_id = $1 AND number = $2`, inventoryID, number)
		return err
	})
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return category.ErrNotFound
	}

	return tx.Commit(ctx)
}

func lockInventory(ctx context.Context, tx pgx.Tx, prom *observability.Prom, inventoryID int64) error {
	err := observe(prom, "inventories.lock", func() error {
		var id int64
		return tx.QueryRow(ctx, `SELECT id FROM inventories WHERE id = $1 FOR UPDATE`, inventoryID).Scan(&id)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return inventory.ErrNotFound
	}
	return err
}

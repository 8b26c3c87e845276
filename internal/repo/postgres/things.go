package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/geocoder89/inventoryhub/internal/domain/thing"
	"github.com/geocoder89/inventoryhub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ThingsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewThingsRepo(pool *pgxpool.Pool, prom *observability.Prom) *ThingsRepo {
	return &ThingsRepo{pool: pool, prom: prom}
}

const thingSelect = `
	SELECT t.inventory_id, t.number, t.name,
	       COALESCE((SELECT array_agg(tc.category_number ORDER BY tc.category_number)
	                 FROM thing_categories tc
	                 WHERE tc.inventory_id = t.inventory_id AND tc.thing_number = t.number), '{}'),
	       COALESCE((SELECT SUM(s.quantity)
	                 FROM stocks s
	                 WHERE s.inventory_id = t.inventory_id AND s.thing_number = t.number), 0)::bigint
	FROM things t
`

func scanThings(rows pgx.Rows) ([]thing.Thing, error) {
	defer rows.Close()

	out := make([]thing.Thing, 0)
	for rows.Next() {
		var t thing.Thing
		if err := rows.Scan(&t.InventoryID, &t.Number, &t.Name, &t.Categories, &t.TotalQuantity); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *ThingsRepo) ListThings(ctx context.Context, inventoryID int64) ([]thing.Thing, error) {
	var out []thing.Thing

	err := observe(r.prom, "things.list", func() error {
		rows, err := r.pool.Query(ctx, thingSelect+` WHERE t.inventory_id = $1 ORDER BY t.number`, inventoryID)
		if err != nil {
			return err
		}
		out, err = scanThings(rows)
		return err
	})
	return out, err
}

func (r *ThingsRepo) GetThing(ctx context.Context, inventoryID, number int64) (thing.Thing, error) {
	return getThing(ctx, r.pool, r.prom, inventoryID, number)
}

func getThing(ctx context.Context, q querier, prom *observability.Prom, inventoryID, number int64) (thing.Thing, error) {
	var out []thing.Thing

	err := observe(prom, "things.get", func() error {
		rows, err := q.Query(ctx, thingSelect+` WHERE t.inventory_id = $1 AND t.number = $2`, inventoryID, number)
		if err != nil {
			return err
		}
		out, err = scanThings(rows)
		return err
	})
	if err != nil {
		return thing.Thing{}, err
	}
	if len(out) == 0 {
		return thing.Thing{}, thing.ErrNotFound
	}
	return out[0], nil
}

func (r *ThingsRepo) CreateThing(ctx context.Context, t thing.Thing) (thing.Thing, error) {
	return r.write(ctx, "things.create", t, true)
}

func (r *ThingsRepo) UpdateThing(ctx context.Context, t thing.Thing) (thing.Thing, error) {
	return r.write(ctx, "things.update", t, false)
}

func (r *ThingsRepo) write(ctx context.Context, op string, t thing.Thing, create bool) (out thing.Thing, err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return thing.Thing{}, fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err = lockInventory(ctx, tx, r.prom, t.InventoryID); err != nil {
		return
	}

	categories := t.Categories
	if categories == nil {
		categories = []int64{}
	}

	err = observe(r.prom, op, func() error {
		var known int
		if err := tx.QueryRow(ctx, `
			SELECT COUNT(*) FROM categories
			WHERE inventory_id = $1 AND number = ANY($2::bigint[])
		`, t.InventoryID, categories).Scan(&known); err != nil {
			return err
		}
		if known != countDistinct(categories) {
			return thing.ErrUnknownCategory
		}

		if create {
			if err := tx.QueryRow(ctx, `
				INSERT INTO things (inventory_id, number, name)
				SELECT $1, COALESCE(MAX(number), 0) + 1, $2 FROM things WHERE inventory_id = $1
				RETURNING number
			`, t.InventoryID, t.Name).Scan(&t.Number); err != nil {
				return err
			}
		} else {
			tag, err := tx.Exec(ctx, `UPDATE things SET name = $3 WHERE inventory_id = $1 AND number = $2`, t.InventoryID, t.Number, t.Name)
			if err != nil {
				return err
			}
			if tag.RowsAffected() == 0 {
				return thing.ErrNotFound
			}
			if _, err := tx.Exec(ctx, `DELETE FROM thing_categories WHERE inventory_id = $1 AND thing_number = $2`, t.InventoryID, t.Number); err != nil {
				return err
			}
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO thing_categories (inventory_id, thing_number, category_number)
			SELECT DISTINCT $1::bigint, $2::bigint, c FROM unnest($3::bigint[]) AS c
		`, t.InventoryID, t.Number, categories)
		return err
	})
	if err != nil {
		return
	}

	out, err = getThing(ctx, tx, r.prom, t.InventoryID, t.Number)
	if err != nil {
		return
	}

	err = tx.Commit(ctx)
	return
}

func countDistinct(ids []int64) int {
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		seen[id] = struct{}{}
	}
	return len(seen)
}

func (r *ThingsRepo) DeleteThing(ctx context.Context, inventoryID, number int64) error {
	var tag pgconn.CommandTag

	err := observe(r.prom, "things.delete", func() error {
		var err error
		tag, err = r.pool.Exec(ctx, `DELETE FROM things WHERE inventory_id = $1 AND number = $2`, inventoryID, number)
		return err
	})
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return thing.ErrNotFound
	}
	return nil
}

const stockColumns = `inventory_id, thing_number, number, ex_date, quantity, percent_left, added_on`

func scanStock(row pgx.Row) (thing.Stock, error) {
	var s thing.Stock
	err := row.Scan(&s.InventoryID, &s.ThingNumber, &s.Number, &s.ExDate, &s.Quantity, &s.PercentLeft, &s.AddedOn)
	return s, err
}

func (r *ThingsRepo) thingExists(ctx context.Context, inventoryID, number int64) error {
	_, err := r.GetThing(ctx, inventoryID, number)
	return err
}

func (r *ThingsRepo) ListStocks(ctx context.Context, inventoryID, thingNumber int64) ([]thing.Stock, error) {
	if err := r.thingExists(ctx, inventoryID, thingNumber); err != nil {
		return nil, err
	}

	out := make([]thing.Stock, 0)

	err := observe(r.prom, "stocks.list", func() error {
		rows, err := r.pool.Query(ctx, `SELECT `+stockColumns+` FROM stocks
			WHERE inventory_id = $1 AND thing_number = $2 ORDER BY number`, inventoryID, thingNumber)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			s, err := scanStock(rows)
			if err != nil {
				return err
			}
			out = append(out, s)
		}
		return rows.Err()
	})
	return out, err
}

func (r *ThingsRepo) GetStock(ctx context.Context, inventoryID, thingNumber, number int64) (thing.Stock, error) {
	if err := r.thingExists(ctx, inventoryID, thingNumber); err != nil {
		return thing.Stock{}, err
	}

	var s thing.Stock

	err := observe(r.prom, "stocks.get", func() error {
		var err error
		s, err = scanStock(r.pool.QueryRow(ctx, `SELECT `+stockColumns+` FROM stocks
			WHERE inventory_id = $1 AND thing_number = $2 AND number = $3`, inventoryID, thingNumber, number))
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return thing.Stock{}, thing.ErrStockNotFound
		}
		return thing.Stock{}, err
	}
	return s, nil
}

func (r *ThingsRepo) CreateStock(ctx context.Context, s thing.Stock) (thing.Stock, error) {
	var out thing.Stock

	err := observe(r.prom, "stocks.create", func() error {
		var err error
		out, err = scanStock(r.pool.QueryRow(ctx, `
			INSERT INTO stocks (inventory_id, thing_number, number, ex_date, quantity, percent_left)
			SELECT $1, $2, COALESCE(MAX(number), 0) + 1, $3, $4, $5
			FROM stocks WHERE inventory_id = $1 AND thing_number = $2
			RETURNING `+stockColumns,
			s.InventoryID, s.ThingNumber, s.ExDate, s.Quantity, s.PercentLeft))
		return err
	})
	if err != nil {
		if isForeignKeyViolation(err) {
			return thing.Stock{}, thing.ErrNotFound
		}
		if IsUniqueViolation(err) {
			return thing.Stock{}, fmt.Errorf("concurrent stock insert: %w", err)
		}
		return thing.Stock{}, err
	}
	return out, nil
}

func (r *ThingsRepo) UpdateStock(ctx context.Context, s thing.Stock) (thing.Stock, error) {
	if err := r.thingExists(ctx, s.InventoryID, s.ThingNumber); err != nil {
		return thing.Stock{}, err
	}

	var out thing.Stock

	err := observe(r.prom, "stocks.update", func() error {
		var err error
		out, err = scanStock(r.pool.QueryRow(ctx, `
			UPDATE stocks SET ex_date = $4, quantity = $5, percent_left = $6
			WHERE inventory_id = $1 AND thing_number = $2 AND number = $3
			RETURNING `+stockColumns,
			s.InventoryID, s.ThingNumber, s.Number, s.ExDate, s.Quantity, s.PercentLeft))
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return thing.Stock{}, thing.ErrStockNotFound
		}
		return thing.Stock{}, err
	}
	return out, nil
}

func (r *ThingsRepo) DeleteStock(ctx context.Context, inventoryID, thingNumber, number int64) error {
	if err := r.thingExists(ctx, inventoryID, thingNumber); err != nil {
		return err
	}

	var tag pgconn.CommandTag

	err := observe(r.prom, "stocks.delete", func() error {
		var err error
		tag, err = r.pool.Exec(ctx, `DELETE FROM stocks WHERE inventory_id = $1 AND thing_number = $2 AND number = $3`,
			inventoryID, thingNumber, number)
		return err
	})
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return thing.ErrStockNotFound
	}
	return nil
}

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/inventoryhub/internal/domain/user"
	"github.com/geocoder89/inventoryhub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UsersRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewUsersRepo(pool *pgxpool.Pool, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{pool: pool, prom: prom}
}

const userColumns = `id, email, name, password_hash, tfa_secret, tfa_url, tfa_enabled, created_at`

func scanUser(row pgx.Row) (user.User, error) {
	var u user.User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.TFASecret, &u.TFAURL, &u.TFAEnabled, &u.CreatedAt)
	return u, err
}

func (r *UsersRepo) Create(ctx context.Context, u user.User) (user.User, error) {
	var out user.User

	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}

	err := observe(r.prom, "users.create", func() error {
		var err error
		out, err = scanUser(r.pool.QueryRow(ctx, `
			INSERT INTO users (email, name, password_hash, created_at)
			VALUES ($1, $2, $3, $4)
			RETURNING `+userColumns,
			u.Email, u.Name, u.PasswordHash, u.CreatedAt,
		))
		return err
	})

	if err != nil {
		if isConstraint(err, "23505", "users_email_uniq") {
			return user.User{}, user.ErrEmailTaken
		}
		return user.User{}, err
	}

	return out, nil
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	var u user.User

	err := observe(r.prom, "users.get_by_email", func() error {
		var err error
		u, err = scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, err
	}
	return u, nil
}

func (r *UsersRepo) GetByID(ctx context.Context, id int64) (user.User, error) {
	var u user.User

	err := observe(r.prom, "users.get_by_id", func() error {
		var err error
		u, err = scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, err
	}
	return u, nil
}

// EnrollTwoFactor stores a provisioning secret only while none is set. A
// concurrent enrollment that lost the race gets the winner's secret back.
func (r *UsersRepo) EnrollTwoFactor(ctx context.Context, id int64, secret, url string) (user.User, error) {
	var (
		u   user.User
		won bool
	)

	err := observe(r.prom, "users.enroll_two_factor", func() error {
		var err error
		u, err = scanUser(r.pool.QueryRow(ctx, `
			UPDATE users
			SET tfa_secret = $2, tfa_url = $3
			WHERE id = $1 AND tfa_secret IS NULL
			RETURNING `+userColumns,
			id, secret, url,
		))
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		won = err == nil
		return err
	})

	if err != nil {
		return user.User{}, err
	}
	if won {
		return u, nil
	}
	return r.GetByID(ctx, id)
}

func (r *UsersRepo) SetTwoFactor(ctx context.Context, id int64, secret, url *string, enabled bool) error {
	var tag pgconn.CommandTag

	err := observe(r.prom, "users.set_two_factor", func() error {
		var err error
		tag, err = r.pool.Exec(ctx, `
			UPDATE users
			SET tfa_secret = $2, tfa_url = $3, tfa_enabled = $4
			WHERE id = $1
		`, id, secret, url, enabled)
		return err
	})

	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return user.ErrNotFound
	}
	return nil
}

func (r *UsersRepo) DeleteUser(ctx context.Context, id int64) error {
	var tag pgconn.CommandTag

	err := observe(r.prom, "users.delete", func() error {
		var err error
		tag, err = r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
		return err
	})

	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return user.ErrNotFound
	}
	return nil
}

// MissingUsers returns the ids that have no users row.
func (r *UsersRepo) MissingUsers(ctx context.Context, ids []int64) ([]int64, error) {
	missing := make([]int64, 0)

	err := observe(r.prom, "users.missing", func() error {
		rows, err := r.pool.Query(ctx, `
			SELECT DISTINCT q.id
			FROM unnest($1::bigint[]) AS q(id)
			LEFT JOIN users u ON u.id = q.id
			WHERE u.id IS NULL
			ORDER BY q.id
		`, ids)
		if err != nil {
			return err
		}
		missing, err = pgx.CollectRows(rows, pgx.RowTo[int64])
		return err
	})

	return missing, err
}

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/inventoryhub/internal/notifications"
	"github.com/geocoder89/inventoryhub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type NotificationDeliveriesRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewNotificationDeliveriesRepo(pool *pgxpool.Pool, prom *observability.Prom) *NotificationDeliveriesRepo {
	return &NotificationDeliveriesRepo{pool: pool, prom: prom}
}

// TryStart claims the delivery identified by (kind, dedupeKey). It returns
// ErrAlreadySent or ErrInProgress when another attempt owns it.
func (r *NotificationDeliveriesRepo) TryStart(ctx context.Context, kind, dedupeKey, jobID, recipient string) error {
	// 1) Insert if missing
	err := observe(r.prom, "deliveries.insert", func() error {
		_, err := r.pool.Exec(ctx, `
			INSERT INTO notification_deliveries (kind, dedupe_key, job_id, recipient, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, 'sending', NOW(), NOW())
		`, kind, dedupeKey, jobID, recipient)
		return err
	})

	if err == nil {
		return nil
	}
	if !IsUniqueViolation(err) {
		return err
	}

	// 2) Row exists. Only one worker can flip failed -> sending.
	var claimed int64
	err = observe(r.prom, "deliveries.reclaim", func() error {
		tag, err := r.pool.Exec(ctx, `
			UPDATE notification_deliveries
			SET status = 'sending',
			    job_id = $3,
			    recipient = $4,
			    last_error = NULL,
			    updated_at = NOW()
			WHERE kind = $1 AND dedupe_key = $2 AND status = 'failed'
		`, kind, dedupeKey, jobID, recipient)
		claimed = tag.RowsAffected()
		return err
	})

	if err != nil {
		return err
	}
	if claimed == 1 {
		return nil
	}

	// 3) Not failed: already sent or someone is sending.
	var status string
	var sentAt *time.Time

	err = r.pool.QueryRow(ctx, `
		SELECT status, sent_at
		FROM notification_deliveries
		WHERE kind = $1 AND dedupe_key = $2
	`, kind, dedupeKey).Scan(&status, &sentAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// row disappeared; let caller retry
			return notifications.ErrInProgress
		}
		return err
	}

	if sentAt != nil || status == "sent" {
		return notifications.ErrAlreadySent
	}

	return notifications.ErrInProgress
}

func (r *NotificationDeliveriesRepo) MarkSent(ctx context.Context, kind, dedupeKey string) error {
	return observe(r.prom, "deliveries.mark_sent", func() error {
		_, err := r.pool.Exec(ctx, `
			UPDATE notification_deliveries
			SET status = 'sent',
			    sent_at = NOW(),
			    last_error = NULL,
			    updated_at = NOW()
			WHERE kind = $1 AND dedupe_key = $2
		`, kind, dedupeKey)
		return err
	})
}

func (r *NotificationDeliveriesRepo) MarkFailed(ctx context.Context, kind, dedupeKey, errMsg string) error {
	return observe(r.prom, "deliveries.mark_failed", func() error {
		_, err := r.pool.Exec(ctx, `
			UPDATE notification_deliveries
			SET status = 'failed',
			    last_error = $3,
			    updated_at = NOW()
			WHERE kind = $1 AND dedupe_key = $2
		`, kind, dedupeKey, errMsg)
		return err
	})
}

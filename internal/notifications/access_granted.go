package notifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/geocoder89/inventoryhub/internal/domain/user"
	"github.com/geocoder89/inventoryhub/internal/jobs"
)

type UserLookup interface {
	GetByID(ctx context.Context, id int64) (user.User, error)
}

// DeliveryStore records one row per (kind, dedupe key) so retried jobs never send twice.
type DeliveryStore interface {
	TryStart(ctx context.Context, kind, dedupeKey, jobID, recipient string) error
	MarkSent(ctx context.Context, kind, dedupeKey string) error
	MarkFailed(ctx context.Context, kind, dedupeKey, errMsg string) error
}

type AccessGrantedHandler struct {
	users      UserLookup
	deliveries DeliveryStore
	notifier   Notifier
	logger     *slog.Logger
}

func NewAccessGrantedHandler(users UserLookup, deliveries DeliveryStore, notifier Notifier, logger *slog.Logger) *AccessGrantedHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AccessGrantedHandler{users: users, deliveries: deliveries, notifier: notifier, logger: logger}
}

// Handle delivers one inventory.access_granted job. A recipient that no longer
// exists completes the job without sending anything.
func (h *AccessGrantedHandler) Handle(ctx context.Context, j jobs.Job) error {
	decoded, err := jobs.DecodePayload(j)
	if err != nil {
		return err
	}
	p, ok := decoded.(jobs.AccessGrantedPayload)
	if !ok {
		return jobs.ErrPayloadTypeMismatch
	}

	u, err := h.users.GetByID(ctx, p.UserID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			h.logger.WarnContext(ctx, "access_granted.recipient_gone", "job_id", j.ID, "user_id", p.UserID)
			return nil
		}
		return fmt.Errorf("load recipient: %w", err)
	}

	key := "job:" + j.ID

	err = h.deliveries.TryStart(ctx, KindAccessGranted, key, j.ID, u.Email)
	switch {
	case errors.Is(err, ErrAlreadySent):
		return nil
	case err != nil:
		return err
	}

	sendErr := h.notifier.SendAccessGranted(ctx, AccessGrantedInput{
		Email:         u.Email,
		Name:          u.Name,
		InventoryID:   p.InventoryID,
		InventoryName: p.InventoryName,
		Role:          p.Role,
	})
	if sendErr != nil {
		if mErr := h.deliveries.MarkFailed(ctx, KindAccessGranted, key, sendErr.Error()); mErr != nil {
			h.logger.ErrorContext(ctx, "access_granted.mark_failed", "job_id", j.ID, "err", mErr)
		}
		return sendErr
	}

	return h.deliveries.MarkSent(ctx, KindAccessGranted, key)
}

package notifications

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strconv"
	"time"
)

// LogNotifier writes notifications to the structured log instead of a provider.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) SendAccessGranted(ctx context.Context, in AccessGrantedInput) error {
	// Optional: simulate slow provider
	if msStr := os.Getenv("NOTIFIER_SLEEP_MS"); msStr != "" {
		ms, _ := strconv.Atoi(msStr)
		if ms > 0 {
			select {
			case <-time.After(time.Duration(ms) * time.Millisecond):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	// Optional: simulate provider outage
	if os.Getenv("NOTIFIER_FAIL") == "1" {
		return errors.New("provider down (simulated)")
	}

	n.logger.InfoContext(ctx, "notification.access_granted",
		"email", in.Email,
		"name", in.Name,
		"inventory_id", in.InventoryID,
		"inventory", in.InventoryName,
		"role", string(in.Role),
	)
	return nil
}

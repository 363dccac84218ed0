package cleanup

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/flowme-cloud/flowme-backend/internal/logging"
)

const deferredKey = "flowme:cleanup:deferred" // Set of page IDs waiting for a draft to settle

// DeferredSet is a Redis-backed DeferredQueue.
type DeferredSet struct {
	client *redis.Client
}

func NewDeferredSet(client *redis.Client) *DeferredSet {
	return &DeferredSet{client: client}
}

func (d *DeferredSet) Add(ctx context.Context, pageID string) error {
	if err := d.client.SAdd(ctx, deferredKey, pageID).Err(); err != nil {
		return fmt.Errorf("failed to defer page: %w", err)
	}
	return nil
}

func (d *DeferredSet) Remove(ctx context.Context, pageID string) error {
	if err := d.client.SRem(ctx, deferredKey, pageID).Err(); err != nil {
		return fmt.Errorf("failed to remove deferred page: %w", err)
	}
	return nil
}

func (d *DeferredSet) List(ctx context.Context) ([]string, error) {
	ids, err := d.client.SMembers(ctx, deferredKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list deferred pages: %w", err)
	}
	return ids, nil
}

// Sweep retries every deferred page and drops the ones that completed.
// It returns how many pages were cleared.
func (h *Handler) Sweep(ctx context.Context) (int, error) {
	if h.deferred == nil {
		return 0, nil
	}
	logger := logging.NewLogger(ctx)

	pages, err := h.deferred.List(ctx)
	if err != nil {
		return 0, err
	}

	cleared := 0
	for _, pageID := range pages {
		if ctx.Err() != nil {
			return cleared, ctx.Err()
		}
		if !h.runPage(ctx, pageID, TriggerEditPage) {
			continue
		}
		if err := h.deferred.Remove(ctx, pageID); err != nil {
			logger.LogError("cleanup_sweep", err)
			continue
		}
		cleared++
	}
	logger.LogInfof("cleanup_sweep", "pending=%d cleared=%d", len(pages), cleared)
	return cleared, nil
}

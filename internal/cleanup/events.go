package cleanup

import (
	"context"
	"strings"

	"github.com/spf13/cast"

	"github.com/flowme-cloud/flowme-backend/internal/confluence"
	"github.com/flowme-cloud/flowme-backend/internal/logging"
)

// Update triggers the host sends with page events.
const (
	TriggerEditPage = "edit_page"
	TriggerUser     = "user"
)

// PageEvent is the loosely typed payload of a page-updated event.
type PageEvent map[string]any

// PageID extracts the page ID, accepting string or numeric values under
// contentId, content.id, page.id, objectId or id, in that order.
func (e PageEvent) PageID() string {
	candidates := []any{
		e["contentId"],
		nested(e["content"], "id"),
		nested(e["page"], "id"),
		e["objectId"],
		e["id"],
	}
	for _, c := range candidates {
		if c == nil {
			continue
		}
		if s := strings.TrimSpace(cast.ToString(c)); s != "" && s != "0" {
			return s
		}
	}
	return ""
}

// Trigger returns the event's update trigger, or "".
func (e PageEvent) Trigger() string {
	return strings.TrimSpace(cast.ToString(e["updateTrigger"]))
}

func nested(v any, key string) any {
	m, err := cast.ToStringMapE(v)
	if err != nil {
		return nil
	}
	return m[key]
}

// Decision is the event filter's verdict.
type Decision int

const (
	DecisionRun Decision = iota
	DecisionSkipDraft
	DecisionSkipTrigger
)

// ShouldRun applies the trigger rules: an edit_page trigger runs only when
// the page has no draft, an empty or user trigger always runs, anything
// else is skipped.
func ShouldRun(ctx context.Context, host Host, pageID, trigger string) Decision {
	switch trigger {
	case "", TriggerUser:
		return DecisionRun
	case TriggerEditPage:
		if host.HasDraft(ctx, confluence.AsApp, pageID) {
			return DecisionSkipDraft
		}
		return DecisionRun
	default:
		return DecisionSkipTrigger
	}
}

// Handler wires the event filter, reconciler and deferred set together.
type Handler struct {
	host       Host
	reconciler *Reconciler
	deferred   DeferredQueue
}

// DeferredQueue remembers pages whose cleanup was postponed.
type DeferredQueue interface {
	Add(ctx context.Context, pageID string) error
	Remove(ctx context.Context, pageID string) error
	List(ctx context.Context) ([]string, error)
}

// NewHandler builds an event handler. deferred may be nil.
func NewHandler(host Host, reconciler *Reconciler, deferred DeferredQueue) *Handler {
	return &Handler{host: host, reconciler: reconciler, deferred: deferred}
}

// HandlePageUpdated processes one page event. It never fails: every error is
// logged and dropped.
func (h *Handler) HandlePageUpdated(ctx context.Context, event PageEvent) {
	logger := logging.NewLogger(ctx)
	defer func() {
		if r := recover(); r != nil {
			logger.LogErrorf("page_updated", "panic while handling event: %v", r)
		}
	}()

	pageID := event.PageID()
	if pageID == "" {
		keys := make([]string, 0, len(event))
		for k := range event {
			keys = append(keys, k)
		}
		logger.LogWarnf("page_updated", "event without page id keys=%v", keys)
		return
	}

	h.runPage(ctx, pageID, event.Trigger())
}

// runPage filters and reconciles one page. It reports whether the page is
// done, meaning it need not stay in the deferred set.
func (h *Handler) runPage(ctx context.Context, pageID, trigger string) bool {
	logger := logging.NewLogger(ctx)

	switch ShouldRun(ctx, h.host, pageID, trigger) {
	case DecisionSkipTrigger:
		logger.LogInfof("page_updated", "skipped page_id=%s trigger=%s", pageID, trigger)
		return true
	case DecisionSkipDraft:
		logger.LogInfof("page_updated", "draft in progress, deferring page_id=%s", pageID)
		h.postpone(ctx, pageID)
		return false
	}

	res, err := h.reconciler.Reconcile(ctx, pageID)
	if err != nil && res.Outcome == OutcomeListFailed && confluence.IsNotFound(err) {
		// The page is gone; retrying can never succeed.
		logger.LogWarnf("page_updated", "page no longer exists, dropping page_id=%s", pageID)
		return true
	}
	if err != nil {
		logger.LogErrorf("page_updated", "cleanup failed page_id=%s outcome=%s: %v", pageID, res.Outcome, err)
		return false
	}
	if res.Outcome == OutcomeDraftInProgress {
		h.postpone(ctx, pageID)
		return false
	}
	return true
}

func (h *Handler) postpone(ctx context.Context, pageID string) {
	if h.deferred == nil {
		return
	}
	if err := h.deferred.Add(ctx, pageID); err != nil {
		logging.NewLogger(ctx).LogErrorf("page_updated", "failed to defer page_id=%s: %v", pageID, err)
	}
}

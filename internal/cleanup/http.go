package cleanup

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/flowme-cloud/flowme-backend/internal/logging"
)

// RunLister reads the run history. *AuditRepo implements it.
type RunLister interface {
	ListByPage(ctx context.Context, pageID string, limit int) ([]Run, error)
}

type httpHandler struct {
	events *Handler
	runs   RunLister
	async  bool
}

// Register mounts the page event webhook and, when runs is set, the run
// history endpoint. With async set the webhook answers before the
// reconcile finishes.
func Register(rg *gin.RouterGroup, events *Handler, runs RunLister, async bool) {
	h := &httpHandler{events: events, runs: runs, async: async}

	rg.POST("/events/page-updated", h.pageUpdated)
	if runs != nil {
		rg.GET("/pages/:pageId/cleanup/runs", h.listRuns)
	}
}

// pageUpdated always answers 202; the host has no use for a failure.
func (h *httpHandler) pageUpdated(c *gin.Context) {
	var event PageEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		logging.NewLogger(c.Request.Context()).LogWarnf("page_updated", "unreadable event body: %v", err)
		c.JSON(http.StatusAccepted, gin.H{"ok": true})
		return
	}

	if h.async {
		ctx := context.WithoutCancel(c.Request.Context())
		go h.events.HandlePageUpdated(ctx, event)
	} else {
		h.events.HandlePageUpdated(c.Request.Context(), event)
	}
	c.JSON(http.StatusAccepted, gin.H{"ok": true})
}

func (h *httpHandler) listRuns(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	runs, err := h.runs.ListByPage(c.Request.Context(), c.Param("pageId"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "runs": runs})
}

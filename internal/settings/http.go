package settings

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc *Service
}

// Register mounts the settings routes. writeGuards run before PUT.
func Register(rg *gin.RouterGroup, svc *Service, writeGuards ...gin.HandlerFunc) {
	h := &Handler{svc: svc}

	rg.GET("/settings", h.get)
	rg.PUT("/settings", append(writeGuards, h.put)...)
}

func (h *Handler) get(c *gin.Context) {
	view, err := h.svc.Public(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "config": view})
}

func (h *Handler) put(c *gin.Context) {
	var u Update
	if err := c.ShouldBindJSON(&u); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "Invalid configuration payload."})
		return
	}

	view, err := h.svc.Update(c.Request.Context(), u)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "config": view})
}

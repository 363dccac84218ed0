package ai

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	gateway *Gateway
	jobs    *Jobs
}

// Register mounts the generation routes. The job routes are only added when
// jobs is non-nil.
func Register(rg *gin.RouterGroup, gateway *Gateway, jobs *Jobs) {
	h := &Handler{gateway: gateway, jobs: jobs}

	rg.POST("/ai/text", h.text)
	rg.POST("/ai/image", h.image)
	if jobs != nil {
		rg.POST("/ai/jobs/text", h.startText)
		rg.POST("/ai/jobs/image", h.startImage)
		rg.GET("/ai/jobs/:id", h.status)
	}
}

type textReq struct {
	Text string `json:"text"`
	Mode string `json:"mode"`
}

type imageReq struct {
	ImageDataURL string `json:"imageDataUrl"`
	Mode         string `json:"mode"`
}

func (h *Handler) text(c *gin.Context) {
	var req textReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}
	xml, err := h.gateway.TextToDiagram(c.Request.Context(), req.Text, req.Mode)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "xml": xml})
}

func (h *Handler) image(c *gin.Context) {
	var req imageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}
	xml, err := h.gateway.ImageToDiagram(c.Request.Context(), req.ImageDataURL, req.Mode)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "xml": xml})
}

func (h *Handler) startText(c *gin.Context) {
	var req textReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}
	job, err := h.jobs.StartText(c.Request.Context(), req.Text, req.Mode)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"ok": true, "jobId": job.ID, "status": job.Status})
}

func (h *Handler) startImage(c *gin.Context) {
	var req imageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}
	job, err := h.jobs.StartImage(c.Request.Context(), req.ImageDataURL, req.Mode)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"ok": true, "jobId": job.ID, "status": job.Status})
}

func (h *Handler) status(c *gin.Context) {
	job, err := h.jobs.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	// A failed job reads like a failed synchronous call.
	if job.Status == JobError {
		c.JSON(http.StatusOK, gin.H{"ok": false, "jobId": job.ID, "status": job.Status, "error": job.Error})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "jobId": job.ID, "status": job.Status, "xml": job.XML})
}

func writeError(c *gin.Context, err error) {
	var reqErr *RequestError
	switch {
	case IsValidationError(err):
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
	case errors.Is(err, ErrJobNotFound):
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": err.Error()})
	case errors.Is(err, ErrTimeout):
		c.JSON(http.StatusGatewayTimeout, gin.H{"ok": false, "error": err.Error()})
	case errors.As(err, &reqErr), errors.Is(err, ErrNoDiagram):
		c.JSON(http.StatusBadGateway, gin.H{"ok": false, "error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
	}
}

package diagrams

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/flowme-cloud/flowme-backend/internal/confluence"
)

type Handler struct {
	svc *Service
}

func Register(rg *gin.RouterGroup, svc *Service) {
	h := &Handler{svc: svc}

	rg.GET("/pages/:pageId/diagrams", h.list)
	rg.GET("/pages/:pageId/diagrams/:name", h.load)
	rg.PUT("/pages/:pageId/diagrams/:name", h.save)
	rg.GET("/pages/:pageId/diagrams/:name/versions", h.versions)
}

func (h *Handler) list(c *gin.Context) {
	names, err := h.svc.ListNames(c.Request.Context(), c.Param("pageId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "names": names})
}

func (h *Handler) load(c *gin.Context) {
	version := 0
	if v := c.Query("version"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid version"})
			return
		}
		version = n
	}

	d, err := h.svc.Load(c.Request.Context(), c.Param("pageId"), c.Param("name"), version)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ok":         true,
		"xml":        d.XML,
		"svg":        d.SVG,
		"hasXml":     d.HasXML,
		"hasSvg":     d.HasSVG,
		"svgVersion": d.SVGVersion,
	})
}

type saveReq struct {
	XML        string `json:"xml"`
	SVG        string `json:"svg"`
	CreateOnly bool   `json:"createOnly"`
}

func (h *Handler) save(c *gin.Context) {
	var req saveReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	err := h.svc.Save(c.Request.Context(), SaveRequest{
		PageID:     c.Param("pageId"),
		Name:       c.Param("name"),
		XML:        req.XML,
		SVG:        req.SVG,
		CreateOnly: req.CreateOnly,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) versions(c *gin.Context) {
	versions, err := h.svc.ListVersions(c.Request.Context(), c.Param("pageId"), c.Param("name"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "versions": versions})
}

func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	var apiErr *confluence.APIError
	var upErr *confluence.UploadError
	switch {
	case errors.Is(err, ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"ok": false, "error": err.Error(), "status": http.StatusConflict})
		return
	case errors.Is(err, ErrMissingName), errors.Is(err, ErrInvalidName),
		errors.Is(err, ErrNoContent), errors.Is(err, ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.As(err, &apiErr), errors.As(err, &upErr):
		status = http.StatusBadGateway
	}
	c.JSON(status, gin.H{"ok": false, "error": err.Error()})
}

package files

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"mailmerge-backend/internal/shared/server/middleware"
	"mailmerge-backend/internal/shared/server/respond"
	"mailmerge-backend/internal/shared/telemetry"
)

// Handler serves generated files.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches file routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/files/:name", h.download)
	rg.GET("/files/:name/preview", h.preview)
	rg.GET("/files/:name/text", h.text)
	rg.GET("/files/:name/info", h.info)
}

// RegisterLegacyRoutes attaches the root-level download and preview routes.
func (h *Handler) RegisterLegacyRoutes(rg gin.IRoutes) {
	rg.GET("/files/:name", func(c *gin.Context) { h.serve(c, false, respond.LegacyError) })
	rg.GET("/preview/:name", func(c *gin.Context) { h.serve(c, true, respond.LegacyError) })
}

type errorWriter func(c *gin.Context, status int, code, message string, details interface{})

func (h *Handler) download(c *gin.Context) {
	h.serve(c, false, respond.Error)
}

func (h *Handler) preview(c *gin.Context) {
	h.serve(c, true, respond.Error)
}

func (h *Handler) serve(c *gin.Context, inline bool, write errorWriter) {
	name := c.Param("name")
	c.Set(middleware.FileNameKey, name)

	rc, info, err := h.Svc.Open(c.Request.Context(), name)
	if err != nil {
		writeErr(c, write, err)
		return
	}
	defer rc.Close()

	disposition := "attachment"
	if inline && info.ContentType == "application/pdf" {
		disposition = "inline"
	}
	c.Header("Content-Type", info.ContentType)
	c.Header("Content-Disposition", mime.FormatMediaType(disposition, map[string]string{"filename": info.DownloadName}))
	if info.SizeBytes > 0 {
		c.Header("Content-Length", strconv.FormatInt(info.SizeBytes, 10))
	}
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, rc); err != nil {
		telemetry.Warn("files.stream_failed", map[string]any{"file_name": info.Name, "err": err})
	}
}

func (h *Handler) text(c *gin.Context) {
	name := c.Param("name")
	c.Set(middleware.FileNameKey, name)

	text, err := h.Svc.Text(c.Request.Context(), name)
	if err != nil {
		writeErr(c, respond.Error, err)
		return
	}
	respond.OK(c, gin.H{"name": name, "text": text})
}

func (h *Handler) info(c *gin.Context) {
	name := c.Param("name")
	c.Set(middleware.FileNameKey, name)

	info, err := h.Svc.Info(c.Request.Context(), name)
	if err != nil {
		writeErr(c, respond.Error, err)
		return
	}
	respond.OK(c, info)
}

func writeErr(c *gin.Context, write errorWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		write(c, http.StatusNotFound, "not_found", "File not found", nil)
	case errors.Is(err, ErrUnsupported):
		write(c, http.StatusUnprocessableEntity, "unsupported_type", err.Error(), nil)
	default:
		write(c, http.StatusInternalServerError, "internal_error", "failed to read file", nil)
	}
}

package batches

import (
	"github.com/gin-gonic/gin"

	"mailmerge-backend/internal/shared/server/respond"
)

// RegisterLegacyRoutes attaches the root-level routes used by the upload form.
// They share the service with the versioned routes but answer errors as
// {"error": "..."}.
func (h *Handler) RegisterLegacyRoutes(rg gin.IRoutes) {
	rg.POST("/upload", func(c *gin.Context) { h.process(c, respond.LegacyError) })
	rg.POST("/send-email", func(c *gin.Context) { h.resend(c, respond.LegacyError) })
}

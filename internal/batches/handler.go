package batches

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"

	"mailmerge-backend/internal/mailer"
	"mailmerge-backend/internal/shared/server/middleware"
	"mailmerge-backend/internal/shared/server/respond"
)

const (
	defaultMaxUploadBytes = 10 << 20 // 10MB

	templateField = "template"
	dataField     = "datafile"
)

var errMissingFile = errors.New("missing file")

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
	// MaxUploadBytes caps the whole multipart request.
	MaxUploadBytes int64
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service, maxUploadBytes int64) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	return &Handler{Svc: svc, MaxUploadBytes: maxUploadBytes}
}

// RegisterRoutes attaches batch and delivery routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/batches", h.create)
	rg.GET("/batches/:id", h.get)
	rg.POST("/deliveries", h.deliver)
}

type errorWriter func(c *gin.Context, status int, code, message string, details interface{})

func (h *Handler) create(c *gin.Context) {
	h.process(c, respond.Error)
}

func (h *Handler) process(c *gin.Context, writeErr errorWriter) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUploadBytes)

	tmplName, tmplData, err := h.readUpload(c, templateField)
	if err != nil {
		writeUploadError(c, writeErr, err, "Both template and data files are required")
		return
	}
	dataName, data, err := h.readUpload(c, dataField)
	if err != nil {
		writeUploadError(c, writeErr, err, "Both template and data files are required")
		return
	}

	skipEmail, _ := strconv.ParseBool(c.Query("skipEmail"))
	batch, err := h.Svc.Process(c.Request.Context(), Input{
		TemplateName: tmplName,
		Template:     tmplData,
		DataName:     dataName,
		Data:         data,
		SkipEmail:    skipEmail,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput):
			writeErr(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		default:
			writeErr(c, http.StatusInternalServerError, "internal_error", "Error processing files", nil)
		}
		return
	}

	c.Set(middleware.BatchIDKey, batch.ID)
	respond.OK(c, toProcessResponse(batch))
}

func (h *Handler) get(c *gin.Context) {
	id := c.Param("id")
	c.Set(middleware.BatchIDKey, id)

	batch, err := h.Svc.Get(c.Request.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "batch not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch batch", nil)
		}
		return
	}
	respond.OK(c, toBatchResponse(batch))
}

func (h *Handler) deliver(c *gin.Context) {
	h.resend(c, respond.Error)
}

func (h *Handler) resend(c *gin.Context, writeErr errorWriter) {
	var req DeliveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErr(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	if req.BatchID != "" {
		c.Set(middleware.BatchIDKey, req.BatchID)
	}

	msgID, err := h.Svc.Resend(c.Request.Context(), req.toInput())
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput):
			writeErr(c, http.StatusBadRequest, "validation_error", "Missing required parameters", nil)
		case errors.Is(err, ErrNotFound):
			writeErr(c, http.StatusNotFound, "not_found", "Generated files not found", nil)
		case errors.Is(err, mailer.ErrInvalidAddress):
			writeErr(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		default:
			writeErr(c, http.StatusBadGateway, "delivery_failed", "Failed to send email", err.Error())
		}
		return
	}
	respond.OK(c, DeliveryResponse{Message: "Email sent successfully", MessageID: msgID})
}

// readUpload reads one multipart file. Parts too large for memory are kept
// on disk by the multipart reader and removed when the request ends.
func (h *Handler) readUpload(c *gin.Context, field string) (string, []byte, error) {
	fileHeader, err := c.FormFile(field)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return "", nil, err
		}
		return "", nil, fmt.Errorf("%w: %s", errMissingFile, field)
	}
	src, err := fileHeader.Open()
	if err != nil {
		return "", nil, err
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return "", nil, fmt.Errorf("read upload %s: %w", field, err)
	}
	return filepath.Base(fileHeader.Filename), data, nil
}

func writeUploadError(c *gin.Context, writeErr errorWriter, err error, missingMsg string) {
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		writeErr(c, http.StatusRequestEntityTooLarge, "payload_too_large", "upload exceeds the size limit", nil)
	case errors.Is(err, errMissingFile):
		writeErr(c, http.StatusBadRequest, "validation_error", missingMsg, nil)
	default:
		writeErr(c, http.StatusInternalServerError, "internal_error", "Error processing files", nil)
	}
}

package http

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lettertrack/lettertrack/internal/apperr"
	"github.com/lettertrack/lettertrack/internal/fulfillment"
	"github.com/lettertrack/lettertrack/internal/models"
	"github.com/lettertrack/lettertrack/internal/report"
	"github.com/lettertrack/lettertrack/internal/repository"
	"github.com/lettertrack/lettertrack/internal/upload"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	service        *fulfillment.Service
	exporter       *report.Exporter
	maxUploadBytes int64
	logger         *zap.Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(service *fulfillment.Service, exporter *report.Exporter, maxUploadBytes int64, logger *zap.Logger) *Handlers {
	return &Handlers{
		service:        service,
		exporter:       exporter,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
}

// respondError maps a classified error to an HTTP status. Unclassified
// errors stay opaque to the client.
func (h *Handlers) respondError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)

	status := http.StatusInternalServerError
	message := err.Error()
	switch kind {
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindConflict:
		status = http.StatusConflict
	case apperr.KindValidation:
		status = http.StatusBadRequest
	case apperr.KindPrecondition:
		status = http.StatusUnprocessableEntity
	case apperr.KindTransport:
		status = http.StatusBadGateway
	default:
		h.logger.Error("Unclassified handler error", zap.Error(err))
		message = "internal error"
	}

	c.JSON(status, Response{Success: false, Error: message, Code: string(kind)})
}

func (h *Handlers) respond(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{Success: true, Data: data})
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	h.respond(c, http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// CreateRequestBody is the payload for POST /api/requests
type CreateRequestBody struct {
	StudentName    string     `json:"student_name" binding:"required"`
	StudentEmail   string     `json:"student_email"`
	Deadline       *time.Time `json:"deadline"`
	ProfessorNotes string     `json:"professor_notes"`
}

// CreateRequest handles POST /api/requests
func (h *Handlers) CreateRequest(c *gin.Context) {
	var body CreateRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.respondError(c, apperr.Validation(err.Error()))
		return
	}

	req, err := h.service.CreateRequest(c.Request.Context(), fulfillment.CreateRequestInput{
		StudentName:    body.StudentName,
		StudentEmail:   body.StudentEmail,
		Deadline:       body.Deadline,
		ProfessorNotes: body.ProfessorNotes,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respond(c, http.StatusCreated, req)
}

// ListRequests handles GET /api/requests
func (h *Handlers) ListRequests(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	requests, err := h.service.ListRequests(c.Request.Context(), repository.ListFilter{
		Status: c.Query("status"),
		Search: c.Query("search"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respond(c, http.StatusOK, requests)
}

// GetRequest handles GET /api/requests/:id
func (h *Handlers) GetRequest(c *gin.Context) {
	req, err := h.service.GetRequest(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respond(c, http.StatusOK, req)
}

// UpdateRequest handles PATCH /api/requests/:id
func (h *Handlers) UpdateRequest(c *gin.Context) {
	var patch models.RequestPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		h.respondError(c, apperr.Validation(err.Error()))
		return
	}

	req, err := h.service.UpdateRequest(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respond(c, http.StatusOK, req)
}

// DeleteRequest handles DELETE /api/requests/:id
func (h *Handlers) DeleteRequest(c *gin.Context) {
	if err := h.service.DeleteRequest(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RegenerateAccessCode handles POST /api/requests/:id/regenerate-code
func (h *Handlers) RegenerateAccessCode(c *gin.Context) {
	req, err := h.service.RegenerateAccessCode(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respond(c, http.StatusOK, req)
}

// AddDestinationBody is the payload for POST /api/requests/:id/destinations
type AddDestinationBody struct {
	Method          string `json:"method" binding:"required"`
	RecipientEmail  string `json:"recipient_email"`
	RecipientName   string `json:"recipient_name"`
	InstitutionName string `json:"institution_name"`
	ProgramName     string `json:"program_name"`
}

// AddDestination handles POST /api/requests/:id/destinations
func (h *Handlers) AddDestination(c *gin.Context) {
	var body AddDestinationBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.respondError(c, apperr.Validation(err.Error()))
		return
	}

	dest, err := h.service.AddDestination(c.Request.Context(), c.Param("id"), fulfillment.AddDestinationInput{
		Method:          body.Method,
		RecipientEmail:  body.RecipientEmail,
		RecipientName:   body.RecipientName,
		InstitutionName: body.InstitutionName,
		ProgramName:     body.ProgramName,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respond(c, http.StatusCreated, dest)
}

// ListDestinations handles GET /api/requests/:id/destinations
func (h *Handlers) ListDestinations(c *gin.Context) {
	dests, err := h.service.ListDestinations(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respond(c, http.StatusOK, dests)
}

// UpdateDestination handles PATCH /api/destinations/:id
func (h *Handlers) UpdateDestination(c *gin.Context) {
	var patch models.DestinationPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		h.respondError(c, apperr.Validation(err.Error()))
		return
	}

	dest, err := h.service.UpdateDestination(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respond(c, http.StatusOK, dest)
}

// RemoveDestination handles DELETE /api/destinations/:id
func (h *Handlers) RemoveDestination(c *gin.Context) {
	if err := h.service.RemoveDestination(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// MarkDestinationSent handles POST /api/destinations/:id/sent
func (h *Handlers) MarkDestinationSent(c *gin.Context) {
	dest, err := h.service.MarkDestinationSent(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respond(c, http.StatusOK, dest)
}

// ConfirmDestination handles POST /api/destinations/:id/confirm
func (h *Handlers) ConfirmDestination(c *gin.Context) {
	dest, err := h.service.ConfirmDestination(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respond(c, http.StatusOK, dest)
}

// ResetDestination handles POST /api/destinations/:id/reset
func (h *Handlers) ResetDestination(c *gin.Context) {
	dest, err := h.service.ResetDestination(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respond(c, http.StatusOK, dest)
}

// CreateLetterBody is the payload for POST /api/requests/:id/letters
type CreateLetterBody struct {
	TemplateID string             `json:"template_id"`
	Content    string             `json:"content"`
	Variables  map[string]*string `json:"variables"`
}

// CreateLetter handles POST /api/requests/:id/letters
func (h *Handlers) CreateLetter(c *gin.Context) {
	var body CreateLetterBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.respondError(c, apperr.Validation(err.Error()))
		return
	}

	letter, err := h.service.CreateLetter(c.Request.Context(), c.Param("id"), fulfillment.CreateLetterInput{
		TemplateID: body.TemplateID,
		Content:    body.Content,
		Variables:  body.Variables,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respond(c, http.StatusCreated, letter)
}

// ListLetters handles GET /api/requests/:id/letters
func (h *Handlers) ListLetters(c *gin.Context) {
	letters, err := h.service.ListLetters(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respond(c, http.StatusOK, letters)
}

// GetLetter handles GET /api/letters/:id
func (h *Handlers) GetLetter(c *gin.Context) {
	letter, err := h.service.GetLetter(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respond(c, http.StatusOK, letter)
}

// DownloadLetter handles GET /api/letters/:id/download
func (h *Handlers) DownloadLetter(c *gin.Context) {
	path, err := h.service.LetterArtifact(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.FileAttachment(path, filepath.Base(path))
}

// DeleteLetter handles DELETE /api/letters/:id
func (h *Handlers) DeleteLetter(c *gin.Context) {
	if err := h.service.DeleteLetter(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DispatchEmailBody is the payload for POST /api/letters/:id/dispatch
type DispatchEmailBody struct {
	DestinationID string `json:"destination_id" binding:"required"`
}

// DispatchEmail handles POST /api/letters/:id/dispatch
func (h *Handlers) DispatchEmail(c *gin.Context) {
	var body DispatchEmailBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.respondError(c, apperr.Validation(err.Error()))
		return
	}

	dest, err := h.service.DispatchEmail(c.Request.Context(), c.Param("id"), body.DestinationID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respond(c, http.StatusOK, dest)
}

// ListDocuments handles GET /api/requests/:id/documents
func (h *Handlers) ListDocuments(c *gin.Context) {
	docs, err := h.service.ListDocuments(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respond(c, http.StatusOK, docs)
}

// DeleteDocument handles DELETE /api/documents/:id
func (h *Handlers) DeleteDocument(c *gin.Context) {
	if err := h.service.DeleteDocument(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListTemplates handles GET /api/templates
func (h *Handlers) ListTemplates(c *gin.Context) {
	templates, err := h.service.ListTemplates(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respond(c, http.StatusOK, templates)
}

// CreateTemplate handles POST /api/templates
func (h *Handlers) CreateTemplate(c *gin.Context) {
	var tmpl models.Template
	if err := c.ShouldBindJSON(&tmpl); err != nil {
		h.respondError(c, apperr.Validation(err.Error()))
		return
	}

	created, err := h.service.CreateTemplate(c.Request.Context(), &tmpl)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respond(c, http.StatusCreated, created)
}

// GetTemplate handles GET /api/templates/:id
func (h *Handlers) GetTemplate(c *gin.Context) {
	tmpl, err := h.service.GetTemplate(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respond(c, http.StatusOK, tmpl)
}

// UpdateTemplate handles PATCH /api/templates/:id
func (h *Handlers) UpdateTemplate(c *gin.Context) {
	var patch models.TemplatePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		h.respondError(c, apperr.Validation(err.Error()))
		return
	}

	tmpl, err := h.service.UpdateTemplate(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respond(c, http.StatusOK, tmpl)
}

// DeleteTemplate handles DELETE /api/templates/:id
func (h *Handlers) DeleteTemplate(c *gin.Context) {
	if err := h.service.DeleteTemplate(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SetDefaultTemplate handles POST /api/templates/:id/default
func (h *Handlers) SetDefaultTemplate(c *gin.Context) {
	if err := h.service.SetDefaultTemplate(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ExportStatusReport handles GET /api/reports/status
func (h *Handlers) ExportStatusReport(c *gin.Context) {
	ctx := c.Request.Context()

	requests, err := h.service.ListRequests(ctx, repository.ListFilter{Limit: 1000})
	if err != nil {
		h.respondError(c, err)
		return
	}

	rows := make([]report.RequestRow, 0, len(requests))
	for _, req := range requests {
		dests, err := h.service.ListDestinations(ctx, req.ID)
		if err != nil {
			h.respondError(c, err)
			return
		}
		rows = append(rows, report.RequestRow{Request: req, Destinations: dests})
	}

	outputPath := filepath.Join(os.TempDir(), "lettertrack-status.xlsx")
	if err := h.exporter.Export(rows, outputPath); err != nil {
		h.respondError(c, err)
		return
	}
	defer os.Remove(outputPath)

	c.FileAttachment(outputPath, "status.xlsx")
}

// StudentGetRequest handles GET /student/requests/:code
func (h *Handlers) StudentGetRequest(c *gin.Context) {
	req, err := h.service.GetRequestByAccessCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	// The student view omits professor-only fields.
	h.respond(c, http.StatusOK, gin.H{
		"access_code":  req.AccessCode,
		"student_name": req.StudentName,
		"status":       req.Status,
		"deadline":     req.Deadline,
	})
}

// StudentUploadDocuments handles POST /student/requests/:code/documents
func (h *Handlers) StudentUploadDocuments(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		h.respondError(c, apperr.Validation(err.Error()))
		return
	}

	var files []upload.IncomingFile
	for _, fh := range form.File["files"] {
		if fh.Size > h.maxUploadBytes {
			h.respondError(c, apperr.Validationf("file %s exceeds the size limit", fh.Filename))
			return
		}

		f, err := fh.Open()
		if err != nil {
			h.respondError(c, err)
			return
		}
		content, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			h.respondError(c, err)
			return
		}

		files = append(files, upload.IncomingFile{
			OriginalName: fh.Filename,
			DeclaredMIME: fh.Header.Get("Content-Type"),
			Content:      content,
		})
	}

	outcome, err := h.service.UploadDocuments(c.Request.Context(), c.Param("code"), files)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respond(c, http.StatusOK, outcome)
}

package http

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/expense-drafts/internal/application/service"
	"github.com/garyjia/expense-drafts/internal/domain/entity"
	"github.com/garyjia/expense-drafts/internal/domain/payload"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Handlers contains all HTTP request handlers
type Handlers struct {
	receipts       service.ReceiptService
	drafts         service.DraftService
	references     service.ReferenceService
	export         service.ExportService
	maxUploadBytes int64
	logger         Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(services Services, maxUploadBytes int64, logger Logger) *Handlers {
	return &Handlers{
		receipts:       services.Receipts,
		drafts:         services.Drafts,
		references:     services.References,
		export:         services.Export,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// UploadResponse is returned after a receipt is stored
type UploadResponse struct {
	ReceiptID string               `json:"receiptId"`
	Receipt   *entity.ReceiptAsset `json:"receipt"`
}

// ExtractResponse is returned after a receipt has been turned into a draft
type ExtractResponse struct {
	DraftID    string               `json:"draftId"`
	Extraction entity.ExtractedData `json:"extraction"`
	Draft      *entity.ExpenseDraft `json:"draft"`
}

// CategorizeResponse carries the merged draft and the accepted suggestion
type CategorizeResponse struct {
	Draft      *entity.ExpenseDraft `json:"draft"`
	Suggestion map[string]any       `json:"suggestion"`
	Dropped    []payload.FieldIssue `json:"dropped,omitempty"`
}

// ListRequest represents query parameters for list endpoints
type ListRequest struct {
	Limit int `form:"limit"`
}

// UpdateDraftRequest is the body of PATCH /api/drafts/:id
type UpdateDraftRequest struct {
	Extraction         *entity.ExtractedData `json:"extraction"`
	EmployeeID         *string               `json:"employeeId"`
	FunctionalTeamCode *string               `json:"functionalTeamCode"`
	TripID             *string               `json:"tripId"`
	AILabels           []string              `json:"aiLabels"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   "1.0.0",
		},
	})
}

// UploadReceipt handles POST /api/upload (multipart field "file", optional "employeeId")
func (h *Handlers) UploadReceipt(c *gin.Context) {
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}

	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.fail(c, http.StatusRequestEntityTooLarge, "file_too_large", err)
			return
		}
		h.fail(c, http.StatusBadRequest, "missing_file", err)
		return
	}

	f, err := header.Open()
	if err != nil {
		h.fail(c, http.StatusBadRequest, "unreadable_file", err)
		return
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		h.fail(c, http.StatusBadRequest, "unreadable_file", err)
		return
	}

	in := service.UploadInput{
		Filename: header.Filename,
		Mime:     header.Header.Get("Content-Type"),
		Content:  content,
	}
	if employeeID := c.PostForm("employeeId"); employeeID != "" {
		in.EmployeeID = &employeeID
	}

	receipt, err := h.receipts.Upload(c.Request.Context(), in)
	if err != nil {
		h.serviceError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    UploadResponse{ReceiptID: receipt.ID, Receipt: receipt},
	})
}

// ExtractReceipt handles POST /api/ocr/:id
func (h *Handlers) ExtractReceipt(c *gin.Context) {
	draft, err := h.drafts.ExtractReceipt(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.serviceError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: ExtractResponse{
			DraftID:    draft.ID,
			Extraction: draft.Extraction,
			Draft:      draft,
		},
	})
}

// ListDrafts handles GET /api/drafts
func (h *Handlers) ListDrafts(c *gin.Context) {
	var req ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.fail(c, http.StatusBadRequest, "invalid_query", err)
		return
	}

	drafts, err := h.drafts.ListDrafts(c.Request.Context(), req.Limit)
	if err != nil {
		h.serviceError(c, err)
		return
	}
	if drafts == nil {
		drafts = []*entity.ExpenseDraft{}
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: drafts})
}

// GetDraft handles GET /api/drafts/:id
func (h *Handlers) GetDraft(c *gin.Context) {
	draft, err := h.drafts.GetDraft(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.serviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: draft})
}

// UpdateDraft handles PATCH /api/drafts/:id
func (h *Handlers) UpdateDraft(c *gin.Context) {
	var req UpdateDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if req.Extraction == nil {
		h.fail(c, http.StatusBadRequest, "missing_extraction", nil)
		return
	}

	draft, err := h.drafts.UpdateDraft(c.Request.Context(), c.Param("id"), service.DraftEdit{
		Extraction:         req.Extraction,
		EmployeeID:         req.EmployeeID,
		FunctionalTeamCode: req.FunctionalTeamCode,
		TripID:             req.TripID,
		AILabels:           req.AILabels,
	})
	if err != nil {
		h.serviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: draft})
}

// EvaluatePolicy handles POST /api/drafts/:id/policy
func (h *Handlers) EvaluatePolicy(c *gin.Context) {
	draft, err := h.drafts.EvaluatePolicy(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.serviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: draft})
}

// CategorizeDraft handles POST /api/drafts/:id/categorize
func (h *Handlers) CategorizeDraft(c *gin.Context) {
	result, err := h.drafts.Categorize(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.serviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: CategorizeResponse{
			Draft:      result.Draft,
			Suggestion: result.Suggestion,
			Dropped:    result.Dropped,
		},
	})
}

// SubmitDraft handles POST /api/drafts/:id/submit
func (h *Handlers) SubmitDraft(c *gin.Context) {
	draft, err := h.drafts.Submit(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.serviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: draft})
}

// ExportDrafts handles GET /api/export/drafts.xlsx
func (h *Handlers) ExportDrafts(c *gin.Context) {
	var req ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.fail(c, http.StatusBadRequest, "invalid_query", err)
		return
	}

	data, err := h.export.DraftsWorkbook(c.Request.Context(), req.Limit)
	if err != nil {
		h.serviceError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="drafts.xlsx"`)
	c.Data(http.StatusOK, xlsxContentType, data)
}

// serviceError maps a service failure kind to a status code
func (h *Handlers) serviceError(c *gin.Context, err error) {
	h.fail(c, statusFor(err), service.Kind(err), err)
}

func (h *Handlers) fail(c *gin.Context, status int, code string, err error) {
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", "request_id", requestID(c), "path", c.FullPath(), "code", code, "error", err)
	} else {
		h.logger.Info("Request rejected", "request_id", requestID(c), "path", c.FullPath(), "code", code, "error", err)
	}
	c.JSON(status, Response{Success: false, Error: code})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrExtractionFailed), errors.Is(err, service.ErrCategorizeFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

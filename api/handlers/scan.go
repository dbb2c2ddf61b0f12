package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/sit-pipeline/internal/models"
	"github.com/feichai0017/sit-pipeline/internal/repository"
	"github.com/feichai0017/sit-pipeline/internal/service/scan"
	"github.com/feichai0017/sit-pipeline/internal/utils/validator"
	"github.com/feichai0017/sit-pipeline/pkg/logger"
)

type ScanHandler struct {
	service *scan.Service
	logger  logger.ContextLogger
}

func NewScanHandler(service *scan.Service, log logger.ContextLogger) *ScanHandler {
	return &ScanHandler{service: service, logger: log}
}

type CreateScanResponse struct {
	ScanID         string            `json:"scan_id"`
	Status         models.ScanStatus `json:"status"`
	FilesCount     int               `json:"files_count"`
	TotalSizeBytes int64             `json:"total_size_bytes"`
	CreatedAt      string            `json:"created_at"`
}

type CandidatePage struct {
	Candidates []models.Candidate `json:"candidates"`
	Total      int64              `json:"total"`
	Page       int                `json:"page"`
	PageSize   int                `json:"page_size"`
}

// CreateScan accepts a multipart upload of one or more "files".
func (h *ScanHandler) CreateScan(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		handleError(c, h.logger, "Invalid form data", fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}

	req := validator.ScanRequest{
		Name:                 c.PostForm("name"),
		ScanType:             models.ScanType(c.PostForm("scan_type")),
		SitCategory:          c.PostForm("sit_category"),
		UserPrincipalName:    c.PostForm("user_principal_name"),
		ExchangeAccessToken:  c.PostForm("exchange_access_token"),
		ExchangeOrganization: c.PostForm("exchange_organization"),
	}
	if req.PreserveCase, err = formBool(c, "preserve_case"); err != nil {
		handleError(c, h.logger, "Invalid form data", err)
		return
	}
	if req.ForceOCR, err = formBool(c, "force_ocr"); err != nil {
		handleError(c, h.logger, "Invalid form data", err)
		return
	}

	s, err := h.service.CreateScan(c.Request.Context(), req, form.File["files"])
	if err != nil {
		handleError(c, h.logger, "Failed to create scan", err)
		return
	}

	c.JSON(http.StatusCreated, CreateScanResponse{
		ScanID:         s.ID,
		Status:         s.Status,
		FilesCount:     s.SourceFilesCount,
		TotalSizeBytes: s.TotalSizeBytes,
		CreatedAt:      s.CreatedAt.Format(time.RFC3339),
	})
}

func formBool(c *gin.Context, key string) (bool, error) {
	v := strings.TrimSpace(c.PostForm(key))
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%w: %s must be a boolean", errBadRequest, key)
	}
	return b, nil
}

func (h *ScanHandler) GetScan(c *gin.Context) {
	s, err := h.service.GetScan(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, h.logger, "Failed to get scan", err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *ScanHandler) ListFiles(c *gin.Context) {
	id := c.Param("id")
	files, err := h.service.ListFiles(c.Request.Context(), id)
	if err != nil {
		handleError(c, h.logger, "Failed to list files", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"scan_id": id, "files": files})
}

func (h *ScanHandler) ListCandidates(c *gin.Context) {
	filter, err := candidateFilter(c)
	if err != nil {
		handleError(c, h.logger, "Invalid query", err)
		return
	}

	candidates, total, err := h.service.ListCandidates(c.Request.Context(), c.Param("id"), filter)
	if err != nil {
		handleError(c, h.logger, "Failed to list candidates", err)
		return
	}
	if candidates == nil {
		candidates = []models.Candidate{}
	}
	c.JSON(http.StatusOK, CandidatePage{
		Candidates: candidates,
		Total:      total,
		Page:       filter.Offset/filter.Limit + 1,
		PageSize:   filter.Limit,
	})
}

func candidateFilter(c *gin.Context) (models.CandidateFilter, error) {
	filter := models.CandidateFilter{Limit: repository.DefaultCandidateLimit}

	if v := c.Query("type"); v != "" {
		t := models.CandidateType(strings.ToUpper(v))
		if t != models.CandidatePattern && t != models.CandidateKeyword && t != models.CandidateEntity {
			return filter, fmt.Errorf("%w: unknown candidate type %q", errBadRequest, v)
		}
		filter.Type = t
	}
	if v := c.Query("element_hint"); v != "" {
		hint := models.ElementTypeHint(strings.ToUpper(v))
		if hint != models.HintRegex && hint != models.HintKeywordList && hint != models.HintDictionary {
			return filter, fmt.Errorf("%w: unknown element hint %q", errBadRequest, v)
		}
		filter.ElementHint = hint
	}
	if v := c.Query("min_score"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return filter, fmt.Errorf("%w: min_score must be a number", errBadRequest)
		}
		filter.MinScore = &f
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > repository.MaxCandidateLimit {
			return filter, fmt.Errorf("%w: limit must be between 1 and %d", errBadRequest, repository.MaxCandidateLimit)
		}
		filter.Limit = n
	}
	if v := c.Query("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return filter, fmt.Errorf("%w: offset must be >= 0", errBadRequest)
		}
		filter.Offset = n
	}
	return filter, nil
}

func (h *ScanHandler) GetProgress(c *gin.Context) {
	u, err := h.service.GetProgress(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, h.logger, "Failed to get progress", err)
		return
	}
	c.JSON(http.StatusOK, u)
}

// Events streams progress as server-sent events until the scan finishes or
// the client goes away. Watch closes the channel in both cases.
func (h *ScanHandler) Events(c *gin.Context) {
	updates := h.service.Watch(c.Request.Context(), c.Param("id"))
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	for u := range updates {
		event := "progress"
		if u.Error != "" && u.Status == "" {
			event = "error"
		}
		c.SSEvent(event, u)
		c.Writer.Flush()
	}
}

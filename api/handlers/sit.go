package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	rules "github.com/feichai0017/sit-pipeline/internal/agent/sit"
	"github.com/feichai0017/sit-pipeline/internal/models"
	"github.com/feichai0017/sit-pipeline/internal/service/sit"
	"github.com/feichai0017/sit-pipeline/pkg/logger"
)

type SitHandler struct {
	service *sit.Service
	logger  logger.ContextLogger
}

func NewSitHandler(service *sit.Service, log logger.ContextLogger) *SitHandler {
	return &SitHandler{service: service, logger: log}
}

type TestSitRequest struct {
	SampleText string `json:"sample_text"`
}

type TestSitResponse struct {
	Matches    []models.SitMatch `json:"matches"`
	MatchCount int               `json:"match_count"`
}

type SitResponse struct {
	Sit      models.SitDefinition     `json:"sit"`
	Elements []models.SitElement      `json:"elements"`
	Groups   []models.SitElementGroup `json:"groups"`
	Links    []models.SitGroupElement `json:"group_elements"`
	Filters  []models.SitFilter       `json:"filters"`
}

func bindJSON(c *gin.Context, v interface{}) error {
	if err := c.ShouldBindJSON(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func (h *SitHandler) CreateSit(c *gin.Context) {
	var req sit.CreateRequest
	if err := bindJSON(c, &req); err != nil {
		handleError(c, h.logger, "Invalid request body", err)
		return
	}
	def, err := h.service.CreateSit(c.Request.Context(), req)
	if err != nil {
		handleError(c, h.logger, "Failed to create SIT", err)
		return
	}
	c.JSON(http.StatusCreated, def)
}

func (h *SitHandler) GetSit(c *gin.Context) {
	b, err := h.service.GetSit(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, h.logger, "Failed to get SIT", err)
		return
	}
	c.JSON(http.StatusOK, SitResponse{
		Sit:      b.Sit,
		Elements: nonNil(b.Elements),
		Groups:   nonNil(b.Groups),
		Links:    nonNil(b.Links),
		Filters:  nonNil(b.Filters),
	})
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func (h *SitHandler) AddElement(c *gin.Context) {
	var spec rules.ElementSpec
	if err := bindJSON(c, &spec); err != nil {
		handleError(c, h.logger, "Invalid request body", err)
		return
	}
	el, err := h.service.AddElement(c.Request.Context(), c.Param("id"), spec)
	if err != nil {
		handleError(c, h.logger, "Failed to add element", err)
		return
	}
	c.JSON(http.StatusCreated, el)
}

func (h *SitHandler) AddGroup(c *gin.Context) {
	var spec rules.GroupSpec
	if err := bindJSON(c, &spec); err != nil {
		handleError(c, h.logger, "Invalid request body", err)
		return
	}
	g, err := h.service.AddGroup(c.Request.Context(), c.Param("id"), spec)
	if err != nil {
		handleError(c, h.logger, "Failed to add group", err)
		return
	}
	c.JSON(http.StatusCreated, g)
}

func (h *SitHandler) AddFilter(c *gin.Context) {
	var spec rules.FilterSpec
	if err := bindJSON(c, &spec); err != nil {
		handleError(c, h.logger, "Invalid request body", err)
		return
	}
	f, err := h.service.AddFilter(c.Request.Context(), c.Param("id"), spec)
	if err != nil {
		handleError(c, h.logger, "Failed to add filter", err)
		return
	}
	c.JSON(http.StatusCreated, f)
}

func (h *SitHandler) Publish(c *gin.Context) {
	def, err := h.service.Publish(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, h.logger, "Failed to publish SIT", err)
		return
	}
	c.JSON(http.StatusOK, def)
}

func (h *SitHandler) TestSit(c *gin.Context) {
	var req TestSitRequest
	if err := bindJSON(c, &req); err != nil {
		handleError(c, h.logger, "Invalid request body", err)
		return
	}
	matches, err := h.service.TestSit(c.Request.Context(), c.Param("id"), req.SampleText)
	if err != nil {
		handleError(c, h.logger, "Failed to test SIT", err)
		return
	}
	c.JSON(http.StatusOK, TestSitResponse{Matches: matches, MatchCount: len(matches)})
}

package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/sit-pipeline/internal/service/scan"
	"github.com/feichai0017/sit-pipeline/internal/service/sit"
	"github.com/feichai0017/sit-pipeline/internal/utils/validator"
	"github.com/feichai0017/sit-pipeline/pkg/logger"
)

type Handlers struct {
	Scan   *ScanHandler
	Sit    *SitHandler
	Health *HealthHandler
}

func NewHandlers(
	scanService *scan.Service,
	sitService *sit.Service,
	health *HealthHandler,
	log logger.Logger,
) *Handlers {
	ctxLog := logger.NewContextLogger(log.Named("api"))
	return &Handlers{
		Scan:   NewScanHandler(scanService, ctxLog),
		Sit:    NewSitHandler(sitService, ctxLog),
		Health: health,
	}
}

// ErrorResponse 定义错误响应结构
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, scan.ErrScanNotFound), errors.Is(err, sit.ErrSitNotFound):
		return http.StatusNotFound
	case errors.Is(err, validator.ErrInvalidUpload),
		errors.Is(err, sit.ErrInvalidSit),
		errors.Is(err, sit.ErrSitNotEditable),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

var errBadRequest = errors.New("bad request")

// handleError 统一错误处理
func handleError(c *gin.Context, log logger.ContextLogger, message string, err error) {
	status := statusFor(err)
	l := log.FromContext(c.Request.Context())
	if status >= http.StatusInternalServerError {
		l.Error(message, logger.String("path", c.Request.URL.Path), logger.Error(err))
	} else {
		l.Debug(message, logger.String("path", c.Request.URL.Path), logger.Error(err))
	}

	response := ErrorResponse{Message: message}
	if err != nil {
		response.Error = err.Error()
	}
	c.AbortWithStatusJSON(status, response)
}

// internal/utils/validator/upload.go
package validator

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/feichai0017/sit-pipeline/internal/models"
	"github.com/feichai0017/sit-pipeline/pkg/logger"
)

// ErrInvalidUpload wraps every rejected upload or scan request.
var ErrInvalidUpload = errors.New("invalid upload")

// UploadValidator 上传文件验证器
type UploadValidator struct {
	logger logger.Logger
	config *ValidatorConfig
}

// ValidatorConfig 验证器配置
type ValidatorConfig struct {
	MaxFileSize int64 // 单个文件最大字节数
	MaxFiles    int   // 单次扫描最多文件数
}

// ValidationResult 验证结果
type ValidationResult struct {
	IsValid  bool              `json:"isValid"`
	Errors   []ValidationError `json:"errors,omitempty"`
	FileInfo FileInfo          `json:"fileInfo"`
}

// ValidationError 验证错误
type ValidationError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func (e ValidationError) Error() string { return e.Message }

// FileInfo 文件信息
type FileInfo struct {
	Filename    string `json:"filename"`
	Size        int64  `json:"size"`
	ContentType string `json:"contentType"`
	Extension   string `json:"extension"`
	Hash        string `json:"hash"`
}

// ScanRequest is the caller input for a new scan, before files are stored.
type ScanRequest struct {
	Name                 string
	ScanType             models.ScanType
	SitCategory          string
	PreserveCase         bool
	ForceOCR             bool
	UserPrincipalName    string
	ExchangeAccessToken  string
	ExchangeOrganization string
}

func NewUploadValidator(log logger.Logger, config *ValidatorConfig) *UploadValidator {
	if config == nil {
		config = &ValidatorConfig{
			MaxFileSize: 50 * 1024 * 1024, // 50MB
			MaxFiles:    50,
		}
	}
	return &UploadValidator{
		logger: log.Named("validator"),
		config: config,
	}
}

// ValidateScanRequest checks the scan options. An empty scan type defaults
// to classic_nlp; force OCR is dropped for sentence_transformer scans.
func (v *UploadValidator) ValidateScanRequest(req *ScanRequest) error {
	if req.ScanType == "" {
		req.ScanType = models.ScanTypeClassicNLP
	}
	if !req.ScanType.Valid() {
		return fmt.Errorf("%w: scan_type must be %q or %q", ErrInvalidUpload, models.ScanTypeClassicNLP, models.ScanTypeSentenceTransformer)
	}
	if req.ScanType == models.ScanTypeSentenceTransformer {
		if strings.TrimSpace(req.UserPrincipalName) == "" {
			return fmt.Errorf("%w: user_principal_name is required for sentence_transformer scans", ErrInvalidUpload)
		}
		if strings.TrimSpace(req.ExchangeAccessToken) == "" {
			return fmt.Errorf("%w: exchange_access_token is required for sentence_transformer scans", ErrInvalidUpload)
		}
		req.ForceOCR = false
	}
	return nil
}

// ValidateFile 验证单个文件
func (v *UploadValidator) ValidateFile(file *multipart.FileHeader) (*ValidationResult, error) {
	result := &ValidationResult{
		IsValid: true,
		FileInfo: FileInfo{
			Filename:    file.Filename,
			Size:        file.Size,
			ContentType: file.Header.Get("Content-Type"),
			Extension:   strings.ToLower(filepath.Ext(file.Filename)),
		},
	}

	if errs := v.performBasicValidation(result.FileInfo); len(errs) > 0 {
		result.IsValid = false
		result.Errors = append(result.Errors, errs...)
		return result, nil
	}

	f, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	if result.FileInfo.ContentType == "" || result.FileInfo.ContentType == "application/octet-stream" {
		// 客户端未声明类型时按内容嗅探
		mimeType, err := v.detectMimeType(f)
		if err != nil {
			return nil, fmt.Errorf("failed to detect mime type: %w", err)
		}
		result.FileInfo.ContentType = mimeType
	}

	hash, err := v.calculateHash(f)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate hash: %w", err)
	}
	result.FileInfo.Hash = hash
	return result, nil
}

// ValidateFiles 批量验证文件, results keep the upload order.
func (v *UploadValidator) ValidateFiles(files []*multipart.FileHeader) ([]*ValidationResult, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no files uploaded", ErrInvalidUpload)
	}
	if v.config.MaxFiles > 0 && len(files) > v.config.MaxFiles {
		return nil, fmt.Errorf("%w: at most %d files per scan", ErrInvalidUpload, v.config.MaxFiles)
	}

	results := make([]*ValidationResult, len(files))
	var g errgroup.Group
	for i, file := range files {
		g.Go(func() error {
			result, err := v.ValidateFile(file)
			if err != nil {
				return err
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, r := range results {
		if !r.IsValid {
			v.logger.Warn("Upload rejected",
				logger.String("filename", r.FileInfo.Filename),
				logger.String("code", r.Errors[0].Code),
			)
			return results, fmt.Errorf("%w: %s: %s", ErrInvalidUpload, r.FileInfo.Filename, r.Errors[0].Message)
		}
	}
	return results, nil
}

// 基本验证
func (v *UploadValidator) performBasicValidation(info FileInfo) []ValidationError {
	var errs []ValidationError
	if info.Size <= 0 {
		errs = append(errs, ValidationError{
			Code:    "EMPTY_FILE",
			Message: "file is empty",
			Field:   "size",
		})
	}
	if v.config.MaxFileSize > 0 && info.Size > v.config.MaxFileSize {
		errs = append(errs, ValidationError{
			Code:    "FILE_TOO_LARGE",
			Message: fmt.Sprintf("file size exceeds maximum limit of %d bytes", v.config.MaxFileSize),
			Field:   "size",
		})
	}
	if strings.TrimSpace(info.Filename) == "" {
		errs = append(errs, ValidationError{
			Code:    "MISSING_FILENAME",
			Message: "file name is required",
			Field:   "filename",
		})
	}
	return errs
}

// 检测MIME类型
func (v *UploadValidator) detectMimeType(file multipart.File) (string, error) {
	buffer := make([]byte, 512)
	n, err := file.Read(buffer)
	if err != nil && err != io.EOF {
		return "", err
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return http.DetectContentType(buffer[:n]), nil
}

// 计算文件哈希
func (v *UploadValidator) calculateHash(file multipart.File) (string, error) {
	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}

package validator

import (
	"bytes"
	"errors"
	"mime/multipart"
	"net/textproto"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/sit-pipeline/internal/models"
	"github.com/feichai0017/sit-pipeline/pkg/logger"
)

type upload struct {
	name        string
	contentType string
	body        []byte
}

func headers(t *testing.T, uploads ...upload) []*multipart.FileHeader {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, u := range uploads {
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", `form-data; name="files"; filename="`+u.name+`"`)
		if u.contentType != "" {
			h.Set("Content-Type", u.contentType)
		}
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(u.body)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	form, err := multipart.NewReader(&buf, w.Boundary()).ReadForm(1 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { form.RemoveAll() })
	return form.File["files"]
}

func TestValidateFiles(t *testing.T) {
	v := NewUploadValidator(logger.NewTestLogger(), &ValidatorConfig{MaxFileSize: 16, MaxFiles: 3})

	results, err := v.ValidateFiles(headers(t,
		upload{name: "a.txt", contentType: "text/plain", body: []byte("hello")},
		upload{name: "b.bin", body: []byte("%PDF-1.4 tiny")},
	))
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a.txt", results[0].FileInfo.Filename)
	assert.Equal(t, "text/plain", results[0].FileInfo.ContentType)
	assert.Equal(t, "application/pdf", results[1].FileInfo.ContentType)
	assert.Len(t, results[0].FileInfo.Hash, 64)
}

func TestValidateFilesRejects(t *testing.T) {
	v := NewUploadValidator(logger.NewTestLogger(), &ValidatorConfig{MaxFileSize: 4, MaxFiles: 2})

	tests := []struct {
		name    string
		uploads []upload
	}{
		{"none", nil},
		{"too many", []upload{{name: "a", body: []byte("1")}, {name: "b", body: []byte("1")}, {name: "c", body: []byte("1")}}},
		{"too large", []upload{{name: "big.txt", body: []byte("12345")}}},
		{"empty", []upload{{name: "empty.txt", body: nil}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var files []*multipart.FileHeader
			if len(tt.uploads) > 0 {
				files = headers(t, tt.uploads...)
			}
			_, err := v.ValidateFiles(files)
			assert.True(t, errors.Is(err, ErrInvalidUpload), "got %v", err)
		})
	}
}

func TestValidateScanRequest(t *testing.T) {
	v := NewUploadValidator(logger.NewTestLogger(), nil)

	req := &ScanRequest{ForceOCR: true}
	require.NoError(t, v.ValidateScanRequest(req))
	assert.Equal(t, models.ScanTypeClassicNLP, req.ScanType)
	assert.True(t, req.ForceOCR)

	req = &ScanRequest{ScanType: "bert"}
	assert.True(t, errors.Is(v.ValidateScanRequest(req), ErrInvalidUpload))

	req = &ScanRequest{ScanType: models.ScanTypeSentenceTransformer, ExchangeAccessToken: "t"}
	assert.ErrorContains(t, v.ValidateScanRequest(req), "user_principal_name")

	req = &ScanRequest{ScanType: models.ScanTypeSentenceTransformer, UserPrincipalName: "u@x"}
	assert.ErrorContains(t, v.ValidateScanRequest(req), "exchange_access_token")

	req = &ScanRequest{ScanType: models.ScanTypeSentenceTransformer, UserPrincipalName: "u@x", ExchangeAccessToken: "t", ForceOCR: true}
	require.NoError(t, v.ValidateScanRequest(req))
	assert.False(t, req.ForceOCR)
}

package document

import (
	"archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/sit-pipeline/internal/models"
	"github.com/feichai0017/sit-pipeline/pkg/logger"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func writeDocx(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sample.docx")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(body))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

func TestExtractPlainText(t *testing.T) {
	e := NewExtractor(logger.NewTestLogger())
	path := writeFile(t, "notes.TXT", []byte("hello \xff world"))

	res := e.Extract(context.Background(), path, "", true)

	assert.Equal(t, "hello  world", res.Text)
	assert.Equal(t, models.ExtractionNative, res.Method)
	assert.Equal(t, ModuleText, res.Module())
	assert.Equal(t, true, res.Metadata[models.MetaForceOCRRequested])
	assert.False(t, res.OCRPerformed())
}

func TestExtractDispatchesByExtensionNotContentType(t *testing.T) {
	e := NewExtractor(logger.NewTestLogger())
	path := writeFile(t, "data.csv", []byte("a,b\n1,2"))

	res := e.Extract(context.Background(), path, "application/pdf", false)

	assert.Equal(t, ModuleText, res.Module())
	assert.Equal(t, "application/pdf", res.Metadata[models.MetaMime])
}

func TestExtractJSONKeepsKeyOrder(t *testing.T) {
	e := NewExtractor(logger.NewTestLogger())
	path := writeFile(t, "doc.json", []byte(`{"z":1,"a":[true,null]}`))

	res := e.Extract(context.Background(), path, "", false)

	assert.Equal(t, "{\n  \"z\": 1,\n  \"a\": [\n    true,\n    null\n  ]\n}", res.Text)
	assert.Equal(t, ModuleJSON, res.Module())
}

func TestExtractInvalidJSONFallsBackToRawText(t *testing.T) {
	e := NewExtractor(logger.NewTestLogger())
	path := writeFile(t, "broken.json", []byte(`{"a": `))

	res := e.Extract(context.Background(), path, "", false)

	assert.Equal(t, `{"a": `, res.Text)
	assert.Equal(t, ModuleJSON, res.Module())
}

func TestExtractDocxParagraphs(t *testing.T) {
	body := `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>
<w:p><w:r><w:t>First</w:t></w:r><w:r><w:t xml:space="preserve"> paragraph</w:t></w:r></w:p>
<w:p><w:r><w:t>Second</w:t><w:tab/><w:t>tabbed</w:t></w:r></w:p>
<w:p/>
</w:body>
</w:document>`
	e := NewExtractor(logger.NewTestLogger())

	res := e.Extract(context.Background(), writeDocx(t, body), "", false)

	assert.Equal(t, "First paragraph\nSecond\ttabbed\n", res.Text)
	assert.Equal(t, ModuleDocx, res.Module())
}

func TestExtractBrokenDocxFallsBack(t *testing.T) {
	e := NewExtractor(logger.NewTestLogger())
	path := writeFile(t, "fake.docx", []byte("not a zip"))

	res := e.Extract(context.Background(), path, "", false)

	assert.Equal(t, "not a zip", res.Text)
	assert.Equal(t, ModuleFallback, res.Module())
	assert.Contains(t, res.Metadata, models.MetaError)
}

func TestExtractUnknownExtensionWarns(t *testing.T) {
	e := NewExtractor(logger.NewTestLogger())
	path := writeFile(t, "blob.bin", []byte("payload"))

	res := e.Extract(context.Background(), path, "", false)

	assert.Equal(t, "payload", res.Text)
	assert.Equal(t, ModuleFallback, res.Module())
	assert.Equal(t, "best-effort extraction", res.Metadata[models.MetaWarning])
	assert.Equal(t, "application/octet-stream", res.Metadata[models.MetaMime])
}

func TestExtractProcessorFailureNeverRaises(t *testing.T) {
	e := NewExtractor(logger.NewTestLogger())
	e.Register(ProcessorFunc(func(context.Context, Source) (models.ExtractionResult, error) {
		return models.ExtractionResult{}, errors.New("boom")
	}), ".pdf")
	e.Register(ProcessorFunc(func(context.Context, Source) (models.ExtractionResult, error) {
		panic("bad page tree")
	}), ".png")

	res := e.Extract(context.Background(), writeFile(t, "a.pdf", []byte("%PDF-1.4 text")), "", false)
	assert.Equal(t, "%PDF-1.4 text", res.Text)
	assert.Equal(t, ModuleFallback, res.Module())
	assert.Equal(t, "boom", res.Metadata[models.MetaError])

	res = e.Extract(context.Background(), writeFile(t, "a.png", []byte("px")), "", false)
	assert.Equal(t, ModuleFallback, res.Module())

	res = e.Extract(context.Background(), filepath.Join(t.TempDir(), "missing.pdf"), "", false)
	assert.Equal(t, "", res.Text)
}

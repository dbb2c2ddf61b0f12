package image

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/textract"
	"github.com/aws/aws-sdk-go-v2/service/textract/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/sit-pipeline/internal/agent/document"
	"github.com/feichai0017/sit-pipeline/internal/models"
	"github.com/feichai0017/sit-pipeline/pkg/logger"
)

type stubRecognizer struct {
	text string
	err  error
	seen image.Image
}

func (s *stubRecognizer) Recognize(_ context.Context, img image.Image) (string, error) {
	s.seen = img
	return s.text, s.err
}

func (s *stubRecognizer) Engine() string { return "stub" }

func writePNG(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, h/2, color.Black)
	}
	path := filepath.Join(t.TempDir(), "scan.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	return path
}

func TestExtractImageOCR(t *testing.T) {
	rec := &stubRecognizer{text: "INVOICE 42"}
	p := NewProcessor(logger.NewTestLogger(), rec, DefaultPipeline(DefaultPreprocessConfig()))

	res, err := p.Extract(context.Background(), document.Source{Path: writePNG(t, 200, 40)})
	require.NoError(t, err)

	assert.Equal(t, "INVOICE 42", res.Text)
	assert.Equal(t, models.ExtractionOCR, res.Method)
	require.NotNil(t, res.PageCount)
	assert.Equal(t, 1, *res.PageCount)
	assert.Equal(t, "stub", res.Metadata[models.MetaOCREngine])
	assert.True(t, res.OCRPerformed())
	require.NotNil(t, rec.seen)
	assert.Equal(t, 1000, rec.seen.Bounds().Dx(), "narrow images are upscaled before OCR")
}

func TestExtractImageFailureYieldsEmptyText(t *testing.T) {
	tests := []struct {
		name string
		path func(t *testing.T) string
		rec  Recognizer
	}{
		{
			name: "engine error",
			path: func(t *testing.T) string { return writePNG(t, 10, 10) },
			rec:  &stubRecognizer{text: "ignored", err: errors.New("tesseract missing")},
		},
		{
			name: "ocr disabled",
			path: func(t *testing.T) string { return writePNG(t, 10, 10) },
			rec:  NoopRecognizer{},
		},
		{
			name: "not an image",
			path: func(t *testing.T) string {
				path := filepath.Join(t.TempDir(), "fake.jpg")
				require.NoError(t, os.WriteFile(path, []byte("plain text"), 0o644))
				return path
			},
			rec: &stubRecognizer{text: "never"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewProcessor(logger.NewTestLogger(), tt.rec, nil)
			res, err := p.Extract(context.Background(), document.Source{Path: tt.path(t)})
			require.NoError(t, err)

			assert.Equal(t, "", res.Text)
			assert.Equal(t, models.ExtractionOCR, res.Method)
			assert.Equal(t, EngineUnavailable, res.Metadata[models.MetaOCREngine])
			assert.Equal(t, false, res.Metadata[models.MetaOCRPerformed])
			assert.Equal(t, 1, *res.PageCount)
		})
	}
}

func TestBinarization(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 2, 1))
	img.SetGray(0, 0, color.Gray{Y: 10})
	img.SetGray(1, 0, color.Gray{Y: 200})

	out, err := NewBinarizationProcessor(128).Process(img)
	require.NoError(t, err)

	gray := out.(*image.Gray)
	assert.Equal(t, uint8(0), gray.GrayAt(0, 0).Y)
	assert.Equal(t, uint8(255), gray.GrayAt(1, 0).Y)
}

type fakeTextract struct {
	blocks []types.Block
}

func (f fakeTextract) DetectDocumentText(context.Context, *textract.DetectDocumentTextInput, ...func(*textract.Options)) (*textract.DetectDocumentTextOutput, error) {
	return &textract.DetectDocumentTextOutput{Blocks: f.blocks}, nil
}

func TestTextractKeepsConfidentLines(t *testing.T) {
	r := &TextractRecognizer{
		client: fakeTextract{blocks: []types.Block{
			{BlockType: types.BlockTypePage},
			{BlockType: types.BlockTypeLine, Text: aws.String("Account 1234"), Confidence: aws.Float32(99)},
			{BlockType: types.BlockTypeWord, Text: aws.String("Account"), Confidence: aws.Float32(99)},
			{BlockType: types.BlockTypeLine, Text: aws.String("smudge"), Confidence: aws.Float32(40)},
			{BlockType: types.BlockTypeLine, Text: aws.String("Routing 5678"), Confidence: aws.Float32(85)},
		}},
		logger:        logger.NewTestLogger(),
		minConfidence: 80,
	}

	text, err := r.Recognize(context.Background(), image.NewGray(image.Rect(0, 0, 4, 4)))
	require.NoError(t, err)
	assert.Equal(t, "Account 1234\nRouting 5678", text)
	assert.Equal(t, EngineTextract, r.Engine())
}

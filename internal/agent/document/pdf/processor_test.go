package pdf

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/sit-pipeline/internal/agent/document"
	"github.com/feichai0017/sit-pipeline/internal/models"
	"github.com/feichai0017/sit-pipeline/pkg/logger"
)

type fakeText struct {
	pages []string
	err   error
}

func (f fakeText) PageTexts(context.Context, string) ([]string, error) { return f.pages, f.err }

type fakeRaster struct {
	pages   int
	failOn  int
	openErr error
	scale   float64
}

func (f *fakeRaster) Rasterize(_ context.Context, _ string, scale float64, fn func(int, image.Image, error)) error {
	f.scale = scale
	if f.openErr != nil {
		return f.openErr
	}
	for i := 1; i <= f.pages; i++ {
		if i == f.failOn {
			fn(i, nil, errors.New("render failed"))
			continue
		}
		fn(i, image.NewGray(image.Rect(0, 0, i, 1)), nil)
	}
	return nil
}

// fakeOCR reads the page number back from the image width.
type fakeOCR struct {
	texts map[int]string
	err   error
}

func (f fakeOCR) RecognizeImage(_ context.Context, img image.Image) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.texts[img.Bounds().Dx()], nil
}

func (fakeOCR) Engine() string { return "fake" }

func newProcessor(text TextLayer, r Rasterizer, ocr PageRecognizer) *Processor {
	return NewProcessor(logger.NewTestLogger(), text, r, ocr, 2)
}

func TestNativeTextNoOCR(t *testing.T) {
	raster := &fakeRaster{pages: 2}
	p := newProcessor(fakeText{pages: []string{" page one", "page two \n"}}, raster, fakeOCR{})

	res, err := p.Extract(context.Background(), document.Source{Path: "a.pdf"})
	require.NoError(t, err)

	assert.Equal(t, "page one\npage two", res.Text)
	assert.Equal(t, models.ExtractionNative, res.Method)
	assert.Equal(t, ModuleText, res.Module())
	require.NotNil(t, res.PageCount)
	assert.Equal(t, 2, *res.PageCount)
	assert.Zero(t, raster.scale, "ocr must not run when native text exists")
}

func TestImageOnlyPDFUsesOCR(t *testing.T) {
	raster := &fakeRaster{pages: 2}
	p := newProcessor(fakeText{pages: []string{"", "  "}}, raster, fakeOCR{texts: map[int]string{1: "scanned", 2: "pages"}})

	res, err := p.Extract(context.Background(), document.Source{Path: "scan.pdf"})
	require.NoError(t, err)

	assert.Equal(t, "scanned\npages", res.Text)
	assert.Equal(t, models.ExtractionOCR, res.Method)
	assert.Equal(t, ModuleTextOCR, res.Module())
	assert.Equal(t, "auto_image_pdf", res.Metadata[models.MetaOCRReason])
	assert.Equal(t, "fake", res.Metadata[models.MetaOCREngine])
	assert.True(t, res.OCRPerformed())
	assert.Equal(t, 2.0, raster.scale)
}

func TestImageOnlyPDFWithoutOCRStaysNative(t *testing.T) {
	cases := map[string]*Processor{
		"no backend":        newProcessor(fakeText{pages: []string{""}}, nil, nil),
		"rasterizer broken": newProcessor(fakeText{pages: []string{""}}, &fakeRaster{openErr: errors.New("no mupdf")}, fakeOCR{}),
		"recognizer broken": newProcessor(fakeText{pages: []string{""}}, &fakeRaster{pages: 1}, fakeOCR{err: errors.New("no tesseract")}),
	}
	for name, p := range cases {
		t.Run(name, func(t *testing.T) {
			res, err := p.Extract(context.Background(), document.Source{Path: "scan.pdf"})
			require.NoError(t, err)
			assert.Equal(t, "", res.Text)
			assert.Equal(t, models.ExtractionNative, res.Method)
			assert.False(t, res.OCRPerformed())
		})
	}
}

func TestForcedOCRReplacesNativeText(t *testing.T) {
	p := newProcessor(fakeText{pages: []string{"native"}}, &fakeRaster{pages: 1}, fakeOCR{texts: map[int]string{1: "ocr text"}})

	res, err := p.Extract(context.Background(), document.Source{Path: "a.pdf", ForceOCR: true})
	require.NoError(t, err)

	assert.Equal(t, "ocr text", res.Text)
	assert.Equal(t, models.ExtractionOCR, res.Method)
	assert.Equal(t, true, res.Metadata[models.MetaForceOCRRequested])
	assert.NotContains(t, res.Metadata, models.MetaOCRReason)
}

func TestForcedOCRWithEmptyOutputKeepsNative(t *testing.T) {
	p := newProcessor(fakeText{pages: []string{"native"}}, &fakeRaster{pages: 1}, fakeOCR{texts: map[int]string{}})

	res, err := p.Extract(context.Background(), document.Source{Path: "a.pdf", ForceOCR: true})
	require.NoError(t, err)

	assert.Equal(t, "native", res.Text)
	assert.Equal(t, models.ExtractionNative, res.Method)
	assert.Equal(t, ModuleText, res.Module())
	assert.Equal(t, true, res.Metadata[models.MetaForceOCRRequested])
	assert.Equal(t, false, res.Metadata[models.MetaOCRPerformed])
}

func TestFailedPageDoesNotAbortOCR(t *testing.T) {
	p := newProcessor(fakeText{pages: []string{"", "", ""}}, &fakeRaster{pages: 3, failOn: 2}, fakeOCR{texts: map[int]string{1: "one", 3: "three"}})

	res, err := p.Extract(context.Background(), document.Source{Path: "a.pdf"})
	require.NoError(t, err)

	assert.Equal(t, "one\n\nthree", res.Text)
	assert.Equal(t, models.ExtractionOCR, res.Method)
}

func TestUnreadablePDFReturnsError(t *testing.T) {
	p := newProcessor(fakeText{err: errors.New("bad xref")}, nil, nil)

	_, err := p.Extract(context.Background(), document.Source{Path: "a.pdf"})
	assert.Error(t, err)
}

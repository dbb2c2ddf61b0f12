package image

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

const (
	EngineTesseract   = "tesseract"
	EngineTextract    = "textract"
	EngineUnavailable = "unavailable"
)

var ErrOCRUnavailable = errors.New("ocr engine unavailable")

// Recognizer runs optical character recognition on one image.
type Recognizer interface {
	Recognize(ctx context.Context, img image.Image) (string, error)
	Engine() string
}

// NoopRecognizer is used when OCR is switched off.
type NoopRecognizer struct{}

func (NoopRecognizer) Recognize(context.Context, image.Image) (string, error) {
	return "", ErrOCRUnavailable
}

func (NoopRecognizer) Engine() string { return EngineUnavailable }

// TesseractRecognizer uses a fresh gosseract client per call; clients are
// not safe for concurrent use.
type TesseractRecognizer struct {
	languages   []string
	pageSegMode gosseract.PageSegMode
}

func NewTesseractRecognizer(languages []string) *TesseractRecognizer {
	if len(languages) == 0 {
		languages = []string{"eng"}
	}
	return &TesseractRecognizer{
		languages:   languages,
		pageSegMode: gosseract.PSM_AUTO,
	}
}

func (r *TesseractRecognizer) Engine() string { return EngineTesseract }

func (r *TesseractRecognizer) Recognize(ctx context.Context, img image.Image) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := encodePNG(img)
	if err != nil {
		return "", err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(strings.Join(r.languages, "+")); err != nil {
		return "", fmt.Errorf("failed to set language: %w", err)
	}
	if err := client.SetPageSegMode(r.pageSegMode); err != nil {
		return "", fmt.Errorf("failed to set page segmentation mode: %w", err)
	}
	if err := client.SetImageFromBytes(data); err != nil {
		return "", fmt.Errorf("failed to set image: %w", err)
	}
	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("failed to get text: %w", err)
	}
	return text, nil
}

func encodePNG(img image.Image) ([]byte, error) {
	if img == nil {
		return nil, fmt.Errorf("input image is nil")
	}
	buf := new(bytes.Buffer)
	if err := png.Encode(buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

package pdf

import (
	"context"
	"fmt"
	"image"

	"github.com/gen2brain/go-fitz"
	"github.com/ledongthuc/pdf"
)

// LedongthucTextLayer reads the native text layer with ledongthuc/pdf.
type LedongthucTextLayer struct{}

func (LedongthucTextLayer) PageTexts(ctx context.Context, path string) (pages []string, err error) {
	// the parser panics on some malformed xref tables
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf parser panic: %v", r)
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}
	defer f.Close()

	numPages := reader.NumPage()
	pages = make([]string, 0, numPages)
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to get text from page %d: %w", i, err)
		}
		pages = append(pages, text)
	}
	return pages, nil
}

// FitzRasterizer renders pages with MuPDF through go-fitz. Scale 1 is 72 DPI.
type FitzRasterizer struct{}

func (FitzRasterizer) Rasterize(ctx context.Context, path string, scale float64, fn func(page int, img image.Image, err error)) error {
	doc, err := fitz.New(path)
	if err != nil {
		return fmt.Errorf("failed to open pdf for rendering: %w", err)
	}
	defer doc.Close()

	dpi := 72 * scale
	for n := 0; n < doc.NumPage(); n++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		img, err := doc.ImageDPI(n, dpi)
		if err != nil {
			fn(n+1, nil, err)
			continue
		}
		fn(n+1, img, nil)
	}
	return nil
}

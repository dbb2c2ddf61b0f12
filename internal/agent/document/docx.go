package document

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/feichai0017/sit-pipeline/internal/models"
)

const docxBody = "word/document.xml"

var errNoDocumentXML = errors.New("docx has no word/document.xml")

func extractDocx(_ context.Context, src Source) (models.ExtractionResult, error) {
	zr, err := zip.OpenReader(src.Path)
	if err != nil {
		return models.ExtractionResult{}, fmt.Errorf("failed to open docx: %w", err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name != docxBody {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return models.ExtractionResult{}, fmt.Errorf("failed to open %s: %w", docxBody, err)
		}
		defer rc.Close()

		paragraphs, err := docxParagraphs(rc)
		if err != nil {
			return models.ExtractionResult{}, fmt.Errorf("failed to parse %s: %w", docxBody, err)
		}
		return Native(strings.Join(paragraphs, "\n"), ModuleDocx), nil
	}
	return models.ExtractionResult{}, errNoDocumentXML
}

// docxParagraphs walks w:p elements in document order and collects the text
// of their w:t runs. Tabs and breaks inside a paragraph are kept.
func docxParagraphs(r io.Reader) ([]string, error) {
	decoder := xml.NewDecoder(r)

	var (
		paragraphs []string
		current    strings.Builder
		depth      int
		inText     bool
	)
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := token.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				if depth == 0 {
					current.Reset()
				}
				depth++
			case "t":
				inText = true
			case "tab":
				if depth > 0 {
					current.WriteByte('\t')
				}
			case "br", "cr":
				if depth > 0 {
					current.WriteByte('\n')
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "p":
				if depth > 0 {
					depth--
				}
				if depth == 0 {
					paragraphs = append(paragraphs, current.String())
				}
			case "t":
				inText = false
			}
		case xml.CharData:
			if inText && depth > 0 {
				current.Write(t)
			}
		}
	}
	return paragraphs, nil
}

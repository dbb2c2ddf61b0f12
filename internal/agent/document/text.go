package document

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"strings"

	"github.com/feichai0017/sit-pipeline/internal/models"
)

func extractText(_ context.Context, src Source) (models.ExtractionResult, error) {
	res := Native(RawText(src.Path), ModuleText)
	res.Metadata[models.MetaMime] = src.Mime()
	res.Metadata[models.MetaForceOCRRequested] = src.ForceOCR
	return res, nil
}

// extractJSON re-indents valid JSON with two spaces, keeping key order.
// Invalid JSON is returned as read.
func extractJSON(_ context.Context, src Source) (models.ExtractionResult, error) {
	data, err := os.ReadFile(src.Path)
	if err != nil {
		return models.ExtractionResult{}, err
	}
	raw := bytes.TrimSpace(data)

	text := strings.ToValidUTF8(string(data), "")
	if json.Valid(raw) {
		var buf bytes.Buffer
		if err := json.Indent(&buf, raw, "", "  "); err == nil {
			text = buf.String()
		}
	}
	return Native(text, ModuleJSON), nil
}

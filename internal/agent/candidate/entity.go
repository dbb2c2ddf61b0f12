package candidate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Entity is one named entity and how often it occurs in the text.
type Entity struct {
	Text      string `json:"text"`
	Frequency int    `json:"frequency"`
}

// EntityExtractor is an optional named-entity source. Implementations that
// cannot run return an error; the miner then skips the source.
type EntityExtractor interface {
	ExtractEntities(ctx context.Context, text string) ([]Entity, error)
	Name() string
}

// NoopEntityExtractor contributes no entities.
type NoopEntityExtractor struct{}

func (NoopEntityExtractor) ExtractEntities(context.Context, string) ([]Entity, error) {
	return nil, nil
}

func (NoopEntityExtractor) Name() string { return "none" }

// OllamaResponse 定义 Ollama API 响应结构
type OllamaResponse struct {
	Response string `json:"response"`
	Model    string `json:"model"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

const entityPrompt = `Extract the named entities (people, organizations, locations, products, identifiers) from the text below.
Answer with JSON only, in the form {"entities": ["..."]}, each entity written exactly as it appears in the text.

Text:
%s`

// OllamaEntityExtractor asks a local Ollama model for entities and counts
// their exact occurrences in the text.
type OllamaEntityExtractor struct {
	endpoint   string
	model      string
	httpClient *http.Client
}

func NewOllamaEntityExtractor(endpoint, model string, timeout time.Duration) *OllamaEntityExtractor {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OllamaEntityExtractor{
		endpoint:   strings.TrimRight(endpoint, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *OllamaEntityExtractor) Name() string { return "ollama" }

func (c *OllamaEntityExtractor) ExtractEntities(ctx context.Context, text string) ([]Entity, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	reqData, err := json.Marshal(map[string]interface{}{
		"model":  c.model,
		"prompt": fmt.Sprintf(entityPrompt, text),
		"format": "json",
		"stream": false,
		"options": map[string]interface{}{
			"temperature": 0,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/api/generate", bytes.NewReader(reqData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(body))
	}

	var result OllamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if result.Error != "" {
		return nil, fmt.Errorf("ollama error: %s", result.Error)
	}

	var parsed struct {
		Entities []string `json:"entities"`
	}
	if err := json.Unmarshal([]byte(result.Response), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse entity list: %w", err)
	}

	seen := make(map[string]struct{}, len(parsed.Entities))
	var entities []Entity
	for _, e := range parsed.Entities {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if _, dup := seen[e]; dup {
			continue
		}
		seen[e] = struct{}{}
		// the model may paraphrase; keep only entities present verbatim
		if n := strings.Count(text, e); n > 0 {
			entities = append(entities, Entity{Text: e, Frequency: n})
		}
	}
	return entities, nil
}

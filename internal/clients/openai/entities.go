package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/calegray/concepthub-backend/internal/platform/envutil"
	"github.com/calegray/concepthub-backend/internal/platform/logger"
)

// EntityExtractor pulls named entities out of free text. It backs the
// optional extraction enhancer; a nil extractor means the feature is off.
type EntityExtractor struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	log        *logger.Logger
}

// NewEntityExtractor returns (nil, nil) unless both ENTITY_ENHANCER_ENABLED
// and OPENAI_API_KEY are set.
func NewEntityExtractor(log *logger.Logger) (*EntityExtractor, error) {
	if !envutil.GetEnvAsBool("ENTITY_ENHANCER_ENABLED", false, log) {
		return nil, nil
	}
	apiKey := strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	if apiKey == "" {
		log.Warn("Entity enhancer enabled but OPENAI_API_KEY unset, running without it")
		return nil, nil
	}
	return &EntityExtractor{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(envutil.GetEnv("OPENAI_BASE_URL", "https://api.openai.com/v1", log), "/"),
		model:   envutil.GetEnv("OPENAI_ENTITY_MODEL", "gpt-4o-mini", log),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: log.With("service", "EntityExtractor"),
	}, nil
}

const entityPrompt = "Extract the named entities (people, organizations, systems, technologies) " +
	"from the following text. Respond with a comma-separated list only, no commentary.\n\n"

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (e *EntityExtractor) Entities(ctx context.Context, text string) ([]string, error) {
	if len(text) > 8000 {
		text = text[:8000]
	}
	body, err := json.Marshal(chatRequest{
		Model: e.model,
		Messages: []chatMessage{
			{Role: "user", Content: entityPrompt + text},
		},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+e.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("entities request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	var decoded chatResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("decode entities response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(raw))
		if decoded.Error != nil {
			msg = decoded.Error.Message
		}
		return nil, fmt.Errorf("entities request failed with status %d: %s", resp.StatusCode, msg)
	}
	if len(decoded.Choices) == 0 {
		return nil, fmt.Errorf("entities response contained no choices")
	}

	var out []string
	for _, part := range strings.Split(decoded.Choices[0].Message.Content, ",") {
		if name := strings.ToLower(strings.TrimSpace(part)); name != "" {
			out = append(out, name)
		}
	}
	return out, nil
}

// Package openai holds thin clients for the embeddings and chat APIs.
// Both degrade to nil when the key is absent.
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

type Client interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	log        *logger.Logger
}

// NewClient returns (nil, nil) when OPENAI_API_KEY is unset; the caller
// treats a nil client as "no embedding provider".
func NewClient(log *logger.Logger) (Client, error) {
	apiKey := strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	if apiKey == "" {
		return nil, nil
	}
	serviceLog := log.With("service", "OpenAIClient")
	return &client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(envutil.GetEnv("OPENAI_BASE_URL", "https://api.openai.com/v1", log), "/"),
		model:   envutil.GetEnv("OPENAI_EMBED_MODEL", "text-embedding-3-small", log),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: serviceLog,
	}, nil
}

type embedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

func (c *client) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embedRequest{Model: c.model, Input: text})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embeddings request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, err
	}

	var decoded embedResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("decode embeddings response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(raw))
		if decoded.Error != nil {
			msg = decoded.Error.Message
		}
		return nil, fmt.Errorf("embeddings request failed with status %d: %s", resp.StatusCode, msg)
	}
	if len(decoded.Data) == 0 {
		return nil, fmt.Errorf("embeddings response contained no vectors")
	}
	return decoded.Data[0].Embedding, nil
}

package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/samirrijal/civiclens/internal/pkg/config"
)

// OpenAIClassifier talks to any server exposing the OpenAI chat completions
// API with image inputs (llama.cpp server, vLLM, LocalAI, the hosted API).
type OpenAIClassifier struct {
	baseURL    string
	httpClient *http.Client
	cfg        config.ClassifierConfig
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"` // string or []contentPart
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewOpenAIClassifier creates a classifier posting to cfg.URL + /v1/chat/completions.
func NewOpenAIClassifier(cfg config.ClassifierConfig, httpClient *http.Client) (*OpenAIClassifier, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("openai classifier: url is required")
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &OpenAIClassifier{
		baseURL:    strings.TrimSuffix(strings.TrimSuffix(cfg.URL, "/"), "/v1"),
		httpClient: httpClient,
		cfg:        cfg,
	}, nil
}

func (c *OpenAIClassifier) Name() string { return "openai" }

// Classify sends the prepared image as a data URL next to the prompt.
func (c *OpenAIClassifier) Classify(ctx context.Context, image []byte) (*string, error) {
	img, err := PrepareImage(image, c.cfg.MaxDimension, c.cfg.JPEGQuality)
	if err != nil {
		return nil, err
	}

	ctx, cancel := withDeadline(ctx, c.cfg)
	defer cancel()

	body, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{{
			Role: "user",
			Content: []contentPart{
				{Type: "text", Text: prompt(c.cfg)},
				{Type: "image_url", ImageURL: &imageURL{URL: "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(img)}},
			},
		}},
		MaxTokens: 16,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("chat completion: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var out chatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if out.Error != nil {
		return nil, fmt.Errorf("chat completion: %s", out.Error.Message)
	}
	if len(out.Choices) == 0 {
		return nil, fmt.Errorf("chat completion: no choices")
	}

	return ParseLabel(out.Choices[0].Message.Content), nil
}

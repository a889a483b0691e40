package vision

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"

	"github.com/samirrijal/civiclens/internal/pkg/config"
)

// OllamaClassifier asks a multimodal model served by Ollama.
type OllamaClassifier struct {
	client *api.Client
	cfg    config.ClassifierConfig
}

// NewOllamaClassifier creates a classifier talking to cfg.URL. Any path on the
// URL is dropped; the client adds /api/chat itself.
func NewOllamaClassifier(cfg config.ClassifierConfig, httpClient *http.Client) (*OllamaClassifier, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid ollama url %q", cfg.URL)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	base := &url.URL{Scheme: u.Scheme, Host: u.Host}
	return &OllamaClassifier{
		client: api.NewClient(base, httpClient),
		cfg:    cfg,
	}, nil
}

func (c *OllamaClassifier) Name() string { return "ollama" }

// Classify sends the prepared image with the configured prompt.
func (c *OllamaClassifier) Classify(ctx context.Context, image []byte) (*string, error) {
	img, err := PrepareImage(image, c.cfg.MaxDimension, c.cfg.JPEGQuality)
	if err != nil {
		return nil, err
	}

	ctx, cancel := withDeadline(ctx, c.cfg)
	defer cancel()

	stream := false
	req := &api.ChatRequest{
		Model: c.cfg.Model,
		Messages: []api.Message{
			{
				Role:    "user",
				Content: prompt(c.cfg),
				Images:  []api.ImageData{api.ImageData(img)},
			},
		},
		Stream:  &stream,
		Options: map[string]any{"temperature": 0},
	}

	var answer strings.Builder
	err = c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		answer.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ollama chat: %w", err)
	}

	return ParseLabel(answer.String()), nil
}

package vision

import (
	"context"
	"fmt"
	"net/http"

	"github.com/samirrijal/civiclens/internal/core/ports"
	"github.com/samirrijal/civiclens/internal/pkg/config"
)

// New returns the classifier selected by cfg.Backend, or nil for "none".
func New(cfg config.ClassifierConfig) (ports.Classifier, error) {
	switch cfg.Backend {
	case "ollama":
		c, err := NewOllamaClassifier(cfg, http.DefaultClient)
		if err != nil {
			return nil, err
		}
		return c, nil
	case "openai":
		c, err := NewOpenAIClassifier(cfg, nil)
		if err != nil {
			return nil, err
		}
		return c, nil
	case "none", "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown classifier backend %q", cfg.Backend)
	}
}

func prompt(cfg config.ClassifierConfig) string {
	if cfg.Prompt == "" {
		return config.DefaultPrompt
	}
	return cfg.Prompt
}

// withDeadline bounds ctx by the configured timeout unless the caller
// already set a deadline.
func withDeadline(ctx context.Context, cfg config.ClassifierConfig) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || cfg.TimeoutSeconds <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, cfg.Timeout())
}

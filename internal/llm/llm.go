// Package llm provides text-generation clients.
package llm

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultTimeout bounds a single generation request.
const DefaultTimeout = 60 * time.Second

// Client turns a prompt into text with a single blocking request.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Config selects and configures a provider.
type Config struct {
	Provider  string
	Endpoint  string
	Model     string
	APIKey    string
	MaxTokens int
	Timeout   time.Duration
}

// New creates a Client for cfg.Provider ("openai" or "anthropic").
func New(cfg Config) (Client, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	hc := &http.Client{Timeout: cfg.Timeout}

	switch strings.ToLower(cfg.Provider) {
	case "", "openai":
		return NewOpenAI(hc, cfg.Endpoint, cfg.Model, cfg.APIKey), nil
	case "anthropic":
		return NewAnthropic(hc, cfg.Endpoint, cfg.Model, cfg.APIKey, cfg.MaxTokens), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
}

func errorBody(resp *http.Response) string {
	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return strings.TrimSpace(string(payload))
}

package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	apperr "github.com/ejwhite7/zendesk-academy/internal/pkg/errors"
	"github.com/ejwhite7/zendesk-academy/internal/pkg/logger"
)

const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"

	BlockTypeText = "text"
)

type Request struct {
	System    string
	User      string
	MaxTokens int
}

// Block is one content block of a model reply. Only text blocks carry Text.
type Block struct {
	Type string
	Text string
}

type Response struct {
	Blocks       []Block
	StopReason   string
	InputTokens  int
	OutputTokens int
}

// Client is a single-turn completion call: system instructions plus one user message.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

type Config struct {
	Provider   string        `yaml:"provider"`
	APIKey     string        `yaml:"-"`
	Model      string        `yaml:"model"`
	BaseURL    string        `yaml:"base_url"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
	HTTPClient *http.Client  `yaml:"-"`
}

// New builds the configured provider. A missing API key is a startup error.
func New(log *logger.Logger, cfg Config) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		provider = ProviderAnthropic
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("missing API key for LLM provider %q: %w", provider, apperr.ErrMisconfigured)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 180 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	t := &transport{
		httpClient: httpClient,
		maxRetries: maxRetries,
	}

	switch provider {
	case ProviderAnthropic:
		t.log = log.With("client", "AnthropicClient")
		t.service = ProviderAnthropic
		return newAnthropic(t, cfg), nil
	case ProviderOpenAI:
		t.log = log.With("client", "OpenAIClient")
		t.service = ProviderOpenAI
		return newOpenAI(t, cfg), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider %q: %w", cfg.Provider, apperr.ErrMisconfigured)
	}
}

// Text returns the text of the first block, or false when the reply is empty
// or starts with a non-text block. Trailing blocks are ignored.
func (r Response) Text() (string, bool) {
	if len(r.Blocks) == 0 || r.Blocks[0].Type != BlockTypeText {
		return "", false
	}
	return r.Blocks[0].Text, true
}

package llm

import (
	"context"
	"strings"
)

const (
	defaultAnthropicModel   = "claude-3-5-sonnet-20241022"
	defaultAnthropicBaseURL = "https://api.anthropic.com"
	anthropicVersion        = "2023-06-01"
)

type anthropicClient struct {
	t       *transport
	baseURL string
	apiKey  string
	model   string
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func newAnthropic(t *transport, cfg Config) *anthropicClient {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultAnthropicBaseURL
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultAnthropicModel
	}
	return &anthropicClient{t: t, baseURL: baseURL, apiKey: strings.TrimSpace(cfg.APIKey), model: model}
}

func (c *anthropicClient) Complete(ctx context.Context, req Request) (Response, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4000
	}
	body := anthropicRequest{
		Model:     c.model,
		MaxTokens: maxTokens,
		System:    req.System,
		Messages:  []anthropicMessage{{Role: "user", Content: req.User}},
	}
	headers := map[string]string{
		"x-api-key":         c.apiKey,
		"anthropic-version": anthropicVersion,
	}
	var out anthropicResponse
	if err := c.t.post(ctx, c.baseURL+"/v1/messages", headers, body, &out); err != nil {
		return Response{}, err
	}
	resp := Response{
		StopReason:   out.StopReason,
		InputTokens:  out.Usage.InputTokens,
		OutputTokens: out.Usage.OutputTokens,
	}
	for _, b := range out.Content {
		resp.Blocks = append(resp.Blocks, Block{Type: b.Type, Text: b.Text})
	}
	return resp, nil
}

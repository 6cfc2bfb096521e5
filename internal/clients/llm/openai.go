package llm

import (
	"context"
	"strings"
)

const (
	defaultOpenAIModel   = "gpt-4o"
	defaultOpenAIBaseURL = "https://api.openai.com"
)

type openAIClient struct {
	t       *transport
	baseURL string
	apiKey  string
	model   string
}

type responsesInput struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responsesRequest struct {
	Model           string           `json:"model"`
	Input           []responsesInput `json:"input"`
	MaxOutputTokens int              `json:"max_output_tokens,omitempty"`
}

type responsesResponse struct {
	Output []struct {
		Type    string `json:"type"`
		Role    string `json:"role"`
		Content []struct {
			Type    string `json:"type"`
			Text    string `json:"text,omitempty"`
			Refusal string `json:"refusal,omitempty"`
		} `json:"content"`
	} `json:"output"`
	Status string `json:"status"`
	Usage  struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func newOpenAI(t *transport, cfg Config) *openAIClient {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultOpenAIModel
	}
	return &openAIClient{t: t, baseURL: baseURL, apiKey: strings.TrimSpace(cfg.APIKey), model: model}
}

// Complete maps assistant output items onto blocks: output_text becomes a
// text block, anything else keeps its own type.
func (c *openAIClient) Complete(ctx context.Context, req Request) (Response, error) {
	body := responsesRequest{
		Model: c.model,
		Input: []responsesInput{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.User},
		},
		MaxOutputTokens: req.MaxTokens,
	}
	headers := map[string]string{"Authorization": "Bearer " + c.apiKey}
	var out responsesResponse
	if err := c.t.post(ctx, c.baseURL+"/v1/responses", headers, body, &out); err != nil {
		return Response{}, err
	}
	resp := Response{
		StopReason:   out.Status,
		InputTokens:  out.Usage.InputTokens,
		OutputTokens: out.Usage.OutputTokens,
	}
	for _, item := range out.Output {
		if item.Type != "message" || item.Role != "assistant" {
			continue
		}
		for _, part := range item.Content {
			if part.Type == "output_text" {
				resp.Blocks = append(resp.Blocks, Block{Type: BlockTypeText, Text: part.Text})
				continue
			}
			resp.Blocks = append(resp.Blocks, Block{Type: part.Type, Text: part.Refusal})
		}
	}
	return resp, nil
}

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperr "github.com/ejwhite7/zendesk-academy/internal/pkg/errors"
	"github.com/ejwhite7/zendesk-academy/internal/pkg/logger"
)

func TestNewFailsFastWithoutKey(t *testing.T) {
	_, err := New(logger.Nop(), Config{Provider: ProviderAnthropic})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrMisconfigured))

	_, err = New(logger.Nop(), Config{Provider: "bard", APIKey: "k"})
	assert.True(t, errors.Is(err, apperr.ErrMisconfigured))
}

func TestAnthropicComplete(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "k", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))
		if n == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(529)
			return
		}
		var body anthropicRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, 3000, body.MaxTokens)
		assert.Equal(t, "sys", body.System)
		require.Len(t, body.Messages, 1)
		assert.Equal(t, "user", body.Messages[0].Role)
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"{\"ok\":true}"}],"stop_reason":"end_turn","usage":{"input_tokens":10,"output_tokens":5}}`))
	}))
	defer srv.Close()

	c, err := New(logger.Nop(), Config{Provider: ProviderAnthropic, APIKey: "k", BaseURL: srv.URL, MaxRetries: 2})
	require.NoError(t, err)
	resp, err := c.Complete(context.Background(), Request{System: "sys", User: "hi", MaxTokens: 3000})
	require.NoError(t, err)
	text, ok := resp.Text()
	require.True(t, ok)
	assert.Equal(t, `{"ok":true}`, text)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestAnthropicDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c, err := New(logger.Nop(), Config{APIKey: "k", BaseURL: srv.URL, MaxRetries: 3})
	require.NoError(t, err)
	_, err = c.Complete(context.Background(), Request{User: "hi"})
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestOpenAICompleteMapsBlocks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/responses", r.URL.Path)
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"status":"completed","output":[{"type":"reasoning"},{"type":"message","role":"assistant","content":[{"type":"refusal","refusal":"no"}]}]}`))
	}))
	defer srv.Close()

	c, err := New(logger.Nop(), Config{Provider: ProviderOpenAI, APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)
	resp, err := c.Complete(context.Background(), Request{System: "s", User: "u"})
	require.NoError(t, err)
	require.Len(t, resp.Blocks, 1)
	assert.Equal(t, "refusal", resp.Blocks[0].Type)
	_, ok := resp.Text()
	assert.False(t, ok)
}

func TestResponseTextUsesFirstBlock(t *testing.T) {
	cases := []struct {
		name   string
		blocks []Block
		want   string
		ok     bool
	}{
		{"empty", nil, "", false},
		{"text", []Block{{Type: BlockTypeText, Text: "{}"}}, "{}", true},
		{"text then tool", []Block{{Type: BlockTypeText, Text: `{"a":1}`}, {Type: "tool_use"}}, `{"a":1}`, true},
		{"tool first", []Block{{Type: "tool_use"}, {Type: BlockTypeText, Text: "{}"}}, "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := Response{Blocks: tc.blocks}.Text()
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

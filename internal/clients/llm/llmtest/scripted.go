// Package llmtest provides a scripted llm.Client for tests.
package llmtest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ejwhite7/zendesk-academy/internal/clients/llm"
)

// Reply is one scripted answer. Err takes precedence over Blocks.
type Reply struct {
	Blocks []llm.Block
	Err    error
}

func Text(s string) Reply {
	return Reply{Blocks: []llm.Block{{Type: llm.BlockTypeText, Text: s}}}
}

func Fail(err error) Reply {
	return Reply{Err: err}
}

// Rule answers requests whose user prompt contains Match. Rules are tried in
// order; a rule with Times > 0 is used that many times and then skipped.
type Rule struct {
	Match string
	Reply func(req llm.Request) Reply
	Times int

	used int
}

type Scripted struct {
	mu       sync.Mutex
	rules    []*Rule
	requests []llm.Request
}

func NewScripted(rules ...*Rule) *Scripted {
	return &Scripted{rules: rules}
}

func (s *Scripted) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	if err := ctx.Err(); err != nil {
		return llm.Response{}, err
	}
	s.mu.Lock()
	s.requests = append(s.requests, req)
	var rule *Rule
	for _, r := range s.rules {
		if r.Times > 0 && r.used >= r.Times {
			continue
		}
		if strings.Contains(req.User, r.Match) {
			r.used++
			rule = r
			break
		}
	}
	s.mu.Unlock()

	if rule == nil {
		return llm.Response{}, fmt.Errorf("llmtest: no rule matches prompt %.80q", req.User)
	}
	reply := rule.Reply(req)
	if reply.Err != nil {
		return llm.Response{}, reply.Err
	}
	return llm.Response{Blocks: reply.Blocks}, nil
}

func (s *Scripted) Requests() []llm.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]llm.Request(nil), s.requests...)
}

// Count reports how many requests contained substr.
func (s *Scripted) Count(substr string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.requests {
		if strings.Contains(r.User, substr) {
			n++
		}
	}
	return n
}

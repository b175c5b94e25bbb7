package llm

import (
	"context"
	"errors"
	"sync"
)

// MockProvider returns a fixed response or error.
type MockProvider struct {
	Response string
	Err      error
	ChatFunc func(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

func (m *MockProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if m.ChatFunc != nil {
		return m.ChatFunc(ctx, req)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return &ChatResponse{
		Content: m.Response,
		Usage: Usage{
			PromptTokens:     10,
			CompletionTokens: 10,
			TotalTokens:      20,
		},
	}, nil
}

// ScriptedProvider replays a sequence of responses, one per call, and
// records every request it receives. Useful for multi-turn tool loops.
type ScriptedProvider struct {
	mu        sync.Mutex
	responses []ChatResponse
	requests  []ChatRequest

	// Err, when set, is returned by every call.
	Err error
}

// NewScriptedProvider creates a provider that answers with the given turns.
func NewScriptedProvider(responses ...ChatResponse) *ScriptedProvider {
	return &ScriptedProvider{responses: responses}
}

// Text is a ChatResponse with content only.
func Text(content string) ChatResponse {
	return ChatResponse{Content: content}
}

// Calls is a ChatResponse requesting tool calls.
func Calls(calls ...ToolCall) ChatResponse {
	return ChatResponse{ToolCalls: calls}
}

// Call builds a function ToolCall.
func Call(id, name, arguments string) ToolCall {
	return ToolCall{ID: id, Type: ToolTypeFunction, Function: FunctionCall{Name: name, Arguments: arguments}}
}

// Chat pops the next scripted response.
func (s *ScriptedProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, req)
	if s.Err != nil {
		return nil, s.Err
	}
	if len(s.responses) == 0 {
		return nil, errors.New("scripted provider: no more responses available")
	}
	resp := s.responses[0]
	s.responses = s.responses[1:]
	return &resp, nil
}

// Requests returns a copy of the requests received so far.
func (s *ScriptedProvider) Requests() []ChatRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ChatRequest(nil), s.requests...)
}

// Remaining reports how many scripted responses are left.
func (s *ScriptedProvider) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.responses)
}

package llm

import (
	"context"
	"errors"
	"testing"
)

func TestMockProvider(t *testing.T) {
	mock := &MockProvider{Response: "Hello world"}
	resp, err := mock.Chat(context.Background(), ChatRequest{
		Messages: []Message{{Role: RoleUser, Content: "Hi"}},
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if resp.Content != "Hello world" {
		t.Errorf("Expected 'Hello world', got '%s'", resp.Content)
	}
}

func TestScriptedProvider(t *testing.T) {
	p := NewScriptedProvider(
		Calls(Call("c1", "render", `{"top_n":3}`)),
		Text("done"),
	)
	ctx := context.Background()

	first, err := p.Chat(ctx, ChatRequest{Model: "m1"})
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	if len(first.ToolCalls) != 1 || first.ToolCalls[0].Function.Name != "render" {
		t.Errorf("unexpected first turn %+v", first)
	}
	second, err := p.Chat(ctx, ChatRequest{Model: "m2"})
	if err != nil || second.Content != "done" {
		t.Fatalf("second call: %v %+v", err, second)
	}
	if _, err := p.Chat(ctx, ChatRequest{}); err == nil {
		t.Error("expected exhausted script to fail")
	}

	reqs := p.Requests()
	if len(reqs) != 3 || reqs[0].Model != "m1" || reqs[1].Model != "m2" {
		t.Errorf("unexpected recorded requests %+v", reqs)
	}
	if p.Remaining() != 0 {
		t.Errorf("expected script consumed")
	}
}

func TestScriptedProviderError(t *testing.T) {
	p := NewScriptedProvider(Text("unused"))
	p.Err = ErrMissingCredential
	if _, err := p.Chat(context.Background(), ChatRequest{}); !errors.Is(err, ErrMissingCredential) {
		t.Fatalf("expected credential error, got %v", err)
	}
}

func TestProviderFunc(t *testing.T) {
	var f Provider = ProviderFunc(func(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
		return &ChatResponse{Content: req.Model}, nil
	})
	resp, _ := f.Chat(context.Background(), ChatRequest{Model: "x"})
	if resp.Content != "x" {
		t.Errorf("got %q", resp.Content)
	}
}

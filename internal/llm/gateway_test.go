package llm

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNewGateway_NoKeyUsesPlaceholder(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	gw, err := NewGateway(DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := gw.(PlaceholderGateway); !ok {
		t.Fatalf("expected PlaceholderGateway, got %T", gw)
	}

	reply, err := gw.Complete(context.Background(), "anything", CallOptions{})
	if err != nil {
		t.Fatalf("placeholder should not fail: %v", err)
	}
	if reply != PlaceholderResponse {
		t.Errorf("unexpected placeholder reply: %s", reply)
	}
}

func TestNewGateway_WithKey(t *testing.T) {
	cfg := DefaultConfig()
	cfg.APIKey = "sk-test"

	gw, err := NewGateway(cfg, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := gw.(*OpenAIGateway); !ok {
		t.Fatalf("expected *OpenAIGateway, got %T", gw)
	}
}

func TestNewOpenAIGateway_Validation(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	if _, err := NewOpenAIGateway(Config{Model: "gpt-4o"}); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("missing key: expected ErrInvalidConfig, got %v", err)
	}
	if _, err := NewOpenAIGateway(Config{APIKey: "sk-test"}); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("missing model: expected ErrInvalidConfig, got %v", err)
	}
}

func TestOpenAIGateway_EmptyPrompt(t *testing.T) {
	gw, err := NewOpenAIGateway(Config{APIKey: "sk-test", Model: "gpt-4o"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := gw.Complete(context.Background(), "", CallOptions{}); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig for empty prompt, got %v", err)
	}
}

func TestWithTimeout(t *testing.T) {
	slow := GatewayFunc(func(ctx context.Context, prompt string, opts CallOptions) (string, error) {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(time.Second):
			return "late", nil
		}
	})

	_, err := WithTimeout(slow, 10*time.Millisecond).Complete(context.Background(), "p", CallOptions{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}

	if WithTimeout(slow, 0) == nil {
		t.Error("zero timeout should return the wrapped gateway")
	}
}

func TestWithRateLimit_PassesThrough(t *testing.T) {
	mock := NewMockGateway("ok")
	gw := WithMetrics(WithRateLimit(mock, 600), "test")

	for i := 0; i < 3; i++ {
		reply, err := gw.Complete(context.Background(), "p", CallOptions{})
		if err != nil {
			t.Fatalf("call %d: unexpected error: %v", i, err)
		}
		if reply != "ok" {
			t.Errorf("call %d: unexpected reply %q", i, reply)
		}
	}
	if mock.Calls() != 3 {
		t.Errorf("expected 3 calls, got %d", mock.Calls())
	}
}

func TestWithRateLimit_CancelledContext(t *testing.T) {
	mock := NewMockGateway("ok")
	gw := WithRateLimit(mock, 1)

	// Drain the single burst token.
	if _, err := gw.Complete(context.Background(), "p", CallOptions{}); err != nil {
		t.Fatalf("first call failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	if _, err := gw.Complete(ctx, "p", CallOptions{}); !errors.Is(err, ErrLLMFailed) {
		t.Errorf("expected ErrLLMFailed when limiter wait is cut short, got %v", err)
	}
}

func TestMockGateway_ScriptedReplies(t *testing.T) {
	m := NewScriptedGateway("one", "two")
	ctx := context.Background()

	for i, want := range []string{"one", "two", "two"} {
		got, _ := m.Complete(ctx, "p", CallOptions{})
		if got != want {
			t.Errorf("call %d: got %q, want %q", i, got, want)
		}
	}
	if len(m.Prompts()) != 3 {
		t.Errorf("expected 3 recorded prompts, got %d", len(m.Prompts()))
	}
}

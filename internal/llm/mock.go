package llm

import (
	"context"
	"sync"
)

// MockGateway is a deterministic Gateway for testing.
//
// Reply selection order: Error, then Handler, then the next entry of Replies,
// then Response. Once Replies is exhausted its last entry is repeated.
type MockGateway struct {
	// Response is the fixed reply returned when nothing else applies.
	Response string

	// Replies are returned one per call, in order.
	Replies []string

	// Handler, if set, computes the reply from the prompt.
	Handler func(prompt string, opts CallOptions) (string, error)

	// Error, if set, is returned by every call.
	Error error

	mu          sync.Mutex
	calls       int
	prompts     []string
	lastOptions CallOptions
}

// NewMockGateway creates a mock that always returns response.
func NewMockGateway(response string) *MockGateway {
	return &MockGateway{Response: response}
}

// NewScriptedGateway creates a mock that returns replies in order.
func NewScriptedGateway(replies ...string) *MockGateway {
	return &MockGateway{Replies: replies}
}

// NewMockGatewayWithError creates a mock whose calls always fail with err.
func NewMockGatewayWithError(err error) *MockGateway {
	return &MockGateway{Error: err}
}

// Complete records the call and returns the configured reply.
func (m *MockGateway) Complete(ctx context.Context, prompt string, opts CallOptions) (string, error) {
	m.mu.Lock()
	idx := m.calls
	m.calls++
	m.prompts = append(m.prompts, prompt)
	m.lastOptions = opts
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if m.Error != nil {
		return "", m.Error
	}
	if m.Handler != nil {
		return m.Handler(prompt, opts)
	}
	if len(m.Replies) > 0 {
		if idx >= len(m.Replies) {
			idx = len(m.Replies) - 1
		}
		return m.Replies[idx], nil
	}
	return m.Response, nil
}

// Calls returns how many times Complete was invoked.
func (m *MockGateway) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// LastPrompt returns the most recent prompt, or "" if never called.
func (m *MockGateway) LastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.prompts) == 0 {
		return ""
	}
	return m.prompts[len(m.prompts)-1]
}

// Prompts returns a copy of every prompt received, in call order.
func (m *MockGateway) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.prompts))
	copy(out, m.prompts)
	return out
}

// LastOptions returns the call options of the most recent call.
func (m *MockGateway) LastOptions() CallOptions {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastOptions
}

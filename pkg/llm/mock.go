package llm

import (
	"context"
	"sync"
)

// MockEngine replays scripted responses in order, then repeats the
// last one. Used for offline operation and pipeline tests.
type MockEngine struct {
	mu        sync.Mutex
	responses []string
	next      int

	Prompts []string
}

func NewMockEngine(responses ...string) *MockEngine {
	return &MockEngine{responses: responses}
}

func (m *MockEngine) Generate(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.Prompts = append(m.Prompts, prompt)

	if len(m.responses) == 0 {
		return "I have nothing to add.", nil
	}
	resp := m.responses[m.next]
	if m.next < len(m.responses)-1 {
		m.next++
	}
	return resp, nil
}

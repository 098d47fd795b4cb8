package ai

import (
	"context"
	"sync"
)

// fakeModel returns canned replies and records the prompts it saw.
type fakeModel struct {
	mu      sync.Mutex
	reply   string
	err     error
	prompts []string
}

func (m *fakeModel) Generate(_ context.Context, _ string, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, prompt)
	return m.reply, m.err
}

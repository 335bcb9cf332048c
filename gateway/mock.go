package gateway

import (
	"context"
	"sync"
)

// Mock implements Gateway for tests and for harnesses that need scripted
// responses. Responses are served from a queue; when the queue is exhausted
// the last configured response repeats.
type Mock struct {
	mu        sync.Mutex
	responses []string
	index     int
	err       error
	calls     int
	prompts   []string
}

// NewMock creates a mock gateway that answers every call with text.
func NewMock(text string) *Mock {
	return &Mock{responses: []string{text}}
}

// QueueResponses replaces the response queue.
func (m *Mock) QueueResponses(responses ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = responses
	m.index = 0
}

// FailWith makes every subsequent call return err. Pass nil to recover.
func (m *Mock) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Generate was invoked.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Prompts returns a copy of every prompt received so far.
func (m *Mock) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string{}, m.prompts...)
}

func (m *Mock) Generate(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	m.prompts = append(m.prompts, prompt)

	if err := ctx.Err(); err != nil {
		return "", classify(err)
	}
	if m.err != nil {
		return "", m.err
	}
	if len(m.responses) == 0 {
		return "", NewError(KindBadResponse, "mock has no responses configured", nil)
	}
	resp := m.responses[m.index]
	if m.index < len(m.responses)-1 {
		m.index++
	}
	return resp, nil
}

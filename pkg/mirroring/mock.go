package mirroring

import (
	"context"
	"sync"
)

// MockPusher keeps pushed items in memory. It is meant for tests and dry runs.
type MockPusher struct {
	mu    sync.Mutex
	items map[string][]byte
}

func NewMockPusher() *MockPusher {
	return &MockPusher{items: map[string][]byte{}}
}

func (p *MockPusher) Has(_ context.Context, key string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, exists := p.items[key]
	return exists, nil
}

func (p *MockPusher) Push(_ context.Context, it Item) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.items[it.Key] = append([]byte(nil), it.Body...)
	return nil
}

// Get returns what was pushed under key.
func (p *MockPusher) Get(key string) ([]byte, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	b, ok := p.items[key]
	return b, ok
}

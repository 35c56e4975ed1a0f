package state

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// MemStateAccessor holds live state as an in-process key-value map.
// It backs the memory storage configuration and most tests.
type MemStateAccessor struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemStateAccessor creates an accessor with empty state
func NewMemStateAccessor() *MemStateAccessor {
	return &MemStateAccessor{values: make(map[string]string)}
}

// Set stores one value in the live state
func (a *MemStateAccessor) Set(key, value string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.values[key] = value
}

// Get reads one value from the live state
func (a *MemStateAccessor) Get(key string) (string, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	v, ok := a.values[key]
	return v, ok
}

// Delete removes one value from the live state
func (a *MemStateAccessor) Delete(key string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.values, key)
}

// Len reports how many values the live state holds
func (a *MemStateAccessor) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.values)
}

// CollectState serializes the current map. Keys marshal sorted, so
// equal states produce equal payloads.
func (a *MemStateAccessor) CollectState(ctx context.Context) ([]byte, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	data, err := json.Marshal(a.values)
	if err != nil {
		return nil, fmt.Errorf("marshal state: %w", err)
	}
	return data, nil
}

// ApplyState replaces the map with a captured state
func (a *MemStateAccessor) ApplyState(ctx context.Context, data []byte) error {
	var values map[string]string
	if err := json.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("parse state: %w", err)
	}
	if values == nil {
		values = make(map[string]string)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.values = values
	return nil
}

package archive

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ductware/atomtx/internal/application/port/output"
)

// MockArchiveGateway is a mock implementation of ArchiveGateway
// Stores snapshots in memory for testing purposes
type MockArchiveGateway struct {
	mu       sync.RWMutex
	archived map[string]*output.ArchivedSnapshot
	nextID   int
}

// NewMockArchiveGateway creates a new mock archive gateway
func NewMockArchiveGateway() *MockArchiveGateway {
	return &MockArchiveGateway{
		archived: make(map[string]*output.ArchivedSnapshot),
		nextID:   1,
	}
}

// SaveSnapshot stores a snapshot payload in memory
func (g *MockArchiveGateway) SaveSnapshot(ctx context.Context, req output.SaveSnapshotRequest) (*output.ArchiveEntry, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	entry := output.ArchiveEntry{
		ID:          fmt.Sprintf("mock-archive-%d", g.nextID),
		SnapshotID:  req.SnapshotID,
		Type:        req.Type,
		Checksum:    req.Checksum,
		StoragePath: "mock://snapshots/" + req.SnapshotID,
		Compression: "none",
		Size:        int64(len(req.Content)),
		CapturedAt:  req.CapturedAt,
		ArchivedAt:  time.Now(),
		Metadata:    req.Metadata,
	}
	g.nextID++

	content := make([]byte, len(req.Content))
	copy(content, req.Content)

	g.archived[req.SnapshotID] = &output.ArchivedSnapshot{
		Entry:   entry,
		Content: content,
	}

	return &entry, nil
}

// LoadSnapshot retrieves a snapshot payload from memory
func (g *MockArchiveGateway) LoadSnapshot(ctx context.Context, snapshotID string) (*output.ArchivedSnapshot, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	archived, exists := g.archived[snapshotID]
	if !exists {
		return nil, fmt.Errorf("archived snapshot not found: %s", snapshotID)
	}

	return archived, nil
}

// ListSnapshots lists all archived snapshot entries
func (g *MockArchiveGateway) ListSnapshots(ctx context.Context) ([]*output.ArchiveEntry, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	entries := make([]*output.ArchiveEntry, 0, len(g.archived))
	for _, archived := range g.archived {
		entry := archived.Entry
		entries = append(entries, &entry)
	}

	sortEntries(entries)
	return entries, nil
}

// DeleteSnapshot removes an archived snapshot from memory
func (g *MockArchiveGateway) DeleteSnapshot(ctx context.Context, snapshotID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.archived, snapshotID)
	return nil
}

// ArchivedCount returns the number of stored snapshots (for testing)
func (g *MockArchiveGateway) ArchivedCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return len(g.archived)
}

// Clear removes all stored snapshots (for testing)
func (g *MockArchiveGateway) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.archived = make(map[string]*output.ArchivedSnapshot)
	g.nextID = 1
}

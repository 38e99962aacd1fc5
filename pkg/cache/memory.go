package cache

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// MemoryConfig configures a MemoryBackend.
type MemoryConfig struct {
	// SessionTTL bounds how long any record survives after its write.
	// Zero keeps records until Close ends the session.
	SessionTTL time.Duration

	// MaxEntryBytes rejects records larger than this with ErrQuotaExceeded.
	// Zero disables the limit.
	MaxEntryBytes int
}

// MemoryBackend is a process-local, session-scoped backend.
// Records are dropped when the session ends (Close) or when SessionTTL elapses.
type MemoryBackend struct {
	// mu orders writes against conditional removes
	mu     sync.Mutex
	items  *ttlcache.Cache[string, []byte]
	config MemoryConfig
}

var (
	_ Backend            = (*MemoryBackend)(nil)
	_ ConditionalRemover = (*MemoryBackend)(nil)
)

// NewMemoryBackend creates an empty session store.
func NewMemoryBackend(cfg MemoryConfig) *MemoryBackend {
	return &MemoryBackend{
		items: ttlcache.New[string, []byte](
			ttlcache.WithDisableTouchOnHit[string, []byte](),
		),
		config: cfg,
	}
}

// Get returns the record stored under name.
func (m *MemoryBackend) Get(_ context.Context, name string) ([]byte, error) {
	item := m.items.Get(name)
	if item == nil {
		return nil, ErrNotFound
	}
	return item.Value(), nil
}

// Set stores a copy of data under name.
func (m *MemoryBackend) Set(_ context.Context, name string, data []byte) error {
	if m.config.MaxEntryBytes > 0 && len(data) > m.config.MaxEntryBytes {
		return fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrQuotaExceeded, len(data), m.config.MaxEntryBytes)
	}

	retention := ttlcache.NoTTL
	if m.config.SessionTTL > 0 {
		retention = m.config.SessionTTL
	}

	record := make([]byte, len(data))
	copy(record, data)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.items.Set(name, record, retention)
	return nil
}

// Remove deletes the record under name.
func (m *MemoryBackend) Remove(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items.Delete(name)
	return nil
}

// RemoveIf deletes the record under name only while it equals expected.
func (m *MemoryBackend) RemoveIf(_ context.Context, name string, expected []byte) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item := m.items.Get(name)
	if item == nil || !bytes.Equal(item.Value(), expected) {
		return false, nil
	}
	m.items.Delete(name)
	return true, nil
}

// Len returns the number of records held, including ones not yet swept.
func (m *MemoryBackend) Len() int {
	return m.items.Len()
}

// Close ends the session and drops every record.
func (m *MemoryBackend) Close() error {
	m.items.DeleteAll()
	return nil
}

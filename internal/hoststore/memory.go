package hoststore

import (
	"context"
	"sync"

	"publishcore/pkg/domain"
)

// Compile-time contract assertion.
var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps everything in process memory. It backs the SQL stores
// and serves as the default for tests and short-lived sessions.
type MemoryStore struct {
	mu          sync.Mutex
	contextData map[string]any
	instances   map[string]map[string]any
	order       []string
}

// NewMemoryStore builds an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		contextData: map[string]any{},
		instances:   map[string]map[string]any{},
	}
}

func (s *MemoryStore) LoadContextData(context.Context) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.DeepCopyMap(s.contextData), nil
}

func (s *MemoryStore) SaveContextData(_ context.Context, data map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contextData = domain.DeepCopyMap(data)
	return nil
}

func (s *MemoryStore) ListInstances(context.Context) ([]map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	output := make([]map[string]any, 0, len(s.order))
	for _, id := range s.order {
		if payload, ok := s.instances[id]; ok {
			output = append(output, domain.DeepCopyMap(payload))
		}
	}
	return output, nil
}

func (s *MemoryStore) UpsertInstance(_ context.Context, id string, data map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.instances[id]; !ok {
		s.order = append(s.order, id)
	}
	s.instances[id] = domain.DeepCopyMap(data)
	return nil
}

func (s *MemoryStore) DeleteInstance(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.instances[id]; !ok {
		return &NotFoundError{ID: id}
	}
	delete(s.instances, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *MemoryStore) Close() error { return nil }

// importState replaces the store content, used by the SQL stores on load.
func (s *MemoryStore) importState(contextData map[string]any, instances []instanceRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contextData = domain.DeepCopyMap(contextData)
	s.instances = map[string]map[string]any{}
	s.order = nil
	for _, record := range instances {
		s.instances[record.id] = domain.DeepCopyMap(record.payload)
		s.order = append(s.order, record.id)
	}
}

type instanceRecord struct {
	id      string
	payload map[string]any
}

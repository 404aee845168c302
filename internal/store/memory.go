package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/goccy/go-json"

	"github.com/FairForge/metaapi/internal/schema"
)

// Memory keeps serialized documents in process. Each read decodes a fresh
// copy so callers never share instances.
type Memory struct {
	mu   sync.RWMutex
	docs map[string]map[string][]byte
}

// NewMemory creates an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{docs: make(map[string]map[string][]byte)}
}

func (m *Memory) Load(ctx context.Context, typeName, uid string) (schema.Document, bool, error) {
	m.mu.RLock()
	data, ok := m.docs[typeName][uid]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	doc, err := unmarshal(data)
	if err != nil {
		return nil, false, err
	}
	return doc, true, nil
}

func (m *Memory) LoadAll(ctx context.Context, typeName string) ([]schema.Document, error) {
	m.mu.RLock()
	uids := make([]string, 0, len(m.docs[typeName]))
	for uid := range m.docs[typeName] {
		uids = append(uids, uid)
	}
	sort.Strings(uids)
	raw := make([][]byte, 0, len(uids))
	for _, uid := range uids {
		raw = append(raw, m.docs[typeName][uid])
	}
	m.mu.RUnlock()

	out := make([]schema.Document, 0, len(raw))
	for _, data := range raw {
		doc, err := unmarshal(data)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, nil
}

func (m *Memory) Insert(ctx context.Context, typeName, uid string, doc schema.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", typeName, uid, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.docs[typeName][uid]; exists {
		return ErrDuplicate
	}
	if m.docs[typeName] == nil {
		m.docs[typeName] = make(map[string][]byte)
	}
	m.docs[typeName][uid] = data
	return nil
}

func (m *Memory) Replace(ctx context.Context, typeName, uid string, doc schema.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", typeName, uid, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.docs[typeName][uid]; !exists {
		return errMissing
	}
	m.docs[typeName][uid] = data
	return nil
}

func (m *Memory) Remove(ctx context.Context, typeName, uid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.docs[typeName][uid]; !exists {
		return errMissing
	}
	delete(m.docs[typeName], uid)
	return nil
}

func unmarshal(data []byte) (schema.Document, error) {
	var doc schema.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return doc, nil
}

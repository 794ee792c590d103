package docstore

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-process Store used by tests and local development.
// A single mutex covers every operation, so Batch and Increment are trivially
// atomic.
type MemoryStore struct {
	mu          sync.Mutex
	collections map[string]map[string]map[string]any
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]map[string]map[string]any)}
}

func (s *MemoryStore) col(name string) map[string]map[string]any {
	c, ok := s.collections[name]
	if !ok {
		c = make(map[string]map[string]any)
		s.collections[name] = c
	}
	return c
}

func (s *MemoryStore) Get(ctx context.Context, collection, id string) (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.col(collection)[id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return Document{ID: id, Data: cloneDoc(doc)}, nil
}

func (s *MemoryStore) Create(ctx context.Context, collection, id string, data map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.col(collection)
	if _, ok := c[id]; ok {
		return ErrExists
	}
	c[id] = cloneDoc(data)
	return nil
}

func (s *MemoryStore) Set(ctx context.Context, collection, id string, data map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.col(collection)[id] = cloneDoc(data)
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateLocked(collection, id, fields)
}

func (s *MemoryStore) updateLocked(collection, id string, fields map[string]any) error {
	doc, ok := s.col(collection)[id]
	if !ok {
		return ErrNotFound
	}
	for k, v := range fields {
		doc[k] = v
	}
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteLocked(collection, id)
}

func (s *MemoryStore) deleteLocked(collection, id string) error {
	c := s.col(collection)
	if _, ok := c[id]; !ok {
		return ErrNotFound
	}
	delete(c, id)
	return nil
}

func (s *MemoryStore) Query(ctx context.Context, collection string, q Query) ([]Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Document
	for id, doc := range s.col(collection) {
		if matches(doc, q.Filters) {
			out = append(out, Document{ID: id, Data: cloneDoc(doc)})
		}
	}
	if q.OrderBy != "" {
		sort.Slice(out, func(i, j int) bool {
			less := compareValues(out[i].Data[q.OrderBy], out[j].Data[q.OrderBy]) < 0
			if q.Desc {
				return !less
			}
			return less
		})
	} else {
		// stable output for callers that page without an order
		sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	}
	if q.Offset > 0 {
		if q.Offset >= len(out) {
			return nil, nil
		}
		out = out[q.Offset:]
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *MemoryStore) Batch(ctx context.Context, muts []Mutation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate everything up front so the batch is all-or-nothing.
	for _, m := range muts {
		switch m.Op {
		case OpUpdate, OpDelete, OpIncrement:
			if _, ok := s.col(m.Collection)[m.ID]; !ok {
				return ErrNotFound
			}
		}
	}
	for _, m := range muts {
		switch m.Op {
		case OpSet:
			s.col(m.Collection)[m.ID] = cloneDoc(m.Data)
		case OpUpdate:
			_ = s.updateLocked(m.Collection, m.ID, m.Data)
		case OpDelete:
			_ = s.deleteLocked(m.Collection, m.ID)
		case OpIncrement:
			s.incrementLocked(m.Collection, m.ID, m.Field, m.Delta)
		}
	}
	return nil
}

func (s *MemoryStore) Increment(ctx context.Context, collection, id, field string, delta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.col(collection)[id]; !ok {
		return ErrNotFound
	}
	s.incrementLocked(collection, id, field, delta)
	return nil
}

func (s *MemoryStore) incrementLocked(collection, id, field string, delta int64) {
	doc := s.col(collection)[id]
	cur := int64(0)
	switch v := doc[field].(type) {
	case int64:
		cur = v
	case int:
		cur = int64(v)
	case int32:
		cur = int64(v)
	case float64:
		cur = int64(v)
	}
	next := cur + delta
	if next < 0 {
		next = 0
	}
	doc[field] = next
}

func cloneDoc(doc map[string]any) map[string]any {
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out
}

func matches(doc map[string]any, filters []Filter) bool {
	for _, f := range filters {
		if compareValues(doc[f.Field], f.Value) != 0 {
			return false
		}
	}
	return true
}

func compareValues(a, b any) int {
	switch av := a.(type) {
	case string:
		if bv, ok := b.(string); ok {
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			}
			return 0
		}
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			return av.Compare(bv)
		}
	default:
		an, aok := toInt64(a)
		bn, bok := toInt64(b)
		if aok && bok {
			switch {
			case an < bn:
				return -1
			case an > bn:
				return 1
			}
			return 0
		}
	}
	if a == b {
		return 0
	}
	return -1
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case float64:
		return int64(n), true
	}
	return 0, false
}

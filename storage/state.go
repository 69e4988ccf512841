package storage

import (
	"context"
	"time"

	"github.com/bytedance/sonic"

	"school-planner/domain"
)

const defaultStateKey = "planner:state"

// StateStore persists the planner document as one JSON blob under one key.
// Reads of a missing key return the default document, so a fresh deployment
// works without any seeding step.
type StateStore struct {
	kv  KV
	key string
}

// NewStateStore wraps a KV backend. An empty key selects the default.
func NewStateStore(kv KV, key string) *StateStore {
	if key == "" {
		key = defaultStateKey
	}
	return &StateStore{kv: kv, key: key}
}

// LoadRaw returns the stored document bytes, or the default document when
// nothing has been written yet. The blob is served as stored; clients run
// their own normalization on parse.
func (s *StateStore) LoadRaw(ctx context.Context) ([]byte, error) {
	val, ok, err := s.kv.GetString(ctx, s.key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return sonic.Marshal(domain.DefaultDocument())
	}
	return []byte(val), nil
}

// SaveDocument normalizes and stores the document, returning the write
// timestamp reported back to the client.
func (s *StateStore) SaveDocument(ctx context.Context, doc domain.Document) (time.Time, error) {
	data, err := sonic.Marshal(domain.Normalize(doc))
	if err != nil {
		return time.Time{}, err
	}
	if err := s.kv.SetBody(ctx, s.key, data); err != nil {
		return time.Time{}, err
	}
	return time.Now().UTC(), nil
}

// Ping reports backend reachability for the health endpoint.
func (s *StateStore) Ping(ctx context.Context) error {
	return s.kv.Ping(ctx)
}

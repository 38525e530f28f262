package record

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/kailas-cloud/docsync/internal/db"
	domrec "github.com/kailas-cloud/docsync/internal/domain/record"
)

// memStore is an in-memory store. SCAN pages are pageSize keys long and, when dupEvery
// is set, every page repeats its first key to mimic SCAN's duplicate reporting.
type memStore struct {
	mu       sync.Mutex
	data     map[string][]byte
	pageSize int
	dupEvery bool

	getErr  error
	setErr  error
	scanErr error
	mgetFn  func(keys []string) // observes MGET calls
}

func newMemStore() *memStore {
	return &memStore{data: map[string][]byte{}, pageSize: 3}
}

func (m *memStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (m *memStore) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *memStore) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok, nil
}

func (m *memStore) Del(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	delete(m.data, key)
	return ok, nil
}

func (m *memStore) MGet(_ context.Context, keys []string) ([][]byte, error) {
	if m.mgetFn != nil {
		m.mgetFn(keys)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(keys))
	for i, k := range keys {
		out[i] = m.data[k]
	}
	return out, nil
}

func (m *memStore) ScanPage(_ context.Context, pattern string, cursor uint64, _ int64) ([]string, uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.scanErr != nil {
		return nil, 0, m.scanErr
	}
	prefix := strings.TrimSuffix(pattern, "*")
	var keys []string
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	start := int(cursor)
	end := min(start+m.pageSize, len(keys))
	if start >= end {
		return nil, 0, nil
	}
	page := append([]string(nil), keys[start:end]...)
	if m.dupEvery {
		page = append(page, page[0])
	}
	next := uint64(end)
	if end == len(keys) {
		next = 0
	}
	return page, next, nil
}

type recordingHooks struct {
	saved   []*domrec.Record
	removed []*domrec.Record
}

func (h *recordingHooks) OnSaved(_ context.Context, rec *domrec.Record)   { h.saved = append(h.saved, rec) }
func (h *recordingHooks) OnRemoved(_ context.Context, rec *domrec.Record) { h.removed = append(h.removed, rec) }

func newTestRepo() (*Repo, *memStore, *recordingHooks) {
	ms := newMemStore()
	hooks := &recordingHooks{}
	return New(ms, hooks, "docsync:", 3), ms, hooks
}

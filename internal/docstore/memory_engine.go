package docstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

type memoryState struct {
	docs    map[string]map[int64][]byte
	entries map[string]map[int64][]IndexEntry
	seq     map[string]int64
	version int
}

func newMemoryState() *memoryState {
	return &memoryState{
		docs:    make(map[string]map[int64][]byte),
		entries: make(map[string]map[int64][]IndexEntry),
		seq:     make(map[string]int64),
	}
}

func (s *memoryState) clone() *memoryState {
	out := newMemoryState()
	for coll, docs := range s.docs {
		m := make(map[int64][]byte, len(docs))
		for id, body := range docs {
			m[id] = body
		}
		out.docs[coll] = m
	}
	for coll, byID := range s.entries {
		m := make(map[int64][]IndexEntry, len(byID))
		for id, entries := range byID {
			m[id] = entries
		}
		out.entries[coll] = m
	}
	for coll, last := range s.seq {
		out.seq[coll] = last
	}
	out.version = s.version
	return out
}

// memoryEngine keeps documents in process memory. Bodies are copied on the way
// in and out, so no caller ever shares a byte slice with the store.
type memoryEngine struct {
	mu     *sync.RWMutex
	holder *memoryHolder
	// state is set on batch views, which run with mu already held.
	state *memoryState
}

type memoryHolder struct {
	state *memoryState
}

// MemoryOpener opens engines over one shared in-process state, so data
// survives Close and a later Initialize within the same process.
type MemoryOpener struct {
	mu     sync.RWMutex
	holder memoryHolder
}

// NewMemoryOpener returns an empty in-memory store opener.
func NewMemoryOpener() *MemoryOpener {
	return &MemoryOpener{holder: memoryHolder{state: newMemoryState()}}
}

// Open implements Opener.
func (o *MemoryOpener) Open(context.Context) (Engine, error) {
	return &memoryEngine{mu: &o.mu, holder: &o.holder}, nil
}

func (e *memoryEngine) batchView() bool { return e.state != nil }

func (e *memoryEngine) rlock() (*memoryState, func()) {
	if e.batchView() {
		return e.state, func() {}
	}
	e.mu.RLock()
	return e.holder.state, e.mu.RUnlock
}

func (e *memoryEngine) lock() (*memoryState, func()) {
	if e.batchView() {
		return e.state, func() {}
	}
	e.mu.Lock()
	return e.holder.state, e.mu.Unlock
}

func (e *memoryEngine) Insert(ctx context.Context, collection string, body []byte, entries []IndexEntry) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	st, unlock := e.lock()
	defer unlock()

	if err := st.checkUnique(collection, 0, entries); err != nil {
		return 0, err
	}
	st.seq[collection]++
	id := st.seq[collection]
	st.write(collection, id, body, entries)
	return id, nil
}

func (e *memoryEngine) Get(ctx context.Context, collection string, id int64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	st, unlock := e.rlock()
	defer unlock()

	body, ok := st.docs[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneBytes(body), nil
}

func (e *memoryEngine) All(ctx context.Context, collection string) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	st, unlock := e.rlock()
	defer unlock()

	docs := st.docs[collection]
	rows := make([]Row, 0, len(docs))
	for id, body := range docs {
		rows = append(rows, Row{ID: id, Body: cloneBytes(body)})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	return rows, nil
}

func (e *memoryEngine) Put(ctx context.Context, collection string, id int64, body []byte, entries []IndexEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	st, unlock := e.lock()
	defer unlock()

	if _, ok := st.docs[collection][id]; !ok {
		return ErrNotFound
	}
	if err := st.checkUnique(collection, id, entries); err != nil {
		return err
	}
	st.write(collection, id, body, entries)
	return nil
}

func (e *memoryEngine) Delete(ctx context.Context, collection string, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	st, unlock := e.lock()
	defer unlock()

	delete(st.docs[collection], id)
	delete(st.entries[collection], id)
	return nil
}

func (e *memoryEngine) Lookup(ctx context.Context, collection, index, key string) ([]Row, error) {
	return e.Range(ctx, collection, index, key, key)
}

func (e *memoryEngine) Range(ctx context.Context, collection, index, lower, upper string) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	st, unlock := e.rlock()
	defer unlock()

	type hit struct {
		key string
		row Row
	}
	var hits []hit
	for id, entries := range st.entries[collection] {
		for _, entry := range entries {
			if entry.Index != index || entry.Key < lower || entry.Key > upper {
				continue
			}
			hits = append(hits, hit{key: entry.Key, row: Row{ID: id, Body: cloneBytes(st.docs[collection][id])}})
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].key != hits[j].key {
			return hits[i].key < hits[j].key
		}
		return hits[i].row.ID < hits[j].row.ID
	})
	rows := make([]Row, len(hits))
	for i, h := range hits {
		rows[i] = h.row
	}
	return rows, nil
}

func (e *memoryEngine) SchemaVersion(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	st, unlock := e.rlock()
	defer unlock()
	return st.version, nil
}

func (e *memoryEngine) SetSchemaVersion(ctx context.Context, version int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	st, unlock := e.lock()
	defer unlock()
	st.version = version
	return nil
}

func (e *memoryEngine) Batch(ctx context.Context, fn func(Engine) error) error {
	if e.batchView() {
		return fn(e)
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	view := &memoryEngine{state: e.holder.state.clone()}
	if err := fn(view); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	e.holder.state = view.state
	return nil
}

func (e *memoryEngine) Close() error { return nil }

func (s *memoryState) checkUnique(collection string, self int64, entries []IndexEntry) error {
	for _, want := range uniqueEntries(entries) {
		for id, existing := range s.entries[collection] {
			if id == self {
				continue
			}
			for _, got := range existing {
				if got.Index == want.Index && got.Key == want.Key {
					return fmt.Errorf("%w: %s.%s", ErrDuplicateKey, collection, want.Index)
				}
			}
		}
	}
	return nil
}

func (s *memoryState) write(collection string, id int64, body []byte, entries []IndexEntry) {
	if s.docs[collection] == nil {
		s.docs[collection] = make(map[int64][]byte)
	}
	if s.entries[collection] == nil {
		s.entries[collection] = make(map[int64][]IndexEntry)
	}
	s.docs[collection][id] = cloneBytes(body)
	s.entries[collection][id] = append([]IndexEntry(nil), entries...)
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

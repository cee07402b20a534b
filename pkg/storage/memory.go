package storage

import "sync"

// MemoryStore is the volatile Store: a guarded map. It satisfies the
// same contract as BoltStore and is the default for tests and
// short-lived sessions.
type MemoryStore struct {
	entries map[string][]byte
	mtx     sync.RWMutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string][]byte)}
}

func (ms *MemoryStore) Put(key []byte, value []byte) error {
	ms.mtx.Lock()
	defer ms.mtx.Unlock()
	val := make([]byte, len(value))
	copy(val, value)
	ms.entries[string(key)] = val
	return nil
}

func (ms *MemoryStore) Get(key []byte) ([]byte, error) {
	ms.mtx.RLock()
	defer ms.mtx.RUnlock()
	v, ok := ms.entries[string(key)]
	if !ok {
		return nil, ErrNotFound
	}
	val := make([]byte, len(v))
	copy(val, v)
	return val, nil
}

func (ms *MemoryStore) Delete(key []byte) error {
	ms.mtx.Lock()
	defer ms.mtx.Unlock()
	delete(ms.entries, string(key))
	return nil
}

func (ms *MemoryStore) Clear() error {
	ms.mtx.Lock()
	defer ms.mtx.Unlock()
	ms.entries = make(map[string][]byte)
	return nil
}

func (ms *MemoryStore) Keys() ([][]byte, error) {
	ms.mtx.RLock()
	defer ms.mtx.RUnlock()
	keys := make([][]byte, 0, len(ms.entries))
	for k := range ms.entries {
		keys = append(keys, []byte(k))
	}
	return keys, nil
}

func (ms *MemoryStore) Close() error {
	return nil
}

package courier

import (
	"sync"
	"time"
)

// MemoryMessageStore is a guarded in-memory MessageStore, the default
// for tests and in-process demos.
type MemoryMessageStore struct {
	msgs map[string]StoredMessage
	mtx  sync.RWMutex
}

func NewMemoryMessageStore() *MemoryMessageStore {
	return &MemoryMessageStore{msgs: make(map[string]StoredMessage)}
}

func (s *MemoryMessageStore) Query(f MessageFilter) ([]StoredMessage, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	var out []StoredMessage
	if len(f.IDs) > 0 {
		for _, id := range f.IDs {
			if m, ok := s.msgs[id]; ok && matches(m, f) {
				out = append(out, m)
			}
		}
	} else {
		for _, m := range s.msgs {
			if matches(m, f) {
				out = append(out, m)
			}
		}
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *MemoryMessageStore) Store(msg StoredMessage) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.msgs[msg.ID] = msg
	return nil
}

func (s *MemoryMessageStore) BulkStore(msgs []StoredMessage) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	for _, m := range msgs {
		s.msgs[m.ID] = m
	}
	return nil
}

func (s *MemoryMessageStore) AllIDs() ([]string, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	ids := make([]string, 0, len(s.msgs))
	for id := range s.msgs {
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *MemoryMessageStore) Stats() (StoreStats, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	var stats StoreStats
	var oldest, newest time.Time
	for _, m := range s.msgs {
		stats.MessageCount++
		stats.TotalBytes += int64(m.SizeBytes)
		if oldest.IsZero() || m.CreatedAt.Before(oldest) {
			oldest = m.CreatedAt
		}
		if newest.IsZero() || m.CreatedAt.After(newest) {
			newest = m.CreatedAt
		}
	}
	stats.OldestMessage = oldest
	stats.NewestMessage = newest
	return stats, nil
}

func matches(m StoredMessage, f MessageFilter) bool {
	if f.MinPriority != nil && m.Priority < *f.MinPriority {
		return false
	}
	if f.Zone != "" && m.DestinationGeoZone != f.Zone {
		return false
	}
	return true
}

package routing

import (
	"encoding/json"
	"time"

	storage "github.com/opencourier/meshsync/pkg/storage"
)

// contactRecord is the persisted form of one contact. Ids double as
// storage keys, so a record never moves between keys.
type contactRecord struct {
	ID           string    `json:"id"`
	PeerID       string    `json:"peerId"`
	LastSeen     time.Time `json:"lastSeen"`
	FailureCount uint      `json:"failureCount"`
	RTTMillis    int64     `json:"rttMillis,omitempty"`
	Endpoints    []string  `json:"endpoints,omitempty"`
}

// Save snapshots every contact into the given store, replacing any
// previous snapshot.
func (t *table) Save(st storage.Store) error {
	contacts := t.Contacts()
	if err := st.Clear(); err != nil {
		return err
	}
	for _, c := range contacts {
		rec := contactRecord{
			ID:           c.ID.String(),
			PeerID:       c.PeerID,
			LastSeen:     c.LastSeen,
			FailureCount: c.FailureCount,
			RTTMillis:    c.RTT.Milliseconds(),
			Endpoints:    c.Endpoints,
		}
		raw, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		if err := st.Put(c.ID[:], raw); err != nil {
			return err
		}
	}
	t.logger.Infof("Saved %d contacts.", len(contacts))
	return nil
}

// LoadTable rebuilds a table from a snapshot, preserving last-seen
// times and failure counters. Records that no longer parse are skipped
// rather than failing the whole load.
func LoadTable(st storage.Store, local NodeID) (Table, error) {
	t := NewTable(local).(*table)
	keys, err := st.Keys()
	if err != nil {
		return nil, err
	}
	loaded := 0
	for _, key := range keys {
		raw, err := st.Get(key)
		if err != nil {
			continue
		}
		var rec contactRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			t.logger.Warnf("Skipping unparsable contact record: %+v", err)
			continue
		}
		id, err := NodeIDFromHex(rec.ID)
		if err != nil {
			t.logger.Warnf("Skipping contact with bad id: %+v", err)
			continue
		}
		t.restore(Contact{
			ID:           id,
			PeerID:       rec.PeerID,
			LastSeen:     rec.LastSeen,
			FailureCount: rec.FailureCount,
			RTT:          time.Duration(rec.RTTMillis) * time.Millisecond,
			Endpoints:    rec.Endpoints,
		})
		loaded++
	}
	t.logger.Infof("Loaded %d contacts.", loaded)
	return t, nil
}

// restore inserts a contact without refreshing its last-seen stamp.
func (t *table) restore(c Contact) {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	b := t.bucketFor(c.ID)
	if b == nil || b.find(c.ID) != nil || b.len() >= b.k {
		return
	}
	b.contacts.PushBack(c)
}

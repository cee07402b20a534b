package routing

import "time"

// Contact is one known peer: its position in the identifier space plus
// the liveness bookkeeping the table maintains for it. Contacts are
// created on first sighting and only leave the table via explicit
// removal or replacement-cache eviction.
type Contact struct {
	ID           NodeID
	PeerID       string
	LastSeen     time.Time
	FailureCount uint
	RTT          time.Duration
	Endpoints    []string
}

// NewContact returns a contact stamped as seen now.
func NewContact(id NodeID, peerID string) Contact {
	return Contact{
		ID:       id,
		PeerID:   peerID,
		LastSeen: time.Now(),
	}
}

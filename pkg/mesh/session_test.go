package mesh

import (
	"testing"
	"time"

	assert "github.com/stretchr/testify/assert"
	require "github.com/stretchr/testify/require"

	courier "github.com/opencourier/meshsync/pkg/courier"
	monitor "github.com/opencourier/meshsync/pkg/monitor"
	power "github.com/opencourier/meshsync/pkg/power"
	routing "github.com/opencourier/meshsync/pkg/routing"
	storage "github.com/opencourier/meshsync/pkg/storage"
)

func testSession(t *testing.T, msgs ...courier.StoredMessage) *Session {
	t.Helper()
	cs := courier.GetDefaultConstants()
	store := courier.NewMemoryMessageStore()
	filter := courier.NewBloomFilter(cs.FilterHashes, cs.FilterBits)
	for _, m := range msgs {
		require.NoError(t, store.Store(m))
		filter.Add(m.ID)
	}
	eng := courier.NewEngine("local", store, filter, cs)

	tbl := routing.NewTable(routing.NewRandomNodeID())
	mon := monitor.NewMonitor(tbl, monitor.GetDefaultConstants())
	ctrl := power.NewController(power.GetDefaultConstants())

	s := NewSession(ctrl, mon, eng, tbl, storage.NewMemoryStore())
	t.Cleanup(s.Stop)
	return s
}

func ownMsg(id string, p courier.Priority) courier.StoredMessage {
	return courier.StoredMessage{
		ID:           id,
		Priority:     p,
		CreatedAt:    time.Now(),
		SizeBytes:    64,
		Payload:      []byte("ciphertext"),
		IsOwnMessage: true,
	}
}

func noReceive() ([]courier.StoredMessage, error) { return nil, nil }

func TestEncounterRefusedWhileAsleep(t *testing.T) {
	s := testSession(t)
	send := func(courier.StoredMessage) error { return nil }
	_, err := s.Encounter(courier.Manifest{PeerID: "p"}, send, noReceive)
	assert.ErrorIs(t, err, ErrAsleep)
}

func TestEncounterSyncsWhenAwake(t *testing.T) {
	s := testSession(t, ownMsg("hello", courier.PriorityNormal))
	s.Start()

	var sent []string
	send := func(m courier.StoredMessage) error {
		sent = append(sent, m.ID)
		return nil
	}
	res, err := s.Encounter(courier.Manifest{PeerID: "p"}, send, noReceive)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, []string{"hello"}, sent)
}

func TestEncounterRelayBudget(t *testing.T) {
	s := testSession(t, ownMsg("a", courier.PriorityNormal), ownMsg("b", courier.PriorityNormal))
	s.Start()

	s.mtx.Lock()
	s.relaysLeft = 2
	s.mtx.Unlock()

	send := func(courier.StoredMessage) error { return nil }
	res, err := s.Encounter(courier.Manifest{PeerID: "p"}, send, noReceive)
	require.NoError(t, err)
	assert.Equal(t, 2, res.MessagesSent)

	_, err = s.Encounter(courier.Manifest{PeerID: "p"}, send, noReceive)
	assert.ErrorIs(t, err, ErrRelayBudget)
}

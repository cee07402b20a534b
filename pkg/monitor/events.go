package monitor

import "time"

type NetworkState int

const (
	StateDisconnected NetworkState = iota
	StateDegraded
	StateConnected
)

func (s NetworkState) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateDegraded:
		return "DEGRADED"
	case StateConnected:
		return "CONNECTED"
	default:
		return "UNKNOWN"
	}
}

// Topology is a derived snapshot of network health. It is recomputed
// on every monitoring tick and never persisted.
type Topology struct {
	State                NetworkState
	TotalNodes           int
	DirectPeers          int
	EstimatedNetworkSize int
	BucketDistribution   []int
	AvgLatency           time.Duration
	HealthScore          int
}

// Event is the tagged union delivered to subscribers.
type Event interface {
	event()
}

// StateChange fires on every transition of the network state machine.
type StateChange struct {
	Old      NetworkState
	New      NetworkState
	Topology Topology
}

// TopologyChange fires when node count or health score moves beyond
// the configured deltas since the last emitted snapshot.
type TopologyChange struct {
	Old Topology
	New Topology
}

// HealthWarning carries free-text diagnostics for threshold breaches.
type HealthWarning struct {
	Warnings []string
	Topology Topology
}

func (StateChange) event()    {}
func (TopologyChange) event() {}
func (HealthWarning) event()  {}

package monitor

import "time"

type Constants struct {
	Interval           time.Duration // tick period
	IntervalRandomness float32       // percentage variance 0.00<=x<=1.00

	MinNodesDegraded  int // below this the network counts as disconnected
	MinNodesConnected int // below this the network counts as degraded
	DegradedHealth    int // health below this forces degraded

	StaleThreshold        time.Duration
	NodeDeficitPenalty    int     // per node missing from the connected minimum
	FailureBaseline       float64 // average failures tolerated before penalties
	FailurePenaltyPerUnit int
	FailurePenaltyCap     int
	StalePenaltyCap       int
	LookupTarget          float64 // expected lookup success rate
	LookupPenaltyCap      int
	MinLookupSamples      int

	// Network-size coverage heuristic: estimate = total * 2^max(0,
	// CoverageBase - h/CoverageDivisor) where h is the highest
	// non-empty bucket. Empirically chosen, tunable, an approximation
	// rather than a statistical estimator.
	CoverageBase    int
	CoverageDivisor int

	TopologyNodeDelta   int
	TopologyHealthDelta int

	LatencyWarning       time.Duration
	HealthWarningScore   int
	BucketImbalanceShare float64 // one bucket holding more than this fraction
}

func GetDefaultConstants() *Constants {
	return &Constants{
		Interval:              30000 * time.Millisecond,
		IntervalRandomness:    0.10,
		MinNodesDegraded:      3,
		MinNodesConnected:     10,
		DegradedHealth:        50,
		StaleThreshold:        10 * time.Minute,
		NodeDeficitPenalty:    5,
		FailureBaseline:       2,
		FailurePenaltyPerUnit: 5,
		FailurePenaltyCap:     30,
		StalePenaltyCap:       20,
		LookupTarget:          0.80,
		LookupPenaltyCap:      50,
		MinLookupSamples:      10,
		CoverageBase:          10,
		CoverageDivisor:       16,
		TopologyNodeDelta:     5,
		TopologyHealthDelta:   10,
		LatencyWarning:        2 * time.Second,
		HealthWarningScore:    40,
		BucketImbalanceShare:  0.5,
	}
}

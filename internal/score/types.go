package score

import "time"

// TopicStats holds the per-(peer,topic) delivery counters spec §3
// describes. Created lazily by the first ingest hook that references a
// scored topic and never explicitly deleted; it rides along with the
// owning PeerStats.
type TopicStats struct {
	InMesh    bool
	GraftTime time.Time
	MeshTime  time.Duration

	FirstMessageDeliveries  float64
	MeshMessageDeliveries   float64
	MeshFailurePenalty      float64
	InvalidMessageDeliveries float64

	MeshMessageDeliveriesActive bool
}

// PeerStats holds everything the engine tracks about one known peer.
type PeerStats struct {
	Connected bool
	Expire    time.Time // meaningful only while !Connected

	Topics map[string]*TopicStats

	BehaviourPenalty float64
	IPs              []string
}

package score

import "github.com/dep2p/peerscore/pkg/types"

// computeScoreLocked implements spec §4.4's score-computation formula.
// Callers must hold e.mu (read or write).
//
// topicScoreCap semantics (§9 open question): this clamps the positive
// topic-contribution subtotal directly, rather than rescaling each
// contribution proportionally — the two are equivalent for the returned
// total, and nothing downstream needs the per-topic breakdown
// renormalized.
func (e *Engine) computeScoreLocked(peer types.NodeID, stats *PeerStats) float64 {
	var topicSubtotal float64
	for topic, ts := range stats.Topics {
		tp, scored := e.params.Topics[topic]
		if !scored {
			continue
		}
		topicSubtotal += e.topicContribution(ts, tp)
	}
	if e.params.TopicScoreCap > 0 && topicSubtotal > e.params.TopicScoreCap {
		topicSubtotal = e.params.TopicScoreCap
	}

	total := topicSubtotal

	if e.params.AppSpecificScore != nil {
		total += e.params.AppSpecificScore(peer) * e.params.AppSpecificWeight
	}

	total += e.ipColocationScoreLocked(stats) * e.params.IPColocationFactorWeight

	if excess := stats.BehaviourPenalty - e.params.BehaviourPenaltyThreshold; excess > 0 {
		total += e.params.BehaviourPenaltyWeight * excess * excess
	}

	return total
}

// topicContribution computes one topic's weighted contribution: time in
// mesh, first-delivery credit, mesh-delivery-deficit penalty,
// accumulated mesh-failure penalty, and invalid-delivery penalty
// (squared), each weighted and summed, then scaled by topicWeight.
func (e *Engine) topicContribution(ts *TopicStats, tp *TopicParams) float64 {
	var p1 float64
	if ts.InMesh && tp.TimeInMeshQuantum > 0 {
		p1 = ts.MeshTime.Seconds() / tp.TimeInMeshQuantum.Seconds()
		if p1 > tp.TimeInMeshCap {
			p1 = tp.TimeInMeshCap
		}
	}

	p2 := ts.FirstMessageDeliveries

	var p3 float64
	if ts.MeshMessageDeliveriesActive && ts.MeshMessageDeliveries < tp.MeshMessageDeliveriesThreshold {
		deficit := tp.MeshMessageDeliveriesThreshold - ts.MeshMessageDeliveries
		p3 = deficit * deficit
	}

	p3b := ts.MeshFailurePenalty
	p4 := ts.InvalidMessageDeliveries * ts.InvalidMessageDeliveries

	sum := p1*tp.TimeInMeshWeight +
		p2*tp.FirstMessageDeliveriesWeight +
		p3*tp.MeshMessageDeliveriesWeight +
		p3b*tp.MeshFailurePenaltyWeight +
		p4*tp.InvalidMessageDeliveriesWeight

	return tp.TopicWeight * sum
}

// ipColocationScoreLocked returns the unweighted IP-colocation penalty
// term: for every non-whitelisted IP of this peer shared by more than
// IPColocationFactorThreshold peers, (sharers - threshold)^2.
func (e *Engine) ipColocationScoreLocked(stats *PeerStats) float64 {
	var total float64
	for _, ip := range stats.IPs {
		if _, whitelisted := e.params.IPColocationFactorWhitelist[ip]; whitelisted {
			continue
		}
		n := len(e.peerIPs[ip])
		if n <= e.params.IPColocationFactorThreshold {
			continue
		}
		excess := float64(n - e.params.IPColocationFactorThreshold)
		total += excess * excess
	}
	return total
}

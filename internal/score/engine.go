// Package score implements the peer-scoring core of a gossip-style
// publish/subscribe overlay: the peer-score engine, the message-delivery
// tracker, and the IWANT-promise tracker. It receives notifications from
// the overlay's mesh-management and message-validation paths and exposes
// a score per peer for the overlay to act on; it never decides who to
// graft, prune, or disconnect itself.
package score

import (
	"context"
	"sync"
	"time"

	"github.com/dep2p/peerscore/internal/util/logger"
	"github.com/dep2p/peerscore/pkg/interfaces"
	"github.com/dep2p/peerscore/pkg/types"
)

var log = logger.Logger("score")

// Engine is the peer-score engine of spec §4.4: per-peer and per-topic
// counters, ingest hooks fed by the overlay, periodic decay and IP
// refresh, and a score(peer) readout.
//
// Grounded on scoring.go's PeerScorer almost module-for-module
// (peerScoreStats/topicScoreStats → PeerStats/TopicStats; computeScore/
// computeTopicScore/computeIPColocationScore → the unexported helpers in
// score.go), with the deviations recorded in DESIGN.md (RemovePeer's
// drop-or-retain rule, decay skipping disconnected peers), plus ingest
// hooks no-oping on an unknown peer id instead of auto-vivifying
// PeerStats (the teacher's getOrCreateStats does the latter; spec §7
// requires the former).
type Engine struct {
	mu sync.RWMutex

	clock   Clock
	params  *Parameters
	connMgr interfaces.ConnectionManager

	records  *DeliveryRecords
	promises *PromiseTracker // optional; nil disables the broken-promise feed

	peerStats map[types.NodeID]*PeerStats
	peerIPs   map[string]map[types.NodeID]struct{}

	running bool
	stopCh  chan struct{}
}

// NewEngine validates params and constructs an Engine. connMgr may be nil
// (AddPeer/updateIPs then see an empty IP list for every peer, same as a
// connection manager that fails). promises may be nil to opt out of the
// periodic broken-promise-to-AddPenalty feed.
func NewEngine(params *Parameters, connMgr interfaces.ConnectionManager, clk Clock, promises *PromiseTracker) (*Engine, error) {
	if params == nil {
		params = DefaultParameters()
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	return &Engine{
		clock:     clk,
		params:    params,
		connMgr:   connMgr,
		records:   NewDeliveryRecords(clk, params.DeliveryRecordTTL),
		promises:  promises,
		peerStats: make(map[types.NodeID]*PeerStats),
		peerIPs:   make(map[string]map[types.NodeID]struct{}),
	}, nil
}

// ============================================================================
//                              lifecycle
// ============================================================================

// Start launches the periodic background tick (refreshScores → updateIPs
// → DeliveryRecords.GC → broken-promise feed) every params.DecayInterval.
// Starting an already-running Engine is a no-op.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil
	}
	e.running = true
	e.stopCh = make(chan struct{})
	e.mu.Unlock()

	go e.loop(ctx)
	return nil
}

// Stop cancels the background tick and clears peerStats, peerIPs, and the
// delivery-record cache, per spec §5.
func (e *Engine) Stop() error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return nil
	}
	e.running = false
	close(e.stopCh)
	e.peerStats = make(map[types.NodeID]*PeerStats)
	e.peerIPs = make(map[string]map[types.NodeID]struct{})
	e.mu.Unlock()

	e.records.Clear()
	return nil
}

func (e *Engine) loop(ctx context.Context) {
	ticker := e.clock.Ticker(e.params.DecayInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.tick()
		case <-ctx.Done():
			return
		case <-e.stopCh:
			return
		}
	}
}

func (e *Engine) tick() {
	start := e.clock.Now()
	e.refreshScores()
	e.updateIPs()
	e.records.GC()
	e.feedBrokenPromises()
	if elapsed := e.clock.Since(start); elapsed > e.params.DecayInterval {
		log.Warn("refreshScores tick overran decay interval", "elapsed", elapsed)
	}
}

// feedBrokenPromises pulls broken-promise counts and applies them as
// behaviour-penalty additions, grounded on heartbeat.go's
// handleBrokenPromises (there: one BrokenPromise() call per broken count;
// here: a single AddPenalty with the count as the magnitude, since
// AddPenalty already takes an arbitrary increment).
func (e *Engine) feedBrokenPromises() {
	if e.promises == nil {
		return
	}
	for peer, count := range e.promises.GetBrokenPromises() {
		e.AddPenalty(peer, float64(count))
	}
}

// ============================================================================
//                              ingest hooks
// ============================================================================

// AddPeer creates PeerStats for a newly connected peer and refreshes its
// IPs from the connection manager. A second AddPeer for an already-known
// peer is a no-op.
func (e *Engine) AddPeer(peer types.NodeID) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.peerStats[peer]; exists {
		return
	}

	ips := e.currentIPsLocked(peer)
	stats := &PeerStats{
		Connected: true,
		Topics:    make(map[string]*TopicStats),
		IPs:       ips,
	}
	e.peerStats[peer] = stats
	e.registerIPsLocked(peer, ips)
}

// RemovePeer implements spec §4.4's drop-or-retain rule: a peer with a
// currently positive score is dropped immediately with no retention (a
// misbehaving peer must not be able to regain score just by
// disconnecting); otherwise it is retained, disarmed of in-mesh credit,
// and penalized for any mesh-delivery shortfall, to expire at
// now+retainScore.
func (e *Engine) RemovePeer(peer types.NodeID) {
	e.mu.Lock()
	defer e.mu.Unlock()

	stats, exists := e.peerStats[peer]
	if !exists {
		return
	}

	if e.computeScoreLocked(peer, stats) > 0 {
		e.unregisterIPsLocked(peer, stats)
		delete(e.peerStats, peer)
		return
	}

	e.unregisterIPsLocked(peer, stats)
	stats.IPs = nil
	stats.Connected = false
	stats.Expire = e.clock.Now().Add(e.params.RetainScore)

	now := e.clock.Now()
	for topic, ts := range stats.Topics {
		ts.FirstMessageDeliveries = 0
		if tp, ok := e.params.Topics[topic]; ok {
			e.updateMeshActivationLocked(ts, tp, now)
			if ts.InMesh && ts.MeshMessageDeliveriesActive && ts.MeshMessageDeliveries < tp.MeshMessageDeliveriesThreshold {
				deficit := tp.MeshMessageDeliveriesThreshold - ts.MeshMessageDeliveries
				ts.MeshFailurePenalty += deficit * deficit
			}
		}
		ts.InMesh = false
	}
}

// Graft marks a peer as having joined the mesh on topic. Unknown peers
// and unscored topics are silently ignored (spec §7 UnknownPeer).
func (e *Engine) Graft(peer types.NodeID, topic string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	stats, ok := e.peerStats[peer]
	if !ok {
		return
	}
	if _, scored := e.params.Topics[topic]; !scored {
		return
	}

	ts := e.ensureTopicStats(stats, topic)
	ts.InMesh = true
	ts.GraftTime = e.clock.Now()
	ts.MeshTime = 0
	ts.MeshMessageDeliveriesActive = false
}

// Prune marks a peer as having left the mesh on topic, applying the
// mesh-failure penalty if the peer hadn't met its delivery threshold.
func (e *Engine) Prune(peer types.NodeID, topic string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	stats, ok := e.peerStats[peer]
	if !ok {
		return
	}
	tp, scored := e.params.Topics[topic]
	if !scored {
		return
	}

	ts := e.ensureTopicStats(stats, topic)
	e.updateMeshActivationLocked(ts, tp, e.clock.Now())
	if ts.MeshMessageDeliveriesActive && ts.MeshMessageDeliveries < tp.MeshMessageDeliveriesThreshold {
		deficit := tp.MeshMessageDeliveriesThreshold - ts.MeshMessageDeliveries
		ts.MeshFailurePenalty += deficit * deficit
	}
	ts.InMesh = false
}

// ValidateMessage is a pure notification: it ensures a DeliveryRecord
// exists for id so later Deliver/Reject/Duplicate calls have something to
// read and mutate. No scoring happens here.
func (e *Engine) ValidateMessage(id []byte) {
	e.records.EnsureRecord(id)
}

// DeliverMessage marks the first (valid) delivery for msg.ReceivedFrom
// and credits every peer that had already forwarded a duplicate of id
// before validation completed. A second terminal call for the same id is
// logged and ignored (spec §5 ordering guarantee).
func (e *Engine) DeliverMessage(id []byte, msg *types.InMessage) {
	rec := e.records.EnsureRecord(id)

	e.mu.Lock()
	defer e.mu.Unlock()

	if rec.Status != StatusUnknown {
		log.Debug("deliver: record already terminal", "status", rec.Status)
		return
	}

	e.markFirstDeliveryLocked(msg.ReceivedFrom, msg.TopicIDs)
	rec.Status = StatusValid
	rec.Validated = e.clock.Now()

	for p := range rec.Peers {
		if p == msg.ReceivedFrom {
			continue
		}
		// These peers forwarded id to us before validation finished; per
		// §9's resolved open question, validatedTime=0 is an explicit
		// "always within window" branch, not an implicit zero compare.
		e.markDuplicateDeliveryLocked(p, msg.TopicIDs, time.Time{})
	}
}

// RejectMessage handles a rejected message. MissingSignature and
// InvalidSignature are peer-attributable but never touch the delivery
// record — the claimed id was never trustworthy enough to track. Every
// other reason drives the record to Ignored or Invalid and, for Invalid,
// penalizes both the immediate sender and every earlier forwarder.
func (e *Engine) RejectMessage(id []byte, msg *types.InMessage, reason interfaces.RejectReason) {
	if reason == interfaces.ErrMissingSignature || reason == interfaces.ErrInvalidSignature {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.markInvalidDeliveryLocked(msg.ReceivedFrom, msg.TopicIDs)
		return
	}

	rec := e.records.EnsureRecord(id)

	e.mu.Lock()
	defer e.mu.Unlock()

	if rec.Status != StatusUnknown {
		log.Debug("reject: record already terminal", "status", rec.Status)
		return
	}

	if reason == interfaces.ErrTopicValidatorIgnore {
		rec.Status = StatusIgnored
		return
	}

	rec.Status = StatusInvalid
	e.markInvalidDeliveryLocked(msg.ReceivedFrom, msg.TopicIDs)
	for p := range rec.Peers {
		if p == msg.ReceivedFrom {
			continue
		}
		e.markInvalidDeliveryLocked(p, msg.TopicIDs)
	}
}

// DuplicateMessage handles a later arrival of an already-seen id from
// peer msg.ReceivedFrom. What happens depends on the record's current
// status: Unknown defers credit until validation resolves it; Valid
// credits immediately, subject to the delivery window; Invalid
// penalizes; Ignored does nothing.
func (e *Engine) DuplicateMessage(id []byte, msg *types.InMessage) {
	rec := e.records.EnsureRecord(id)
	peer := msg.ReceivedFrom

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, already := rec.Peers[peer]; already {
		return
	}

	switch rec.Status {
	case StatusUnknown:
		rec.Peers[peer] = struct{}{}
	case StatusValid:
		rec.Peers[peer] = struct{}{}
		e.markDuplicateDeliveryLocked(peer, msg.TopicIDs, rec.Validated)
	case StatusInvalid:
		e.markInvalidDeliveryLocked(peer, msg.TopicIDs)
	case StatusIgnored:
		// nothing to do
	}
}

// AddPenalty adds x to peer's behaviour penalty. No-op for unknown peers.
func (e *Engine) AddPenalty(peer types.NodeID, x float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	stats, ok := e.peerStats[peer]
	if !ok {
		return
	}
	stats.BehaviourPenalty += x
}

// Score returns peer's current total score, or 0 for an unknown peer.
func (e *Engine) Score(peer types.NodeID) float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()

	stats, ok := e.peerStats[peer]
	if !ok {
		return 0
	}
	return e.computeScoreLocked(peer, stats)
}

// ============================================================================
//                              counter-update rules
// ============================================================================

func (e *Engine) markFirstDeliveryLocked(peer types.NodeID, topicIDs []string) {
	stats, ok := e.peerStats[peer]
	if !ok {
		return
	}
	for _, topic := range topicIDs {
		tp, scored := e.params.Topics[topic]
		if !scored {
			continue
		}
		ts := e.ensureTopicStats(stats, topic)
		ts.FirstMessageDeliveries++
		if ts.FirstMessageDeliveries > tp.FirstMessageDeliveriesCap {
			ts.FirstMessageDeliveries = tp.FirstMessageDeliveriesCap
		}
		if ts.InMesh {
			ts.MeshMessageDeliveries++
			if ts.MeshMessageDeliveries > tp.MeshMessageDeliveriesCap {
				ts.MeshMessageDeliveries = tp.MeshMessageDeliveriesCap
			}
		}
	}
}

func (e *Engine) markDuplicateDeliveryLocked(peer types.NodeID, topicIDs []string, validatedTime time.Time) {
	stats, ok := e.peerStats[peer]
	if !ok {
		return
	}
	now := e.clock.Now()
	for _, topic := range topicIDs {
		tp, scored := e.params.Topics[topic]
		if !scored {
			continue
		}
		ts := e.ensureTopicStats(stats, topic)
		if !ts.InMesh {
			continue
		}
		if !validatedTime.IsZero() && now.After(validatedTime.Add(tp.MeshMessageDeliveriesWindow)) {
			continue // arrived after the delivery window closed
		}
		ts.MeshMessageDeliveries++
		if ts.MeshMessageDeliveries > tp.MeshMessageDeliveriesCap {
			ts.MeshMessageDeliveries = tp.MeshMessageDeliveriesCap
		}
	}
}

func (e *Engine) markInvalidDeliveryLocked(peer types.NodeID, topicIDs []string) {
	stats, ok := e.peerStats[peer]
	if !ok {
		return
	}
	for _, topic := range topicIDs {
		if _, scored := e.params.Topics[topic]; !scored {
			continue
		}
		ts := e.ensureTopicStats(stats, topic)
		ts.InvalidMessageDeliveries++
	}
}

// ============================================================================
//                              periodic background
// ============================================================================

// refreshScores decays every connected peer's counters by one factor per
// call and drops any disconnected peer whose retention has expired.
// Disconnected peers are never decayed — otherwise a misbehaving peer
// could bleed off penalties just by going offline (this is the one place
// scoring.go's Decay diverges from spec and was fixed here; see
// DESIGN.md).
func (e *Engine) refreshScores() {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	for peer, stats := range e.peerStats {
		if !stats.Connected {
			if now.After(stats.Expire) {
				e.unregisterIPsLocked(peer, stats)
				delete(e.peerStats, peer)
			}
			continue
		}

		for topic, ts := range stats.Topics {
			tp, scored := e.params.Topics[topic]
			if !scored {
				continue
			}
			e.updateMeshActivationLocked(ts, tp, now)
			ts.FirstMessageDeliveries = decay(ts.FirstMessageDeliveries, tp.FirstMessageDeliveriesDecay, e.params.DecayToZero)
			ts.MeshMessageDeliveries = decay(ts.MeshMessageDeliveries, tp.MeshMessageDeliveriesDecay, e.params.DecayToZero)
			ts.MeshFailurePenalty = decay(ts.MeshFailurePenalty, tp.MeshFailurePenaltyDecay, e.params.DecayToZero)
			ts.InvalidMessageDeliveries = decay(ts.InvalidMessageDeliveries, tp.InvalidMessageDeliveriesDecay, e.params.DecayToZero)
		}

		stats.BehaviourPenalty = decay(stats.BehaviourPenalty, e.params.BehaviourPenaltyDecay, e.params.DecayToZero)
	}
}

func decay(value, factor, toZero float64) float64 {
	v := value * factor
	if v < toZero {
		return 0
	}
	return v
}

// updateIPs reconciles each connected peer's IP set against the
// connection manager's current view, updating both PeerStats.IPs and the
// peerIPs secondary index so invariant 1 (§8) holds after every tick.
func (e *Engine) updateIPs() {
	e.mu.Lock()
	defer e.mu.Unlock()

	for peer, stats := range e.peerStats {
		if !stats.Connected {
			continue
		}
		newIPs := e.currentIPsLocked(peer)
		e.reconcileIPsLocked(peer, stats, newIPs)
	}
}

// ============================================================================
//                              helpers
// ============================================================================

// updateMeshActivationLocked brings ts.MeshTime and ts.MeshMessageDeliveriesActive
// up to date with the current clock whenever ts is in the mesh. Called from
// every path that branches on MeshMessageDeliveriesActive (Prune, RemovePeer,
// refreshScores) so that decision never reads a flag stale since the last
// periodic tick — a peer pruned between ticks still gets the threshold
// penalty it would have gotten had the tick landed first.
func (e *Engine) updateMeshActivationLocked(ts *TopicStats, tp *TopicParams, now time.Time) {
	if !ts.InMesh {
		return
	}
	ts.MeshTime = now.Sub(ts.GraftTime)
	if !ts.MeshMessageDeliveriesActive && ts.MeshTime >= tp.MeshMessageDeliveriesActivation {
		ts.MeshMessageDeliveriesActive = true
	}
}

func (e *Engine) ensureTopicStats(stats *PeerStats, topic string) *TopicStats {
	ts, ok := stats.Topics[topic]
	if !ok {
		ts = &TopicStats{}
		stats.Topics[topic] = ts
	}
	return ts
}

func (e *Engine) currentIPsLocked(peer types.NodeID) []string {
	if e.connMgr == nil {
		return nil
	}
	conns := e.connMgr.Connections(peer)
	if len(conns) == 0 {
		return nil
	}
	ips := make([]string, 0, len(conns))
	for _, c := range conns {
		ips = append(ips, c.RemoteHost())
	}
	return ips
}

func (e *Engine) registerIPsLocked(peer types.NodeID, ips []string) {
	for _, ip := range ips {
		if e.peerIPs[ip] == nil {
			e.peerIPs[ip] = make(map[types.NodeID]struct{})
		}
		e.peerIPs[ip][peer] = struct{}{}
	}
}

func (e *Engine) unregisterIPsLocked(peer types.NodeID, stats *PeerStats) {
	for _, ip := range stats.IPs {
		if peers, ok := e.peerIPs[ip]; ok {
			delete(peers, peer)
			if len(peers) == 0 {
				delete(e.peerIPs, ip)
			}
		}
	}
}

func (e *Engine) reconcileIPsLocked(peer types.NodeID, stats *PeerStats, newIPs []string) {
	oldSet := make(map[string]struct{}, len(stats.IPs))
	for _, ip := range stats.IPs {
		oldSet[ip] = struct{}{}
	}
	newSet := make(map[string]struct{}, len(newIPs))
	for _, ip := range newIPs {
		newSet[ip] = struct{}{}
	}

	for ip := range oldSet {
		if _, keep := newSet[ip]; keep {
			continue
		}
		if peers, ok := e.peerIPs[ip]; ok {
			delete(peers, peer)
			if len(peers) == 0 {
				delete(e.peerIPs, ip)
			}
		}
	}
	for ip := range newSet {
		if _, had := oldSet[ip]; had {
			continue
		}
		if e.peerIPs[ip] == nil {
			e.peerIPs[ip] = make(map[types.NodeID]struct{})
		}
		e.peerIPs[ip][peer] = struct{}{}
	}

	stats.IPs = newIPs
}

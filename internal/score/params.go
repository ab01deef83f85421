package score

import (
	"errors"
	"time"

	"github.com/dep2p/peerscore/pkg/types"
)

// TopicParams holds the per-topic weights and decay factors used to score
// message-delivery behavior on one scored topic. Grounded on
// messaging.TopicScoreConfig, renamed to spec vocabulary.
type TopicParams struct {
	TopicWeight float64

	TimeInMeshWeight  float64
	TimeInMeshQuantum time.Duration
	TimeInMeshCap     float64

	FirstMessageDeliveriesWeight float64
	FirstMessageDeliveriesDecay  float64
	FirstMessageDeliveriesCap    float64

	MeshMessageDeliveriesWeight     float64
	MeshMessageDeliveriesDecay      float64
	MeshMessageDeliveriesCap        float64
	MeshMessageDeliveriesThreshold  float64
	MeshMessageDeliveriesWindow     time.Duration
	MeshMessageDeliveriesActivation time.Duration

	MeshFailurePenaltyWeight float64
	MeshFailurePenaltyDecay  float64

	InvalidMessageDeliveriesWeight float64
	InvalidMessageDeliveriesDecay  float64
}

// meshDeliveryScoringEnabled reports whether this topic's params actually
// enable the mesh-message-deliveries penalty term. A zero weight is the
// documented way to disable it, matching messaging.DefaultTopicScoreConfig
// (which ships MeshMessageDeliveriesWeight: 0 and an unset threshold).
func (tp *TopicParams) meshDeliveryScoringEnabled() bool {
	return tp.MeshMessageDeliveriesWeight != 0
}

// validate checks tp's bounds per spec, returning every violation joined.
func (tp *TopicParams) validate() error {
	var errs []error
	if tp.TopicWeight < 0 {
		errs = append(errs, ErrTopicWeightNegative)
	}
	if tp.FirstMessageDeliveriesWeight < 0 {
		errs = append(errs, ErrFirstMessageDeliveriesWeight)
	}
	if tp.FirstMessageDeliveriesDecay <= 0 || tp.FirstMessageDeliveriesDecay >= 1 {
		errs = append(errs, ErrFirstMessageDeliveriesDecay)
	}
	if tp.MeshMessageDeliveriesWeight > 0 {
		errs = append(errs, ErrMeshMessageDeliveriesWeight)
	}
	if tp.MeshMessageDeliveriesDecay <= 0 || tp.MeshMessageDeliveriesDecay >= 1 {
		errs = append(errs, ErrMeshMessageDeliveriesDecay)
	}
	if tp.meshDeliveryScoringEnabled() {
		if tp.MeshMessageDeliveriesThreshold <= 0 {
			errs = append(errs, ErrMeshMessageDeliveriesThresh)
		}
		if tp.MeshMessageDeliveriesActivation < time.Second {
			errs = append(errs, ErrMeshMessageDeliveriesActivate)
		}
	}
	if tp.MeshFailurePenaltyWeight > 0 {
		errs = append(errs, ErrMeshFailurePenaltyWeight)
	}
	if tp.MeshFailurePenaltyDecay <= 0 || tp.MeshFailurePenaltyDecay >= 1 {
		errs = append(errs, ErrMeshFailurePenaltyDecay)
	}
	if tp.InvalidMessageDeliveriesWeight > 0 {
		errs = append(errs, ErrInvalidMessageDeliveriesW)
	}
	if tp.InvalidMessageDeliveriesDecay <= 0 || tp.InvalidMessageDeliveriesDecay >= 1 {
		errs = append(errs, ErrInvalidMessageDeliveriesDecay)
	}
	return errors.Join(errs...)
}

// Parameters is the validated configuration bundle for an Engine.
// Grounded on messaging.GossipScoreConfig, with validate() returning an
// error on bound violation instead of the teacher's silent clamping.
type Parameters struct {
	Topics        map[string]*TopicParams
	TopicScoreCap float64

	AppSpecificScore  func(peer types.NodeID) float64
	AppSpecificWeight float64

	IPColocationFactorWeight    float64
	IPColocationFactorThreshold int
	IPColocationFactorWhitelist map[string]struct{}

	BehaviourPenaltyWeight    float64
	BehaviourPenaltyThreshold float64
	BehaviourPenaltyDecay     float64

	DecayInterval time.Duration
	DecayToZero   float64
	RetainScore   time.Duration

	// DeliveryRecordTTL is how long a DeliveryRecord survives after
	// firstSeen (spec §4.2's "D"). Not named among the Global parameters
	// enumerated in spec §4.1, but required for EnsureRecord's expire
	// computation to mean anything — added here rather than hardcoded so
	// it validates alongside everything else. Grounded on cache.go's
	// SeenCache default ttl (120s).
	DeliveryRecordTTL time.Duration

	// IWantFollowupTime is the promise tracker's expiry window (spec
	// §4.3's "IWantFollowupTime"), same status as DeliveryRecordTTL
	// above. Grounded on messaging.DefaultGossipSubConfig's
	// IWantFollowupTime (3s).
	IWantFollowupTime time.Duration
}

// DefaultParameters returns the engine defaults, carried over from
// messaging.DefaultGossipScoreConfig with spec.md field names.
func DefaultParameters() *Parameters {
	return &Parameters{
		Topics:                      make(map[string]*TopicParams),
		TopicScoreCap:               0,
		AppSpecificWeight:           1.0,
		IPColocationFactorWeight:    -1.0,
		IPColocationFactorThreshold: 6,
		IPColocationFactorWhitelist: make(map[string]struct{}),
		BehaviourPenaltyWeight:      -1.0,
		BehaviourPenaltyThreshold:   0.0,
		BehaviourPenaltyDecay:       0.999,
		DecayInterval:               time.Second,
		DecayToZero:                 0.01,
		RetainScore:                 time.Hour,
		DeliveryRecordTTL:           2 * time.Minute,
		IWantFollowupTime:           3 * time.Second,
	}
}

// DefaultTopicParams returns per-topic defaults, carried over from
// messaging.DefaultTopicScoreConfig.
func DefaultTopicParams() *TopicParams {
	return &TopicParams{
		TopicWeight:                     1.0,
		TimeInMeshWeight:                0.0027,
		TimeInMeshQuantum:               time.Second,
		TimeInMeshCap:                   3600,
		FirstMessageDeliveriesWeight:    1.0,
		FirstMessageDeliveriesDecay:     0.9997,
		FirstMessageDeliveriesCap:       2000,
		MeshMessageDeliveriesWeight:     0,
		MeshMessageDeliveriesDecay:      0.999,
		MeshMessageDeliveriesThreshold:  0,
		MeshMessageDeliveriesCap:        0,
		MeshMessageDeliveriesActivation: 0,
		MeshMessageDeliveriesWindow:     0,
		MeshFailurePenaltyWeight:        0,
		MeshFailurePenaltyDecay:         0.999,
		InvalidMessageDeliveriesWeight:  -1000.0,
		InvalidMessageDeliveriesDecay:   0.9997,
	}
}

// Validate checks every bound named in spec §4.1, returning a joined error
// that names every violated field rather than silently correcting them —
// a misconfigured weight changes the security properties of the scorer,
// so it must fail loudly at construction time.
func (p *Parameters) Validate() error {
	var errs []error
	if p.IPColocationFactorWeight > 0 {
		errs = append(errs, ErrIPColocationWeight)
	}
	if p.IPColocationFactorThreshold < 1 {
		errs = append(errs, ErrIPColocationThreshold)
	}
	if p.BehaviourPenaltyWeight > 0 {
		errs = append(errs, ErrBehaviourPenaltyWeight)
	}
	if p.BehaviourPenaltyThreshold < 0 {
		errs = append(errs, ErrBehaviourPenaltyThresh)
	}
	if p.BehaviourPenaltyDecay <= 0 || p.BehaviourPenaltyDecay >= 1 {
		errs = append(errs, ErrBehaviourPenaltyDecay)
	}
	if p.DecayInterval <= 0 {
		errs = append(errs, ErrDecayInterval)
	}
	if p.DecayToZero <= 0 {
		errs = append(errs, ErrDecayToZero)
	}
	if p.RetainScore < 0 {
		errs = append(errs, ErrRetainScore)
	}
	if p.DeliveryRecordTTL <= 0 {
		errs = append(errs, ErrDeliveryRecordTTL)
	}
	if p.IWantFollowupTime <= 0 {
		errs = append(errs, ErrIWantFollowupTime)
	}
	if len(errs) > 0 {
		errs = []error{&ParamsError{Err: errors.Join(errs...)}}
	}
	for topic, tp := range p.Topics {
		if err := tp.validate(); err != nil {
			errs = append(errs, &ParamsError{Topic: topic, Err: err})
		}
	}
	return errors.Join(errs...)
}

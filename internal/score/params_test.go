package score

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultParametersValidate(t *testing.T) {
	p := DefaultParameters()
	p.Topics["t"] = DefaultTopicParams()
	require.NoError(t, p.Validate())
}

func TestParametersValidateRejectsBadGlobals(t *testing.T) {
	p := DefaultParameters()
	p.IPColocationFactorWeight = 1
	p.IPColocationFactorThreshold = 0
	p.BehaviourPenaltyWeight = 1
	p.BehaviourPenaltyThreshold = -1
	p.BehaviourPenaltyDecay = 1
	p.DecayInterval = 0
	p.DecayToZero = 0
	p.RetainScore = -1
	p.DeliveryRecordTTL = 0
	p.IWantFollowupTime = 0

	err := p.Validate()
	require.Error(t, err)
	for _, want := range []error{
		ErrIPColocationWeight,
		ErrIPColocationThreshold,
		ErrBehaviourPenaltyWeight,
		ErrBehaviourPenaltyThresh,
		ErrBehaviourPenaltyDecay,
		ErrDecayInterval,
		ErrDecayToZero,
		ErrRetainScore,
		ErrDeliveryRecordTTL,
		ErrIWantFollowupTime,
	} {
		assert.ErrorIs(t, err, want)
	}
}

func TestParametersValidateRejectsBadTopic(t *testing.T) {
	p := DefaultParameters()
	tp := DefaultTopicParams()
	tp.TopicWeight = -1
	tp.FirstMessageDeliveriesWeight = -1
	tp.FirstMessageDeliveriesDecay = 0
	tp.MeshMessageDeliveriesWeight = 1
	tp.MeshFailurePenaltyWeight = 1
	tp.InvalidMessageDeliveriesWeight = 1
	p.Topics["bad"] = tp

	err := p.Validate()
	require.Error(t, err)
	var pe *ParamsError
	assert.ErrorAs(t, err, &pe)
}

func TestTopicParamsMeshDeliveryScoringEnabledRequiresThresholdAndActivation(t *testing.T) {
	tp := DefaultTopicParams()
	tp.MeshMessageDeliveriesWeight = -1
	tp.MeshMessageDeliveriesThreshold = 0
	tp.MeshMessageDeliveriesActivation = 0

	err := tp.validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMeshMessageDeliveriesThresh)
	assert.ErrorIs(t, err, ErrMeshMessageDeliveriesActivate)
}

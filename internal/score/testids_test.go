package score

import "github.com/google/uuid"

// newTestMsgID generates a fresh, collision-free message id for scenario
// tests that need many distinct ids (S2's 100 distinct first deliveries,
// S3/S5's 100-message loops, the counter-bounds invariant). Grounded on
// messaging/service.go and liveness/message.go's uuid.New().String() id
// generation, the same uuid-for-identifier idiom used elsewhere in the
// pack, here repurposed to stand in for the overlay's MessageIdFunction
// output rather than a wire-level envelope id.
func newTestMsgID() []byte {
	return []byte(uuid.New().String())
}

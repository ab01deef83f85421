package types

// InMessage is the notification the overlay hands to the scoring core on
// receipt of a pubsub message. The core never inspects Data except through
// a MessageIDFunction supplied by the caller; ReceivedFrom and TopicIDs are
// the only fields the engine itself reads.
type InMessage struct {
	// ReceivedFrom is the peer that delivered this message to us directly,
	// regardless of who originally authored it.
	ReceivedFrom NodeID

	// TopicIDs lists every topic this message is addressed to. Only the
	// topics present in the engine's configured Parameters are scored;
	// others are silently ignored.
	TopicIDs []string

	// Data is the raw message payload, opaque to the core. It exists only
	// so a MessageIDFunction has something to hash.
	Data []byte

	// From is the originating peer, as claimed by the message envelope.
	// Not used by the scoring core; carried for convenience of callers
	// that want to log or validate signatures against it.
	From string
}

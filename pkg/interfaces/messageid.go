package interfaces

import "github.com/dep2p/peerscore/pkg/types"

// MessageIDFunction derives a stable identifier for a message. The core
// never inspects the returned bytes beyond equality, so any deterministic
// function of the message is valid — including one that hashes the whole
// payload, or one that trusts an envelope-supplied sequence number.
//
// Implementations may do real work here (hashing a large payload); callers
// must resolve the id before invoking any Engine hook, never while holding
// a lock shared with the engine; the Engine's id-bearing hooks take the
// already-resolved id as a []byte argument.
type MessageIDFunction func(msg *types.InMessage) ([]byte, error)

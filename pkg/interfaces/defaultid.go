package interfaces

import (
	"github.com/dep2p/peerscore/pkg/types"
	"github.com/minio/sha256-simd"
)

// DefaultMessageIDFunction hashes Data with SHA-256, so the same payload
// gets the same id whichever peer forwarded it. It exists as a convenience for callers that have no envelope
// field suitable for deduplication; production overlays with a sequence
// number or author signature usually supply their own, cheaper function
// instead.
func DefaultMessageIDFunction(msg *types.InMessage) ([]byte, error) {
	h := sha256.New()
	h.Write(msg.Data)
	return h.Sum(nil), nil
}

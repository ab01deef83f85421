package interfaces

import "github.com/dep2p/peerscore/pkg/types"

// Connection is a single live connection to a remote peer, exposing only
// what the scoring core needs: the remote host, for IP-colocation scoring.
type Connection interface {
	RemoteHost() string
}

// ConnectionManager enumerates the live connections for a peer id. The
// core calls this in AddPeer and in the periodic updateIPs pass; it never
// mutates connection state. A manager that cannot answer for a given peer
// should return an empty slice rather than an error — the core treats
// failures and "no current connections" identically.
type ConnectionManager interface {
	Connections(peer types.NodeID) []Connection
}

// Package interfaces defines the narrow external collaborators the
// peer-scoring core consults: a connection manager capable of listing a
// peer's current remote hosts, and a message-id function. Both are
// supplied by the host application; the core never constructs its own.
// DefaultMessageIDFunction is provided here as a ready-made message-id
// function a host may choose to pass along.
package interfaces

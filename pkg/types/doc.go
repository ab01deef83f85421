// Package types defines the value types shared across the peer-scoring
// core and its external collaborators.
//
// This is the lowest-level package in the module: it has no dependency on
// internal/score or pkg/interfaces. Everything here is a plain value type
// passed across package boundaries — there is no behavior to speak of.
package types

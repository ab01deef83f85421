package score

import "github.com/benbjohnson/clock"

// Clock is the single injectable time source every component in this
// package reads from, per spec §9 ("all timestamps must come from a
// single injectable clock"). Production code uses clock.New(); tests use
// clock.NewMock() to make decay/retention/window scenarios deterministic.
type Clock = clock.Clock

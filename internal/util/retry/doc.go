// Package retry provides the bounded loops used while a node comes up.
//
// [WithExponentialBackoff] retries an operation with a configurable number of
// attempts and a growing delay; a multiplier of 1 turns it into a fixed
// interval loop, which is what the SSH connector and the step batch runner
// use. [Poll] repeatedly evaluates a condition at a fixed interval until it
// holds or a deadline passes, which is how the node driver waits for an
// address to be assigned.
package retry

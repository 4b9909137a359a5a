// Package plan turns a list of bundle names into the ordered steps that
// install them on a node.
//
// A plan always starts with the authorized-keys step, then uploads every
// merged file, then runs every merged script. Scripts keep the order in which
// their target path was first introduced; a later bundle that reuses a target
// replaces the content but not the position.
package plan

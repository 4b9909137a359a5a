// Package node drives the lifecycle of a single provisioned machine.
//
// Deploy creates a server, waits for it to come up, opens an SSH session and
// runs a plan's steps on it. Destroy removes servers by name, but only when
// the name is known to be destroyable. List reports every server that is not
// being torn down.
package node

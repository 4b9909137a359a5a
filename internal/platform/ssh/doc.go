// Package ssh runs deployment steps on a freshly created node.
//
// Connect keeps dialing at a fixed interval until the node accepts a login
// or the connect window closes. A login that only prints a "Please login as
// the user" banner counts as not yet reachable, since cloud images print it
// while cloud-init is still setting up the root account.
//
// Host key verification is disabled by default. Nodes are created moments
// before the first connection and their host keys are not known in advance.
package ssh

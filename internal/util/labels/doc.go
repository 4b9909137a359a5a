// Package labels provides consistent labeling for provisioned servers.
//
// All labels use the provision.io domain prefix. Servers created by the tool
// carry the managed-by marker and their node name so they can be found again
// without relying on the display name alone.
package labels

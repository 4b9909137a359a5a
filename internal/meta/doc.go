// Package meta stores destroyability records for deployed nodes.
//
// A record is a zero-byte object named after the node whose user metadata
// says whether the node may be destroyed. Reading fails closed: a missing
// record, or any error while reading it, means the node is kept.
package meta

// Package bundle holds the named sets of scripts and files that can be
// installed on a node.
//
// Scripts are kept in declaration order because that is the order they run
// in. Files carry no order. A registry maps bundle names to bundles;
// registering a name twice replaces the earlier bundle and logs a warning.
package bundle

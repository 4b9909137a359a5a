// Package naming generates node names and decides which names may be destroyed.
//
// Generated names are a prefix followed by six distinct lowercase
// alphanumerics, e.g. deploy-test-k3x9qa. Only names that start with one of the
// destroyable prefixes and carry something after it are eligible for destroy.
package naming

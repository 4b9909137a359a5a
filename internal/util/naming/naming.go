package naming

import (
	"math/rand"
	"strings"
)

// DefaultPrefix is prepended to generated node names.
const DefaultPrefix = "deploy-test-"

// SuffixLength is the number of random characters in a generated name.
const SuffixLength = 6

const alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// Node returns prefix followed by SuffixLength distinct random characters.
func Node(prefix string) string {
	return prefix + suffix(rand.Perm(len(alphabet)))
}

func suffix(perm []int) string {
	var b strings.Builder
	for _, i := range perm[:SuffixLength] {
		b.WriteByte(alphabet[i])
	}
	return b.String()
}

// IsDestroyable reports whether name starts with one of prefixes and is
// longer than it.
func IsDestroyable(name string, prefixes []string) bool {
	for _, p := range prefixes {
		if p != "" && len(name) > len(p) && strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// MetadataKey is the object key of a node's destroyability record.
func MetadataKey(node string) string {
	return "nodes/" + node
}

// Package image picks the provider image that best matches a requested name.
//
// An image whose name equals the request wins outright; with several exact
// matches the last one listed is used. Otherwise every image whose name
// starts with the request is ranked by the first number embedded in its name
// and the highest number wins, so "ubuntu" selects "ubuntu-24.04" over
// "ubuntu-22.04". Candidates without any digits cannot be ranked and are
// ignored.
package image

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var digitsRE = regexp.MustCompile(`\d+`)

// NoMatchingImageError is returned when no image matches the requested name.
type NoMatchingImageError struct {
	Desired string
}

func (e *NoMatchingImageError) Error() string {
	return fmt.Sprintf("no image matching %q", e.Desired)
}

type ranked[T any] struct {
	number string
	image  T
}

// Resolve returns the best match for desired among images, using nameOf to
// read each image's display name.
func Resolve[T any](desired string, images []T, nameOf func(T) string) (T, error) {
	var zero T

	var exact []T
	var candidates []ranked[T]
	for _, img := range images {
		name := nameOf(img)
		if !strings.HasPrefix(name, desired) {
			continue
		}
		if name == desired {
			exact = append(exact, img)
			continue
		}
		digits := digitsRE.FindString(name)
		if digits == "" {
			continue
		}
		candidates = append(candidates, ranked[T]{number: digits, image: img})
	}

	if len(exact) > 0 {
		return exact[len(exact)-1], nil
	}
	if len(candidates) == 0 {
		return zero, &NoMatchingImageError{Desired: desired}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return compareNumbers(candidates[i].number, candidates[j].number) < 0
	})
	return candidates[len(candidates)-1].image, nil
}

// compareNumbers compares two decimal digit strings of any length by value.
func compareNumbers(a, b string) int {
	a = strings.TrimLeft(a, "0")
	b = strings.TrimLeft(b, "0")
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}

// Package junit reads the summary of a JUnit XML report.
package junit

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
)

// ErrNoSuite is returned when a report has no testsuite element.
var ErrNoSuite = errors.New("no testsuite element found")

// ErrMissingCounter is returned when a suite does not declare a counter
// needed to decide whether it passed.
var ErrMissingCounter = errors.New("testsuite counter missing")

// Summary holds the counters of the first testsuite in a report.
type Summary struct {
	Name     string
	Tests    int
	Failures int
	Errors   int
	Skipped  int
}

// Passed reports whether the suite had neither failures nor errors.
func (s Summary) Passed() bool {
	return s.Failures == 0 && s.Errors == 0
}

// ParseFile reads the report at path.
func ParseFile(path string) (*Summary, error) {
	// #nosec G304
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open test results: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse returns the summary of the first testsuite element, at any depth.
// The suite must declare its failures and errors counters. A counter lower
// than the number of failure or error elements in the suite is raised to
// that number.
func Parse(r io.Reader) (*Summary, error) {
	dec := xml.NewDecoder(r)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil, ErrNoSuite
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse test results: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "testsuite" {
			continue
		}
		s, err := summarize(start)
		if err != nil {
			return nil, err
		}
		failures, errs, err := countResults(dec)
		if err != nil {
			return nil, err
		}
		s.Failures = max(s.Failures, failures)
		s.Errors = max(s.Errors, errs)
		return s, nil
	}
}

func summarize(el xml.StartElement) (*Summary, error) {
	s := &Summary{}
	counters := map[string]*int{
		"tests":    &s.Tests,
		"failures": &s.Failures,
		"errors":   &s.Errors,
		"skipped":  &s.Skipped,
	}
	seen := map[string]bool{}
	for _, attr := range el.Attr {
		if attr.Name.Local == "name" {
			s.Name = attr.Value
			continue
		}
		dst, ok := counters[attr.Name.Local]
		if !ok {
			continue
		}
		n, err := strconv.Atoi(attr.Value)
		if err != nil {
			return nil, fmt.Errorf("invalid %s count %q: %w", attr.Name.Local, attr.Value, err)
		}
		*dst = n
		seen[attr.Name.Local] = true
	}
	for _, required := range []string{"failures", "errors"} {
		if !seen[required] {
			return nil, fmt.Errorf("%w: %s", ErrMissingCounter, required)
		}
	}
	return s, nil
}

// countResults reads up to the end of the current suite and counts its
// failure and error elements.
func countResults(dec *xml.Decoder) (failures, errs int, err error) {
	for depth := 1; depth > 0; {
		tok, err := dec.Token()
		if err != nil {
			return 0, 0, fmt.Errorf("failed to parse test results: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			switch t.Name.Local {
			case "failure":
				failures++
			case "error":
				errs++
			}
		case xml.EndElement:
			depth--
		}
	}
	return failures, errs, nil
}

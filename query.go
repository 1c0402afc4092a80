package wacz

import (
	"regexp"
	"strings"
	"time"
)

// Matcher selects file paths or capture URLs. Build one with MatchString,
// MatchRegexp or MatchFunc; a nil Matcher matches everything.
//
// String matchers behave differently by target: against file paths they
// match by substring (paths are browsed), against capture URLs they match
// by exact equality (captures are keyed). The asymmetry is load-bearing:
// do not unify the two.
type Matcher struct {
	str string
	re  *regexp.Regexp
	fn  func(string) bool
}

// MatchString matches file paths containing s, and capture URLs equal to s.
func MatchString(s string) *Matcher {
	return &Matcher{str: s}
}

// MatchRegexp matches paths or URLs against re.
func MatchRegexp(re *regexp.Regexp) *Matcher {
	return &Matcher{re: re}
}

// MatchFunc matches paths or URLs with an arbitrary predicate.
func MatchFunc(fn func(string) bool) *Matcher {
	return &Matcher{fn: fn}
}

// matchPath reports whether a file path matches. Plain strings match by
// substring containment.
func (m *Matcher) matchPath(path string) bool {
	if m == nil {
		return true
	}
	switch {
	case m.re != nil:
		return m.re.MatchString(path)
	case m.fn != nil:
		return m.fn(path)
	default:
		return strings.Contains(path, m.str)
	}
}

// matchURL reports whether a capture URL matches. Plain strings match by
// exact equality.
func (m *Matcher) matchURL(url string) bool {
	if m == nil {
		return true
	}
	switch {
	case m.re != nil:
		return m.re.MatchString(url)
	case m.fn != nil:
		return m.fn(url)
	default:
		return url == m.str
	}
}

// FindOptions narrows a capture query. The zero value applies no filters.
type FindOptions struct {
	// From and To bound the capture timestamp inclusively. Zero values
	// leave the corresponding bound open. A capture whose timestamp cannot
	// be parsed is excluded while a bound is active.
	From time.Time
	To   time.Time

	// Status keeps captures whose status is a member of the set. A single
	// element is exact-match. Empty applies no status filter.
	Status []int

	// MIME keeps captures whose mime equals the string exactly. MIMERegexp
	// keeps captures whose mime (or "" when absent) matches. Set at most
	// one of the two.
	MIME       string
	MIMERegexp *regexp.Regexp

	// Limit stops iteration after this many matches. Because captures are
	// visited in index order this is a deterministic prefix, not a sample.
	// Zero means unlimited.
	Limit int
}

// matches reports whether one capture passes every active filter.
func (o FindOptions) matches(c CaptureDescriptor) bool {
	if !o.From.IsZero() || !o.To.IsZero() {
		t, ok := captureTime(c.Timestamp)
		if !ok {
			return false
		}
		if !o.From.IsZero() && t.Before(o.From) {
			return false
		}
		if !o.To.IsZero() && t.After(o.To) {
			return false
		}
	}

	if len(o.Status) > 0 {
		found := false
		for _, s := range o.Status {
			if c.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if o.MIMERegexp != nil {
		if !o.MIMERegexp.MatchString(c.MIME) {
			return false
		}
	} else if o.MIME != "" && c.MIME != o.MIME {
		return false
	}

	return true
}

// Strategy selects which side of the requested instant a capture may fall on.
type Strategy string

const (
	// StrategyClosest keeps captures on both sides of the instant.
	StrategyClosest Strategy = "closest"
	// StrategyBefore keeps only captures at or before the instant.
	StrategyBefore Strategy = "before"
	// StrategyAfter keeps only captures at or after the instant.
	StrategyAfter Strategy = "after"
)

// CaptureOptions parameterizes a nearest-time lookup.
type CaptureOptions struct {
	// At is the target instant. Required.
	At time.Time
	// Strategy defaults to StrategyClosest.
	Strategy Strategy
}

// nearestCapture picks, from candidates in index order, the capture whose
// timestamp minimizes |ts - at| after the strategy filter. Ties keep the
// first candidate encountered. Returns nil when nothing survives.
func nearestCapture(candidates []CaptureDescriptor, at time.Time, strategy Strategy) *CaptureDescriptor {
	var best *CaptureDescriptor
	var bestDelta time.Duration

	for i := range candidates {
		t, ok := captureTime(candidates[i].Timestamp)
		if !ok {
			continue
		}
		delta := t.Sub(at)

		switch strategy {
		case StrategyBefore:
			if delta > 0 {
				continue
			}
		case StrategyAfter:
			if delta < 0 {
				continue
			}
		}

		abs := delta
		if abs < 0 {
			abs = -abs
		}
		if best == nil || abs < bestDelta {
			best = &candidates[i]
			bestDelta = abs
		}
	}

	return best
}

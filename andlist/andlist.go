// Package andlist assigns patterns to distinct values they match. It is used
// both for event ignition and for execution unit allocation.
//
// The assignment is a greedy minimum-degree heuristic. It repeatedly takes
// the unassigned pattern with the fewest remaining candidates and gives it
// the candidate wanted by the fewest remaining patterns, lowest index first
// on ties. It may miss an assignment that exists. The admission outcomes of
// the planner depend on this exact order, so it must not be replaced by a
// maximum matching.
package andlist

import (
	"math"
	"regexp"
)

const unavailable = math.MaxInt

// Result is the outcome of a match.
type Result struct {
	// OK is true when every pattern got a value.
	OK bool

	// MaskToValue maps each pattern index to a value index, or -1.
	MaskToValue []int

	// ValueMaskCount tells, for each value, how many patterns match it in
	// the full match matrix.
	ValueMaskCount []int
}

// Compile compiles a pattern that must match the whole value.
func Compile(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile("^(?:" + pattern + ")$")
}

// MustCompile is Compile that panics on error.
func MustCompile(pattern string) *regexp.Regexp {
	re, err := Compile(pattern)
	if err != nil {
		panic(err)
	}

	return re
}

// MatchStrings compiles the patterns and calls Match.
func MatchStrings(patterns, values []string) (Result, error) {
	masks := make([]*regexp.Regexp, len(patterns))

	for i, p := range patterns {
		re, err := Compile(p)
		if err != nil {
			return Result{}, err
		}

		masks[i] = re
	}

	return Match(masks, values), nil
}

// Match assigns every mask to a distinct value it matches.
func Match(masks []*regexp.Regexp, values []string) Result {
	m := newMatcher(masks, values)

	res := Result{
		MaskToValue:    m.assignment,
		ValueMaskCount: m.valueMaskCount,
	}

	if !m.everyMaskMatches() {
		return res
	}

	m.assign()

	res.OK = m.complete()

	return res
}

type matcher struct {
	matrix         [][]bool
	numValues      int
	maskCount      []int // remaining candidate values per mask
	valueCount     []int // remaining candidate masks per value
	valueMaskCount []int
	assignment     []int
}

func newMatcher(masks []*regexp.Regexp, values []string) *matcher {
	m := &matcher{
		matrix:         make([][]bool, len(masks)),
		numValues:      len(values),
		maskCount:      make([]int, len(masks)),
		valueCount:     make([]int, len(values)),
		valueMaskCount: make([]int, len(values)),
		assignment:     make([]int, len(masks)),
	}

	for i, re := range masks {
		m.matrix[i] = make([]bool, len(values))
		m.assignment[i] = -1

		for j, v := range values {
			if re.MatchString(v) {
				m.matrix[i][j] = true
				m.maskCount[i]++
				m.valueMaskCount[j]++
			}
		}
	}

	for j, c := range m.valueMaskCount {
		m.valueCount[j] = c
		if c == 0 {
			m.valueCount[j] = unavailable
		}
	}

	return m
}

func (m *matcher) everyMaskMatches() bool {
	for _, c := range m.maskCount {
		if c == 0 {
			return false
		}
	}

	return true
}

func (m *matcher) assign() {
	for {
		mask := m.pickMask()
		if mask < 0 {
			return
		}

		value := m.pickValue(mask)
		m.assignment[mask] = value
		m.maskCount[mask] = unavailable
		m.valueCount[value] = unavailable

		for k := range m.matrix {
			if m.matrix[k][value] {
				m.maskCount[k] = decrement(m.maskCount[k])
			}
		}

		for l, hit := range m.matrix[mask] {
			if hit {
				m.valueCount[l] = decrement(m.valueCount[l])
			}
		}
	}
}

// pickMask returns the mask with the fewest remaining candidates, or -1 when
// no mask can be assigned anymore.
func (m *matcher) pickMask() int {
	best := -1
	bestCount := unavailable

	for i, c := range m.maskCount {
		if c < bestCount {
			best = i
			bestCount = c
		}
	}

	if bestCount > m.numValues {
		return -1
	}

	return best
}

func (m *matcher) pickValue(mask int) int {
	best := -1
	bestCount := unavailable

	for j, hit := range m.matrix[mask] {
		if hit && m.valueCount[j] < bestCount {
			best = j
			bestCount = m.valueCount[j]
		}
	}

	return best
}

func decrement(c int) int {
	if c == unavailable {
		return c
	}

	c--
	if c == 0 {
		return unavailable
	}

	return c
}

func (m *matcher) complete() bool {
	for _, v := range m.assignment {
		if v < 0 {
			return false
		}
	}

	return true
}

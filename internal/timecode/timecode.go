// Package timecode parses the free form duration strings found in PSF tags.
package timecode

import (
	"math"
	"strconv"
	"strings"
)

// Invalid is the value stored by callers that keep raw tag durations when a
// string could not be parsed. It is never a valid parse result.
const Invalid = 0xC0CAC01A

// Parse converts a duration in the form [[hh:]mm:]ss[.fff] to milliseconds.
// A comma can be used instead of the dot as fraction separator. The second
// return value is false if the input is empty, contains any character
// other than digits, ':', ',' or '.', or exceeds 32 bits of milliseconds.
func Parse(text string) (uint32, bool) {
	if text == "" {
		return 0, false
	}
	for i := range len(text) {
		c := text[i]
		if !isDigit(c) && c != ':' && c != ',' && c != '.' {
			return 0, false
		}
	}

	var value uint64
	rest := text

	// fraction of a second, only if the right most separator is a dot or comma
	if i := strings.LastIndexFunc(rest, func(r rune) bool { return r < '0' || r > '9' }); i >= 0 {
		if rest[i] == '.' || rest[i] == ',' {
			var ok bool
			if value, ok = parseFraction(rest[i+1:]); !ok {
				return 0, false
			}
			rest = rest[:i]
		}
	}

	// seconds, minutes and hours from the right, further groups are ignored
	groups := splitGroups(rest)
	multipliers := [...]uint64{1000, 60000, 3600000}
	for i := range multipliers {
		idx := len(groups) - 1 - i
		if idx < 0 {
			break
		}
		group, ok := parseGroup(groups[idx])
		if !ok || group > math.MaxUint32 {
			return 0, false
		}
		value += group * multipliers[i]
		if value > math.MaxUint32 {
			return 0, false
		}
	}

	return uint32(value), true
}

// parseFraction scales up to 3 fraction digits to milliseconds.
func parseFraction(digits string) (uint64, bool) {
	if len(digits) > 3 {
		digits = digits[:3]
	}
	v, ok := parseGroup(digits)
	switch len(digits) {
	case 1:
		v *= 100
	case 2:
		v *= 10
	}
	return v, ok
}

func parseGroup(digits string) (uint64, bool) {
	if digits == "" {
		return 0, true
	}
	v, err := strconv.ParseUint(digits, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func splitGroups(s string) []string {
	var groups []string
	start := 0
	for i := range len(s) {
		if isSeparator(rune(s[i])) {
			groups = append(groups, s[start:i])
			start = i + 1
		}
	}
	return append(groups, s[start:])
}

func isSeparator(r rune) bool {
	return r == ':' || r == ',' || r == '.'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

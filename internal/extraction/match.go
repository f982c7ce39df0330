package extraction

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Match is the outcome of a field lookup: either a found value or nothing.
type Match[T any] struct {
	Value T
	Found bool
}

func found[T any](v T) Match[T] { return Match[T]{Value: v, Found: true} }

// OrElse returns the value when found, or def otherwise.
func (m Match[T]) OrElse(def T) T {
	if m.Found {
		return m.Value
	}
	return def
}

// rule is one entry of an ordered fallback cascade.
type rule[T any] struct {
	re     *regexp.Regexp
	handle func(groups []string) Match[T]
}

// firstMatch evaluates rules in order and stops at the first handler that
// reports a value.
func firstMatch[T any](text string, rules []rule[T]) Match[T] {
	for _, r := range rules {
		g := r.re.FindStringSubmatch(text)
		if g == nil {
			continue
		}
		if m := r.handle(g); m.Found {
			return m
		}
	}
	return Match[T]{}
}

// group returns capture n trimmed, accepting it when longer than minLen.
func group(n, minLen int) func([]string) Match[string] {
	return func(g []string) Match[string] {
		if n >= len(g) {
			return Match[string]{}
		}
		v := strings.TrimSpace(g[n])
		if utf8.RuneCountInString(v) <= minLen {
			return Match[string]{}
		}
		return found(v)
	}
}

// anyOf reports whether any pattern matches text.
func anyOf(text string, patterns []*regexp.Regexp) bool {
	for _, p := range patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

// window slices text around [start,end) widened by before/after bytes,
// snapped to rune boundaries.
func window(text string, start, end, before, after int) string {
	lo := start - before
	if lo < 0 {
		lo = 0
	}
	hi := end + after
	if hi > len(text) {
		hi = len(text)
	}
	for lo > 0 && !utf8.RuneStart(text[lo]) {
		lo--
	}
	for hi < len(text) && !utf8.RuneStart(text[hi]) {
		hi++
	}
	return text[lo:hi]
}

// lastLines returns at most n trailing lines.
func lastLines(lines []string, n int) []string {
	if len(lines) <= n {
		return lines
	}
	return lines[len(lines)-n:]
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

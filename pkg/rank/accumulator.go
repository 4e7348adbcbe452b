package rank

import "strings"

// candidate accumulates one login's signal. Reasons keep credit order and
// are deduplicated; score only ever grows until the multiplicative penalties
// at the end of the run.
type candidate struct {
	openReviews *int   // populated by the load penalty pass
	login       string // display casing, first seen
	reasons     []string
	reasonSet   map[string]bool
	score       int
}

// accumulator is an insertion-ordered map of candidates keyed by lowercased
// login. Iteration order is insertion order, which the final tie-break
// depends on, so candidates are never reordered here. The PR author and
// bot-like logins are rejected at credit time and never enter the map.
type accumulator struct {
	entries map[string]*candidate
	isBot   func(login string) bool
	author  string // lowercased
	order   []string
}

func newAccumulator(author string, isBot func(string) bool) *accumulator {
	return &accumulator{
		entries: make(map[string]*candidate),
		author:  strings.ToLower(author),
		isBot:   isBot,
	}
}

// add credits points to a login under the given reason. Empty logins, the
// PR author and bots are ignored.
func (a *accumulator) add(login string, points int, reason string) {
	if login == "" || points <= 0 {
		return
	}
	key := strings.ToLower(login)
	if key == a.author || a.isBot(login) {
		return
	}

	c, ok := a.entries[key]
	if !ok {
		c = &candidate{login: login, reasonSet: make(map[string]bool)}
		a.entries[key] = c
		a.order = append(a.order, key)
	}
	c.score += points
	if !c.reasonSet[reason] {
		c.reasonSet[reason] = true
		c.reasons = append(c.reasons, reason)
	}
}

// score returns the accumulated score for a login, 0 when absent.
func (a *accumulator) score(login string) int {
	if c, ok := a.entries[strings.ToLower(login)]; ok {
		return c.score
	}
	return 0
}

// remove deletes a login from the accumulator, preserving the relative
// order of the remaining entries.
func (a *accumulator) remove(login string) {
	key := strings.ToLower(login)
	if _, ok := a.entries[key]; !ok {
		return
	}
	delete(a.entries, key)
	for i, k := range a.order {
		if k == key {
			a.order = append(a.order[:i], a.order[i+1:]...)
			break
		}
	}
}

// snapshot returns the candidates in insertion order.
func (a *accumulator) snapshot() []*candidate {
	out := make([]*candidate, 0, len(a.order))
	for _, key := range a.order {
		out = append(out, a.entries[key])
	}
	return out
}

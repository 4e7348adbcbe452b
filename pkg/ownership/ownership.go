// Package ownership parses CODEOWNERS-style rule files and resolves file
// paths to owner sets. Resolution is last-match-wins: later rules in the
// file override earlier ones for the paths they both match.
package ownership

import (
	"path"
	"strings"
	"unicode"

	"github.com/bmatcuk/doublestar/v4"
)

// Rule maps a path pattern to the logins and teams that own matching files.
type Rule struct {
	Owners  []string // logins and team identifiers, @ stripped
	Teams   []string // subset of Owners containing a "/"
	pattern string   // normalized glob used for matching
	raw     string   // pattern as written, used for base-name fallback
}

// Pattern returns the rule's pattern as written in the source file.
func (r Rule) Pattern() string { return r.raw }

// Matches reports whether the rule's pattern matches the given file path.
// Patterns anchored with a leading "/" match from the repository root; all
// others match at any depth. A slash-free pattern additionally matches
// against the file's base name.
func (r Rule) Matches(filePath string) bool {
	if ok, err := doublestar.Match(r.pattern, filePath); err == nil && ok {
		return true
	}
	if !strings.Contains(r.raw, "/") {
		if ok, err := doublestar.Match(r.raw, path.Base(filePath)); err == nil && ok {
			return true
		}
	}
	return false
}

// Ruleset is an ordered list of ownership rules in source-file order.
type Ruleset []Rule

// Parse parses CODEOWNERS-style text into an ordered rule set. Blank lines
// and comment lines are skipped, inline comments are truncated, owner tokens
// matching isBot are dropped, and rules left with zero owners are discarded.
// isBot may be nil.
func Parse(text string, isBot func(login string) bool) Ruleset {
	var rules Ruleset
	for line := range strings.Lines(text) {
		line = stripInlineComment(strings.TrimSpace(line))
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}

		var owners, teams []string
		for _, token := range fields[1:] {
			owner := strings.TrimPrefix(token, "@")
			if owner == "" {
				continue
			}
			if isBot != nil && isBot(owner) {
				continue
			}
			owners = append(owners, owner)
			if strings.Contains(owner, "/") {
				teams = append(teams, owner)
			}
		}
		if len(owners) == 0 {
			continue
		}

		raw := fields[0]
		rules = append(rules, Rule{
			Owners:  owners,
			Teams:   teams,
			pattern: normalizePattern(raw),
			raw:     raw,
		})
	}
	return rules
}

// OwnersFor resolves a file path to its owner set: the owners of the last
// rule in file order whose pattern matches. Nil when no rule matches.
func (rs Ruleset) OwnersFor(filePath string) []string {
	for i := len(rs) - 1; i >= 0; i-- {
		if rs[i].Matches(filePath) {
			return rs[i].Owners
		}
	}
	return nil
}

// MatchedCount returns how many of the given paths have at least one
// matching rule.
func (rs Ruleset) MatchedCount(paths []string) int {
	count := 0
	for _, p := range paths {
		if rs.OwnersFor(p) != nil {
			count++
		}
	}
	return count
}

// TeamRosters approximates team membership from the rule file itself: a
// login belongs to a team's roster when it co-appears as an owner on a rule
// that also lists that team.
func (rs Ruleset) TeamRosters() map[string][]string {
	rosters := make(map[string][]string)
	for _, rule := range rs {
		for _, team := range rule.Teams {
			for _, owner := range rule.Owners {
				if owner == team || strings.Contains(owner, "/") {
					continue
				}
				if !containsFold(rosters[team], owner) {
					rosters[team] = append(rosters[team], owner)
				}
			}
		}
	}
	return rosters
}

// normalizePattern converts a CODEOWNERS pattern into a doublestar glob.
// A leading "/" anchors the pattern to the repository root; anything else
// matches at any depth. A trailing "/" means "everything under".
func normalizePattern(raw string) string {
	pattern := raw
	switch {
	case strings.HasPrefix(pattern, "/"):
		pattern = strings.TrimPrefix(pattern, "/")
	case !strings.HasPrefix(pattern, "**/"):
		pattern = "**/" + pattern
	}
	if strings.HasSuffix(pattern, "/") {
		pattern += "**"
	}
	return pattern
}

// stripInlineComment truncates a line at an unescaped "#" preceded by
// whitespace. A leading "#" is left for the caller to treat as a full
// comment line.
func stripInlineComment(line string) string {
	for i, r := range line {
		if r != '#' || i == 0 {
			continue
		}
		if unicode.IsSpace(rune(line[i-1])) {
			return strings.TrimSpace(line[:i])
		}
	}
	return line
}

func containsFold(list []string, s string) bool {
	for _, item := range list {
		if strings.EqualFold(item, s) {
			return true
		}
	}
	return false
}

package rank

import (
	"strings"

	"github.com/prsignal-dev/prsignal/pkg/ownership"
	"github.com/prsignal-dev/prsignal/pkg/types"
)

// Confidence thresholds.
const (
	highMinScore      = 12
	highMinCoverage   = 0.5
	highMinSeparation = 0.25
	mediumMinScore    = 6
	mediumMinCoverage = 0.25
)

// estimateConfidence derives the High/Medium/Low label from the top two
// scores and signal coverage. covered is the larger of the commit-attributed
// and ownership-matched file counts; total is the number of files
// considered.
func estimateConfidence(top, second, covered, total int) types.Confidence {
	coverage := 0.0
	if total > 0 {
		coverage = float64(covered) / float64(total)
	}
	separation := 0.0
	if top > 0 {
		separation = float64(top-second) / float64(top)
	}

	switch {
	case top >= highMinScore && coverage >= highMinCoverage && separation >= highMinSeparation:
		return types.ConfidenceHigh
	case top >= mediumMinScore && coverage >= mediumMinCoverage:
		return types.ConfidenceMedium
	default:
		return types.ConfidenceLow
	}
}

// teamCoverage counts, per team identifier in the rule set, how many of the
// final suggestions belong to that team's ownership roster. Membership is
// approximated from the rule file: co-ownership on a rule listing the team.
func teamCoverage(rules ownership.Ruleset, suggestions []types.RankedCandidate) map[string]int {
	coverage := make(map[string]int)
	for team, roster := range rules.TeamRosters() {
		for _, s := range suggestions {
			if strings.EqualFold(team, s.Login) || containsFold(roster, s.Login) {
				coverage[team]++
			}
		}
	}
	return coverage
}

func containsFold(list []string, s string) bool {
	for _, item := range list {
		if strings.EqualFold(item, s) {
			return true
		}
	}
	return false
}

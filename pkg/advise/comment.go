package advise

import (
	"fmt"
	"sort"
	"strings"

	"github.com/prsignal-dev/prsignal/pkg/i18n"
	"github.com/prsignal-dev/prsignal/pkg/rank"
	"github.com/prsignal-dev/prsignal/pkg/types"
)

// Marker is the hidden HTML comment identifying the advisory comment, so
// repeated runs update one comment instead of stacking new ones.
const Marker = "<!-- prsignal:advisory -->"

// CommentInput is everything the renderer needs for one advisory comment.
type CommentInput struct {
	Ranking       *rank.Result
	Lang          i18n.Lang
	Size          SizeResult
	Stall         types.StallCause
	ShowBreakdown bool
}

// RenderComment produces the full markdown body for the advisory comment.
// The output is deterministic for identical input.
func RenderComment(in CommentInput) string {
	var b strings.Builder
	b.WriteString(Marker)
	b.WriteString("\n### ")
	b.WriteString(i18n.T(in.Lang, i18n.KeyTitle))
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "**%s:** `%s`\n", i18n.T(in.Lang, i18n.KeySize), in.Size.Format())
	fmt.Fprintf(&b, "**%s:** %s\n\n", i18n.T(in.Lang, i18n.KeyStall), stallText(in.Lang, in.Stall))

	if in.Ranking == nil || in.Ranking.NoStrongCandidates {
		b.WriteString(i18n.T(in.Lang, i18n.KeyNoStrongCandidates))
		b.WriteString("\n")
		return b.String()
	}

	fmt.Fprintf(&b, "**%s** (%s: %s):\n", i18n.T(in.Lang, i18n.KeySuggestions),
		i18n.T(in.Lang, i18n.KeyConfidence), in.Ranking.Confidence)
	for i, c := range in.Ranking.Candidates {
		fmt.Fprintf(&b, "%d. **@%s**", i+1, c.Login)
		if in.ShowBreakdown {
			fmt.Fprintf(&b, " — %d (%s)", c.Score, strings.Join(c.Reasons, ", "))
		}
		if c.OpenReviews != nil && *c.OpenReviews > 0 {
			fmt.Fprintf(&b, " · %d %s", *c.OpenReviews, i18n.T(in.Lang, i18n.KeyOpenReviews))
		}
		b.WriteString("\n")
	}

	if len(in.Ranking.TeamCoverage) > 0 {
		teams := make([]string, 0, len(in.Ranking.TeamCoverage))
		for team := range in.Ranking.TeamCoverage {
			teams = append(teams, team)
		}
		sort.Strings(teams)

		parts := make([]string, 0, len(teams))
		for _, team := range teams {
			parts = append(parts, fmt.Sprintf("%s: %d", team, in.Ranking.TeamCoverage[team]))
		}
		fmt.Fprintf(&b, "\n_%s — %s_\n", i18n.T(in.Lang, i18n.KeyTeamCoverage), strings.Join(parts, ", "))
	}

	return b.String()
}

// FindMarked returns the index of the first comment body carrying the
// advisory marker, or -1 when none does.
func FindMarked(bodies []string) int {
	for i, body := range bodies {
		if strings.Contains(body, Marker) {
			return i
		}
	}
	return -1
}

func stallText(lang i18n.Lang, cause types.StallCause) string {
	switch cause {
	case types.StallChangesRequested:
		return i18n.T(lang, i18n.KeyStallChanges)
	case types.StallApprovedUnmerged:
		return i18n.T(lang, i18n.KeyStallApproved)
	case types.StallAwaitingReview:
		return i18n.T(lang, i18n.KeyStallAwaiting)
	default:
		return i18n.T(lang, i18n.KeyStallNone)
	}
}

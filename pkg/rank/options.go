package rank

// Options holds the recognized engine configuration. Zero values mean "use
// the default"; construct with DefaultOptions and override fields.
type Options struct {
	PreferTimezone    *int     // signed UTC-offset hours; nil disables the timezone signal
	ExcludeReviewers  []string // logins never suggested, merged with repo-level config
	RequiredReviewers []string // logins guaranteed a ranking slot with a score floor
	CrossRepos        []string // "owner/repo" identifiers for cross-repo expertise
	MaxReviewers      int
	LookbackDays      int
	MaxFilesConsidered int
	LatencyPRs        int
	UseCodeowners     bool
	UseLatency        bool
	PenalizeLoad      bool
	DetectFlaky       bool
	ShowBreakdown     bool
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{
		MaxReviewers:       3,
		LookbackDays:       90,
		MaxFilesConsidered: 50,
		LatencyPRs:         20,
		UseCodeowners:      true,
		UseLatency:         true,
		PenalizeLoad:       true,
		DetectFlaky:        false,
	}
}

// Signal weights and scoring constants. The aggregation order in
// Engine.Rank depends on these being applied exactly as documented, since
// the load and flaky penalties are multiplicative on the accumulated sum.
const (
	commitSignalWeight  = 1 // multiplier on commit-history credit
	ownershipBonus      = 4 // flat bonus per (owner, file) pair
	latencySignalWeight = 1 // multiplier on the latency step bonus

	firstAuthorCredit  = 3
	secondAuthorCredit = 2
	otherAuthorCredit  = 1

	crossRepoPathCap   = 5  // changed paths sampled per cross repo
	crossRepoCommitCap = 10 // commits fetched per cross-repo path
	crossRepoPointCap  = 5  // max cross-repo points per login

	requiredFloorScore = 10 // required reviewer with no organic signal
	requiredBonusScore = 5  // required reviewer who already has signal

	tzProductiveLocalHour = 14 // "2pm local" productive-overlap heuristic
	tzCloseHours          = 4
	tzCloseBonus          = 3
	tzNearHours           = 8
	tzNearBonus           = 1

	loadPenaltyDivisor = 3.0
	flakyPenaltyFactor = 0.5
)

// latencyBonus converts a median first-review latency in hours into points
// via a monotonic step function.
func latencyBonus(medianHours float64) int {
	switch {
	case medianHours <= 4:
		return 6
	case medianHours <= 12:
		return 4
	case medianHours <= 24:
		return 2
	case medianHours <= 48:
		return 1
	default:
		return 0
	}
}

// Package rank derives an agent's reputation tier from its accepted
// contributions. Tiers gate validator eligibility and set vote weight.
package rank

// Tier is an agent's reputation level.
type Tier string

const (
	// Newcomer has no accepted contributions and cannot validate.
	Newcomer Tier = "NEWCOMER"
	// Researcher is the first validating tier.
	Researcher Tier = "RESEARCHER"
	// Senior has a sustained contribution record.
	Senior Tier = "SENIOR"
	// Architect is the highest tier.
	Architect Tier = "ARCHITECT"
)

// Rank pairs a tier with its vote weight.
type Rank struct {
	Tier   Tier
	Weight int
}

// Calculate derives the rank from an accepted-contribution count. It is a
// pure function; the consensus engine recomputes it on demand instead of
// caching tiers in agent records.
func Calculate(contributions int) Rank {
	switch {
	case contributions >= 10:
		return Rank{Tier: Architect, Weight: 5}
	case contributions >= 5:
		return Rank{Tier: Senior, Weight: 2}
	case contributions >= 1:
		return Rank{Tier: Researcher, Weight: 1}
	default:
		return Rank{Tier: Newcomer, Weight: 0}
	}
}

// CanValidate reports whether the tier may cast validator verdicts.
// Enforcement happens in the consensus engine, never in callers.
func (t Tier) CanValidate() bool {
	return t == Researcher || t == Senior || t == Architect
}

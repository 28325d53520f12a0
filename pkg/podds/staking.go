package podds

import "math"

// Side is the outcome a bet backs, using football-data's FTR letters.
type Side string

const (
	SideNone Side = "N"
	SideHome Side = "H"
	SideDraw Side = "D"
	SideAway Side = "A"
)

// Odds are decimal (European) odds for the three results.
type Odds struct {
	Home float64 `json:"home"`
	Draw float64 `json:"draw"`
	Away float64 `json:"away"`
}

// For returns the odds on side, 0 for SideNone.
func (o Odds) For(side Side) float64 {
	switch side {
	case SideHome:
		return o.Home
	case SideDraw:
		return o.Draw
	case SideAway:
		return o.Away
	}
	return 0
}

// BetDecision is the staking policy's choice for one match.
type BetDecision struct {
	Side        Side    `json:"side"`
	Probability float64 `json:"probability"`
	Odds        float64 `json:"odds"`
	NetOdds     float64 `json:"netOdds"` // b = odds - 1
	Edge        float64 `json:"edge"`    // p * odds of the selected side
	Kelly       float64 `json:"kelly"`   // full Kelly fraction, never negative
}

// NoBet is the decision for a match that carries no wager.
var NoBet = BetDecision{Side: SideNone}

// Decide picks at most one side to back. Home, draw and away are evaluated in that
// order against a running best that starts at margin; a side is taken only when its
// p*odds is strictly greater than the running best, and then becomes the new best.
// Ties therefore go to the earlier side.
func Decide(probs Outcome, odds Odds, margin float64) (BetDecision, error) {
	if margin < 0 || math.IsNaN(margin) {
		return NoBet, configError("margin_threshold", "must not be negative, got %g", margin)
	}
	for _, side := range []Side{SideHome, SideDraw, SideAway} {
		if o := odds.For(side); !(o > 1.0) {
			return NoBet, dataError("odds", "%s odds must exceed 1.0, got %g", side, o)
		}
	}

	best := margin
	decision := NoBet
	for _, side := range []Side{SideHome, SideDraw, SideAway} {
		p, o := probs.Probability(side), odds.For(side)
		if edge := p * o; edge > best {
			best = edge
			decision = BetDecision{Side: side, Probability: p, Odds: o, NetOdds: o - 1, Edge: edge}
		}
	}
	if decision.Side == SideNone {
		return decision, nil
	}
	decision.Kelly = Kelly(decision.Probability, decision.Odds)
	return decision, nil
}

// Kelly returns the Kelly fraction ((b+1)p - 1) / b for decimal odds b+1,
// clamped at zero when the bet has no edge.
func Kelly(p, odds float64) float64 {
	b := odds - 1
	if b <= 0 {
		return 0
	}
	f := ((b+1)*p - 1) / b
	if f < 0 {
		return 0
	}
	return f
}

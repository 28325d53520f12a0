package podds

import "math"

// DefaultMaxGoals bounds the scoreline grid at 0..10 goals per side.
const DefaultMaxGoals = 10

// Outcome holds the result probabilities of the truncated scoreline grid.
// The mass beyond MaxGoals is dropped rather than renormalized, so the three
// probabilities sum to slightly less than one for large means.
type Outcome struct {
	HomeWin float64 `json:"homeWin"`
	Draw    float64 `json:"draw"`
	AwayWin float64 `json:"awayWin"`

	MostLikelyHomeGoals int `json:"mostLikelyHomeGoals"`
	MostLikelyAwayGoals int `json:"mostLikelyAwayGoals"`

	matrix [][]float64
}

// Probability returns the probability of side. SideNone has probability 0.
func (o Outcome) Probability(side Side) float64 {
	switch side {
	case SideHome:
		return o.HomeWin
	case SideDraw:
		return o.Draw
	case SideAway:
		return o.AwayWin
	}
	return 0
}

// OverGoals is the probability that the total goals exceed line, within the grid.
func (o Outcome) OverGoals(line float64) float64 {
	p := 0.0
	for i, row := range o.matrix {
		for j, cell := range row {
			if float64(i+j) > line {
				p += cell
			}
		}
	}
	return p
}

// OutcomeModel converts goal expectancies into result probabilities.
type OutcomeModel struct {
	MaxGoals int
}

// OutcomeProbabilities evaluates the default 11x11 grid.
func OutcomeProbabilities(homeMean, awayMean float64) (Outcome, error) {
	return OutcomeModel{MaxGoals: DefaultMaxGoals}.Probabilities(homeMean, awayMean)
}

// Probabilities treats home and away goals as independent Poisson variables and sums
// the product of their point masses over each region of the scoreline grid.
func (om OutcomeModel) Probabilities(homeMean, awayMean float64) (Outcome, error) {
	if !(homeMean > 0) || math.IsInf(homeMean, 0) {
		return Outcome{}, dataError("home_mean", "expected goals must be positive and finite, got %g", homeMean)
	}
	if !(awayMean > 0) || math.IsInf(awayMean, 0) {
		return Outcome{}, dataError("away_mean", "expected goals must be positive and finite, got %g", awayMean)
	}
	maxGoals := om.MaxGoals
	if maxGoals < 1 {
		maxGoals = DefaultMaxGoals
	}

	homeProbs := poissonDistribution(homeMean, maxGoals)
	awayProbs := poissonDistribution(awayMean, maxGoals)
	matrix := createProbabilityMatrix(homeProbs, awayProbs)
	homeWin, draw, awayWin := calculateMatchOutcomeProbabilities(matrix)

	return Outcome{
		HomeWin:             homeWin,
		Draw:                draw,
		AwayWin:             awayWin,
		MostLikelyHomeGoals: findMostLikelyGoals(homeProbs),
		MostLikelyAwayGoals: findMostLikelyGoals(awayProbs),
		matrix:              matrix,
	}, nil
}

// poissonDistribution returns P(X=k) for k in 0..maxGoals.
// Computed in log space so large k does not overflow the factorial.
func poissonDistribution(mean float64, maxGoals int) []float64 {
	probs := make([]float64, maxGoals+1)
	logMean := math.Log(mean)
	for k := 0; k <= maxGoals; k++ {
		lgamma, _ := math.Lgamma(float64(k + 1))
		probs[k] = math.Exp(float64(k)*logMean - mean - lgamma)
	}
	return probs
}

// createProbabilityMatrix creates the joint probability matrix, rows are home goals
func createProbabilityMatrix(homeProbs, awayProbs []float64) [][]float64 {
	matrix := make([][]float64, len(homeProbs))
	for i := range homeProbs {
		matrix[i] = make([]float64, len(awayProbs))
		for j := range awayProbs {
			matrix[i][j] = homeProbs[i] * awayProbs[j]
		}
	}
	return matrix
}

// calculateMatchOutcomeProbabilities sums the lower triangle, diagonal and upper triangle
func calculateMatchOutcomeProbabilities(matrix [][]float64) (homeWin, draw, awayWin float64) {
	for i, row := range matrix {
		for j, cell := range row {
			if i > j {
				homeWin += cell
			} else if i == j {
				draw += cell
			} else {
				awayWin += cell
			}
		}
	}
	return homeWin, draw, awayWin
}

// findMostLikelyGoals finds the goal count with highest probability
func findMostLikelyGoals(probabilities []float64) int {
	maxProb := 0.0
	mostLikely := 0
	for goals, prob := range probabilities {
		if prob > maxProb {
			maxProb = prob
			mostLikely = goals
		}
	}
	return mostLikely
}

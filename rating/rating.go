// rating/rating.go
package rating

import (
	"math"
)

// KFactor 评分变动上限
const KFactor = 32

// Elo computes both players' new ratings from one result using the logistic
// expected-score formula. scoreA is 1 for an A win, 0 for a loss, 0.5 for a
// draw; B's score is the complement. Deltas are rounded symmetrically so a
// finished duel never changes the total rating in the pool.
func Elo(ratingA, ratingB int, scoreA float64) (int, int) {
	expectedA := Expected(ratingA, ratingB)

	delta := int(math.Round(KFactor * (scoreA - expectedA)))
	return ratingA + delta, ratingB - delta
}

// Expected returns A's expected score against B.
func Expected(ratingA, ratingB int) float64 {
	return 1.0 / (1.0 + math.Pow(10, float64(ratingB-ratingA)/400.0))
}

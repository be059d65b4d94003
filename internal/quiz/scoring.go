package quiz

import (
	"github.com/shopspring/decimal"
)

// scoreBase is the point ceiling for an instant correct answer. The floor
// for any correct answer is half of it.
const scoreBase = 100

var (
	decOne  = decimal.NewFromInt(1)
	decHalf = decimal.New(5, -1)
)

// scorePoints awards speed-weighted points for a correct answer: the faster
// the answer relative to the round's time limit, the closer to scoreBase.
// An answer at or past the limit still earns the floor. Decimal arithmetic
// keeps the ceil exact for limits that do not divide evenly.
func scorePoints(elapsedMillis, timeLimitMillis int64) int {
	remaining := decOne.Sub(decimal.NewFromInt(elapsedMillis).Div(decimal.NewFromInt(timeLimitMillis)))
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}

	pts := decimal.NewFromInt(scoreBase).Mul(decHalf.Add(decHalf.Mul(remaining))).Ceil()
	if pts.LessThan(decOne) {
		return 1
	}

	return int(pts.IntPart())
}

package chain

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"
)

// MaxStrikes caps the number of ladder steps in one chain.
const MaxStrikes = 1000

// ladderSteps is the number of steps GenerateStrikes walks for range and step.
func ladderSteps(strikeRange, strikeStep float64) float64 {
	return 2 * strikeRange / strikeStep
}

// GenerateStrikes builds the strike ladder around currentPrice.
//
// The walk starts at max(currentPrice-strikeRange, strikeStep) and advances by
// strikeStep while it stays within currentPrice+strikeRange. Every point is
// snapped to the nearest multiple of strikeStep (ties to even), then the set is
// deduplicated and sorted ascending. Decimal arithmetic keeps fractional steps
// such as 0.1 free of binary noise.
//
// A nil, non-positive or NaN price, a non-positive step, or a ladder of more
// than MaxStrikes steps yields nil.
func GenerateStrikes(currentPrice *float64, strikeRange, strikeStep float64) []float64 {
	if currentPrice == nil || !(*currentPrice > 0) || math.IsInf(*currentPrice, 0) {
		return nil
	}
	if !(strikeStep > 0) || math.IsInf(strikeStep, 0) || !(strikeRange >= 0) || math.IsInf(strikeRange, 0) {
		return nil
	}
	if ladderSteps(strikeRange, strikeStep) > MaxStrikes {
		return nil
	}

	price := decimal.NewFromFloat(*currentPrice)
	width := decimal.NewFromFloat(strikeRange)
	step := decimal.NewFromFloat(strikeStep)

	start := decimal.Max(price.Sub(width), step)
	end := price.Add(width)

	seen := make(map[string]struct{})
	var strikes []float64
	for i := int64(0); ; i++ {
		x := start.Add(step.Mul(decimal.NewFromInt(i)))
		if x.GreaterThan(end) {
			break
		}

		snapped := x.Div(step).RoundBank(0).Mul(step)
		key := snapped.String()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}

		f, _ := snapped.Float64()
		strikes = append(strikes, f)
	}

	sort.Float64s(strikes)
	return strikes
}

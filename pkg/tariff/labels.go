package tariff

import (
	"fmt"
	"strconv"
)

// Label is the semantic name of a price tier.
type Label string

const (
	Cheap        Label = "CHEAP"
	Expensive    Label = "EXPENSIVE"
	NewCheap     Label = "NEW_CHEAP"
	NewExpensive Label = "NEW_EXPENSIVE"
)

// Labels lists every label in tier order.
var Labels = []Label{Cheap, Expensive, NewCheap, NewExpensive}

// Strategy is how the distinct rate values were split into tiers.
type Strategy int

const (
	// StrategyTwoTier is a single cheap and expensive pair.
	StrategyTwoTier Strategy = 2
	// StrategyRateChange is an older pair being replaced by a newer pair
	// partway through the window.
	StrategyRateChange Strategy = 4
)

func (s Strategy) String() string {
	switch s {
	case StrategyTwoTier:
		return "two-tier"
	case StrategyRateChange:
		return "rate-change"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// strategyFor returns the strategy for n distinct values.
func strategyFor(n int) (Strategy, bool) {
	switch Strategy(n) {
	case StrategyTwoTier, StrategyRateChange:
		return Strategy(n), true
	default:
		return 0, false
	}
}

// PriceInMajorUnits converts a price in minor currency units, like pence,
// to major units rounded to two decimal places. Rounding is decided on the
// exact binary value of minor/100, so 7.5 becomes 0.07 and 22.5 becomes 0.23.
func PriceInMajorUnits(minor float64) float64 {
	v, err := strconv.ParseFloat(strconv.FormatFloat(minor/100, 'f', 2, 64), 64)
	if err != nil {
		// FormatFloat output always parses
		panic(err)
	}
	return v
}

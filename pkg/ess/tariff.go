package ess

import (
	"fmt"

	"github.com/raterudder/tousync/pkg/tariff"
	"github.com/raterudder/tousync/pkg/types"
)

// UtilityName is written into every tariff this service builds.
const UtilityName = "Octopus"

// teslaPeriods maps tiers onto the period names a Tesla tariff allows.
var teslaPeriods = map[tariff.Label]string{
	tariff.Cheap:        "SUPER_OFF_PEAK",
	tariff.Expensive:    "ON_PEAK",
	tariff.NewCheap:     "OFF_PEAK",
	tariff.NewExpensive: "PARTIAL_PEAK",
}

// TeslaPeriod returns the Tesla period name for a label.
func TeslaPeriod(l tariff.Label) (string, bool) {
	name, ok := teslaPeriods[l]
	return name, ok
}

func demandCharges() map[string]any {
	return map[string]any{
		"ALL":    map[string]any{"ALL": 0},
		"Summer": map[string]any{},
		"Winter": map[string]any{},
	}
}

// BuildTariff returns a copy of current with the agreement's identity and
// res's prices and periods in place of whatever it had before. Fields this
// service doesn't manage, like the sell tariff, are kept.
func BuildTariff(current types.Tariff, agreement types.Agreement, res tariff.Result) (types.Tariff, error) {
	required, err := current.Clone()
	if err != nil {
		return nil, err
	}

	prices := make(map[string]any, len(res.Prices))
	for l, p := range res.Prices {
		name, ok := TeslaPeriod(l)
		if !ok {
			return nil, fmt.Errorf("no tesla period for %s", l)
		}
		prices[name] = p
	}
	periods := make(map[string]any, len(res.Periods))
	for l, ps := range res.Periods {
		name, ok := TeslaPeriod(l)
		if !ok {
			return nil, fmt.Errorf("no tesla period for %s", l)
		}
		periods[name] = ps
	}

	required["code"] = agreement.TariffCode
	required["utility"] = UtilityName
	required["name"] = agreement.FullName
	required["demand_charges"] = demandCharges()
	required["energy_charges"] = map[string]any{
		"ALL":    map[string]any{"ALL": 0},
		"Summer": prices,
		"Winter": map[string]any{},
	}
	required["seasons"] = map[string]any{
		"Summer": map[string]any{
			"fromDay":     1,
			"toDay":       31,
			"fromMonth":   1,
			"toMonth":     12,
			"tou_periods": periods,
		},
		"Winter": map[string]any{
			"fromDay":     0,
			"toDay":       0,
			"fromMonth":   0,
			"toMonth":     0,
			"tou_periods": map[string]any{},
		},
	}
	// normalize so the result compares equal to what the battery returns
	return required.Clone()
}

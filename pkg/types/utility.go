package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// DispatchSourceSmartCharge marks a dispatch the utility scheduled itself.
// Only these windows are billed at the cheap rate.
const DispatchSourceSmartCharge = "smart-charge"

// instantLayouts are tried in order by ParseInstant. Dispatch times come back
// with a space instead of a T.
var instantLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
}

// ParseInstant parses a timestamp that carries its own offset.
func ParseInstant(s string) (time.Time, error) {
	var firstErr error
	for _, layout := range instantLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, fmt.Errorf("failed to parse instant (%s): %w", s, firstErr)
}

// RateRecord is a unit rate published by the utility. A zero ValidTo means
// the rate has no announced end.
type RateRecord struct {
	Value     float64   `json:"value"`
	ValidFrom time.Time `json:"validFrom"`
	ValidTo   time.Time `json:"validTo"`
}

// OpenEnded returns true if the rate has no announced end.
func (r RateRecord) OpenEnded() bool {
	return r.ValidTo.IsZero()
}

// UnmarshalJSON accepts null or missing validTo values.
func (r *RateRecord) UnmarshalJSON(b []byte) error {
	var raw struct {
		Value     float64 `json:"value"`
		ValidFrom string  `json:"validFrom"`
		ValidTo   *string `json:"validTo"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	from, err := ParseInstant(raw.ValidFrom)
	if err != nil {
		return fmt.Errorf("invalid validFrom: %w", err)
	}
	var to time.Time
	if raw.ValidTo != nil && *raw.ValidTo != "" {
		to, err = ParseInstant(*raw.ValidTo)
		if err != nil {
			return fmt.Errorf("invalid validTo: %w", err)
		}
	}
	*r = RateRecord{Value: raw.Value, ValidFrom: from, ValidTo: to}
	return nil
}

// MarshalJSON writes a null validTo for open ended rates.
func (r RateRecord) MarshalJSON() ([]byte, error) {
	var to *time.Time
	if !r.OpenEnded() {
		to = &r.ValidTo
	}
	return json.Marshal(struct {
		Value     float64    `json:"value"`
		ValidFrom time.Time  `json:"validFrom"`
		ValidTo   *time.Time `json:"validTo"`
	}{r.Value, r.ValidFrom, to})
}

// DispatchMeta describes why a dispatch was scheduled.
type DispatchMeta struct {
	Source   string  `json:"source"`
	Location *string `json:"location"`
}

// Dispatch is a window during which the utility charges the vehicle.
type Dispatch struct {
	StartDtUtc time.Time    `json:"startDtUtc"`
	EndDtUtc   time.Time    `json:"endDtUtc"`
	ChargeKWh  string       `json:"chargeKwh"`
	Meta       DispatchMeta `json:"meta"`
}

// SmartCharge returns true if the dispatch should be billed at the cheap rate.
func (d Dispatch) SmartCharge() bool {
	return d.Meta.Source == DispatchSourceSmartCharge
}

// UnmarshalJSON accepts both RFC 3339 and space separated timestamps.
func (d *Dispatch) UnmarshalJSON(b []byte) error {
	var raw struct {
		StartDtUtc string       `json:"startDtUtc"`
		EndDtUtc   string       `json:"endDtUtc"`
		ChargeKWh  string       `json:"chargeKwh"`
		Meta       DispatchMeta `json:"meta"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	start, err := ParseInstant(raw.StartDtUtc)
	if err != nil {
		return fmt.Errorf("invalid startDtUtc: %w", err)
	}
	end, err := ParseInstant(raw.EndDtUtc)
	if err != nil {
		return fmt.Errorf("invalid endDtUtc: %w", err)
	}
	*d = Dispatch{
		StartDtUtc: start,
		EndDtUtc:   end,
		ChargeKWh:  raw.ChargeKWh,
		Meta:       raw.Meta,
	}
	return nil
}

// Dispatches are the planned and completed dispatches for an account.
type Dispatches struct {
	Planned   []Dispatch `json:"plannedDispatches"`
	Completed []Dispatch `json:"completedDispatches"`
}

// Agreement is the account's active electricity tariff.
type Agreement struct {
	TariffCode  string       `json:"tariffCode"`
	FullName    string       `json:"fullName"`
	DisplayName string       `json:"displayName"`
	ProductCode string       `json:"productCode"`
	ValidFrom   time.Time    `json:"validFrom"`
	UnitRates   []RateRecord `json:"unitRates,omitempty"`
}

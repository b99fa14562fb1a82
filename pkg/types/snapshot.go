package types

import (
	"encoding/json"
	"time"
)

// Snapshot is the source data fetched from the utility in one sync cycle.
type Snapshot struct {
	Dispatches Dispatches   `json:"dispatches"`
	UnitRates  []RateRecord `json:"unit_rates"`
	Agreement  Agreement    `json:"agreement"`
}

// NewSnapshot splits the unit rates out of the agreement.
func NewSnapshot(dispatches Dispatches, agreement Agreement) Snapshot {
	rates := agreement.UnitRates
	agreement.UnitRates = nil
	return Snapshot{
		Dispatches: dispatches,
		UnitRates:  rates,
		Agreement:  agreement,
	}
}

// Marshal returns the stored encoding of s, indented with four spaces.
func (s Snapshot) Marshal() ([]byte, error) {
	return json.MarshalIndent(s, "", "    ")
}

// StoredSnapshot is a snapshot as written to storage.
type StoredSnapshot struct {
	Timestamp time.Time `json:"timestamp"`
	Snapshot  Snapshot  `json:"snapshot"`
	// JSON is the exact encoding that was stored and is what changes are
	// detected against.
	JSON []byte `json:"-"`
}

package types

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// TOUPeriod is one recurring span of a time-of-use season. A to time of
// 00:00, or one before the from time, wraps past midnight.
type TOUPeriod struct {
	FromDayOfWeek int `json:"fromDayOfWeek"`
	ToDayOfWeek   int `json:"toDayOfWeek"`
	FromHour      int `json:"fromHour"`
	FromMinute    int `json:"fromMinute"`
	ToHour        int `json:"toHour"`
	ToMinute      int `json:"toMinute"`
}

// Tariff is a battery's tariff document. It is kept as generic JSON so
// fields this service doesn't manage survive a round trip to the device.
type Tariff map[string]any

// Clone returns a deep copy of the tariff with every value normalized to
// what encoding/json would decode.
func (t Tariff) Clone() (Tariff, error) {
	b, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tariff: %w", err)
	}
	var out Tariff
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tariff: %w", err)
	}
	if out == nil {
		out = Tariff{}
	}
	return out, nil
}

// Equal compares the JSON forms of two tariffs.
func (t Tariff) Equal(other Tariff) bool {
	a, errA := t.Clone()
	b, errB := other.Clone()
	if errA != nil || errB != nil {
		return false
	}
	return reflect.DeepEqual(a, b)
}

// Indented renders the tariff as indented JSON with sorted keys.
func (t Tariff) Indented() string {
	b, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", map[string]any(t))
	}
	return string(b)
}

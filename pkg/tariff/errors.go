package tariff

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrUnexpectedRateCount = errors.New("unexpected number of rates")
	ErrGapTooLarge         = errors.New("rate coverage gap too large")
)

// UnexpectedRateCountError carries the distinct values that were found.
type UnexpectedRateCountError struct {
	Values []float64
}

func (e *UnexpectedRateCountError) Error() string {
	return fmt.Sprintf("%s: %v", ErrUnexpectedRateCount, e.Values)
}

func (e *UnexpectedRateCountError) Is(target error) bool {
	return target == ErrUnexpectedRateCount
}

// GapTooLargeError is returned by FillGap when the published rates end too
// long before the schedule does.
type GapTooLargeError struct {
	Gap time.Duration
	Max time.Duration
}

func (e *GapTooLargeError) Error() string {
	return fmt.Sprintf("%s: %s exceeds %s", ErrGapTooLarge, e.Gap, e.Max)
}

func (e *GapTooLargeError) Is(target error) bool {
	return target == ErrGapTooLarge
}

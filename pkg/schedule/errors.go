package schedule

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidInterval = errors.New("invalid interval")
	ErrScheduleGap     = errors.New("gaps in schedule")
)

// InvalidIntervalError is returned when a write's end is not after its start.
type InvalidIntervalError struct {
	Start time.Time
	End   time.Time
}

func (e *InvalidIntervalError) Error() string {
	return fmt.Sprintf(
		"%s: %s is not after %s",
		ErrInvalidInterval,
		e.End.Format(time.RFC3339),
		e.Start.Format(time.RFC3339),
	)
}

func (e *InvalidIntervalError) Is(target error) bool {
	return target == ErrInvalidInterval
}

// GapError lists every slot that was never written.
type GapError struct {
	Slots []time.Time
}

func (e *GapError) Error() string {
	formatted := make([]string, len(e.Slots))
	for i, s := range e.Slots {
		formatted[i] = s.Format(time.RFC3339)
	}
	return fmt.Sprintf("%s: [%s]", ErrScheduleGap, strings.Join(formatted, " "))
}

func (e *GapError) Is(target error) bool {
	return target == ErrScheduleGap
}

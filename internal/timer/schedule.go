package timer

import (
	"fmt"
	"strings"
	"time"

	"github.com/adhocore/gronx"
	errs "github.com/osmike/cadence/internal/error"
)

// NextFixedRate returns the grid slot that follows lastSlot for a fixed-rate timer.
//
// The grid is origin + k*period. The chosen k is the smallest one that is both
// after lastSlot and not before now, so executions missed while the timer was
// late or suspended collapse into the single execution that just happened.
//
// Parameters:
//   - origin: The first scheduled execution time.
//   - period: The grid period. Must be positive.
//   - lastSlot: The slot index of the execution that just completed.
//   - now: The completion time.
//
// Returns:
//   - The next slot index and its execution time.
func NextFixedRate(origin time.Time, period time.Duration, lastSlot int64, now time.Time) (int64, time.Time) {
	k := lastSlot + 1
	if elapsed := now.Sub(origin); elapsed > 0 {
		ceil := int64(elapsed / period)
		if elapsed%period != 0 {
			ceil++
		}
		if ceil > k {
			k = ceil
		}
	}
	return k, origin.Add(time.Duration(k) * period)
}

// NextFixedDelay returns the next execution time of a fixed-delay timer.
func NextFixedDelay(completion time.Time, period time.Duration) time.Time {
	return completion.Add(period)
}

// NextCron returns the first tick of expr strictly after from.
func NextCron(expr string, from time.Time) (time.Time, error) {
	next, err := gronx.NextTickAfter(expr, from, false)
	if err != nil {
		return time.Time{}, errs.New(errs.ErrInvalidCron, fmt.Sprintf("%q: %v", expr, err))
	}
	return next, nil
}

// ValidateCron checks that expr is a standard five-field cron expression.
// Macros such as @hourly are accepted as well.
func ValidateCron(expr string) error {
	expr = strings.TrimSpace(expr)
	if !strings.HasPrefix(expr, "@") && len(strings.Fields(expr)) != 5 {
		return errs.New(errs.ErrInvalidCron, fmt.Sprintf("%q: expected 5 fields", expr))
	}
	if !gronx.IsValid(expr) {
		return errs.New(errs.ErrInvalidCron, fmt.Sprintf("%q", expr))
	}
	return nil
}

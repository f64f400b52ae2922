// Egen Lista | 2026
// period.go

package analytics

import (
	"fmt"
	"time"

	"github.com/egenlista/api/internal/core"
)

const (
	ComparePreviousMonth = "previous-month"
	ComparePreceding     = "preceding"
	CompareYearOverYear  = "year-over-year"
)

func ValidCompareMode(mode string) bool {
	switch mode {
	case ComparePreviousMonth, ComparePreceding, CompareYearOverYear:
		return true
	}
	return false
}

// Period is a half-open range [From, To).
type Period struct {
	From time.Time
	To   time.Time
}

func (p Period) Span() time.Duration {
	return p.To.Sub(p.From)
}

func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.From) && t.Before(p.To)
}

// Derive computes the comparison period for a primary range. Every
// mode preserves the primary span, so current and comparison subsets
// always cover windows of equal length:
//   - previous-month shifts the start back one calendar month,
//   - preceding butts the window up against the primary start,
//   - year-over-year shifts the start back one year.
func Derive(primary Period, mode string) (Period, error) {
	span := primary.Span()

	var from time.Time
	switch mode {
	case ComparePreviousMonth:
		from = primary.From.AddDate(0, -1, 0)
	case ComparePreceding:
		from = primary.From.Add(-span)
	case CompareYearOverYear:
		from = primary.From.AddDate(-1, 0, 0)
	default:
		return Period{}, fmt.Errorf(
			"derive period: unknown mode %q: %w",
			mode,
			core.ErrInvalidInput,
		)
	}

	return Period{From: from, To: from.Add(span)}, nil
}

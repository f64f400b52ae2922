// Egen Lista | 2026
// period_test.go

package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/egenlista/api/internal/core"
)

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

func TestPeriodContainsHalfOpen(t *testing.T) {
	p := Period{From: day(2026, 3, 1), To: day(2026, 3, 8)}

	assert.True(t, p.Contains(day(2026, 3, 1)), "From is inclusive")
	assert.True(t, p.Contains(day(2026, 3, 7).Add(23*time.Hour)))
	assert.False(t, p.Contains(day(2026, 3, 8)), "To is exclusive")
	assert.False(t, p.Contains(day(2026, 2, 28)))
}

func TestDerivePreservesSpan(t *testing.T) {
	primary := Period{From: day(2026, 3, 10), To: day(2026, 3, 20)}

	for _, mode := range []string{
		ComparePreviousMonth,
		ComparePreceding,
		CompareYearOverYear,
	} {
		t.Run(mode, func(t *testing.T) {
			derived, err := Derive(primary, mode)
			require.NoError(t, err)
			assert.Equal(t, primary.Span(), derived.Span())
		})
	}
}

func TestDerivePreviousMonth(t *testing.T) {
	primary := Period{From: day(2026, 3, 10), To: day(2026, 3, 20)}

	derived, err := Derive(primary, ComparePreviousMonth)
	require.NoError(t, err)

	assert.Equal(t, day(2026, 2, 10), derived.From)
	assert.Equal(t, day(2026, 2, 20), derived.To)
}

func TestDerivePreceding(t *testing.T) {
	primary := Period{From: day(2026, 3, 10), To: day(2026, 3, 20)}

	derived, err := Derive(primary, ComparePreceding)
	require.NoError(t, err)

	assert.Equal(t, day(2026, 2, 28), derived.From)
	assert.Equal(t, primary.From, derived.To, "window butts up against the primary")
}

func TestDeriveYearOverYear(t *testing.T) {
	primary := Period{From: day(2026, 3, 10), To: day(2026, 3, 20)}

	derived, err := Derive(primary, CompareYearOverYear)
	require.NoError(t, err)

	assert.Equal(t, day(2025, 3, 10), derived.From)
	assert.Equal(t, day(2025, 3, 20), derived.To)
}

func TestDeriveUnknownMode(t *testing.T) {
	_, err := Derive(Period{From: day(2026, 3, 1), To: day(2026, 3, 2)}, "sideways")
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestValidCompareMode(t *testing.T) {
	assert.True(t, ValidCompareMode(ComparePreviousMonth))
	assert.True(t, ValidCompareMode(ComparePreceding))
	assert.True(t, ValidCompareMode(CompareYearOverYear))
	assert.False(t, ValidCompareMode(""))
	assert.False(t, ValidCompareMode("last-week"))
}

// Egen Lista | 2026
// aggregate_test.go

package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/egenlista/api/internal/contact"
)

func contactAt(contactType string, createdAt time.Time) contact.Contact {
	return contact.Contact{Type: contactType, CreatedAt: createdAt}
}

func TestBuildOverviewCountsAndTypes(t *testing.T) {
	current := Period{From: day(2026, 3, 1), To: day(2026, 3, 8)}
	comparison := Period{From: day(2026, 2, 22), To: day(2026, 3, 1)}

	contacts := []contact.Contact{
		contactAt(contact.TypeLead, day(2026, 3, 2)),
		contactAt(contact.TypeLead, day(2026, 3, 2).Add(5*time.Hour)),
		contactAt(contact.TypeCustomer, day(2026, 3, 5)),
		contactAt(contact.TypeContact, day(2026, 2, 25)),
		contactAt(contact.TypeContact, day(2026, 1, 1)),
	}

	ov := BuildOverview(contacts, current, comparison)

	assert.Equal(t, 3, ov.Current.Total)
	assert.Equal(t, 2, ov.Current.ByType[contact.TypeLead])
	assert.Equal(t, 1, ov.Current.ByType[contact.TypeCustomer])
	assert.Equal(t, 1, ov.Comparison.Total)
	assert.InDelta(t, 200.0, ov.Growth.Percent, 0.001)
	assert.Empty(t, ov.Growth.Marker)
}

func TestGrowthMarkerNew(t *testing.T) {
	g := computeGrowth(0, 5)
	assert.Equal(t, GrowthMarkerNew, g.Marker)
	assert.Zero(t, g.Percent)

	g = computeGrowth(0, 0)
	assert.Empty(t, g.Marker)
	assert.Zero(t, g.Percent)
}

func TestGrowthNegative(t *testing.T) {
	g := computeGrowth(10, 5)
	assert.InDelta(t, -50.0, g.Percent, 0.001)
	assert.Empty(t, g.Marker)
}

func TestDayBucketsForShortPeriod(t *testing.T) {
	p := Period{From: day(2026, 3, 1), To: day(2026, 3, 8)}

	buckets := makeBuckets(p)

	require.Len(t, buckets, 7)
	assert.Equal(t, "2026-03-01", buckets[0].Label)
	assert.Equal(t, "2026-03-07", buckets[6].Label)
}

func TestMonthBucketsForLongPeriod(t *testing.T) {
	p := Period{From: day(2026, 1, 15), To: day(2026, 4, 15)}

	buckets := makeBuckets(p)

	require.Len(t, buckets, 4)
	assert.Equal(t, "2026-01", buckets[0].Label)
	assert.Equal(t, "2026-04", buckets[3].Label)
	assert.Equal(t, day(2026, 1, 1), buckets[0].Start, "months align to the 1st")
}

func TestBucketBoundaryIsThirtyOneDays(t *testing.T) {
	exactly := Period{From: day(2026, 3, 1), To: day(2026, 4, 1)}
	buckets := makeBuckets(exactly)
	assert.Len(t, buckets, 31, "31 days still charts per day")

	over := Period{From: day(2026, 3, 1), To: day(2026, 4, 2)}
	buckets = makeBuckets(over)
	assert.Equal(t, "2026-03", buckets[0].Label, "32 days charts per month")
}

func TestAggregateFillsBuckets(t *testing.T) {
	p := Period{From: day(2026, 3, 1), To: day(2026, 3, 4)}

	contacts := []contact.Contact{
		contactAt(contact.TypeContact, day(2026, 3, 1).Add(9*time.Hour)),
		contactAt(contact.TypeContact, day(2026, 3, 1).Add(17*time.Hour)),
		contactAt(contact.TypeContact, day(2026, 3, 3)),
		contactAt(contact.TypeContact, day(2026, 3, 4)),
	}

	stats := aggregate(contacts, p)

	require.Len(t, stats.Buckets, 3)
	assert.Equal(t, 2, stats.Buckets[0].Count)
	assert.Equal(t, 0, stats.Buckets[1].Count)
	assert.Equal(t, 1, stats.Buckets[2].Count)
	assert.Equal(t, 3, stats.Total, "the out-of-period contact is not counted")
}

// Egen Lista | 2026
// aggregate.go

package analytics

import (
	"time"

	"github.com/egenlista/api/internal/contact"
)

// Buckets switch from days to months above this span.
const maxDayBucketSpan = 31 * 24 * time.Hour

// GrowthMarkerNew labels infinite growth: the comparison period had
// nothing, the current one has something.
const GrowthMarkerNew = "new"

type Bucket struct {
	Label string    `json:"label"`
	Start time.Time `json:"start"`
	Count int       `json:"count"`
}

type PeriodStats struct {
	From    time.Time      `json:"from"`
	To      time.Time      `json:"to"`
	Total   int            `json:"total"`
	ByType  map[string]int `json:"by_type"`
	Buckets []Bucket       `json:"buckets"`
}

type Growth struct {
	Percent float64 `json:"percent"`
	Marker  string  `json:"marker,omitempty"`
}

type Overview struct {
	Current    PeriodStats `json:"current"`
	Comparison PeriodStats `json:"comparison"`
	Growth     Growth      `json:"growth"`
}

// BuildOverview slices the collection into the current and comparison
// windows and aggregates each into per-bucket counts and per-type
// totals.
func BuildOverview(
	contacts []contact.Contact,
	current, comparison Period,
) Overview {
	return Overview{
		Current:    aggregate(contacts, current),
		Comparison: aggregate(contacts, comparison),
		Growth: computeGrowth(
			countIn(contacts, comparison),
			countIn(contacts, current),
		),
	}
}

func aggregate(contacts []contact.Contact, p Period) PeriodStats {
	stats := PeriodStats{
		From:    p.From,
		To:      p.To,
		ByType:  make(map[string]int),
		Buckets: makeBuckets(p),
	}

	for i := range contacts {
		c := &contacts[i]
		if !p.Contains(c.CreatedAt) {
			continue
		}

		stats.Total++
		stats.ByType[c.Type]++

		if idx := bucketIndex(stats.Buckets, c.CreatedAt); idx >= 0 {
			stats.Buckets[idx].Count++
		}
	}

	return stats
}

// makeBuckets lays out empty day or month buckets across the period.
// Short ranges chart per day; anything longer than a month charts per
// calendar month.
func makeBuckets(p Period) []Bucket {
	if p.Span() <= maxDayBucketSpan {
		return dayBuckets(p)
	}
	return monthBuckets(p)
}

func dayBuckets(p Period) []Bucket {
	var buckets []Bucket

	day := time.Date(
		p.From.Year(), p.From.Month(), p.From.Day(),
		0, 0, 0, 0, p.From.Location(),
	)
	for day.Before(p.To) {
		buckets = append(buckets, Bucket{
			Label: day.Format("2006-01-02"),
			Start: day,
		})
		day = day.AddDate(0, 0, 1)
	}

	return buckets
}

func monthBuckets(p Period) []Bucket {
	var buckets []Bucket

	month := time.Date(
		p.From.Year(), p.From.Month(), 1,
		0, 0, 0, 0, p.From.Location(),
	)
	for month.Before(p.To) {
		buckets = append(buckets, Bucket{
			Label: month.Format("2006-01"),
			Start: month,
		})
		month = month.AddDate(0, 1, 0)
	}

	return buckets
}

// bucketIndex finds the last bucket starting at or before t. Buckets
// are in ascending order.
func bucketIndex(buckets []Bucket, t time.Time) int {
	for i := len(buckets) - 1; i >= 0; i-- {
		if !t.Before(buckets[i].Start) {
			return i
		}
	}
	return -1
}

func countIn(contacts []contact.Contact, p Period) int {
	n := 0
	for i := range contacts {
		if p.Contains(contacts[i].CreatedAt) {
			n++
		}
	}
	return n
}

func computeGrowth(previous, current int) Growth {
	if previous == 0 {
		if current > 0 {
			return Growth{Marker: GrowthMarkerNew}
		}
		return Growth{}
	}

	return Growth{
		Percent: float64(current-previous) / float64(previous) * 100,
	}
}

// Egen Lista | 2026
// pipeline_test.go

package contact

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeContact(
	id, firstName, lastName, email, contactType string,
	createdAt time.Time,
) Contact {
	return Contact{
		ID:        id,
		FirstName: firstName,
		LastName:  lastName,
		Email:     email,
		Type:      contactType,
		CreatedAt: createdAt,
	}
}

func TestNormalizeDefaults(t *testing.T) {
	q := Query{}
	q.Normalize(nil)

	assert.Equal(t, SortByCreatedAt, q.SortBy)
	assert.Equal(t, SortDesc, q.SortDir)
	assert.Equal(t, 1, q.Page)
	assert.Equal(t, defaultPageSize, q.PageSize)
}

func TestNormalizeClampsPageSize(t *testing.T) {
	q := Query{PageSize: 5000, Page: 3}
	q.Normalize(nil)

	assert.Equal(t, maxPageSize, q.PageSize)
	assert.Equal(t, 3, q.Page)
}

func TestNormalizeRejectsUnknownControls(t *testing.T) {
	q := Query{Type: "ALIEN", SortBy: "shoe_size", SortDir: "sideways"}
	q.Normalize(nil)

	assert.Empty(t, q.Type)
	assert.Equal(t, SortByCreatedAt, q.SortBy)
	assert.Equal(t, SortDesc, q.SortDir)
}

func TestNormalizeResetsPageOnFilterChange(t *testing.T) {
	prev := Query{Search: "anna", Page: 4, PageSize: 20}
	prev.Normalize(nil)

	tests := []struct {
		name     string
		next     Query
		wantPage int
	}{
		{
			name:     "search changed",
			next:     Query{Search: "berit", Page: 4, PageSize: 20},
			wantPage: 1,
		},
		{
			name:     "type changed",
			next:     Query{Search: "anna", Type: TypeLead, Page: 4, PageSize: 20},
			wantPage: 1,
		},
		{
			name:     "page size changed",
			next:     Query{Search: "anna", Page: 4, PageSize: 50},
			wantPage: 1,
		},
		{
			name:     "only page changed",
			next:     Query{Search: "anna", Page: 5, PageSize: 20},
			wantPage: 5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := tt.next
			q.Normalize(&prev)
			assert.Equal(t, tt.wantPage, q.Page)
		})
	}
}

func TestFilterBySearchAndType(t *testing.T) {
	now := time.Now()
	contacts := []Contact{
		makeContact("1", "Anna", "Andersson", "anna@example.se", TypeLead, now),
		makeContact("2", "Berit", "Berg", "berit@example.se", TypeCustomer, now),
		makeContact("3", "Cesar", "Annas", "cesar@example.se", TypeLead, now),
	}

	got := Filter(contacts, "ANNA", "")
	require.Len(t, got, 2)
	assert.Equal(t, "1", got[0].ID)
	assert.Equal(t, "3", got[1].ID)

	got = Filter(contacts, "anna", TypeLead)
	require.Len(t, got, 2)

	got = Filter(contacts, "berit", TypeLead)
	assert.Empty(t, got)

	got = Filter(contacts, "", "")
	assert.Len(t, got, 3)
}

func TestFilterMatchesPhone(t *testing.T) {
	c := makeContact("1", "Anna", "Andersson", "anna@example.se", TypeContact, time.Now())
	c.Phone = "070-123 45 67"

	got := Filter([]Contact{c}, "123 45", "")
	assert.Len(t, got, 1)
}

func TestSortSwedishCollation(t *testing.T) {
	now := time.Now()
	contacts := []Contact{
		makeContact("1", "Örjan", "", "", TypeContact, now),
		makeContact("2", "Adam", "", "", TypeContact, now),
		makeContact("3", "Åsa", "", "", TypeContact, now),
		makeContact("4", "Zara", "", "", TypeContact, now),
		makeContact("5", "Ärla", "", "", TypeContact, now),
	}

	Sort(contacts, SortByFirstName, SortAsc)

	names := make([]string, len(contacts))
	for i, c := range contacts {
		names[i] = c.FirstName
	}

	// Swedish alphabet puts å ä ö after z.
	assert.Equal(t, []string{"Adam", "Zara", "Åsa", "Ärla", "Örjan"}, names)
}

func TestSortDescendingByCreatedAt(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	contacts := []Contact{
		makeContact("old", "A", "", "", TypeContact, base),
		makeContact("new", "B", "", "", TypeContact, base.Add(48*time.Hour)),
		makeContact("mid", "C", "", "", TypeContact, base.Add(24*time.Hour)),
	}

	Sort(contacts, SortByCreatedAt, SortDesc)

	assert.Equal(t, "new", contacts[0].ID)
	assert.Equal(t, "mid", contacts[1].ID)
	assert.Equal(t, "old", contacts[2].ID)
}

func TestSortNoteUpdatedAtNilsSinkDescending(t *testing.T) {
	noted := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	contacts := []Contact{
		makeContact("no-note", "A", "", "", TypeContact, noted),
		makeContact("noted", "B", "", "", TypeContact, noted),
	}
	contacts[1].NoteUpdatedAt = &noted

	Sort(contacts, SortByNoteUpdatedAt, SortDesc)

	assert.Equal(t, "noted", contacts[0].ID)
	assert.Equal(t, "no-note", contacts[1].ID)
}

func TestSortIsStable(t *testing.T) {
	now := time.Now()
	contacts := []Contact{
		makeContact("first", "Anna", "", "", TypeContact, now),
		makeContact("second", "Anna", "", "", TypeContact, now),
		makeContact("third", "Anna", "", "", TypeContact, now),
	}

	Sort(contacts, SortByFirstName, SortAsc)

	assert.Equal(t, "first", contacts[0].ID)
	assert.Equal(t, "second", contacts[1].ID)
	assert.Equal(t, "third", contacts[2].ID)
}

func TestApplyPagination(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	contacts := make([]Contact, 0, 45)
	for i := 0; i < 45; i++ {
		contacts = append(contacts, makeContact(
			fmt.Sprintf("c%02d", i),
			fmt.Sprintf("Namn%02d", i),
			"",
			"",
			TypeContact,
			base.Add(time.Duration(i)*time.Hour),
		))
	}

	q := Query{SortBy: SortByCreatedAt, SortDir: SortAsc, PageSize: 20}
	q.Normalize(nil)

	seen := make(map[string]int)
	totalItems := 0
	for page := 1; ; page++ {
		q.Page = page
		res := Apply(contacts, q)

		require.Equal(t, 45, res.Total)
		require.Equal(t, 3, res.PageCount)

		for _, c := range res.Items {
			seen[c.ID]++
		}
		totalItems += len(res.Items)

		if page >= res.PageCount {
			break
		}
	}

	// Every contact appears exactly once across the pages.
	assert.Equal(t, 45, totalItems)
	assert.Len(t, seen, 45)
	for id, n := range seen {
		assert.Equalf(t, 1, n, "contact %s appeared %d times", id, n)
	}
}

func TestApplyClampsPageToLast(t *testing.T) {
	now := time.Now()
	contacts := []Contact{
		makeContact("1", "Anna", "", "", TypeContact, now),
	}

	q := Query{Page: 99, PageSize: 20}
	q.Normalize(nil)

	res := Apply(contacts, q)

	assert.Equal(t, 1, res.Page)
	assert.Len(t, res.Items, 1)
}

func TestApplyEmptyCollection(t *testing.T) {
	q := Query{}
	q.Normalize(nil)

	res := Apply(nil, q)

	assert.Equal(t, 0, res.Total)
	assert.Equal(t, 1, res.Page)
	assert.Equal(t, 1, res.PageCount)
	assert.Empty(t, res.Items)
}

func TestPruneSelection(t *testing.T) {
	now := time.Now()
	contacts := []Contact{
		makeContact("a", "", "", "", TypeContact, now),
		makeContact("c", "", "", "", TypeContact, now),
	}

	got := PruneSelection([]string{"a", "b", "c", "d"}, contacts)
	assert.Equal(t, []string{"a", "c"}, got)

	got = PruneSelection(nil, contacts)
	assert.Empty(t, got)
}

func TestIsNew(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	fresh := makeContact("1", "", "", "", TypeContact, now.Add(-24*time.Hour))
	aged := makeContact("2", "", "", "", TypeContact, now.Add(-15*24*time.Hour))

	assert.True(t, IsNew(&fresh, false, now))
	assert.False(t, IsNew(&fresh, true, now), "viewed contacts lose the badge")
	assert.False(t, IsNew(&aged, false, now), "badge expires after the window")
}

// Egen Lista | 2026
// pipeline.go

package contact

import (
	"sort"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Query is the full set of list controls. The zero value means "all
// contacts, default sort, first page".
type Query struct {
	Search   string
	Type     string
	SortBy   string
	SortDir  string
	Page     int
	PageSize int
}

const (
	SortByName          = "name"
	SortByFirstName     = "first_name"
	SortByLastName      = "last_name"
	SortByEmail         = "email"
	SortByType          = "type"
	SortByCreatedAt     = "created_at"
	SortByNoteUpdatedAt = "note_updated_at"

	SortAsc  = "asc"
	SortDesc = "desc"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func validSortBy(s string) bool {
	switch s {
	case SortByName, SortByFirstName, SortByLastName, SortByEmail,
		SortByType, SortByCreatedAt, SortByNoteUpdatedAt:
		return true
	}
	return false
}

// Normalize clamps the paging values and falls back to the default
// sort. When the search, type filter, or page size differs from the
// previous query, the page resets to 1 so a narrowed result set never
// lands on a page that no longer exists.
func (q *Query) Normalize(prev *Query) {
	q.Search = strings.TrimSpace(q.Search)

	if !ValidType(q.Type) {
		q.Type = ""
	}
	if !validSortBy(q.SortBy) {
		q.SortBy = SortByCreatedAt
	}
	if q.SortDir != SortAsc && q.SortDir != SortDesc {
		q.SortDir = SortDesc
	}

	if q.PageSize < 1 {
		q.PageSize = defaultPageSize
	}
	if q.PageSize > maxPageSize {
		q.PageSize = maxPageSize
	}
	if q.Page < 1 {
		q.Page = 1
	}

	if prev != nil {
		if q.Search != prev.Search ||
			q.Type != prev.Type ||
			q.PageSize != prev.PageSize {
			q.Page = 1
		}
	}
}

// Result is one page plus enough bookkeeping to render a pager.
type Result struct {
	Items     []Contact
	Total     int
	Page      int
	PageCount int
}

// Apply runs the filter, sort, and paginate steps over an in-memory
// collection. The sort is stable so repeated queries with identical
// controls render identical pages.
func Apply(contacts []Contact, q Query) Result {
	filtered := Filter(contacts, q.Search, q.Type)
	Sort(filtered, q.SortBy, q.SortDir)

	total := len(filtered)
	pageCount := (total + q.PageSize - 1) / q.PageSize
	if pageCount < 1 {
		pageCount = 1
	}

	page := q.Page
	if page > pageCount {
		page = pageCount
	}

	start := (page - 1) * q.PageSize
	end := start + q.PageSize
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}

	return Result{
		Items:     filtered[start:end],
		Total:     total,
		Page:      page,
		PageCount: pageCount,
	}
}

// Filter keeps contacts matching the free-text search and exact type.
// The search is case-insensitive over the full name, email, and
// phone.
func Filter(contacts []Contact, search, contactType string) []Contact {
	term := strings.ToLower(strings.TrimSpace(search))

	out := make([]Contact, 0, len(contacts))
	for i := range contacts {
		c := &contacts[i]

		if contactType != "" && c.Type != contactType {
			continue
		}

		if term != "" && !matchesSearch(c, term) {
			continue
		}

		out = append(out, *c)
	}

	return out
}

func matchesSearch(c *Contact, term string) bool {
	haystack := strings.ToLower(
		c.FirstName + " " + c.LastName + " " + c.Email + " " + c.Phone,
	)
	return strings.Contains(haystack, term)
}

// Sort orders the slice in place. Text columns collate in Swedish so
// å, ä, and ö land after z the way users expect; date columns compare
// by timestamp.
func Sort(contacts []Contact, sortBy, sortDir string) {
	desc := sortDir == SortDesc
	coll := collate.New(language.Swedish, collate.IgnoreCase)

	sort.SliceStable(contacts, func(i, j int) bool {
		cmp := compareContacts(&contacts[i], &contacts[j], sortBy, coll)
		if desc {
			return cmp > 0
		}
		return cmp < 0
	})
}

func compareContacts(
	a, b *Contact,
	sortBy string,
	coll *collate.Collator,
) int {
	switch sortBy {
	case SortByName:
		return coll.CompareString(fullName(a), fullName(b))
	case SortByFirstName:
		return coll.CompareString(a.FirstName, b.FirstName)
	case SortByLastName:
		return coll.CompareString(a.LastName, b.LastName)
	case SortByEmail:
		return coll.CompareString(a.Email, b.Email)
	case SortByType:
		return coll.CompareString(a.Type, b.Type)
	case SortByNoteUpdatedAt:
		return compareTimePtr(a.NoteUpdatedAt, b.NoteUpdatedAt)
	default:
		return a.CreatedAt.Compare(b.CreatedAt)
	}
}

func fullName(c *Contact) string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// compareTimePtr orders nil timestamps first so contacts without
// notes sink to the bottom of a descending sort.
func compareTimePtr(a, b *time.Time) int {
	if a == nil && b == nil {
		return 0
	}
	if a == nil {
		return -1
	}
	if b == nil {
		return 1
	}
	return a.Compare(*b)
}

// PruneSelection drops selected ids that are no longer present in the
// collection, preserving order.
func PruneSelection(selected []string, contacts []Contact) []string {
	if len(selected) == 0 {
		return selected
	}

	present := make(map[string]struct{}, len(contacts))
	for i := range contacts {
		present[contacts[i].ID] = struct{}{}
	}

	out := make([]string, 0, len(selected))
	for _, id := range selected {
		if _, ok := present[id]; ok {
			out = append(out, id)
		}
	}

	return out
}

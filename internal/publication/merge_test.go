package publication

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func storeYears(doc *Document) []int {
	var years []int
	for _, g := range doc.Publications {
		years = append(years, g.Year)
	}
	return years
}

func TestMerge_NewYearGroupSortedFirst(t *testing.T) {
	foo := &Record{Authors: "A", Title: "Foo", Venue: "V", Link: "https://example.org/foo"}
	doc := &Document{Publications: []*YearGroup{{Year: 2023, Items: []*Record{foo}}}}
	before := foo.Clone()

	scraped := []*Record{
		{Title: "foo", Year: 2023, Authors: "someone else"},
		{Title: "Bar", Year: 2024, Authors: "B", Venue: "W", Link: "https://example.org/bar", Citations: 7},
	}
	fresh, known := Partition(NewIndex(doc), scraped)
	require.Len(t, known, 1)

	res := Merge(doc, fresh)

	assert.Equal(t, []int{2024, 2023}, storeYears(doc))
	require.Len(t, res.Added, 1)
	assert.Equal(t, []int{2024}, res.NewGroups)

	bar := doc.Publications[0].Items[0]
	assert.Equal(t, "Bar", bar.Title)
	assert.Equal(t, "https://example.org/bar", bar.Link)
	assert.Equal(t, 0, bar.Citations, "transient fields are not carried into the store")

	require.Len(t, doc.Publications[1].Items, 1)
	assert.Same(t, foo, doc.Publications[1].Items[0])
	if diff := cmp.Diff(before, foo, cmp.AllowUnexported(Record{})); diff != "" {
		t.Errorf("existing record modified (-want +got):\n%s", diff)
	}
}

func TestMerge_Idempotent(t *testing.T) {
	base := func() *Document {
		return &Document{Publications: []*YearGroup{
			{Year: 2022, Items: []*Record{{Title: "Existing"}}},
		}}
	}
	fresh := []*Record{
		{Title: "New One", Year: 2024, PDF: "/papers/new-one.pdf"},
		{Title: "New Two", Year: 2022},
	}

	once := base()
	Merge(once, fresh)

	twice := base()
	Merge(twice, fresh)
	res := Merge(twice, fresh)

	assert.Empty(t, res.Added)
	assert.Equal(t, 2, res.Duplicates)

	a, err := json.Marshal(once)
	require.NoError(t, err)
	b, err := json.Marshal(twice)
	require.NoError(t, err)
	assert.JSONEq(t, string(a), string(b))
}

func TestMerge_DedupesWithinOneBatch(t *testing.T) {
	doc := &Document{}
	res := Merge(doc, []*Record{
		{Title: "Children's Privacy", Year: 2024},
		{Title: "Children’s privacy", Year: 2024},
		{Title: "Children's Privacy", Year: 2023},
	})

	assert.Len(t, res.Added, 2)
	assert.Equal(t, 1, res.Duplicates)
	assert.Equal(t, []int{2024, 2023}, storeYears(doc))
}

func TestMerge_AppendsAfterExistingItems(t *testing.T) {
	doc := &Document{Publications: []*YearGroup{
		{Year: 2024, Items: []*Record{{Title: "First"}, {Title: "Second"}}},
	}}
	Merge(doc, []*Record{{Title: "Third", Year: 2024}})

	var titles []string
	for _, r := range doc.Publications[0].Items {
		titles = append(titles, r.Title)
	}
	assert.Equal(t, []string{"First", "Second", "Third"}, titles)
}

func TestMerge_UnknownYearGoesLast(t *testing.T) {
	doc := &Document{Publications: []*YearGroup{{Year: 2020}}}
	Merge(doc, []*Record{{Title: "Mystery", Year: 0}, {Title: "Recent", Year: 2025}})
	assert.Equal(t, []int{2025, 2020, 0}, storeYears(doc))
}

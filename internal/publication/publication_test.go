package publication

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleStore = `{
  "publications": [
    {
      "year": 2023,
      "items": [
        {
          "authors": "A. Author, B. Author",
          "title": "Foo",
          "venue": "CHI 2023",
          "link": "https://dl.acm.org/doi/10.1145/1",
          "pdf": "/papers/foo.pdf",
          "award": "Best Paper",
          "doi": "10.1145/1"
        }
      ]
    },
    {
      "year": null,
      "items": [
        {"authors": "C. Author", "title": "Undated", "venue": "", "link": ""}
      ]
    }
  ],
  "updated": "2024-01-01"
}`

func mustDecode(t *testing.T, data string) *Document {
	t.Helper()
	var doc Document
	require.NoError(t, json.Unmarshal([]byte(data), &doc))
	return &doc
}

func TestDocument_Decode(t *testing.T) {
	doc := mustDecode(t, sampleStore)

	require.Len(t, doc.Publications, 2)
	g := doc.Publications[0]
	assert.Equal(t, 2023, g.Year)
	require.Len(t, g.Items, 1)
	assert.Equal(t, "Foo", g.Items[0].Title)
	assert.Equal(t, "/papers/foo.pdf", g.Items[0].PDF)
	assert.Equal(t, "Best Paper", g.Items[0].Award)
	assert.Equal(t, 0, doc.Publications[1].Year)
	assert.Equal(t, 2, doc.Len())
}

func TestDocument_RoundTripKeepsUnknownKeys(t *testing.T) {
	doc := mustDecode(t, sampleStore)

	out, err := json.Marshal(doc)
	require.NoError(t, err)

	var generic map[string]any
	require.NoError(t, json.Unmarshal(out, &generic))
	assert.Equal(t, "2024-01-01", generic["updated"])

	groups := generic["publications"].([]any)
	first := groups[0].(map[string]any)
	item := first["items"].([]any)[0].(map[string]any)
	assert.Equal(t, "10.1145/1", item["doi"])
	assert.Equal(t, "Best Paper", item["award"])

	second := groups[1].(map[string]any)
	assert.Nil(t, second["year"], "unknown year must stay null")
}

func TestRecord_MarshalOmitsEmptyOptionalFields(t *testing.T) {
	r := &Record{Authors: "X", Title: "Q&A <study>", Year: 2024, Citations: 12}
	out, err := json.Marshal(r)
	require.NoError(t, err)
	assert.JSONEq(t, `{"authors":"X","title":"Q&A <study>","venue":"","link":""}`, string(out))
}

func TestIndex(t *testing.T) {
	doc := mustDecode(t, sampleStore)
	ix := NewIndex(doc)

	assert.Equal(t, 2, ix.Len())
	assert.True(t, ix.Has("foo"))
	assert.True(t, ix.Has("  FOO! "))
	assert.False(t, ix.Has("Bar"))

	r, ok := ix.Lookup("Foo.")
	require.True(t, ok)
	assert.Same(t, doc.Publications[0].Items[0], r, "lookup must return the live record")

	r.PDF = "/papers/changed.pdf"
	assert.Equal(t, "/papers/changed.pdf", doc.Publications[0].Items[0].PDF)
}

func TestIndex_FirstOccurrenceWins(t *testing.T) {
	newer := &Record{Title: "Same Title", Venue: "newer"}
	older := &Record{Title: "same title", Venue: "older"}
	doc := &Document{Publications: []*YearGroup{
		{Year: 2024, Items: []*Record{newer}},
		{Year: 2020, Items: []*Record{older}},
	}}

	r, ok := NewIndex(doc).Lookup("Same title")
	require.True(t, ok)
	assert.Same(t, newer, r)
}

func TestPartition(t *testing.T) {
	doc := mustDecode(t, sampleStore)
	ix := NewIndex(doc)

	scraped := []*Record{
		{Title: "Foo", Year: 2023},
		{Title: "Bar", Year: 2024},
		{Title: "undated", Year: 0},
	}
	fresh, known := Partition(ix, scraped)

	require.Len(t, fresh, 1)
	assert.Equal(t, "Bar", fresh[0].Title)
	assert.Len(t, known, 2)
}

func TestSortGroups(t *testing.T) {
	doc := &Document{Publications: []*YearGroup{
		{Year: 0}, {Year: 2021}, {Year: 2024}, {Year: 2022},
	}}
	doc.SortGroups()

	var years []int
	for _, g := range doc.Publications {
		years = append(years, g.Year)
	}
	assert.Equal(t, []int{2024, 2022, 2021, 0}, years)
}

// Package publication defines the persisted publication record and the
// operations over it: indexing by normalized title and merging scrape results.
package publication

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Record is one publication. The exported JSON fields are exactly what the
// website reads; scrape-scoped fields are never persisted.
type Record struct {
	Authors string
	Title   string
	Venue   string
	Link    string
	PDF     string // Public-facing relative path, e.g. /papers/foo.pdf
	Award   string

	// Scrape-scoped
	Year      int    // 0 if unknown
	Citations int    // Citation count reported by the listing
	DetailURL string // Listing detail page
	PDFLink   string // Standalone PDF anchor on the detail page, if distinct from Link

	// Keys present in the store that this package does not model.
	extra map[string]json.RawMessage
}

// YearGroup is the persisted unit of grouping. Year 0 means unknown and is
// serialized as null.
type YearGroup struct {
	Year  int
	Items []*Record
}

// Document is the whole persisted store.
type Document struct {
	Publications []*YearGroup

	extra map[string]json.RawMessage
}

var recordKeys = []string{"authors", "title", "venue", "link", "pdf", "award"}

// Clone returns a copy carrying only the persisted fields.
func (r *Record) Clone() *Record {
	c := &Record{
		Authors: r.Authors,
		Title:   r.Title,
		Venue:   r.Venue,
		Link:    r.Link,
		PDF:     r.PDF,
		Award:   r.Award,
	}
	if len(r.extra) > 0 {
		c.extra = make(map[string]json.RawMessage, len(r.extra))
		for k, v := range r.extra {
			c.extra[k] = v
		}
	}
	return c
}

// MarshalJSON writes authors, title, venue and link always, pdf and award
// when set, followed by any unmodeled keys in sorted order.
func (r *Record) MarshalJSON() ([]byte, error) {
	fields := []field{
		{"authors", r.Authors},
		{"title", r.Title},
		{"venue", r.Venue},
		{"link", r.Link},
	}
	if r.PDF != "" {
		fields = append(fields, field{"pdf", r.PDF})
	}
	if r.Award != "" {
		fields = append(fields, field{"award", r.Award})
	}
	return encodeObject(fields, r.extra)
}

// UnmarshalJSON reads a store item, keeping unmodeled keys.
func (r *Record) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	targets := map[string]*string{
		"authors": &r.Authors,
		"title":   &r.Title,
		"venue":   &r.Venue,
		"link":    &r.Link,
		"pdf":     &r.PDF,
		"award":   &r.Award,
	}
	for _, key := range recordKeys {
		v, ok := raw[key]
		if !ok {
			continue
		}
		delete(raw, key)
		if string(v) == "null" {
			continue
		}
		if err := json.Unmarshal(v, targets[key]); err != nil {
			return fmt.Errorf("field %q: %w", key, err)
		}
	}
	if len(raw) > 0 {
		r.extra = raw
	}
	return nil
}

// MarshalJSON writes {"year": ..., "items": [...]}.
func (g *YearGroup) MarshalJSON() ([]byte, error) {
	var year any
	if g.Year != 0 {
		year = g.Year
	}
	items := g.Items
	if items == nil {
		items = []*Record{}
	}
	return encodeObject([]field{{"year", year}, {"items", items}}, nil)
}

// UnmarshalJSON accepts a null year as unknown.
func (g *YearGroup) UnmarshalJSON(data []byte) error {
	var raw struct {
		Year  *int      `json:"year"`
		Items []*Record `json:"items"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	g.Year = 0
	if raw.Year != nil {
		g.Year = *raw.Year
	}
	g.Items = raw.Items
	return nil
}

// MarshalJSON writes the publications list first, then any other top-level
// keys the file carried.
func (d *Document) MarshalJSON() ([]byte, error) {
	groups := d.Publications
	if groups == nil {
		groups = []*YearGroup{}
	}
	return encodeObject([]field{{"publications", groups}}, d.extra)
}

// UnmarshalJSON reads the store, keeping unmodeled top-level keys.
func (d *Document) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if v, ok := raw["publications"]; ok {
		delete(raw, "publications")
		if err := json.Unmarshal(v, &d.Publications); err != nil {
			return fmt.Errorf("publications: %w", err)
		}
	}
	if len(raw) > 0 {
		d.extra = raw
	}
	return nil
}

// Group returns the group for a year, or nil.
func (d *Document) Group(year int) *YearGroup {
	for _, g := range d.Publications {
		if g.Year == year {
			return g
		}
	}
	return nil
}

// Len returns the number of records across all groups.
func (d *Document) Len() int {
	n := 0
	for _, g := range d.Publications {
		n += len(g.Items)
	}
	return n
}

// SortGroups orders groups by year, newest first, with unknown years last.
// Item order within a group is untouched.
func (d *Document) SortGroups() {
	sort.SliceStable(d.Publications, func(i, j int) bool {
		a, b := d.Publications[i].Year, d.Publications[j].Year
		if a == 0 || b == 0 {
			return b == 0 && a != 0
		}
		return a > b
	})
}

type field struct {
	key   string
	value any
}

// encodeObject writes an object with keys in the given order. HTML escaping
// is disabled so titles like "Q&A" stay readable in the store.
func encodeObject(fields []field, extra map[string]json.RawMessage) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	write := func(i int, key string, v any) error {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := marshalNoEscape(key)
		if err != nil {
			return err
		}
		buf.Write(k)
		buf.WriteByte(':')
		b, err := marshalNoEscape(v)
		if err != nil {
			return fmt.Errorf("encoding %q: %w", key, err)
		}
		buf.Write(b)
		return nil
	}

	for i, f := range fields {
		if err := write(i, f.key, f.value); err != nil {
			return nil, err
		}
	}

	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for i, k := range keys {
		if err := write(len(fields)+i, k, extra[k]); err != nil {
			return nil, err
		}
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func marshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

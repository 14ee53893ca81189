package publication

import "github.com/labsite/pubsync/internal/title"

// Index answers "is this title already in the store" and gives access to the
// live record so its pdf path can be updated in place. It is built once per
// run and not modified afterwards.
type Index struct {
	titles map[string]struct{}
	byKey  map[string]*Record
}

// NewIndex indexes every record in the document by normalized title. When
// the same key appears in more than one year group, the first occurrence
// (the most recent year in a sorted store) is the one returned by Lookup.
func NewIndex(doc *Document) *Index {
	ix := &Index{
		titles: make(map[string]struct{}),
		byKey:  make(map[string]*Record),
	}
	for _, g := range doc.Publications {
		for _, item := range g.Items {
			key := title.Normalize(item.Title)
			ix.titles[key] = struct{}{}
			if _, seen := ix.byKey[key]; !seen {
				ix.byKey[key] = item
			}
		}
	}
	return ix
}

// Has reports whether a record with the same normalized title exists.
func (ix *Index) Has(t string) bool {
	_, ok := ix.titles[title.Normalize(t)]
	return ok
}

// Lookup returns the live record for a title.
func (ix *Index) Lookup(t string) (*Record, bool) {
	r, ok := ix.byKey[title.Normalize(t)]
	return r, ok
}

// Len returns the number of distinct normalized titles.
func (ix *Index) Len() int {
	return len(ix.titles)
}

// Partition splits scraped records into those not yet in the store and those
// already known.
func Partition(ix *Index, scraped []*Record) (fresh, known []*Record) {
	for _, r := range scraped {
		if ix.Has(r.Title) {
			known = append(known, r)
		} else {
			fresh = append(fresh, r)
		}
	}
	return fresh, known
}

package publication

import "github.com/labsite/pubsync/internal/title"

// MergeResult describes what Merge changed.
type MergeResult struct {
	Added      []*Record // Copies appended to the document
	Duplicates int       // Records skipped because their group already had the title
	NewGroups  []int     // Years for which a group was created
}

// Merge appends fresh records to their year groups. A record whose
// normalized title already exists in its year group is skipped, which makes
// merging the same input twice a no-op. Groups are re-sorted newest first
// afterwards; order inside a group is append-stable.
func Merge(doc *Document, fresh []*Record) MergeResult {
	var res MergeResult

	keys := make(map[*YearGroup]map[string]struct{})
	groupKeys := func(g *YearGroup) map[string]struct{} {
		if k, ok := keys[g]; ok {
			return k
		}
		k := make(map[string]struct{}, len(g.Items))
		for _, item := range g.Items {
			k[title.Normalize(item.Title)] = struct{}{}
		}
		keys[g] = k
		return k
	}

	for _, r := range fresh {
		g := doc.Group(r.Year)
		if g == nil {
			g = &YearGroup{Year: r.Year}
			doc.Publications = append(doc.Publications, g)
			res.NewGroups = append(res.NewGroups, r.Year)
		}

		key := title.Normalize(r.Title)
		k := groupKeys(g)
		if _, dup := k[key]; dup {
			res.Duplicates++
			continue
		}
		k[key] = struct{}{}

		entry := &Record{
			Authors: r.Authors,
			Title:   r.Title,
			Venue:   r.Venue,
			Link:    r.Link,
			PDF:     r.PDF,
		}
		g.Items = append(g.Items, entry)
		res.Added = append(res.Added, entry)
	}

	doc.SortGroups()
	return res
}

package scholar

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/labsite/pubsync/internal/publication"
)

// Selectors of the profile listing and citation detail pages.
const (
	SelTable    = "#gsc_a_b"
	SelRow      = "#gsc_a_b .gsc_a_tr"
	SelShowMore = "#gsc_bpf_more"

	selTitle     = ".gsc_a_at"
	selGray      = ".gs_gray"
	selCitations = ".gsc_a_c a"
	selYear      = ".gsc_a_y span"

	selDetailLink  = "a.gsc_oci_title_link"
	selDetailGGPDF = "#gsc_oci_title_gg a"
)

var challengeMarkers = []string{"unusual traffic", "captcha", "/sorry/"}

// IsChallenge reports whether a page is an anti-bot interstitial.
func IsChallenge(html string) bool {
	for _, m := range challengeMarkers {
		if strings.Contains(html, m) {
			return true
		}
	}
	return false
}

func parse(html string) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

// countRows returns the number of listing rows currently rendered.
func countRows(doc *goquery.Document) int {
	return doc.Find(SelRow).Length()
}

// canShowMore reports whether the show-more button is present and enabled.
func canShowMore(doc *goquery.Document) bool {
	btn := doc.Find(SelShowMore).First()
	if btn.Length() == 0 {
		return false
	}
	if _, disabled := btn.Attr("disabled"); disabled {
		return false
	}
	style, _ := btn.Attr("style")
	style = strings.ReplaceAll(strings.ToLower(style), " ", "")
	return !strings.Contains(style, "display:none")
}

// ParseListing extracts one record per listing row. Rows without a title are
// dropped. Detail paths are resolved against base.
func ParseListing(html, base string) ([]*publication.Record, error) {
	doc, err := parse(html)
	if err != nil {
		return nil, err
	}
	baseURL, _ := url.Parse(base)

	var records []*publication.Record
	doc.Find(SelRow).Each(func(_ int, row *goquery.Selection) {
		titleEl := row.Find(selTitle).First()
		title := strings.TrimSpace(titleEl.Text())
		if title == "" {
			return
		}
		grays := row.Find(selGray)
		r := &publication.Record{
			Title:     title,
			Authors:   strings.TrimSpace(grays.Eq(0).Text()),
			Venue:     strings.TrimSpace(grays.Eq(1).Text()),
			Citations: atoi(row.Find(selCitations).First().Text()),
			Year:      atoi(row.Find(selYear).First().Text()),
		}
		if href, ok := titleEl.Attr("href"); ok {
			r.DetailURL = absolute(baseURL, href)
		}
		records = append(records, r)
	})
	return records, nil
}

// ParseDetail returns the publication's landing link and, when the page
// offers a separate full-text anchor, that anchor as pdfLink.
func ParseDetail(html, base string) (link, pdfLink string, err error) {
	doc, err := parse(html)
	if err != nil {
		return "", "", err
	}
	baseURL, _ := url.Parse(base)

	href := func(sel string) string {
		h, _ := doc.Find(sel).First().Attr("href")
		return absolute(baseURL, h)
	}

	link = href(selDetailLink)
	gg := href(selDetailGGPDF)
	if link == "" {
		link = gg
	}
	if gg != "" && gg != link {
		pdfLink = gg
	}
	return link, pdfLink, nil
}

func atoi(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

func absolute(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	return u.String()
}

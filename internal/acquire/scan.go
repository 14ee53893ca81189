package acquire

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/labsite/pubsync/internal/resolve"
)

// ScanResult is what a landing page reveals about its PDF.
type ScanResult struct {
	Candidates []string // citation_pdf_url first, then matching anchors
	DOI        string
}

// ScanPage inspects a rendered landing page. Anchors qualify when their path
// ends in .pdf or when their text, aria-label or title mentions "pdf" or
// "download". This loose heuristic also matches supplementary material and
// citation exports; the integrity checks reject those downstream.
func ScanPage(html, base string) (ScanResult, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ScanResult{}, err
	}
	baseURL, _ := url.Parse(base)

	var res ScanResult
	seen := make(map[string]bool)
	add := func(raw string) {
		u := absolute(baseURL, raw)
		if u == "" || seen[u] {
			return
		}
		seen[u] = true
		res.Candidates = append(res.Candidates, u)
	}

	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		name, _ := s.Attr("name")
		content, _ := s.Attr("content")
		switch {
		case strings.EqualFold(name, "citation_pdf_url"):
			add(content)
		case strings.EqualFold(name, "citation_doi") && res.DOI == "":
			res.DOI = resolve.ExtractDOI(content)
		case strings.EqualFold(name, "dc.identifier") && res.DOI == "":
			res.DOI = resolve.ExtractDOI(content)
		}
	})

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if isPDFAnchor(baseURL, href, s) {
			add(href)
		}
	})
	return res, nil
}

func isPDFAnchor(base *url.URL, href string, s *goquery.Selection) bool {
	if u := absolute(base, href); u != "" {
		if p, err := url.Parse(u); err == nil && strings.HasSuffix(strings.ToLower(p.Path), ".pdf") {
			return true
		}
	}
	label, _ := s.Attr("aria-label")
	title, _ := s.Attr("title")
	text := strings.ToLower(s.Text() + " " + label + " " + title)
	return strings.Contains(text, "pdf") || strings.Contains(text, "download")
}

// absolute resolves ref against base and keeps only http(s) results.
func absolute(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "#") {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	u.Fragment = ""
	s := u.String()
	if !resolve.IsHTTP(s) {
		return ""
	}
	return s
}

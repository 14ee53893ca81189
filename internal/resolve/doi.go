package resolve

import (
	"net/url"
	"regexp"
	"strings"
)

var doiPattern = regexp.MustCompile(`10\.\d{4,9}/[^\s?#&"<>]+`)

// ExtractDOI returns the DOI embedded in a URL or free text, or "".
func ExtractDOI(s string) string {
	if dec, err := url.PathUnescape(s); err == nil {
		s = dec
	}
	doi := doiPattern.FindString(s)
	if doi == "" {
		return ""
	}
	for {
		trimmed := strings.TrimRight(doi, ".,;:)/]")
		for _, suffix := range []string{".pdf", ".full", ".abstract"} {
			trimmed = strings.TrimSuffix(trimmed, suffix)
		}
		if trimmed == doi {
			return doi
		}
		doi = trimmed
	}
}

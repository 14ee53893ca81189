package resolve

import (
	"regexp"
	"strings"
)

func identity(link string, _ []string) []string { return []string{link} }

func none(string, []string) []string { return nil }

// template builds a single candidate by substituting submatch 1 for %s.
func template(format string) func(string, []string) []string {
	return func(_ string, m []string) []string {
		return []string{strings.ReplaceAll(format, "%s", m[1])}
	}
}

// DefaultRules returns the built-in publisher conventions in priority order.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:    "direct-pdf",
			Pattern: regexp.MustCompile(`(?i)\.pdf(?:[?#]|$)`),
			Build:   identity,
		},
		{
			Name:    "arxiv-abs",
			Pattern: regexp.MustCompile(`arxiv\.org/abs/([^?#]+?)/?(?:[?#]|$)`),
			Build:   template("https://arxiv.org/pdf/%s.pdf"),
		},
		{
			Name:    "arxiv-pdf",
			Pattern: regexp.MustCompile(`arxiv\.org/pdf/([^?#]+?)/?(?:[?#]|$)`),
			Build:   template("https://arxiv.org/pdf/%s.pdf"),
		},
		{
			Name:    "acm",
			Pattern: regexp.MustCompile(`dl\.acm\.org/doi/(?:abs/|full/|epdf/)?(10\.\d+/[^?#]+)`),
			Build: func(_ string, m []string) []string {
				pdf := "https://dl.acm.org/doi/pdf/" + m[1]
				return []string{pdf, pdf + "?download=true"}
			},
		},
		{
			Name:    "springer",
			Pattern: regexp.MustCompile(`link\.springer\.com/(?:article|chapter)/(10\.\d+/[^?#]+)`),
			Build:   template("https://link.springer.com/content/pdf/%s.pdf"),
		},
		{
			Name:    "mdpi",
			Pattern: regexp.MustCompile(`mdpi\.com/`),
			Build: func(link string, _ []string) []string {
				if strings.Contains(link, "/pdf") {
					return []string{link}
				}
				return []string{strings.TrimRight(link, "/") + "/pdf"}
			},
		},
		{
			Name:    "tandf",
			Pattern: regexp.MustCompile(`tandfonline\.com/doi/(?:abs|full)/(10\.\d+/[^?#]+)`),
			Build:   template("https://www.tandfonline.com/doi/pdf/%s"),
		},
		{
			Name:    "wiley",
			Pattern: regexp.MustCompile(`onlinelibrary\.wiley\.com/doi/(?:abs/|full/|epdf/)?(10\.\d+/[^?#]+)`),
			Build:   template("https://onlinelibrary.wiley.com/doi/pdfdirect/%s"),
		},
		{
			Name:    "sage",
			Pattern: regexp.MustCompile(`journals\.sagepub\.com/doi/(?:abs/|full/)?(10\.\d+/[^?#]+)`),
			Build:   template("https://journals.sagepub.com/doi/pdf/%s"),
		},
		{
			Name:    "ieee",
			Pattern: regexp.MustCompile(`ieeexplore\.ieee\.org/(?:abstract/)?document/(\d+)`),
			Build:   template("https://ieeexplore.ieee.org/stamp/stamp.jsp?tp=&arnumber=%s"),
		},
		{
			Name:    "openreview",
			Pattern: regexp.MustCompile(`openreview\.net/forum\?(?:[^#]*&)?id=([^&#]+)`),
			Build:   template("https://openreview.net/pdf?id=%s"),
		},
		{
			Name:    "biorxiv",
			Pattern: regexp.MustCompile(`((?:bio|med)rxiv\.org)/content/(10\.\d+/[^?#]+?)(?:\.full|\.abstract)?/?(?:[?#]|$)`),
			Build: func(_ string, m []string) []string {
				return []string{"https://www." + m[1] + "/content/" + m[2] + ".full.pdf"}
			},
		},
		{
			Name:    "aclanthology",
			Pattern: regexp.MustCompile(`aclanthology\.org/([A-Za-z0-9][A-Za-z0-9.\-]*?)/?(?:[?#]|$)`),
			Build:   template("https://aclanthology.org/%s.pdf"),
		},
		{
			Name:    "sciencedirect",
			Pattern: regexp.MustCompile(`sciencedirect\.com`),
			Build:   none,
		},
		{
			Name:    "doi-org",
			Pattern: regexp.MustCompile(`(?:^|[/.])doi\.org/10\.`),
			Build:   none,
		},
		{
			Name:    "drive",
			Pattern: regexp.MustCompile(`drive\.google\.com/file/d/([^/?#]+)`),
			Build:   template("https://drive.google.com/uc?export=download&id=%s"),
		},
		{
			Name:    "generic-pdf-path",
			Pattern: regexp.MustCompile(`/pdf[/?]`),
			Build:   identity,
		},
	}
}

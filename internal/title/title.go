// Package title derives matching keys and file names from publication titles.
package title

import (
	"crypto/sha1"
	"encoding/hex"
	"regexp"
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"
)

// SlugMaxLen bounds the length of file names derived from titles.
const SlugMaxLen = 80

var (
	quoteReplacer = strings.NewReplacer(
		"‘", "", "’", "",
		"“", "", "”", "", "„", "",
		`"`, "", "'", "",
	)
	nonKeyChars   = regexp.MustCompile(`[^a-z0-9\s]`)
	whitespaceRun = regexp.MustCompile(`\s+`)
	nonSlugChars  = regexp.MustCompile(`[^a-z0-9]+`)
)

// Normalize returns the lookup key for a title: lower-cased, quotes and
// punctuation removed, whitespace collapsed. Two titles that differ only in
// case, quote style or punctuation produce the same key.
func Normalize(t string) string {
	t = strings.ToLower(t)
	t = quoteReplacer.Replace(t)
	t = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return ' '
		}
		return r
	}, t)
	t = nonKeyChars.ReplaceAllString(t, "")
	t = whitespaceRun.ReplaceAllString(t, " ")
	return strings.TrimSpace(t)
}

// Slug returns a filesystem-safe name for a title, without extension.
// The output matches the names produced by the earlier site tooling so that
// already-downloaded files are recognized.
func Slug(t string) string {
	s := nonSlugChars.ReplaceAllString(strings.ToLower(t), "-")
	s = strings.Trim(s, "-")
	if s == "" {
		sum := sha1.Sum([]byte(t))
		return "publication-" + hex.EncodeToString(sum[:])[:8]
	}
	if len(s) > SlugMaxLen {
		s = s[:SlugMaxLen]
	}
	return s
}

// Similarity scores two titles in [0, 1] by Jaro-Winkler distance over their
// normalized forms. It is only used to warn about likely duplicates.
func Similarity(a, b string) float64 {
	na, nb := Normalize(a), Normalize(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}
	return matchr.JaroWinkler(na, nb, false)
}

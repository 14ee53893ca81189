package title

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "Hello World", "hello world"},
		{"straight apostrophe", "Children's Privacy", "childrens privacy"},
		{"curly apostrophe", "Children’s Privacy", "childrens privacy"},
		{"curly double quotes", "“Smart” Homes", "smart homes"},
		{"low double quote", "„Quoted“", "quoted"},
		{"trailing punctuation", "Design Matters!", "design matters"},
		{"colon and dash", "VR: A Study - Part 1", "vr a study part 1"},
		{"collapse whitespace", "  many   spaces\there\n", "many spaces here"},
		{"non-breaking space", "a b", "a b"},
		{"accents dropped", "Café culture", "caf culture"},
		{"empty", "", ""},
		{"only punctuation", "?!.", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.input))
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"Children’s Privacy in the Age of AI",
		"  “Hey, Siri!” — voice   assistants ",
		"CHI '24: Extended Abstracts",
		"Über-long\ttitle with odd spaces",
		"",
	}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "input %q", in)
	}
}

func TestNormalize_EquivalentTitles(t *testing.T) {
	assert.Equal(t, Normalize("Children's Privacy"), Normalize("childrens privacy"))
	assert.Equal(t, Normalize("Children’s Privacy."), Normalize("CHILDRENS PRIVACY"))
}

func TestSlug(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Hello World", "hello-world"},
		{"Children's Privacy: A Study", "children-s-privacy-a-study"},
		{"  --Leading and trailing--  ", "leading-and-trailing"},
		{"C++ & Rust", "c-rust"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Slug(tt.input), "input %q", tt.input)
	}
}

func TestSlug_Truncates(t *testing.T) {
	long := strings.Repeat("word ", 40)
	got := Slug(long)
	assert.Len(t, got, SlugMaxLen)
	assert.True(t, strings.HasPrefix(got, "word-word-"))
}

func TestSlug_NoASCII(t *testing.T) {
	got := Slug("中文标题")
	assert.True(t, strings.HasPrefix(got, "publication-"))
	assert.Len(t, got, len("publication-")+8)
	assert.Equal(t, got, Slug("中文标题"))
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("Children's Privacy", "childrens privacy"))
	assert.Equal(t, 0.0, Similarity("", "anything"))
	assert.Greater(t, Similarity(
		"Designing Privacy Tools for Children",
		"Designing Privacy Tool for Children",
	), 0.95)
	assert.Less(t, Similarity("Virtual reality sickness", "Privacy of smart speakers"), 0.85)
}

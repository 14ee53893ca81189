// Package resolve maps publication landing URLs to candidate direct PDF URLs
// by pure string rewriting. Publisher conventions live in an ordered rule
// table; the first matching rule decides the candidates.
package resolve

import (
	"net/url"
	"regexp"
	"strings"
)

// Rule rewrites URLs matching Pattern. Build receives the trimmed URL and the
// submatches of Pattern. A nil or empty result means the rule matched but
// defers to live-page discovery.
type Rule struct {
	Name    string
	Pattern *regexp.Regexp
	Build   func(link string, m []string) []string
}

// Resolver applies an ordered rule table.
type Resolver struct {
	rules []Rule
}

// New returns a resolver over rules, tried in the given order.
func New(rules ...Rule) *Resolver {
	r := &Resolver{rules: make([]Rule, len(rules))}
	copy(r.rules, rules)
	return r
}

// Default returns a resolver over DefaultRules.
func Default() *Resolver {
	return New(DefaultRules()...)
}

// Register adds a rule ahead of the existing ones.
func (r *Resolver) Register(rule Rule) {
	r.rules = append([]Rule{rule}, r.rules...)
}

// Rules returns the rule names in priority order.
func (r *Resolver) Rules() []string {
	names := make([]string, len(r.rules))
	for i, rule := range r.rules {
		names[i] = rule.Name
	}
	return names
}

// Resolve returns the candidate PDF URLs for link, best first. Unknown
// domains and rules that defer to the live page yield no candidates.
// Candidates that are not absolute http(s) URLs are dropped.
func (r *Resolver) Resolve(link string) []string {
	rule, m := r.match(link)
	if rule == nil {
		return nil
	}

	var out []string
	seen := make(map[string]bool)
	for _, c := range rule.Build(strings.TrimSpace(link), m) {
		if !IsHTTP(c) || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

// Explain returns the name of the rule that handles link, or "" if none does.
func (r *Resolver) Explain(link string) string {
	if rule, _ := r.match(link); rule != nil {
		return rule.Name
	}
	return ""
}

func (r *Resolver) match(link string) (*Rule, []string) {
	link = strings.TrimSpace(link)
	if link == "" {
		return nil, nil
	}
	for i := range r.rules {
		if m := r.rules[i].Pattern.FindStringSubmatch(link); m != nil {
			return &r.rules[i], m
		}
	}
	return nil, nil
}

// IsHTTP reports whether s is an absolute http or https URL.
func IsHTTP(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

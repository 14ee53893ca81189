package main

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/labsite/pubsync/internal/resolve"
)

var resolveListRules bool

func init() {
	resolveCmd.Flags().BoolVar(&resolveListRules, "rules", false, "List the publisher rules in priority order")
	rootCmd.AddCommand(resolveCmd)
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <url>...",
	Short: "Show the direct PDF candidates for publication URLs",
	Long: `Apply the publisher rewrite rules to each URL without touching the network.
Prints the matching rule, the candidate PDF URLs in the order they would be
tried, and any DOI found in the URL.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if resolveListRules {
			return nil
		}
		return cobra.MinimumNArgs(1)(cmd, args)
	},
	RunE: runResolve,
}

// ResolveResult is the response for one URL of the resolve command.
type ResolveResult struct {
	URL        string   `json:"url"`
	Rule       string   `json:"rule,omitempty"`
	Candidates []string `json:"candidates"`
	DOI        string   `json:"doi,omitempty"`
}

func resolveURLs(r *resolve.Resolver, urls []string) []ResolveResult {
	results := make([]ResolveResult, 0, len(urls))
	for _, u := range urls {
		u = strings.TrimSpace(u)
		c := r.Resolve(u)
		if c == nil {
			c = []string{}
		}
		results = append(results, ResolveResult{
			URL:        u,
			Rule:       r.Explain(u),
			Candidates: c,
			DOI:        resolve.ExtractDOI(u),
		})
	}
	return results
}

func runResolve(cmd *cobra.Command, args []string) error {
	r := resolve.Default()

	if resolveListRules {
		if humanOutput {
			for i, name := range r.Rules() {
				fmt.Printf("%2d. %s\n", i+1, name)
			}
			return nil
		}
		return outputJSON(r.Rules())
	}

	results := resolveURLs(r, args)
	if !humanOutput {
		return outputJSON(results)
	}

	t := newTable("")
	t.AppendHeader(table.Row{"URL", "Rule", "Candidates", "DOI"})
	for _, res := range results {
		rule := res.Rule
		if rule == "" {
			rule = "(none)"
		}
		cands := strings.Join(res.Candidates, "\n")
		if cands == "" {
			cands = "-"
		}
		t.AppendRow(table.Row{res.URL, rule, cands, res.DOI})
		t.AppendSeparator()
	}
	t.Render()
	return nil
}

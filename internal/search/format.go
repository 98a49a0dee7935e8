package search

import (
	"fmt"
	"strings"

	"github.com/young1lin/searchbridge/internal/models"
)

// FormatResults renders results as a numbered plain-text list
func FormatResults(query string, results []models.SearchResult) string {
	if len(results) == 0 {
		return "No search results found."
	}

	var b strings.Builder
	if query != "" {
		fmt.Fprintf(&b, "Search results for: %s\n\n", query)
	}
	for i, r := range results {
		fmt.Fprintf(&b, "%d. %s\n", i+1, r.Title)
		if r.URL != "" {
			fmt.Fprintf(&b, "   URL: %s\n", r.URL)
		}
		if r.Description != "" {
			fmt.Fprintf(&b, "   %s\n", truncate(r.Description, 500))
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

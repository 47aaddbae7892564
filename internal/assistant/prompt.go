package assistant

import (
	"fmt"
	"strings"

	"agentx/internal/domain"
)

const framing = "You are a careful assistant answering questions about the user's evidence documents. " +
	"Use the excerpts below when they are relevant."

const instructions = "Answer using the excerpts above where they apply. " +
	"Cite excerpts as [Source n]. If the excerpts do not contain the answer, say so and answer from general knowledge."

// BuildPrompt returns query unchanged when there are no results, otherwise
// the framing, labelled excerpts, the question and citation instructions.
func BuildPrompt(query string, results []domain.SearchResult) string {
	if len(results) == 0 {
		return query
	}
	var b strings.Builder
	b.WriteString(framing)
	b.WriteString("\n\n")
	for i, r := range results {
		fmt.Fprintf(&b, "[Source %d: %s]\n%s\n\n", i+1, r.Chunk.Source, strings.TrimSpace(r.Chunk.Text))
	}
	b.WriteString("Question: ")
	b.WriteString(query)
	b.WriteString("\n\n")
	b.WriteString(instructions)
	return b.String()
}

// SourceNames lists unique source names in first-seen order.
func SourceNames(results []domain.SearchResult) []string {
	seen := make(map[string]struct{}, len(results))
	var out []string
	for _, r := range results {
		if _, ok := seen[r.Chunk.Source]; ok {
			continue
		}
		seen[r.Chunk.Source] = struct{}{}
		out = append(out, r.Chunk.Source)
	}
	return out
}

func sourcesFooter(names []string) string {
	return "\n\nSources: " + strings.Join(names, ", ")
}

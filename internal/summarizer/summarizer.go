// Package summarizer condenses ingested evidence into a few representative
// sentences for the ingestion report.
package summarizer

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

// DefaultSentences is used when the caller asks for zero or fewer sentences.
const DefaultSentences = 5

var (
	wordRe     = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
	sentenceRe = regexp.MustCompile(`(?U)[^.!?\n]+[.!?]`)
)

// Frequency scores sentences by the normalised frequency of their content
// words and keeps the best ones in document order.
type Frequency struct {
	stopwords map[string]struct{}
}

func New() *Frequency {
	return &Frequency{stopwords: stopwords()}
}

func (f *Frequency) Summarize(text string, maxSentences int) (string, error) {
	if maxSentences <= 0 {
		maxSentences = DefaultSentences
	}
	sentences := sentenceRe.FindAllString(text, -1)
	if len(sentences) == 0 {
		return strings.TrimSpace(text), nil
	}

	tokens := make([][]string, len(sentences))
	freq := map[string]float64{}
	top := 0.0
	for i, sent := range sentences {
		tokens[i] = f.content(sent)
		for _, tok := range tokens[i] {
			freq[tok]++
			top = math.Max(top, freq[tok])
		}
	}

	scores := make([]float64, len(sentences))
	for i, toks := range tokens {
		if len(toks) == 0 || top == 0 {
			continue
		}
		for _, tok := range toks {
			scores[i] += freq[tok] / top
		}
		scores[i] /= math.Sqrt(float64(len(toks)))
	}

	order := make([]int, len(sentences))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return scores[order[a]] > scores[order[b]] })
	if maxSentences < len(order) {
		order = order[:maxSentences]
	}
	sort.Ints(order)

	out := make([]string, 0, len(order))
	for _, i := range order {
		out = append(out, strings.TrimSpace(sentences[i]))
	}
	return strings.Join(out, " "), nil
}

func (f *Frequency) content(sentence string) []string {
	words := wordRe.FindAllString(strings.ToLower(sentence), -1)
	out := words[:0]
	for _, w := range words {
		if _, stop := f.stopwords[w]; !stop {
			out = append(out, w)
		}
	}
	return out
}

func stopwords() map[string]struct{} {
	words := strings.Fields(`a an the and or but if then else for to of in on at by with as is are was were
		be been being it its this that these those from up down over under again further than so such into
		about between through during before after above below out off own same too very can will just
		should now i you he she we they me him her us them my your our their not no`)
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

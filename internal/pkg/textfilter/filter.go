// Package textfilter rejects search input made of nothing but disallowed
// words before it reaches the recommendation backend.
package textfilter

import (
	"bufio"
	_ "embed"
	"strings"
	"sync"
	"unicode"

	ahocorasick "github.com/petar-dambovaliev/aho-corasick"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

//go:embed blocked_words.txt
var defaultWords string

// Filter matches text against a fixed dictionary of blocked words.
type Filter struct {
	mu      sync.Mutex
	matcher ahocorasick.AhoCorasick
	words   int
}

// New builds a filter from the embedded dictionary plus extra words.
func New(logger *zap.Logger, extra ...string) *Filter {
	if logger == nil {
		logger = zap.NewNop()
	}
	words := DefaultWords()
	words = append(words, extra...)

	seen := make(map[string]struct{}, len(words))
	patterns := make([]string, 0, len(words))
	for _, w := range words {
		w = normalize(w)
		if w == "" {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		patterns = append(patterns, w)
	}

	builder := ahocorasick.NewAhoCorasickBuilder(ahocorasick.Opts{
		AsciiCaseInsensitive: true,
		MatchOnlyWholeWords:  false,
		MatchKind:            ahocorasick.LeftMostLongestMatch,
		DFA:                  true,
	})
	logger.Info("Content filter initialized", zap.Int("patterns", len(patterns)))
	return &Filter{
		matcher: builder.Build(patterns),
		words:   len(patterns),
	}
}

// DefaultWords returns the embedded dictionary.
func DefaultWords() []string {
	var out []string
	sc := bufio.NewScanner(strings.NewReader(defaultWords))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}

// Size is the number of distinct patterns.
func (f *Filter) Size() int {
	return f.words
}

// IsAbusiveOnlyInput reports whether text contains at least one blocked word
// and nothing else apart from spaces, punctuation and symbols.
func (f *Filter) IsAbusiveOnlyInput(text string) bool {
	if f.words == 0 {
		return false
	}
	haystack := normalize(text)
	matches := f.findAll(haystack)
	if len(matches) == 0 {
		return false
	}

	var rest strings.Builder
	prev := 0
	for _, m := range matches {
		rest.WriteString(haystack[prev:m.Start()])
		prev = m.End()
	}
	rest.WriteString(haystack[prev:])

	for _, r := range rest.String() {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			return false
		}
	}
	return true
}

func (f *Filter) findAll(haystack string) []ahocorasick.Match {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.matcher.FindAll(haystack)
}

// normalize applies NFKC and case folding. A Caser is stateful, so each call
// gets its own.
func normalize(s string) string {
	return strings.TrimSpace(cases.Fold().String(norm.NFKC.String(s)))
}

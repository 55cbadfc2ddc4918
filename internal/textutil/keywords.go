package textutil

import (
	"sort"
	"strings"
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
	"github.com/samber/lo"
)

// KeywordMatcher finds whole-word keyword occurrences in chat text,
// case-insensitively. Keywords may span several words.
type KeywordMatcher struct {
	machine  *goahocorasick.Machine
	keywords map[string]struct{}
}

// NewKeywordMatcher builds a matcher over the given keywords. Blank and
// duplicate keywords are ignored.
func NewKeywordMatcher(keywords []string) (*KeywordMatcher, error) {
	cleaned := lo.Uniq(lo.FilterMap(keywords, func(k string, _ int) (string, bool) {
		k = strings.ToLower(strings.TrimSpace(k))
		return k, k != ""
	}))
	km := &KeywordMatcher{keywords: make(map[string]struct{}, len(cleaned))}
	if len(cleaned) == 0 {
		return km, nil
	}
	sort.Strings(cleaned)
	patterns := make([][]rune, len(cleaned))
	for i, k := range cleaned {
		patterns[i] = []rune(k)
		km.keywords[k] = struct{}{}
	}
	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return nil, err
	}
	km.machine = m
	return km, nil
}

// Match returns the keywords found in text in order of appearance.
func (km *KeywordMatcher) Match(text string) []string {
	if km == nil || km.machine == nil {
		return nil
	}
	content := []rune(strings.ToLower(text))
	if len(content) == 0 {
		return nil
	}
	var found []string
	for _, term := range km.machine.MultiPatternSearch(content, false) {
		start := term.Pos
		end := start + len(term.Word)
		if start < 0 || end > len(content) {
			continue
		}
		if start > 0 && isWordRune(content[start-1]) {
			continue
		}
		if end < len(content) && isWordRune(content[end]) {
			continue
		}
		found = append(found, string(term.Word))
	}
	return lo.Uniq(found)
}

// Contains reports whether any keyword occurs in text.
func (km *KeywordMatcher) Contains(text string) bool {
	return len(km.Match(text)) > 0
}

// Len is the number of distinct keywords.
func (km *KeywordMatcher) Len() int {
	if km == nil {
		return 0
	}
	return len(km.keywords)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

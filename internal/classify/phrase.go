package classify

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

var dashes = strings.NewReplacer("\u2013", "-", "\u2014", "-", "\u2212", "-", "\u00a0", " ")

// fold prepares text for matching: Unicode case folding, one kind of dash,
// single spaces.
func fold(s string) string {
	s = cases.Fold().String(dashes.Replace(s))
	return strings.Join(strings.Fields(s), " ")
}

// phraseSet matches any of its terms on word boundaries. A nil set matches
// nothing.
type phraseSet struct {
	re *regexp.Regexp
}

func compile(terms []string) (*phraseSet, error) {
	var alts []string
	for _, t := range terms {
		t = fold(t)
		if t == "" {
			continue
		}
		alts = append(alts, boundary(t))
	}
	if len(alts) == 0 {
		return nil, nil
	}
	re, err := regexp.Compile(strings.Join(alts, "|"))
	if err != nil {
		return nil, fmt.Errorf("compile rule terms %q: %w", terms, err)
	}
	return &phraseSet{re: re}, nil
}

// boundary wraps a quoted term in \b on each end that is a word character,
// so "sr" does not hit "src" while "u.s." still matches before a space.
func boundary(term string) string {
	q := regexp.QuoteMeta(term)
	runes := []rune(term)
	if isWord(runes[0]) {
		q = `\b` + q
	}
	if isWord(runes[len(runes)-1]) {
		q += `\b`
	}
	return "(?:" + q + ")"
}

func isWord(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func (p *phraseSet) match(s string) bool {
	return p != nil && p.re.MatchString(s)
}

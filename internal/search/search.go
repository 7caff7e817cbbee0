// Package search implements the find/replace primitives of the editor.
// Patterns follow ECMAScript regular expression semantics. All offsets are
// rune offsets into the searched text.
package search

import (
	"errors"
	"fmt"
	"time"

	"github.com/dlclark/regexp2"
)

var (
	ErrEmptyTerm  = errors.New("search term is empty")
	ErrBadPattern = errors.New("invalid pattern")
)

type Options struct {
	CaseSensitive bool `json:"case_sensitive"`
	WholeWord     bool `json:"whole_word"`
	Regex         bool `json:"regex"`
	// Per-match timeout. Zero means no limit.
	Timeout time.Duration `json:"-"`
}

// Match is a half-open rune range [Start, End).
type Match struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

type Matcher struct {
	re      *regexp2.Regexp
	literal bool
}

// Compile builds a matcher for term. Literal terms are escaped, so only
// Regex mode interprets metacharacters.
func Compile(term string, opts Options) (*Matcher, error) {
	if term == "" {
		return nil, ErrEmptyTerm
	}
	pattern := term
	if !opts.Regex {
		pattern = regexp2.Escape(term)
	}
	if opts.WholeWord {
		pattern = `\b(?:` + pattern + `)\b`
	}

	flags := regexp2.RegexOptions(regexp2.ECMAScript)
	if !opts.CaseSensitive {
		flags |= regexp2.IgnoreCase
	}
	re, err := regexp2.Compile(pattern, flags)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrBadPattern, term, err)
	}
	if opts.Timeout > 0 {
		re.MatchTimeout = opts.Timeout
	}
	return &Matcher{re: re, literal: !opts.Regex}, nil
}

// FindAll returns every non-empty match in order.
func (m *Matcher) FindAll(text string) ([]Match, error) {
	var out []Match
	mt, err := m.re.FindRunesMatch([]rune(text))
	for mt != nil && err == nil {
		if mt.Length > 0 {
			out = append(out, Match{Start: mt.Index, End: mt.Index + mt.Length})
		}
		mt, err = m.re.FindNextMatch(mt)
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Next returns the first match starting at or after from, wrapping around
// to the first match in the text.
func (m *Matcher) Next(text string, from int) (Match, bool, error) {
	all, err := m.FindAll(text)
	if err != nil || len(all) == 0 {
		return Match{}, false, err
	}
	for _, x := range all {
		if x.Start >= from {
			return x, true, nil
		}
	}
	return all[0], true, nil
}

// Prev returns the last match ending at or before before, wrapping around
// to the last match in the text.
func (m *Matcher) Prev(text string, before int) (Match, bool, error) {
	all, err := m.FindAll(text)
	if err != nil || len(all) == 0 {
		return Match{}, false, err
	}
	for i := len(all) - 1; i >= 0; i-- {
		if all[i].End <= before {
			return all[i], true, nil
		}
	}
	return all[len(all)-1], true, nil
}

// IsMatch reports whether [start, end) is exactly one of the matches.
func (m *Matcher) IsMatch(text string, start, end int) (bool, error) {
	all, err := m.FindAll(text)
	if err != nil {
		return false, err
	}
	for _, x := range all {
		if x.Start == start && x.End == end {
			return true, nil
		}
	}
	return false, nil
}

// ReplaceAt replaces the match that starts at rune offset start. Regex
// replacements expand $1 and ${name} references; literal ones are inserted
// as is.
func (m *Matcher) ReplaceAt(text string, start int, repl string) (string, error) {
	return m.replace(text, repl, byteOffset(text, start), 1)
}

// ReplaceAll replaces every match and reports how many there were.
func (m *Matcher) ReplaceAll(text, repl string) (string, int, error) {
	all, err := m.FindAll(text)
	if err != nil {
		return "", 0, err
	}
	if len(all) == 0 {
		return text, 0, nil
	}
	out, err := m.replace(text, repl, -1, -1)
	if err != nil {
		return "", 0, err
	}
	return out, len(all), nil
}

func (m *Matcher) replace(text, repl string, startAt, count int) (string, error) {
	if m.literal {
		return m.re.ReplaceFunc(text, func(regexp2.Match) string { return repl }, startAt, count)
	}
	return m.re.Replace(text, repl, startAt, count)
}

func byteOffset(text string, runeIdx int) int {
	i := 0
	for b := range text {
		if i == runeIdx {
			return b
		}
		i++
	}
	return len(text)
}

// Package server implements OSC server-side dispatch: address pattern
// matching and packet delivery to registered handlers.
package server

import (
	"fmt"
	"strings"

	"github.com/openosc/osc"
)

// Pattern represents a parsed OSC address pattern, usually received with an
// incoming OSC message, compiled so it can be tested against concrete
// method addresses.
type Pattern struct {
	matchers []matcher
}

// ParsePattern compiles an address pattern. An empty pattern, or one that
// doesn't begin with "/", is rejected with ErrIllegalPattern.
func ParsePattern(s string) (Pattern, error) {
	if len(s) == 0 || s[0] != '/' {
		return Pattern{}, fmt.Errorf("%w: %q", osc.ErrIllegalPattern, s)
	}
	var matchers []matcher
	for len(s) > 0 {
		m, rest, err := parseMatcher(s)
		if err != nil {
			return Pattern{}, fmt.Errorf("%w: %v", osc.ErrIllegalPattern, err)
		}
		matchers = append(matchers, m)
		s = rest
	}
	return Pattern{matchers: matchers}, nil
}

// ValidMethodChars returns every character a method address segment may
// contain: ASCII printable characters excluding space and the reserved set
// "#*,/?[]{}".
func ValidMethodChars() string {
	const reserved = " #*,/?[]{}"
	var sb strings.Builder
	for c := byte('!'); c <= '~'; c++ {
		if strings.IndexByte(reserved, c) < 0 {
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

func (p Pattern) Match(s string) bool {
	states := []*matchState{{p.matchers, s}}
	for len(states) > 0 {
		var s *matchState
		l := len(states) - 1
		s, states = states[l], states[:l]
		next, accept := s.match()
		if accept {
			return true
		}
		states = append(states, next...)
	}
	return false
}

func (p Pattern) String() string {
	var sb strings.Builder
	for _, m := range p.matchers {
		sb.WriteString(m.String())
	}
	return sb.String()
}

type matchState struct {
	matchers []matcher
	s        string
}

func (m *matchState) match() (next []*matchState, accept bool) {
	if len(m.matchers) > 0 {
		if alt, ok := m.matchers[0].(alternation); ok {
			// Alternation consumes a whole literal option at once, so it
			// is branched here rather than through the byte-at-a-time
			// matcher interface.
			for _, opt := range alt.options {
				if strings.HasPrefix(m.s, opt) {
					next = append(next, &matchState{
						matchers: m.matchers[1:],
						s:        m.s[len(opt):],
					})
				}
			}
			return next, false
		}
	}
	if len(m.s) == 0 {
		// We're done, success if all the remaining matchers
		// could match nothing.
		for _, m := range m.matchers {
			w, ok := m.(wildcard)
			if !ok {
				return nil, false
			}
			if w.single {
				return nil, false
			}
		}
		return nil, true
	}
	if len(m.matchers) == 0 {
		// no matchers, but there must be some input.
		return nil, false
	}
	// Still matchers, still input.
	results := m.matchers[0].match(m.s[0])
	if results == noMatch {
		return nil, false
	}
	if (results & matchAdvanceBoth) != 0 {
		next = append(next, &matchState{
			matchers: m.matchers[1:],
			s:        m.s[1:],
		})
	}
	if (results & matchAdvanceMatcher) != 0 {
		next = append(next, &matchState{
			matchers: m.matchers[1:],
			s:        m.s,
		})
	}
	if (results & matchAdvanceInput) != 0 {
		next = append(next, &matchState{
			matchers: m.matchers,
			s:        m.s[1:],
		})
	}
	return next, false
}

type matcher interface {
	match(byte) matchResult
	String() string
}

type matchResult byte

const (
	noMatch                         = 0
	matchAdvanceBoth    matchResult = 1 << iota // try the next matcher with the next character
	matchAdvanceMatcher                         // success, but don't move the input
	matchAdvanceInput                           // success, and current matcher could match more
)

// charMatcher is a matcher that matches an exact byte.
type charMatcher struct {
	c byte
}

func (c charMatcher) String() string {
	return fmt.Sprintf("%c", c.c)
}

func (c charMatcher) match(b byte) matchResult {
	if c.c == b {
		return matchAdvanceBoth
	}
	return noMatch
}

// wildcard implements "?" (single is true) and "*" (single is false).
// Neither ever matches "/": a pattern segment aligns one-to-one with a
// target segment, and "*" never crosses that boundary.
type wildcard struct {
	single bool // true if ?, false if *
}

func (w wildcard) match(b byte) matchResult {
	if b == '/' {
		return noMatch
	}
	if w.single {
		return matchAdvanceBoth
	}
	return matchAdvanceBoth | matchAdvanceMatcher | matchAdvanceInput
}

func (w wildcard) String() string {
	if w.single {
		return "?"
	}
	return "*"
}

// charClass implements "[abc]", "[a-z]" and their negations "[!abc]".
type charClass struct {
	chars  [256]bool
	invert bool
}

func (cc charClass) match(b byte) matchResult {
	if cc.chars[b] != cc.invert {
		return matchAdvanceBoth
	}
	return noMatch
}

func (cc charClass) String() string {
	var sb strings.Builder
	sb.WriteString("[")
	if cc.invert {
		sb.WriteString("!")
	}
	for i, ok := range cc.chars {
		if ok {
			fmt.Fprintf(&sb, "%c", i)
		}
	}
	sb.WriteString("]")
	return sb.String()
}

// alternation implements "{foo,bar}": matches any one of the listed
// literal alternatives.
type alternation struct {
	options []string
}

func (a alternation) match(b byte) matchResult {
	// The caller feeds us one byte at a time; an alternation needs to
	// look ahead at the whole remaining input to pick a branch, so it is
	// handled specially at the top of matchState.match above.
	// This method only exists to satisfy the matcher interface and is
	// never called directly.
	return noMatch
}

func (a alternation) String() string {
	return "{" + strings.Join(a.options, ",") + "}"
}

func parseMatcher(s string) (matcher, string, error) {
	if len(s) == 0 {
		return nil, "", fmt.Errorf("unexpected end of input")
	}
	switch s[0] {
	case '[':
		return parseCharClass(s)
	case '{':
		return parseAlternation(s)
	case '*':
		return wildcard{}, s[1:], nil
	case '?':
		return wildcard{single: true}, s[1:], nil
	}
	return charMatcher{s[0]}, s[1:], nil
}

func parseCharClass(s string) (charClass, string, error) {
	var cc charClass
	s, ok := strings.CutPrefix(s, "[")
	if !ok {
		return cc, "", fmt.Errorf("expect %q, got: %q", "[", s)
	}
	if len(s) == 0 {
		return cc, "", fmt.Errorf("expect character class, got EOF")
	}
	if s[0] == '!' {
		s = s[1:]
		cc.invert = true
	}
	end := strings.IndexByte(s, ']')
	if end < 0 {
		return cc, "", fmt.Errorf("expect %q somewhere, got: %q", "]", s)
	}
	for i := 0; i < end; i++ {
		c := s[i]
		if c == '-' {
			if i > 0 && (i+1) < end {
				next := s[i+1]
				if next < s[i-1] {
					return cc, "", fmt.Errorf("invalid range %c-%c, %c<%c",
						s[i-1], next, next, s[i-1])
				}
				for d := s[i-1]; d < next; d++ {
					cc.chars[d] = true
				}
				continue
			}
		}
		cc.chars[c] = true
	}
	return cc, s[end+1:], nil
}

func parseAlternation(s string) (alternation, string, error) {
	s, ok := strings.CutPrefix(s, "{")
	if !ok {
		return alternation{}, "", fmt.Errorf("expect %q, got: %q", "{", s)
	}
	end := strings.IndexByte(s, '}')
	if end < 0 {
		return alternation{}, "", fmt.Errorf("expect %q somewhere, got: %q", "}", s)
	}
	options := strings.Split(s[:end], ",")
	return alternation{options: options}, s[end+1:], nil
}

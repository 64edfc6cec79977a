package locspec

import (
	"strings"

	"github.com/go-delve/evloc/pkg/language"
	"github.com/go-delve/evloc/pkg/linespec"
)

// lexer walks an explicit location string. When ci is not nil partial
// input is accepted: an unterminated quote extends to the end of the input.
type lexer struct {
	s    string
	pos  int
	lang *language.Language
	ci   *CompletionInfo
}

func (l *lexer) skipSpaces() {
	l.pos = linespec.SkipSpacesAt(l.s, l.pos)
}

// quoted lexes the quoted string at l.pos whose closing quote is found by
// find. If record is set the quote positions are saved in the completion
// info.
func (l *lexer) quoted(find func(string, byte) int, record bool) (string, bool, error) {
	start := l.pos
	record = record && l.ci != nil
	if record {
		l.ci.QuotedArgStart = start
	}
	end := find(l.s[start+1:], l.s[start])
	if end < 0 {
		if l.ci == nil {
			return "", false, &ErrUnmatchedQuote{Text: l.s[start:], Pos: start}
		}
		l.pos = len(l.s)
		return l.s[start+1:], true, nil
	}
	end += start + 1
	if record {
		l.ci.QuotedArgEnd = end
	}
	l.pos = end + 1
	return l.s[start+1 : end], true, nil
}

// lexOne lexes an option name or an option argument.
// Quoted strings are returned without their quotes. A token starting with
// '-' or '+' extends to the next space or comma, as does a number. Any
// other token ends at a space, a comma or before a linespec keyword; in C++
// the character following "operator" is always part of the token so that
// "operator," is read as a single word.
func (l *lexer) lexOne(record bool) (string, bool, error) {
	s, start := l.s, l.pos
	if start >= len(s) {
		return "", false, nil
	}
	if l.lang.IsQuote(s[start]) {
		return l.quoted(FindEndQuote, record)
	}

	i := start
	if s[i] == '-' || s[i] == '+' {
		for i < len(s) && s[i] != ',' && !linespec.IsSpace(s[i]) {
			i++
		}
	} else {
		for i < len(s) && linespec.IsDigit(s[i]) {
			i++
		}
		if i < len(s) && !linespec.IsSpace(s[i]) && s[i] != ',' {
			i = start
			for i < len(s) && s[i] != ',' && !linespec.IsSpace(s[i]) && linespec.LexKeyword(s[i+1:]) == "" {
				if l.lang.CPlusOperators && strings.HasPrefix(s[i:], language.OperatorKeyword) {
					i += len(language.OperatorKeyword)
				}
				i++
			}
			if i > len(s) {
				i = len(s)
			}
		}
	}
	l.pos = i
	if i > start {
		return s[start:i], true, nil
	}
	return "", false, nil
}

// lexOneFunction lexes the argument of -function. The name extends to the
// next option, to a top level comma or to a linespec keyword, whichever
// comes first; '-' and ',' inside C++ operator names do not end it.
func (l *lexer) lexOneFunction() (string, bool, error) {
	if l.pos >= len(l.s) {
		return "", false, nil
	}
	rest := l.s[l.pos:]

	if l.lang.IsQuote(rest[0]) && !(l.lang.AdaOperators && rest[0] == '"' && language.AdaOperatorLen(rest) > 0) {
		return l.quoted(FindToplevelChar, true)
	}

	comma := FindToplevelChar(rest, ',')
	// "-function -[BasicClass doIt]" names an objc selector, the leading
	// hyphen is not a delimiter. It can't always be skipped because
	// FindToplevelChar needs to see the 'o' of a leading "operator".
	var hyphen int
	if rest[0] == '-' {
		if hyphen = FindToplevelChar(rest[1:], '-'); hyphen >= 0 {
			hyphen++
		}
	} else {
		hyphen = FindToplevelChar(rest, '-')
	}
	comma = skipOpFalsePositives(rest, 0, comma)
	hyphen = skipOpFalsePositives(rest, 0, hyphen)
	end := firstOf(hyphen, comma)

	ws := FindToplevelChar(rest, ' ')
	for ws >= 0 && linespec.LexKeyword(rest[ws+1:]) == "" {
		from := ws + 1
		if ws = FindToplevelChar(rest[from:], ' '); ws >= 0 {
			ws += from
		}
	}
	if ws >= 0 {
		end = firstOf(end, ws+1)
	}
	if end < 0 {
		end = len(rest)
	}
	for end > 0 && rest[end-1] == ' ' {
		end--
	}

	l.pos += end
	if end > 0 {
		return rest[:end], true, nil
	}
	return "", false, nil
}

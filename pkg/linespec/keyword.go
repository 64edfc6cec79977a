// Package linespec contains the pieces of the linespec lexer that location
// parsing depends on: keyword recognition, skipping a linespec to its end,
// line offsets and address expressions.
//
// A linespec ends at the first top level comma or at the first keyword:
//
//	break foo.c:42 if x > 3
//	break ns::Klass::method thread 2
//	break bar -force-condition if y == 0
package linespec

import "strings"

// Keywords lists the words that terminate a linespec.
var Keywords = []string{"if", "thread", "task", "inferior", "-force-condition"}

const (
	ifKeywordIndex    = 0
	forceKeywordIndex = 4
)

// LexKeyword returns the keyword s starts with, or the empty string.
// A keyword must be followed by whitespace, except "-force-condition" which
// may also end the input. A keyword other than "if" or "-force-condition"
// is only a keyword when it is not itself followed by
// another keyword ("break thread thread 3" sets a breakpoint on function
// "thread").
func LexKeyword(s string) string {
	for i, kw := range Keywords {
		if i == forceKeywordIndex && s == kw {
			return kw
		}
		if !startsWithWord(s, kw) {
			continue
		}
		if i == forceKeywordIndex {
			return kw
		}
		if i != ifKeywordIndex {
			rest := SkipSpaces(s[len(kw):])
			for _, next := range Keywords {
				if startsWithWord(rest, next) {
					return ""
				}
			}
		}
		return kw
	}
	return ""
}

func startsWithWord(s, word string) bool {
	return len(s) > len(word) && strings.HasPrefix(s, word) && IsSpace(s[len(word)])
}

// IsSpace reports whether ch is an ASCII white space character.
func IsSpace(ch byte) bool {
	switch ch {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}

// IsDigit reports whether ch is an ASCII decimal digit.
func IsDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

// SkipSpaces returns s without its leading white space.
func SkipSpaces(s string) string {
	return s[SkipSpacesAt(s, 0):]
}

// SkipSpacesAt returns the index of the first non space character of s at
// or after i.
func SkipSpacesAt(s string, i int) int {
	for i < len(s) && IsSpace(s[i]) {
		i++
	}
	return i
}

// TrimTrailingSpaces returns the largest j <= end such that s[start:j] does
// not end with white space.
func TrimTrailingSpaces(s string, start, end int) int {
	for end > start && IsSpace(s[end-1]) {
		end--
	}
	return end
}

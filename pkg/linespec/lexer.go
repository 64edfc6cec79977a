package linespec

import (
	"strings"

	"github.com/go-delve/evloc/pkg/language"
)

// LexToEnd returns the length of the linespec at the start of s. Lexing
// stops before a top level comma, before a keyword or at the end of s.
// The returned length may include trailing white space.
func LexToEnd(s string) int {
	i := 0
	for {
		i = SkipSpacesAt(s, i)
		if i >= len(s) || s[i] == ',' || LexKeyword(s[i:]) != "" {
			return i
		}
		i = lexToken(s, i)
	}
}

// lexToken returns the end of the linespec token starting at s[i].
func lexToken(s string, i int) int {
	switch {
	case s[i] == ':':
		return i + 1
	case s[i] == '"' || s[i] == '\'':
		return skipQuoted(s, i)
	}

	depth := 0
	for i < len(s) {
		ch := s[i]
		switch {
		case ch == '"' || ch == '\'':
			i = skipQuoted(s, i)
			continue
		case ch == '(' || ch == '[' || ch == '<':
			depth++
		case (ch == ')' || ch == ']' || ch == '>') && depth > 0:
			depth--
		case depth == 0 && (IsSpace(ch) || ch == ','):
			return i
		case depth == 0 && ch == ':':
			if i+1 < len(s) && s[i+1] == ':' {
				i += 2
				continue
			}
			return i
		case ch == 'o' && depth == 0 && isOperatorAt(s, i):
			i = skipOperatorName(s, i)
			continue
		}
		i++
	}
	return i
}

// skipQuoted returns the index after the quoted string starting at s[i].
// An unterminated quote extends to the end of s.
func skipQuoted(s string, i int) int {
	quote := s[i]
	for j := i + 1; j < len(s); j++ {
		switch s[j] {
		case '\\':
			j++
		case quote:
			return j + 1
		}
	}
	return len(s)
}

func isOperatorAt(s string, i int) bool {
	if !strings.HasPrefix(s[i:], language.OperatorKeyword) {
		return false
	}
	if i > 0 && isIdentChar(s[i-1]) {
		return false
	}
	end := i + len(language.OperatorKeyword)
	return end >= len(s) || !isIdentChar(s[end])
}

const operatorSymbolChars = "+-*/%^&|~!=<>,"

// skipOperatorName returns the index after "operator<sym>" at s[i].
func skipOperatorName(s string, i int) int {
	i = SkipSpacesAt(s, i+len(language.OperatorKeyword))
	if i+1 < len(s) && (s[i:i+2] == "()" || s[i:i+2] == "[]") {
		return i + 2
	}
	for i < len(s) && strings.IndexByte(operatorSymbolChars, s[i]) >= 0 {
		i++
	}
	return i
}

func isIdentChar(ch byte) bool {
	return ch == '_' || IsDigit(ch) || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

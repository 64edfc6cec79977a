package locspec

import (
	"strings"

	"github.com/go-delve/evloc/pkg/language"
	"github.com/go-delve/evloc/pkg/linespec"
)

// FindEndQuote returns the index of the first occurrence of quote in s that
// is outside of any single or double quoted string opened in s, or -1.
// Inside a quoted string a backslash escapes the next character.
func FindEndQuote(s string, quote byte) int {
	var nested byte
	for i := 0; i < len(s); i++ {
		switch {
		case nested != 0:
			if s[i] == nested {
				nested = 0
			} else if s[i] == '\\' && i+1 < len(s) {
				i++
			}
		case s[i] == quote:
			return i
		case s[i] == '"' || s[i] == '\'':
			nested = s[i]
		}
	}
	return -1
}

// FindToplevelChar returns the index of the first occurrence of c in s that
// is outside of quoted strings and outside of parentheses or angle
// brackets, or -1.
// The symbol following a C++ "operator" keyword does not open or close a
// nesting level, so "operator<" and "operator()" are scanned correctly. A c
// appearing right after "operator" is returned; callers must use
// isCPOperator to recognize such false positives.
func FindToplevelChar(s string, c byte) int {
	var quoted byte
	depth := 0
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case quoted != 0:
			if ch == quoted {
				quoted = 0
			} else if ch == '\\' && i+1 < len(s) {
				i++
			}
		case ch == c && depth == 0:
			return i
		case ch == '"' || ch == '\'':
			quoted = ch
		case ch == '(' || ch == '<':
			depth++
		case (ch == ')' || ch == '>') && depth > 0:
			depth--
		case ch == 'o' && depth == 0 && strings.HasPrefix(s[i:], language.OperatorKeyword):
			i += len(language.OperatorKeyword)
			if i < len(s) && s[i] == c {
				return i
			}
			for i < len(s) && linespec.IsSpace(s[i]) {
				i++
				if i < len(s) && s[i] == c {
					return i
				}
			}
			if i >= len(s) {
				return -1
			}
			// operator<< and operator>>
			if (s[i] == '<' || s[i] == '>') && i+1 < len(s) && s[i+1] == s[i] {
				i++
				if s[i] == c {
					return i
				}
			}
		}
	}
	return -1
}

// isCPOperator reports whether the delimiter at s[found] is part of a C++
// operator name such as "operator," or "operator-". Characters before start
// are not examined.
func isCPOperator(s string, start, found int) bool {
	const op = language.OperatorKeyword
	if found < 0 || found-start < len(op) {
		return false
	}
	p := found
	for p > start && linespec.IsSpace(s[p-1]) {
		p--
	}
	if p-start < len(op) {
		return false
	}
	p -= len(op)
	return s[p:p+len(op)] == op && (p == start || !isAlnum(s[p-1]))
}

// skipOpFalsePositives returns the index of the first delimiter at or
// after found that is not part of a C++ operator name, or -1.
func skipOpFalsePositives(s string, start, found int) int {
	for found >= 0 && isCPOperator(s, start, found) {
		if s[found] == '-' && found+1 < len(s) && s[found+1] == '-' {
			start = found + 2
		} else {
			start = found + 1
		}
		next := FindToplevelChar(s[start:], s[found])
		if next < 0 {
			return -1
		}
		found = start + next
	}
	return found
}

// firstOf returns the smallest of two indexes, ignoring -1.
func firstOf(first, tok int) int {
	switch {
	case first < 0:
		return tok
	case tok >= 0 && tok < first:
		return tok
	default:
		return first
	}
}

func isAlnum(ch byte) bool {
	return ch == '_' || linespec.IsDigit(ch) || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isAlpha(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

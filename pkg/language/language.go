// Package language describes the lexical properties of the source
// languages that location parsing needs to know about: which characters
// quote a token, whether C++ style "operator<sym>" names exist and whether
// Ada style quoted operator names exist.
package language

import (
	"fmt"
	"sort"
	"strings"
)

// ID identifies a source language.
type ID uint8

const (
	Auto ID = iota
	C
	CPlusPlus
	ObjC
	Ada
	Go
	Rust
	Fortran
	Asm
	Minimal
)

// OperatorKeyword is the C++ keyword that introduces an operator name.
const OperatorKeyword = "operator"

// Language contains the lexical tables used by the location lexers.
// Values returned by Lookup are shared and must not be modified.
type Language struct {
	ID   ID
	Name string
	// QuoteChars is the set of characters that start a quoted token.
	QuoteChars string
	// CPlusOperators is true if "operator" followed by an operator symbol
	// is a single name (operator, operator- ...).
	CPlusOperators bool
	// AdaOperators is true if a double quoted operator symbol such as "<"
	// is a function name rather than a quoted string.
	AdaOperators bool
}

const linespecQuoteChars = "\"'"

var languages = []*Language{
	{ID: Auto, Name: "auto", QuoteChars: linespecQuoteChars, CPlusOperators: true},
	{ID: C, Name: "c", QuoteChars: linespecQuoteChars},
	{ID: CPlusPlus, Name: "c++", QuoteChars: linespecQuoteChars, CPlusOperators: true},
	{ID: ObjC, Name: "objective-c", QuoteChars: linespecQuoteChars},
	{ID: Ada, Name: "ada", QuoteChars: linespecQuoteChars, AdaOperators: true},
	{ID: Go, Name: "go", QuoteChars: linespecQuoteChars},
	{ID: Rust, Name: "rust", QuoteChars: linespecQuoteChars},
	{ID: Fortran, Name: "fortran", QuoteChars: linespecQuoteChars},
	{ID: Asm, Name: "asm", QuoteChars: linespecQuoteChars},
	{ID: Minimal, Name: "minimal", QuoteChars: linespecQuoteChars},
}

var aliases = map[string]string{
	"cplus":  "c++",
	"cpp":    "c++",
	"cxx":    "c++",
	"objc":   "objective-c",
	"golang": "go",
	"f90":    "fortran",
}

// Default is the language used when none is configured.
var Default = MustLookup("c++")

// Lookup returns the language called name. Names are case insensitive and
// a few common aliases (cpp, objc, golang...) are accepted.
func Lookup(name string) (*Language, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if alias, ok := aliases[name]; ok {
		name = alias
	}
	for _, l := range languages {
		if l.Name == name {
			return l, nil
		}
	}
	return nil, fmt.Errorf("unknown language %q (known languages: %s)", name, strings.Join(Names(), ", "))
}

// MustLookup is like Lookup but panics if the language does not exist.
func MustLookup(name string) *Language {
	l, err := Lookup(name)
	if err != nil {
		panic(err)
	}
	return l
}

// Names returns the names of all known languages, sorted.
func Names() []string {
	r := make([]string, 0, len(languages))
	for _, l := range languages {
		r = append(r, l.Name)
	}
	sort.Strings(r)
	return r
}

func (l *Language) String() string {
	return l.Name
}

// IsQuote returns true if ch starts a quoted token in this language.
func (l *Language) IsQuote(ch byte) bool {
	return ch != 0 && strings.IndexByte(l.QuoteChars, ch) >= 0
}

// adaOperators is sorted so that longer spellings sharing a prefix come
// first ("**" before "*", "/=" before "/" ...).
var adaOperators = []string{
	`"+"`, `"-"`, `"**"`, `"*"`, `"/="`, `"/"`, `"="`, `"<="`, `"<"`,
	`">="`, `">"`, `"&"`, `"and"`, `"or"`, `"xor"`, `"mod"`, `"rem"`,
	`"abs"`, `"not"`,
}

// AdaOperatorLen returns the length of the quoted Ada operator name at the
// start of s, or 0 if s does not start with one.
func AdaOperatorLen(s string) int {
	for _, op := range adaOperators {
		if strings.HasPrefix(s, op) {
			return len(op)
		}
	}
	return 0
}

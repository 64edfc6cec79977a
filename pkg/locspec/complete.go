package locspec

import (
	"sort"
	"strings"

	"github.com/derekparker/trie"

	"github.com/go-delve/evloc/pkg/linespec"
)

// CompletionInfo is filled in by ParseExplicit in completion mode.
// Positions are byte offsets into the parsed string, -1 when unset.
type CompletionInfo struct {
	// LastOption is the start of the last option seen.
	LastOption int
	// QuotedArgStart and QuotedArgEnd are the positions of the opening
	// and closing quote of the argument of the last option.
	QuotedArgStart int
	QuotedArgEnd   int
	// SawExplicitLocationOption is set when an option that takes an
	// argument was recognized.
	SawExplicitLocationOption bool
	// Diag is the first error found while parsing.
	Diag *Diagnostic
}

// Diagnostic is an error found in completion mode and where it was found.
type Diagnostic struct {
	Err error
	Pos int
}

// NewCompletionInfo returns an empty CompletionInfo.
func NewCompletionInfo() *CompletionInfo {
	return &CompletionInfo{LastOption: -1, QuotedArgStart: -1, QuotedArgEnd: -1}
}

func (ci *CompletionInfo) fail(err error, pos int) {
	if ci.Diag == nil {
		ci.Diag = &Diagnostic{Err: err, Pos: pos}
	}
}

// Completer supplies the symbol names offered during completion.
type Completer interface {
	Functions() []string
	Sources() []string
}

var optionTrie = func() *trie.Trie {
	t := trie.New()
	for _, opt := range explicitOptions {
		t.Add(opt, nil)
	}
	return t
}()

// Complete returns the possible completions of the word being typed at the
// end of s and the position where that word starts. src may be nil, in
// which case only option names are completed.
func (p *Parser) Complete(s string, src Completer) (int, []string) {
	ci := NewCompletionInfo()
	loc, n, _ := p.ParseExplicit(s, ci)
	if loc == nil {
		return completeLinespec(s, 0, src)
	}
	if n < len(s) {
		// Something that is not an option follows the explicit location.
		if !ci.SawExplicitLocationOption {
			return completeLinespec(s, n, src)
		}
		return len(s), nil
	}

	if ci.QuotedArgStart >= 0 {
		if ci.QuotedArgEnd >= 0 {
			// Closed quote, nothing to add to the argument.
			return len(s), nil
		}
		start := ci.QuotedArgStart + 1
		return start, symbolCandidates(p.argSource(s, ci.LastOption), s[start:], src)
	}

	if s != "" && linespec.IsSpace(s[len(s)-1]) {
		if opt := p.pendingOption(s, ci.LastOption); opt != "" {
			return len(s), symbolCandidates(opt, "", src)
		}
		return len(s), prefixSearch(optionTrie, "")
	}

	word := lastWordStart(s)
	if word == ci.LastOption {
		return word, prefixSearch(optionTrie, s[word:])
	}
	return word, symbolCandidates(p.argSource(s, ci.LastOption), s[word:], src)
}

// argSource returns the option whose argument is being typed.
func (p *Parser) argSource(s string, lastOption int) string {
	if lastOption < 0 {
		return ""
	}
	l := &lexer{s: s, pos: lastOption, lang: p.lang(), ci: NewCompletionInfo()}
	opt, _, _ := l.lexOne(false)
	return matchOption(opt)
}

// pendingOption returns the last option if its argument has not been
// typed yet, as in "-function ".
func (p *Parser) pendingOption(s string, lastOption int) string {
	if lastOption < 0 {
		return ""
	}
	l := &lexer{s: s, pos: lastOption, lang: p.lang(), ci: NewCompletionInfo()}
	opt, _, _ := l.lexOne(false)
	l.skipSpaces()
	if l.pos < len(s) {
		return ""
	}
	switch name := matchOption(opt); name {
	case optSource, optFunction:
		return name
	}
	return ""
}

func symbolCandidates(opt, prefix string, src Completer) []string {
	if src == nil {
		return nil
	}
	switch opt {
	case optSource:
		return prefixSearch(newTrie(src.Sources()), prefix)
	case optFunction:
		return prefixSearch(newTrie(src.Functions()), prefix)
	}
	return nil
}

// completeLinespec completes the linespec starting at s[start:]. After a
// "FILE:" only functions are offered.
func completeLinespec(s string, start int, src Completer) (int, []string) {
	word := lastWordStart(s)
	if word < start {
		word = start
	}
	if strings.HasPrefix(s[word:], "-") {
		return word, prefixSearch(optionTrie, s[word:])
	}
	if src == nil || strings.HasPrefix(s[word:], "*") {
		return word, nil
	}
	if colon := singleColon(s[word:]); colon >= 0 {
		return word + colon + 1, prefixSearch(newTrie(src.Functions()), s[word+colon+1:])
	}
	t := newTrie(src.Functions())
	for _, file := range src.Sources() {
		t.Add(file, nil)
	}
	return word, prefixSearch(t, s[word:])
}

// singleColon returns the index of the last ':' in s that is not part of
// a "::" scope operator, or -1.
func singleColon(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] != ':' {
			continue
		}
		if (i > 0 && s[i-1] == ':') || (i+1 < len(s) && s[i+1] == ':') {
			i--
			continue
		}
		return i
	}
	return -1
}

func lastWordStart(s string) int {
	i := len(s)
	for i > 0 && !linespec.IsSpace(s[i-1]) {
		i--
	}
	return i
}

func newTrie(keys []string) *trie.Trie {
	t := trie.New()
	for _, k := range keys {
		t.Add(k, nil)
	}
	return t
}

func prefixSearch(t *trie.Trie, prefix string) []string {
	r := t.PrefixSearch(prefix)
	sort.Strings(r)
	out := r[:0]
	for i := range r {
		if i == 0 || r[i] != r[i-1] {
			out = append(out, r[i])
		}
	}
	return out
}

package locspec

import (
	"github.com/go-delve/evloc/pkg/language"
	"github.com/go-delve/evloc/pkg/linespec"
	"github.com/go-delve/evloc/pkg/logflags"
	"github.com/go-delve/evloc/pkg/probe"
)

// Parser turns location strings into Locations.
type Parser struct {
	// Lang is the current language, it selects the quote characters and
	// operator syntax. Nil means language.Default.
	Lang *language.Language
	// Resolver resolves symbol names in address expressions, it may be
	// nil.
	Resolver linespec.SymbolResolver
}

func (p *Parser) lang() *language.Language {
	if p == nil || p.Lang == nil {
		return language.Default
	}
	return p.Lang
}

// Parse parses the location at the start of s and returns it together
// with the number of bytes of s it consumed. mt is the match type of
// linespec locations unless the input overrides it with -qualified.
//
// An explicit location is tried first. If it is empty (only -qualified
// was given) its match type is kept and the rest of the input is parsed
// as a probe, an address expression or a linespec, in this order.
func (p *Parser) Parse(s string, mt MatchType) (*Location, int, error) {
	loc, n, err := p.ParseExplicit(s, nil)
	if err != nil {
		return nil, 0, err
	}
	if loc != nil {
		if !loc.Empty() {
			p.logParsed(s, loc, n)
			return loc, n, nil
		}
		mt = loc.Explicit().FuncNameMatchType
	}

	basic, m, err := p.parseBasic(s[n:], mt)
	if err != nil {
		return nil, 0, err
	}
	p.logParsed(s, basic, n+m)
	return basic, n + m, nil
}

// parseBasic parses a probe, address or linespec location.
func (p *Parser) parseBasic(s string, mt MatchType) (*Location, int, error) {
	if _, _, ok := probe.Detect(s); ok {
		return NewProbeLocation(s), len(s), nil
	}
	if s != "" && s[0] == '*' {
		addr, n, err := linespec.ExpressionToPC(s, p.Resolver)
		if err != nil {
			return nil, 0, err
		}
		return NewAddressLocation(addr, s[:n]), n, nil
	}
	n := linespec.LexToEnd(s)
	return NewLinespecLocation(s[:n], mt), n, nil
}

func (p *Parser) logParsed(s string, loc *Location, n int) {
	if !logflags.Locspec() {
		return
	}
	logflags.LocspecLogger().WithFields(logflags.Fields{
		"input":    s,
		"kind":     loc.Kind().String(),
		"consumed": n,
	}).Debugf("parsed %s location", loc.Kind())
}

var defaultParser = &Parser{}

// Parse parses locStr with the default language and no symbol table. It
// returns the location and the unparsed rest of locStr.
func Parse(locStr string) (*Location, string, error) {
	loc, n, err := defaultParser.Parse(locStr, MatchWild)
	if err != nil {
		return nil, locStr, err
	}
	return loc, locStr[n:], nil
}

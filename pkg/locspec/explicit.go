package locspec

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-delve/evloc/pkg/linespec"
)

// ExplicitLocation is a location built from -source, -function, -label,
// -line and -qualified options. The zero value has no fields set.
type ExplicitLocation struct {
	SourceFilename    string
	FunctionName      string
	LabelName         string
	LineOffset        LineOffset
	FuncNameMatchType MatchType
}

// Empty is true when none of source, function, label or line was given.
func (e *ExplicitLocation) Empty() bool {
	return e.SourceFilename == "" && e.FunctionName == "" && e.LabelName == "" && e.LineOffset.Sign == linespec.LineOffsetUnknown
}

// String returns the explicit form, i.e. "-source a.c -function f".
func (e *ExplicitLocation) String() string {
	return e.format(false)
}

// LinespecString returns the location in linespec form, i.e. "a.c:f".
func (e *ExplicitLocation) LinespecString() string {
	return e.format(true)
}

func (e *ExplicitLocation) format(asLinespec bool) string {
	var buf strings.Builder
	sep := " "
	if asLinespec {
		sep = ":"
	}
	needSep := false
	field := func(opt, val string) {
		if needSep {
			buf.WriteString(sep)
		}
		if !asLinespec {
			buf.WriteString(opt)
		}
		buf.WriteString(val)
		needSep = true
	}
	if e.SourceFilename != "" {
		field("-source ", e.SourceFilename)
	}
	if e.FunctionName != "" {
		if needSep {
			buf.WriteString(sep)
			needSep = false
		}
		if e.FuncNameMatchType == MatchFull {
			buf.WriteString("-qualified ")
		}
		field("-function ", e.FunctionName)
	}
	if e.LabelName != "" {
		field("-label ", e.LabelName)
	}
	if e.LineOffset.Sign != linespec.LineOffsetUnknown {
		field("-line ", e.LineOffset.String())
	}
	return buf.String()
}

// ErrUnmatchedQuote is returned when a quoted string is not terminated.
type ErrUnmatchedQuote struct {
	Text string
	Pos  int
}

func (err *ErrUnmatchedQuote) Error() string {
	return fmt.Sprintf("unmatched quote, %s", err.Text)
}

// ErrInvalidOption is returned for an unknown option in an explicit
// location.
type ErrInvalidOption struct {
	Option string
	Pos    int
}

func (err *ErrInvalidOption) Error() string {
	return fmt.Sprintf("invalid explicit location argument, %q", err.Option)
}

// ErrMissingArgument is returned when an option that requires an argument
// doesn't have one.
type ErrMissingArgument struct {
	Option string
	Pos    int
}

func (err *ErrMissingArgument) Error() string {
	return fmt.Sprintf("missing argument for %q", err.Option)
}

// ErrIncompleteExplicitLocation is returned when a source file is given
// without anything that selects a location inside it.
var ErrIncompleteExplicitLocation = errors.New("source filename requires function, label, or line offset")

// Explicit location options, in the order in which abbreviations are
// resolved.
const (
	optSource    = "-source"
	optFunction  = "-function"
	optQualified = "-qualified"
	optLine      = "-line"
	optLabel     = "-label"
)

var explicitOptions = []string{optSource, optFunction, optQualified, optLine, optLabel}

// matchOption returns the option opt abbreviates, or the empty string.
func matchOption(opt string) string {
	if opt == "" {
		return ""
	}
	for _, name := range explicitOptions {
		if strings.HasPrefix(name, opt) {
			return name
		}
	}
	return ""
}

// IsExplicit reports whether s has the shape of an explicit location: a
// '-' followed by a letter. "-p" is reserved for probes.
func IsExplicit(s string) bool {
	return len(s) >= 2 && s[0] == '-' && isAlpha(s[1]) && s[1] != 'p'
}

// ParseExplicit parses the explicit location at the start of s. It returns
// a nil location if s is not an explicit location, otherwise the location
// and the number of bytes consumed. Parsing stops at the end of s, at a top
// level comma, at a linespec keyword or before the first token that is not
// an option.
//
// When ci is not nil the parser is in completion mode: errors are recorded
// in ci instead of being returned and the partially parsed location is
// returned.
func (p *Parser) ParseExplicit(s string, ci *CompletionInfo) (*Location, int, error) {
	if !IsExplicit(s) {
		return nil, 0, nil
	}

	l := &lexer{s: s, lang: p.lang(), ci: ci}
	var e ExplicitLocation

	// In completion mode errors are recorded and parsing continues.
	fail := func(err error, pos int) error {
		if ci == nil {
			return err
		}
		ci.fail(err, pos)
		return nil
	}

loop:
	for l.pos < len(s) && s[l.pos] != ',' {
		if ci != nil {
			ci.QuotedArgStart, ci.QuotedArgEnd = -1, -1
		}
		if linespec.LexKeyword(s[l.pos:]) != "" {
			break
		}
		start := l.pos
		if ci != nil {
			ci.LastOption = start
		}

		opt, ok, err := l.lexOne(false)
		if err != nil {
			return nil, 0, err
		}
		if !ok || l.pos == start {
			// Nothing that looks like an option, the explicit location
			// ends here.
			l.pos = start
			break
		}
		l.skipSpaces()

		var (
			arg      string
			haveArg  bool
			needsArg bool
		)
		setArg := func(lex func() (string, bool, error)) error {
			if ci != nil {
				ci.SawExplicitLocationOption = true
			}
			var err error
			arg, haveArg, err = lex()
			needsArg = true
			return err
		}
		lexArg := func() (string, bool, error) { return l.lexOne(true) }
		lexLine := func() (string, bool, error) { return l.lexOne(false) }

		switch matchOption(opt) {
		case optSource:
			err = setArg(lexArg)
			e.SourceFilename = arg
		case optFunction:
			err = setArg(l.lexOneFunction)
			e.FunctionName = arg
		case optQualified:
			e.FuncNameMatchType = MatchFull
		case optLine:
			if err = setArg(lexLine); err != nil {
				return nil, 0, err
			}
			l.skipSpaces()
			if haveArg {
				lo, err := linespec.ParseLineOffset(arg)
				if err != nil {
					if err := fail(err, start); err != nil {
						return nil, 0, err
					}
				} else {
					e.LineOffset = lo
				}
				continue
			}
		case optLabel:
			err = setArg(lexArg)
			e.LabelName = arg
		default:
			if opt != "" && opt[0] == '-' && (len(opt) < 2 || !linespec.IsDigit(opt[1])) {
				if err := fail(&ErrInvalidOption{Option: opt, Pos: start}, start); err != nil {
					return nil, 0, err
				}
			} else {
				// Not an option, the explicit location ends here.
				l.pos = start
				break loop
			}
		}
		if err != nil {
			return nil, 0, err
		}

		l.skipSpaces()

		// Checked after the invalid option error so that a mistyped
		// option is reported as such.
		if needsArg && !haveArg {
			if err := fail(&ErrMissingArgument{Option: opt, Pos: start}, start); err != nil {
				return nil, 0, err
			}
		}
		if l.pos == start {
			break
		}
	}

	if e.SourceFilename != "" && e.FunctionName == "" && e.LabelName == "" && e.LineOffset.Sign == linespec.LineOffsetUnknown {
		if err := fail(ErrIncompleteExplicitLocation, 0); err != nil {
			return nil, 0, err
		}
	}

	return NewExplicitLocation(&e), l.pos, nil
}

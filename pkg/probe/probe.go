// Package probe recognizes static probe location specifications:
//
//	-probe [OBJFILE:][PROVIDER:]NAME
//	-probe-stap [OBJFILE:][PROVIDER:]NAME
//	-probe-dtrace [OBJFILE:][PROVIDER:]NAME
//
// "-p", "-pstap" and "-pdtrace" are accepted as short forms.
package probe

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-delve/evloc/pkg/linespec"
)

// Kind is the probe family selected by the keyword.
type Kind uint8

const (
	// Any matches probes of every family.
	Any Kind = iota
	// SystemTap matches SystemTap SDT probes.
	SystemTap
	// DTrace matches DTrace USDT probes.
	DTrace
)

func (k Kind) String() string {
	switch k {
	case SystemTap:
		return "stap"
	case DTrace:
		return "dtrace"
	default:
		return "any"
	}
}

type keyword struct {
	name string
	kind Kind
}

// Longer keywords come first so that "-probe-stap" is not read as "-probe".
var keywords = []keyword{
	{"-probe-dtrace", DTrace},
	{"-probe-stap", SystemTap},
	{"-probe", Any},
	{"-pdtrace", DTrace},
	{"-pstap", SystemTap},
	{"-p", Any},
}

// Detect reports whether s starts with a probe keyword followed by white
// space, returning the probe family and the length of the keyword.
func Detect(s string) (kind Kind, n int, ok bool) {
	for _, kw := range keywords {
		if len(s) > len(kw.name) && strings.HasPrefix(s, kw.name) && linespec.IsSpace(s[len(kw.name)]) {
			return kw.kind, len(kw.name), true
		}
	}
	return Any, 0, false
}

// Spec is a parsed probe specification.
type Spec struct {
	Kind     Kind
	Objfile  string
	Provider string
	Name     string
}

var (
	ErrNotProbe        = errors.New("not a probe specification")
	ErrNoProbeName     = errors.New("no probe name specified")
	ErrInvalidProvider = errors.New("invalid provider name")
	ErrInvalidObjfile  = errors.New("invalid objfile name")
)

// Parse splits a probe specification into its parts. Only the first word
// after the keyword is considered.
func Parse(s string) (*Spec, error) {
	kind, n, ok := Detect(s)
	if !ok {
		return nil, ErrNotProbe
	}
	arg := linespec.SkipSpaces(s[n:])
	if i := strings.IndexFunc(arg, func(r rune) bool { return r < 0x80 && linespec.IsSpace(byte(r)) }); i >= 0 {
		arg = arg[:i]
	}
	if arg == "" {
		return nil, ErrNoProbeName
	}

	spec := &Spec{Kind: kind}
	parts := strings.SplitN(arg, ":", 3)
	switch len(parts) {
	case 1:
		spec.Name = parts[0]
	case 2:
		spec.Provider, spec.Name = parts[0], parts[1]
	case 3:
		spec.Objfile, spec.Provider, spec.Name = parts[0], parts[1], parts[2]
	}
	switch {
	case spec.Name == "":
		return nil, ErrNoProbeName
	case len(parts) >= 2 && spec.Provider == "":
		return nil, ErrInvalidProvider
	case len(parts) == 3 && spec.Objfile == "":
		return nil, ErrInvalidObjfile
	}
	return spec, nil
}

func (spec *Spec) String() string {
	var b strings.Builder
	if spec.Objfile != "" {
		fmt.Fprintf(&b, "%s:", spec.Objfile)
	}
	if spec.Provider != "" {
		fmt.Fprintf(&b, "%s:", spec.Provider)
	}
	b.WriteString(spec.Name)
	return b.String()
}

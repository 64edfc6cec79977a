package locspec

import (
	"fmt"
	"sync"

	"github.com/go-delve/evloc/pkg/linespec"
)

// Kind identifies the variant of a Location.
type Kind uint8

const (
	LinespecKind Kind = iota
	AddressKind
	ExplicitKind
	ProbeKind
)

func (k Kind) String() string {
	switch k {
	case LinespecKind:
		return "linespec"
	case AddressKind:
		return "address"
	case ExplicitKind:
		return "explicit"
	case ProbeKind:
		return "probe"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// MatchType says how a function name is matched against symbols.
type MatchType uint8

const (
	// MatchWild matches the name in any namespace, class or package.
	MatchWild MatchType = iota
	// MatchFull only matches fully qualified names.
	MatchFull
)

func (mt MatchType) String() string {
	if mt == MatchFull {
		return "full"
	}
	return "wild"
}

// LineOffset is a line number in a location, possibly relative to the
// default line.
type LineOffset = linespec.LineOffset

// LinespecLocation is the payload of a linespec location. An empty Spec
// means no spec string was given.
type LinespecLocation struct {
	MatchType MatchType
	Spec      string
}

// Location is a parsed event location: a linespec, an address, an explicit
// location or a probe. Only the payload of its kind is set.
//
// The string form of a Location is computed the first time String is
// called and cached.
type Location struct {
	kind     Kind
	linespec LinespecLocation
	address  uint64
	explicit ExplicitLocation
	probe    string

	mu  sync.Mutex
	str *string
}

// NewLinespecLocation returns a linespec location for spec. Leading and
// trailing white space is removed from spec.
func NewLinespecLocation(spec string, mt MatchType) *Location {
	start := linespec.SkipSpacesAt(spec, 0)
	end := linespec.TrimTrailingSpaces(spec, start, len(spec))
	return &Location{kind: LinespecKind, linespec: LinespecLocation{MatchType: mt, Spec: spec[start:end]}}
}

// NewAddressLocation returns an address location for addr. If text is not
// empty it is used as the string form of the location, it should be the
// expression that addr was computed from, including the leading '*'.
func NewAddressLocation(addr uint64, text string) *Location {
	loc := &Location{kind: AddressKind, address: addr}
	if text != "" {
		loc.str = &text
	}
	return loc
}

// NewProbeLocation returns a probe location, spec is the full probe
// specification including the -probe keyword.
func NewProbeLocation(spec string) *Location {
	return &Location{kind: ProbeKind, probe: spec, str: &spec}
}

// NewExplicitLocation returns an explicit location with a copy of e. A nil
// e returns an empty explicit location.
func NewExplicitLocation(e *ExplicitLocation) *Location {
	loc := &Location{kind: ExplicitKind}
	if e != nil {
		loc.explicit = *e
	}
	return loc
}

// Kind returns the variant of loc.
func (loc *Location) Kind() Kind {
	return loc.kind
}

func (loc *Location) mustBe(kind Kind) {
	if loc.kind != kind {
		panic(fmt.Sprintf("%s location accessed as %s location", loc.kind, kind))
	}
}

// Linespec returns the payload of a linespec location.
func (loc *Location) Linespec() *LinespecLocation {
	loc.mustBe(LinespecKind)
	return &loc.linespec
}

// Address returns the address of an address location.
func (loc *Location) Address() uint64 {
	loc.mustBe(AddressKind)
	return loc.address
}

// AddressString returns the string form of an address location.
func (loc *Location) AddressString() string {
	loc.mustBe(AddressKind)
	return loc.String()
}

// Probe returns the specification of a probe location.
func (loc *Location) Probe() string {
	loc.mustBe(ProbeKind)
	return loc.probe
}

// Explicit returns the payload of an explicit location. Changes made
// through the returned pointer after String has been called are not
// reflected in the string form.
func (loc *Location) Explicit() *ExplicitLocation {
	loc.mustBe(ExplicitKind)
	return &loc.explicit
}

// Empty reports whether loc does not specify anything. Only explicit
// locations can be empty, a linespec location is never empty even if its
// spec string is.
func (loc *Location) Empty() bool {
	switch loc.kind {
	case ExplicitKind:
		return loc.explicit.Empty()
	default:
		return false
	}
}

// String returns the canonical string form of loc, parsing it yields an
// equivalent location. It returns the empty string for a linespec location
// without spec string.
func (loc *Location) String() string {
	loc.mu.Lock()
	defer loc.mu.Unlock()
	if loc.str != nil {
		return *loc.str
	}
	s := loc.compute()
	if s != "" {
		loc.str = &s
	}
	return s
}

func (loc *Location) compute() string {
	switch loc.kind {
	case LinespecKind:
		if loc.linespec.Spec == "" {
			return ""
		}
		if loc.linespec.MatchType == MatchFull {
			return "-qualified " + loc.linespec.Spec
		}
		return loc.linespec.Spec
	case AddressKind:
		return fmt.Sprintf("*0x%016x", loc.address)
	case ExplicitKind:
		return loc.explicit.String()
	case ProbeKind:
		return loc.probe
	}
	return ""
}

// SetString replaces the string form of loc.
func (loc *Location) SetString(s string) {
	loc.mu.Lock()
	defer loc.mu.Unlock()
	loc.str = &s
}

// Clone returns a copy of loc, including its cached string form.
func (loc *Location) Clone() *Location {
	loc.mu.Lock()
	defer loc.mu.Unlock()
	r := &Location{
		kind:     loc.kind,
		linespec: loc.linespec,
		address:  loc.address,
		explicit: loc.explicit,
		probe:    loc.probe,
	}
	if loc.str != nil {
		s := *loc.str
		r.str = &s
	}
	return r
}

package progspace

import (
	"errors"
	"strings"

	"github.com/go-delve/evloc/pkg/linespec"
	"github.com/go-delve/evloc/pkg/locspec"
)

// ErrUnresolved is returned by LocationPC for locations that need a running
// program to be resolved.
var ErrUnresolved = errors.New("location can not be resolved without a running program")

// LocationPC returns the address loc refers to. Only addresses and
// function names can be resolved statically, line numbers, labels and
// probes need a running program. Address locations resolve even when ps
// is nil.
func LocationPC(ps *ProgramSpace, loc *locspec.Location) (uint64, error) {
	var (
		name string
		full bool
	)
	switch loc.Kind() {
	case locspec.AddressKind:
		return loc.Address(), nil
	case locspec.LinespecKind:
		ls := loc.Linespec()
		if !IsFunctionLinespec(ls.Spec) {
			return 0, ErrUnresolved
		}
		name, full = ls.Spec, ls.MatchType == locspec.MatchFull
	case locspec.ExplicitKind:
		e := loc.Explicit()
		if e.FunctionName == "" || e.SourceFilename != "" || e.LabelName != "" || e.LineOffset.Sign != linespec.LineOffsetUnknown {
			return 0, ErrUnresolved
		}
		name, full = e.FunctionName, e.FuncNameMatchType == locspec.MatchFull
	default:
		return 0, ErrUnresolved
	}
	if ps == nil {
		return 0, ErrUnresolved
	}
	fn, err := ps.LookupFunction(name, full)
	if err != nil {
		return 0, err
	}
	return fn.Entry, nil
}

// IsFunctionLinespec is true if spec is a function name alone, without
// file name, line number or label.
func IsFunctionLinespec(spec string) bool {
	if spec == "" || strings.ContainsAny(spec, " \t'\"") {
		return false
	}
	if strings.Contains(strings.ReplaceAll(spec, "::", ""), ":") {
		return false
	}
	switch c := spec[0]; {
	case c == '+' || c == '-' || linespec.IsDigit(c):
		return false
	}
	return true
}

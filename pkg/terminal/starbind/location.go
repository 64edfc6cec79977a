package starbind

import (
	"errors"
	"fmt"
	"sort"

	"go.starlark.net/starlark"

	"github.com/go-delve/evloc/pkg/linespec"
	"github.com/go-delve/evloc/pkg/locspec"
	"github.com/go-delve/evloc/pkg/probe"
)

const (
	parseLocationBuiltinName    = "parse_location"
	explicitLocationBuiltinName = "explicit_location"
	linespecLocationBuiltinName = "linespec_location"
	addressLocationBuiltinName  = "address_location"
	probeLocationBuiltinName    = "probe_location"
)

// locationValue wraps a *locspec.Location.
type locationValue struct {
	loc *locspec.Location
}

var _ starlark.HasAttrs = locationValue{}

func (v locationValue) Freeze() {
}

func (v locationValue) Hash() (uint32, error) {
	return 0, fmt.Errorf("not hashable")
}

func (v locationValue) String() string {
	return fmt.Sprintf("Location<%s %q>", v.loc.Kind(), v.loc.String())
}

func (v locationValue) Truth() starlark.Bool {
	return !starlark.Bool(v.loc.Empty())
}

func (v locationValue) Type() string {
	return "Location"
}

func (v locationValue) Attr(name string) (starlark.Value, error) {
	loc := v.loc
	switch name {
	case "kind":
		return starlark.String(loc.Kind().String()), nil
	case "string":
		return starlark.String(loc.String()), nil
	case "empty":
		return starlark.Bool(loc.Empty()), nil
	case "clone":
		return starlark.NewBuiltin("clone", func(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			return locationValue{loc.Clone()}, nil
		}), nil
	}

	switch loc.Kind() {
	case locspec.LinespecKind:
		ls := loc.Linespec()
		switch name {
		case "linespec":
			return starlark.String(ls.Spec), nil
		case "match_type":
			return starlark.String(ls.MatchType.String()), nil
		}
	case locspec.AddressKind:
		if name == "address" {
			return starlark.MakeUint64(loc.Address()), nil
		}
	case locspec.ProbeKind:
		if name == "probe" {
			return starlark.String(loc.Probe()), nil
		}
	case locspec.ExplicitKind:
		e := loc.Explicit()
		switch name {
		case "linespec":
			return starlark.String(e.LinespecString()), nil
		case "match_type":
			return starlark.String(e.FuncNameMatchType.String()), nil
		case "source":
			return optString(e.SourceFilename), nil
		case "function":
			return optString(e.FunctionName), nil
		case "label":
			return optString(e.LabelName), nil
		case "line":
			if e.LineOffset.Sign == linespec.LineOffsetUnknown {
				return starlark.None, nil
			}
			return starlark.String(e.LineOffset.String()), nil
		}
	}
	return nil, nil
}

func (v locationValue) AttrNames() []string {
	r := []string{"clone", "empty", "kind", "string"}
	switch v.loc.Kind() {
	case locspec.LinespecKind:
		r = append(r, "linespec", "match_type")
	case locspec.AddressKind:
		r = append(r, "address")
	case locspec.ProbeKind:
		r = append(r, "probe")
	case locspec.ExplicitKind:
		r = append(r, "function", "label", "line", "linespec", "match_type", "source")
	}
	sort.Strings(r)
	return r
}

func optString(s string) starlark.Value {
	if s == "" {
		return starlark.None
	}
	return starlark.String(s)
}

func matchType(qualified bool) locspec.MatchType {
	if qualified {
		return locspec.MatchFull
	}
	return locspec.MatchWild
}

func (env *Env) locationBuiltins() {
	env.builtin(parseLocationBuiltinName, "(Text)", "parses the location at the start of Text and returns a tuple with the location and the unparsed rest of Text.", func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var text string
		var qualified bool
		if err := starlark.UnpackArgs(b.Name(), args, kwargs, "text", &text, "qualified?", &qualified); err != nil {
			return nil, err
		}
		loc, n, err := env.ctx.Parser().Parse(text, matchType(qualified))
		if err != nil {
			return nil, decorateError(thread, err)
		}
		return starlark.Tuple{locationValue{loc}, starlark.String(text[n:])}, nil
	})

	env.builtin(explicitLocationBuiltinName, "(source=None, function=None, label=None, line=None, qualified=False)", "returns an explicit location. Line can be an integer or a string with a '+' or '-' sign.", func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var (
			e         locspec.ExplicitLocation
			line      starlark.Value
			qualified bool
		)
		if err := starlark.UnpackArgs(b.Name(), args, kwargs, "source?", &e.SourceFilename, "function?", &e.FunctionName, "label?", &e.LabelName, "line?", &line, "qualified?", &qualified); err != nil {
			return nil, err
		}
		e.FuncNameMatchType = matchType(qualified)
		switch line := line.(type) {
		case nil, starlark.NoneType:
		case starlark.Int:
			var n int
			if err := unmarshalStarlarkValue(line, &n, "line"); err != nil {
				return nil, err
			}
			e.LineOffset = linespec.LineOffset{Sign: linespec.LineOffsetNone, Offset: n}
		case starlark.String:
			lo, err := linespec.ParseLineOffset(string(line))
			if err != nil {
				return nil, decorateError(thread, err)
			}
			e.LineOffset = lo
		default:
			return nil, fmt.Errorf("%s: line must be an int or a string, got %s", b.Name(), line.Type())
		}
		if e.Empty() {
			return nil, decorateError(thread, errors.New("one of source, function, label or line must be specified"))
		}
		if e.SourceFilename != "" && e.FunctionName == "" && e.LabelName == "" && e.LineOffset.Sign == linespec.LineOffsetUnknown {
			return nil, decorateError(thread, locspec.ErrIncompleteExplicitLocation)
		}
		return locationValue{locspec.NewExplicitLocation(&e)}, nil
	})

	env.builtin(linespecLocationBuiltinName, "(Spec, qualified=False)", "returns a linespec location.", func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var spec string
		var qualified bool
		if err := starlark.UnpackArgs(b.Name(), args, kwargs, "spec", &spec, "qualified?", &qualified); err != nil {
			return nil, err
		}
		return locationValue{locspec.NewLinespecLocation(spec, matchType(qualified))}, nil
	})

	env.builtin(addressLocationBuiltinName, "(Address)", "returns an address location.", func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if len(args) != 1 || len(kwargs) != 0 {
			return nil, decorateError(thread, fmt.Errorf("wrong number of arguments"))
		}
		var addr uint64
		if err := unmarshalStarlarkValue(args[0], &addr, "address"); err != nil {
			return nil, decorateError(thread, err)
		}
		return locationValue{locspec.NewAddressLocation(addr, "")}, nil
	})

	env.builtin(probeLocationBuiltinName, "(Spec)", "returns a probe location, Spec must start with a probe keyword (-probe, -probe-stap, -probe-dtrace).", func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var spec string
		if err := starlark.UnpackArgs(b.Name(), args, kwargs, "spec", &spec); err != nil {
			return nil, err
		}
		if _, err := probe.Parse(spec); err != nil {
			return nil, decorateError(thread, err)
		}
		return locationValue{locspec.NewProbeLocation(spec)}, nil
	})
}

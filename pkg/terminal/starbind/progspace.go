package starbind

import (
	"errors"

	"go.starlark.net/starlark"

	"github.com/go-delve/evloc/pkg/progspace"
)

const (
	objfilesBuiltinName   = "objfiles"
	solibNameBuiltinName  = "solib_name"
	findPCLineBuiltinName = "find_pc_line"
	blockForPCBuiltinName = "block_for_pc"
)

var errNoProgram = errors.New("no program loaded")

func (env *Env) programSpace(thread *starlark.Thread) (*progspace.ProgramSpace, error) {
	ps := env.ctx.ProgramSpace()
	if ps == nil {
		return nil, decorateError(thread, errNoProgram)
	}
	return ps, nil
}

// pcBuiltin returns a builtin taking a single address argument.
func (env *Env) pcBuiltin(fn func(ps *progspace.ProgramSpace, pc uint64) starlark.Value) builtinFn {
	return func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if len(args) != 1 || len(kwargs) != 0 {
			return nil, decorateError(thread, errors.New("wrong number of arguments"))
		}
		var pc uint64
		if err := unmarshalStarlarkValue(args[0], &pc, "pc"); err != nil {
			return nil, decorateError(thread, err)
		}
		ps, err := env.programSpace(thread)
		if err != nil {
			return nil, err
		}
		return fn(ps, pc), nil
	}
}

func (env *Env) progspaceBuiltins() {
	env.builtin(objfilesBuiltinName, "()", "returns the list of object files of the program.", func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		ps, err := env.programSpace(thread)
		if err != nil {
			return nil, err
		}
		return env.interfaceToStarlarkValue(ps.Objfiles()), nil
	})

	env.builtin(solibNameBuiltinName, "(PC)", "returns the name of the shared library containing PC or None.", env.pcBuiltin(func(ps *progspace.ProgramSpace, pc uint64) starlark.Value {
		if name := ps.SolibName(pc); name != "" {
			return starlark.String(name)
		}
		return starlark.None
	}))

	env.builtin(findPCLineBuiltinName, "(PC)", "returns the source line containing PC (with fields File, Line, PC and End) or None.", env.pcBuiltin(func(ps *progspace.ProgramSpace, pc uint64) starlark.Value {
		if ln, ok := ps.FindPCLine(pc); ok {
			return env.interfaceToStarlarkValue(ln)
		}
		return starlark.None
	}))

	env.builtin(blockForPCBuiltinName, "(PC)", "returns the innermost block containing PC (with fields Function, Start and End) or None.", env.pcBuiltin(func(ps *progspace.ProgramSpace, pc uint64) starlark.Value {
		if b, ok := ps.BlockForPC(pc); ok {
			return env.interfaceToStarlarkValue(b)
		}
		return starlark.None
	}))
}

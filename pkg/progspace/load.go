package progspace

import (
	"debug/dwarf"
	"debug/elf"
	"errors"
	"fmt"
	"io"

	"github.com/go-delve/evloc/pkg/logflags"
)

// Load builds a program space from the ELF executable at path. Functions
// and the line table are read from its DWARF sections when present,
// otherwise functions come from the symbol table. Shared libraries the
// executable depends on are listed as unmapped object files.
func Load(path string) (*ProgramSpace, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	exe := &Objfile{Filename: path}
	if text := f.Section(".text"); text != nil {
		exe.LowPC = text.Addr
		exe.HighPC = text.Addr + text.Size
	}
	objfiles := []*Objfile{exe}
	libs, err := f.ImportedLibraries()
	if err != nil {
		return nil, fmt.Errorf("could not read imported libraries of %s: %v", path, err)
	}
	for _, lib := range libs {
		objfiles = append(objfiles, &Objfile{Filename: lib, IsSharedLib: true})
	}

	var (
		funcs []Function
		lines []LineEntry
	)
	if dw, err := f.DWARF(); err == nil {
		funcs, lines, err = readDWARF(dw)
		if err != nil {
			return nil, fmt.Errorf("could not read debug info of %s: %v", path, err)
		}
	} else if logflags.Progspace() {
		logflags.ProgspaceLogger().Debugf("no debug info in %s: %v", path, err)
	}

	syms, err := f.Symbols()
	if err != nil && !errors.Is(err, elf.ErrNoSymbols) {
		return nil, fmt.Errorf("could not read symbols of %s: %v", path, err)
	}
	if len(funcs) == 0 {
		for _, sym := range syms {
			if elf.ST_TYPE(sym.Info) == elf.STT_FUNC && sym.Value != 0 {
				funcs = append(funcs, Function{Name: sym.Name, Entry: sym.Value, End: sym.Value + sym.Size})
			}
		}
	}

	ps := New(objfiles, funcs, lines)
	for _, sym := range syms {
		switch elf.ST_TYPE(sym.Info) {
		case elf.STT_FUNC, elf.STT_OBJECT:
			if sym.Value != 0 {
				if _, dup := ps.symbols[sym.Name]; !dup {
					ps.AddSymbol(sym.Name, sym.Value)
				}
			}
		}
	}
	if logflags.Progspace() {
		ps.log.WithFields(logflags.Fields{"path": path, "functions": len(ps.functions), "lines": len(ps.lines)}).Debugf("loaded program space")
	}
	return ps, nil
}

func readDWARF(dw *dwarf.Data) ([]Function, []LineEntry, error) {
	var (
		funcs []Function
		lines []LineEntry
	)
	rdr := dw.Reader()
	for {
		e, err := rdr.Next()
		if err != nil {
			return nil, nil, err
		}
		if e == nil {
			break
		}
		switch e.Tag {
		case dwarf.TagCompileUnit:
			lr, err := dw.LineReader(e)
			if err != nil {
				return nil, nil, err
			}
			if lr == nil {
				continue
			}
			var le dwarf.LineEntry
			for {
				err := lr.Next(&le)
				if err == io.EOF {
					break
				}
				if err != nil {
					return nil, nil, err
				}
				entry := LineEntry{PC: le.Address, Line: le.Line, End: le.EndSequence}
				if le.File != nil {
					entry.File = le.File.Name
				}
				lines = append(lines, entry)
			}
		case dwarf.TagSubprogram:
			if fn, ok := subprogram(e); ok {
				funcs = append(funcs, fn)
			}
			rdr.SkipChildren()
		}
	}
	return funcs, lines, nil
}

func subprogram(e *dwarf.Entry) (Function, bool) {
	name, _ := e.Val(dwarf.AttrName).(string)
	low, ok := e.Val(dwarf.AttrLowpc).(uint64)
	if name == "" || !ok {
		return Function{}, false
	}
	fn := Function{Name: name, Entry: low, End: low}
	if field := e.AttrField(dwarf.AttrHighpc); field != nil {
		switch field.Class {
		case dwarf.ClassAddress:
			fn.End, _ = field.Val.(uint64)
		case dwarf.ClassConstant:
			off, _ := field.Val.(int64)
			fn.End = low + uint64(off)
		}
	}
	return fn, true
}

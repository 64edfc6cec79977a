// Package progspace implements a read only view of the code of a program:
// its object files, functions, symbols and line table. It answers the
// address queries that locations are resolved against: which line and
// function contain an address, which shared library an address belongs
// to and what address a symbol has.
package progspace

import (
	"fmt"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru"

	"github.com/go-delve/evloc/pkg/logflags"
)

const lineCacheSize = 1024

// Objfile is an executable or shared library loaded in the program space.
type Objfile struct {
	Filename string
	// IsSharedLib is true for shared libraries.
	IsSharedLib bool
	// LowPC and HighPC delimit the text section of the object file, they
	// are both zero when the object file is not mapped.
	LowPC, HighPC uint64
}

func (obj *Objfile) contains(pc uint64) bool {
	return obj.LowPC <= pc && pc < obj.HighPC
}

// Function is a function of the program.
type Function struct {
	Name       string
	Entry, End uint64
}

// LineEntry is a row of the line table, the code from PC up to the next
// entry belongs to File:Line. End marks the first address after a sequence.
type LineEntry struct {
	PC   uint64
	File string
	Line int
	End  bool
}

// Line is the result of FindPCLine.
type Line struct {
	File string
	Line int
	// PC and End delimit the range of addresses that belong to the line.
	PC, End uint64
}

// Block is the innermost lexical block containing an address.
type Block struct {
	Function   string
	Start, End uint64
}

// ProgramSpace is the set of object files of a program together with
// their symbols. It is safe for concurrent use once built.
type ProgramSpace struct {
	objfiles  []*Objfile
	functions []Function // sorted by Entry
	symbols   map[string]uint64
	lines     []LineEntry // sorted by PC
	sources   []string

	substitutePathRules [][2]string

	lineCache *lru.Cache
	log       logflags.Logger
}

// New returns a program space built from in memory tables.
func New(objfiles []*Objfile, functions []Function, lines []LineEntry) *ProgramSpace {
	ps := &ProgramSpace{
		objfiles:  objfiles,
		functions: append([]Function(nil), functions...),
		symbols:   make(map[string]uint64),
		lines:     append([]LineEntry(nil), lines...),
		log:       logflags.ProgspaceLogger(),
	}
	ps.lineCache, _ = lru.New(lineCacheSize)
	sort.SliceStable(ps.functions, func(i, j int) bool { return ps.functions[i].Entry < ps.functions[j].Entry })
	sort.SliceStable(ps.lines, func(i, j int) bool { return ps.lines[i].PC < ps.lines[j].PC })
	for _, fn := range ps.functions {
		if _, dup := ps.symbols[fn.Name]; !dup {
			ps.symbols[fn.Name] = fn.Entry
		}
	}
	seen := make(map[string]bool)
	for _, le := range ps.lines {
		if le.File != "" && !seen[le.File] {
			seen[le.File] = true
			ps.sources = append(ps.sources, le.File)
		}
	}
	sort.Strings(ps.sources)
	return ps
}

// AddSymbol adds a data or function symbol.
func (ps *ProgramSpace) AddSymbol(name string, addr uint64) {
	ps.symbols[name] = addr
}

// SetSubstitutePath sets the rules applied to the file names returned by
// Sources and FindPCLine.
func (ps *ProgramSpace) SetSubstitutePath(rules [][2]string) {
	ps.substitutePathRules = rules
	ps.lineCache.Purge()
}

// Objfiles returns the object files of the program space.
func (ps *ProgramSpace) Objfiles() []*Objfile {
	return ps.objfiles
}

// SolibName returns the name of the shared library containing pc, or the
// empty string.
func (ps *ProgramSpace) SolibName(pc uint64) string {
	for _, obj := range ps.objfiles {
		if obj.IsSharedLib && obj.contains(pc) {
			return obj.Filename
		}
	}
	return ""
}

// FindPCLine returns the source line containing pc.
func (ps *ProgramSpace) FindPCLine(pc uint64) (Line, bool) {
	if v, ok := ps.lineCache.Get(pc); ok {
		r, _ := v.(Line)
		return r, r.File != ""
	}
	r := ps.findPCLine(pc)
	ps.lineCache.Add(pc, r)
	if logflags.Progspace() {
		ps.log.Debugf("line for %#x: %s:%d", pc, r.File, r.Line)
	}
	return r, r.File != ""
}

func (ps *ProgramSpace) findPCLine(pc uint64) Line {
	i := sort.Search(len(ps.lines), func(i int) bool { return ps.lines[i].PC > pc })
	if i == 0 {
		return Line{}
	}
	le := ps.lines[i-1]
	if le.End || le.File == "" {
		return Line{}
	}
	r := Line{File: SubstitutePath(le.File, ps.substitutePathRules), Line: le.Line, PC: le.PC}
	for j := i; j < len(ps.lines); j++ {
		if ps.lines[j].PC > le.PC {
			r.End = ps.lines[j].PC
			break
		}
	}
	return r
}

// BlockForPC returns the innermost block containing pc.
func (ps *ProgramSpace) BlockForPC(pc uint64) (*Block, bool) {
	fn := ps.PCToFunc(pc)
	if fn == nil {
		return nil, false
	}
	return &Block{Function: fn.Name, Start: fn.Entry, End: fn.End}, true
}

// PCToFunc returns the function containing pc, or nil.
func (ps *ProgramSpace) PCToFunc(pc uint64) *Function {
	i := sort.Search(len(ps.functions), func(i int) bool { return ps.functions[i].Entry > pc })
	if i == 0 {
		return nil
	}
	fn := &ps.functions[i-1]
	if pc >= fn.End {
		return nil
	}
	return fn
}

// LookupSymbol returns the address of the symbol called name.
func (ps *ProgramSpace) LookupSymbol(name string) (uint64, error) {
	if addr, ok := ps.symbols[name]; ok {
		return addr, nil
	}
	return 0, fmt.Errorf("no symbol %q in current context", name)
}

// LookupFunction returns the function called name. Unless full is set a
// function also matches when name is its last components ("f" matches
// "ns::f" and "pkg.f").
func (ps *ProgramSpace) LookupFunction(name string, full bool) (*Function, error) {
	var candidates []*Function
	for i := range ps.functions {
		fn := &ps.functions[i]
		if fn.Name == name {
			return fn, nil
		}
		if !full && (strings.HasSuffix(fn.Name, "::"+name) || strings.HasSuffix(fn.Name, "."+name)) {
			candidates = append(candidates, fn)
		}
	}
	switch len(candidates) {
	case 0:
		return nil, fmt.Errorf("function %q not defined", name)
	case 1:
		return candidates[0], nil
	}
	names := make([]string, len(candidates))
	for i := range candidates {
		names[i] = candidates[i].Name
	}
	return nil, AmbiguousLocationError{Location: name, CandidatesString: names}
}

// Functions returns the names of all functions, sorted.
func (ps *ProgramSpace) Functions() []string {
	r := make([]string, 0, len(ps.functions))
	for _, fn := range ps.functions {
		r = append(r, fn.Name)
	}
	sort.Strings(r)
	return r
}

// Sources returns the names of all source files, after path substitution.
func (ps *ProgramSpace) Sources() []string {
	if len(ps.substitutePathRules) == 0 {
		return ps.sources
	}
	r := make([]string, len(ps.sources))
	for i := range ps.sources {
		r[i] = SubstitutePath(ps.sources[i], ps.substitutePathRules)
	}
	sort.Strings(r)
	return r
}

// AmbiguousLocationError is returned when the location spec
// should only return one location but returns multiple instead.
type AmbiguousLocationError struct {
	Location         string
	CandidatesString []string
}

func (ale AmbiguousLocationError) Error() string {
	return fmt.Sprintf("Location %q ambiguous: %s…", ale.Location, strings.Join(ale.CandidatesString, ", "))
}

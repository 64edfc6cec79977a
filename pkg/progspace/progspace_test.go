package progspace

import (
	"errors"
	"os"
	"runtime"
	"strings"
	"testing"
)

func testProgramSpace() *ProgramSpace {
	objfiles := []*Objfile{
		{Filename: "/usr/bin/prog", LowPC: 0x401000, HighPC: 0x402000},
		{Filename: "/lib/libc.so.6", IsSharedLib: true, LowPC: 0x7f0000, HighPC: 0x7f8000},
	}
	funcs := []Function{
		{Name: "ns::helper", Entry: 0x401200, End: 0x401300},
		{Name: "main", Entry: 0x401000, End: 0x401100},
		{Name: "other::helper", Entry: 0x401300, End: 0x401400},
		{Name: "pkg.run", Entry: 0x401400, End: 0x401500},
	}
	lines := []LineEntry{
		{PC: 0x401000, File: "/src/main.c", Line: 10},
		{PC: 0x401010, File: "/src/main.c", Line: 11},
		{PC: 0x401010, File: "/src/main.c", Line: 12},
		{PC: 0x401040, File: "/src/main.c", Line: 14},
		{PC: 0x401100, End: true},
		{PC: 0x401200, File: "/src/helper.c", Line: 3},
		{PC: 0x401300, End: true},
	}
	return New(objfiles, funcs, lines)
}

func TestFindPCLine(t *testing.T) {
	ps := testProgramSpace()
	for _, tc := range []struct {
		pc   uint64
		ok   bool
		want Line
	}{
		{0x401000, true, Line{File: "/src/main.c", Line: 10, PC: 0x401000, End: 0x401010}},
		{0x401008, true, Line{File: "/src/main.c", Line: 10, PC: 0x401000, End: 0x401010}},
		{0x401020, true, Line{File: "/src/main.c", Line: 12, PC: 0x401010, End: 0x401040}},
		{0x401050, true, Line{File: "/src/main.c", Line: 14, PC: 0x401040, End: 0x401100}},
		{0x401150, false, Line{}},
		{0x400000, false, Line{}},
		{0x401250, true, Line{File: "/src/helper.c", Line: 3, PC: 0x401200, End: 0x401300}},
	} {
		for i := 0; i < 2; i++ { // second lookup is served from the cache
			got, ok := ps.FindPCLine(tc.pc)
			if ok != tc.ok || got != tc.want {
				t.Errorf("FindPCLine(%#x) = %+v, %v; want %+v, %v", tc.pc, got, ok, tc.want, tc.ok)
			}
		}
	}

	ps.SetSubstitutePath([][2]string{{"/src", "/home/user/src"}})
	if got, _ := ps.FindPCLine(0x401000); got.File != "/home/user/src/main.c" {
		t.Errorf("substitute path not applied: %q", got.File)
	}
}

func TestSolibName(t *testing.T) {
	ps := testProgramSpace()
	if got := ps.SolibName(0x7f0010); got != "/lib/libc.so.6" {
		t.Errorf("SolibName(0x7f0010) = %q", got)
	}
	if got := ps.SolibName(0x401000); got != "" {
		t.Errorf("SolibName(0x401000) = %q, main executable is not a shared library", got)
	}
	if got := ps.SolibName(0x7f8000); got != "" {
		t.Errorf("SolibName(0x7f8000) = %q, end of range is exclusive", got)
	}
}

func TestBlockForPC(t *testing.T) {
	ps := testProgramSpace()
	b, ok := ps.BlockForPC(0x401210)
	if !ok || b.Function != "ns::helper" || b.Start != 0x401200 || b.End != 0x401300 {
		t.Errorf("BlockForPC(0x401210) = %+v, %v", b, ok)
	}
	if _, ok := ps.BlockForPC(0x401150); ok {
		t.Errorf("BlockForPC(0x401150) should not find a block")
	}
	if _, ok := ps.BlockForPC(0x100); ok {
		t.Errorf("BlockForPC(0x100) should not find a block")
	}
}

func TestLookupSymbol(t *testing.T) {
	ps := testProgramSpace()
	ps.AddSymbol("counter", 0x404000)
	for name, want := range map[string]uint64{"main": 0x401000, "pkg.run": 0x401400, "counter": 0x404000} {
		got, err := ps.LookupSymbol(name)
		if err != nil || got != want {
			t.Errorf("LookupSymbol(%q) = %#x, %v; want %#x", name, got, err, want)
		}
	}
	if _, err := ps.LookupSymbol("nope"); err == nil || err.Error() != `no symbol "nope" in current context` {
		t.Errorf("LookupSymbol(nope): %v", err)
	}
}

func TestLookupFunction(t *testing.T) {
	ps := testProgramSpace()

	fn, err := ps.LookupFunction("run", false)
	if err != nil || fn.Name != "pkg.run" {
		t.Errorf("LookupFunction(run) = %v, %v", fn, err)
	}
	if _, err := ps.LookupFunction("run", true); err == nil {
		t.Errorf("LookupFunction(run, full) should fail")
	}
	fn, err = ps.LookupFunction("ns::helper", true)
	if err != nil || fn.Entry != 0x401200 {
		t.Errorf("LookupFunction(ns::helper) = %v, %v", fn, err)
	}

	_, err = ps.LookupFunction("helper", false)
	var ambiguous AmbiguousLocationError
	if !errors.As(err, &ambiguous) {
		t.Fatalf("LookupFunction(helper): expected ambiguous location error, got %v", err)
	}
	if len(ambiguous.CandidatesString) != 2 || !strings.Contains(err.Error(), "ns::helper, other::helper") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestFunctionsAndSources(t *testing.T) {
	ps := testProgramSpace()
	got := strings.Join(ps.Functions(), " ")
	if want := "main ns::helper other::helper pkg.run"; got != want {
		t.Errorf("Functions() = %q, want %q", got, want)
	}
	got = strings.Join(ps.Sources(), " ")
	if want := "/src/helper.c /src/main.c"; got != want {
		t.Errorf("Sources() = %q, want %q", got, want)
	}
	ps.SetSubstitutePath([][2]string{{"/src/", ""}})
	got = strings.Join(ps.Sources(), " ")
	if want := "helper.c main.c"; got != want {
		t.Errorf("Sources() = %q, want %q", got, want)
	}
	if len(ps.Objfiles()) != 2 {
		t.Errorf("Objfiles() = %v", ps.Objfiles())
	}
}

func TestLoadExecutable(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("ELF only")
	}
	exe, err := os.Executable()
	if err != nil {
		t.Fatal(err)
	}
	ps, err := Load(exe)
	if err != nil {
		t.Fatalf("Load(%s): %v", exe, err)
	}
	addr, err := ps.LookupSymbol("runtime.main")
	if err != nil {
		t.Fatalf("LookupSymbol(runtime.main): %v", err)
	}
	fn := ps.PCToFunc(addr)
	if fn == nil || fn.Name != "runtime.main" {
		t.Fatalf("PCToFunc(%#x) = %v", addr, fn)
	}
	if ps.Objfiles()[0].Filename != exe {
		t.Errorf("first object file is %q", ps.Objfiles()[0].Filename)
	}
	if ln, ok := ps.FindPCLine(addr); ok && !strings.HasSuffix(ln.File, "proc.go") {
		t.Errorf("runtime.main at %s:%d", ln.File, ln.Line)
	}
}

package breakpoint

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/go-delve/evloc/pkg/locspec"
)

func mustParse(t *testing.T, p *locspec.Parser, s string) *locspec.Location {
	t.Helper()
	loc, n, err := p.Parse(s, locspec.MatchWild)
	if err != nil {
		t.Fatalf("Parse(%q): %v", s, err)
	}
	if n != len(s) {
		t.Fatalf("Parse(%q) consumed %d bytes", s, n)
	}
	return loc
}

func TestTable(t *testing.T) {
	p := &locspec.Parser{}
	tbl := NewTable()
	b1 := tbl.Add(Break, mustParse(t, p, "main"), "")
	b2 := tbl.Add(Trace, mustParse(t, p, "-source foo.c -line 3"), "")
	if b1.ID != 1 || b2.ID != 2 {
		t.Fatalf("unexpected IDs %d %d", b1.ID, b2.ID)
	}
	if err := tbl.Remove(1); err != nil {
		t.Fatal(err)
	}
	if err := tbl.Remove(1); !errors.Is(err, ErrNoSuchBreakpoint) {
		t.Errorf("second Remove(1): %v", err)
	}
	if _, err := tbl.Get(2); err != nil {
		t.Errorf("Get(2): %v", err)
	}
	tbl.Clear()
	if len(tbl.List()) != 0 {
		t.Errorf("table not empty after Clear")
	}
	if b3 := tbl.Add(Break, mustParse(t, p, "main"), ""); b3.ID != 3 {
		t.Errorf("IDs should not be reused, got %d", b3.ID)
	}
}

func TestKind(t *testing.T) {
	for _, k := range []Kind{Break, Trace, Dprintf} {
		got, err := ParseKind(k.String())
		if err != nil || got != k {
			t.Errorf("ParseKind(%q) = %v, %v", k.String(), got, err)
		}
	}
	if _, err := ParseKind("watch"); err == nil {
		t.Errorf("ParseKind(watch) should fail")
	}
}

func TestSaveLoad(t *testing.T) {
	p := &locspec.Parser{}
	tbl := NewTable()
	for _, s := range []string{
		"main",
		"-qualified ns::fn",
		"-source foo.c -function bar -line +2",
		"*0x400000",
		"-probe-stap libc:setjmp",
		"foo.c:42",
	} {
		tbl.Add(Break, mustParse(t, p, s), "")
	}
	tbl.Add(Dprintf, mustParse(t, p, "foo.c:10"), "x=%d\n", "x")

	var buf bytes.Buffer
	if err := tbl.Save(&buf); err != nil {
		t.Fatalf("Save: %v", err)
	}

	tbl2 := NewTable()
	n, err := tbl2.Load(&buf, p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	before, after := tbl.List(), tbl2.List()
	if n != len(before) || len(after) != len(before) {
		t.Fatalf("loaded %d breakpoints, want %d", n, len(before))
	}
	for i := range before {
		if before[i].Location.String() != after[i].Location.String() {
			t.Errorf("breakpoint %d: %q became %q", i, before[i].Location.String(), after[i].Location.String())
		}
		if before[i].Location.Kind() != after[i].Location.Kind() {
			t.Errorf("breakpoint %d: kind %v became %v", i, before[i].Location.Kind(), after[i].Location.Kind())
		}
		if before[i].Kind != after[i].Kind || before[i].Format != after[i].Format || strings.Join(before[i].Args, ",") != strings.Join(after[i].Args, ",") {
			t.Errorf("breakpoint %d: %+v became %+v", i, before[i], after[i])
		}
	}
	if mt := after[1].Location.Linespec().MatchType; mt != locspec.MatchFull {
		t.Errorf("match type of qualified linespec lost: %v", mt)
	}
}

func TestLoadErrors(t *testing.T) {
	p := &locspec.Parser{}
	for _, in := range []string{
		"breakpoints:\n- kind: break\n  location: main if x\n",
		"breakpoints:\n- kind: watch\n  location: main\n",
		"breakpoints:\n- kind: break\n  location: -source foo.c\n",
		"breakpoints: [",
	} {
		tbl := NewTable()
		if _, err := tbl.Load(strings.NewReader(in), p); err == nil {
			t.Errorf("Load(%q) should fail", in)
		}
		if len(tbl.List()) != 0 {
			t.Errorf("Load(%q) added breakpoints despite failing", in)
		}
	}

	n, err := NewTable().Load(strings.NewReader(""), p)
	if err != nil || n != 0 {
		t.Errorf("Load of empty input: %d, %v", n, err)
	}
}

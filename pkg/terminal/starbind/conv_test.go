package starbind

import (
	"io"
	"testing"

	"go.starlark.net/starlark"

	"github.com/go-delve/evloc/pkg/locspec"
	"github.com/go-delve/evloc/pkg/progspace"
)

func TestConv(t *testing.T) {
	globals, err := starlark.ExecFile(&starlark.Thread{}, "test.star", "x = [1, 2]\npc = 0x401000\nname = 'main'\nneg = -1\n", nil)
	if err != nil {
		t.Fatal(err)
	}

	var x []int
	if err := unmarshalStarlarkValue(globals["x"], &x, "x"); err != nil {
		t.Fatal(err)
	}
	if len(x) != 2 || x[0] != 1 || x[1] != 2 {
		t.Fatalf("expected [1 2], got: %v", x)
	}

	var pc uint64
	if err := unmarshalStarlarkValue(globals["pc"], &pc, "pc"); err != nil {
		t.Fatal(err)
	}
	if pc != 0x401000 {
		t.Errorf("expected 0x401000, got %#x", pc)
	}

	if err := unmarshalStarlarkValue(globals["name"], &pc, "pc"); err == nil {
		t.Error("string converted to an address")
	}
	if err := unmarshalStarlarkValue(globals["neg"], &pc, "pc"); err == nil {
		t.Error("negative number converted to an address")
	}

	pc = 7
	if err := unmarshalStarlarkValue(starlark.None, &pc, "pc"); err != nil || pc != 7 {
		t.Errorf("None changed the destination: %v %d", err, pc)
	}
}

func TestConvToStarlark(t *testing.T) {
	env := New(&fakeContext{}, io.Discard)

	for _, tc := range []struct {
		in   interface{}
		want string
	}{
		{nil, "None"},
		{uint64(0x10), "16"},
		{int32(-3), "-3"},
		{"main", `"main"`},
		{true, "True"},
		{(*progspace.Block)(nil), "None"},
	} {
		if got := env.interfaceToStarlarkValue(tc.in).String(); got != tc.want {
			t.Errorf("%#v: got %s, want %s", tc.in, got, tc.want)
		}
	}

	v := env.interfaceToStarlarkValue(progspace.Line{File: "a.c", Line: 3, PC: 0x10, End: 0x20})
	attrs, ok := v.(starlark.HasAttrs)
	if !ok {
		t.Fatalf("line converted to %T", v)
	}
	line, err := attrs.Attr("Line")
	if err != nil || line.String() != "3" {
		t.Errorf("Line attribute: %v %v", line, err)
	}
	if _, err := attrs.Attr("Column"); err == nil {
		t.Error("missing field found")
	}

	objs := env.interfaceToStarlarkValue([]*progspace.Objfile{{Filename: "a.out"}})
	seq, ok := objs.(starlark.Indexable)
	if !ok || seq.Len() != 1 {
		t.Fatalf("objfiles converted to %v", objs)
	}

	loc := env.interfaceToStarlarkValue(locspec.NewLinespecLocation("foo.c:3", locspec.MatchWild))
	if _, ok := loc.(locationValue); !ok {
		t.Errorf("location converted to %T", loc)
	}
}

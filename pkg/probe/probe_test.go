package probe

import "testing"

func TestDetect(t *testing.T) {
	for _, tc := range []struct {
		in   string
		kind Kind
		n    int
		ok   bool
	}{
		{"-probe foo", Any, 6, true},
		{"-p foo", Any, 2, true},
		{"-probe-stap libc:setjmp", SystemTap, 11, true},
		{"-pstap\tfoo", SystemTap, 6, true},
		{"-probe-dtrace foo", DTrace, 13, true},
		{"-pdtrace foo", DTrace, 8, true},
		{"-probe", Any, 0, false},
		{"-pfoo bar", Any, 0, false},
		{"*0x400000", Any, 0, false},
		{"-function main", Any, 0, false},
	} {
		kind, n, ok := Detect(tc.in)
		if kind != tc.kind || n != tc.n || ok != tc.ok {
			t.Errorf("Detect(%q) = %v, %d, %v; want %v, %d, %v", tc.in, kind, n, ok, tc.kind, tc.n, tc.ok)
		}
	}
}

func TestParse(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want Spec
	}{
		{"-probe setjmp", Spec{Kind: Any, Name: "setjmp"}},
		{"-pstap libc:setjmp", Spec{Kind: SystemTap, Provider: "libc", Name: "setjmp"}},
		{"-probe-dtrace  /lib/libc.so:libc:longjmp if x", Spec{Kind: DTrace, Objfile: "/lib/libc.so", Provider: "libc", Name: "longjmp"}},
	} {
		spec, err := Parse(tc.in)
		if err != nil {
			t.Fatalf("Parse(%q): %v", tc.in, err)
		}
		if *spec != tc.want {
			t.Errorf("Parse(%q) = %#v, want %#v", tc.in, *spec, tc.want)
		}
	}

	for _, tc := range []struct {
		in  string
		err error
	}{
		{"break main", ErrNotProbe},
		{"-probe  ", ErrNoProbeName},
		{"-probe libc:", ErrNoProbeName},
		{"-probe :setjmp", ErrInvalidProvider},
		{"-probe :libc:setjmp", ErrInvalidObjfile},
	} {
		if _, err := Parse(tc.in); err != tc.err {
			t.Errorf("Parse(%q): got error %v, want %v", tc.in, err, tc.err)
		}
	}
}

func TestSpecString(t *testing.T) {
	spec := &Spec{Objfile: "a.out", Provider: "prov", Name: "name"}
	if s := spec.String(); s != "a.out:prov:name" {
		t.Errorf("unexpected string %q", s)
	}
	spec = &Spec{Name: "name"}
	if s := spec.String(); s != "name" {
		t.Errorf("unexpected string %q", s)
	}
}

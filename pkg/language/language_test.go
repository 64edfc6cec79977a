package language

import "testing"

func TestLookup(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want ID
	}{
		{"c", C},
		{"C++", CPlusPlus},
		{"cpp", CPlusPlus},
		{" ada ", Ada},
		{"golang", Go},
		{"objc", ObjC},
	} {
		l, err := Lookup(tc.in)
		if err != nil {
			t.Fatalf("Lookup(%q): %v", tc.in, err)
		}
		if l.ID != tc.want {
			t.Errorf("Lookup(%q) = %v, want id %d", tc.in, l, tc.want)
		}
	}
	if _, err := Lookup("cobol"); err == nil {
		t.Fatalf("expected error for unknown language")
	}
}

func TestIsQuote(t *testing.T) {
	l := MustLookup("c")
	for _, ch := range []byte{'"', '\''} {
		if !l.IsQuote(ch) {
			t.Errorf("%q should be a quote character", ch)
		}
	}
	for _, ch := range []byte{'`', 'a', 0} {
		if l.IsQuote(ch) {
			t.Errorf("%q should not be a quote character", ch)
		}
	}
}

func TestAdaOperatorLen(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want int
	}{
		{`"<"`, 3},
		{`"<=" rest`, 4},
		{`"**"`, 4},
		{`"and"`, 5},
		{`"foo"`, 0},
		{`<`, 0},
	} {
		if got := AdaOperatorLen(tc.in); got != tc.want {
			t.Errorf("AdaOperatorLen(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestDefault(t *testing.T) {
	if Default.ID != CPlusPlus || !Default.CPlusOperators {
		t.Fatalf("unexpected default language %v", Default)
	}
}

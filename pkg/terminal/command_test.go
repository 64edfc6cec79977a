package terminal

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/go-delve/evloc/pkg/breakpoint"
	"github.com/go-delve/evloc/pkg/config"
	"github.com/go-delve/evloc/pkg/progspace"
)

func testProgramSpace() *progspace.ProgramSpace {
	return progspace.New(
		[]*progspace.Objfile{
			{Filename: "/usr/bin/prog", LowPC: 0x401000, HighPC: 0x402000},
			{Filename: "/lib/libc.so.6", IsSharedLib: true, LowPC: 0x7f0000, HighPC: 0x7f8000},
		},
		[]progspace.Function{
			{Name: "main", Entry: 0x401000, End: 0x401100},
			{Name: "ns::helper", Entry: 0x401200, End: 0x401300},
			{Name: "other::helper", Entry: 0x401300, End: 0x401400},
		},
		[]progspace.LineEntry{
			{PC: 0x401000, File: "/src/main.c", Line: 10},
			{PC: 0x401010, File: "/src/main.c", Line: 11},
			{PC: 0x401100, End: true},
			{PC: 0x401200, File: "/src/helper.c", Line: 3},
			{PC: 0x401300, End: true},
		})
}

type FakeTerminal struct {
	*Term
	out *bytes.Buffer
	t   testing.TB
}

func newFakeTerminal(t testing.TB, conf *config.Config) *FakeTerminal {
	out := new(bytes.Buffer)
	term := newTerm(testProgramSpace(), conf, out, false)
	return &FakeTerminal{Term: term, out: out, t: t}
}

func (ft *FakeTerminal) Exec(cmdstr string) (string, error) {
	ft.out.Reset()
	err := ft.cmds.Call(cmdstr, ft.Term)
	return ft.out.String(), err
}

func (ft *FakeTerminal) MustExec(cmdstr string) string {
	ft.t.Helper()
	outstr, err := ft.Exec(cmdstr)
	if err != nil {
		ft.t.Fatalf("Error executing <%s>: %v", cmdstr, err)
	}
	return outstr
}

func (ft *FakeTerminal) AssertExecError(cmdstr, tgterr string) {
	ft.t.Helper()
	_, err := ft.Exec(cmdstr)
	if err == nil {
		ft.t.Fatalf("Expected error executing %q", cmdstr)
	}
	if !strings.Contains(err.Error(), tgterr) {
		ft.t.Fatalf("Expected error %q executing %q, got error %q", tgterr, cmdstr, err.Error())
	}
}

func TestCommandDefault(t *testing.T) {
	var (
		cmds = Commands{}
		cmd  = cmds.Find("non-existent-command")
	)

	err := cmd(nil, "")
	if err == nil {
		t.Fatal("cmd() did not default")
	}

	if err.Error() != "command not available" {
		t.Fatal("wrong command output")
	}
}

func TestIssue354(t *testing.T) {
	cmds := DebugCommands()
	if cmd := cmds.Find(""); cmd == nil {
		t.Fatal("empty command did not return the null command")
	}
	if err := cmds.Find("")(nil, ""); err != nil {
		t.Fatalf("null command returned error: %v", err)
	}
}

func TestCommandMerge(t *testing.T) {
	cmds := DebugCommands()
	cmds.Merge(map[string][]string{"break": {"bb"}})
	if cmd := cmds.find("bb"); cmd == nil || cmd.aliases[0] != "break" {
		t.Fatalf("alias bb not merged: %v", cmd)
	}
	// merging again starts from the builtin aliases
	cmds.Merge(map[string][]string{"break": {"bbb"}})
	if cmds.find("bb") != nil {
		t.Fatal("old alias bb still present")
	}
	if cmd := cmds.find("bbb"); cmd == nil || !cmd.location {
		t.Fatal("alias bbb not merged")
	}
}

func TestBreakpoints(t *testing.T) {
	ft := newFakeTerminal(t, nil)

	out := ft.MustExec("break main")
	if out != "Breakpoint 1 set at main: 0x401000 in main at /src/main.c:10\n" {
		t.Errorf("break main: %q", out)
	}
	out = ft.MustExec("trace foo.c:42")
	if out != "Tracepoint 2 set at foo.c:42\n" {
		t.Errorf("trace foo.c:42: %q", out)
	}
	out = ft.MustExec("b *0x7f0010")
	if out != "Breakpoint 3 set at *0x7f0010: 0x7f0010 from /lib/libc.so.6\n" {
		t.Errorf("b *0x7f0010: %q", out)
	}
	out = ft.MustExec("break -function main -line 3")
	if out != "Breakpoint 4 set at -function main -line 3\n" {
		t.Errorf("break explicit: %q", out)
	}

	ft.AssertExecError("break", "a location is required")
	ft.AssertExecError("break main, garbage", "garbage at end of location")
	ft.AssertExecError("break -source foo.c", "source filename requires")

	out = ft.MustExec("breakpoints")
	for _, want := range []string{"main", "foo.c:42", "*0x7f0010", "0x401000", "<pending>", "trace"} {
		if !strings.Contains(out, want) {
			t.Errorf("breakpoints output does not contain %q:\n%s", want, out)
		}
	}

	ft.MustExec("clear 2")
	ft.AssertExecError("clear 2", "no such breakpoint")
	ft.AssertExecError("clear two", "invalid breakpoint id")
	if n := len(ft.bps.List()); n != 3 {
		t.Errorf("expected 3 breakpoints, got %d", n)
	}

	ft.MustExec("clearall *0x7f0010")
	if n := len(ft.bps.List()); n != 2 {
		t.Errorf("expected 2 breakpoints after clearall <location>, got %d", n)
	}
	ft.MustExec("clearall")
	if out := ft.MustExec("bp"); out != "No breakpoints.\n" {
		t.Errorf("bp after clearall: %q", out)
	}
}

func TestDprintf(t *testing.T) {
	ft := newFakeTerminal(t, nil)
	ft.MustExec(`dprintf main,"x=%d y=%s\n",x,f(a, b)`)
	bps := ft.bps.List()
	if len(bps) != 1 {
		t.Fatalf("expected one breakpoint, got %d", len(bps))
	}
	bp := bps[0]
	if bp.Kind != breakpoint.Dprintf || bp.Format != "x=%d y=%s\n" || !reflect.DeepEqual(bp.Args, []string{"x", "f(a, b)"}) {
		t.Errorf("wrong dprintf: %#v", bp)
	}
	if bp.Location.String() != "main" {
		t.Errorf("wrong dprintf location %q", bp.Location.String())
	}

	ft.MustExec(`dprintf foo.c:3,"hello"`)

	ft.AssertExecError("dprintf main", "format string required")
	ft.AssertExecError("dprintf main,x", "format string required")
	ft.AssertExecError(`dprintf main,"a" x`, "expected ','")
	ft.AssertExecError(`dprintf main,"a",x,`, "empty argument")
}

func TestParseDprintfArgs(t *testing.T) {
	for _, tc := range []struct {
		in     string
		format string
		args   []string
	}{
		{`"a"`, "a", nil},
		{`"%d,%d", x, y`, "%d,%d", []string{"x", "y"}},
		{`"%s", s[1], g(1,2)`, "%s", []string{"s[1]", "g(1,2)"}},
		{`"%s",  "a,b"`, "%s", []string{`"a,b"`}},
	} {
		format, args, err := parseDprintfArgs(tc.in)
		if err != nil {
			t.Errorf("parseDprintfArgs(%q): %v", tc.in, err)
			continue
		}
		if format != tc.format || !reflect.DeepEqual(args, tc.args) {
			t.Errorf("parseDprintfArgs(%q) = %q %q, want %q %q", tc.in, format, args, tc.format, tc.args)
		}
	}
}

func TestParseCommand(t *testing.T) {
	ft := newFakeTerminal(t, nil)
	for _, tc := range []struct {
		in   string
		want []string
	}{
		{"foo.c:42", []string{"linespec\n", "foo.c:42\n", "wild\n"}},
		{"-qualified ns::helper", []string{"linespec\n", "-qualified ns::helper\n", "full\n"}},
		{"-source foo.c -line +3", []string{"explicit\n", "-source foo.c -line +3\n", "foo.c:+3\n"}},
		{"*main + 4", []string{"address\n", "*main + 4\n", "0x401004\n"}},
		{"main if x > 3", []string{"linespec\n", `"if x > 3"`}},
		{"-probe-stap libc:setjmp", []string{"probe\n", "-probe-stap libc:setjmp\n"}},
	} {
		out := ft.MustExec("parse " + tc.in)
		for _, want := range tc.want {
			if !strings.Contains(out, want) {
				t.Errorf("parse %s: output does not contain %q:\n%s", tc.in, want, out)
			}
		}
	}
	ft.AssertExecError("parse *nosuchsym", "nosuchsym")
}

func TestInfoCommand(t *testing.T) {
	ft := newFakeTerminal(t, nil)
	for _, tc := range []struct {
		in, want string
	}{
		{"main", "main is at 0x401000 in main at /src/main.c:10\n"},
		{"*0x401012", "*0x401012 is at 0x401012 in main+18 at /src/main.c:11\n"},
		{"-qualified ns::helper", "-qualified ns::helper is at 0x401200 in ns::helper at /src/helper.c:3\n"},
		{"-function other::helper", "-function other::helper is at 0x401300 in other::helper\n"},
	} {
		if out := ft.MustExec("info " + tc.in); out != tc.want {
			t.Errorf("info %s: got %q want %q", tc.in, out, tc.want)
		}
	}
	ft.AssertExecError("info helper", "ambiguous")
	ft.AssertExecError("info foo.c:42", "can not be resolved")
	ft.AssertExecError("info nosuchfn", "not defined")
	ft.AssertExecError("info", "not enough arguments")
}

func TestCompleteCommand(t *testing.T) {
	ft := newFakeTerminal(t, nil)
	out := ft.MustExec("complete -function ns::")
	if out != "-function ns::helper\n" {
		t.Errorf("complete -function ns::: %q", out)
	}
	out = ft.MustExec("complete -sou")
	if out != "-source\n" {
		t.Errorf("complete -sou: %q", out)
	}

	head, cands, tail := ft.completeLine("br", 2)
	if head != "" || !reflect.DeepEqual(cands, []string{"break ", "breakpoints "}) || tail != "" {
		t.Errorf("completeLine(br) = %q %q %q", head, cands, tail)
	}
	head, cands, _ = ft.completeLine("break -function ns::", 20)
	if head != "break -function " || !reflect.DeepEqual(cands, []string{"ns::helper"}) {
		t.Errorf("completeLine(break -function ns::) = %q %q", head, cands)
	}
	if _, cands, _ := ft.completeLine("clear 1", 7); cands != nil {
		t.Errorf("clear does not take a location, got completions %q", cands)
	}
}

func TestLanguageCommand(t *testing.T) {
	ft := newFakeTerminal(t, nil)
	out := ft.MustExec("language")
	if !strings.Contains(out, `"c++"`) {
		t.Errorf("default language not reported: %q", out)
	}
	ft.MustExec("language ada")
	if ft.parser.Lang.Name != "ada" || ft.conf.Language != "ada" {
		t.Errorf("language not changed: %q %q", ft.parser.Lang.Name, ft.conf.Language)
	}
	ft.AssertExecError("language cobol", "cobol")
}

func TestSaveRestore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bps.yml")
	ft := newFakeTerminal(t, &config.Config{BreakpointFile: path})
	ft.MustExec("break main")
	ft.MustExec("trace -qualified ns::helper")
	ft.MustExec(`dprintf foo.c:3,"%d\n",x`)
	if out := ft.MustExec("save"); !strings.Contains(out, "Saved 3 breakpoints") {
		t.Errorf("save: %q", out)
	}

	ft2 := newFakeTerminal(t, nil)
	ft2.AssertExecError("restore", "breakpoint-file is not configured")
	if out := ft2.MustExec(`restore "` + path + `"`); !strings.Contains(out, "Restored 3 breakpoints") {
		t.Errorf("restore: %q", out)
	}
	bps := ft2.bps.List()
	if len(bps) != 3 {
		t.Fatalf("expected 3 restored breakpoints, got %d", len(bps))
	}
	for i, want := range []string{"main", "-qualified ns::helper", "foo.c:3"} {
		if got := bps[i].Location.String(); got != want {
			t.Errorf("breakpoint %d: location %q, want %q", i, got, want)
		}
	}
}

func TestConfig(t *testing.T) {
	var term Term
	term.conf = &config.Config{}
	term.cmds = DebugCommands()
	term.parser = nil
	term.stdout = &pagingWriter{w: new(bytes.Buffer)}

	err := configureCmd(&term, "log-max-size 10")
	if err != nil {
		t.Fatalf("error executing configureCmd(log-max-size): %v", err)
	}
	if term.conf.LogMaxSize != 10 {
		t.Fatalf("expected LogMaxSize 10, got: %d", term.conf.LogMaxSize)
	}
	err = configureCmd(&term, "log-compress true")
	if err != nil {
		t.Fatalf("error executing configureCmd(log-compress true): %v", err)
	}
	if !term.conf.LogCompress {
		t.Fatal("expected LogCompress true, got false")
	}
	err = configureCmd(&term, `breakpoint-file "/tmp/my bps.yml"`)
	if err != nil {
		t.Fatalf("error executing configureCmd(breakpoint-file): %v", err)
	}
	if term.conf.BreakpointFile != "/tmp/my bps.yml" {
		t.Fatalf("wrong breakpoint file %q", term.conf.BreakpointFile)
	}

	err = configureCmd(&term, "substitute-path a b")
	if err != nil {
		t.Fatalf("error executing configureCmd(substitute-path a b): %v", err)
	}
	if len(term.conf.SubstitutePath) != 1 || (term.conf.SubstitutePath[0] != config.SubstitutePathRule{From: "a", To: "b"}) {
		t.Fatalf("unexpected SubstitutePathRules after insert %v", term.conf.SubstitutePath)
	}

	err = configureCmd(&term, "substitute-path a")
	if err != nil {
		t.Fatalf("error executing configureCmd(substitute-path a): %v", err)
	}
	if len(term.conf.SubstitutePath) != 0 {
		t.Fatalf("unexpected length of SubstitutePathRules after delete %v", term.conf.SubstitutePath)
	}

	err = configureCmd(&term, "alias break blah")
	if err != nil {
		t.Fatalf("error executing configureCmd(alias break blah): %v", err)
	}
	if len(term.conf.Aliases["break"]) != 1 {
		t.Fatalf("aliases not changed after configure command %v", term.conf.Aliases)
	}
	if term.cmds.find("blah") == nil {
		t.Fatalf("new alias not found")
	}

	err = configureCmd(&term, "alias blah")
	if err != nil {
		t.Fatalf("error executing configureCmd(alias blah): %v", err)
	}
	if len(term.conf.Aliases["break"]) != 0 || term.cmds.find("blah") != nil {
		t.Fatalf("alias not removed after configure command %v", term.conf.Aliases)
	}

	if err := configureCmd(&term, "nonexistent 1"); err == nil {
		t.Fatal("expected error setting nonexistent parameter")
	}
	if err := configureCmd(&term, "log-max-age x"); err == nil {
		t.Fatal("expected error setting a number parameter to a string")
	}
}

func TestConfigSubstitutePathProgramSpace(t *testing.T) {
	ft := newFakeTerminal(t, nil)
	ft.MustExec("config substitute-path /src /home/user/src")
	if out := ft.MustExec("info main"); !strings.Contains(out, "/home/user/src/main.c:10") {
		t.Errorf("substitute-path not applied to the program space: %q", out)
	}
	ft.MustExec("config language go")
	if ft.parser.Lang.Name != "go" {
		t.Errorf("config language did not change the parser language")
	}
	out := ft.MustExec("config -list")
	if !strings.Contains(out, "language") || !strings.Contains(out, `"go"`) {
		t.Errorf("config -list: %q", out)
	}
}

func TestHelp(t *testing.T) {
	ft := newFakeTerminal(t, nil)
	out := ft.MustExec("help")
	for _, want := range []string{"Manipulating breakpoints:", "Parsing and resolving locations:", "break (alias: b)", "dprintf"} {
		if !strings.Contains(out, want) {
			t.Errorf("help output does not contain %q", want)
		}
	}
	out = ft.MustExec("help dprintf")
	if !strings.HasPrefix(out, "Sets a dynamic printf.") {
		t.Errorf("help dprintf: %q", out)
	}
	ft.AssertExecError("help nosuchcommand", "command not available")
}

func TestSourceCommand(t *testing.T) {
	dir := t.TempDir()
	cmdfile := filepath.Join(dir, "init.txt")
	if err := os.WriteFile(cmdfile, []byte("# comment\nbreak main\n\nbogus\ntrace foo.c:1\n"), 0600); err != nil {
		t.Fatal(err)
	}
	ft := newFakeTerminal(t, nil)
	out := ft.MustExec("source " + cmdfile)
	if !strings.Contains(out, cmdfile+":4: command not available") {
		t.Errorf("error in command file not reported: %q", out)
	}
	if n := len(ft.bps.List()); n != 2 {
		t.Errorf("expected 2 breakpoints from command file, got %d", n)
	}

	script := filepath.Join(dir, "script.star")
	src := `
def command_bmain(args):
	"Sets a breakpoint on main."
	evloc_command("break main")

def main():
	loc, rest = parse_location("-function ns::helper")
	evloc_command("trace " + loc.string)
`
	if err := os.WriteFile(script, []byte(src), 0600); err != nil {
		t.Fatal(err)
	}
	ft.MustExec("source " + script)
	bps := ft.bps.List()
	if len(bps) != 3 || bps[2].Location.String() != "-function ns::helper" {
		t.Fatalf("starlark script did not set a tracepoint: %d breakpoints", len(bps))
	}
	ft.MustExec("bmain")
	if n := len(ft.bps.List()); n != 4 {
		t.Errorf("starlark command did not set a breakpoint")
	}
	if out := ft.MustExec("help bmain"); !strings.Contains(out, "Sets a breakpoint on main.") {
		t.Errorf("help for starlark command: %q", out)
	}

	ft.AssertExecError("source", "wrong number of arguments")
	ft.AssertExecError("source a b", "wrong number of arguments")
}

func TestExit(t *testing.T) {
	ft := newFakeTerminal(t, nil)
	_, err := ft.Exec("quit")
	if _, ok := err.(ExitRequestError); !ok {
		t.Fatalf("expected ExitRequestError, got %v", err)
	}
}

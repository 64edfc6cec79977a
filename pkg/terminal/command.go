// Package terminal implements functions for responding to user
// input and dispatching to appropriate backend commands.
package terminal

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/cosiner/argv"
	"github.com/olekukonko/tablewriter"

	"github.com/go-delve/evloc/pkg/breakpoint"
	"github.com/go-delve/evloc/pkg/config"
	"github.com/go-delve/evloc/pkg/language"
	"github.com/go-delve/evloc/pkg/locspec"
)

type cmdfunc func(t *Term, args string) error

type command struct {
	aliases        []string
	builtinAliases []string
	group          commandGroup
	// location is set for commands whose argument starts with a location,
	// it enables location completion.
	location bool
	helpMsg  string
	cmdFn    cmdfunc
}

// Returns true if the command string matches one of the aliases for this command
func (c command) match(cmdstr string) bool {
	for _, v := range c.aliases {
		if v == cmdstr {
			return true
		}
	}
	return false
}

// Commands represents the commands for the evloc terminal.
type Commands struct {
	cmds []command
}

// byFirstAlias will sort by the first
// alias of a command.
type byFirstAlias []command

func (a byFirstAlias) Len() int           { return len(a) }
func (a byFirstAlias) Swap(i, j int)      { a[i], a[j] = a[j], a[i] }
func (a byFirstAlias) Less(i, j int) bool { return a[i].aliases[0] < a[j].aliases[0] }

const locationHelp = `A location is one of:

	LINESPEC		foo.c:42, main, ns::Klass::method, 'file name.c':10
	*ADDRESS		*0x400000, *main+8
	explicit options	-source foo.c -function bar -label out -line +3
	probe			-probe-stap [OBJFILE:][PROVIDER:]NAME

Add -qualified before a function name to only match fully qualified names.`

// DebugCommands returns a Commands struct with default commands defined.
func DebugCommands() *Commands {
	c := &Commands{}

	c.cmds = []command{
		{aliases: []string{"help", "h"}, cmdFn: c.help, helpMsg: `Prints the help message.

	help [command]

Type "help" followed by the name of a command for more information about it.`},
		{aliases: []string{"break", "b"}, group: breakCmds, location: true, cmdFn: breakpointCmd, helpMsg: `Sets a breakpoint.

	break <location>

` + locationHelp},
		{aliases: []string{"trace", "t"}, group: breakCmds, location: true, cmdFn: tracepointCmd, helpMsg: `Sets a tracepoint.

	trace <location>

A tracepoint is a breakpoint that does not stop the execution of the program.`},
		{aliases: []string{"dprintf"}, group: breakCmds, location: true, cmdFn: dprintfCmd, helpMsg: `Sets a dynamic printf.

	dprintf <location>,"<format>"[,<arg>...]

Example:

	dprintf foo.c:42,"x=%d y=%s\n",x,name`},
		{aliases: []string{"clear"}, group: breakCmds, cmdFn: clearCmd, helpMsg: `Deletes breakpoint.

	clear <breakpoint id>`},
		{aliases: []string{"clearall"}, group: breakCmds, location: true, cmdFn: clearAllCmd, helpMsg: `Deletes multiple breakpoints.

	clearall [<location>]

If called with the location argument it will delete all the breakpoints set on that location, otherwise all breakpoints are deleted.`},
		{aliases: []string{"breakpoints", "bp"}, group: breakCmds, cmdFn: breakpointsCmd, helpMsg: "Print out info for active breakpoints."},
		{aliases: []string{"save"}, group: breakCmds, cmdFn: saveCmd, helpMsg: `Saves breakpoints to a file.

	save [<file>]

If no file is specified the breakpoint-file configuration parameter is used.`},
		{aliases: []string{"restore"}, group: breakCmds, cmdFn: restoreCmd, helpMsg: `Restores breakpoints saved with the save command.

	restore [<file>]`},
		{aliases: []string{"parse"}, group: locationCmds, location: true, cmdFn: parseCmd, helpMsg: `Parses a location and prints its canonical form.

	parse <location>

` + locationHelp},
		{aliases: []string{"info", "i"}, group: locationCmds, location: true, cmdFn: infoCmd, helpMsg: `Resolves a location using the symbols of the program.

	info <location>

Prints the address, function, source line and shared library of the location.`},
		{aliases: []string{"complete"}, group: locationCmds, location: true, cmdFn: completeCmd, helpMsg: `Lists the completions of a partial location.

	complete <text>`},
		{aliases: []string{"language", "lang"}, group: locationCmds, cmdFn: languageCmd, helpMsg: `Shows or sets the language used to parse locations.

	language [<name>]

The language selects the quote characters and the operator syntax (C++ operator names, Ada quoted operators).`},
		{aliases: []string{"config"}, cmdFn: configureCmd, helpMsg: `Changes configuration parameters.

	config -list

Show all configuration parameters.

	config -save

Saves the configuration file to disk, overwriting the current configuration file.

	config <parameter> <value>

Changes the value of a configuration parameter.

	config substitute-path <from> <to>
	config substitute-path <from>

Adds or removes a path substitution rule.

	config alias <command> <alias>
	config alias <alias>

Defines <alias> as an alias to <command> or removes an alias.`},
		{aliases: []string{"source"}, cmdFn: c.sourceCommand, helpMsg: `Executes a file containing a list of evloc commands.

	source <path>

If path ends with the .star extension it will be interpreted as a starlark script. See Documentation/cli/starlark.md for the syntax.

If path is a single '-' character an interactive starlark interpreter will start instead. Type 'exit' to exit.`},
		{aliases: []string{"exit", "quit", "q"}, cmdFn: exitCommand, helpMsg: `Exit the terminal.

	exit`},
	}

	sort.Sort(byFirstAlias(c.cmds))
	return c
}

// Register custom commands. Expects cf to be a func of type cmdfunc,
// returning only an error.
func (c *Commands) Register(cmdstr string, cf cmdfunc, helpMsg string) {
	for i := range c.cmds {
		if c.cmds[i].match(cmdstr) {
			c.cmds[i].cmdFn = cf
			return
		}
	}

	c.cmds = append(c.cmds, command{aliases: []string{cmdstr}, cmdFn: cf, helpMsg: helpMsg})
}

func (c *Commands) find(cmdstr string) *command {
	for i := range c.cmds {
		if c.cmds[i].match(cmdstr) {
			return &c.cmds[i]
		}
	}
	return nil
}

// Find will look up the command function for the given command input.
// If it cannot find the command it will default to noCmdAvailable().
// If the command is an empty string it will do nothing.
func (c *Commands) Find(cmdstr string) cmdfunc {
	if cmdstr == "" {
		return nullCommand
	}
	if cmd := c.find(cmdstr); cmd != nil {
		return cmd.cmdFn
	}
	return noCmdAvailable
}

// Call takes a command to execute.
func (c *Commands) Call(cmdstr string, t *Term) error {
	vals := strings.SplitN(strings.TrimSpace(cmdstr), " ", 2)
	cmdname := vals[0]
	var args string
	if len(vals) > 1 {
		args = strings.TrimSpace(vals[1])
	}
	if t.log != nil {
		t.log.WithField("args", args).Debugf("command %s", cmdname)
	}
	return c.Find(cmdname)(t, args)
}

// Merge takes aliases defined in the config struct and merges them with the default aliases.
func (c *Commands) Merge(allAliases map[string][]string) {
	for i := range c.cmds {
		if c.cmds[i].builtinAliases != nil {
			c.cmds[i].aliases = append(c.cmds[i].aliases[:0], c.cmds[i].builtinAliases...)
		}
	}
	for i := range c.cmds {
		if aliases, ok := allAliases[c.cmds[i].aliases[0]]; ok {
			if c.cmds[i].builtinAliases == nil {
				c.cmds[i].builtinAliases = make([]string, len(c.cmds[i].aliases))
				copy(c.cmds[i].builtinAliases, c.cmds[i].aliases)
			}
			c.cmds[i].aliases = append(c.cmds[i].aliases, aliases...)
		}
	}
}

var errNoCmd = errors.New("command not available")

func noCmdAvailable(t *Term, args string) error {
	return errNoCmd
}

func nullCommand(t *Term, args string) error {
	return nil
}

func (c *Commands) help(t *Term, args string) error {
	if args != "" {
		for _, cmd := range c.cmds {
			for _, alias := range cmd.aliases {
				if alias == args {
					fmt.Fprintln(t.stdout, cmd.helpMsg)
					return nil
				}
			}
		}
		return errNoCmd
	}

	if t.color {
		t.stdout.PageMaybe(nil)
		defer t.stdout.Reset()
	}

	fmt.Fprintln(t.stdout, "The following commands are available:")

	for _, cgd := range commandGroupDescriptions {
		fmt.Fprintf(t.stdout, "\n%s:\n", cgd.description)
		w := new(tabwriter.Writer)
		w.Init(t.stdout, 0, 8, 0, '-', 0)
		for _, cmd := range c.cmds {
			if cmd.group != cgd.group {
				continue
			}
			h := cmd.helpMsg
			if idx := strings.Index(h, "\n"); idx >= 0 {
				h = h[:idx]
			}
			if len(cmd.aliases) > 1 {
				fmt.Fprintf(w, "    %s (alias: %s) \t %s\n", cmd.aliases[0], strings.Join(cmd.aliases[1:], " | "), h)
			} else {
				fmt.Fprintf(w, "    %s \t %s\n", cmd.aliases[0], h)
			}
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	fmt.Fprintln(t.stdout)
	fmt.Fprintln(t.stdout, "Type help followed by a command for full documentation.")
	return nil
}

// parseLocation parses the location at the start of args and returns it
// with the rest of args.
func (t *Term) parseLocation(args string) (*locspec.Location, string, error) {
	loc, n, err := t.parser.Parse(args, locspec.MatchWild)
	if err != nil {
		return nil, "", err
	}
	return loc, strings.TrimSpace(args[n:]), nil
}

func setBreakpoint(t *Term, kind breakpoint.Kind, argstr string) error {
	if argstr == "" {
		return errors.New("no default location: a location is required")
	}
	loc, rest, err := t.parseLocation(argstr)
	if err != nil {
		return err
	}
	if rest != "" {
		return fmt.Errorf("garbage at end of location: %q", rest)
	}
	bp := t.bps.Add(kind, loc, "")
	t.printBreakpointSet(bp)
	return nil
}

func breakpointCmd(t *Term, args string) error {
	return setBreakpoint(t, breakpoint.Break, args)
}

func tracepointCmd(t *Term, args string) error {
	return setBreakpoint(t, breakpoint.Trace, args)
}

var errDprintfUsage = errors.New(`format string required: dprintf <location>,"<format>"[,<arg>...]`)

func dprintfCmd(t *Term, args string) error {
	if args == "" {
		return errDprintfUsage
	}
	loc, rest, err := t.parseLocation(args)
	if err != nil {
		return err
	}
	if !strings.HasPrefix(rest, ",") {
		return errDprintfUsage
	}
	format, fmtargs, err := parseDprintfArgs(strings.TrimSpace(rest[1:]))
	if err != nil {
		return err
	}
	bp := t.bps.Add(breakpoint.Dprintf, loc, format, fmtargs...)
	t.printBreakpointSet(bp)
	return nil
}

// parseDprintfArgs parses `"format",arg1,arg2...`. Arguments are split at
// top level commas, commas inside parentheses or quotes do not count.
func parseDprintfArgs(s string) (string, []string, error) {
	quoted, err := strconv.QuotedPrefix(s)
	if err != nil || quoted[0] != '"' {
		return "", nil, errDprintfUsage
	}
	format, err := strconv.Unquote(quoted)
	if err != nil {
		return "", nil, err
	}
	rest := strings.TrimSpace(s[len(quoted):])
	if rest == "" {
		return format, nil, nil
	}
	if rest[0] != ',' {
		return "", nil, fmt.Errorf("expected ',' after format string, got %q", rest)
	}
	rest = rest[1:]
	var args []string
	for {
		i := locspec.FindToplevelChar(rest, ',')
		if i < 0 {
			break
		}
		args = append(args, strings.TrimSpace(rest[:i]))
		rest = rest[i+1:]
	}
	args = append(args, strings.TrimSpace(rest))
	for _, arg := range args {
		if arg == "" {
			return "", nil, errors.New("empty argument in dprintf")
		}
	}
	return format, args, nil
}

func (t *Term) printBreakpointSet(bp *breakpoint.Breakpoint) {
	fmt.Fprintf(t.stdout, "%s %d set at %s", kindLabel(bp.Kind), bp.ID, t.colorize(defaultPromptColor, bp.Location.String()))
	if r, ok := t.resolve(bp.Location); ok {
		fmt.Fprintf(t.stdout, ": %s", r)
	}
	fmt.Fprintln(t.stdout)
}

func kindLabel(kind breakpoint.Kind) string {
	switch kind {
	case breakpoint.Trace:
		return "Tracepoint"
	case breakpoint.Dprintf:
		return "Dprintf"
	}
	return "Breakpoint"
}

func clearCmd(t *Term, args string) error {
	if args == "" {
		return errors.New("not enough arguments")
	}
	id, err := strconv.Atoi(args)
	if err != nil {
		return fmt.Errorf("invalid breakpoint id %q", args)
	}
	if err := t.bps.Remove(id); err != nil {
		return err
	}
	fmt.Fprintf(t.stdout, "Breakpoint %d cleared\n", id)
	return nil
}

func clearAllCmd(t *Term, args string) error {
	if args == "" {
		t.bps.Clear()
		fmt.Fprintln(t.stdout, "All breakpoints cleared")
		return nil
	}
	loc, rest, err := t.parseLocation(args)
	if err != nil {
		return err
	}
	if rest != "" {
		return fmt.Errorf("garbage at end of location: %q", rest)
	}
	for _, bp := range t.bps.List() {
		if bp.Location.String() != loc.String() {
			continue
		}
		if err := t.bps.Remove(bp.ID); err == nil {
			fmt.Fprintf(t.stdout, "Breakpoint %d cleared\n", bp.ID)
		}
	}
	return nil
}

func breakpointsCmd(t *Term, args string) error {
	bps := t.bps.List()
	if len(bps) == 0 {
		fmt.Fprintln(t.stdout, "No breakpoints.")
		return nil
	}
	if t.color {
		t.stdout.PageMaybe(nil)
		defer t.stdout.Reset()
	}
	table := tablewriter.NewWriter(t.stdout)
	table.SetHeader([]string{"ID", "Type", "Location", "Address", "What"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetBorder(false)
	for _, bp := range bps {
		addr := "<pending>"
		if pc, ok := t.resolvePC(bp.Location); ok {
			addr = fmt.Sprintf("%#x", pc)
		}
		what := ""
		if bp.Kind == breakpoint.Dprintf {
			what = strconv.Quote(bp.Format)
			if len(bp.Args) > 0 {
				what += "," + strings.Join(bp.Args, ",")
			}
		}
		table.Append([]string{strconv.Itoa(bp.ID), bp.Kind.String(), bp.Location.String(), addr, what})
	}
	table.Render()
	return nil
}

func (t *Term) breakpointFile(args string) (string, error) {
	argv := config.SplitQuotedFields(args, '"')
	switch len(argv) {
	case 0:
		if t.conf.BreakpointFile == "" {
			return "", errors.New("no file specified and breakpoint-file is not configured")
		}
		return t.conf.BreakpointFile, nil
	case 1:
		return argv[0], nil
	default:
		return "", errors.New("too many arguments")
	}
}

func saveCmd(t *Term, args string) error {
	path, err := t.breakpointFile(args)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := t.bps.Save(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(t.stdout, "Saved %d breakpoints to %s\n", len(t.bps.List()), path)
	return nil
}

func restoreCmd(t *Term, args string) error {
	path, err := t.breakpointFile(args)
	if err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	n, err := t.bps.Load(f, t.parser)
	if err != nil {
		return fmt.Errorf("%s: %v", path, err)
	}
	fmt.Fprintf(t.stdout, "Restored %d breakpoints from %s\n", n, path)
	return nil
}

func parseCmd(t *Term, args string) error {
	loc, n, err := t.parser.Parse(args, locspec.MatchWild)
	if err != nil {
		return err
	}
	w := new(tabwriter.Writer)
	w.Init(t.stdout, 0, 8, 1, ' ', 0)
	fmt.Fprintf(w, "kind:\t%s\n", loc.Kind())
	fmt.Fprintf(w, "string:\t%s\n", loc.String())
	switch loc.Kind() {
	case locspec.LinespecKind:
		fmt.Fprintf(w, "match:\t%s\n", loc.Linespec().MatchType)
	case locspec.ExplicitKind:
		fmt.Fprintf(w, "linespec:\t%s\n", loc.Explicit().LinespecString())
		fmt.Fprintf(w, "match:\t%s\n", loc.Explicit().FuncNameMatchType)
	case locspec.AddressKind:
		fmt.Fprintf(w, "address:\t%#x\n", loc.Address())
	}
	fmt.Fprintf(w, "consumed:\t%q\n", args[:n])
	if rest := args[n:]; rest != "" {
		fmt.Fprintf(w, "rest:\t%q\n", rest)
	}
	return w.Flush()
}

func infoCmd(t *Term, args string) error {
	if args == "" {
		return errors.New("not enough arguments")
	}
	if t.ps == nil {
		return errors.New("no program loaded")
	}
	loc, rest, err := t.parseLocation(args)
	if err != nil {
		return err
	}
	if rest != "" {
		return fmt.Errorf("garbage at end of location: %q", rest)
	}
	pc, err := t.lookupPC(loc)
	if err != nil {
		return err
	}
	fmt.Fprintf(t.stdout, "%s is at %s\n", loc.String(), t.describePC(pc))
	return nil
}

func completeCmd(t *Term, args string) error {
	start, cands := t.parser.Complete(args, t.completer())
	for _, cand := range cands {
		fmt.Fprintf(t.stdout, "%s%s\n", args[:start], cand)
	}
	return nil
}

func languageCmd(t *Term, args string) error {
	if args == "" {
		cur := t.parser.Lang
		if cur == nil {
			cur = language.Default
		}
		fmt.Fprintf(t.stdout, "The current language is %q.\nAvailable languages: %s\n", cur.Name, strings.Join(language.Names(), ", "))
		return nil
	}
	lang, err := language.Lookup(args)
	if err != nil {
		return err
	}
	t.parser.Lang = lang
	t.conf.Language = lang.Name
	return nil
}

func (c *Commands) sourceCommand(t *Term, args string) error {
	words, err := argv.Argv(args, func(s string) (string, error) {
		return "", fmt.Errorf("backtick not supported in '%s'", s)
	}, nil)
	if err != nil {
		return err
	}
	if len(words) != 1 || len(words[0]) != 1 {
		return fmt.Errorf("wrong number of arguments: source <filename>")
	}
	path := words[0][0]

	if filepath.Ext(path) == ".star" {
		_, err := t.starlarkEnv.Execute(path, nil, "main", nil)
		return err
	}

	if path == "-" {
		return t.starlarkEnv.REPL()
	}

	return c.executeFile(t, path)
}

// ExitRequestError is returned when the user
// exits evloc.
type ExitRequestError struct{}

func (ere ExitRequestError) Error() string {
	return ""
}

func exitCommand(t *Term, args string) error {
	return ExitRequestError{}
}

func (c *Commands) executeFile(t *Term, name string) error {
	fh, err := os.Open(name)
	if err != nil {
		return err
	}
	defer fh.Close()

	scanner := bufio.NewScanner(fh)
	lineno := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		lineno++

		if line == "" || line[0] == '#' {
			continue
		}

		if err := c.Call(line, t); err != nil {
			if _, isExitRequest := err.(ExitRequestError); isExitRequest {
				return err
			}
			fmt.Fprintf(t.stdout, "%s:%d: %v\n", name, lineno, err)
		}
	}

	return scanner.Err()
}

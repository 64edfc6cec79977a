package terminal

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-delve/liner"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"

	"github.com/go-delve/evloc/pkg/breakpoint"
	"github.com/go-delve/evloc/pkg/config"
	"github.com/go-delve/evloc/pkg/language"
	"github.com/go-delve/evloc/pkg/locspec"
	"github.com/go-delve/evloc/pkg/logflags"
	"github.com/go-delve/evloc/pkg/progspace"
	"github.com/go-delve/evloc/pkg/terminal/starbind"
)

const (
	historyFile             string = ".evloc_history"
	terminalResetEscapeCode string = "\033[0m"
	defaultPromptColor      string = "\033[34m"
)

// Term represents the terminal running evloc.
type Term struct {
	conf     *config.Config
	prompt   string
	line     *liner.State
	cmds     *Commands
	color    bool
	stdout   *pagingWriter
	InitFile string

	parser      *locspec.Parser
	ps          *progspace.ProgramSpace
	bps         *breakpoint.Table
	starlarkEnv *starbind.Env
	log         logflags.Logger
}

// New returns a new Term. The program space ps is used to resolve and
// complete locations, it can be nil.
func New(ps *progspace.ProgramSpace, conf *config.Config) *Term {
	var w io.Writer
	color := false
	dumb := strings.ToLower(os.Getenv("TERM")) == "dumb"
	if !dumb && isatty.IsTerminal(os.Stdout.Fd()) {
		w = colorable.NewColorable(os.Stdout)
		color = true
	} else {
		w = colorable.NewNonColorable(os.Stdout)
	}
	return newTerm(ps, conf, w, color)
}

func newTerm(ps *progspace.ProgramSpace, conf *config.Config, w io.Writer, color bool) *Term {
	if conf == nil {
		conf = &config.Config{}
	}
	cmds := DebugCommands()
	if conf.Aliases != nil {
		cmds.Merge(conf.Aliases)
	}

	t := &Term{
		conf:   conf,
		prompt: "(evloc) ",
		cmds:   cmds,
		color:  color,
		stdout: &pagingWriter{w: w},
		parser: &locspec.Parser{},
		ps:     ps,
		bps:    breakpoint.NewTable(),
		log:    logflags.TerminalLogger(),
	}
	if ps != nil {
		t.parser.Resolver = ps
		ps.SetSubstitutePath(conf.GetSubstitutePathRules())
	}
	if conf.Language != "" {
		if lang, err := language.Lookup(conf.Language); err == nil {
			t.parser.Lang = lang
		} else {
			fmt.Fprintf(os.Stderr, "Invalid language in configuration file: %v\n", err)
		}
	}
	t.starlarkEnv = starbind.New(starlarkContext{t}, t.stdout)
	return t
}

// Close returns the terminal to its previous mode.
func (t *Term) Close() {
	if t.line != nil {
		t.line.Close()
	}
}

// Breakpoints returns the breakpoint table of the terminal.
func (t *Term) Breakpoints() *breakpoint.Table {
	return t.bps
}

// Run begins running evloc in the terminal.
func (t *Term) Run() (int, error) {
	t.line = liner.NewLiner()
	defer t.Close()

	t.line.SetCtrlCAborts(true)
	t.line.SetWordCompleter(t.completeLine)

	fullHistoryFile, err := config.GetConfigFilePath(historyFile)
	if err != nil {
		fmt.Printf("Unable to load history file: %v.", err)
	}

	f, err := os.Open(fullHistoryFile)
	if err != nil {
		f, err = os.Create(fullHistoryFile)
		if err != nil {
			fmt.Printf("Unable to open history file: %v. History will not be saved for this session.", err)
		}
	}

	if f != nil {
		t.line.ReadHistory(f)
		f.Close()
	}
	fmt.Fprintln(t.stdout, "Type 'help' for list of commands.")

	if t.InitFile != "" {
		err := t.cmds.executeFile(t, t.InitFile)
		if err != nil {
			if _, ok := err.(ExitRequestError); ok {
				return t.handleExit()
			}
			fmt.Fprintf(os.Stderr, "Error executing init file: %s\n", err)
		}
	}

	for {
		cmdstr, err := t.promptForInput()
		if err != nil {
			if err == liner.ErrPromptAborted {
				continue
			}
			if err == io.EOF {
				fmt.Fprintln(t.stdout, "exit")
				return t.handleExit()
			}
			return 1, errors.New("Prompt for input failed.\n")
		}

		if err := t.cmds.Call(cmdstr, t); err != nil {
			if _, ok := err.(ExitRequestError); ok {
				return t.handleExit()
			}
			fmt.Fprintf(os.Stderr, "Command failed: %s\n", err)
		}
	}
}

func (t *Term) promptForInput() (string, error) {
	prompt := t.prompt
	if t.color {
		color := defaultPromptColor
		if t.conf.PromptColor != "" {
			color = t.conf.PromptColor
		}
		prompt = color + prompt + terminalResetEscapeCode
	}
	l, err := t.line.Prompt(prompt)
	if err != nil {
		return "", err
	}

	l = strings.TrimSuffix(l, "\n")
	if l != "" {
		t.line.AppendHistory(l)
	}

	return l, nil
}

func (t *Term) handleExit() (int, error) {
	fullHistoryFile, err := config.GetConfigFilePath(historyFile)
	if err != nil {
		fmt.Println("Error saving history file:", err)
		return 0, nil
	}
	if f, err := os.OpenFile(fullHistoryFile, os.O_RDWR|os.O_TRUNC, 0666); err == nil {
		_, err = t.line.WriteHistory(f)
		if err != nil {
			fmt.Println("readline history error:", err)
		}
		f.Close()
	}
	return 0, nil
}

// completeLine completes command names at the start of the line and
// locations in the arguments of the commands that take one.
func (t *Term) completeLine(line string, pos int) (head string, completions []string, tail string) {
	head, tail = line[:pos], line[pos:]
	sp := strings.IndexByte(head, ' ')
	if sp < 0 {
		for _, cmd := range t.cmds.cmds {
			for _, alias := range cmd.aliases {
				if strings.HasPrefix(alias, strings.ToLower(head)) {
					completions = append(completions, alias+" ")
				}
			}
		}
		return "", completions, tail
	}
	cmd := t.cmds.find(head[:sp])
	if cmd == nil || !cmd.location {
		return head, nil, tail
	}
	args := head[sp+1:]
	start, cands := t.parser.Complete(args, t.completer())
	if logflags.Terminal() {
		t.log.WithField("line", line).Debugf("%d completions", len(cands))
	}
	return head[:sp+1+start], cands, tail
}

func (t *Term) completer() locspec.Completer {
	if t.ps == nil {
		return nil
	}
	return t.ps
}

// colorize wraps s in the ANSI escape sequence esc if the terminal is
// colored.
func (t *Term) colorize(esc, s string) string {
	if !t.color {
		return s
	}
	return esc + s + terminalResetEscapeCode
}

// Call runs a single terminal command, as if typed at the prompt.
func (t *Term) Call(cmdstr string) error {
	return t.cmds.Call(cmdstr, t)
}

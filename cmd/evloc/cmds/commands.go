package cmds

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/go-delve/evloc/cmd/evloc/cmds/helphelpers"
	"github.com/go-delve/evloc/pkg/config"
	"github.com/go-delve/evloc/pkg/language"
	"github.com/go-delve/evloc/pkg/locspec"
	"github.com/go-delve/evloc/pkg/logflags"
	"github.com/go-delve/evloc/pkg/progspace"
	"github.com/go-delve/evloc/pkg/terminal"
	"github.com/go-delve/evloc/pkg/version"
	"github.com/go-delve/evloc/service"
	"github.com/go-delve/evloc/service/dap"
)

var (
	// log is whether to log debug statements.
	log bool
	// logOutput is a comma separated list of components that should produce debug output.
	logOutput string
	// logDest is the file path or file descriptor where logs should go.
	logDest string
	// addr is the DAP server listen address.
	addr string
	// stdio makes the DAP server talk to its client over stdin and stdout.
	stdio bool
	// initFile is the path to initialization file.
	initFile string
	// program is the executable whose symbols resolve and complete locations.
	program string
	// lang is the language used to parse locations.
	lang languageFlag
	// qualified makes 'parse' match function names as fully qualified.
	qualified bool

	// rootCommand is the root of the command tree.
	rootCommand *cobra.Command

	conf *config.Config
)

const evlocCommandLongDesc = `evloc parses and resolves debugger event locations.

An event location says where a breakpoint, tracepoint or dynamic printf
should be placed. evloc understands four kinds of location:

	linespec	foo.c:42, main, ns::Klass::method, 'file name.c':10
	address		*0x400000, *main+8
	explicit	-source foo.c -function bar -label out -line +3
	probe		-probe-stap [OBJFILE:][PROVIDER:]NAME

Without a subcommand evloc starts an interactive terminal. Pass --program
to resolve and complete locations against the symbols of an executable.`

// languageFlag is a pflag.Value selecting the location language.
type languageFlag struct {
	lang *language.Language
}

var _ pflag.Value = (*languageFlag)(nil)

func (f *languageFlag) String() string {
	if f.lang == nil {
		return ""
	}
	return f.lang.Name
}

func (f *languageFlag) Set(s string) error {
	l, err := language.Lookup(s)
	if err != nil {
		return err
	}
	f.lang = l
	return nil
}

func (f *languageFlag) Type() string {
	return "language"
}

// New returns an initialized command tree.
func New(docCall bool) *cobra.Command {
	// Config setup and load.
	if docCall {
		conf = &config.Config{}
	} else {
		conf = config.LoadConfig()
	}
	lang = languageFlag{}

	// Main evloc root command.
	rootCommand = &cobra.Command{
		Use:   "evloc",
		Short: "evloc parses and resolves debugger event locations.",
		Long:  evlocCommandLongDesc,
		Args:  cobra.NoArgs,
		Run:   replCmd,
	}

	rootCommand.PersistentFlags().BoolVarP(&log, "log", "", false, "Enable logging.")
	rootCommand.PersistentFlags().StringVarP(&logOutput, "log-output", "", "", `Comma separated list of components that should produce debug output (see 'evloc help log')`)
	rootCommand.PersistentFlags().StringVarP(&logDest, "log-dest", "", "", "Writes logs to the specified file or file descriptor (see 'evloc help log').")
	rootCommand.PersistentFlags().StringVarP(&program, "program", "p", "", "Executable whose symbols are used to resolve and complete locations.")
	rootCommand.PersistentFlags().Var(&lang, "language", "Language used to parse locations (c, c++, ada, go...).")
	rootCommand.PersistentFlags().StringVar(&initFile, "init", "", "Init file, executed by the terminal.")
	rootCommand.PersistentFlags().StringVarP(&addr, "listen", "l", "127.0.0.1:0", "DAP server listen address.")

	// 'parse' subcommand.
	parseCommand := &cobra.Command{
		Use:   "parse <location>...",
		Short: "Parses locations and prints their canonical form.",
		Long: `Parses each argument as a location and prints its kind, its canonical
form and whatever follows the location in the argument.

Example:

	evloc parse 'foo.c:42 if x > 3' '-function main -line +2' '*main+8'
`,
		Args: cobra.MinimumNArgs(1),
		RunE: parseCmd,
	}
	parseCommand.Flags().BoolVarP(&qualified, "qualified", "q", false, "Match function names as fully qualified.")
	rootCommand.AddCommand(parseCommand)

	// 'complete' subcommand.
	rootCommand.AddCommand(&cobra.Command{
		Use:   "complete <text>",
		Short: "Lists the completions of a partial location.",
		Args:  cobra.ExactArgs(1),
		RunE:  completeCmd,
	})

	// 'script' subcommand.
	rootCommand.AddCommand(&cobra.Command{
		Use:   "script <file>",
		Short: "Runs a starlark script or a file of terminal commands.",
		Long: `Runs a script without starting the interactive terminal.

Files ending in .star are starlark scripts, their main function is called.
Any other file is read as a list of terminal commands, one per line.`,
		Args: cobra.ExactArgs(1),
		Run:  scriptCmd,
	})

	// 'dap' subcommand.
	dapCommand := &cobra.Command{
		Use:   "dap",
		Short: "Starts a server communicating via Debug Adaptor Protocol (DAP).",
		Long: `Starts a server communicating via Debug Adaptor Protocol (DAP).

The server accepts a single client. Function breakpoints, instruction
breakpoints and source line breakpoints sent by the client are parsed as
locations, the responses carry their canonical form or the parse error.
The launch request accepts 'program' and 'language' attributes.

By default the server listens on the address given with --listen, use
--stdio to talk to the client over standard input and output.`,
		Args: cobra.NoArgs,
		Run:  dapCmd,
	}
	dapCommand.Flags().BoolVar(&stdio, "stdio", false, "Communicate with the client over stdin and stdout.")
	rootCommand.AddCommand(dapCommand)

	// 'version' subcommand.
	var versionVerbose = false
	versionCommand := &cobra.Command{
		Use:   "version",
		Short: "Prints version.",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "evloc\n%s\n", version.EvlocVersion)
			if versionVerbose {
				fmt.Fprintf(cmd.OutOrStdout(), "Build Details: %s\n", version.BuildInfo())
			}
		},
	}
	versionCommand.Flags().BoolVarP(&versionVerbose, "verbose", "v", false, "print verbose version info")
	rootCommand.AddCommand(versionCommand)

	rootCommand.AddCommand(&cobra.Command{
		Use:   "log",
		Short: "Help about logging flags.",
		Long: `Logging can be enabled by specifying the --log flag and using the
--log-output flag to select which components should produce logs.

The argument of --log-output must be a comma separated list of component
names selected from this list:


	locspec		Log parsed locations
	progspace	Log symbol loading and address lookups
	terminal	Log terminal commands
	dap		Log all DAP messages

Additionally --log-dest can be used to specify where the logs should be
written.
If the argument is a number it will be interpreted as a file descriptor,
otherwise as a file path. Log files are rotated according to the
log-max-size, log-max-backups, log-max-age and log-compress configuration
parameters.
`,
	})

	defaultHelp := rootCommand.HelpFunc()
	rootCommand.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		helphelpers.Prepare(cmd)
		defaultHelp(cmd, args)
	})

	rootCommand.DisableAutoGenTag = true

	return rootCommand
}

// setup configures logging and loads the program, if any. The returned
// function must be called before exiting.
func setup() (*progspace.ProgramSpace, func(), error) {
	logflags.SetRotation(logflags.Rotation{
		MaxSize:    conf.LogMaxSize,
		MaxBackups: conf.LogMaxBackups,
		MaxAge:     conf.LogMaxAge,
		Compress:   conf.LogCompress,
	})
	if err := logflags.Setup(log, logOutput, logDest); err != nil {
		return nil, func() {}, err
	}
	if lang.lang != nil {
		conf.Language = lang.lang.Name
	}
	path := program
	if path == "" {
		path = conf.Program
	}
	if path == "" {
		return nil, logflags.Close, nil
	}
	ps, err := progspace.Load(path)
	if err != nil {
		logflags.Close()
		return nil, func() {}, err
	}
	ps.SetSubstitutePath(conf.GetSubstitutePathRules())
	return ps, logflags.Close, nil
}

func newParser(ps *progspace.ProgramSpace) (*locspec.Parser, error) {
	p := &locspec.Parser{}
	if ps != nil {
		p.Resolver = ps
	}
	if conf.Language != "" {
		l, err := language.Lookup(conf.Language)
		if err != nil {
			return nil, err
		}
		p.Lang = l
	}
	return p, nil
}

func replCmd(cmd *cobra.Command, args []string) {
	os.Exit(func() int {
		ps, cleanup, err := setup()
		defer cleanup()
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			return 1
		}
		term := terminal.New(ps, conf)
		term.InitFile = initFile
		status, err := term.Run()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
		return status
	}())
}

func parseCmd(cmd *cobra.Command, args []string) error {
	ps, cleanup, err := setup()
	defer cleanup()
	if err != nil {
		return err
	}
	p, err := newParser(ps)
	if err != nil {
		return err
	}
	mt := locspec.MatchWild
	if qualified {
		mt = locspec.MatchFull
	}
	return printLocations(cmd.OutOrStdout(), p, mt, args)
}

func printLocations(out io.Writer, p *locspec.Parser, mt locspec.MatchType, args []string) error {
	w := tabwriter.NewWriter(out, 0, 8, 2, ' ', 0)
	var errs []string
	for _, arg := range args {
		loc, n, err := p.Parse(arg, mt)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", arg, err))
			continue
		}
		rest := strings.TrimSpace(arg[n:])
		fmt.Fprintf(w, "%s\t%s\t%s\n", loc.Kind(), loc.String(), rest)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "\n"))
	}
	return nil
}

func completeCmd(cmd *cobra.Command, args []string) error {
	ps, cleanup, err := setup()
	defer cleanup()
	if err != nil {
		return err
	}
	p, err := newParser(ps)
	if err != nil {
		return err
	}
	var src locspec.Completer
	if ps != nil {
		src = ps
	}
	start, cands := p.Complete(args[0], src)
	for _, cand := range cands {
		fmt.Fprintf(cmd.OutOrStdout(), "%s%s\n", args[0][:start], cand)
	}
	return nil
}

func scriptCmd(cmd *cobra.Command, args []string) {
	os.Exit(func() int {
		ps, cleanup, err := setup()
		defer cleanup()
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			return 1
		}
		term := terminal.New(ps, conf)
		defer term.Close()
		if initFile != "" {
			if err := term.Call("source " + quoteArg(initFile)); err != nil {
				fmt.Fprintf(os.Stderr, "Error executing init file: %v\n", err)
				return 1
			}
		}
		if err := term.Call("source " + quoteArg(args[0])); err != nil {
			if _, isExit := err.(terminal.ExitRequestError); isExit {
				return 0
			}
			fmt.Fprintf(os.Stderr, "%v\n", err)
			return 1
		}
		return 0
	}())
}

// quoteArg quotes path for the argument parser of the source command.
func quoteArg(path string) string {
	if !strings.ContainsAny(path, " \t'\"\\`$") {
		return path
	}
	return "'" + strings.ReplaceAll(path, "'", `'\''`) + "'"
}

func dapCmd(cmd *cobra.Command, args []string) {
	status := func() int {
		ps, cleanup, err := setup()
		defer cleanup()
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			return 1
		}
		parser, err := newParser(ps)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			return 1
		}

		var listener net.Listener
		if stdio {
			listener = service.SingleConnListener(service.StdioConn(os.Stdin, os.Stdout))
		} else {
			listener, err = net.Listen("tcp", addr)
			if err != nil {
				fmt.Fprintf(os.Stderr, "couldn't start listener: %s\n", err)
				return 1
			}
			fmt.Fprintf(os.Stderr, "DAP server listening at: %s\n", listener.Addr())
		}
		disconnectChan := make(chan struct{})
		server := dap.NewServer(&service.Config{
			Listener:       listener,
			Parser:         parser,
			ProgramSpace:   ps,
			DisconnectChan: disconnectChan,
		})
		defer server.Stop()

		server.Run()
		waitForDisconnectSignal(disconnectChan)
		return 0
	}()
	os.Exit(status)
}

func waitForDisconnectSignal(disconnectChan chan struct{}) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT)
	if runtime.GOOS == "windows" {
		// On windows Ctrl-C is also delivered to the console the client
		// runs in, ignore it and wait for the client to disconnect.
		go func() {
			for range ch {
			}
		}()
		<-disconnectChan
		return
	}
	select {
	case <-ch:
	case <-disconnectChan:
	}
}

package dap

import (
	"flag"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-delve/evloc/pkg/logflags"
	"github.com/go-delve/evloc/pkg/progspace"
	"github.com/go-delve/evloc/service"
	"github.com/go-delve/evloc/service/dap/daptest"
)

func TestMain(m *testing.M) {
	var logOutput string
	flag.StringVar(&logOutput, "log-output", "", "configures log output")
	flag.Parse()
	logflags.Setup(logOutput != "", logOutput, "")
	os.Exit(m.Run())
}

func testProgramSpace() *progspace.ProgramSpace {
	return progspace.New(
		[]*progspace.Objfile{
			{Filename: "/usr/bin/prog", LowPC: 0x401000, HighPC: 0x402000},
		},
		[]progspace.Function{
			{Name: "main", Entry: 0x401000, End: 0x401100},
			{Name: "ns::helper", Entry: 0x401200, End: 0x401300},
		},
		[]progspace.LineEntry{
			{PC: 0x401000, File: "/src/main.c", Line: 10},
			{PC: 0x401100, End: true},
			{PC: 0x401200, File: "/src/helper.c", Line: 3},
			{PC: 0x401300, End: true},
		})
}

func runTest(t *testing.T, test func(c *daptest.Client, server *Server)) {
	listener, conn := service.ListenerPipe()
	disconnectChan := make(chan struct{})
	server := NewServer(&service.Config{
		Listener:       listener,
		ProgramSpace:   testProgramSpace(),
		DisconnectChan: disconnectChan,
	})
	server.Run()

	client := daptest.NewClientFromConn(conn)
	defer client.Close()
	defer server.Stop()

	test(client, server)
}

func TestStopNoClient(t *testing.T) {
	listener, _ := service.ListenerPipe()
	disconnectChan := make(chan struct{})
	server := NewServer(&service.Config{Listener: listener, DisconnectChan: disconnectChan})
	server.listener.Accept() // consume the connection, Run blocks on the next Accept
	server.Run()
	server.Stop()
	select {
	case <-disconnectChan:
	case <-time.After(time.Second):
		t.Fatal("disconnectChan not closed after Stop")
	}
}

func TestInitializeDisconnect(t *testing.T) {
	listener, conn := service.ListenerPipe()
	disconnectChan := make(chan struct{})
	server := NewServer(&service.Config{Listener: listener, DisconnectChan: disconnectChan})
	server.Run()
	client := daptest.NewClientFromConn(conn)
	defer client.Close()
	defer server.Stop()

	client.InitializeRequest()
	initResp := client.ExpectInitializeResponse(t)
	if initResp.Seq != 0 || initResp.RequestSeq != 1 {
		t.Errorf("got %#v, want Seq=0, RequestSeq=1", initResp)
	}
	caps := initResp.Body
	if !caps.SupportsFunctionBreakpoints || !caps.SupportsInstructionBreakpoints || !caps.SupportsCompletionsRequest {
		t.Errorf("missing capabilities: %#v", caps)
	}

	client.SetExceptionBreakpointsRequest()
	client.ExpectSetExceptionBreakpointsResponse(t)
	client.ConfigurationDoneRequest()
	client.ExpectConfigurationDoneResponse(t)

	client.DisconnectRequest()
	client.ExpectDisconnectResponse(t)
	select {
	case <-disconnectChan:
	case <-time.After(time.Second):
		t.Fatal("disconnectChan not closed after disconnect request")
	}
}

func TestLaunch(t *testing.T) {
	runTest(t, func(client *daptest.Client, server *Server) {
		client.LaunchRequest(map[string]interface{}{"request": "launch", "language": "ada"})
		client.ExpectInitializedEvent(t)
		client.ExpectLaunchResponse(t)
		if server.parser.Lang.Name != "ada" {
			t.Errorf("language not set by launch: %v", server.parser.Lang.Name)
		}

		client.LaunchRequest(map[string]interface{}{"request": "launch", "program": "/nonexistent/program"})
		er := client.ExpectErrorResponse(t)
		if er.Body.Error == nil || er.Body.Error.Id != FailedToLaunch {
			t.Errorf("got %#v, want error id %d", er.Body.Error, FailedToLaunch)
		}

		client.LaunchRequest(map[string]interface{}{"request": "launch", "language": "cobol"})
		er = client.ExpectErrorResponse(t)
		if !strings.Contains(er.Body.Error.Format, "cobol") {
			t.Errorf("wrong error for unknown language: %q", er.Body.Error.Format)
		}
	})
}

func TestSetFunctionBreakpoints(t *testing.T) {
	runTest(t, func(client *daptest.Client, server *Server) {
		client.SetFunctionBreakpointsRequest([]string{"main", "-qualified ns::helper", "main, x", "*nosuchsym", " ", "-source foo.c -line 3"})
		resp := client.ExpectSetFunctionBreakpointsResponse(t)
		bps := resp.Body.Breakpoints
		if len(bps) != 6 {
			t.Fatalf("got %d breakpoints, want 6", len(bps))
		}
		for i, want := range []struct {
			verified bool
			message  string
			ref      string
		}{
			{true, "main", "0x401000"},
			{true, "-qualified ns::helper", "0x401200"},
			{false, "garbage at end of location", ""},
			{false, "nosuchsym", ""},
			{false, "empty location", ""},
			{true, "-source foo.c -line 3", ""},
		} {
			bp := bps[i]
			if bp.Verified != want.verified || !strings.Contains(bp.Message, want.message) || bp.InstructionReference != want.ref {
				t.Errorf("breakpoint %d: got %#v, want verified=%v message=%q ref=%q", i, bp, want.verified, want.message, want.ref)
			}
		}
		if n := len(server.Breakpoints().List()); n != 3 {
			t.Errorf("got %d breakpoints in the table, want 3", n)
		}

		client.SetFunctionBreakpointsRequest([]string{"foo.c:42"})
		resp = client.ExpectSetFunctionBreakpointsResponse(t)
		if len(resp.Body.Breakpoints) != 1 || !resp.Body.Breakpoints[0].Verified {
			t.Fatalf("got %#v", resp.Body.Breakpoints)
		}
		list := server.Breakpoints().List()
		if len(list) != 1 || list[0].Location.String() != "foo.c:42" {
			t.Errorf("function breakpoints not replaced: %d breakpoints", len(list))
		}
	})
}

func TestSetInstructionBreakpoints(t *testing.T) {
	runTest(t, func(client *daptest.Client, server *Server) {
		client.SetInstructionBreakpointsRequest([]string{"0x401000", "main", "main+4", "bogus(", "0x10 0x20"}, []int{0, 16})
		bps := client.ExpectSetInstructionBreakpointsResponse(t).Body.Breakpoints
		if len(bps) != 5 {
			t.Fatalf("got %d breakpoints, want 5", len(bps))
		}
		for i, want := range []struct {
			verified bool
			message  string
			ref      string
		}{
			{true, "*0x401000", "0x401000"},
			{true, "*0x0000000000401010", "0x401010"},
			{true, "*main+4", "0x401004"},
			{false, "bogus", ""},
			{false, "garbage at end of instruction reference", ""},
		} {
			bp := bps[i]
			if bp.Verified != want.verified || !strings.Contains(bp.Message, want.message) || bp.InstructionReference != want.ref {
				t.Errorf("breakpoint %d: got %#v, want verified=%v message=%q ref=%q", i, bp, want.verified, want.message, want.ref)
			}
		}
	})
}

func TestSetBreakpoints(t *testing.T) {
	runTest(t, func(client *daptest.Client, server *Server) {
		client.SetBreakpointsRequest("/src/main.c", []int{10, 11})
		bps := client.ExpectSetBreakpointsResponse(t).Body.Breakpoints
		if len(bps) != 2 {
			t.Fatalf("got %d breakpoints, want 2", len(bps))
		}
		for i, line := range []int{10, 11} {
			if !bps[i].Verified || bps[i].Line != line {
				t.Errorf("breakpoint %d: got %#v", i, bps[i])
			}
		}
		if bps[0].Message != "-source /src/main.c -line 10" {
			t.Errorf("wrong canonical form %q", bps[0].Message)
		}

		client.SetBreakpointsRequest("/src/helper.c", []int{3})
		client.ExpectSetBreakpointsResponse(t)
		client.SetBreakpointsRequest("/src/main.c", []int{12})
		client.ExpectSetBreakpointsResponse(t)

		var locs []string
		for _, bp := range server.Breakpoints().List() {
			locs = append(locs, bp.Location.String())
		}
		want := []string{"-source /src/helper.c -line 3", "-source /src/main.c -line 12"}
		if strings.Join(locs, ";") != strings.Join(want, ";") {
			t.Errorf("got breakpoints %q, want %q", locs, want)
		}
	})
}

func TestCompletions(t *testing.T) {
	runTest(t, func(client *daptest.Client, server *Server) {
		text := "-function ns::"
		client.CompletionsRequest(text, len(text)+1)
		targets := client.ExpectCompletionsResponse(t).Body.Targets
		if len(targets) != 1 {
			t.Fatalf("got %#v, want one completion", targets)
		}
		if tgt := targets[0]; tgt.Text != "ns::helper" || tgt.Start != 11 || tgt.Length != 4 {
			t.Errorf("got %#v", tgt)
		}

		// only the text up to the cursor is completed
		client.CompletionsRequest("-sou foo.c", 5)
		targets = client.ExpectCompletionsResponse(t).Body.Targets
		if len(targets) != 1 || targets[0].Text != "-source" || targets[0].Start != 1 || targets[0].Length != 4 {
			t.Errorf("got %#v", targets)
		}
	})
}

func TestLoadedSources(t *testing.T) {
	runTest(t, func(client *daptest.Client, server *Server) {
		client.LoadedSourcesRequest()
		sources := client.ExpectLoadedSourcesResponse(t).Body.Sources
		if len(sources) != 2 || sources[0].Path != "/src/helper.c" || sources[1].Name != "main.c" {
			t.Errorf("got %#v", sources)
		}
	})
}

func TestEvaluate(t *testing.T) {
	runTest(t, func(client *daptest.Client, server *Server) {
		client.EvaluateRequest("*main+8")
		body := client.ExpectEvaluateResponse(t).Body
		if body.Result != "*main+8" || body.Type != "address" || body.MemoryReference != "0x401008" {
			t.Errorf("got %#v", body)
		}

		client.EvaluateRequest("-function main -label out")
		body = client.ExpectEvaluateResponse(t).Body
		if body.Result != "-function main -label out" || body.Type != "explicit" || body.MemoryReference != "" {
			t.Errorf("got %#v", body)
		}

		client.EvaluateRequest("main")
		body = client.ExpectEvaluateResponse(t).Body
		if body.Type != "linespec" || body.MemoryReference != "0x401000" {
			t.Errorf("got %#v", body)
		}

		client.EvaluateRequest("42")
		body = client.ExpectEvaluateResponse(t).Body
		if body.Result != "42" || body.MemoryReference != "" {
			t.Errorf("got %#v", body)
		}

		client.EvaluateRequest("*(")
		er := client.ExpectErrorResponse(t)
		if er.Body.Error.Id != UnableToParseLocation {
			t.Errorf("got %#v, want error id %d", er.Body.Error, UnableToParseLocation)
		}
	})
}

func TestUnsupportedRequest(t *testing.T) {
	runTest(t, func(client *daptest.Client, server *Server) {
		client.ContinueRequest(1)
		er := client.ExpectErrorResponse(t)
		if er.Command != "continue" || er.Message != "Unsupported command" || er.Body.Error.Id != UnsupportedCommand {
			t.Errorf("got %#v", er)
		}

		// the server keeps serving after an unsupported request
		client.InitializeRequest()
		client.ExpectInitializeResponse(t)
	})
}

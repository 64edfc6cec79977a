// Package dap implements VSCode's Debug Adaptor Protocol (DAP) on top of
// the location parser and the breakpoint table. Editors use it to set
// function, instruction and source line breakpoints and to complete
// locations, evloc checks and canonicalizes each location it receives.
// The server is synchronous, it processes one request at a time.
// For DAP details see https://microsoft.github.io/debug-adapter-protocol.
package dap

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"path/filepath"
	"strings"

	"github.com/google/go-dap"

	"github.com/go-delve/evloc/pkg/breakpoint"
	"github.com/go-delve/evloc/pkg/language"
	"github.com/go-delve/evloc/pkg/linespec"
	"github.com/go-delve/evloc/pkg/locspec"
	"github.com/go-delve/evloc/pkg/logflags"
	"github.com/go-delve/evloc/pkg/progspace"
	"github.com/go-delve/evloc/service"
)

// Server implements a DAP server that can accept a single client.
// The server operates via two goroutines:
// (1) Main goroutine where the server is created via NewServer(),
// started via Run() and stopped via Stop().
// (2) Run goroutine started from Run() that accepts a client connection,
// reads, decodes and processes each request and sends back the responses.
type Server struct {
	// config is all the information necessary to start the server.
	config *service.Config
	// listener is used to accept the client connection.
	listener net.Listener
	// conn is the accepted client connection.
	conn net.Conn
	// stopChan is closed when the server is Stop()-ed.
	stopChan chan struct{}
	// reader is used to read requests from the connection.
	reader *bufio.Reader
	// log is used for structured logging.
	log logflags.Logger

	parser *locspec.Parser
	ps     *progspace.ProgramSpace
	bps    *breakpoint.Table

	// Breakpoints set by each kind of request, every setXBreakpoints
	// request replaces the breakpoints set by the previous one.
	functionBps    []int
	instructionBps []int
	sourceBps      map[string][]int
}

// NewServer creates a new DAP Server. It takes an opened Listener
// via config and assumes its ownership. config.DisconnectChan, if set,
// will be closed by the server when the client disconnects.
func NewServer(config *service.Config) *Server {
	logger := logflags.DAPLogger()
	logger.Debugf("DAP server listening at: %s", config.Listener.Addr())
	s := &Server{
		config:    config,
		listener:  config.Listener,
		stopChan:  make(chan struct{}),
		log:       logger,
		parser:    config.Parser,
		ps:        config.ProgramSpace,
		bps:       config.Breakpoints,
		sourceBps: make(map[string][]int),
	}
	if s.parser == nil {
		s.parser = &locspec.Parser{}
		if s.ps != nil {
			s.parser.Resolver = s.ps
		}
	}
	if s.bps == nil {
		s.bps = breakpoint.NewTable()
	}
	return s
}

// Breakpoints returns the breakpoint table of the server.
func (s *Server) Breakpoints() *breakpoint.Table {
	return s.bps
}

// Stop closes the listener and the client connection. This method mustn't
// be called more than once.
func (s *Server) Stop() {
	s.listener.Close()
	close(s.stopChan)
	if s.conn != nil {
		// This results in a closed connection error on the next read,
		// breaking out of the read loop.
		s.conn.Close()
	}
}

// signalDisconnect closes config.DisconnectChan if not nil. It can be
// called more than once and is only called from the run goroutine.
func (s *Server) signalDisconnect() {
	if s.config.DisconnectChan != nil {
		close(s.config.DisconnectChan)
		s.config.DisconnectChan = nil
	}
}

// Run launches a new goroutine where it accepts a client connection
// and starts processing requests from it. Use Stop() to close connection.
// The server does not support multiple clients, serially or in parallel.
func (s *Server) Run() {
	go func() {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.stopChan:
			default:
				s.log.Errorf("Error accepting client connection: %s", err)
			}
			s.signalDisconnect()
			return
		}
		s.conn = conn
		s.serveDAPCodec()
	}()
}

// serveDAPCodec reads and decodes requests from the client
// until it encounters an error or EOF, when it sends
// the disconnect signal and returns.
func (s *Server) serveDAPCodec() {
	defer s.signalDisconnect()
	s.reader = bufio.NewReader(s.conn)
	for {
		request, err := dap.ReadProtocolMessage(s.reader)
		if err != nil {
			stopRequested := false
			select {
			case <-s.stopChan:
				stopRequested = true
			default:
			}
			if err != io.EOF && !stopRequested {
				s.log.Error("DAP error: ", err)
			}
			return
		}
		if !s.handleRequest(request) {
			return
		}
	}
}

// handleRequest dispatches request and returns false once the client
// asked to disconnect.
func (s *Server) handleRequest(request dap.Message) (cont bool) {
	cont = true
	defer func() {
		// In case a handler panics, we catch the panic and send an error response
		// back to the client.
		if ierr := recover(); ierr != nil {
			s.sendInternalErrorResponse(request.GetSeq(), fmt.Sprintf("%v", ierr))
		}
	}()

	if logflags.DAP() {
		jsonmsg, _ := json.Marshal(request)
		s.log.Debug("[<- from client]", string(jsonmsg))
	}

	switch request := request.(type) {
	case *dap.InitializeRequest:
		s.onInitializeRequest(request)
	case *dap.LaunchRequest:
		s.onLaunchRequest(request)
	case *dap.DisconnectRequest:
		s.onDisconnectRequest(request)
		return false
	case *dap.SetBreakpointsRequest:
		s.onSetBreakpointsRequest(request)
	case *dap.SetFunctionBreakpointsRequest:
		s.onSetFunctionBreakpointsRequest(request)
	case *dap.SetInstructionBreakpointsRequest:
		s.onSetInstructionBreakpointsRequest(request)
	case *dap.SetExceptionBreakpointsRequest:
		// Always sent even though no filters are advertised.
		s.send(&dap.SetExceptionBreakpointsResponse{Response: *newResponse(request.Request)})
	case *dap.ConfigurationDoneRequest:
		s.send(&dap.ConfigurationDoneResponse{Response: *newResponse(request.Request)})
	case *dap.CompletionsRequest:
		s.onCompletionsRequest(request)
	case *dap.LoadedSourcesRequest:
		s.onLoadedSourcesRequest(request)
	case *dap.EvaluateRequest:
		s.onEvaluateRequest(request)
	case *dap.ThreadsRequest:
		// No program runs, there are no threads.
		s.send(&dap.ThreadsResponse{Response: *newResponse(request.Request), Body: dap.ThreadsResponseBody{Threads: []dap.Thread{}}})
	default:
		var req dap.Request
		jsonmsg, _ := json.Marshal(request)
		if err := json.Unmarshal(jsonmsg, &req); err == nil && req.Type == "request" {
			s.sendUnsupportedErrorResponse(req)
			return true
		}
		// This is a DAP message that go-dap has a struct for, so
		// decoding succeeded, but this function does not know how
		// to handle.
		s.sendInternalErrorResponse(request.GetSeq(), fmt.Sprintf("Unable to process %#v", request))
	}
	return true
}

func (s *Server) send(message dap.Message) {
	if logflags.DAP() {
		jsonmsg, _ := json.Marshal(message)
		s.log.Debug("[-> to client]", string(jsonmsg))
	}
	if err := dap.WriteProtocolMessage(s.conn, message); err != nil {
		s.log.Errorf("error writing to client: %v", err)
	}
}

func (s *Server) onInitializeRequest(request *dap.InitializeRequest) {
	response := &dap.InitializeResponse{Response: *newResponse(request.Request)}
	response.Body.SupportsConfigurationDoneRequest = true
	response.Body.SupportsFunctionBreakpoints = true
	response.Body.SupportsInstructionBreakpoints = true
	response.Body.SupportsCompletionsRequest = true
	response.Body.SupportsLoadedSourcesRequest = true
	s.send(response)
}

// onLaunchRequest loads the symbols of the program named in the launch
// configuration, the program is never started.
func (s *Server) onLaunchRequest(request *dap.LaunchRequest) {
	var args struct {
		Program  string `json:"program"`
		Language string `json:"language"`
	}
	if err := json.Unmarshal(request.Arguments, &args); err != nil {
		s.sendErrorResponse(request.Request, FailedToLaunch, "Failed to launch", err.Error())
		return
	}
	if args.Program != "" {
		ps, err := progspace.Load(args.Program)
		if err != nil {
			s.sendErrorResponse(request.Request, FailedToLaunch, "Failed to launch", err.Error())
			return
		}
		s.ps = ps
		s.parser.Resolver = ps
	}
	if args.Language != "" {
		if err := s.setLanguage(args.Language); err != nil {
			s.sendErrorResponse(request.Request, FailedToLaunch, "Failed to launch", err.Error())
			return
		}
	}
	s.send(&dap.InitializedEvent{Event: *newEvent("initialized")})
	s.send(&dap.LaunchResponse{Response: *newResponse(request.Request)})
}

// onDisconnectRequest handles the DisconnectRequest. Per the DAP spec,
// it signals that the debug adaptor can be terminated.
func (s *Server) onDisconnectRequest(request *dap.DisconnectRequest) {
	s.send(&dap.DisconnectResponse{Response: *newResponse(request.Request)})
	s.signalDisconnect()
}

// replace removes the breakpoints in old from the table and adds a
// breakpoint for each location. Locations that failed to parse are nil,
// they produce an unverified breakpoint carrying the error.
func (s *Server) replace(old []int, locs []*locspec.Location, errs []error) ([]int, []dap.Breakpoint) {
	for _, id := range old {
		if err := s.bps.Remove(id); err != nil {
			s.log.Debugf("breakpoint %d already removed", id)
		}
	}
	ids := []int{}
	r := make([]dap.Breakpoint, len(locs))
	for i, loc := range locs {
		if errs[i] != nil {
			r[i].Message = errs[i].Error()
			continue
		}
		bp := s.bps.Add(breakpoint.Break, loc, "")
		ids = append(ids, bp.ID)
		r[i].Id = bp.ID
		r[i].Verified = true
		r[i].Message = loc.String()
		if pc, ok := s.lookupPC(loc); ok {
			r[i].InstructionReference = fmt.Sprintf("%#x", pc)
		}
	}
	return ids, r
}

// parseWhole parses a location that must span all of text.
func (s *Server) parseWhole(text string) (*locspec.Location, error) {
	loc, n, err := s.parser.Parse(text, locspec.MatchWild)
	if err != nil {
		return nil, err
	}
	if rest := strings.TrimSpace(text[n:]); rest != "" {
		return nil, fmt.Errorf("garbage at end of location: %q", rest)
	}
	return loc, nil
}

func (s *Server) onSetFunctionBreakpointsRequest(request *dap.SetFunctionBreakpointsRequest) {
	n := len(request.Arguments.Breakpoints)
	locs, errs := make([]*locspec.Location, n), make([]error, n)
	for i, fbp := range request.Arguments.Breakpoints {
		if strings.TrimSpace(fbp.Name) == "" {
			errs[i] = fmt.Errorf("empty location")
			continue
		}
		locs[i], errs[i] = s.parseWhole(fbp.Name)
	}
	response := &dap.SetFunctionBreakpointsResponse{Response: *newResponse(request.Request)}
	s.functionBps, response.Body.Breakpoints = s.replace(s.functionBps, locs, errs)
	s.send(response)
}

// onSetInstructionBreakpointsRequest sets a breakpoint on each instruction
// reference. A reference is an address expression without the leading
// '*', the offset is added to its value.
func (s *Server) onSetInstructionBreakpointsRequest(request *dap.SetInstructionBreakpointsRequest) {
	n := len(request.Arguments.Breakpoints)
	locs, errs := make([]*locspec.Location, n), make([]error, n)
	for i, ibp := range request.Arguments.Breakpoints {
		expr := "*" + strings.TrimSpace(ibp.InstructionReference)
		addr, m, err := linespec.ExpressionToPC(expr, s.parser.Resolver)
		if err == nil && strings.TrimSpace(expr[m:]) != "" {
			err = fmt.Errorf("garbage at end of instruction reference: %q", expr[m:])
		}
		if err != nil {
			errs[i] = err
			continue
		}
		text := expr[:m]
		if ibp.Offset != 0 {
			addr += uint64(int64(ibp.Offset))
			text = ""
		}
		locs[i] = locspec.NewAddressLocation(addr, text)
	}
	response := &dap.SetInstructionBreakpointsResponse{Response: *newResponse(request.Request)}
	s.instructionBps, response.Body.Breakpoints = s.replace(s.instructionBps, locs, errs)
	s.send(response)
}

// onSetBreakpointsRequest sets a breakpoint on each line of a source file,
// as the explicit location "-source FILE -line N".
func (s *Server) onSetBreakpointsRequest(request *dap.SetBreakpointsRequest) {
	path := request.Arguments.Source.Path
	n := len(request.Arguments.Breakpoints)
	locs, errs := make([]*locspec.Location, n), make([]error, n)
	for i, sbp := range request.Arguments.Breakpoints {
		if path == "" {
			errs[i] = fmt.Errorf("unable to set breakpoint for empty file path")
			continue
		}
		locs[i] = locspec.NewExplicitLocation(&locspec.ExplicitLocation{
			SourceFilename: path,
			LineOffset:     locspec.LineOffset{Sign: linespec.LineOffsetNone, Offset: sbp.Line},
		})
	}
	response := &dap.SetBreakpointsResponse{Response: *newResponse(request.Request)}
	var ids []int
	ids, response.Body.Breakpoints = s.replace(s.sourceBps[path], locs, errs)
	for i := range response.Body.Breakpoints {
		if errs[i] == nil {
			response.Body.Breakpoints[i].Line = request.Arguments.Breakpoints[i].Line
		}
	}
	if len(ids) == 0 {
		delete(s.sourceBps, path)
	} else {
		s.sourceBps[path] = ids
	}
	s.send(response)
}

// onCompletionsRequest completes the location in the text of the request
// up to the cursor.
func (s *Server) onCompletionsRequest(request *dap.CompletionsRequest) {
	text := request.Arguments.Text
	col := request.Arguments.Column - 1 // columns start at 1
	if col < 0 || col > len(text) {
		col = len(text)
	}
	text = text[:col]
	var src locspec.Completer
	if s.ps != nil {
		src = s.ps
	}
	start, cands := s.parser.Complete(text, src)
	response := &dap.CompletionsResponse{Response: *newResponse(request.Request)}
	response.Body.Targets = make([]dap.CompletionItem, len(cands))
	for i, cand := range cands {
		response.Body.Targets[i] = dap.CompletionItem{
			Label:  cand,
			Text:   cand,
			Start:  start + 1,
			Length: len(text) - start,
		}
	}
	s.send(response)
}

func (s *Server) onLoadedSourcesRequest(request *dap.LoadedSourcesRequest) {
	response := &dap.LoadedSourcesResponse{Response: *newResponse(request.Request)}
	response.Body.Sources = []dap.Source{}
	if s.ps != nil {
		for _, path := range s.ps.Sources() {
			response.Body.Sources = append(response.Body.Sources, dap.Source{Name: filepath.Base(path), Path: path})
		}
	}
	s.send(response)
}

// onEvaluateRequest parses the expression as a location and returns its
// canonical form.
func (s *Server) onEvaluateRequest(request *dap.EvaluateRequest) {
	loc, err := s.parseWhole(request.Arguments.Expression)
	if err != nil {
		s.sendErrorResponse(request.Request, UnableToParseLocation, "Unable to parse location", err.Error())
		return
	}
	response := &dap.EvaluateResponse{Response: *newResponse(request.Request)}
	response.Body.Result = loc.String()
	response.Body.Type = loc.Kind().String()
	if pc, ok := s.lookupPC(loc); ok {
		response.Body.MemoryReference = fmt.Sprintf("%#x", pc)
	}
	s.send(response)
}

func (s *Server) setLanguage(name string) error {
	lang, err := language.Lookup(name)
	if err != nil {
		return err
	}
	s.parser.Lang = lang
	return nil
}

// lookupPC returns the address of address locations and of locations
// naming a function alone.
func (s *Server) lookupPC(loc *locspec.Location) (uint64, bool) {
	pc, err := progspace.LocationPC(s.ps, loc)
	return pc, err == nil
}

func (s *Server) sendErrorResponse(request dap.Request, id int, summary, details string) {
	er := &dap.ErrorResponse{}
	er.Type = "response"
	er.Command = request.Command
	er.RequestSeq = request.Seq
	er.Success = false
	er.Message = summary
	er.Body.Error = &dap.ErrorMessage{Id: id, Format: fmt.Sprintf("%s: %s", summary, details)}
	s.log.Error(er.Body.Error.Format)
	s.send(er)
}

// sendInternalErrorResponse sends an "internal error" response back to the client.
// We only take a seq here because we don't want to make assumptions about the
// kind of message received by the server that this error is a reply to.
func (s *Server) sendInternalErrorResponse(seq int, details string) {
	er := &dap.ErrorResponse{}
	er.Type = "response"
	er.RequestSeq = seq
	er.Success = false
	er.Message = "Internal Error"
	er.Body.Error = &dap.ErrorMessage{Id: InternalError, Format: fmt.Sprintf("%s: %s", er.Message, details)}
	s.log.Error(er.Body.Error.Format)
	s.send(er)
}

func (s *Server) sendUnsupportedErrorResponse(request dap.Request) {
	s.sendErrorResponse(request, UnsupportedCommand, "Unsupported command",
		fmt.Sprintf("cannot process '%s' request", request.Command))
}

func newResponse(request dap.Request) *dap.Response {
	return &dap.Response{
		ProtocolMessage: dap.ProtocolMessage{
			Seq:  0,
			Type: "response",
		},
		Command:    request.Command,
		RequestSeq: request.Seq,
		Success:    true,
	}
}

func newEvent(event string) *dap.Event {
	return &dap.Event{
		ProtocolMessage: dap.ProtocolMessage{
			Seq:  0,
			Type: "event",
		},
		Event: event,
	}
}

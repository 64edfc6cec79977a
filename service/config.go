package service

import (
	"net"

	"github.com/go-delve/evloc/pkg/breakpoint"
	"github.com/go-delve/evloc/pkg/locspec"
	"github.com/go-delve/evloc/pkg/progspace"
)

// Config provides the configuration to expose location parsing and the
// breakpoint table with a service.
type Config struct {
	// Listener is used to serve requests.
	Listener net.Listener

	// Parser parses the locations received from clients. If nil a parser
	// for the default language, resolving symbols in ProgramSpace, is used.
	Parser *locspec.Parser
	// ProgramSpace resolves and completes locations, it can be nil.
	ProgramSpace *progspace.ProgramSpace
	// Breakpoints is the table breakpoints are added to. If nil the server
	// creates its own.
	Breakpoints *breakpoint.Table

	// DisconnectChan will be closed by the server when the client disconnects
	DisconnectChan chan<- struct{}
}

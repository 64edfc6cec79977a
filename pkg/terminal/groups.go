package terminal

type commandGroup uint8

const (
	otherCmds commandGroup = iota
	breakCmds
	locationCmds
)

type commandGroupDescription struct {
	description string
	group       commandGroup
}

var commandGroupDescriptions = []commandGroupDescription{
	{"Manipulating breakpoints", breakCmds},
	{"Parsing and resolving locations", locationCmds},
	{"Other commands", otherCmds},
}

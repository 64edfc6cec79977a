package linespec

import (
	"fmt"
	"strconv"
)

// LineOffsetSign records how a line number was written.
type LineOffsetSign uint8

const (
	// LineOffsetUnknown means no line was specified.
	LineOffsetUnknown LineOffsetSign = iota
	// LineOffsetNone is an absolute line number.
	LineOffsetNone
	// LineOffsetPlus is a line relative to the default line, forward.
	LineOffsetPlus
	// LineOffsetMinus is a line relative to the default line, backward.
	LineOffsetMinus
)

func (s LineOffsetSign) String() string {
	switch s {
	case LineOffsetNone:
		return "none"
	case LineOffsetPlus:
		return "plus"
	case LineOffsetMinus:
		return "minus"
	default:
		return "unknown"
	}
}

// LineOffset is a line number, possibly relative.
type LineOffset struct {
	Sign   LineOffsetSign
	Offset int
}

// String returns the line offset as it would be written in a linespec, or
// the empty string if the sign is unknown.
func (lo LineOffset) String() string {
	switch lo.Sign {
	case LineOffsetNone:
		return strconv.Itoa(lo.Offset)
	case LineOffsetPlus:
		return "+" + strconv.Itoa(lo.Offset)
	case LineOffsetMinus:
		return "-" + strconv.Itoa(lo.Offset)
	}
	return ""
}

// ErrMalformedLineOffset is returned by ParseLineOffset.
type ErrMalformedLineOffset struct {
	Text string
}

func (err *ErrMalformedLineOffset) Error() string {
	return fmt.Sprintf("malformed line offset: %q", err.Text)
}

// ParseLineOffset parses a line number with an optional '+' or '-' sign.
// Only base 10 is allowed; parsing stops at the first non digit.
func ParseLineOffset(s string) (LineOffset, error) {
	lo := LineOffset{Sign: LineOffsetNone}
	rest := s
	if rest != "" {
		switch rest[0] {
		case '+':
			lo.Sign = LineOffsetPlus
			rest = rest[1:]
		case '-':
			lo.Sign = LineOffsetMinus
			rest = rest[1:]
		}
	}
	if rest != "" && !IsDigit(rest[0]) {
		return LineOffset{}, &ErrMalformedLineOffset{s}
	}
	n := 0
	for n < len(rest) && IsDigit(rest[n]) {
		n++
	}
	if n > 0 {
		v, err := strconv.Atoi(rest[:n])
		if err != nil {
			return LineOffset{}, &ErrMalformedLineOffset{s}
		}
		lo.Offset = v
	}
	return lo, nil
}

// Package locspec implements code to parse a string into an event
// location: the description of where a breakpoint, tracepoint or dynamic
// printf should stop.
//
// Location examples:
//
// location ::= <explicit> | <probe> | *<address expression> | <linespec>
// * <explicit> ::= { -source <file> | -function <function> | -label <label> | -line [+|-]<line> | -qualified }
// * option names can be abbreviated, -func main is -function main
// * -source must be followed by at least one of -function, -label or -line
// * <probe> ::= (-probe | -probe-stap | -probe-dtrace | -p | -pstap | -pdtrace) [<objfile>:][<provider>:]<name>
// * *<address expression> is an integer expression, symbols evaluate to their address
// * <linespec> is anything else, up to the first top level comma or keyword (if, thread, task, inferior, -force-condition)
// * -qualified <linespec> only matches fully qualified function names
//
// Parsed locations render back to a string that parses to the same
// location, this is how breakpoints are saved and restored.
package locspec

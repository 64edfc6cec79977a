// Package breakpoint keeps the table of user breakpoints, tracepoints and
// dynamic printfs, each identified by an event location, and persists it.
package breakpoint

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v2"

	"github.com/go-delve/evloc/pkg/locspec"
)

// Kind is the kind of a breakpoint.
type Kind uint8

const (
	// Break stops execution.
	Break Kind = iota
	// Trace records the location being reached.
	Trace
	// Dprintf prints a formatted message.
	Dprintf
)

var kindNames = [...]string{Break: "break", Trace: "trace", Dprintf: "dprintf"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	for i, name := range kindNames {
		if name == s {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown breakpoint kind %q", s)
}

// Breakpoint is an entry of the table.
type Breakpoint struct {
	ID       int
	Kind     Kind
	Location *locspec.Location
	// Format and Args are only used by Dprintf breakpoints.
	Format string
	Args   []string
}

// Table is a set of breakpoints. It is safe for concurrent use.
type Table struct {
	mu     sync.Mutex
	nextID int
	bps    map[int]*Breakpoint
}

// ErrNoSuchBreakpoint is returned by Remove and Get.
var ErrNoSuchBreakpoint = errors.New("no such breakpoint")

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{nextID: 1, bps: make(map[int]*Breakpoint)}
}

// Add adds a breakpoint to the table and assigns it an ID.
func (t *Table) Add(kind Kind, loc *locspec.Location, format string, args ...string) *Breakpoint {
	t.mu.Lock()
	defer t.mu.Unlock()
	bp := &Breakpoint{ID: t.nextID, Kind: kind, Location: loc, Format: format, Args: args}
	t.nextID++
	t.bps[bp.ID] = bp
	return bp
}

// Get returns the breakpoint with the given ID.
func (t *Table) Get(id int) (*Breakpoint, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	bp, ok := t.bps[id]
	if !ok {
		return nil, fmt.Errorf("%w %d", ErrNoSuchBreakpoint, id)
	}
	return bp, nil
}

// Remove deletes the breakpoint with the given ID.
func (t *Table) Remove(id int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.bps[id]; !ok {
		return fmt.Errorf("%w %d", ErrNoSuchBreakpoint, id)
	}
	delete(t.bps, id)
	return nil
}

// Clear removes every breakpoint, IDs are not reused.
func (t *Table) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.bps = make(map[int]*Breakpoint)
}

// List returns the breakpoints sorted by ID.
func (t *Table) List() []*Breakpoint {
	t.mu.Lock()
	defer t.mu.Unlock()
	r := make([]*Breakpoint, 0, len(t.bps))
	for _, bp := range t.bps {
		r = append(r, bp)
	}
	sort.Slice(r, func(i, j int) bool { return r[i].ID < r[j].ID })
	return r
}

type savedBreakpoint struct {
	Kind     string   `yaml:"kind"`
	Location string   `yaml:"location"`
	Format   string   `yaml:"format,omitempty"`
	Args     []string `yaml:"args,omitempty"`
}

type savedTable struct {
	Breakpoints []savedBreakpoint `yaml:"breakpoints"`
}

// Save writes the table to w as YAML, each location in its canonical form.
func (t *Table) Save(w io.Writer) error {
	var st savedTable
	for _, bp := range t.List() {
		st.Breakpoints = append(st.Breakpoints, savedBreakpoint{
			Kind:     bp.Kind.String(),
			Location: bp.Location.String(),
			Format:   bp.Format,
			Args:     bp.Args,
		})
	}
	out, err := yaml.Marshal(&st)
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}

// Load reads breakpoints written by Save and adds them to the table. Every
// location is parsed again with p and must be consumed entirely.
func (t *Table) Load(r io.Reader, p *locspec.Parser) (int, error) {
	var st savedTable
	if err := yaml.NewDecoder(r).Decode(&st); err != nil && err != io.EOF {
		return 0, fmt.Errorf("could not decode breakpoints: %v", err)
	}
	type entry struct {
		kind Kind
		loc  *locspec.Location
		sb   savedBreakpoint
	}
	entries := make([]entry, 0, len(st.Breakpoints))
	for i, sb := range st.Breakpoints {
		kind, err := ParseKind(sb.Kind)
		if err != nil {
			return 0, fmt.Errorf("breakpoint %d: %v", i+1, err)
		}
		loc, n, err := p.Parse(sb.Location, locspec.MatchWild)
		if err != nil {
			return 0, fmt.Errorf("breakpoint %d: %v", i+1, err)
		}
		if rest := strings.TrimSpace(sb.Location[n:]); rest != "" {
			return 0, fmt.Errorf("breakpoint %d: garbage %q at end of location %q", i+1, rest, sb.Location)
		}
		entries = append(entries, entry{kind, loc, sb})
	}
	for _, e := range entries {
		t.Add(e.kind, e.loc, e.sb.Format, e.sb.Args...)
	}
	return len(entries), nil
}

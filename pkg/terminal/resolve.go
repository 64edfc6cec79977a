package terminal

import (
	"fmt"
	"strings"

	"github.com/go-delve/evloc/pkg/locspec"
	"github.com/go-delve/evloc/pkg/progspace"
)

// lookupPC returns the address a location refers to.
func (t *Term) lookupPC(loc *locspec.Location) (uint64, error) {
	return progspace.LocationPC(t.ps, loc)
}

func (t *Term) resolvePC(loc *locspec.Location) (uint64, bool) {
	pc, err := t.lookupPC(loc)
	return pc, err == nil
}

// resolve describes the address of loc, if it has one.
func (t *Term) resolve(loc *locspec.Location) (string, bool) {
	pc, ok := t.resolvePC(loc)
	if !ok {
		return "", false
	}
	return t.describePC(pc), true
}

func (t *Term) describePC(pc uint64) string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "%#x", pc)
	if t.ps == nil {
		return buf.String()
	}
	if fn := t.ps.PCToFunc(pc); fn != nil {
		fmt.Fprintf(&buf, " in %s", fn.Name)
		if off := pc - fn.Entry; off != 0 {
			fmt.Fprintf(&buf, "+%d", off)
		}
	}
	if line, ok := t.ps.FindPCLine(pc); ok {
		fmt.Fprintf(&buf, " at %s:%d", line.File, line.Line)
	}
	if solib := t.ps.SolibName(pc); solib != "" {
		fmt.Fprintf(&buf, " from %s", solib)
	}
	return buf.String()
}

package migrate

import (
	"fmt"
	"strings"

	"github.com/conduit-lang/metanode/internal/host"
)

// MissingAttr is an attribute the new schema no longer declares, with the
// data it held when it was dropped
type MissingAttr struct {
	Name     string
	Value    any
	Inbound  []host.Connection
	Outbound []host.Connection
}

// SetFailure is an attribute whose value could not be written to the new node
type SetFailure struct {
	Name  string
	Value any
	Err   error
}

// Report lists the data a migration could not carry over
type Report struct {
	Node        string
	Missing     []MissingAttr
	CouldNotSet []SetFailure
}

// Empty reports whether the migration lost nothing
func (r *Report) Empty() bool {
	return len(r.Missing) == 0 && len(r.CouldNotSet) == 0
}

// String renders the report one finding per line
func (r *Report) String() string {
	if r.Empty() {
		return ""
	}
	var b strings.Builder
	for _, m := range r.Missing {
		fmt.Fprintf(&b, "%s: new metanode lacks previous attribute %s (value %v, %d inbound, %d outbound connections)\n",
			r.Node, m.Name, m.Value, len(m.Inbound), len(m.Outbound))
	}
	for _, f := range r.CouldNotSet {
		fmt.Fprintf(&b, "%s: could not set attribute %s to %v: %v\n", r.Node, f.Name, f.Value, f.Err)
	}
	return b.String()
}

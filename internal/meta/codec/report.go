package codec

import (
	"fmt"
	"strings"
)

// DanglingRef is a link whose target node no longer exists
type DanglingRef struct {
	Attr   string
	Target string
	// Index is the element position within a multi link, or -1
	Index int
}

// SetFailure is an attribute whose value could not be restored
type SetFailure struct {
	Attr  string
	Value any
	Err   error
}

// Report collects what a deserialize could not restore
type Report struct {
	Node        string
	Dangling    []DanglingRef
	Unknown     []string
	CouldNotSet []SetFailure
	// Mismatch is set when version verification was requested and the
	// record was written at other versions than the restored node carries
	Mismatch *VersionMismatch
}

// VersionMismatch pairs the record versions with the live node's
type VersionMismatch struct {
	Record Version
	Live   Version
}

// Empty reports whether the record was restored without findings
func (r *Report) Empty() bool {
	return len(r.Dangling) == 0 && len(r.Unknown) == 0 && len(r.CouldNotSet) == 0 && r.Mismatch == nil
}

// String renders the report one finding per line
func (r *Report) String() string {
	if r.Empty() {
		return ""
	}
	var b strings.Builder
	if m := r.Mismatch; m != nil {
		fmt.Fprintf(&b, "%s: record version %d (lineal %d) does not match node version %d (lineal %d)\n",
			r.Node, m.Record.Schema, m.Record.Lineal, m.Live.Schema, m.Live.Lineal)
	}
	for _, d := range r.Dangling {
		if d.Index >= 0 {
			fmt.Fprintf(&b, "%s: %s[%d] references missing node %s\n", r.Node, d.Attr, d.Index, d.Target)
			continue
		}
		fmt.Fprintf(&b, "%s: %s references missing node %s\n", r.Node, d.Attr, d.Target)
	}
	for _, name := range r.Unknown {
		fmt.Fprintf(&b, "%s: type no longer declares attribute %s\n", r.Node, name)
	}
	for _, f := range r.CouldNotSet {
		fmt.Fprintf(&b, "%s: could not set attribute %s to %v: %v\n", r.Node, f.Attr, f.Value, f.Err)
	}
	return b.String()
}

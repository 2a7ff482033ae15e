package manager

import (
	"fmt"
	"strings"

	"github.com/conduit-lang/metanode/internal/meta/migrate"
)

// Action is a repair the manager performed
type Action int

const (
	ActionRelink Action = iota
	ActionDeleteSingleton
	ActionDeleteOrphan
	ActionUpdate
	ActionDeleteDeprecated
)

// String returns the string representation of the action
func (a Action) String() string {
	switch a {
	case ActionRelink:
		return "relink"
	case ActionDeleteSingleton:
		return "delete_singleton"
	case ActionDeleteOrphan:
		return "delete_orphan"
	case ActionUpdate:
		return "update"
	case ActionDeleteDeprecated:
		return "delete_deprecated"
	default:
		return "unknown"
	}
}

// Entry is one line of the repair log
type Entry struct {
	Action Action
	Node   string
	// From and To are the type tags before and after a relink or update
	From   string
	To     string
	Report *migrate.Report
	Err    error
}

// Failed reports whether the repair could not be carried out
func (e Entry) Failed() bool {
	return e.Err != nil
}

func (e Entry) String() string {
	if e.Err != nil {
		return fmt.Sprintf("Could not %s Metanode %s: %v", strings.ReplaceAll(e.Action.String(), "_", " "), e.Node, e.Err)
	}
	switch e.Action {
	case ActionRelink:
		return fmt.Sprintf("Relinked outdated Metanode: %s (%s -> %s)", e.Node, e.From, e.To)
	case ActionDeleteSingleton:
		return "Deleted duplicate singleton Metanode: " + e.Node
	case ActionDeleteOrphan:
		return "Deleted orphaned Metanode: " + e.Node
	case ActionUpdate:
		return "Updating Metanode: " + e.Node
	case ActionDeleteDeprecated:
		return "Deleted deprecated Metanode: " + e.Node
	default:
		return e.Node
	}
}

// RepairLog lists the repairs of one or more passes in the order they ran
type RepairLog []Entry

// Failures returns the entries that could not be carried out
func (l RepairLog) Failures() RepairLog {
	var failed RepairLog
	for _, e := range l {
		if e.Failed() {
			failed = append(failed, e)
		}
	}
	return failed
}

// Count returns how many entries performed the action
func (l RepairLog) Count(action Action) int {
	n := 0
	for _, e := range l {
		if e.Action == action && !e.Failed() {
			n++
		}
	}
	return n
}

// String renders the log one repair per line, followed by any data an
// update could not carry over
func (l RepairLog) String() string {
	var b strings.Builder
	for _, e := range l {
		b.WriteString(e.String())
		b.WriteByte('\n')
		if e.Report != nil {
			b.WriteString(e.Report.String())
		}
	}
	return b.String()
}

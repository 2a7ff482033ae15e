// Package migrate upgrades live metanodes to their current schema in place.
//
// A migration renames the old node out of the way, creates a fresh node of
// the target type under the original name, moves every user attribute value
// and connection across, and deletes the old node. Every graph mutation is
// recorded so that an unexpected host error restores the original node, its
// name and its connections, and discards the half-built replacement.
package migrate

import (
	"errors"
	"fmt"

	"github.com/conduit-lang/metanode/internal/host"
	"github.com/conduit-lang/metanode/internal/meta/metanode"
	"github.com/conduit-lang/metanode/internal/meta/schema"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// State is a stage of one migration
type State int

const (
	StateCurrent State = iota
	StateRenamedPending
	StateRecreated
	StateTransplanted
	StateOldDeleted
	StateRolledBack
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateCurrent:
		return "current"
	case StateRenamedPending:
		return "renamed-pending"
	case StateRecreated:
		return "recreated"
	case StateTransplanted:
		return "transplanted"
	case StateOldDeleted:
		return "old-deleted"
	case StateRolledBack:
		return "rolled-back"
	default:
		return "unknown"
	}
}

// TempSuffix is appended to a node's name while it is being replaced
const TempSuffix = "_migrating"

// ErrRollbackIncomplete marks a failed migration whose rollback also failed
var ErrRollbackIncomplete = errors.New("rollback incomplete")

// Error is a migration that failed and was rolled back
type Error struct {
	Node  string
	Stage State
	Err   error
}

// Error implements the error interface
func (e *Error) Error() string {
	return fmt.Sprintf("migrate %s: failed while %s: %v", e.Node, e.Stage, e.Err)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// Migrator performs in-place schema upgrades
type Migrator struct {
	env    *metanode.Env
	logger *zap.Logger
}

// New creates a migrator over env
func New(env *metanode.Env) *Migrator {
	return &Migrator{env: env, logger: env.Log()}
}

// Update migrates n to the current schema of its own type
func (m *Migrator) Update(n *metanode.Node) (*metanode.Node, *Report, error) {
	return m.UpdateTo(n, n.Type())
}

// UpdateTo migrates n to type t. On success the returned node replaces n,
// which no longer exists. On failure n is left as it was.
func (m *Migrator) UpdateTo(n *metanode.Node, t *schema.Type) (*metanode.Node, *Report, error) {
	name := n.Name()
	report := &Report{Node: name}
	run := &migration{
		m:      m,
		g:      m.env.Graph,
		oldID:  n.ID(),
		name:   name,
		target: t,
		report: report,
		state:  StateCurrent,
	}

	created, err := run.execute()
	if err != nil {
		stage := run.state
		if undoErr := run.undo.unwind(); undoErr != nil {
			m.logger.Error("migration rollback incomplete",
				zap.String("node", name), zap.Error(undoErr))
			err = fmt.Errorf("%w; %w: %v", err, ErrRollbackIncomplete, undoErr)
		}
		run.state = StateRolledBack
		m.logger.Warn("migration rolled back",
			zap.String("node", name), zap.Stringer("stage", stage), zap.Error(err))
		return nil, report, &Error{Node: name, Stage: stage, Err: err}
	}
	run.undo.clear()

	for _, missing := range report.Missing {
		m.logger.Warn("attribute dropped by migration",
			zap.String("node", name), zap.String("attr", missing.Name), zap.Any("value", missing.Value))
	}
	for _, failure := range report.CouldNotSet {
		m.logger.Warn("attribute value not restored",
			zap.String("node", name), zap.String("attr", failure.Name), zap.Error(failure.Err))
	}
	m.logger.Info("updated metanode",
		zap.String("node", name),
		zap.String("type", t.Name),
		zap.Int("lineal", t.LinealVersion()))
	return created, report, nil
}

type migration struct {
	m      *Migrator
	g      host.Graph
	oldID  uuid.UUID
	newID  uuid.UUID
	name   string
	target *schema.Type
	report *Report
	state  State
	undo   undoStack
}

func (r *migration) execute() (*metanode.Node, error) {
	if err := r.renameOld(); err != nil {
		return nil, err
	}
	r.state = StateRenamedPending

	created, err := metanode.Create(r.m.env, r.target, r.name)
	if err != nil {
		return nil, err
	}
	r.newID = created.ID()
	r.undo.push("discard "+r.name, func() error {
		if !r.g.Exists(r.newID) {
			return nil
		}
		if err := r.g.LockNode(r.newID, false); err != nil {
			return err
		}
		return r.g.DeleteNode(r.newID)
	})
	r.state = StateRecreated

	attrs, err := r.g.ListAttrs(r.oldID, true)
	if err != nil {
		return nil, err
	}
	attrs = append(attrs, host.MessageAttr)
	for _, attr := range attrs {
		if err := r.transplant(attr); err != nil {
			return nil, fmt.Errorf("attribute %s: %w", attr, err)
		}
	}
	r.state = StateTransplanted

	if err := r.g.DeleteNode(r.oldID); err != nil {
		return nil, err
	}
	r.state = StateOldDeleted
	return created, nil
}

func (r *migration) renameOld() error {
	g := r.g
	wasLocked, err := g.NodeLocked(r.oldID)
	if err != nil {
		return err
	}
	if wasLocked {
		if err := g.LockNode(r.oldID, false); err != nil {
			return err
		}
		r.undo.push("relock old node", func() error { return g.LockNode(r.oldID, true) })
	}

	temp, err := g.Rename(r.oldID, r.name+TempSuffix)
	if err != nil {
		return err
	}
	r.undo.push("rename "+temp+" back to "+r.name, func() error {
		_, err := g.Rename(r.oldID, r.name)
		return err
	})
	return nil
}

// transplant moves one attribute's value and connections from the old node
// to the new one
func (r *migration) transplant(attr string) error {
	g := r.g
	opts, err := g.AttrOptions(r.oldID, attr)
	if err != nil {
		return err
	}

	value, err := r.capture(attr, opts)
	if err != nil {
		return err
	}

	if !g.HasAttr(r.newID, attr) {
		if spec, ok := r.target.DynamicAttrs().Lookup(attr); ok {
			if err := g.AddAttr(r.newID, attr, spec.Options()); err != nil {
				return err
			}
		}
	}

	if !g.HasAttr(r.newID, attr) {
		return r.drop(attr, value)
	}

	relock, ok := r.unlock(attr, value)
	if !ok {
		return nil
	}
	if !opts.Kind.IsLink() && !schema.IsCore(attr) {
		r.restoreValue(attr, opts, value)
	}
	err = r.rewire(attr)
	relock()
	return err
}

// unlock opens a locked target attribute for the write and the rewiring.
// The returned func relocks it. ok is false when the attribute stays locked.
func (r *migration) unlock(attr string, value any) (relock func(), ok bool) {
	g := r.g
	relock = func() {}
	if schema.IsVersionAttr(attr) {
		return relock, true
	}
	locked, err := g.AttrLocked(r.newID, attr)
	if err != nil {
		r.couldNotSet(attr, value, err)
		return relock, false
	}
	if !locked {
		return relock, true
	}
	if err := g.SetAttrLocked(r.newID, attr, false); err != nil {
		r.couldNotSet(attr, value, err)
		return relock, false
	}
	return func() {
		if err := g.SetAttrLocked(r.newID, attr, true); err != nil {
			r.couldNotSet(attr, value, err)
		}
	}, true
}

// capture reads an attribute's value; links carry no value. Multi values are
// captured per populated index so sparse arrays keep their indices.
func (r *migration) capture(attr string, opts host.AttrOptions) (any, error) {
	if opts.Kind.IsLink() {
		return nil, nil
	}
	if !opts.Multi {
		return r.g.GetAttr(host.At(r.oldID, attr))
	}
	indices, err := r.g.MultiIndices(r.oldID, attr)
	if err != nil {
		return nil, err
	}
	elements := make(map[int]any, len(indices))
	for _, i := range indices {
		v, err := r.g.GetAttr(host.Element(r.oldID, attr, i))
		if err != nil {
			return nil, err
		}
		elements[i] = v
	}
	return elements, nil
}

// drop records an attribute the new schema lacks and disconnects it so no
// half-connections survive the old node's deletion
func (r *migration) drop(attr string, value any) error {
	g := r.g
	whole := host.At(r.oldID, attr)
	inbound, err := g.Connections(whole, host.Inbound)
	if err != nil {
		return err
	}
	outbound, err := g.Connections(whole, host.Outbound)
	if err != nil {
		return err
	}
	r.report.Missing = append(r.report.Missing, MissingAttr{
		Name:     attr,
		Value:    value,
		Inbound:  inbound,
		Outbound: outbound,
	})

	for _, c := range append(inbound, outbound...) {
		if err := g.Disconnect(c.Src, c.Dst); err != nil {
			r.m.logger.Debug("could not disconnect dropped attribute",
				zap.String("node", r.name), zap.String("attr", attr), zap.Error(err))
			continue
		}
		c := c
		r.undo.push("reconnect "+attr, func() error { return g.Connect(c.Src, c.Dst) })
	}
	return nil
}

// restoreValue writes a captured value onto the new node. Failures are
// reported, not returned.
func (r *migration) restoreValue(attr string, opts host.AttrOptions, value any) {
	g := r.g
	if !opts.Multi {
		if err := g.SetAttr(host.At(r.newID, attr), value); err != nil {
			r.couldNotSet(attr, value, err)
		}
		return
	}
	elements, _ := value.(map[int]any)
	for i, v := range elements {
		if err := g.SetAttr(host.Element(r.newID, attr, i), v); err != nil {
			r.couldNotSet(fmt.Sprintf("%s[%d]", attr, i), v, err)
		}
	}
}

func (r *migration) couldNotSet(attr string, value any, err error) {
	r.report.CouldNotSet = append(r.report.CouldNotSet, SetFailure{Name: attr, Value: value, Err: err})
}

// rewire moves every connection on the old attribute to the new one. The
// connections are listed afresh so links between the two nodes follow
// whichever side has already moved.
func (r *migration) rewire(attr string) error {
	g := r.g
	whole := host.At(r.oldID, attr)

	inbound, err := g.Connections(whole, host.Inbound)
	if err != nil {
		return err
	}
	for _, c := range inbound {
		moved := host.Connection{Src: c.Src, Dst: host.Plug{Node: r.newID, Attr: attr, Index: c.Dst.Index}}
		if err := r.move(c, moved); err != nil {
			return err
		}
	}

	outbound, err := g.Connections(whole, host.Outbound)
	if err != nil {
		return err
	}
	for _, c := range outbound {
		moved := host.Connection{Src: host.Plug{Node: r.newID, Attr: attr, Index: c.Src.Index}, Dst: c.Dst}
		if err := r.move(c, moved); err != nil {
			return err
		}
	}
	return nil
}

func (r *migration) move(from, to host.Connection) error {
	g := r.g
	if err := g.Disconnect(from.Src, from.Dst); err != nil {
		return err
	}
	r.undo.push("restore connection", func() error { return g.Connect(from.Src, from.Dst) })

	if err := g.Connect(to.Src, to.Dst); err != nil {
		if errors.Is(err, host.ErrAttrLocked) {
			r.couldNotSet(to.Dst.Attr, to.Src, err)
			return nil
		}
		return err
	}
	r.undo.push("remove moved connection", func() error {
		if !g.Exists(to.Src.Node) || !g.Exists(to.Dst.Node) {
			return nil
		}
		return g.Disconnect(to.Src, to.Dst)
	})
	return nil
}

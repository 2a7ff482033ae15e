package manager

import (
	"errors"
	"fmt"

	"github.com/conduit-lang/metanode/internal/host"
	"github.com/conduit-lang/metanode/internal/meta/metanode"
	"github.com/conduit-lang/metanode/internal/meta/migrate"
	"github.com/conduit-lang/metanode/internal/meta/schema"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Findings are the working sets of one gather pass
type Findings struct {
	Relink     []uuid.UUID
	Singleton  []uuid.UUID
	Orphaned   []uuid.UUID
	Update     []uuid.UUID
	Deprecated []uuid.UUID
}

// Total returns the number of nodes found, counting a node once per set
func (f Findings) Total() int {
	return len(f.Relink) + len(f.Singleton) + len(f.Orphaned) + len(f.Update) + len(f.Deprecated)
}

// Empty reports whether nothing needs repair
func (f Findings) Empty() bool {
	return f.Total() == 0
}

// Findings returns the working sets of the last gather
func (m *Manager) Findings() Findings {
	return m.findings
}

// Gather fills the working sets from the cache and the graph without
// changing anything. Nodes whose update failed earlier in the current
// repair are left out.
func (m *Manager) Gather() Findings {
	m.findings = Findings{
		Relink:     m.gatherRelink(),
		Singleton:  m.gatherSingletons(),
		Orphaned:   m.gatherOrphaned(),
		Update:     m.gatherUpdate(),
		Deprecated: m.gatherDeprecated(),
	}
	return m.findings
}

func (m *Manager) gatherRelink() []uuid.UUID {
	var ids []uuid.UUID
	for _, id := range metanode.Tagged(m.env.Graph) {
		tag, err := metanode.TypeTag(m.env.Graph, id)
		if err != nil {
			continue
		}
		if _, ok := m.config.Relink[tag]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}

func (m *Manager) gatherSingletons() []uuid.UUID {
	var ids []uuid.UUID
	for _, typeName := range m.typeOrder {
		entries := m.cache[typeName]
		if len(entries) < 2 || !entries[0].node.Type().IsSingleton() {
			continue
		}
		keep := entries[0].node
		canonical := keep.Type().Canonical()
		for _, e := range entries {
			if e.node.Name() == canonical {
				keep = e.node
				break
			}
		}
		for _, e := range entries {
			if !e.node.Equal(keep) {
				ids = append(ids, e.node.ID())
			}
		}
	}
	return ids
}

func (m *Manager) gatherOrphaned() []uuid.UUID {
	var ids []uuid.UUID
	for _, n := range m.All() {
		if n.Exists() && n.Type().IsOrphaned(n) {
			ids = append(ids, n.ID())
		}
	}
	return ids
}

func (m *Manager) gatherUpdate() []uuid.UUID {
	var ids []uuid.UUID
	for _, typeName := range m.config.Check {
		for _, n := range m.Instances(typeName) {
			if _, failed := m.failed[n.ID()]; failed {
				continue
			}
			if m.needsUpdate(n) {
				ids = append(ids, n.ID())
			}
		}
	}
	return ids
}

// needsUpdate reports whether the node's tag is stale or its recorded
// lineal version is behind its type
func (m *Manager) needsUpdate(n *metanode.Node) bool {
	if !n.Exists() {
		return false
	}
	tag, err := n.TypeTag()
	if err != nil {
		return false
	}
	return tag != n.Type().Name || n.NodeLineal() < n.Type().LinealVersion()
}

func (m *Manager) gatherDeprecated() []uuid.UUID {
	if len(m.config.Remove) == 0 {
		return nil
	}
	remove := make(map[string]struct{}, len(m.config.Remove))
	for _, tag := range m.config.Remove {
		remove[tag] = struct{}{}
	}
	var ids []uuid.UUID
	for _, id := range metanode.Tagged(m.env.Graph) {
		tag, err := metanode.TypeTag(m.env.Graph, id)
		if err != nil {
			continue
		}
		if _, ok := remove[tag]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// Fix repairs the gathered working sets and empties them. A node that was
// already removed by an earlier fix in the pass is skipped.
func (m *Manager) Fix() RepairLog {
	f := m.findings
	m.findings = Findings{}

	var log RepairLog
	for _, id := range f.Relink {
		log = m.appendEntry(log, m.relink(id))
	}
	for _, id := range f.Singleton {
		log = m.appendEntry(log, m.remove(id, ActionDeleteSingleton))
	}
	for _, id := range f.Orphaned {
		log = m.appendEntry(log, m.remove(id, ActionDeleteOrphan))
	}
	for _, id := range f.Update {
		log = m.appendEntry(log, m.update(id))
	}
	for _, id := range f.Deprecated {
		log = m.appendEntry(log, m.remove(id, ActionDeleteDeprecated))
	}
	return log
}

func (m *Manager) appendEntry(log RepairLog, e *Entry) RepairLog {
	if e == nil {
		return log
	}
	if e.Failed() {
		m.logger.Warn("metanode repair failed",
			zap.Stringer("action", e.Action), zap.String("node", e.Node), zap.Error(e.Err))
	} else {
		m.logger.Info("metanode repaired",
			zap.Stringer("action", e.Action), zap.String("node", e.Node))
	}
	return append(log, *e)
}

func (m *Manager) relink(id uuid.UUID) *Entry {
	g := m.env.Graph
	if !g.Exists(id) {
		return nil
	}
	name, _ := g.Name(id)
	tag, err := metanode.TypeTag(g, id)
	if err != nil {
		return &Entry{Action: ActionRelink, Node: name, Err: err}
	}
	target, ok := m.config.Relink[tag]
	if !ok {
		return nil
	}
	e := &Entry{Action: ActionRelink, Node: name, From: tag, To: target}

	if err := g.SetAttrLocked(id, schema.AttrMetaType, false); err != nil {
		e.Err = err
		return e
	}
	err = g.SetAttr(host.At(id, schema.AttrMetaType), target)
	if lockErr := g.SetAttrLocked(id, schema.AttrMetaType, true); err == nil {
		err = lockErr
	}
	if err != nil {
		e.Err = err
		return e
	}

	// the cache keys on the resolved type, which only changes when the
	// relink target itself differs from what the stale tag resolved to
	if typeName, tracked := m.index[id]; tracked {
		if t, ok := m.env.ResolveTag(target); !ok || t.Name != typeName {
			m.untrack(id)
		}
	}
	if !m.Tracked(id) {
		if n, err := metanode.FromNode(m.env, id); err == nil {
			m.track(n)
		}
	}
	return e
}

func (m *Manager) remove(id uuid.UUID, action Action) *Entry {
	g := m.env.Graph
	if !g.Exists(id) {
		return nil
	}
	name, _ := g.Name(id)
	e := &Entry{Action: action, Node: name}
	if tag, err := metanode.TypeTag(g, id); err == nil {
		e.From = tag
	}

	if err := g.LockNode(id, false); err != nil {
		e.Err = err
		return e
	}
	if err := g.DeleteNode(id); err != nil && !errors.Is(err, host.ErrNodeNotFound) {
		e.Err = err
		return e
	}
	m.untrack(id)
	return e
}

func (m *Manager) update(id uuid.UUID) *Entry {
	typeName, tracked := m.index[id]
	if !tracked || !m.env.Graph.Exists(id) {
		return nil
	}
	var n *metanode.Node
	for _, e := range m.cache[typeName] {
		if e.node.ID() == id {
			n = e.node
			break
		}
	}
	// an earlier fix in this pass may have brought it up to date
	if n == nil || !m.needsUpdate(n) {
		return nil
	}

	tag, _ := n.TypeTag()
	e := &Entry{Action: ActionUpdate, Node: n.Name(), From: tag, To: n.Type().Name}
	created, report, err := migrate.New(m.env).Update(n)
	if report != nil && !report.Empty() {
		e.Report = report
	}
	if err != nil {
		m.failed[id] = struct{}{}
		e.Err = err
		return e
	}
	m.untrack(id)
	m.track(created)
	return e
}

// Repair runs gather and fix passes until a gather finds nothing. It stops
// with ErrNotConverged after the configured number of passes.
func (m *Manager) Repair() (RepairLog, error) {
	m.failed = make(map[uuid.UUID]struct{})
	var log RepairLog
	for pass := 0; ; pass++ {
		if m.Gather().Empty() {
			return log, nil
		}
		if pass >= m.config.MaxPasses {
			return log, fmt.Errorf("%w after %d passes: %d nodes still need repair",
				ErrNotConverged, pass, m.findings.Total())
		}
		log = append(log, m.Fix()...)
	}
}

// Refresh indexes the scene and repairs it, as done when a scene is opened
// or imported
func (m *Manager) Refresh() (RepairLog, error) {
	added := m.Index()
	log, err := m.Repair()
	m.logger.Info("metanode refresh",
		zap.Int("indexed", added),
		zap.Int("tracked", m.Count()),
		zap.Int("repairs", len(log)),
		zap.Int("failures", len(log.Failures())))
	return log, err
}

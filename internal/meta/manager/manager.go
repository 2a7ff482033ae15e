// Package manager keeps a live index of the metanodes in a scene and
// repairs the ones that no longer match the registry.
//
// The index is fed by host notifications: node creation is observed on the
// host's deferred queue, so a node is inspected only after its factory has
// stamped it, and deletion is observed synchronously. Index rebuilds the
// cache from the graph for the cases notifications cannot see, such as a
// scene loaded while callbacks were not registered.
//
// Repair gathers five working sets (stale type tags, duplicate singletons,
// orphans, out of date nodes and deprecated types), fixes them, and repeats
// until a pass finds nothing.
package manager

import (
	"errors"
	"sort"

	"github.com/conduit-lang/metanode/internal/host"
	"github.com/conduit-lang/metanode/internal/meta/events"
	"github.com/conduit-lang/metanode/internal/meta/metanode"
	"github.com/conduit-lang/metanode/internal/meta/schema"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultMaxPasses bounds the repair loop
const DefaultMaxPasses = 10

// ErrNotConverged is returned when repair passes keep finding work
var ErrNotConverged = errors.New("metanode repair did not converge")

// Config holds the reconciliation tables
type Config struct {
	// Relink maps stale type tags to the type that replaces them
	Relink map[string]string
	// Check lists the types whose instances are migrated when out of date
	Check []string
	// Remove lists type tags whose nodes are deleted
	Remove []string
	// MaxPasses bounds the repair loop; zero uses DefaultMaxPasses
	MaxPasses int
}

type entry struct {
	node  *metanode.Node
	token events.Token
	// subscribed is false when no bus is attached
	subscribed bool
}

// Manager indexes and repairs the metanodes of one graph
type Manager struct {
	env    *metanode.Env
	bus    *events.Bus
	config Config
	logger *zap.Logger
	hooks  *Hooks

	cache     map[string][]*entry
	typeOrder []string
	index     map[uuid.UUID]string

	pending   []uuid.UUID
	callbacks []host.CallbackID

	findings Findings
	failed   map[uuid.UUID]struct{}
}

// New creates a manager over env. The bus is optional; when present the
// manager follows type tag changes on tracked nodes as they happen.
func New(env *metanode.Env, config Config, bus *events.Bus) *Manager {
	m := &Manager{
		env:    env,
		bus:    bus,
		logger: env.Log().Named("manager"),
		hooks:  newHooks(),
		cache:  make(map[string][]*entry),
		index:  make(map[uuid.UUID]string),
		failed: make(map[uuid.UUID]struct{}),
	}
	m.SetConfig(config)
	return m
}

// SetConfig replaces the reconciliation tables. Relink entries are merged
// into the environment's relink table so stale nodes can still be wrapped.
func (m *Manager) SetConfig(config Config) {
	if config.MaxPasses <= 0 {
		config.MaxPasses = DefaultMaxPasses
	}
	relink := make(map[string]string, len(config.Relink))
	for from, to := range config.Relink {
		relink[from] = to
		m.env.Relink[from] = to
	}
	config.Relink = relink
	config.Check = append([]string(nil), config.Check...)
	config.Remove = append([]string(nil), config.Remove...)
	m.config = config
}

// Config returns the current reconciliation tables
func (m *Manager) Config() Config {
	return m.config
}

// Env returns the environment the manager works in
func (m *Manager) Env() *metanode.Env {
	return m.env
}

// Hooks returns the cache lifecycle hooks
func (m *Manager) Hooks() *Hooks {
	return m.hooks
}

// RegisterCallbacks registers the node and scene callbacks with the host.
// It does nothing and returns false when they are already registered.
func (m *Manager) RegisterCallbacks() bool {
	if len(m.callbacks) > 0 {
		return false
	}
	g := m.env.Graph
	refresh := func() {
		if _, err := m.Refresh(); err != nil {
			m.logger.Error("scene refresh failed", zap.Error(err))
		}
	}
	m.callbacks = []host.CallbackID{
		g.OnNodeAdded(host.NetworkNodeType, m.nodeAdded),
		g.OnNodeRemoved(host.NetworkNodeType, m.nodeRemoved),
		g.OnScene(host.SceneAfterOpen, refresh),
		g.OnScene(host.SceneAfterImport, refresh),
		g.OnScene(host.SceneAfterNew, m.Reset),
	}
	return true
}

// UnregisterCallbacks removes every callback RegisterCallbacks added
func (m *Manager) UnregisterCallbacks() {
	for _, cb := range m.callbacks {
		m.env.Graph.RemoveCallback(cb)
	}
	m.callbacks = nil
	m.pending = nil
}

// Registered reports whether the host callbacks are registered
func (m *Manager) Registered() bool {
	return len(m.callbacks) > 0
}

func (m *Manager) nodeAdded(id uuid.UUID) {
	m.pending = append(m.pending, id)
	m.env.Graph.Defer(m.checkCreated)
}

// checkCreated inspects the oldest pending node. The host runs deferred
// work in order, so each call matches the creation that queued it.
func (m *Manager) checkCreated() {
	if len(m.pending) == 0 {
		return
	}
	id := m.pending[0]
	m.pending = m.pending[1:]

	if m.Tracked(id) || !metanode.IsMetanode(m.env.Graph, id) {
		return
	}
	n, err := metanode.FromNode(m.env, id)
	if err != nil {
		m.logger.Debug("ignoring created node", zap.Stringer("id", id), zap.Error(err))
		return
	}
	m.track(n)
}

func (m *Manager) nodeRemoved(id uuid.UUID) {
	m.untrack(id)
}

// Pending returns the number of created nodes not yet inspected
func (m *Manager) Pending() int {
	return len(m.pending)
}

// Index adds every recognized metanode in the graph to the cache and drops
// entries whose node is gone or whose tag now resolves to another type.
// It returns how many nodes were added.
func (m *Manager) Index() int {
	for id, typeName := range m.snapshotIndex() {
		t, ok := m.resolve(id)
		if !ok || t.Name != typeName {
			m.untrack(id)
		}
	}

	added := 0
	for _, n := range metanode.Scene(m.env) {
		if m.Tracked(n.ID()) {
			continue
		}
		m.track(n)
		added++
	}
	return added
}

// Reset empties the cache without touching the graph
func (m *Manager) Reset() {
	for id := range m.snapshotIndex() {
		m.untrack(id)
	}
	m.pending = nil
	m.findings = Findings{}
}

func (m *Manager) snapshotIndex() map[uuid.UUID]string {
	snapshot := make(map[uuid.UUID]string, len(m.index))
	for id, typeName := range m.index {
		snapshot[id] = typeName
	}
	return snapshot
}

func (m *Manager) resolve(id uuid.UUID) (*schema.Type, bool) {
	tag, err := metanode.TypeTag(m.env.Graph, id)
	if err != nil {
		return nil, false
	}
	return m.env.ResolveTag(tag)
}

func (m *Manager) track(n *metanode.Node) {
	typeName := n.Type().Name
	if _, ok := m.index[n.ID()]; ok {
		return
	}
	e := &entry{node: n}
	if m.bus != nil {
		tok, err := m.bus.SubscribeAttr(n.ID(), m.attrChanged)
		if err == nil {
			e.token, e.subscribed = tok, true
		}
	}
	if _, ok := m.cache[typeName]; !ok {
		m.typeOrder = append(m.typeOrder, typeName)
	}
	m.cache[typeName] = append(m.cache[typeName], e)
	m.index[n.ID()] = typeName

	m.logger.Debug("tracking metanode", zap.String("node", n.Name()), zap.String("type", typeName))
	m.hooks.run(HookTracked, n)
}

func (m *Manager) untrack(id uuid.UUID) {
	typeName, ok := m.index[id]
	if !ok {
		return
	}
	delete(m.index, id)

	entries := m.cache[typeName]
	for i, e := range entries {
		if e.node.ID() != id {
			continue
		}
		m.cache[typeName] = append(entries[:i], entries[i+1:]...)
		if e.subscribed {
			m.bus.Unsubscribe(e.token)
		}
		m.hooks.run(HookUntracked, e.node)
		break
	}
}

// attrChanged follows a type tag rewritten outside the manager
func (m *Manager) attrChanged(ev events.AttrEvent) {
	if ev.Attr != schema.AttrMetaType || ev.Link {
		return
	}
	typeName, ok := m.index[ev.Node]
	if !ok {
		return
	}
	t, ok := m.resolve(ev.Node)
	if ok && t.Name == typeName {
		return
	}
	m.untrack(ev.Node)
	if !ok {
		return
	}
	if n, err := metanode.Wrap(m.env, t, ev.Node); err == nil {
		m.track(n)
	}
}

// Tracked reports whether the node is in the cache
func (m *Manager) Tracked(id uuid.UUID) bool {
	_, ok := m.index[id]
	return ok
}

// Instances returns the cached instances of a type in discovery order
func (m *Manager) Instances(typeName string) []*metanode.Node {
	entries := m.cache[typeName]
	nodes := make([]*metanode.Node, len(entries))
	for i, e := range entries {
		nodes[i] = e.node
	}
	return nodes
}

// All returns every cached instance, grouped by type in discovery order
func (m *Manager) All() []*metanode.Node {
	var nodes []*metanode.Node
	for _, typeName := range m.typeOrder {
		nodes = append(nodes, m.Instances(typeName)...)
	}
	return nodes
}

// Types returns the names of the types with cached instances, sorted
func (m *Manager) Types() []string {
	var names []string
	for typeName, entries := range m.cache {
		if len(entries) > 0 {
			names = append(names, typeName)
		}
	}
	sort.Strings(names)
	return names
}

// Count returns the number of cached instances
func (m *Manager) Count() int {
	return len(m.index)
}

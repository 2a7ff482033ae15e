// Package memgraph is an in-memory implementation of host.Graph.
//
// It mirrors the behaviour of a dependency-graph host closely enough to run the
// metanode runtime outside the host application: unique renaming with numeric
// suffixes, an implicit message attribute on every node, unset string storage
// reported as nil, locked nodes and attributes, synchronous change
// notifications and a FIFO deferred-evaluation queue drained by Idle.
//
// A Graph is not safe for concurrent use. Like the host it stands in for, it
// expects every call to come from one event thread; callbacks run re-entrantly
// inside the mutating call that triggered them.
package memgraph

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/conduit-lang/metanode/internal/host"
	"github.com/google/uuid"
)

// DefaultReservedNames are names the host refuses to give to user nodes
var DefaultReservedNames = []string{"time1", "sequenceManager1", "defaultRenderGlobals", "world"}

type node struct {
	id        uuid.UUID
	name      string
	nodeType  string
	locked    bool
	attrs     map[string]*attribute
	attrOrder []string
}

type attribute struct {
	name        string
	opts        host.AttrOptions
	userDefined bool
	locked      bool
	value       any
	elements    map[int]any
}

// Graph is an in-memory host graph
type Graph struct {
	nodes       map[uuid.UUID]*node
	order       []uuid.UUID
	names       map[string]uuid.UUID
	reserved    map[string]struct{}
	connections []host.Connection

	callbacks *callbackTable
	deferred  []func()
}

// New creates an empty graph
func New() *Graph {
	g := &Graph{
		nodes:     make(map[uuid.UUID]*node),
		names:     make(map[string]uuid.UUID),
		reserved:  make(map[string]struct{}),
		callbacks: newCallbackTable(),
	}
	for _, name := range DefaultReservedNames {
		g.reserved[name] = struct{}{}
	}
	return g
}

var _ host.Graph = (*Graph)(nil)

// CreateNode creates a node of the given type with a generated unique name
func (g *Graph) CreateNode(nodeType string) (uuid.UUID, error) {
	if nodeType == "" {
		return uuid.Nil, fmt.Errorf("create node: empty node type")
	}

	n := g.newNode(nodeType, uuid.New(), nodeType+"1")
	g.callbacks.nodeAdded(nodeType, n.id)
	return n.id, nil
}

func (g *Graph) newNode(nodeType string, id uuid.UUID, name string) *node {
	n := &node{
		id:       id,
		nodeType: nodeType,
		attrs:    make(map[string]*attribute),
	}
	n.attrs[host.MessageAttr] = &attribute{
		name: host.MessageAttr,
		opts: host.AttrOptions{Kind: host.KindMessage, Hidden: true},
	}
	n.attrOrder = append(n.attrOrder, host.MessageAttr)
	n.name = g.uniqueName(name)

	g.nodes[n.id] = n
	g.names[n.name] = n.id
	g.order = append(g.order, n.id)
	return n
}

// DeleteNode removes a node and every connection touching it.
// Removal callbacks fire while the node is still queryable.
func (g *Graph) DeleteNode(id uuid.UUID) error {
	n, err := g.node(id)
	if err != nil {
		return err
	}
	if n.locked {
		return &host.NodeError{Node: id, Err: host.ErrNodeLocked}
	}

	g.callbacks.nodeRemoved(n.nodeType, id)

	for _, c := range g.connectionsOf(id) {
		g.removeConnection(c)
	}

	delete(g.nodes, id)
	if g.names[n.name] == id {
		delete(g.names, n.name)
	}
	for i, other := range g.order {
		if other == id {
			g.order = append(g.order[:i], g.order[i+1:]...)
			break
		}
	}
	g.callbacks.dropNode(id)
	return nil
}

// Exists reports whether the node is alive
func (g *Graph) Exists(id uuid.UUID) bool {
	_, ok := g.nodes[id]
	return ok
}

// Lookup finds a node by its exact name
func (g *Graph) Lookup(name string) (uuid.UUID, bool) {
	id, ok := g.names[name]
	return id, ok
}

// Name returns the node's current name
func (g *Graph) Name(id uuid.UUID) (string, error) {
	n, err := g.node(id)
	if err != nil {
		return "", err
	}
	return n.name, nil
}

// Rename renames a node and returns the name it actually received.
// A name held by another node is made unique by bumping its numeric suffix.
func (g *Graph) Rename(id uuid.UUID, name string) (string, error) {
	n, err := g.node(id)
	if err != nil {
		return "", err
	}
	if !validName(name) {
		return "", &host.NodeError{Node: id, Err: fmt.Errorf("%w: %q", host.ErrInvalidName, name)}
	}
	if _, ok := g.reserved[name]; ok {
		return "", &host.NodeError{Node: id, Err: fmt.Errorf("%w: %q", host.ErrReservedName, name)}
	}
	if n.locked {
		return "", &host.NodeError{Node: id, Err: host.ErrNodeLocked}
	}
	if n.name == name {
		return name, nil
	}

	previous := n.name
	delete(g.names, previous)
	n.name = g.uniqueName(name)
	g.names[n.name] = id

	g.callbacks.nameChanged(id, previous)
	return n.name, nil
}

// NodeType returns the node's type
func (g *Graph) NodeType(id uuid.UUID) (string, error) {
	n, err := g.node(id)
	if err != nil {
		return "", err
	}
	return n.nodeType, nil
}

// ListNodes lists nodes of a type in creation order. An empty type lists all nodes.
func (g *Graph) ListNodes(nodeType string) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(g.order))
	for _, id := range g.order {
		if nodeType == "" || g.nodes[id].nodeType == nodeType {
			ids = append(ids, id)
		}
	}
	return ids
}

// LockNode locks or unlocks a node against deletion, renaming and new attributes
func (g *Graph) LockNode(id uuid.UUID, locked bool) error {
	n, err := g.node(id)
	if err != nil {
		return err
	}
	n.locked = locked
	return nil
}

// NodeLocked reports whether a node is locked
func (g *Graph) NodeLocked(id uuid.UUID) (bool, error) {
	n, err := g.node(id)
	if err != nil {
		return false, err
	}
	return n.locked, nil
}

// Defer queues fn until the next Idle
func (g *Graph) Defer(fn func()) {
	g.deferred = append(g.deferred, fn)
}

// Idle drains the deferred queue in FIFO order, including work queued while
// draining, and returns how many functions ran.
func (g *Graph) Idle() int {
	ran := 0
	for len(g.deferred) > 0 {
		fn := g.deferred[0]
		g.deferred = g.deferred[1:]
		fn()
		ran++
	}
	return ran
}

// Pending returns the number of queued deferred functions
func (g *Graph) Pending() int {
	return len(g.deferred)
}

// EmitScene fires the callbacks registered for a scene event
func (g *Graph) EmitScene(event host.SceneEvent) {
	g.callbacks.scene(event)
}

// Duplicate copies a node the way the host's duplicate command does: same
// type, user attributes, values and lock state, no connections. The copy
// bypasses any metanode factory.
func (g *Graph) Duplicate(id uuid.UUID) (uuid.UUID, error) {
	src, err := g.node(id)
	if err != nil {
		return uuid.Nil, err
	}

	copyID, err := g.CreateNode(src.nodeType)
	if err != nil {
		return uuid.Nil, err
	}
	dst := g.nodes[copyID]

	for _, name := range src.attrOrder {
		a := src.attrs[name]
		if !a.userDefined {
			continue
		}
		dst.attrs[name] = a.clone()
		dst.attrOrder = append(dst.attrOrder, name)
	}

	delete(g.names, dst.name)
	dst.name = g.uniqueName(src.name)
	g.names[dst.name] = copyID
	return copyID, nil
}

func (g *Graph) node(id uuid.UUID) (*node, error) {
	n, ok := g.nodes[id]
	if !ok {
		return nil, &host.NodeError{Node: id, Err: host.ErrNodeNotFound}
	}
	return n, nil
}

func (g *Graph) uniqueName(name string) string {
	if _, taken := g.names[name]; !taken {
		return name
	}
	base := strings.TrimRight(name, "0123456789")
	suffix := 1
	if digits := name[len(base):]; digits != "" {
		if n, err := strconv.Atoi(digits); err == nil {
			suffix = n + 1
		}
	}
	for {
		candidate := base + strconv.Itoa(suffix)
		if _, taken := g.names[candidate]; !taken {
			if _, reserved := g.reserved[candidate]; !reserved {
				return candidate
			}
		}
		suffix++
	}
}

func validName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_':
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func (a *attribute) clone() *attribute {
	c := &attribute{
		name:        a.name,
		opts:        a.opts,
		userDefined: a.userDefined,
		locked:      a.locked,
		value:       a.value,
	}
	c.opts.EnumValues = append([]string(nil), a.opts.EnumValues...)
	if a.elements != nil {
		c.elements = make(map[int]any, len(a.elements))
		for i, v := range a.elements {
			c.elements[i] = v
		}
	}
	return c
}

func sortedIndices(elements map[int]any) []int {
	indices := make([]int, 0, len(elements))
	for i := range elements {
		indices = append(indices, i)
	}
	sort.Ints(indices)
	return indices
}

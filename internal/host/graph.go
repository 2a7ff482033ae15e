// Package host defines the contract between the metanode runtime and the host
// application's scene graph.
//
// The host graph is an attribute-bag database of generic nodes. Every node has a
// stable UUID, a mutable unique name, a node type, a set of typed attributes and
// an implicit "message" attribute other nodes can connect to. Connections are
// directed: the source plug feeds the destination plug.
//
// Nothing in this package stores data. Implementations live in subpackages
// (see memgraph) or are provided by the embedding application.
package host

import (
	"github.com/google/uuid"
)

// NetworkNodeType is the generic node type every metanode is built on.
const NetworkNodeType = "network"

// MessageAttr is the implicit self-reference attribute every node carries.
const MessageAttr = "message"

// NoIndex addresses a whole attribute rather than a single multi element.
const NoIndex = -1

// Plug addresses an attribute on a node, optionally a single element of a
// multi attribute.
type Plug struct {
	Node  uuid.UUID
	Attr  string
	Index int
}

// At returns a plug for the whole attribute.
func At(node uuid.UUID, attr string) Plug {
	return Plug{Node: node, Attr: attr, Index: NoIndex}
}

// Element returns a plug for one element of a multi attribute.
func Element(node uuid.UUID, attr string, index int) Plug {
	return Plug{Node: node, Attr: attr, Index: index}
}

// Whole reports whether the plug addresses the whole attribute.
func (p Plug) Whole() bool {
	return p.Index < 0
}

// Connection is a directed edge from a source plug to a destination plug.
type Connection struct {
	Src Plug
	Dst Plug
}

// Direction selects which side of a plug's connections to list.
type Direction int

const (
	// Inbound lists connections where the plug is the destination.
	Inbound Direction = iota
	// Outbound lists connections where the plug is the source.
	Outbound
	// Both lists inbound then outbound connections.
	Both
)

// AttrOptions describes an attribute when it is added to a node.
type AttrOptions struct {
	Kind       AttrKind
	Multi      bool
	Default    any
	EnumValues []string
	Hidden     bool
}

// Graph is the set of host primitives the metanode runtime consumes.
//
// All calls happen on the host's single event thread. Implementations may
// invoke registered callbacks synchronously from inside any mutating call.
type Graph interface {
	// Nodes
	CreateNode(nodeType string) (uuid.UUID, error)
	DeleteNode(id uuid.UUID) error
	Exists(id uuid.UUID) bool
	Lookup(name string) (uuid.UUID, bool)
	Name(id uuid.UUID) (string, error)
	Rename(id uuid.UUID, name string) (string, error)
	NodeType(id uuid.UUID) (string, error)
	ListNodes(nodeType string) []uuid.UUID
	LockNode(id uuid.UUID, locked bool) error
	NodeLocked(id uuid.UUID) (bool, error)

	// Attributes
	AddAttr(id uuid.UUID, name string, opts AttrOptions) error
	HasAttr(id uuid.UUID, name string) bool
	AttrOptions(id uuid.UUID, name string) (AttrOptions, error)
	ListAttrs(id uuid.UUID, userDefined bool) ([]string, error)
	GetAttr(p Plug) (any, error)
	SetAttr(p Plug, value any) error
	MultiIndices(id uuid.UUID, name string) ([]int, error)
	RemoveMultiInstance(p Plug) error
	SetAttrLocked(id uuid.UUID, name string, locked bool) error
	AttrLocked(id uuid.UUID, name string) (bool, error)

	// Connections
	Connect(src, dst Plug) error
	Disconnect(src, dst Plug) error
	Connections(p Plug, dir Direction) ([]Connection, error)

	// Notifications
	OnNodeAdded(nodeType string, fn func(id uuid.UUID)) CallbackID
	OnNodeRemoved(nodeType string, fn func(id uuid.UUID)) CallbackID
	OnAttributeChanged(id uuid.UUID, fn func(AttrChange)) (CallbackID, error)
	OnNameChanged(id uuid.UUID, fn func(id uuid.UUID, previous string)) (CallbackID, error)
	OnScene(event SceneEvent, fn func()) CallbackID
	RemoveCallback(cb CallbackID)

	// Defer schedules fn to run once the host is idle. Deferred functions run
	// in the order they were scheduled.
	Defer(fn func())
}

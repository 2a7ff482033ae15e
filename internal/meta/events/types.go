package events

import (
	"github.com/conduit-lang/metanode/internal/host"
	"github.com/google/uuid"
)

// Kind is the category of a subscription
type Kind int

const (
	// KindAttr delivers attribute value and link changes
	KindAttr Kind = iota
	// KindName delivers renames
	KindName
)

// String returns the string representation of the subscription kind
func (k Kind) String() string {
	switch k {
	case KindAttr:
		return "attr"
	case KindName:
		return "name"
	default:
		return "unknown"
	}
}

// Token identifies one handler: the node it listens to, its category and
// its slot in that category
type Token struct {
	Node  uuid.UUID
	Kind  Kind
	Index int
}

// AttrEvent describes a change to one attribute.
//
// Link changes set Link, Peer and Connected. Value changes set Value and,
// for multi elements, Index.
type AttrEvent struct {
	Node      uuid.UUID
	Attr      string
	Link      bool
	Peer      uuid.UUID
	Connected bool
	Value     any
	Index     int
}

// Element reports whether the change addressed one multi element
func (e AttrEvent) Element() bool {
	return e.Index != host.NoIndex
}

// NameEvent describes a rename
type NameEvent struct {
	Node     uuid.UUID
	Previous string
	Name     string
}

// AttrHandler receives attribute events
type AttrHandler func(AttrEvent)

// NameHandler receives rename events
type NameHandler func(NameEvent)

func translate(node uuid.UUID, c host.AttrChange) AttrEvent {
	e := AttrEvent{Node: node, Attr: c.Plug.Attr, Index: c.Plug.Index}
	switch c.Kind {
	case host.ChangeConnected, host.ChangeDisconnected:
		e.Link = true
		e.Peer = c.Other.Node
		e.Connected = c.Kind == host.ChangeConnected
	default:
		e.Value = c.Value
	}
	return e
}

package memgraph

import (
	"fmt"

	"github.com/conduit-lang/metanode/internal/host"
	"github.com/google/uuid"
)

// Snapshot is a detached copy of a graph's contents
type Snapshot struct {
	Nodes       []NodeSnapshot
	Connections []host.Connection
}

// NodeSnapshot is a detached copy of one node
type NodeSnapshot struct {
	ID     uuid.UUID
	Name   string
	Type   string
	Locked bool
	Attrs  []AttrSnapshot
}

// AttrSnapshot is a detached copy of one user attribute
type AttrSnapshot struct {
	Name     string
	Options  host.AttrOptions
	Locked   bool
	Value    any
	Elements map[int]any
}

// Snapshot copies every node, user attribute and connection
func (g *Graph) Snapshot() Snapshot {
	s := Snapshot{
		Nodes:       make([]NodeSnapshot, 0, len(g.order)),
		Connections: append([]host.Connection(nil), g.connections...),
	}
	for _, id := range g.order {
		n := g.nodes[id]
		ns := NodeSnapshot{ID: n.id, Name: n.name, Type: n.nodeType, Locked: n.locked}
		for _, name := range n.attrOrder {
			a := n.attrs[name]
			if !a.userDefined {
				continue
			}
			c := a.clone()
			ns.Attrs = append(ns.Attrs, AttrSnapshot{
				Name:     c.name,
				Options:  c.opts,
				Locked:   c.locked,
				Value:    c.value,
				Elements: c.elements,
			})
		}
		s.Nodes = append(s.Nodes, ns)
	}
	return s
}

// Import recreates the snapshot's nodes in this graph and returns the ids
// they received. Ids already taken are regenerated and names are made unique,
// so importing into a populated graph never clobbers existing nodes.
// Node-added callbacks fire for each node once its attributes are restored.
func (g *Graph) Import(s Snapshot) (map[uuid.UUID]uuid.UUID, error) {
	remap := make(map[uuid.UUID]uuid.UUID, len(s.Nodes))

	for _, ns := range s.Nodes {
		if ns.Type == "" {
			return remap, fmt.Errorf("import %s: empty node type", ns.Name)
		}
		id := ns.ID
		if _, taken := g.nodes[id]; taken || id == uuid.Nil {
			id = uuid.New()
		}
		n := g.newNode(ns.Type, id, ns.Name)
		remap[ns.ID] = n.id

		for _, as := range ns.Attrs {
			a := &attribute{
				name:        as.Name,
				opts:        as.Options,
				userDefined: true,
				locked:      as.Locked,
				value:       as.Value,
			}
			if as.Options.Multi {
				a.elements = make(map[int]any, len(as.Elements))
				for i, v := range as.Elements {
					a.elements[i] = v
				}
			}
			n.attrs[as.Name] = a
			n.attrOrder = append(n.attrOrder, as.Name)
		}
		n.locked = ns.Locked
		g.callbacks.nodeAdded(n.nodeType, n.id)
	}

	for _, c := range s.Connections {
		src, srcOK := remap[c.Src.Node]
		dst, dstOK := remap[c.Dst.Node]
		if !srcOK || !dstOK {
			continue
		}
		c.Src.Node, c.Dst.Node = src, dst
		dstAttr, err := g.attr(c.Dst.Node, c.Dst.Attr)
		if err != nil {
			return remap, fmt.Errorf("import connection: %w", err)
		}
		if dstAttr.opts.Multi {
			if _, ok := dstAttr.elements[c.Dst.Index]; !ok {
				dstAttr.elements[c.Dst.Index] = nil
			}
		}
		g.connections = append(g.connections, c)
	}
	return remap, nil
}

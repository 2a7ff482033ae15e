package memgraph

import (
	"fmt"

	"github.com/conduit-lang/metanode/internal/host"
	"github.com/google/uuid"
)

// Connect connects src to dst. A destination accepts a single incoming
// connection, and a multi destination must be addressed by element.
func (g *Graph) Connect(src, dst host.Plug) error {
	srcAttr, err := g.attr(src.Node, src.Attr)
	if err != nil {
		return err
	}
	dstAttr, err := g.attr(dst.Node, dst.Attr)
	if err != nil {
		return err
	}
	if err := checkPlug(srcAttr, src); err != nil {
		return err
	}
	if err := checkPlug(dstAttr, dst); err != nil {
		return err
	}
	if srcAttr.opts.Kind.IsLink() != dstAttr.opts.Kind.IsLink() {
		return &host.NodeError{Node: dst.Node, Attr: dst.Attr,
			Err: fmt.Errorf("%w: %s -> %s", host.ErrNotConnectable, srcAttr.opts.Kind, dstAttr.opts.Kind)}
	}
	if dstAttr.locked {
		return &host.NodeError{Node: dst.Node, Attr: dst.Attr, Err: host.ErrAttrLocked}
	}
	for _, c := range g.connections {
		if c.Dst == dst {
			return &host.NodeError{Node: dst.Node, Attr: dst.Attr, Err: host.ErrAlreadyConnected}
		}
	}

	c := host.Connection{Src: src, Dst: dst}
	g.connections = append(g.connections, c)
	if dstAttr.opts.Multi {
		if _, ok := dstAttr.elements[dst.Index]; !ok {
			dstAttr.elements[dst.Index] = nil
		}
	}

	g.callbacks.attributeChanged(dst.Node, host.AttrChange{Kind: host.ChangeConnected, Plug: dst, Other: src})
	g.callbacks.attributeChanged(src.Node, host.AttrChange{Kind: host.ChangeConnected, Plug: src, Other: dst})
	return nil
}

// Disconnect breaks the connection from src to dst
func (g *Graph) Disconnect(src, dst host.Plug) error {
	dstAttr, err := g.attr(dst.Node, dst.Attr)
	if err != nil {
		return err
	}
	if dstAttr.locked {
		return &host.NodeError{Node: dst.Node, Attr: dst.Attr, Err: host.ErrAttrLocked}
	}
	c := host.Connection{Src: src, Dst: dst}
	for _, existing := range g.connections {
		if existing == c {
			g.removeConnection(c)
			return nil
		}
	}
	return &host.NodeError{Node: dst.Node, Attr: dst.Attr, Err: host.ErrNotConnected}
}

// Connections lists connections on a plug in the order they were made.
// A whole plug on a multi attribute matches every element.
func (g *Graph) Connections(p host.Plug, dir host.Direction) ([]host.Connection, error) {
	if _, err := g.attr(p.Node, p.Attr); err != nil {
		return nil, err
	}

	var inbound, outbound []host.Connection
	for _, c := range g.connections {
		if matches(c.Dst, p) {
			inbound = append(inbound, c)
		}
		if matches(c.Src, p) {
			outbound = append(outbound, c)
		}
	}

	switch dir {
	case host.Inbound:
		return inbound, nil
	case host.Outbound:
		return outbound, nil
	default:
		return append(inbound, outbound...), nil
	}
}

func matches(candidate, p host.Plug) bool {
	if candidate.Node != p.Node || candidate.Attr != p.Attr {
		return false
	}
	return p.Whole() || candidate.Index == p.Index
}

func checkPlug(a *attribute, p host.Plug) error {
	if a.opts.Multi && p.Whole() {
		return &host.NodeError{Node: p.Node, Attr: p.Attr, Err: fmt.Errorf("%w: multi attribute needs an element index", host.ErrNotConnectable)}
	}
	if !a.opts.Multi && !p.Whole() {
		return &host.NodeError{Node: p.Node, Attr: p.Attr, Err: host.ErrNotMulti}
	}
	return nil
}

func (g *Graph) connectionsOf(id uuid.UUID) []host.Connection {
	var result []host.Connection
	for _, c := range g.connections {
		if c.Src.Node == id || c.Dst.Node == id {
			result = append(result, c)
		}
	}
	return result
}

func (g *Graph) removeConnection(c host.Connection) {
	for i, existing := range g.connections {
		if existing == c {
			g.connections = append(g.connections[:i], g.connections[i+1:]...)
			break
		}
	}
	g.callbacks.attributeChanged(c.Dst.Node, host.AttrChange{Kind: host.ChangeDisconnected, Plug: c.Dst, Other: c.Src})
	g.callbacks.attributeChanged(c.Src.Node, host.AttrChange{Kind: host.ChangeDisconnected, Plug: c.Src, Other: c.Dst})
}

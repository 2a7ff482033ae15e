package memgraph

import (
	"github.com/conduit-lang/metanode/internal/host"
	"github.com/google/uuid"
)

type nodeCallback struct {
	id       host.CallbackID
	nodeType string
	fn       func(uuid.UUID)
}

type attrCallback struct {
	id   host.CallbackID
	node uuid.UUID
	fn   func(host.AttrChange)
}

type nameCallback struct {
	id   host.CallbackID
	node uuid.UUID
	fn   func(uuid.UUID, string)
}

type sceneCallback struct {
	id    host.CallbackID
	event host.SceneEvent
	fn    func()
}

// callbackTable keeps registrations in order. Dispatch iterates over a copy
// so callbacks may register or remove callbacks while running.
type callbackTable struct {
	next    host.CallbackID
	added   []nodeCallback
	removed []nodeCallback
	attrs   []attrCallback
	names   []nameCallback
	scenes  []sceneCallback
}

func newCallbackTable() *callbackTable {
	return &callbackTable{}
}

func (t *callbackTable) nextID() host.CallbackID {
	t.next++
	return t.next
}

// OnNodeAdded registers fn for nodes of nodeType; an empty type matches all
func (g *Graph) OnNodeAdded(nodeType string, fn func(id uuid.UUID)) host.CallbackID {
	id := g.callbacks.nextID()
	g.callbacks.added = append(g.callbacks.added, nodeCallback{id: id, nodeType: nodeType, fn: fn})
	return id
}

// OnNodeRemoved registers fn for removal of nodes of nodeType; an empty type matches all
func (g *Graph) OnNodeRemoved(nodeType string, fn func(id uuid.UUID)) host.CallbackID {
	id := g.callbacks.nextID()
	g.callbacks.removed = append(g.callbacks.removed, nodeCallback{id: id, nodeType: nodeType, fn: fn})
	return id
}

// OnAttributeChanged registers fn for attribute and connection changes on one node
func (g *Graph) OnAttributeChanged(node uuid.UUID, fn func(host.AttrChange)) (host.CallbackID, error) {
	if _, err := g.node(node); err != nil {
		return 0, err
	}
	id := g.callbacks.nextID()
	g.callbacks.attrs = append(g.callbacks.attrs, attrCallback{id: id, node: node, fn: fn})
	return id, nil
}

// OnNameChanged registers fn for renames of one node
func (g *Graph) OnNameChanged(node uuid.UUID, fn func(uuid.UUID, string)) (host.CallbackID, error) {
	if _, err := g.node(node); err != nil {
		return 0, err
	}
	id := g.callbacks.nextID()
	g.callbacks.names = append(g.callbacks.names, nameCallback{id: id, node: node, fn: fn})
	return id, nil
}

// OnScene registers fn for a scene lifecycle event
func (g *Graph) OnScene(event host.SceneEvent, fn func()) host.CallbackID {
	id := g.callbacks.nextID()
	g.callbacks.scenes = append(g.callbacks.scenes, sceneCallback{id: id, event: event, fn: fn})
	return id
}

// RemoveCallback unregisters a callback. Unknown ids are ignored.
func (g *Graph) RemoveCallback(cb host.CallbackID) {
	t := g.callbacks
	t.added = removeNodeCallback(t.added, cb)
	t.removed = removeNodeCallback(t.removed, cb)
	for i, c := range t.attrs {
		if c.id == cb {
			t.attrs = append(t.attrs[:i], t.attrs[i+1:]...)
			break
		}
	}
	for i, c := range t.names {
		if c.id == cb {
			t.names = append(t.names[:i], t.names[i+1:]...)
			break
		}
	}
	for i, c := range t.scenes {
		if c.id == cb {
			t.scenes = append(t.scenes[:i], t.scenes[i+1:]...)
			break
		}
	}
}

// CallbackCount returns the number of live registrations
func (g *Graph) CallbackCount() int {
	t := g.callbacks
	return len(t.added) + len(t.removed) + len(t.attrs) + len(t.names) + len(t.scenes)
}

func removeNodeCallback(list []nodeCallback, cb host.CallbackID) []nodeCallback {
	for i, c := range list {
		if c.id == cb {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

func (t *callbackTable) nodeAdded(nodeType string, node uuid.UUID) {
	for _, c := range append([]nodeCallback(nil), t.added...) {
		if c.nodeType == "" || c.nodeType == nodeType {
			c.fn(node)
		}
	}
}

func (t *callbackTable) nodeRemoved(nodeType string, node uuid.UUID) {
	for _, c := range append([]nodeCallback(nil), t.removed...) {
		if c.nodeType == "" || c.nodeType == nodeType {
			c.fn(node)
		}
	}
}

func (t *callbackTable) attributeChanged(node uuid.UUID, change host.AttrChange) {
	for _, c := range append([]attrCallback(nil), t.attrs...) {
		if c.node == node && t.live(c.id) {
			c.fn(change)
		}
	}
}

func (t *callbackTable) nameChanged(node uuid.UUID, previous string) {
	for _, c := range append([]nameCallback(nil), t.names...) {
		if c.node == node {
			c.fn(node, previous)
		}
	}
}

func (t *callbackTable) scene(event host.SceneEvent) {
	for _, c := range append([]sceneCallback(nil), t.scenes...) {
		if c.event == event {
			c.fn()
		}
	}
}

// live reports whether an attribute callback is still registered; a handler
// may remove its siblings mid-dispatch
func (t *callbackTable) live(id host.CallbackID) bool {
	for _, c := range t.attrs {
		if c.id == id {
			return true
		}
	}
	return false
}

// dropNode forgets per-node callbacks once the node is gone
func (t *callbackTable) dropNode(node uuid.UUID) {
	attrs := t.attrs[:0]
	for _, c := range t.attrs {
		if c.node != node {
			attrs = append(attrs, c)
		}
	}
	t.attrs = attrs

	names := t.names[:0]
	for _, c := range t.names {
		if c.node != node {
			names = append(names, c)
		}
	}
	t.names = names
}

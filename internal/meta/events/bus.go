// Package events multiplexes host change notifications into per-node
// publish/subscribe channels.
//
// The first subscription for a node registers one attribute-changed and one
// name-changed callback with the host; every later handler for that node
// shares them. When the node is deleted its callbacks and channels are torn
// down together. Handlers run synchronously on the host's event thread.
package events

import (
	"github.com/conduit-lang/metanode/internal/host"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type channel struct {
	attrCallback host.CallbackID
	nameCallback host.CallbackID
	attr         []AttrHandler
	name         []NameHandler
}

// Bus routes host notifications to subscribed handlers
type Bus struct {
	graph    host.Graph
	logger   *zap.Logger
	channels map[uuid.UUID]*channel
	removed  host.CallbackID
}

// NewBus creates a bus over g and starts watching for node removal
func NewBus(g host.Graph, logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Bus{
		graph:    g,
		logger:   logger,
		channels: make(map[uuid.UUID]*channel),
	}
	b.removed = g.OnNodeRemoved("", b.Release)
	return b
}

// SubscribeAttr registers h for attribute changes on node
func (b *Bus) SubscribeAttr(node uuid.UUID, h AttrHandler) (Token, error) {
	ch, err := b.channel(node)
	if err != nil {
		return Token{}, err
	}
	ch.attr = append(ch.attr, h)
	return Token{Node: node, Kind: KindAttr, Index: len(ch.attr) - 1}, nil
}

// SubscribeName registers h for renames of node
func (b *Bus) SubscribeName(node uuid.UUID, h NameHandler) (Token, error) {
	ch, err := b.channel(node)
	if err != nil {
		return Token{}, err
	}
	ch.name = append(ch.name, h)
	return Token{Node: node, Kind: KindName, Index: len(ch.name) - 1}, nil
}

// Unsubscribe removes exactly the handler tok names. Other tokens for the
// same node stay valid. It reports whether a handler was removed.
func (b *Bus) Unsubscribe(tok Token) bool {
	ch, ok := b.channels[tok.Node]
	if !ok || tok.Index < 0 {
		return false
	}
	switch tok.Kind {
	case KindAttr:
		if tok.Index >= len(ch.attr) || ch.attr[tok.Index] == nil {
			return false
		}
		ch.attr[tok.Index] = nil
	case KindName:
		if tok.Index >= len(ch.name) || ch.name[tok.Index] == nil {
			return false
		}
		ch.name[tok.Index] = nil
	default:
		return false
	}
	return true
}

// Release tears down every callback and handler for node
func (b *Bus) Release(node uuid.UUID) {
	ch, ok := b.channels[node]
	if !ok {
		return
	}
	b.graph.RemoveCallback(ch.attrCallback)
	b.graph.RemoveCallback(ch.nameCallback)
	delete(b.channels, node)
	b.logger.Debug("released node channels", zap.Stringer("node", node))
}

// Close releases every channel and stops watching for node removal
func (b *Bus) Close() {
	for node := range b.channels {
		b.Release(node)
	}
	b.graph.RemoveCallback(b.removed)
}

// Subscribed reports whether node has live channels
func (b *Bus) Subscribed(node uuid.UUID) bool {
	_, ok := b.channels[node]
	return ok
}

// HandlerCount returns the number of live handlers for node
func (b *Bus) HandlerCount(node uuid.UUID) int {
	ch, ok := b.channels[node]
	if !ok {
		return 0
	}
	count := 0
	for _, h := range ch.attr {
		if h != nil {
			count++
		}
	}
	for _, h := range ch.name {
		if h != nil {
			count++
		}
	}
	return count
}

func (b *Bus) channel(node uuid.UUID) (*channel, error) {
	if ch, ok := b.channels[node]; ok {
		return ch, nil
	}

	ch := &channel{}
	attrCB, err := b.graph.OnAttributeChanged(node, func(c host.AttrChange) {
		b.publishAttr(node, c)
	})
	if err != nil {
		return nil, err
	}
	nameCB, err := b.graph.OnNameChanged(node, func(id uuid.UUID, previous string) {
		b.publishName(id, previous)
	})
	if err != nil {
		b.graph.RemoveCallback(attrCB)
		return nil, err
	}
	ch.attrCallback = attrCB
	ch.nameCallback = nameCB
	b.channels[node] = ch
	return ch, nil
}

func (b *Bus) publishAttr(node uuid.UUID, c host.AttrChange) {
	ch, ok := b.channels[node]
	if !ok {
		return
	}
	e := translate(node, c)
	for _, h := range append([]AttrHandler(nil), ch.attr...) {
		if h != nil {
			h(e)
		}
	}
}

func (b *Bus) publishName(node uuid.UUID, previous string) {
	ch, ok := b.channels[node]
	if !ok {
		return
	}
	name, _ := b.graph.Name(node)
	e := NameEvent{Node: node, Previous: previous, Name: name}
	for _, h := range append([]NameHandler(nil), ch.name...) {
		if h != nil {
			h(e)
		}
	}
}

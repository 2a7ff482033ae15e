package memgraph

import (
	"fmt"
	"reflect"

	"github.com/conduit-lang/metanode/internal/host"
	"github.com/google/uuid"
)

// AddAttr adds a dynamic attribute to a node
func (g *Graph) AddAttr(id uuid.UUID, name string, opts host.AttrOptions) error {
	n, err := g.node(id)
	if err != nil {
		return err
	}
	if n.locked {
		return &host.NodeError{Node: id, Attr: name, Err: host.ErrNodeLocked}
	}
	if !validName(name) {
		return &host.NodeError{Node: id, Attr: name, Err: host.ErrInvalidName}
	}
	if _, exists := n.attrs[name]; exists {
		return &host.NodeError{Node: id, Attr: name, Err: host.ErrAttrExists}
	}

	a := &attribute{name: name, opts: opts, userDefined: true}
	a.opts.EnumValues = append([]string(nil), opts.EnumValues...)
	if opts.Default != nil && !opts.Multi && !opts.Kind.IsLink() {
		v, err := coerce(a, opts.Default)
		if err != nil {
			return &host.NodeError{Node: id, Attr: name, Err: fmt.Errorf("default: %w", err)}
		}
		a.value = v
	}
	if opts.Multi {
		a.elements = make(map[int]any)
	}

	n.attrs[name] = a
	n.attrOrder = append(n.attrOrder, name)
	return nil
}

// HasAttr reports whether the node has the attribute
func (g *Graph) HasAttr(id uuid.UUID, name string) bool {
	n, ok := g.nodes[id]
	if !ok {
		return false
	}
	_, ok = n.attrs[name]
	return ok
}

// AttrOptions returns the options an attribute was created with
func (g *Graph) AttrOptions(id uuid.UUID, name string) (host.AttrOptions, error) {
	a, err := g.attr(id, name)
	if err != nil {
		return host.AttrOptions{}, err
	}
	return a.opts, nil
}

// ListAttrs lists attribute names in creation order. userDefined excludes
// attributes the host created itself.
func (g *Graph) ListAttrs(id uuid.UUID, userDefined bool) ([]string, error) {
	n, err := g.node(id)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(n.attrOrder))
	for _, name := range n.attrOrder {
		if userDefined && !n.attrs[name].userDefined {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

// GetAttr reads a value.
//
// Unset string storage comes back as nil, as does an empty multi string
// attribute. Message attributes carry no value; query Connections instead.
func (g *Graph) GetAttr(p host.Plug) (any, error) {
	a, err := g.attr(p.Node, p.Attr)
	if err != nil {
		return nil, err
	}
	if a.opts.Kind.IsLink() {
		return nil, nil
	}

	if !a.opts.Multi {
		if !p.Whole() {
			return nil, &host.NodeError{Node: p.Node, Attr: p.Attr, Err: host.ErrNotMulti}
		}
		if a.value == nil {
			return zeroValue(a), nil
		}
		return a.value, nil
	}

	if !p.Whole() {
		v, ok := a.elements[p.Index]
		if !ok || v == nil {
			return zeroValue(a), nil
		}
		return v, nil
	}

	if len(a.elements) == 0 {
		if a.opts.Kind == host.KindString {
			return nil, nil
		}
		return []any{}, nil
	}
	values := make([]any, 0, len(a.elements))
	for _, i := range sortedIndices(a.elements) {
		v := a.elements[i]
		if v == nil {
			v = zeroValue(a)
		}
		values = append(values, v)
	}
	return values, nil
}

// SetAttr writes a value. Setting a whole multi attribute replaces all of
// its elements with the given sequence.
func (g *Graph) SetAttr(p host.Plug, value any) error {
	a, err := g.attr(p.Node, p.Attr)
	if err != nil {
		return err
	}
	if a.locked {
		return &host.NodeError{Node: p.Node, Attr: p.Attr, Err: host.ErrAttrLocked}
	}
	if a.opts.Kind.IsLink() {
		return &host.NodeError{Node: p.Node, Attr: p.Attr, Err: fmt.Errorf("%w: message attributes hold connections", host.ErrKindMismatch)}
	}

	switch {
	case !a.opts.Multi:
		if !p.Whole() {
			return &host.NodeError{Node: p.Node, Attr: p.Attr, Err: host.ErrNotMulti}
		}
		v, err := coerce(a, value)
		if err != nil {
			return &host.NodeError{Node: p.Node, Attr: p.Attr, Err: err}
		}
		a.value = v
	case p.Whole():
		rv := reflect.ValueOf(value)
		if value == nil || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
			return &host.NodeError{Node: p.Node, Attr: p.Attr, Err: fmt.Errorf("%w: multi attribute needs a sequence", host.ErrKindMismatch)}
		}
		elements := make(map[int]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			v, err := coerce(a, rv.Index(i).Interface())
			if err != nil {
				return &host.NodeError{Node: p.Node, Attr: p.Attr, Err: fmt.Errorf("element %d: %w", i, err)}
			}
			elements[i] = v
		}
		a.elements = elements
	default:
		v, err := coerce(a, value)
		if err != nil {
			return &host.NodeError{Node: p.Node, Attr: p.Attr, Err: err}
		}
		a.elements[p.Index] = v
	}

	g.callbacks.attributeChanged(p.Node, host.AttrChange{Kind: host.ChangeValue, Plug: p, Value: value})
	return nil
}

// MultiIndices returns the populated element indices of a multi attribute
func (g *Graph) MultiIndices(id uuid.UUID, name string) ([]int, error) {
	a, err := g.attr(id, name)
	if err != nil {
		return nil, err
	}
	if !a.opts.Multi {
		return nil, &host.NodeError{Node: id, Attr: name, Err: host.ErrNotMulti}
	}
	return sortedIndices(a.elements), nil
}

// RemoveMultiInstance removes one element of a multi attribute and breaks
// its connections
func (g *Graph) RemoveMultiInstance(p host.Plug) error {
	a, err := g.attr(p.Node, p.Attr)
	if err != nil {
		return err
	}
	if !a.opts.Multi || p.Whole() {
		return &host.NodeError{Node: p.Node, Attr: p.Attr, Err: host.ErrNotMulti}
	}
	if a.locked {
		return &host.NodeError{Node: p.Node, Attr: p.Attr, Err: host.ErrAttrLocked}
	}

	for _, c := range append([]host.Connection(nil), g.connections...) {
		if c.Src == p || c.Dst == p {
			g.removeConnection(c)
		}
	}
	delete(a.elements, p.Index)
	return nil
}

// SetAttrLocked locks or unlocks an attribute
func (g *Graph) SetAttrLocked(id uuid.UUID, name string, locked bool) error {
	a, err := g.attr(id, name)
	if err != nil {
		return err
	}
	a.locked = locked
	return nil
}

// AttrLocked reports whether an attribute is locked
func (g *Graph) AttrLocked(id uuid.UUID, name string) (bool, error) {
	a, err := g.attr(id, name)
	if err != nil {
		return false, err
	}
	return a.locked, nil
}

func (g *Graph) attr(id uuid.UUID, name string) (*attribute, error) {
	n, err := g.node(id)
	if err != nil {
		return nil, err
	}
	a, ok := n.attrs[name]
	if !ok {
		return nil, &host.NodeError{Node: id, Attr: name, Err: host.ErrAttrNotFound}
	}
	return a, nil
}

func zeroValue(a *attribute) any {
	if a.opts.Default != nil && !a.opts.Multi {
		return a.value
	}
	switch a.opts.Kind {
	case host.KindBool:
		return false
	case host.KindInt, host.KindEnum:
		return 0
	case host.KindFloat:
		return 0.0
	default:
		// unset string storage reports as nil
		return nil
	}
}

// coerce converts a Go value to the attribute's storage type
func coerce(a *attribute, value any) (any, error) {
	if value == nil {
		if a.opts.Kind == host.KindString {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: nil for %s attribute", host.ErrKindMismatch, a.opts.Kind)
	}

	rv := reflect.ValueOf(value)
	switch a.opts.Kind {
	case host.KindString:
		if rv.Kind() == reflect.String {
			return rv.String(), nil
		}
	case host.KindBool:
		if rv.Kind() == reflect.Bool {
			return rv.Bool(), nil
		}
	case host.KindInt:
		if i, ok := toInt(rv); ok {
			return i, nil
		}
	case host.KindFloat:
		switch {
		case rv.CanFloat():
			return rv.Float(), nil
		case rv.CanInt():
			return float64(rv.Int()), nil
		case rv.CanUint():
			return float64(rv.Uint()), nil
		}
	case host.KindEnum:
		if rv.Kind() == reflect.String {
			for i, name := range a.opts.EnumValues {
				if name == rv.String() {
					return i, nil
				}
			}
			return nil, fmt.Errorf("%w: %q is not an enum value", host.ErrKindMismatch, rv.String())
		}
		if i, ok := toInt(rv); ok {
			if len(a.opts.EnumValues) > 0 && (i < 0 || i >= len(a.opts.EnumValues)) {
				return nil, fmt.Errorf("%w: enum index %d out of range", host.ErrKindMismatch, i)
			}
			return i, nil
		}
	}
	return nil, fmt.Errorf("%w: %T for %s attribute", host.ErrKindMismatch, value, a.opts.Kind)
}

func toInt(rv reflect.Value) (int, bool) {
	switch {
	case rv.CanInt():
		return int(rv.Int()), true
	case rv.CanUint():
		return int(rv.Uint()), true
	case rv.CanFloat():
		f := rv.Float()
		if f == float64(int(f)) {
			return int(f), true
		}
	}
	return 0, false
}

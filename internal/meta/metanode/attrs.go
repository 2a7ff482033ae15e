package metanode

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/conduit-lang/metanode/internal/host"
	"github.com/conduit-lang/metanode/internal/meta/schema"
	"github.com/google/uuid"
)

// Identifier is anything that names a host node by UUID
type Identifier interface {
	ID() uuid.UUID
}

// Spec returns the schema of a class or dynamic attribute
func (n *Node) Spec(attr string) (schema.AttrSpec, error) {
	spec, ok := n.typ.Attr(attr)
	if !ok {
		return schema.AttrSpec{}, fmt.Errorf("%q is not a registered attribute on a metanode of type %s: %w",
			attr, n.typ.Name, ErrUnregisteredAttr)
	}
	return spec, nil
}

// Get reads an attribute.
//
// Single links return the connected node's uuid.UUID, or nil. Multi links
// return a []uuid.UUID in element order. Scalars return string, bool, int
// (also for enums) or float64; multi scalars return a typed slice. Unset
// strings read as "" and unset multi attributes as empty slices.
func (n *Node) Get(attr string) (any, error) {
	spec, err := n.Spec(attr)
	if err != nil {
		return nil, err
	}
	g := n.env.Graph

	if spec.IsLink() {
		sources, err := n.linkSources(attr)
		if err != nil {
			return nil, err
		}
		if spec.Multi {
			return sources, nil
		}
		if len(sources) == 0 {
			return nil, nil
		}
		return sources[0], nil
	}

	v, err := g.GetAttr(host.At(n.id, attr))
	if err != nil {
		return nil, err
	}
	if spec.Multi {
		return normalizeSlice(spec.Kind, v), nil
	}
	if v == nil && spec.Kind == host.KindString {
		return "", nil
	}
	return v, nil
}

// linkSources lists the nodes connected into a link attribute, ordered by
// element index
func (n *Node) linkSources(attr string) ([]uuid.UUID, error) {
	conns, err := n.env.Graph.Connections(host.At(n.id, attr), host.Inbound)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(conns, func(i, j int) bool { return conns[i].Dst.Index < conns[j].Dst.Index })
	sources := make([]uuid.UUID, 0, len(conns))
	for _, c := range conns {
		sources = append(sources, c.Src.Node)
	}
	return sources, nil
}

func normalizeSlice(kind host.AttrKind, v any) any {
	values, _ := v.([]any)
	switch kind {
	case host.KindString:
		out := make([]string, 0, len(values))
		for _, e := range values {
			s, _ := e.(string)
			out = append(out, s)
		}
		return out
	case host.KindBool:
		out := make([]bool, 0, len(values))
		for _, e := range values {
			b, _ := e.(bool)
			out = append(out, b)
		}
		return out
	case host.KindInt, host.KindEnum:
		out := make([]int, 0, len(values))
		for _, e := range values {
			i, _ := e.(int)
			out = append(out, i)
		}
		return out
	case host.KindFloat:
		out := make([]float64, 0, len(values))
		for _, e := range values {
			f, _ := e.(float64)
			out = append(out, f)
		}
		return out
	default:
		return values
	}
}

// Set writes an attribute.
//
// Multi attributes take a slice or array and are cleared before the new
// elements are written at indices 0..n-1, so order is preserved. Links take
// a uuid.UUID or an Identifier; a nil single link disconnects. Writes to
// several elements are independent host operations and are not rolled back
// if a later one fails.
func (n *Node) Set(attr string, value any) error {
	spec, err := n.Spec(attr)
	if err != nil {
		return err
	}

	if spec.Multi {
		rv := reflect.ValueOf(value)
		if value == nil || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
			return fmt.Errorf("%q is a multi attribute on %s and must be set with a slice, got %T: %w",
				attr, n.Name(), value, ErrNotSequence)
		}
		elements := make([]any, rv.Len())
		for i := range elements {
			elements[i] = rv.Index(i).Interface()
		}
		if spec.IsLink() {
			return n.setLinks(attr, elements)
		}
		return n.setElements(attr, elements)
	}

	if spec.IsLink() {
		return n.setLink(attr, value)
	}
	if err := n.env.Graph.SetAttr(host.At(n.id, attr), value); err != nil {
		return fmt.Errorf("set %s.%s: %w", n.Name(), attr, err)
	}
	return nil
}

func (n *Node) clearElements(attr string) error {
	g := n.env.Graph
	indices, err := g.MultiIndices(n.id, attr)
	if err != nil {
		return err
	}
	for _, i := range indices {
		if err := g.RemoveMultiInstance(host.Element(n.id, attr, i)); err != nil {
			return err
		}
	}
	return nil
}

func (n *Node) setElements(attr string, elements []any) error {
	if err := n.clearElements(attr); err != nil {
		return fmt.Errorf("set %s.%s: %w", n.Name(), attr, err)
	}
	for i, v := range elements {
		if err := n.env.Graph.SetAttr(host.Element(n.id, attr, i), v); err != nil {
			return fmt.Errorf("set %s.%s[%d]: %w", n.Name(), attr, i, err)
		}
	}
	return nil
}

func (n *Node) setLinks(attr string, elements []any) error {
	targets := make([]uuid.UUID, len(elements))
	for i, e := range elements {
		id, ok := linkTarget(e)
		if !ok || !n.env.Graph.Exists(id) {
			return fmt.Errorf("set %s.%s[%d]: %w: %v", n.Name(), attr, i, ErrBadLink, e)
		}
		targets[i] = id
	}

	if err := n.clearElements(attr); err != nil {
		return fmt.Errorf("set %s.%s: %w", n.Name(), attr, err)
	}
	for i, target := range targets {
		if err := n.env.Graph.Connect(host.At(target, host.MessageAttr), host.Element(n.id, attr, i)); err != nil {
			return fmt.Errorf("set %s.%s[%d]: %w", n.Name(), attr, i, err)
		}
	}
	return nil
}

func (n *Node) setLink(attr string, value any) error {
	g := n.env.Graph
	dst := host.At(n.id, attr)

	var target uuid.UUID
	if value != nil {
		id, ok := linkTarget(value)
		if !ok || !g.Exists(id) {
			return fmt.Errorf("set %s.%s: %w: %v", n.Name(), attr, ErrBadLink, value)
		}
		target = id
	}

	existing, err := g.Connections(dst, host.Inbound)
	if err != nil {
		return fmt.Errorf("set %s.%s: %w", n.Name(), attr, err)
	}
	for _, c := range existing {
		if target != uuid.Nil && c.Src == host.At(target, host.MessageAttr) {
			return nil
		}
		if err := g.Disconnect(c.Src, c.Dst); err != nil {
			return fmt.Errorf("set %s.%s: %w", n.Name(), attr, err)
		}
	}
	if target == uuid.Nil {
		return nil
	}
	if err := g.Connect(host.At(target, host.MessageAttr), dst); err != nil {
		return fmt.Errorf("set %s.%s: %w", n.Name(), attr, err)
	}
	return nil
}

func linkTarget(v any) (uuid.UUID, bool) {
	switch t := v.(type) {
	case uuid.UUID:
		return t, t != uuid.Nil
	case *Node:
		if t == nil {
			return uuid.Nil, false
		}
		return t.id, true
	case Identifier:
		return t.ID(), t.ID() != uuid.Nil
	}
	return uuid.Nil, false
}

// GetString reads a string attribute
func (n *Node) GetString(attr string) (string, error) {
	v, err := n.Get(attr)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%s.%s is %T, not a string", n.Name(), attr, v)
	}
	return s, nil
}

// GetBool reads a bool attribute
func (n *Node) GetBool(attr string) (bool, error) {
	v, err := n.Get(attr)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%s.%s is %T, not a bool", n.Name(), attr, v)
	}
	return b, nil
}

// GetInt reads an int or enum attribute
func (n *Node) GetInt(attr string) (int, error) {
	v, err := n.Get(attr)
	if err != nil {
		return 0, err
	}
	i, ok := v.(int)
	if !ok {
		return 0, fmt.Errorf("%s.%s is %T, not an int", n.Name(), attr, v)
	}
	return i, nil
}

// GetFloat reads a float attribute
func (n *Node) GetFloat(attr string) (float64, error) {
	v, err := n.Get(attr)
	if err != nil {
		return 0, err
	}
	f, ok := v.(float64)
	if !ok {
		return 0, fmt.Errorf("%s.%s is %T, not a float", n.Name(), attr, v)
	}
	return f, nil
}

// GetLink reads a single link; ok is false when nothing is connected
func (n *Node) GetLink(attr string) (id uuid.UUID, ok bool, err error) {
	v, err := n.Get(attr)
	if err != nil {
		return uuid.Nil, false, err
	}
	id, ok = v.(uuid.UUID)
	return id, ok, nil
}

// GetLinks reads a multi link
func (n *Node) GetLinks(attr string) ([]uuid.UUID, error) {
	v, err := n.Get(attr)
	if err != nil {
		return nil, err
	}
	ids, ok := v.([]uuid.UUID)
	if !ok {
		return nil, fmt.Errorf("%s.%s is %T, not a multi link", n.Name(), attr, v)
	}
	return ids, nil
}

package metanode

import (
	"errors"
	"fmt"

	"github.com/conduit-lang/metanode/internal/host"
	"github.com/conduit-lang/metanode/internal/meta/schema"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Node is a metanode instance: a typed view over one host node
type Node struct {
	env *Env
	typ *schema.Type
	id  uuid.UUID
}

var _ schema.Instance = (*Node)(nil)

// Create allocates a host node named name and stamps it as a t.
// Core attributes are written and locked first, then class attributes are
// added. A failure after the node exists deletes it again.
func Create(env *Env, t *schema.Type, name string) (*Node, error) {
	if registered, ok := env.Registry.Resolve(t.Name); !ok || registered != t {
		return nil, fmt.Errorf("create %s: %w: %s", name, ErrInvalidType, t.Name)
	}

	g := env.Graph
	id, err := g.CreateNode(host.NetworkNodeType)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", name, err)
	}

	if err := stamp(g, t, id, name); err != nil {
		if delErr := g.DeleteNode(id); delErr != nil {
			env.Log().Warn("could not discard partially created node",
				zap.String("node", name), zap.Error(delErr))
		}
		return nil, fmt.Errorf("create %s: %w", name, err)
	}

	env.Log().Debug("created metanode", zap.String("node", name), zap.String("type", t.Name))
	return &Node{env: env, typ: t, id: id}, nil
}

func stamp(g host.Graph, t *schema.Type, id uuid.UUID, name string) error {
	if _, err := g.Rename(id, name); err != nil {
		return err
	}

	core := map[string]any{
		schema.AttrMetaType:      t.Name,
		schema.AttrMetaVersion:   t.Version,
		schema.AttrLinealVersion: t.LinealVersion(),
	}
	for _, spec := range schema.CoreAttrs {
		if err := g.AddAttr(id, spec.Name, spec.Options()); err != nil {
			return err
		}
		if err := g.SetAttr(host.At(id, spec.Name), core[spec.Name]); err != nil {
			return err
		}
		if err := g.SetAttrLocked(id, spec.Name, true); err != nil {
			return err
		}
	}

	for _, spec := range t.ClassAttrs() {
		if err := g.AddAttr(id, spec.Name, spec.Options()); err != nil {
			return err
		}
		if spec.Locked {
			if err := g.SetAttrLocked(id, spec.Name, true); err != nil {
				return err
			}
		}
	}
	return nil
}

// Wrap binds an existing node as a t. The node's type tag must be t's name
// or a stale name the relink table maps.
func Wrap(env *Env, t *schema.Type, id uuid.UUID) (*Node, error) {
	tag, err := TypeTag(env.Graph, id)
	if err != nil {
		return nil, err
	}
	if tag == t.Name {
		return &Node{env: env, typ: t, id: id}, nil
	}
	if _, ok := env.RelinkTarget(tag); ok {
		return &Node{env: env, typ: t, id: id}, nil
	}

	name, _ := env.Graph.Name(id)
	if !env.Registry.Exists(tag) {
		return nil, fmt.Errorf("%s has %w %q", name, ErrInvalidType, tag)
	}
	return nil, fmt.Errorf("%s is not of meta type %s, it appears to be %s: %w", name, t.Name, tag, ErrTypeMismatch)
}

// FromNode wraps a node as the type its tag names
func FromNode(env *Env, id uuid.UUID) (*Node, error) {
	tag, err := TypeTag(env.Graph, id)
	if err != nil {
		return nil, err
	}
	t, ok := env.ResolveTag(tag)
	if !ok {
		name, _ := env.Graph.Name(id)
		return nil, fmt.Errorf("%s has %w %q", name, ErrInvalidType, tag)
	}
	return Wrap(env, t, id)
}

// TypeTag reads a node's metaType attribute
func TypeTag(g host.Graph, id uuid.UUID) (string, error) {
	if !g.Exists(id) {
		return "", &host.NodeError{Node: id, Err: host.ErrNodeNotFound}
	}
	if !g.HasAttr(id, schema.AttrMetaType) {
		name, _ := g.Name(id)
		return "", fmt.Errorf("%s: %w", name, ErrNotMetanode)
	}
	v, err := g.GetAttr(host.At(id, schema.AttrMetaType))
	if err != nil {
		return "", err
	}
	tag, _ := v.(string)
	return tag, nil
}

// IsMetanode reports whether a node carries a type tag
func IsMetanode(g host.Graph, id uuid.UUID) bool {
	return g.Exists(id) && g.HasAttr(id, schema.AttrMetaType)
}

// Tagged lists every network node carrying a type tag, in graph order
func Tagged(g host.Graph) []uuid.UUID {
	var ids []uuid.UUID
	for _, id := range g.ListNodes(host.NetworkNodeType) {
		if g.HasAttr(id, schema.AttrMetaType) {
			ids = append(ids, id)
		}
	}
	return ids
}

// Scene wraps every tagged node whose type resolves, in graph order.
// Nodes with unknown tags are skipped.
func Scene(env *Env) []*Node {
	var nodes []*Node
	for _, id := range Tagged(env.Graph) {
		n, err := FromNode(env, id)
		if err != nil {
			continue
		}
		nodes = append(nodes, n)
	}
	return nodes
}

// OfType lists live instances tagged exactly as t, in graph order
func OfType(env *Env, t *schema.Type) []*Node {
	var nodes []*Node
	for _, id := range Tagged(env.Graph) {
		if tag, err := TypeTag(env.Graph, id); err == nil && tag == t.Name {
			nodes = append(nodes, &Node{env: env, typ: t, id: id})
		}
	}
	return nodes
}

// Instance returns the canonical instance of a singleton type: the node
// carrying the type's canonical name, else the first one found. One is
// created when none exists.
func Instance(env *Env, t *schema.Type) (*Node, error) {
	if !t.IsSingleton() {
		return nil, fmt.Errorf("%s is not a singleton type: %w", t.Name, ErrInvalidType)
	}
	nodes := OfType(env, t)
	for _, n := range nodes {
		if n.Name() == t.Canonical() {
			return n, nil
		}
	}
	if len(nodes) > 0 {
		return nodes[0], nil
	}
	return Create(env, t, t.Canonical())
}

// ID returns the host node's UUID
func (n *Node) ID() uuid.UUID {
	return n.id
}

// Type returns the type the node was wrapped as
func (n *Node) Type() *schema.Type {
	return n.typ
}

// Env returns the environment the node belongs to
func (n *Node) Env() *Env {
	return n.env
}

// Exists reports whether the host node is still alive
func (n *Node) Exists() bool {
	return n.env.Graph.Exists(n.id)
}

// Name returns the node's current name, or "" once the node is deleted
func (n *Node) Name() string {
	name, err := n.env.Graph.Name(n.id)
	if err != nil {
		return ""
	}
	return name
}

// Rename renames the host node and returns the name it received
func (n *Node) Rename(name string) (string, error) {
	return n.env.Graph.Rename(n.id, name)
}

// TypeTag reads the node's recorded type name
func (n *Node) TypeTag() (string, error) {
	return TypeTag(n.env.Graph, n.id)
}

// NodeVersion reads the recorded schema version, or -1 when absent
func (n *Node) NodeVersion() int {
	return n.readCoreInt(schema.AttrMetaVersion)
}

// NodeLineal reads the recorded lineal version, or -1 when absent
func (n *Node) NodeLineal() int {
	return n.readCoreInt(schema.AttrLinealVersion)
}

func (n *Node) readCoreInt(attr string) int {
	if !n.env.Graph.HasAttr(n.id, attr) {
		return -1
	}
	v, err := n.env.Graph.GetAttr(host.At(n.id, attr))
	if err != nil {
		return -1
	}
	i, ok := v.(int)
	if !ok {
		return -1
	}
	return i
}

// Delete unlocks and deletes the host node
func (n *Node) Delete() error {
	g := n.env.Graph
	if err := g.LockNode(n.id, false); err != nil {
		return err
	}
	if err := g.DeleteNode(n.id); err != nil && !errors.Is(err, host.ErrNodeNotFound) {
		return err
	}
	return nil
}

// Equal reports whether both instances view the same host node
func (n *Node) Equal(other *Node) bool {
	return other != nil && n.id == other.id
}

func (n *Node) String() string {
	return fmt.Sprintf("%s(%q)", n.typ.Name, n.Name())
}

package rigging

import (
	"errors"
	"fmt"

	"github.com/conduit-lang/metanode/internal/meta/metanode"
	"github.com/conduit-lang/metanode/internal/meta/schema"
	"github.com/google/uuid"
)

// ErrWrongType is returned when a typed view is handed a node of another type
var ErrWrongType = errors.New("wrong metanode type")

func expect(n *metanode.Node, t *schema.Type) error {
	if n == nil || !n.Type().IsA(t) {
		return fmt.Errorf("%w: want %s, got %v", ErrWrongType, t.Name, n)
	}
	return nil
}

// Skeleton is a typed view of a SkeletonType node
type Skeleton struct {
	*metanode.Node
}

// NewSkeleton creates a skeleton node
func NewSkeleton(env *metanode.Env, name string) (*Skeleton, error) {
	n, err := metanode.Create(env, SkeletonType, name)
	if err != nil {
		return nil, err
	}
	return &Skeleton{n}, nil
}

// AsSkeleton views n as a skeleton
func AsSkeleton(n *metanode.Node) (*Skeleton, error) {
	if err := expect(n, SkeletonType); err != nil {
		return nil, err
	}
	return &Skeleton{n}, nil
}

// Root returns the root joint, if one is connected
func (s *Skeleton) Root() (uuid.UUID, bool, error) {
	return s.GetLink(AttrRoot)
}

// SetRoot connects the root joint
func (s *Skeleton) SetRoot(joint uuid.UUID) error {
	return s.Set(AttrRoot, joint)
}

// BindPose returns the stored bind pose document
func (s *Skeleton) BindPose() (string, error) {
	return s.GetString(AttrBindPose)
}

// StoreBindPose saves a serialized pose as the bind pose
func (s *Skeleton) StoreBindPose(pose string) error {
	return s.Set(AttrBindPose, pose)
}

// ZeroPose returns the stored zero pose document
func (s *Skeleton) ZeroPose() (string, error) {
	return s.GetString(AttrZeroPose)
}

// StoreZeroPose saves a serialized pose as the zero pose
func (s *Skeleton) StoreZeroPose(pose string) error {
	return s.Set(AttrZeroPose, pose)
}

// AppendNoBind adds helper joints that are not bound to geometry.
// Joints already listed are not repeated.
func (s *Skeleton) AppendNoBind(joints ...uuid.UUID) error {
	return appendUnique(s.Node, AttrNoBind, joints)
}

// AppendNoExport adds joints left out of export.
// Joints already listed are not repeated.
func (s *Skeleton) AppendNoExport(joints ...uuid.UUID) error {
	return appendUnique(s.Node, AttrNoExport, joints)
}

// Actor is a typed view of an ActorType node
type Actor struct {
	*metanode.Node
}

// NewActor creates an actor node
func NewActor(env *metanode.Env, name string) (*Actor, error) {
	n, err := metanode.Create(env, ActorType, name)
	if err != nil {
		return nil, err
	}
	return &Actor{n}, nil
}

// AsActor views n as an actor
func AsActor(n *metanode.Node) (*Actor, error) {
	if err := expect(n, ActorType); err != nil {
		return nil, err
	}
	return &Actor{n}, nil
}

// Skeleton returns the actor's skeleton, or nil when none is connected
func (a *Actor) Skeleton() (*Skeleton, error) {
	id, ok, err := a.GetLink(AttrSkeleton)
	if err != nil || !ok {
		return nil, err
	}
	n, err := metanode.Wrap(a.Env(), SkeletonType, id)
	if err != nil {
		return nil, err
	}
	return &Skeleton{n}, nil
}

// SetSkeleton connects the actor's skeleton
func (a *Actor) SetSkeleton(s *Skeleton) error {
	if s == nil {
		return a.Set(AttrSkeleton, nil)
	}
	if err := expect(s.Node, SkeletonType); err != nil {
		return err
	}
	return a.Set(AttrSkeleton, s.Node)
}

// ExportMeshes returns the meshes exported with the actor
func (a *Actor) ExportMeshes() ([]uuid.UUID, error) {
	return a.GetLinks(AttrExportMeshes)
}

// SetExportMeshes replaces the meshes exported with the actor
func (a *Actor) SetExportMeshes(meshes []uuid.UUID) error {
	return a.Set(AttrExportMeshes, meshes)
}

// ActiveActor returns the scene's active actor tracker, creating it on first use
func ActiveActor(env *metanode.Env) (*metanode.Node, error) {
	return metanode.Instance(env, ActiveActorType)
}

// GetActiveActor returns the active actor, or nil when none is set
func GetActiveActor(env *metanode.Env) (*Actor, error) {
	tracker, err := ActiveActor(env)
	if err != nil {
		return nil, err
	}
	id, ok, err := tracker.GetLink(AttrActiveActor)
	if err != nil || !ok {
		return nil, err
	}
	n, err := metanode.Wrap(env, ActorType, id)
	if err != nil {
		return nil, err
	}
	return &Actor{n}, nil
}

// SetActiveActor records a as the active actor
func SetActiveActor(env *metanode.Env, a *Actor) error {
	tracker, err := ActiveActor(env)
	if err != nil {
		return err
	}
	if a == nil {
		return tracker.Set(AttrActiveActor, nil)
	}
	return tracker.Set(AttrActiveActor, a.Node)
}

// Rig is a typed view of a RigType node
type Rig struct {
	*metanode.Node
}

// NewRig creates a rig node
func NewRig(env *metanode.Env, name string) (*Rig, error) {
	n, err := metanode.Create(env, RigType, name)
	if err != nil {
		return nil, err
	}
	return &Rig{n}, nil
}

// AsRig views n as a rig
func AsRig(n *metanode.Node) (*Rig, error) {
	if err := expect(n, RigType); err != nil {
		return nil, err
	}
	return &Rig{n}, nil
}

// Components returns the rig's components in the order they were added
func (r *Rig) Components() ([]*Component, error) {
	ids, err := r.GetLinks(AttrRigComponents)
	if err != nil {
		return nil, err
	}
	components := make([]*Component, 0, len(ids))
	for _, id := range ids {
		n, err := metanode.FromNode(r.Env(), id)
		if err != nil {
			return nil, err
		}
		c, err := AsComponent(n)
		if err != nil {
			return nil, err
		}
		components = append(components, c)
	}
	return components, nil
}

// AddComponent lists c on the rig and connects the rig into the
// component's rig attribute. Adding a component twice lists it once.
func (r *Rig) AddComponent(c *Component) error {
	if err := expect(c.Node, ComponentType); err != nil {
		return err
	}
	if err := appendUnique(r.Node, AttrRigComponents, []uuid.UUID{c.ID()}); err != nil {
		return err
	}
	return c.Set(AttrRig, r.Node)
}

// Component is a typed view of a ComponentType node or any subtype
type Component struct {
	*metanode.Node
}

// NewComponent creates a component of type t, which must be ComponentType
// or descend from it
func NewComponent(env *metanode.Env, t *schema.Type, name string) (*Component, error) {
	if !t.IsA(ComponentType) {
		return nil, fmt.Errorf("%w: %s is not a component type", ErrWrongType, t.Name)
	}
	n, err := metanode.Create(env, t, name)
	if err != nil {
		return nil, err
	}
	return &Component{n}, nil
}

// AsComponent views n as a component
func AsComponent(n *metanode.Node) (*Component, error) {
	if err := expect(n, ComponentType); err != nil {
		return nil, err
	}
	return &Component{n}, nil
}

// Rig returns the rig the component belongs to, or nil
func (c *Component) Rig() (*Rig, error) {
	id, ok, err := c.GetLink(AttrRig)
	if err != nil || !ok {
		return nil, err
	}
	n, err := metanode.Wrap(c.Env(), RigType, id)
	if err != nil {
		return nil, err
	}
	return &Rig{n}, nil
}

// Built reports whether the component's controls have been built
func (c *Component) Built() (bool, error) {
	return c.GetBool(AttrBuilt)
}

// SetBuilt records whether the component's controls have been built
func (c *Component) SetBuilt(built bool) error {
	return c.Set(AttrBuilt, built)
}

// Controls returns the component's animation controls
func (c *Component) Controls() ([]uuid.UUID, error) {
	return c.GetLinks(AttrControls)
}

// BindJoints returns the joints the component drives
func (c *Component) BindJoints() ([]uuid.UUID, error) {
	return c.GetLinks(AttrBindJoints)
}

func appendUnique(n *metanode.Node, attr string, add []uuid.UUID) error {
	current, err := n.GetLinks(attr)
	if err != nil {
		return err
	}
	seen := make(map[uuid.UUID]struct{}, len(current)+len(add))
	merged := make([]uuid.UUID, 0, len(current)+len(add))
	for _, id := range append(current, add...) {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		merged = append(merged, id)
	}
	return n.Set(attr, merged)
}

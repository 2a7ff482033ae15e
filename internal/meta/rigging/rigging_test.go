package rigging

import (
	"testing"

	"github.com/conduit-lang/metanode/internal/host"
	"github.com/conduit-lang/metanode/internal/host/memgraph"
	"github.com/conduit-lang/metanode/internal/meta/manager"
	"github.com/conduit-lang/metanode/internal/meta/metanode"
	"github.com/conduit-lang/metanode/internal/meta/schema"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEnv(t *testing.T) (*metanode.Env, *memgraph.Graph) {
	t.Helper()
	registry := schema.NewRegistry()
	require.NoError(t, Register(registry))
	g := memgraph.New()
	return metanode.NewEnv(g, registry), g
}

func joint(t *testing.T, g *memgraph.Graph, name string) uuid.UUID {
	t.Helper()
	id, err := g.CreateNode("joint")
	require.NoError(t, err)
	_, err = g.Rename(id, name)
	require.NoError(t, err)
	return id
}

func TestRegister(t *testing.T) {
	registry := schema.NewRegistry()
	require.NoError(t, Register(registry))
	for _, typ := range Types() {
		assert.True(t, registry.Exists(typ.Name), typ.Name)
	}
	assert.Error(t, Register(registry), "types register once")
}

func TestLinealVersions(t *testing.T) {
	assert.Equal(t, 2, ActorType.LinealVersion())
	assert.Equal(t, 3, ActiveActorType.LinealVersion())
	assert.Equal(t, 3, FKType.LinealVersion())
}

func TestFK_InheritsComponentAttrs(t *testing.T) {
	assert.Equal(t, []string{
		AttrRig, AttrBuilt, AttrSocket, AttrComponentGroup, AttrControls, AttrBindJoints,
		AttrStartJoint, AttrEndJoint,
	}, FKType.ClassAttrs().Names())
	assert.True(t, FKType.IsA(ComponentType))
}

func TestRig_AddComponent(t *testing.T) {
	env, _ := newEnv(t)
	rig, err := NewRig(env, "rig")
	require.NoError(t, err)
	arm, err := NewComponent(env, FKType, "arm")
	require.NoError(t, err)
	leg, err := NewComponent(env, ComponentType, "leg")
	require.NoError(t, err)

	require.NoError(t, rig.AddComponent(arm))
	require.NoError(t, rig.AddComponent(leg))
	require.NoError(t, rig.AddComponent(arm))

	components, err := rig.Components()
	require.NoError(t, err)
	require.Len(t, components, 2)
	assert.True(t, components[0].Equal(arm.Node))
	assert.Equal(t, FKType, components[0].Type())
	assert.True(t, components[1].Equal(leg.Node))

	owner, err := arm.Rig()
	require.NoError(t, err)
	require.NotNil(t, owner)
	assert.True(t, owner.Equal(rig.Node))
}

func TestComponent_Built(t *testing.T) {
	env, _ := newEnv(t)
	c, err := NewComponent(env, ComponentType, "spine")
	require.NoError(t, err)

	built, err := c.Built()
	require.NoError(t, err)
	assert.False(t, built)
	require.NoError(t, c.SetBuilt(true))
	built, _ = c.Built()
	assert.True(t, built)

	_, err = NewComponent(env, RigType, "nope")
	assert.ErrorIs(t, err, ErrWrongType)
}

func TestComponent_OrphanedWithoutRig(t *testing.T) {
	env, _ := newEnv(t)
	rig, err := NewRig(env, "rig")
	require.NoError(t, err)
	kept, err := NewComponent(env, FKType, "arm")
	require.NoError(t, err)
	require.NoError(t, rig.AddComponent(kept))
	stray, err := NewComponent(env, FKType, "stray")
	require.NoError(t, err)

	assert.True(t, FKType.IsOrphaned(stray))
	assert.False(t, FKType.IsOrphaned(kept))

	m := manager.New(env, manager.Config{}, nil)
	log, err := m.Refresh()
	require.NoError(t, err)
	assert.Equal(t, 1, log.Count(manager.ActionDeleteOrphan))
	assert.False(t, stray.Exists())
	assert.True(t, kept.Exists())
}

func TestSkeleton(t *testing.T) {
	env, g := newEnv(t)
	s, err := NewSkeleton(env, "skeleton")
	require.NoError(t, err)
	root := joint(t, g, "root")
	helper := joint(t, g, "helper")

	require.NoError(t, s.SetRoot(root))
	id, ok, err := s.Root()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, root, id)

	pose, err := s.BindPose()
	require.NoError(t, err)
	assert.Equal(t, "", pose)
	require.NoError(t, s.StoreBindPose(`{"root":[0,0,0]}`))
	pose, _ = s.BindPose()
	assert.Equal(t, `{"root":[0,0,0]}`, pose)
	require.NoError(t, s.StoreZeroPose("{}"))
	pose, _ = s.ZeroPose()
	assert.Equal(t, "{}", pose)

	require.NoError(t, s.AppendNoBind(helper))
	require.NoError(t, s.AppendNoBind(helper, root))
	noBind, err := s.GetLinks(AttrNoBind)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{helper, root}, noBind)

	require.NoError(t, s.AppendNoExport(helper))
	noExport, _ := s.GetLinks(AttrNoExport)
	assert.Equal(t, []uuid.UUID{helper}, noExport)
}

func TestActor(t *testing.T) {
	env, g := newEnv(t)
	actor, err := NewActor(env, "hero")
	require.NoError(t, err)

	s, err := actor.Skeleton()
	require.NoError(t, err)
	assert.Nil(t, s)

	skeleton, err := NewSkeleton(env, "heroSkeleton")
	require.NoError(t, err)
	require.NoError(t, actor.SetSkeleton(skeleton))
	s, err = actor.Skeleton()
	require.NoError(t, err)
	assert.True(t, s.Equal(skeleton.Node))

	rig, err := NewRig(env, "rig")
	require.NoError(t, err)
	assert.ErrorIs(t, actor.SetSkeleton(&Skeleton{rig.Node}), ErrWrongType)

	mesh, err := g.CreateNode("mesh")
	require.NoError(t, err)
	require.NoError(t, actor.SetExportMeshes([]uuid.UUID{mesh}))
	meshes, err := actor.ExportMeshes()
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{mesh}, meshes)

	_, err = AsActor(rig.Node)
	assert.ErrorIs(t, err, ErrWrongType)
}

func TestActiveActor(t *testing.T) {
	env, g := newEnv(t)

	active, err := GetActiveActor(env)
	require.NoError(t, err)
	assert.Nil(t, active)

	hero, err := NewActor(env, "hero")
	require.NoError(t, err)
	require.NoError(t, SetActiveActor(env, hero))

	active, err = GetActiveActor(env)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.True(t, active.Equal(hero.Node))

	trackers := metanode.OfType(env, ActiveActorType)
	require.Len(t, trackers, 1)
	assert.Equal(t, "ActiveActor", trackers[0].Name())

	require.NoError(t, SetActiveActor(env, nil))
	conns, err := g.Connections(host.At(trackers[0].ID(), AttrActiveActor), host.Inbound)
	require.NoError(t, err)
	assert.Empty(t, conns)
}

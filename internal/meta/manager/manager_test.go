package manager

import (
	"testing"

	"github.com/conduit-lang/metanode/internal/host"
	"github.com/conduit-lang/metanode/internal/host/memgraph"
	"github.com/conduit-lang/metanode/internal/meta/events"
	"github.com/conduit-lang/metanode/internal/meta/metanode"
	"github.com/conduit-lang/metanode/internal/meta/schema"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	widgetType = schema.NewType("Widget").Attrs(schema.String("label")).Build()
	gadgetType = schema.NewType("Gadget").Build()
	soloType   = schema.NewType("test.Solo").Singleton("").Build()
	childType  = schema.NewType("test.Child").Attrs(schema.Link("parent")).Orphaned(noParent).Build()
	pingType   = schema.NewType("test.Ping").Build()
	pongType   = schema.NewType("test.Pong").Build()

	widgetV2 = schema.NewType("Widget").Version(2).Attrs(schema.String("label"), schema.Int("count")).Build()
)

func noParent(inst schema.Instance) bool {
	v, _ := inst.Get("parent")
	return v == nil
}

func newRegistry() *schema.Registry {
	r := schema.NewRegistry()
	r.MustRegister(widgetType, gadgetType, soloType, childType, pingType, pongType)
	return r
}

func newEnv(t *testing.T) (*metanode.Env, *memgraph.Graph) {
	t.Helper()
	g := memgraph.New()
	return metanode.NewEnv(g, newRegistry()), g
}

func create(t *testing.T, env *metanode.Env, typ *schema.Type, name string) *metanode.Node {
	t.Helper()
	n, err := metanode.Create(env, typ, name)
	require.NoError(t, err)
	return n
}

func retag(t *testing.T, g host.Graph, id uuid.UUID, tag string) {
	t.Helper()
	require.NoError(t, g.SetAttrLocked(id, schema.AttrMetaType, false))
	require.NoError(t, g.SetAttr(host.At(id, schema.AttrMetaType), tag))
	require.NoError(t, g.SetAttrLocked(id, schema.AttrMetaType, true))
}

func names(nodes []*metanode.Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.Name()
	}
	return out
}

func TestIndex(t *testing.T) {
	env, g := newEnv(t)
	create(t, env, widgetType, "w1")
	create(t, env, widgetType, "w2")
	create(t, env, gadgetType, "g1")
	_, err := g.CreateNode(host.NetworkNodeType)
	require.NoError(t, err)

	m := New(env, Config{}, nil)
	assert.Equal(t, 3, m.Index())
	assert.Equal(t, 0, m.Index(), "indexing twice adds nothing")
	assert.Equal(t, []string{"w1", "w2"}, names(m.Instances("Widget")))
	assert.Equal(t, []string{"Gadget", "Widget"}, m.Types())
	assert.Equal(t, []string{"w1", "w2", "g1"}, names(m.All()))

	w3 := create(t, env, widgetType, "w3")
	require.NoError(t, w3.Delete())
	assert.Equal(t, 0, m.Index())
	assert.Equal(t, 3, m.Count())
}

func TestCallbacks_CreateDeferredDeleteSynchronous(t *testing.T) {
	env, g := newEnv(t)
	m := New(env, Config{}, nil)

	base := g.CallbackCount()
	require.True(t, m.RegisterCallbacks())
	assert.False(t, m.RegisterCallbacks())
	assert.Equal(t, base+5, g.CallbackCount())

	first := create(t, env, widgetType, "first")
	second := create(t, env, widgetType, "second")
	third := create(t, env, gadgetType, "third")
	assert.False(t, m.Tracked(first.ID()), "creation is observed on idle")
	assert.Equal(t, 3, m.Pending())

	g.Idle()
	assert.Equal(t, 0, m.Pending())
	assert.Equal(t, []string{"first", "second", "third"}, names(m.All()))

	require.NoError(t, second.Delete())
	assert.False(t, m.Tracked(second.ID()), "deletion is observed immediately")
	assert.True(t, m.Tracked(third.ID()))

	m.UnregisterCallbacks()
	assert.Equal(t, base, g.CallbackCount())
	assert.False(t, m.Registered())
}

func TestCallbacks_CopyAndImport(t *testing.T) {
	env, g := newEnv(t)
	m := New(env, Config{}, nil)
	m.RegisterCallbacks()

	w := create(t, env, widgetType, "w1")
	require.NoError(t, w.Set("label", "copied"))
	g.Idle()

	copyID, err := g.Duplicate(w.ID())
	require.NoError(t, err)
	g.Idle()
	assert.True(t, m.Tracked(copyID), "copies bypass the factory and are caught on idle")

	remap, err := g.Import(g.Snapshot())
	require.NoError(t, err)
	g.Idle()
	for _, id := range remap {
		assert.True(t, m.Tracked(id))
	}
	assert.Len(t, m.Instances("Widget"), 4)
}

func TestRefresh_Singleton(t *testing.T) {
	env, g := newEnv(t)
	m := New(env, Config{}, nil)
	m.RegisterCallbacks()

	solo, err := metanode.Instance(env, soloType)
	require.NoError(t, err)
	extra := create(t, env, soloType, "another")
	copyID, err := g.Duplicate(solo.ID())
	require.NoError(t, err)
	g.Idle()
	require.Len(t, m.Instances("test.Solo"), 3)

	log, err := m.Refresh()
	require.NoError(t, err)
	assert.Equal(t, 2, log.Count(ActionDeleteSingleton))
	assert.False(t, g.Exists(extra.ID()))
	assert.False(t, g.Exists(copyID))
	assert.True(t, g.Exists(solo.ID()), "the node with the canonical name is kept")
	assert.Equal(t, []string{"Solo"}, names(m.Instances("test.Solo")))
	assert.Contains(t, log.String(), "Deleted duplicate singleton Metanode: another")
}

func TestRefresh_SingletonKeepsFirstWithoutCanonical(t *testing.T) {
	env, _ := newEnv(t)
	first := create(t, env, soloType, "one")
	create(t, env, soloType, "two")

	m := New(env, Config{}, nil)
	_, err := m.Refresh()
	require.NoError(t, err)
	assert.Equal(t, []string{"one"}, names(m.Instances("test.Solo")))
	assert.True(t, first.Exists())
}

func TestRefresh_Relink(t *testing.T) {
	env, g := newEnv(t)
	old := create(t, env, widgetType, "legacy")
	retag(t, g, old.ID(), "OldWidget")
	before := len(g.ListNodes(""))

	m := New(env, Config{Relink: map[string]string{"OldWidget": "Widget"}, Check: []string{"Widget"}}, nil)
	log, err := m.Refresh()
	require.NoError(t, err)

	assert.Equal(t, 1, log.Count(ActionRelink))
	assert.Equal(t, 0, log.Count(ActionUpdate), "relinking alone brings the node up to date")
	assert.Equal(t, before, len(g.ListNodes("")), "no node is created")

	tag, err := metanode.TypeTag(g, old.ID())
	require.NoError(t, err)
	assert.Equal(t, "Widget", tag)
	locked, _ := g.AttrLocked(old.ID(), schema.AttrMetaType)
	assert.True(t, locked)
	assert.True(t, m.Tracked(old.ID()))
	assert.Equal(t, "Relinked outdated Metanode: legacy (OldWidget -> Widget)", log[0].String())
}

func TestSetConfig_RelinkAccumulates(t *testing.T) {
	env, _ := newEnv(t)
	m := New(env, Config{Relink: map[string]string{"A": "Widget", "B": "Gadget"}}, nil)

	assert.Equal(t, "Widget", env.Relink["A"])
	assert.Equal(t, "Gadget", env.Relink["B"])
	assert.Len(t, m.Config().Relink, 2)
	assert.Equal(t, DefaultMaxPasses, m.Config().MaxPasses)
}

func TestRefresh_Update(t *testing.T) {
	g := memgraph.New()
	oldEnv := metanode.NewEnv(g, newRegistry())
	stale := create(t, oldEnv, widgetType, "w1")
	require.NoError(t, stale.Set("label", "keep"))

	registry := schema.NewRegistry()
	registry.MustRegister(widgetV2)
	env := metanode.NewEnv(g, registry)
	current := create(t, env, widgetV2, "w2")

	m := New(env, Config{Check: []string{"Widget"}}, nil)
	m.RegisterCallbacks()
	m.Index()

	found := m.Gather()
	assert.Equal(t, []uuid.UUID{stale.ID()}, found.Update, "up-to-date nodes are never selected")

	log, err := m.Repair()
	require.NoError(t, err)
	assert.Equal(t, 1, log.Count(ActionUpdate))
	assert.False(t, g.Exists(stale.ID()))
	g.Idle()

	updated := m.Instances("Widget")
	require.Len(t, updated, 2)
	assert.Equal(t, []string{"w2", "w1"}, names(updated))
	assert.True(t, updated[0].Equal(current))
	assert.Equal(t, 3, updated[1].NodeLineal())
	label, _ := updated[1].GetString("label")
	assert.Equal(t, "keep", label)

	log, err = m.Refresh()
	require.NoError(t, err)
	assert.Empty(t, log)
}

func TestRefresh_Orphaned(t *testing.T) {
	env, _ := newEnv(t)
	parent := create(t, env, widgetType, "parent")
	kept := create(t, env, childType, "kept")
	require.NoError(t, kept.Set("parent", parent))
	lost := create(t, env, childType, "lost")

	m := New(env, Config{}, nil)
	log, err := m.Refresh()
	require.NoError(t, err)
	assert.Equal(t, 1, log.Count(ActionDeleteOrphan))
	assert.False(t, lost.Exists())
	assert.True(t, kept.Exists())

	require.NoError(t, parent.Delete())
	log, err = m.Refresh()
	require.NoError(t, err)
	assert.Equal(t, 1, log.Count(ActionDeleteOrphan))
	assert.False(t, kept.Exists())
	assert.Zero(t, m.Count())
}

func TestRefresh_Deprecated(t *testing.T) {
	env, g := newEnv(t)
	doomed := create(t, env, widgetType, "doomed")
	retag(t, g, doomed.ID(), "Legacy")
	require.NoError(t, g.LockNode(doomed.ID(), true))
	create(t, env, widgetType, "fine")

	m := New(env, Config{Remove: []string{"Legacy"}}, nil)
	log, err := m.Refresh()
	require.NoError(t, err)
	assert.Equal(t, 1, log.Count(ActionDeleteDeprecated))
	assert.False(t, g.Exists(doomed.ID()), "locked nodes are unlocked before deletion")
	assert.Equal(t, 1, m.Count())
	assert.True(t, m.Findings().Empty())
}

func TestRepair_NotConverged(t *testing.T) {
	env, g := newEnv(t)
	create(t, env, pingType, "ping")

	m := New(env, Config{
		Relink:    map[string]string{"test.Ping": "test.Pong", "test.Pong": "test.Ping"},
		MaxPasses: 3,
	}, nil)
	log, err := m.Refresh()
	assert.ErrorIs(t, err, ErrNotConverged)
	assert.Equal(t, 3, log.Count(ActionRelink))
	assert.Len(t, g.ListNodes(""), 1)
}

func TestSceneEvents(t *testing.T) {
	env, g := newEnv(t)
	m := New(env, Config{Remove: []string{"Gadget"}}, nil)
	m.RegisterCallbacks()

	gadget := create(t, env, gadgetType, "gadget")
	g.EmitScene(host.SceneAfterOpen)
	assert.False(t, gadget.Exists(), "opening a scene refreshes it")

	create(t, env, widgetType, "w1")
	g.Idle()
	assert.Equal(t, 1, m.Count())
	g.EmitScene(host.SceneAfterNew)
	assert.Zero(t, m.Count())
	assert.Zero(t, m.Pending())
}

func TestHooks(t *testing.T) {
	env, g := newEnv(t)
	m := New(env, Config{}, nil)
	var tracked, untracked []string
	m.Hooks().Register(HookTracked, func(n *metanode.Node) { tracked = append(tracked, n.Name()) })
	m.Hooks().Register(HookUntracked, func(n *metanode.Node) { untracked = append(untracked, n.Name()) })
	assert.True(t, m.Hooks().HasHooks(HookTracked))
	m.RegisterCallbacks()

	w := create(t, env, widgetType, "w1")
	g.Idle()
	require.NoError(t, w.Delete())

	assert.Equal(t, []string{"w1"}, tracked)
	assert.Equal(t, []string{"w1"}, untracked)
}

func TestBus_FollowsRetag(t *testing.T) {
	env, g := newEnv(t)
	bus := events.NewBus(g, nil)
	m := New(env, Config{}, bus)
	w := create(t, env, widgetType, "w1")
	m.Index()
	assert.True(t, bus.Subscribed(w.ID()))

	retag(t, g, w.ID(), "Gadget")
	assert.Empty(t, m.Instances("Widget"))
	assert.Equal(t, []string{"w1"}, names(m.Instances("Gadget")))

	retag(t, g, w.ID(), "Unknown")
	assert.False(t, m.Tracked(w.ID()))
}

func TestWithoutBus_IndexFollowsRetag(t *testing.T) {
	env, g := newEnv(t)
	m := New(env, Config{}, nil)
	w := create(t, env, widgetType, "w1")
	m.Index()

	retag(t, g, w.ID(), "Gadget")
	assert.Len(t, m.Instances("Widget"), 1, "without a bus the cache catches up on the next index")
	m.Index()
	assert.Empty(t, m.Instances("Widget"))
	assert.Len(t, m.Instances("Gadget"), 1)
}

func TestRepairLog(t *testing.T) {
	log := RepairLog{
		{Action: ActionDeleteOrphan, Node: "a"},
		{Action: ActionUpdate, Node: "b", Err: assert.AnError},
	}
	assert.Len(t, log.Failures(), 1)
	assert.Equal(t, 1, log.Count(ActionDeleteOrphan))
	assert.Equal(t, 0, log.Count(ActionUpdate))
	assert.Equal(t, "Deleted orphaned Metanode: a\nCould not update Metanode b: "+assert.AnError.Error()+"\n", log.String())
}

package scenefile

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/conduit-lang/metanode/internal/host"
	"github.com/conduit-lang/metanode/internal/host/memgraph"
	"github.com/conduit-lang/metanode/internal/meta/manager"
	"github.com/conduit-lang/metanode/internal/meta/metanode"
	"github.com/conduit-lang/metanode/internal/meta/schema"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), ":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// buildScene creates a graph exercising every attribute kind
func buildScene(t *testing.T) *memgraph.Graph {
	t.Helper()
	g := memgraph.New()

	rig, err := g.CreateNode(host.NetworkNodeType)
	require.NoError(t, err)
	_, err = g.Rename(rig, "rig")
	require.NoError(t, err)
	part, err := g.CreateNode("joint")
	require.NoError(t, err)

	attrs := []struct {
		name string
		opts host.AttrOptions
	}{
		{"label", host.AttrOptions{Kind: host.KindString}},
		{"enabled", host.AttrOptions{Kind: host.KindBool, Default: true}},
		{"count", host.AttrOptions{Kind: host.KindInt}},
		{"scale", host.AttrOptions{Kind: host.KindFloat}},
		{"mode", host.AttrOptions{Kind: host.KindEnum, EnumValues: []string{"off", "on"}}},
		{"tags", host.AttrOptions{Kind: host.KindString, Multi: true}},
		{"weights", host.AttrOptions{Kind: host.KindFloat, Multi: true}},
		{"target", host.AttrOptions{Kind: host.KindMessage}},
		{"parts", host.AttrOptions{Kind: host.KindMessage, Multi: true}},
	}
	for _, a := range attrs {
		require.NoError(t, g.AddAttr(rig, a.name, a.opts))
	}
	require.NoError(t, g.SetAttr(host.At(rig, "label"), "hero"))
	require.NoError(t, g.SetAttr(host.At(rig, "count"), 4))
	require.NoError(t, g.SetAttr(host.At(rig, "scale"), 2.0))
	require.NoError(t, g.SetAttr(host.At(rig, "mode"), "on"))
	require.NoError(t, g.SetAttr(host.Element(rig, "tags", 0), "a"))
	require.NoError(t, g.SetAttr(host.Element(rig, "tags", 3), "b"))
	require.NoError(t, g.SetAttr(host.At(rig, "weights"), []float64{0.5, 1}))
	require.NoError(t, g.Connect(host.At(part, host.MessageAttr), host.At(rig, "target")))
	require.NoError(t, g.Connect(host.At(part, host.MessageAttr), host.Element(rig, "parts", 2)))
	require.NoError(t, g.SetAttrLocked(rig, "label", true))
	require.NoError(t, g.LockNode(rig, true))
	return g
}

func TestSaveOpen_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)
	src := buildScene(t)

	require.NoError(t, s.SaveGraph(ctx, src))

	dst := memgraph.New()
	remap, err := s.OpenInto(ctx, dst)
	require.NoError(t, err)
	assert.Len(t, remap, 2)
	for from, to := range remap {
		assert.Equal(t, from, to, "ids survive into an empty graph")
	}
	assert.Equal(t, src.Snapshot(), dst.Snapshot())

	rig, ok := dst.Lookup("rig")
	require.True(t, ok)
	v, err := dst.GetAttr(host.At(rig, "count"))
	require.NoError(t, err)
	assert.Equal(t, 4, v)
	indices, err := dst.MultiIndices(rig, "tags")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 3}, indices)
}

func TestSave_Replaces(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)

	require.NoError(t, s.SaveGraph(ctx, buildScene(t)))
	empty := memgraph.New()
	_, err := empty.CreateNode("only")
	require.NoError(t, err)
	require.NoError(t, s.SaveGraph(ctx, empty))

	snap, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Nodes, 1)
	assert.Equal(t, "only1", snap.Nodes[0].Name)
	assert.Empty(t, snap.Connections)
}

func TestOpenInto_EventOrder(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)
	require.NoError(t, s.SaveGraph(ctx, buildScene(t)))

	g := memgraph.New()
	var events []string
	g.OnNodeAdded("", func(id uuid.UUID) {
		name, _ := g.Name(id)
		events = append(events, "added "+name)
	})
	g.OnScene(host.SceneAfterOpen, func() { events = append(events, "after open") })
	g.OnScene(host.SceneAfterImport, func() { events = append(events, "after import") })

	_, err := s.OpenInto(ctx, g)
	require.NoError(t, err)
	assert.Equal(t, []string{"added rig", "added joint1", "after open"}, events)

	events = nil
	remap, err := s.ImportInto(ctx, g)
	require.NoError(t, err)
	assert.Equal(t, []string{"added rig1", "added joint2", "after import"}, events)
	for from, to := range remap {
		assert.NotEqual(t, from, to)
	}
}

func TestOpenInto_ManagerRefresh(t *testing.T) {
	ctx := context.Background()
	widget := schema.NewType("Widget").Attrs(schema.String("label")).Build()
	registry := schema.NewRegistry()
	registry.MustRegister(widget)

	src := memgraph.New()
	env := metanode.NewEnv(src, registry)
	w, err := metanode.Create(env, widget, "w1")
	require.NoError(t, err)
	require.NoError(t, w.Set("label", "saved"))

	path := filepath.Join(t.TempDir(), "scene.db")
	s, err := Open(ctx, path, nil)
	require.NoError(t, err)
	require.NoError(t, s.SaveGraph(ctx, src))
	require.NoError(t, s.Close())

	dst := memgraph.New()
	m := manager.New(metanode.NewEnv(dst, registry), manager.Config{}, nil)
	m.RegisterCallbacks()

	s, err = Open(ctx, path, nil)
	require.NoError(t, err)
	defer s.Close()
	_, err = s.OpenInto(ctx, dst)
	require.NoError(t, err)

	instances := m.Instances("Widget")
	require.Len(t, instances, 1, "the after-open refresh indexes loaded nodes")
	label, err := instances[0].GetString("label")
	require.NoError(t, err)
	assert.Equal(t, "saved", label)
}

func TestOpen_Errors(t *testing.T) {
	_, err := Open(context.Background(), "", nil)
	assert.Error(t, err)
}

func TestSave_BeginFails(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin().WillReturnError(errors.New("disk full"))

	s := New(db, nil)
	err = s.Save(context.Background(), buildScene(t).Snapshot())
	assert.ErrorContains(t, err, "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSave_RollsBackOnInsertFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM connections").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM attributes").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM nodes").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO nodes").WillReturnError(errors.New("constraint failed"))
	mock.ExpectRollback()

	s := New(db, nil)
	err = s.Save(context.Background(), buildScene(t).Snapshot())
	assert.ErrorContains(t, err, "save scene: node rig: constraint failed")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoad_QueryFails(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT id, name, type, locked FROM nodes").WillReturnError(errors.New("no such table: nodes"))

	s := New(db, nil)
	_, err = s.Load(context.Background())
	assert.ErrorContains(t, err, "no such table")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoad_BadID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT id, name, type, locked FROM nodes").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "type", "locked"}).AddRow("not-a-uuid", "n", "network", false))

	s := New(db, nil)
	_, err = s.Load(context.Background())
	assert.ErrorContains(t, err, "node n")
}

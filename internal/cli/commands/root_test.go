package commands

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/conduit-lang/metanode/internal/host"
	"github.com/conduit-lang/metanode/internal/host/memgraph"
	"github.com/conduit-lang/metanode/internal/host/scenefile"
	"github.com/conduit-lang/metanode/internal/meta/metanode"
	"github.com/conduit-lang/metanode/internal/meta/rigging"
	"github.com/conduit-lang/metanode/internal/meta/schema"
	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixture is a scene on disk with a config pointing at it. The scene holds
// rig1 with component fk1, an orphaned component fk2 and actor1 carrying
// the stale tag rigging.OldActor.
type fixture struct {
	dir    string
	scene  string
	config string
}

func newFixture(t *testing.T, extraConfig string) *fixture {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()
	f := &fixture{
		dir:    dir,
		scene:  filepath.Join(dir, "scene.db"),
		config: filepath.Join(dir, "metanode.yaml"),
	}

	registry, err := newRegistry()
	require.NoError(t, err)
	g := memgraph.New()
	env := metanode.NewEnv(g, registry)

	rig, err := rigging.NewRig(env, "rig1")
	require.NoError(t, err)
	fk, err := rigging.NewComponent(env, rigging.FKType, "fk1")
	require.NoError(t, err)
	require.NoError(t, rig.AddComponent(fk))
	_, err = rigging.NewComponent(env, rigging.FKType, "fk2")
	require.NoError(t, err)
	actor, err := rigging.NewActor(env, "actor1")
	require.NoError(t, err)

	id := actor.ID()
	require.NoError(t, g.SetAttrLocked(id, schema.AttrMetaType, false))
	require.NoError(t, g.SetAttr(host.At(id, schema.AttrMetaType), "rigging.OldActor"))
	require.NoError(t, g.SetAttrLocked(id, schema.AttrMetaType, true))

	store, err := scenefile.Open(ctx, f.scene, nil)
	require.NoError(t, err)
	require.NoError(t, store.SaveGraph(ctx, g))
	require.NoError(t, store.Close())

	f.writeConfig(t, `
manager:
  relink:
    - from: rigging.OldActor
      to: rigging.Actor
`+extraConfig)
	return f
}

func (f *fixture) writeConfig(t *testing.T, manager string) {
	t.Helper()
	content := fmt.Sprintf("log:\n  level: error\nscene:\n  path: %s\n%s", f.scene, manager)
	require.NoError(t, os.WriteFile(f.config, []byte(content), 0o644))
}

// tags loads the saved scene and maps node names to type tags
func (f *fixture) tags(t *testing.T) map[string]string {
	t.Helper()
	ctx := context.Background()
	store, err := scenefile.Open(ctx, f.scene, nil)
	require.NoError(t, err)
	defer store.Close()

	g := memgraph.New()
	_, err = store.OpenInto(ctx, g)
	require.NoError(t, err)

	out := make(map[string]string)
	for _, id := range metanode.Tagged(g) {
		name, err := g.Name(id)
		require.NoError(t, err)
		tag, err := metanode.TypeTag(g, id)
		require.NoError(t, err)
		out[name] = tag
	}
	return out
}

type result struct {
	stdout string
	stderr string
}

func (f *fixture) run(t *testing.T, opts *Options, args ...string) (result, error) {
	t.Helper()
	if opts == nil {
		opts = &Options{Confirm: func(string) (bool, error) {
			t.Fatal("unexpected confirmation prompt")
			return false, nil
		}}
	}
	cmd := newRootCommand(opts)
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", f.config, "--no-color"}, args...))
	err := cmd.ExecuteContext(context.Background())
	return result{stdout: stdout.String(), stderr: stderr.String()}, err
}

// syncBuffer is a bytes.Buffer safe for the watcher goroutine
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestNewRootCommand(t *testing.T) {
	cmd := NewRootCommand()

	assert.Equal(t, "metanode", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
	assert.NotEmpty(t, cmd.Long)

	var registered []string
	for _, sub := range cmd.Commands() {
		registered = append(registered, sub.Name())
	}
	for _, name := range []string{"version", "ls", "refresh", "export", "import", "watch"} {
		assert.Contains(t, registered, name)
	}

	for _, flag := range []string{"config", "scene", "no-color"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(flag), flag)
	}
}

func TestVersionCommand(t *testing.T) {
	color.NoColor = true
	Version = "1.0.0-test"
	GitCommit = "abc123"
	defer func() { Version, GitCommit = "dev", "unknown" }()

	cmd := NewVersionCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetArgs(nil)
	require.NoError(t, cmd.Execute())

	assert.Contains(t, buf.String(), "metanode version: 1.0.0-test")
	assert.Contains(t, buf.String(), "Git commit: abc123")
}

func TestSceneFlagOverridesConfig(t *testing.T) {
	f := newFixture(t, "")
	other := filepath.Join(t.TempDir(), "empty.db")

	res, err := f.run(t, nil, "--scene", other, "ls")
	require.NoError(t, err)
	assert.NotContains(t, res.stdout, "rig1")
	assert.FileExists(t, other)
}

func TestConfigErrors(t *testing.T) {
	f := newFixture(t, "")
	f.writeConfig(t, "manager:\n  max_passes: -2\n")

	_, err := f.run(t, nil, "ls")
	assert.Error(t, err)
}

func mustLookup(t *testing.T, s *session, name string) uuid.UUID {
	t.Helper()
	id, ok := s.graph.Lookup(name)
	require.True(t, ok, name)
	return id
}

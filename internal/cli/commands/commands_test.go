package commands

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/conduit-lang/metanode/internal/config"
	"github.com/conduit-lang/metanode/internal/meta/codec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLs(t *testing.T) {
	f := newFixture(t, "")

	res, err := f.run(t, nil, "ls")
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`rig1\s+rigging\.Rig\s+rigging\.Rig\s+\S+\s+\S+\s+ok`), res.stdout)
	assert.Regexp(t, regexp.MustCompile(`fk1\s+rigging\.FK\s+rigging\.FK\s+\S+\s+\S+\s+ok`), res.stdout)
	assert.Regexp(t, regexp.MustCompile(`fk2\s+rigging\.FK\s+rigging\.FK\s+\S+\s+\S+\s+orphaned`), res.stdout)
	assert.Regexp(t, regexp.MustCompile(`actor1\s+rigging\.Actor\s+rigging\.OldActor\s+\S+\s+\S+\s+relink`), res.stdout)
}

func TestLs_Unregistered(t *testing.T) {
	f := newFixture(t, "")
	f.writeConfig(t, "")

	res, err := f.run(t, nil, "ls")
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`actor1\s+rigging\.OldActor\s+unregistered`), res.stdout)
}

func TestLs_Type(t *testing.T) {
	f := newFixture(t, "")

	res, err := f.run(t, nil, "ls", "--type", "rigging.FK")
	require.NoError(t, err)
	assert.Contains(t, res.stdout, "fk1")
	assert.Contains(t, res.stdout, "fk2")
	assert.NotContains(t, res.stdout, "rig1")
	assert.NotContains(t, res.stdout, "actor1")

	res, err = f.run(t, nil, "ls", "--type", "rigging.Actr")
	assert.ErrorIs(t, err, ErrUnknownType)
	assert.Contains(t, res.stdout, "Did you mean: rigging.Actor?")
}

func TestLs_Types(t *testing.T) {
	f := newFixture(t, "")

	res, err := f.run(t, nil, "ls", "--types")
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`rigging\.FK\s+\d+\s+3\s+rigging\.Component\s+no`), res.stdout)
	assert.Regexp(t, regexp.MustCompile(`rigging\.ActiveActor\s+\d+\s+3\s+\S+\s+yes`), res.stdout)
}

func TestRefresh_DryRun(t *testing.T) {
	f := newFixture(t, "")

	res, err := f.run(t, nil, "refresh", "--dry-run")
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`relink\s+actor1`), res.stdout)
	assert.Regexp(t, regexp.MustCompile(`delete orphan\s+fk2`), res.stdout)

	assert.Equal(t, map[string]string{
		"rig1":   "rigging.Rig",
		"fk1":    "rigging.FK",
		"fk2":    "rigging.FK",
		"actor1": "rigging.OldActor",
	}, f.tags(t))
}

func TestRefresh_Declined(t *testing.T) {
	f := newFixture(t, "")

	var asked string
	opts := &Options{Confirm: func(message string) (bool, error) {
		asked = message
		return false, nil
	}}
	_, err := f.run(t, opts, "refresh")
	assert.ErrorIs(t, err, ErrAborted)
	assert.Equal(t, "Repair 2 metanodes in "+f.scene+"?", asked)
	assert.Equal(t, "rigging.OldActor", f.tags(t)["actor1"])
}

func TestRefresh_Confirmed(t *testing.T) {
	f := newFixture(t, "")

	opts := &Options{Confirm: func(string) (bool, error) { return true, nil }}
	res, err := f.run(t, opts, "refresh")
	require.NoError(t, err)

	assert.Contains(t, res.stdout, "✓ Relinked outdated Metanode: actor1 (rigging.OldActor -> rigging.Actor)\n")
	assert.Contains(t, res.stdout, "✓ Deleted orphaned Metanode: fk2\n")
	assert.Contains(t, res.stdout, "2 repairs, 0 failed\n")
	assert.Contains(t, res.stdout, "✓ Saved "+f.scene)

	assert.Equal(t, map[string]string{
		"rig1":   "rigging.Rig",
		"fk1":    "rigging.FK",
		"actor1": "rigging.Actor",
	}, f.tags(t))

	res, err = f.run(t, nil, "refresh", "--yes")
	require.NoError(t, err)
	assert.Equal(t, "✓ Scene is up to date\n", res.stdout)
}

func TestRefresh_Deprecated(t *testing.T) {
	f := newFixture(t, "  remove: [rigging.Rig]\n")

	_, err := f.run(t, nil, "refresh", "--yes")
	require.NoError(t, err)

	tags := f.tags(t)
	assert.NotContains(t, tags, "rig1")
	assert.NotContains(t, tags, "fk1", "fk1 loses its rig and is orphaned")
}

func TestExport(t *testing.T) {
	f := newFixture(t, "")

	res, err := f.run(t, nil, "export", "rig1", "--format", "yaml")
	require.NoError(t, err)
	records, err := codec.Decode(codec.FormatYAML, []byte(res.stdout))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "rig1", records[0].Name)
	assert.Equal(t, "rigging.Rig", records[0].Type)
	components, ok := records[0].Attr("rigComponents")
	require.True(t, ok)
	assert.Equal(t, []any{"fk1"}, components.Value)

	res, err = f.run(t, nil, "export")
	require.NoError(t, err)
	records, err = codec.Decode(codec.FormatJSON, []byte(res.stdout))
	require.NoError(t, err)
	var names []string
	for _, rec := range records {
		names = append(names, rec.Name)
	}
	assert.ElementsMatch(t, []string{"rig1", "fk1", "fk2", "actor1"}, names)
}

func TestExport_File(t *testing.T) {
	f := newFixture(t, "")
	out := filepath.Join(f.dir, "fk1.json")

	res, err := f.run(t, nil, "export", "fk1", "--out", out)
	require.NoError(t, err)
	assert.Empty(t, res.stdout)
	assert.Contains(t, res.stderr, "Wrote 1 records to "+out)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	records, err := codec.Decode(codec.FormatJSON, data)
	require.NoError(t, err)
	rig, ok := records[0].Attr("rig")
	require.True(t, ok)
	assert.Equal(t, "rig1", rig.Value)
}

func TestExport_Errors(t *testing.T) {
	f := newFixture(t, "")

	res, err := f.run(t, nil, "export", "rgi1")
	require.Error(t, err)
	assert.Contains(t, res.stderr, "NODE NOT FOUND: rgi1")
	assert.Contains(t, res.stderr, "Did you mean: rig1")

	_, err = f.run(t, nil, "export", "--format", "xml")
	assert.Error(t, err)
}

func TestImport_File(t *testing.T) {
	f := newFixture(t, "")
	out := filepath.Join(f.dir, "fk1.yaml")

	_, err := f.run(t, nil, "export", "fk1", "--format", "yaml", "--out", out)
	require.NoError(t, err)

	res, err := f.run(t, nil, "import", out)
	require.NoError(t, err)
	assert.Contains(t, res.stdout, "✓ Imported fk1 as rigging.FK(")

	count := 0
	for _, tag := range f.tags(t) {
		if tag == "rigging.FK" {
			count++
		}
	}
	assert.Equal(t, 3, count)
}

func TestImport_Target(t *testing.T) {
	f := newFixture(t, "")
	out := filepath.Join(f.dir, "fk1.json")

	_, err := f.run(t, nil, "export", "fk1", "--out", out)
	require.NoError(t, err)

	_, err = f.run(t, nil, "import", out, "--target", "fk2", "--keep-name")
	require.NoError(t, err)

	res, err := f.run(t, nil, "refresh", "--dry-run")
	require.NoError(t, err)
	assert.NotContains(t, res.stdout, "fk2", "fk2 has a rig now")
	assert.Contains(t, res.stdout, "actor1")
}

func TestImport_Dangling(t *testing.T) {
	f := newFixture(t, "")
	out := filepath.Join(f.dir, "rig1.json")

	_, err := f.run(t, nil, "export", "rig1", "--out", out)
	require.NoError(t, err)

	other := filepath.Join(t.TempDir(), "other.db")
	res, err := f.run(t, nil, "--scene", other, "import", out)
	require.NoError(t, err)
	assert.Contains(t, res.stdout, "rigComponents[0] references missing node fk1")
}

func TestImport_Stash(t *testing.T) {
	mr := miniredis.RunT(t)
	f := newFixture(t, "records:\n  redis_addr: "+mr.Addr()+"\n")

	res, err := f.run(t, nil, "export", "fk1", "--stash", "--ttl", "1m")
	require.NoError(t, err)
	assert.Contains(t, res.stderr, "Stashed 1 records")
	assert.True(t, mr.Exists("metanode:fk1"))
	assert.Equal(t, time.Minute, mr.TTL("metanode:fk1"))

	res, err = f.run(t, nil, "import", "--from-stash", "fk1", "--target", "fk2")
	require.NoError(t, err)
	assert.Contains(t, res.stdout, "✓ Imported fk1 as rigging.FK(")

	_, err = f.run(t, nil, "import", "--from-stash", "nothing")
	assert.Error(t, err)
}

func TestImport_Errors(t *testing.T) {
	f := newFixture(t, "")

	_, err := f.run(t, nil, "import")
	assert.Error(t, err)

	bad := filepath.Join(f.dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"name":"x","type":"rigging.Actr","version":{"schema":1,"lineal":2},"attrs":[],"dynamic":[]}`), 0o644))
	res, err := f.run(t, nil, "import", bad)
	assert.ErrorIs(t, err, codec.ErrUnregisteredType)
	assert.Contains(t, res.stdout, "Did you mean: rigging.Actor?")

	all := filepath.Join(f.dir, "all.json")
	_, err = f.run(t, nil, "export", "--out", all)
	require.NoError(t, err)
	_, err = f.run(t, nil, "import", all, "--target", "fk2")
	assert.ErrorContains(t, err, "--target needs exactly one record")
}

func TestWatch_RequiresConfigFile(t *testing.T) {
	dir := t.TempDir()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(old) })

	cmd := newRootCommand(&Options{})
	cmd.SetOut(&syncBuffer{})
	cmd.SetArgs([]string{"watch"})
	err = cmd.ExecuteContext(context.Background())
	assert.ErrorIs(t, err, config.ErrNoFile)
}

func TestWatch_Reload(t *testing.T) {
	f := newFixture(t, "")
	f.writeConfig(t, "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := &syncBuffer{}
	cmd := newRootCommand(&Options{})
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs([]string{"--config", f.config, "--no-color", "watch"})

	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	require.Eventually(t, func() bool {
		return regexp.MustCompile(`Watching .* for `).MatchString(out.String())
	}, 5*time.Second, 20*time.Millisecond)
	assert.Contains(t, out.String(), "Deleted orphaned Metanode: fk2")

	f.writeConfig(t, "manager:\n  relink:\n    - from: rigging.OldActor\n      to: rigging.Actor\n")

	require.Eventually(t, func() bool {
		return regexp.MustCompile(`Relinked outdated Metanode: actor1`).MatchString(out.String())
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}

	assert.Equal(t, "rigging.Actor", f.tags(t)["actor1"])
}

func TestReloader_ReportsRepairs(t *testing.T) {
	f := newFixture(t, "")
	f.writeConfig(t, "")

	cfg, err := config.Load(f.config)
	require.NoError(t, err)
	out := &syncBuffer{}
	opts := &Options{NoColor: true}
	s, err := openSessionWith(context.Background(), cfg, opts, out)
	require.NoError(t, err)
	defer s.Close()

	rw := newReloader(context.Background(), s, opts)
	assert.False(t, s.manager.Tracked(mustLookup(t, s, "actor1")))

	cfg.Manager.Relink = []config.RelinkRule{{From: "rigging.OldActor", To: "rigging.Actor"}}
	rw.reload(cfg)

	assert.Contains(t, out.String(), "✓ Relinked outdated Metanode: actor1 (rigging.OldActor -> rigging.Actor)")
	assert.True(t, s.manager.Tracked(mustLookup(t, s, "actor1")))
}

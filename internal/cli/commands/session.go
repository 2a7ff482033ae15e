package commands

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/conduit-lang/metanode/internal/cli/ui"
	"github.com/conduit-lang/metanode/internal/config"
	"github.com/conduit-lang/metanode/internal/host/memgraph"
	"github.com/conduit-lang/metanode/internal/host/scenefile"
	"github.com/conduit-lang/metanode/internal/meta/events"
	"github.com/conduit-lang/metanode/internal/meta/manager"
	"github.com/conduit-lang/metanode/internal/meta/metanode"
	"github.com/conduit-lang/metanode/internal/meta/recordstore"
	"github.com/conduit-lang/metanode/internal/meta/rigging"
	"github.com/conduit-lang/metanode/internal/meta/schema"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// session is one loaded scene with the metanode runtime attached
type session struct {
	cfg     *config.Config
	logger  *zap.Logger
	graph   *memgraph.Graph
	env     *metanode.Env
	bus     *events.Bus
	manager *manager.Manager
	store   *scenefile.Store
	out     io.Writer
	noColor bool
}

// loadConfig reads the config file and applies the command line overrides
func loadConfig(opts *Options) (*config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if opts.ScenePath != "" {
		cfg.Scene.Path = opts.ScenePath
	}
	return cfg, nil
}

func newRegistry() (*schema.Registry, error) {
	registry := schema.NewRegistry()
	if err := rigging.Register(registry); err != nil {
		return nil, err
	}
	return registry, nil
}

// openSession loads the configured scene and indexes its metanodes. The
// manager's host callbacks are left unregistered; commands decide when to
// repair.
func openSession(ctx context.Context, opts *Options, out io.Writer) (*session, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	return openSessionWith(ctx, cfg, opts, out)
}

func openSessionWith(ctx context.Context, cfg *config.Config, opts *Options, out io.Writer) (*session, error) {
	logger, err := cfg.Logger()
	if err != nil {
		return nil, err
	}
	registry, err := newRegistry()
	if err != nil {
		return nil, err
	}

	g := memgraph.New()
	env := metanode.NewEnv(g, registry)
	env.Logger = logger
	bus := events.NewBus(g, logger)

	s := &session{
		cfg:     cfg,
		logger:  logger,
		graph:   g,
		env:     env,
		bus:     bus,
		manager: manager.New(env, cfg.ToManager(), bus),
		out:     out,
		noColor: opts.NoColor,
	}

	s.store, err = scenefile.Open(ctx, cfg.Scene.Path, logger)
	if err != nil {
		bus.Close()
		return nil, err
	}
	if _, err := s.store.OpenInto(ctx, g); err != nil {
		s.Close()
		return nil, err
	}
	s.manager.Index()
	return s, nil
}

func (s *session) save(ctx context.Context) error {
	if err := s.store.SaveGraph(ctx, s.graph); err != nil {
		return err
	}
	ui.WriteSuccess(s.out, fmt.Sprintf("Saved %s", s.cfg.Scene.Path), s.noColor)
	return nil
}

// Close releases the scene file and the event bus
func (s *session) Close() error {
	s.bus.Close()
	_ = s.logger.Sync()
	return s.store.Close()
}

// nodeName returns the scene name of id, or the id itself when the node
// is gone
func (s *session) nodeName(id uuid.UUID) string {
	name, err := s.graph.Name(id)
	if err != nil {
		return id.String()
	}
	return name
}

// lookup finds a metanode by scene name
func (s *session) lookup(name string) (*metanode.Node, error) {
	id, ok := s.graph.Lookup(name)
	if !ok {
		return nil, s.nodeNotFound(name)
	}
	n, err := metanode.FromNode(s.env, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return n, nil
}

func (s *session) nodeNotFound(name string) error {
	var scene []string
	for _, n := range s.manager.All() {
		scene = append(scene, n.Name())
	}
	ui.NodeNotFound(name, scene, s.noColor).Write(s.out)
	return fmt.Errorf("no node named %s", name)
}

// openRecords opens the configured record store, warning when it is the
// in-process memory store that does not outlive the command
func openRecords(ctx context.Context, s *session) (recordstore.Store, error) {
	if s.cfg.Records.RedisAddr == "" {
		ui.WriteWarning(s.out, "records.redis_addr is not set; stashed records last only for this command", s.noColor)
	}
	return s.cfg.OpenRecords(ctx)
}

func closeRecords(store recordstore.Store) {
	if c, ok := store.(io.Closer); ok {
		c.Close()
	}
}

// ErrUnknownType is returned when a command names an unregistered type
var ErrUnknownType = errors.New("unknown metanode type")

// ErrAborted is returned when the user declines a confirmation
var ErrAborted = errors.New("aborted")

func errUnknownType(name string) error {
	return fmt.Errorf("%w: %s", ErrUnknownType, name)
}

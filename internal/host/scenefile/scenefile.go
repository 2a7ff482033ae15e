// Package scenefile saves in-memory host graphs to SQLite scene files and
// loads them back.
//
// Attribute values are stored as JSON text. Loading a scene replays it
// through memgraph.Import, so node-added callbacks fire for every node and
// the after-open (or after-import) scene event fires once all of them exist,
// the same sequence the host application produces when it opens a file.
package scenefile

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	"github.com/conduit-lang/metanode/internal/host"
	"github.com/conduit-lang/metanode/internal/host/memgraph"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

//go:embed schema.sql
var schemaSQL string

// Store reads and writes one scene database
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open opens or creates the scene file at path and ensures its tables exist
func Open(ctx context.Context, path string, logger *zap.Logger) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("open scene: path is required")
	}
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open scene %s: %w", path, err)
	}
	// an in-memory database lives on a single connection
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("open scene %s: %w", path, err)
	}
	s := New(db, logger)
	if err := s.Init(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open database. Call Init before the first Save on a new
// database.
func New(db *sql.DB, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, logger: logger}
}

// Init creates the scene tables when they do not exist
func (s *Store) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("init scene schema: %w", err)
	}
	return nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// Save replaces the stored scene with snap in one transaction
func (s *Store) Save(ctx context.Context, snap memgraph.Snapshot) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save scene: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				s.logger.Warn("scene rollback failed", zap.Error(rbErr))
			}
		}
	}()

	for _, table := range []string{"connections", "attributes", "nodes"} {
		if _, err = tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("save scene: clear %s: %w", table, err)
		}
	}

	for i, n := range snap.Nodes {
		if err = insertNode(ctx, tx, i, n); err != nil {
			return fmt.Errorf("save scene: node %s: %w", n.Name, err)
		}
	}
	for i, c := range snap.Connections {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO connections (position, src_node, src_attr, src_index, dst_node, dst_attr, dst_index)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			i, c.Src.Node.String(), c.Src.Attr, c.Src.Index, c.Dst.Node.String(), c.Dst.Attr, c.Dst.Index)
		if err != nil {
			return fmt.Errorf("save scene: connection %d: %w", i, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("save scene: %w", err)
	}
	s.logger.Debug("scene saved",
		zap.Int("nodes", len(snap.Nodes)), zap.Int("connections", len(snap.Connections)))
	return nil
}

func insertNode(ctx context.Context, tx *sql.Tx, position int, n memgraph.NodeSnapshot) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO nodes (id, position, name, type, locked) VALUES (?, ?, ?, ?, ?)`,
		n.ID.String(), position, n.Name, n.Type, n.Locked)
	if err != nil {
		return err
	}
	for i, a := range n.Attrs {
		row, err := encodeAttr(a)
		if err != nil {
			return fmt.Errorf("attribute %s: %w", a.Name, err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO attributes (node_id, position, name, kind, multi, hidden, locked, enum_values, default_val, value, elements)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			n.ID.String(), i, a.Name, row.kind, a.Options.Multi, a.Options.Hidden, a.Locked,
			row.enumValues, row.defaultValue, row.value, row.elements)
		if err != nil {
			return fmt.Errorf("attribute %s: %w", a.Name, err)
		}
	}
	return nil
}

// Load reads the stored scene
func (s *Store) Load(ctx context.Context) (memgraph.Snapshot, error) {
	var snap memgraph.Snapshot

	rows, err := s.db.QueryContext(ctx, `SELECT id, name, type, locked FROM nodes ORDER BY position`)
	if err != nil {
		return snap, fmt.Errorf("load scene: %w", err)
	}
	index := make(map[uuid.UUID]int)
	for rows.Next() {
		var (
			id string
			n  memgraph.NodeSnapshot
		)
		if err := rows.Scan(&id, &n.Name, &n.Type, &n.Locked); err != nil {
			rows.Close()
			return snap, fmt.Errorf("load scene: %w", err)
		}
		if n.ID, err = uuid.Parse(id); err != nil {
			rows.Close()
			return snap, fmt.Errorf("load scene: node %s: %w", n.Name, err)
		}
		index[n.ID] = len(snap.Nodes)
		snap.Nodes = append(snap.Nodes, n)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return snap, fmt.Errorf("load scene: %w", err)
	}

	if err := s.loadAttrs(ctx, &snap, index); err != nil {
		return snap, err
	}
	if err := s.loadConnections(ctx, &snap); err != nil {
		return snap, err
	}
	return snap, nil
}

func (s *Store) loadAttrs(ctx context.Context, snap *memgraph.Snapshot, index map[uuid.UUID]int) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT node_id, name, kind, multi, hidden, locked, enum_values, default_val, value, elements
		 FROM attributes ORDER BY node_id, position`)
	if err != nil {
		return fmt.Errorf("load scene attributes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			nodeID string
			row    attrRow
			a      memgraph.AttrSnapshot
		)
		if err := rows.Scan(&nodeID, &a.Name, &row.kind, &a.Options.Multi, &a.Options.Hidden, &a.Locked,
			&row.enumValues, &row.defaultValue, &row.value, &row.elements); err != nil {
			return fmt.Errorf("load scene attributes: %w", err)
		}
		id, err := uuid.Parse(nodeID)
		if err != nil {
			return fmt.Errorf("load scene attributes: %w", err)
		}
		i, ok := index[id]
		if !ok {
			s.logger.Warn("attribute of unknown node skipped", zap.String("node", nodeID), zap.String("attr", a.Name))
			continue
		}
		if err := row.decode(&a); err != nil {
			return fmt.Errorf("load scene attribute %s.%s: %w", snap.Nodes[i].Name, a.Name, err)
		}
		snap.Nodes[i].Attrs = append(snap.Nodes[i].Attrs, a)
	}
	return rows.Err()
}

func (s *Store) loadConnections(ctx context.Context, snap *memgraph.Snapshot) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT src_node, src_attr, src_index, dst_node, dst_attr, dst_index FROM connections ORDER BY position`)
	if err != nil {
		return fmt.Errorf("load scene connections: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			src, dst string
			c        host.Connection
		)
		if err := rows.Scan(&src, &c.Src.Attr, &c.Src.Index, &dst, &c.Dst.Attr, &c.Dst.Index); err != nil {
			return fmt.Errorf("load scene connections: %w", err)
		}
		if c.Src.Node, err = uuid.Parse(src); err != nil {
			return fmt.Errorf("load scene connections: %w", err)
		}
		if c.Dst.Node, err = uuid.Parse(dst); err != nil {
			return fmt.Errorf("load scene connections: %w", err)
		}
		snap.Connections = append(snap.Connections, c)
	}
	return rows.Err()
}

// SaveGraph saves the current contents of g
func (s *Store) SaveGraph(ctx context.Context, g *memgraph.Graph) error {
	return s.Save(ctx, g.Snapshot())
}

// OpenInto loads the scene into g and fires the after-open scene event.
// It returns the ids the stored nodes received in g.
func (s *Store) OpenInto(ctx context.Context, g *memgraph.Graph) (map[uuid.UUID]uuid.UUID, error) {
	return s.loadInto(ctx, g, host.SceneAfterOpen)
}

// ImportInto loads the scene into g alongside its current contents and
// fires the after-import scene event
func (s *Store) ImportInto(ctx context.Context, g *memgraph.Graph) (map[uuid.UUID]uuid.UUID, error) {
	return s.loadInto(ctx, g, host.SceneAfterImport)
}

func (s *Store) loadInto(ctx context.Context, g *memgraph.Graph, event host.SceneEvent) (map[uuid.UUID]uuid.UUID, error) {
	snap, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	remap, err := g.Import(snap)
	if err != nil {
		return remap, fmt.Errorf("load scene: %w", err)
	}
	s.logger.Debug("scene loaded", zap.Int("nodes", len(remap)), zap.Stringer("event", event))
	g.EmitScene(event)
	return remap, nil
}

// Package metanode binds metanode types to live host nodes.
//
// A Node is a view over one host node: it holds the node's UUID and the
// type it was wrapped as, and reads everything else from the graph on each
// call. Attribute access goes through the type's schema, which decides how
// host values are marshalled to Go values and back.
package metanode

import (
	"github.com/conduit-lang/metanode/internal/host"
	"github.com/conduit-lang/metanode/internal/meta/schema"
	"go.uber.org/zap"
)

// Env is the process state shared by the metanode runtime: the host graph,
// the type registry, the type relink table and the logger.
type Env struct {
	Graph    host.Graph
	Registry *schema.Registry
	Relink   map[string]string
	Logger   *zap.Logger
}

// NewEnv creates an environment with an empty relink table and a no-op logger
func NewEnv(graph host.Graph, registry *schema.Registry) *Env {
	return &Env{
		Graph:    graph,
		Registry: registry,
		Relink:   make(map[string]string),
		Logger:   zap.NewNop(),
	}
}

// Log returns the environment logger, never nil
func (e *Env) Log() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}

// RelinkTarget returns the type a stale type tag maps to
func (e *Env) RelinkTarget(tag string) (string, bool) {
	target, ok := e.Relink[tag]
	return target, ok
}

// ResolveTag resolves a type tag to a registered type, following the relink
// table for stale tags
func (e *Env) ResolveTag(tag string) (*schema.Type, bool) {
	if t, ok := e.Registry.Resolve(tag); ok {
		return t, true
	}
	if target, ok := e.RelinkTarget(tag); ok {
		return e.Registry.Resolve(target)
	}
	return nil, false
}

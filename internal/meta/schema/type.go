// Package schema describes metanode types: their attribute schemas, their
// lineage and the registry that maps type names to descriptors.
//
// Types are plain values linked to their parent by an explicit pointer. A
// type's effective class attributes are the ordered union of its ancestors'
// attribute sets and its own, and its lineal version is the sum of the
// declared versions along the chain. Both are computed by walking Parent.
package schema

import (
	"strings"
)

// Instance is the view of a live metanode that type predicates receive
type Instance interface {
	Name() string
	Get(attr string) (any, error)
}

// Type describes a metanode type.
//
// A Type must not be modified after it is registered.
type Type struct {
	// Name is the fully-qualified type name stamped into metaType
	Name string

	// Version is this type's own schema version
	Version int

	// Parent is the type this one extends; nil only for the base type
	Parent *Type

	// Attrs are the class attributes this type adds or overrides
	Attrs AttrSet

	// Dynamic are attributes that are serialized but not created with the node
	Dynamic AttrSet

	// Singleton restricts the type to one live instance per scene
	Singleton bool

	// CanonicalName is the preferred node name of a singleton instance.
	// Defaults to the last segment of Name.
	CanonicalName string

	// Orphaned flags instances that are safe to delete
	Orphaned func(Instance) bool
}

// Base is the root of every metanode lineage
var Base = &Type{
	Name:    "meta.core.Metanode",
	Version: 1,
}

// SingletonBase is the root of every singleton lineage
var SingletonBase = &Type{
	Name:      "meta.core.SingletonMetanode",
	Version:   1,
	Parent:    Base,
	Singleton: true,
}

// Lineage returns the type followed by its ancestors, nearest first
func (t *Type) Lineage() []*Type {
	var chain []*Type
	for cur := t; cur != nil; cur = cur.Parent {
		chain = append(chain, cur)
	}
	return chain
}

// LinealVersion is the sum of declared versions along the lineage
func (t *Type) LinealVersion() int {
	total := 0
	for cur := t; cur != nil; cur = cur.Parent {
		total += cur.Version
	}
	return total
}

// ClassAttrs returns the effective class attributes, ancestors first
func (t *Type) ClassAttrs() AttrSet {
	return t.mergeUp(func(cur *Type) AttrSet { return cur.Attrs })
}

// DynamicAttrs returns the effective dynamic attributes, ancestors first
func (t *Type) DynamicAttrs() AttrSet {
	return t.mergeUp(func(cur *Type) AttrSet { return cur.Dynamic })
}

func (t *Type) mergeUp(pick func(*Type) AttrSet) AttrSet {
	chain := t.Lineage()
	sets := make([]AttrSet, 0, len(chain))
	for i := len(chain) - 1; i >= 0; i-- {
		sets = append(sets, pick(chain[i]))
	}
	return Merge(sets...)
}

// Attr looks up a class attribute, then a dynamic attribute
func (t *Type) Attr(name string) (AttrSpec, bool) {
	if spec, ok := t.ClassAttrs().Lookup(name); ok {
		return spec, true
	}
	return t.DynamicAttrs().Lookup(name)
}

// IsSingleton reports whether the type or an ancestor is a singleton
func (t *Type) IsSingleton() bool {
	for cur := t; cur != nil; cur = cur.Parent {
		if cur.Singleton {
			return true
		}
	}
	return false
}

// Canonical returns the node name a singleton instance should carry
func (t *Type) Canonical() string {
	if t.CanonicalName != "" {
		return t.CanonicalName
	}
	if i := strings.LastIndex(t.Name, "."); i >= 0 {
		return t.Name[i+1:]
	}
	return t.Name
}

// IsOrphaned applies the nearest orphan predicate in the lineage.
// Types without one are never orphaned.
func (t *Type) IsOrphaned(inst Instance) bool {
	for cur := t; cur != nil; cur = cur.Parent {
		if cur.Orphaned != nil {
			return cur.Orphaned(inst)
		}
	}
	return false
}

// IsA reports whether t is other or descends from it
func (t *Type) IsA(other *Type) bool {
	for cur := t; cur != nil; cur = cur.Parent {
		if cur == other {
			return true
		}
	}
	return false
}

func (t *Type) String() string {
	return t.Name
}

package schema

// Builder assembles a Type
type Builder struct {
	t *Type
}

// NewType starts a type extending Base at version 1
func NewType(name string) *Builder {
	return &Builder{t: &Type{Name: name, Version: 1, Parent: Base}}
}

// Version sets the type's own schema version
func (b *Builder) Version(v int) *Builder {
	b.t.Version = v
	return b
}

// Extends sets the parent type
func (b *Builder) Extends(parent *Type) *Builder {
	b.t.Parent = parent
	return b
}

// Attrs appends class attributes
func (b *Builder) Attrs(specs ...AttrSpec) *Builder {
	b.t.Attrs = Merge(b.t.Attrs, specs)
	return b
}

// Dynamic appends dynamic attributes
func (b *Builder) Dynamic(specs ...AttrSpec) *Builder {
	b.t.Dynamic = Merge(b.t.Dynamic, specs)
	return b
}

// Singleton makes the type a singleton with the given canonical node name.
// An empty name uses the last segment of the type name.
func (b *Builder) Singleton(canonical string) *Builder {
	if b.t.Parent == Base {
		b.t.Parent = SingletonBase
	}
	b.t.Singleton = true
	b.t.CanonicalName = canonical
	return b
}

// Orphaned sets the orphan predicate
func (b *Builder) Orphaned(fn func(Instance) bool) *Builder {
	b.t.Orphaned = fn
	return b
}

// Build returns the assembled type
func (b *Builder) Build() *Type {
	return b.t
}

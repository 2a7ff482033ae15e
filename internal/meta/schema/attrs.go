package schema

import (
	"fmt"

	"github.com/conduit-lang/metanode/internal/host"
)

// Core attribute names stamped on every metanode
const (
	AttrMetaType      = "metaType"
	AttrMetaVersion   = "metaVersion"
	AttrLinealVersion = "linealVersion"
)

// AttrSpec describes one attribute of a metanode type
type AttrSpec struct {
	Name       string
	Kind       host.AttrKind
	Multi      bool
	Default    any
	Locked     bool
	EnumValues []string
}

// String returns a string attribute spec
func String(name string) AttrSpec { return AttrSpec{Name: name, Kind: host.KindString} }

// Bool returns a bool attribute spec with a default value
func Bool(name string, def bool) AttrSpec {
	return AttrSpec{Name: name, Kind: host.KindBool, Default: def}
}

// Int returns an int attribute spec
func Int(name string) AttrSpec { return AttrSpec{Name: name, Kind: host.KindInt} }

// Float returns a float attribute spec
func Float(name string) AttrSpec { return AttrSpec{Name: name, Kind: host.KindFloat} }

// Enum returns an enum attribute spec over the given value names
func Enum(name string, values ...string) AttrSpec {
	return AttrSpec{Name: name, Kind: host.KindEnum, EnumValues: values}
}

// Link returns a single message link spec
func Link(name string) AttrSpec { return AttrSpec{Name: name, Kind: host.KindMessage} }

// Links returns a multi message link spec
func Links(name string) AttrSpec { return AttrSpec{Name: name, Kind: host.KindMessage, Multi: true} }

// Strings returns a multi string spec
func Strings(name string) AttrSpec { return AttrSpec{Name: name, Kind: host.KindString, Multi: true} }

// AsMulti returns a copy of the spec marked multi
func (s AttrSpec) AsMulti() AttrSpec {
	s.Multi = true
	return s
}

// WithDefault returns a copy of the spec with a default value
func (s AttrSpec) WithDefault(v any) AttrSpec {
	s.Default = v
	return s
}

// AsLocked returns a copy of the spec that is locked after creation
func (s AttrSpec) AsLocked() AttrSpec {
	s.Locked = true
	return s
}

// IsLink reports whether the attribute holds connections rather than values
func (s AttrSpec) IsLink() bool {
	return s.Kind.IsLink()
}

// Options converts the spec to host attribute options
func (s AttrSpec) Options() host.AttrOptions {
	return host.AttrOptions{
		Kind:       s.Kind,
		Multi:      s.Multi,
		Default:    s.Default,
		EnumValues: s.EnumValues,
	}
}

// TypeName returns the kind name, suffixed with [] for multi attributes
func (s AttrSpec) TypeName() string {
	if s.Multi {
		return s.Kind.String() + "[]"
	}
	return s.Kind.String()
}

func (s AttrSpec) String() string {
	return fmt.Sprintf("%s %s", s.Name, s.TypeName())
}

// AttrSet is an ordered set of attribute specs keyed by name
type AttrSet []AttrSpec

// Lookup finds a spec by name
func (s AttrSet) Lookup(name string) (AttrSpec, bool) {
	for _, spec := range s {
		if spec.Name == name {
			return spec, true
		}
	}
	return AttrSpec{}, false
}

// Has reports whether the set declares name
func (s AttrSet) Has(name string) bool {
	_, ok := s.Lookup(name)
	return ok
}

// Names returns attribute names in declaration order
func (s AttrSet) Names() []string {
	names := make([]string, len(s))
	for i, spec := range s {
		names[i] = spec.Name
	}
	return names
}

// Merge is an ordered union of attribute sets. A name keeps the position
// of its first appearance and takes the spec of its last.
func Merge(sets ...AttrSet) AttrSet {
	var merged AttrSet
	index := make(map[string]int)
	for _, set := range sets {
		for _, spec := range set {
			if i, ok := index[spec.Name]; ok {
				merged[i] = spec
				continue
			}
			index[spec.Name] = len(merged)
			merged = append(merged, spec)
		}
	}
	return merged
}

// CoreAttrs are the locked attributes every metanode carries, in creation order
var CoreAttrs = AttrSet{
	{Name: AttrMetaType, Kind: host.KindString, Locked: true},
	{Name: AttrMetaVersion, Kind: host.KindInt, Locked: true},
	{Name: AttrLinealVersion, Kind: host.KindInt, Locked: true},
}

// IsCore reports whether name is a core attribute
func IsCore(name string) bool {
	return CoreAttrs.Has(name)
}

// IsVersionAttr reports whether name is one of the two version attributes
// migration must never overwrite
func IsVersionAttr(name string) bool {
	return name == AttrMetaVersion || name == AttrLinealVersion
}

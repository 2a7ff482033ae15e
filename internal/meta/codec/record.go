// Package codec converts metanodes to portable records and back.
//
// Links are written as the names of the nodes they point at, since names are
// the only identity that survives between sessions. Reading a record back
// resolves those names against the live graph and tolerates targets that no
// longer exist.
package codec

import (
	"strings"

	"github.com/conduit-lang/metanode/internal/host"
)

// Version is the pair of schema versions a record was written at
type Version struct {
	Schema int `json:"schema" yaml:"schema"`
	Lineal int `json:"lineal" yaml:"lineal"`
}

// AttrRecord is one serialized attribute. Kind is the host kind name,
// suffixed with [] for multi attributes.
type AttrRecord struct {
	Name  string `json:"name" yaml:"name"`
	Kind  string `json:"kind" yaml:"kind"`
	Value any    `json:"value" yaml:"value"`
}

// Multi reports whether the record holds a sequence
func (a AttrRecord) Multi() bool {
	return strings.HasSuffix(a.Kind, "[]")
}

// AttrKind parses the record's host kind
func (a AttrRecord) AttrKind() (host.AttrKind, error) {
	return host.ParseAttrKind(strings.TrimSuffix(a.Kind, "[]"))
}

// Record is a serialized metanode
type Record struct {
	Name    string       `json:"name" yaml:"name"`
	Type    string       `json:"type" yaml:"type"`
	Version Version      `json:"version" yaml:"version"`
	Attrs   []AttrRecord `json:"attrs" yaml:"attrs"`
	Dynamic []AttrRecord `json:"dynamic" yaml:"dynamic"`
}

// Attr finds a class or dynamic attribute record by name
func (r *Record) Attr(name string) (AttrRecord, bool) {
	for _, set := range [][]AttrRecord{r.Attrs, r.Dynamic} {
		for _, a := range set {
			if a.Name == name {
				return a, true
			}
		}
	}
	return AttrRecord{}, false
}

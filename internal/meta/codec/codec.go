package codec

import (
	"errors"
	"fmt"

	"github.com/conduit-lang/metanode/internal/host"
	"github.com/conduit-lang/metanode/internal/meta/metanode"
	"github.com/conduit-lang/metanode/internal/meta/schema"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrUnregisteredType is returned when a record names a type the registry
// cannot resolve
var ErrUnregisteredType = errors.New("unregistered type")

// Options controls Deserialize
type Options struct {
	// Verify compares the record versions with the restored node's and
	// reports a mismatch. The record is restored either way.
	Verify bool
	// KeepName leaves the target's name alone instead of renaming it to the
	// record name
	KeepName bool
}

// Serialize captures a metanode's class attributes and every other user
// attribute on the node as a record
func Serialize(n *metanode.Node) (*Record, error) {
	if !n.Exists() {
		return nil, fmt.Errorf("serialize %s: %w", n.Type().Name, host.ErrNodeNotFound)
	}
	g := n.Env().Graph
	t := n.Type()

	rec := &Record{
		Name:    n.Name(),
		Type:    t.Name,
		Version: Version{Schema: n.NodeVersion(), Lineal: n.NodeLineal()},
		Attrs:   []AttrRecord{},
		Dynamic: []AttrRecord{},
	}

	class := t.ClassAttrs()
	for _, spec := range class {
		ar, err := encodeAttr(n, spec)
		if err != nil {
			return nil, fmt.Errorf("serialize %s: %w", rec.Name, err)
		}
		rec.Attrs = append(rec.Attrs, ar)
	}

	names, err := g.ListAttrs(n.ID(), true)
	if err != nil {
		return nil, fmt.Errorf("serialize %s: %w", rec.Name, err)
	}
	var extra schema.AttrSet
	for _, name := range names {
		if schema.IsCore(name) || class.Has(name) || t.DynamicAttrs().Has(name) {
			continue
		}
		opts, err := g.AttrOptions(n.ID(), name)
		if err != nil {
			return nil, fmt.Errorf("serialize %s: %w", rec.Name, err)
		}
		extra = append(extra, specFromOptions(name, opts))
	}

	view := n
	if len(extra) > 0 {
		if view, err = metanode.Wrap(n.Env(), extend(t, extra), n.ID()); err != nil {
			return nil, fmt.Errorf("serialize %s: %w", rec.Name, err)
		}
	}
	for _, spec := range schema.Merge(t.DynamicAttrs(), extra) {
		if !g.HasAttr(n.ID(), spec.Name) {
			continue
		}
		ar, err := encodeAttr(view, spec)
		if err != nil {
			return nil, fmt.Errorf("serialize %s: %w", rec.Name, err)
		}
		rec.Dynamic = append(rec.Dynamic, ar)
	}
	return rec, nil
}

func encodeAttr(n *metanode.Node, spec schema.AttrSpec) (AttrRecord, error) {
	ar := AttrRecord{Name: spec.Name, Kind: spec.TypeName()}
	v, err := n.Get(spec.Name)
	if err != nil {
		return ar, err
	}
	g := n.Env().Graph

	switch {
	case spec.IsLink() && spec.Multi:
		ids, _ := v.([]uuid.UUID)
		targets := make([]string, 0, len(ids))
		for _, id := range ids {
			name, err := g.Name(id)
			if err != nil {
				return ar, err
			}
			targets = append(targets, name)
		}
		ar.Value = targets
	case spec.IsLink():
		if id, ok := v.(uuid.UUID); ok {
			name, err := g.Name(id)
			if err != nil {
				return ar, err
			}
			ar.Value = name
		}
	case spec.Kind == host.KindEnum && spec.Multi:
		indices, _ := v.([]int)
		values := make([]string, 0, len(indices))
		for _, i := range indices {
			values = append(values, enumName(spec, i))
		}
		ar.Value = values
	case spec.Kind == host.KindEnum:
		i, _ := v.(int)
		ar.Value = enumName(spec, i)
	default:
		ar.Value = v
	}
	return ar, nil
}

func enumName(spec schema.AttrSpec, i int) string {
	if i >= 0 && i < len(spec.EnumValues) {
		return spec.EnumValues[i]
	}
	return fmt.Sprint(i)
}

// Deserialize restores a record onto the graph and returns the restored node.
//
// Singleton types are written onto the canonical instance and target is
// ignored. Otherwise a Nil target creates a node under the record name, and
// a live target is renamed to the record name and rebound as the record's
// type. Links are resolved by node name; names that no longer resolve are
// reported and skipped. Problems restoring individual attributes are
// reported, not returned.
func Deserialize(env *metanode.Env, rec *Record, target uuid.UUID, opts Options) (*metanode.Node, *Report, error) {
	t, ok := env.ResolveTag(rec.Type)
	if !ok {
		return nil, nil, fmt.Errorf("deserialize %s: %w: %s", rec.Name, ErrUnregisteredType, rec.Type)
	}
	log := env.Log().With(zap.String("record", rec.Name), zap.String("type", t.Name))

	n, err := bind(env, t, rec, target, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("deserialize %s: %w", rec.Name, err)
	}
	report := &Report{Node: n.Name()}

	if opts.Verify {
		live := Version{Schema: n.NodeVersion(), Lineal: n.NodeLineal()}
		if rec.Version != live {
			report.Mismatch = &VersionMismatch{Record: rec.Version, Live: live}
			log.Warn("record version does not match node version",
				zap.Int("record_version", rec.Version.Schema),
				zap.Int("record_lineal", rec.Version.Lineal),
				zap.Int("version", live.Schema),
				zap.Int("lineal", live.Lineal))
		}
	}

	var extra schema.AttrSet
	for _, ar := range rec.Dynamic {
		if _, declared := t.Attr(ar.Name); declared || schema.IsCore(ar.Name) {
			continue
		}
		spec, err := specFromRecord(ar)
		if err != nil {
			report.CouldNotSet = append(report.CouldNotSet, SetFailure{Attr: ar.Name, Value: ar.Value, Err: err})
			continue
		}
		extra = append(extra, spec)
	}
	// view carries the record's foreign attributes for the restore only;
	// callers get n, bound to the registered type
	view := n
	if len(extra) > 0 {
		if view, err = metanode.Wrap(env, extend(t, extra), n.ID()); err != nil {
			return nil, nil, fmt.Errorf("deserialize %s: %w", rec.Name, err)
		}
	}

	g := env.Graph
	for _, ar := range rec.Dynamic {
		spec, err := view.Spec(ar.Name)
		if err != nil || g.HasAttr(n.ID(), ar.Name) {
			continue
		}
		if err := g.AddAttr(n.ID(), spec.Name, spec.Options()); err != nil {
			report.CouldNotSet = append(report.CouldNotSet, SetFailure{Attr: ar.Name, Value: ar.Value, Err: err})
		}
	}

	for _, ar := range append(append([]AttrRecord(nil), rec.Attrs...), rec.Dynamic...) {
		if schema.IsCore(ar.Name) {
			continue
		}
		spec, err := view.Spec(ar.Name)
		if err != nil {
			report.Unknown = append(report.Unknown, ar.Name)
			log.Warn("record attribute is not declared by the type", zap.String("attr", ar.Name))
			continue
		}
		if !g.HasAttr(n.ID(), ar.Name) {
			continue
		}
		if err := restore(view, spec, ar, report); err != nil {
			report.CouldNotSet = append(report.CouldNotSet, SetFailure{Attr: ar.Name, Value: ar.Value, Err: err})
			log.Warn("could not restore attribute", zap.String("attr", ar.Name), zap.Error(err))
		}
	}

	for _, d := range report.Dangling {
		log.Warn("dangling reference", zap.String("attr", d.Attr), zap.String("target", d.Target))
	}
	return n, report, nil
}

func bind(env *metanode.Env, t *schema.Type, rec *Record, target uuid.UUID, opts Options) (*metanode.Node, error) {
	if t.IsSingleton() {
		return metanode.Instance(env, t)
	}
	if target == uuid.Nil {
		return metanode.Create(env, t, rec.Name)
	}
	if !opts.KeepName {
		if _, err := env.Graph.Rename(target, rec.Name); err != nil {
			return nil, err
		}
	}
	return metanode.Wrap(env, t, target)
}

func restore(n *metanode.Node, spec schema.AttrSpec, ar AttrRecord, report *Report) (err error) {
	g := n.Env().Graph
	value := ar.Value

	if spec.IsLink() {
		if spec.Multi {
			value = resolveLinks(g, spec.Name, ar.Value, report)
		} else {
			id, ok := resolveLink(g, spec.Name, ar.Value, report)
			if !ok {
				return nil
			}
			value = id
			if id == uuid.Nil {
				value = nil
			}
		}
	} else if spec.Multi && value == nil {
		value = []any{}
	}

	locked, err := g.AttrLocked(n.ID(), spec.Name)
	if err != nil {
		return err
	}
	if locked {
		if err := g.SetAttrLocked(n.ID(), spec.Name, false); err != nil {
			return err
		}
		defer func() {
			if lockErr := g.SetAttrLocked(n.ID(), spec.Name, true); lockErr != nil {
				err = errors.Join(err, lockErr)
			}
		}()
	}
	return n.Set(spec.Name, value)
}

// resolveLink looks up a single link target. ok is false when the name
// does not resolve and the attribute should be left alone.
func resolveLink(g host.Graph, attr string, v any, report *Report) (uuid.UUID, bool) {
	if v == nil {
		return uuid.Nil, true
	}
	name, _ := v.(string)
	if name == "" {
		return uuid.Nil, true
	}
	id, ok := g.Lookup(name)
	if !ok {
		report.Dangling = append(report.Dangling, DanglingRef{Attr: attr, Target: name, Index: -1})
		return uuid.Nil, false
	}
	return id, true
}

func resolveLinks(g host.Graph, attr string, v any, report *Report) []uuid.UUID {
	ids := []uuid.UUID{}
	for i, name := range stringList(v) {
		id, ok := g.Lookup(name)
		if !ok {
			report.Dangling = append(report.Dangling, DanglingRef{Attr: attr, Target: name, Index: i})
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func stringList(v any) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// extend derives a view of t that also declares extra as dynamic attributes
func extend(t *schema.Type, extra schema.AttrSet) *schema.Type {
	derived := *t
	derived.Dynamic = schema.Merge(t.Dynamic, extra)
	return &derived
}

func specFromOptions(name string, opts host.AttrOptions) schema.AttrSpec {
	return schema.AttrSpec{
		Name:       name,
		Kind:       opts.Kind,
		Multi:      opts.Multi,
		EnumValues: opts.EnumValues,
	}
}

func specFromRecord(ar AttrRecord) (schema.AttrSpec, error) {
	kind, err := ar.AttrKind()
	if err != nil {
		return schema.AttrSpec{}, err
	}
	spec := schema.AttrSpec{Name: ar.Name, Kind: kind, Multi: ar.Multi()}
	if kind == host.KindEnum {
		// the names in the record are the only enum values known
		if spec.Multi {
			spec.EnumValues = stringList(ar.Value)
		} else if s, ok := ar.Value.(string); ok {
			spec.EnumValues = []string{s}
		}
	}
	return spec, nil
}

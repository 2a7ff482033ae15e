package schema

import (
	"errors"
	"fmt"
	"strings"

	"github.com/conduit-lang/metanode/internal/host"
)

// Validator checks a type descriptor before registration
type Validator struct{}

// NewValidator creates a new type validator
func NewValidator() *Validator {
	return &Validator{}
}

// Validate reports every structural problem with t
func (v *Validator) Validate(t *Type) error {
	var errs []error

	if t.Name == "" {
		errs = append(errs, errors.New("type name is empty"))
	}
	if strings.ContainsAny(t.Name, " \t\n") {
		errs = append(errs, fmt.Errorf("type name %q contains whitespace", t.Name))
	}
	if t.Version < 0 {
		errs = append(errs, fmt.Errorf("negative version %d", t.Version))
	}
	if t.Parent == nil && t != Base {
		errs = append(errs, errors.New("type has no parent; extend schema.Base"))
	}
	seen := make(map[*Type]bool)
	for cur := t; cur != nil; cur = cur.Parent {
		if seen[cur] {
			errs = append(errs, fmt.Errorf("lineage of %s is cyclic", t.Name))
			break
		}
		seen[cur] = true
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	class := t.ClassAttrs()
	errs = append(errs, v.validateSet("class", class)...)
	errs = append(errs, v.validateSet("dynamic", t.DynamicAttrs())...)
	for _, spec := range t.DynamicAttrs() {
		if class.Has(spec.Name) {
			errs = append(errs, fmt.Errorf("dynamic attribute %s shadows a class attribute", spec.Name))
		}
	}

	return errors.Join(errs...)
}

func (v *Validator) validateSet(label string, set AttrSet) []error {
	var errs []error
	for _, spec := range set {
		if spec.Name == "" {
			errs = append(errs, fmt.Errorf("%s attribute with empty name", label))
			continue
		}
		if IsCore(spec.Name) || spec.Name == host.MessageAttr {
			errs = append(errs, fmt.Errorf("%s attribute %s collides with a reserved attribute", label, spec.Name))
		}
		if spec.Kind == host.KindEnum && len(spec.EnumValues) == 0 {
			errs = append(errs, fmt.Errorf("enum attribute %s has no values", spec.Name))
		}
		if spec.IsLink() && spec.Default != nil {
			errs = append(errs, fmt.Errorf("link attribute %s cannot have a default", spec.Name))
		}
	}
	return errs
}

package scenefile

import (
	"encoding/json"
	"fmt"

	"github.com/conduit-lang/metanode/internal/host"
	"github.com/conduit-lang/metanode/internal/host/memgraph"
)

// attrRow is an attribute in its stored form
type attrRow struct {
	kind         string
	enumValues   string
	defaultValue string
	value        string
	elements     string
}

func encodeAttr(a memgraph.AttrSnapshot) (attrRow, error) {
	row := attrRow{kind: a.Options.Kind.String()}
	enumValues := a.Options.EnumValues
	if enumValues == nil {
		enumValues = []string{}
	}
	fields := []struct {
		dst *string
		v   any
	}{
		{&row.enumValues, enumValues},
		{&row.defaultValue, a.Options.Default},
		{&row.value, a.Value},
		{&row.elements, elementsOrEmpty(a.Elements)},
	}
	for _, f := range fields {
		data, err := json.Marshal(f.v)
		if err != nil {
			return row, err
		}
		*f.dst = string(data)
	}
	return row, nil
}

func elementsOrEmpty(elements map[int]any) map[int]any {
	if elements == nil {
		return map[int]any{}
	}
	return elements
}

func (row attrRow) decode(a *memgraph.AttrSnapshot) error {
	kind, err := host.ParseAttrKind(row.kind)
	if err != nil {
		return err
	}
	a.Options.Kind = kind

	if err := json.Unmarshal([]byte(row.enumValues), &a.Options.EnumValues); err != nil {
		return fmt.Errorf("enum values: %w", err)
	}
	if len(a.Options.EnumValues) == 0 {
		a.Options.EnumValues = nil
	}

	if a.Options.Default, err = decodeValue(kind, row.defaultValue); err != nil {
		return fmt.Errorf("default: %w", err)
	}
	if a.Value, err = decodeValue(kind, row.value); err != nil {
		return fmt.Errorf("value: %w", err)
	}

	var raw map[int]json.RawMessage
	if err := json.Unmarshal([]byte(row.elements), &raw); err != nil {
		return fmt.Errorf("elements: %w", err)
	}
	if a.Options.Multi {
		a.Elements = make(map[int]any, len(raw))
		for i, data := range raw {
			v, err := decodeValue(kind, string(data))
			if err != nil {
				return fmt.Errorf("element %d: %w", i, err)
			}
			a.Elements[i] = v
		}
	}
	return nil
}

// decodeValue restores the Go type JSON loses: whole numbers of int and
// enum attributes come back as int
func decodeValue(kind host.AttrKind, data string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		return nil, err
	}
	if f, ok := v.(float64); ok && (kind == host.KindInt || kind == host.KindEnum) {
		return int(f), nil
	}
	return v, nil
}

package codec

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/conduit-lang/metanode/internal/meta/recordstore"
	"gopkg.in/yaml.v3"
)

// Format is a record encoding
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat converts a format name, accepting "yml" for YAML
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "json", "":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown record format: %s", s)
	}
}

// Encode writes records in the given format. A single record is written as
// an object, several as a list.
func Encode(format Format, records ...*Record) ([]byte, error) {
	var v any = records
	if len(records) == 1 {
		v = records[0]
	}
	switch format {
	case FormatJSON:
		return json.MarshalIndent(v, "", "  ")
	case FormatYAML:
		return yaml.Marshal(v)
	default:
		return nil, fmt.Errorf("unknown record format: %s", format)
	}
}

// Decode reads one record or a list of records
func Decode(format Format, data []byte) ([]*Record, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("decode %s: empty document", format)
	}

	switch format {
	case FormatJSON:
		if trimmed[0] == '[' {
			var records []*Record
			if err := json.Unmarshal(trimmed, &records); err != nil {
				return nil, fmt.Errorf("decode json: %w", err)
			}
			return records, nil
		}
		var rec Record
		if err := json.Unmarshal(trimmed, &rec); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
		return []*Record{&rec}, nil
	case FormatYAML:
		var doc yaml.Node
		if err := yaml.Unmarshal(trimmed, &doc); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
		if len(doc.Content) > 0 && doc.Content[0].Kind == yaml.SequenceNode {
			var records []*Record
			if err := doc.Decode(&records); err != nil {
				return nil, fmt.Errorf("decode yaml: %w", err)
			}
			return records, nil
		}
		var rec Record
		if err := doc.Decode(&rec); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
		return []*Record{&rec}, nil
	default:
		return nil, fmt.Errorf("unknown record format: %s", format)
	}
}

// Stash stores a record under its node name
func Stash(ctx context.Context, store recordstore.Store, rec *Record, ttl time.Duration) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("stash %s: %w", rec.Name, err)
	}
	if err := store.Set(ctx, rec.Name, data, ttl); err != nil {
		return fmt.Errorf("stash %s: %w", rec.Name, err)
	}
	return nil
}

// Fetch loads a stashed record
func Fetch(ctx context.Context, store recordstore.Store, name string) (*Record, error) {
	data, err := store.Get(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", name, err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("fetch %s: %w", name, err)
	}
	return &rec, nil
}

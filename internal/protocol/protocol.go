package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	// ErrNotFound indicates the reference protocol file does not exist.
	ErrNotFound = errors.New("reference protocol file not found")

	// ErrUnsupportedFormat indicates an unrecognized protocol file extension.
	ErrUnsupportedFormat = errors.New("unsupported reference protocol format")

	// ErrEmptyProtocol indicates a protocol without any sequences.
	ErrEmptyProtocol = errors.New("reference protocol has no sequences")
)

// Protocol maps sequence ids to their expected parameter values. It is
// either loaded from a reference file or inferred from the dataset itself.
type Protocol struct {
	Name      string
	Sequences map[string]*Sequence
}

// New creates an empty protocol.
func New(name string) *Protocol {
	return &Protocol{Name: name, Sequences: make(map[string]*Sequence)}
}

// Add registers the expected parameters for a sequence id, replacing any
// previous entry.
func (p *Protocol) Add(seqID string, params map[string]Value) {
	seq := NewSequence(seqID, "")
	for name, v := range params {
		seq.Set(name, v)
	}
	p.Sequences[seqID] = seq
}

// Sequence returns the reference sequence for the given id.
func (p *Protocol) Sequence(seqID string) (*Sequence, bool) {
	seq, ok := p.Sequences[seqID]
	return seq, ok
}

// SequenceIDs returns the sequence ids in sorted order.
func (p *Protocol) SequenceIDs() []string {
	ids := make([]string, 0, len(p.Sequences))
	for id := range p.Sequences {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// IsEmpty reports whether the protocol holds no sequences.
func (p *Protocol) IsEmpty() bool {
	return p == nil || len(p.Sequences) == 0
}

// protocolFile is the on-disk shape of a reference protocol.
type protocolFile struct {
	Name      string                    `yaml:"name" json:"name"`
	Sequences map[string]map[string]any `yaml:"sequences" json:"sequences"`
}

// LoadFile reads a reference protocol from a YAML or JSON file. The format
// is chosen by extension (.yaml, .yml, .json).
func LoadFile(path string) (*Protocol, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("reading reference protocol: %w", err)
	}

	var file protocolFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parsing reference protocol YAML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parsing reference protocol JSON: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}

	if len(file.Sequences) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyProtocol, path)
	}

	name := file.Name
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	p := New(name)
	for seqID, raw := range file.Sequences {
		params := make(map[string]Value, len(raw))
		for param, v := range raw {
			params[param] = FromAny(normalizeYAML(v))
		}
		p.Add(seqID, params)
	}
	return p, nil
}

// normalizeYAML maps yaml.v3 scalar types onto the JSON-style types that
// FromAny understands.
func normalizeYAML(v any) any {
	switch x := v.(type) {
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case uint64:
		return float64(x)
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = normalizeYAML(item)
		}
		return out
	default:
		return v
	}
}

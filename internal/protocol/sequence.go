package protocol

import "sort"

// AttributeSeparator joins a sequence name with a stratification variant,
// e.g. "gre-field-mapping_ATTR_M". The composite id keeps scanner-parameter
// variants of the same nominal sequence apart during audits.
const AttributeSeparator = "_ATTR_"

// Sequence is one acquired (or reference) imaging sequence: a named set of
// parameters plus the path to the data it was read from.
type Sequence struct {
	Name   string
	Path   string
	Params map[string]Value
}

// NewSequence creates an empty sequence.
func NewSequence(name, path string) *Sequence {
	return &Sequence{Name: name, Path: path, Params: make(map[string]Value)}
}

// Set stores a parameter value.
func (s *Sequence) Set(name string, v Value) {
	if s.Params == nil {
		s.Params = make(map[string]Value)
	}
	s.Params[name] = v
}

// Get returns the value for a parameter. Missing parameters come back as
// Unspecified with ok=false.
func (s *Sequence) Get(name string) (Value, bool) {
	v, ok := s.Params[name]
	if !ok {
		return Unspecified(), false
	}
	return v, true
}

// ParamNames returns the parameter names in sorted order.
func (s *Sequence) ParamNames() []string {
	names := make([]string, 0, len(s.Params))
	for name := range s.Params {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// StratifiedName returns the composite sequence id for the given
// stratification attribute. When the attribute is absent or the value is
// unspecified, the plain name is returned unchanged.
func (s *Sequence) StratifiedName(stratifyBy string) string {
	if stratifyBy == "" {
		return s.Name
	}
	v, ok := s.Get(stratifyBy)
	if !ok || !v.IsSpecified() {
		return s.Name
	}
	return s.Name + AttributeSeparator + v.Key(defaultKeyDecimals)
}

// Package audit implements the horizontal and vertical compliance audits
// over a scanned dataset: comparing observed acquisition parameters against
// a reference protocol, partitioning sequences by the outcome, and
// aggregating the deviations for reporting.
package audit

import (
	"sort"

	"github.com/qctools/mrqc/internal/protocol"
)

// Observation is one recorded deviation: a run whose observed value for a
// parameter differs from the expected one.
type Observation struct {
	Subject  string
	Session  string
	Run      string
	RefSeq   string // sequence the expectation came from
	Expected protocol.Value
	Observed protocol.Value
	Path     string // evidence path to the underlying data
}

// NonCompliantSet aggregates observations by parameter and sequence. It
// backs the per-parameter drill-down tables of the report.
type NonCompliantSet struct {
	byParam map[string]map[string][]Observation
}

func NewNonCompliantSet() *NonCompliantSet {
	return &NonCompliantSet{byParam: make(map[string]map[string][]Observation)}
}

// Add records one deviation of a parameter for a sequence.
func (s *NonCompliantSet) Add(param, seqID string, obs Observation) {
	bySeq, ok := s.byParam[param]
	if !ok {
		bySeq = make(map[string][]Observation)
		s.byParam[param] = bySeq
	}
	bySeq[seqID] = append(bySeq[seqID], obs)
}

// IsEmpty reports whether no deviation was recorded.
func (s *NonCompliantSet) IsEmpty() bool {
	return s == nil || len(s.byParam) == 0
}

// Parameters returns the deviating parameter names, sorted.
func (s *NonCompliantSet) Parameters() []string {
	names := make([]string, 0, len(s.byParam))
	for p := range s.byParam {
		names = append(names, p)
	}
	sort.Strings(names)
	return names
}

// Sequences returns the sequences deviating on a parameter, sorted.
func (s *NonCompliantSet) Sequences(param string) []string {
	bySeq := s.byParam[param]
	ids := make([]string, 0, len(bySeq))
	for id := range bySeq {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Observations returns the recorded deviations of a parameter for a
// sequence, ordered by subject, session and run.
func (s *NonCompliantSet) Observations(param, seqID string) []Observation {
	obs := append([]Observation(nil), s.byParam[param][seqID]...)
	sort.Slice(obs, func(i, j int) bool {
		if obs[i].Subject != obs[j].Subject {
			return obs[i].Subject < obs[j].Subject
		}
		if obs[i].Session != obs[j].Session {
			return obs[i].Session < obs[j].Session
		}
		return obs[i].Run < obs[j].Run
	})
	return obs
}

// ValueGroup collects the subjects that share one deviating value.
type ValueGroup struct {
	Observed protocol.Value
	Expected protocol.Value
	Subjects []string
	Paths    []string
}

// ValueGroups groups the deviations of a parameter for a sequence by the
// observed value, so the report can show "these subjects got 2.3 instead
// of 2.0" as one row. Groups are ordered by the observed value's key.
func (s *NonCompliantSet) ValueGroups(param, seqID string) []ValueGroup {
	byKey := make(map[string]*ValueGroup)
	for _, o := range s.Observations(param, seqID) {
		key := o.Observed.String()
		g, ok := byKey[key]
		if !ok {
			g = &ValueGroup{Observed: o.Observed, Expected: o.Expected}
			byKey[key] = g
		}
		if len(g.Subjects) == 0 || g.Subjects[len(g.Subjects)-1] != o.Subject {
			g.Subjects = append(g.Subjects, o.Subject)
			g.Paths = append(g.Paths, o.Path)
		}
	}

	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	groups := make([]ValueGroup, 0, len(keys))
	for _, k := range keys {
		groups = append(groups, *byKey[k])
	}
	return groups
}

// SubjectIDs returns the distinct subjects deviating on any parameter of a
// sequence, sorted. Feeds the subject-list export.
func (s *NonCompliantSet) SubjectIDs(seqID string) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, bySeq := range s.byParam {
		for _, o := range bySeq[seqID] {
			if _, ok := seen[o.Subject]; !ok {
				seen[o.Subject] = struct{}{}
				ids = append(ids, o.Subject)
			}
		}
	}
	sort.Strings(ids)
	return ids
}

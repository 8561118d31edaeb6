// Package dataset models an acquired MRI dataset as a tree of
// subject > session > sequence > run, and provides the readers that build
// one from a directory of DICOM, BIDS or XNAT data.
package dataset

import (
	"sort"

	"github.com/qctools/mrqc/internal/protocol"
)

// Style identifies the on-disk layout of a data source.
type Style string

const (
	StyleDICOM Style = "dicom"
	StyleBIDS  Style = "bids"
	StyleXNAT  Style = "xnat"
)

// IsValid reports whether the style is one of the supported layouts.
func (s Style) IsValid() bool {
	switch s {
	case StyleDICOM, StyleBIDS, StyleXNAT:
		return true
	}
	return false
}

// Entry is one acquired run: the leaf of the subject > session > sequence >
// run hierarchy.
type Entry struct {
	Subject string
	Session string
	SeqID   string
	Run     string
	Seq     *protocol.Sequence
}

// Pair is a co-occurring run of two different sequences within the same
// subject and session, as visited by the vertical audit.
type Pair struct {
	Subject string
	Session string
	RunA    string
	RunB    string
	SeqA    *protocol.Sequence
	SeqB    *protocol.Sequence
}

// Dataset is a named collection of entries. Fields are exported so a scanned
// dataset can be gob-encoded into the scan cache.
type Dataset struct {
	Name    string
	Source  string
	Style   Style
	Entries []Entry
}

// New creates an empty dataset.
func New(name, source string, style Style) *Dataset {
	return &Dataset{Name: name, Source: source, Style: style}
}

// NewLike creates an empty dataset sharing the identity of another. The
// audit partitions (compliant, non-compliant, undetermined) are built this
// way.
func NewLike(other *Dataset) *Dataset {
	return New(other.Name, other.Source, other.Style)
}

// Add inserts a run, replacing any previous entry with the same coordinates.
func (d *Dataset) Add(subject, session, seqID, run string, seq *protocol.Sequence) {
	for i := range d.Entries {
		e := &d.Entries[i]
		if e.Subject == subject && e.Session == session && e.SeqID == seqID && e.Run == run {
			e.Seq = seq
			return
		}
	}
	d.Entries = append(d.Entries, Entry{
		Subject: subject,
		Session: session,
		SeqID:   seqID,
		Run:     run,
		Seq:     seq,
	})
}

// Merge folds every entry of other into d.
func (d *Dataset) Merge(other *Dataset) {
	if other == nil {
		return
	}
	for _, e := range other.Entries {
		d.Add(e.Subject, e.Session, e.SeqID, e.Run, e.Seq)
	}
}

// IsEmpty reports whether the dataset has no entries.
func (d *Dataset) IsEmpty() bool {
	return d == nil || len(d.Entries) == 0
}

// SequenceIDs returns the distinct sequence ids in sorted order.
func (d *Dataset) SequenceIDs() []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, e := range d.Entries {
		if _, ok := seen[e.SeqID]; !ok {
			seen[e.SeqID] = struct{}{}
			ids = append(ids, e.SeqID)
		}
	}
	sort.Strings(ids)
	return ids
}

// SubjectIDs returns the distinct subjects that have the given sequence,
// sorted.
func (d *Dataset) SubjectIDs(seqID string) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, e := range d.Entries {
		if e.SeqID != seqID {
			continue
		}
		if _, ok := seen[e.Subject]; !ok {
			seen[e.Subject] = struct{}{}
			ids = append(ids, e.Subject)
		}
	}
	sort.Strings(ids)
	return ids
}

// SubjectCount returns the number of distinct subjects for a sequence.
func (d *Dataset) SubjectCount(seqID string) int {
	return len(d.SubjectIDs(seqID))
}

// TraverseHorizontal returns every entry of one sequence, ordered by
// subject, session and run.
func (d *Dataset) TraverseHorizontal(seqID string) []Entry {
	var out []Entry
	for _, e := range d.Entries {
		if e.SeqID == seqID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Subject != out[j].Subject {
			return out[i].Subject < out[j].Subject
		}
		if out[i].Session != out[j].Session {
			return out[i].Session < out[j].Session
		}
		return out[i].Run < out[j].Run
	})
	return out
}

// TraverseVerticalPair returns, for every subject+session holding both
// sequences, the first run of each. Ordered by subject then session.
func (d *Dataset) TraverseVerticalPair(seqA, seqB string) []Pair {
	type slot struct {
		runA, runB string
		seqA, seqB *protocol.Sequence
	}
	slots := make(map[[2]string]*slot)
	order := make([][2]string, 0)

	for _, e := range d.TraverseHorizontal(seqA) {
		key := [2]string{e.Subject, e.Session}
		s, ok := slots[key]
		if !ok {
			s = &slot{}
			slots[key] = s
			order = append(order, key)
		}
		if s.seqA == nil {
			s.runA, s.seqA = e.Run, e.Seq
		}
	}
	for _, e := range d.TraverseHorizontal(seqB) {
		key := [2]string{e.Subject, e.Session}
		s, ok := slots[key]
		if !ok {
			continue
		}
		if s.seqB == nil {
			s.runB, s.seqB = e.Run, e.Seq
		}
	}

	sort.Slice(order, func(i, j int) bool {
		if order[i][0] != order[j][0] {
			return order[i][0] < order[j][0]
		}
		return order[i][1] < order[j][1]
	})

	var pairs []Pair
	for _, key := range order {
		s := slots[key]
		if s.seqA == nil || s.seqB == nil {
			continue
		}
		pairs = append(pairs, Pair{
			Subject: key[0],
			Session: key[1],
			RunA:    s.runA,
			RunB:    s.runB,
			SeqA:    s.seqA,
			SeqB:    s.seqB,
		})
	}
	return pairs
}

// GroupBySequence collects the observed sequences of every entry together
// with their subjects, keyed by the (optionally stratified) sequence id.
// This feeds majority-vote inference, which counts distinct subjects.
func (d *Dataset) GroupBySequence(stratifyBy string) map[string][]protocol.Observation {
	groups := make(map[string][]protocol.Observation)
	for _, seqID := range d.SequenceIDs() {
		for _, e := range d.TraverseHorizontal(seqID) {
			id := e.Seq.StratifiedName(stratifyBy)
			groups[id] = append(groups[id], protocol.Observation{
				Subject: e.Subject,
				Seq:     e.Seq,
			})
		}
	}
	return groups
}

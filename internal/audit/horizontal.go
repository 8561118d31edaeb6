package audit

import (
	"sort"

	"github.com/qctools/mrqc/internal/dataset"
	"github.com/qctools/mrqc/internal/protocol"
)

// HorizontalOptions tune the across-subjects audit.
type HorizontalOptions struct {
	// Parameters checked against the reference.
	Parameters []string
	// StratifyBy splits sequences by the named attribute, giving
	// scanner-parameter variants of the same nominal sequence separate
	// references and verdicts.
	StratifyBy string
	// Tolerance is the relative tolerance for numeric comparisons.
	Tolerance float64
	// Decimals is the rounding applied to numeric values.
	Decimals int
	// Reference, when set, overrides majority-vote inference.
	Reference *protocol.Protocol
}

// HorizontalResult partitions the audited sequences. Every sequence lands
// in exactly one of Compliant, NonCompliant and Undetermined.
type HorizontalResult struct {
	// Complete is the dataset the audit ran over.
	Complete *dataset.Dataset
	// Reference is the protocol the observations were checked against.
	Reference *protocol.Protocol

	Compliant    *dataset.Dataset
	NonCompliant *dataset.Dataset
	Undetermined *dataset.Dataset

	// NC holds every recorded deviation, keyed by parameter and sequence.
	NC *NonCompliantSet

	// Ties maps sequence id to parameters whose inferred majority was
	// ambiguous. Empty when a reference protocol was supplied.
	Ties map[string][]string

	// Subjects maps each audited sequence id to its distinct subjects.
	Subjects map[string][]string
}

// Horizontal audits every sequence of ds against a reference protocol. When
// opts.Reference is nil, the reference is inferred by majority vote over
// sequences with enough subjects; sequences without a reference entry are
// undetermined.
func Horizontal(ds *dataset.Dataset, opts HorizontalOptions) *HorizontalResult {
	result := &HorizontalResult{
		Complete:     ds,
		Compliant:    dataset.NewLike(ds),
		NonCompliant: dataset.NewLike(ds),
		Undetermined: dataset.NewLike(ds),
		NC:           NewNonCompliantSet(),
		Ties:         make(map[string][]string),
		Subjects:     make(map[string][]string),
	}

	entriesBySeq := stratifiedEntries(ds, opts.StratifyBy)

	ref := opts.Reference
	if ref == nil {
		inferred := protocol.Infer(ds.Name, ds.GroupBySequence(opts.StratifyBy), protocol.InferOptions{
			IncludeParams: opts.Parameters,
			Decimals:      opts.Decimals,
		})
		ref = inferred.Protocol
		result.Ties = inferred.Ties
	}
	result.Reference = ref

	seqIDs := make([]string, 0, len(entriesBySeq))
	for id := range entriesBySeq {
		seqIDs = append(seqIDs, id)
	}
	sort.Strings(seqIDs)

	cmpOpts := protocol.CompareOptions{
		Tolerance:     opts.Tolerance,
		Decimals:      opts.Decimals,
		IncludeParams: opts.Parameters,
	}

	for _, seqID := range seqIDs {
		entries := entriesBySeq[seqID]
		result.Subjects[seqID] = distinctSubjects(entries)

		refSeq, ok := ref.Sequence(seqID)
		if !ok {
			for _, e := range entries {
				result.Undetermined.Add(e.Subject, e.Session, seqID, e.Run, e.Seq)
			}
			continue
		}

		// a sequence is compliant only if every run passes, so compliant
		// runs are staged and merged at the end
		staged := dataset.NewLike(ds)
		deviated := false
		for _, e := range entries {
			mismatches := protocol.Compare(refSeq, e.Seq, cmpOpts)
			if len(mismatches) == 0 {
				staged.Add(e.Subject, e.Session, seqID, e.Run, e.Seq)
				continue
			}
			deviated = true
			result.NonCompliant.Add(e.Subject, e.Session, seqID, e.Run, e.Seq)
			for _, m := range mismatches {
				result.NC.Add(m.Param, seqID, Observation{
					Subject:  e.Subject,
					Session:  e.Session,
					Run:      e.Run,
					RefSeq:   seqID,
					Expected: m.Expected,
					Observed: m.Observed,
					Path:     e.Seq.Path,
				})
			}
		}
		if !deviated {
			result.Compliant.Merge(staged)
		}
	}
	return result
}

// stratifiedEntries regroups the dataset's entries under their stratified
// sequence ids.
func stratifiedEntries(ds *dataset.Dataset, stratifyBy string) map[string][]dataset.Entry {
	out := make(map[string][]dataset.Entry)
	for _, seqID := range ds.SequenceIDs() {
		for _, e := range ds.TraverseHorizontal(seqID) {
			id := e.Seq.StratifiedName(stratifyBy)
			out[id] = append(out[id], e)
		}
	}
	return out
}

func distinctSubjects(entries []dataset.Entry) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, e := range entries {
		if _, ok := seen[e.Subject]; !ok {
			seen[e.Subject] = struct{}{}
			ids = append(ids, e.Subject)
		}
	}
	sort.Strings(ids)
	return ids
}

// SequenceIDs returns every audited sequence id, sorted.
func (r *HorizontalResult) SequenceIDs() []string {
	ids := make([]string, 0, len(r.Subjects))
	for id := range r.Subjects {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// SubjectCount returns the distinct subject total of an audited sequence.
func (r *HorizontalResult) SubjectCount(seqID string) int {
	return len(r.Subjects[seqID])
}

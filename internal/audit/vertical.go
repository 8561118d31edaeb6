package audit

import (
	"sort"

	"github.com/qctools/mrqc/internal/dataset"
	"github.com/qctools/mrqc/internal/protocol"
)

// VerticalOptions tune the within-session audit.
type VerticalOptions struct {
	// Parameters compared between the paired sequences.
	Parameters []string
	// Pairs names the sequence pairs to audit. Empty means every
	// combination of two sequences seen together in at least one session.
	Pairs [][2]string
	// Tolerance is the relative tolerance for numeric comparisons.
	Tolerance float64
	// Decimals is the rounding applied to numeric values.
	Decimals int
}

// PairResult is the outcome of comparing one sequence pair across subjects.
type PairResult struct {
	SeqA string
	SeqB string
	// Total is the number of subject+session slots holding both sequences.
	Total int
	// NonCompliant lists the subjects with at least one mismatching
	// parameter, sorted.
	NonCompliant []string
	// ByParameter counts non-compliant subjects per parameter.
	ByParameter map[string]int
}

// VerticalResult is the cross-sequence comparison matrix.
type VerticalResult struct {
	Parameters []string
	Pairs      []PairResult
	// NC records every deviation; the sequence key is "seqA vs seqB" and
	// RefSeq carries the baseline sequence of the pair.
	NC *NonCompliantSet
}

// PairLabel names a pair the way the result and the report key it.
func PairLabel(seqA, seqB string) string {
	return seqA + " vs " + seqB
}

// Vertical compares co-occurring sequences within each subject and session.
// The first sequence of each pair is the baseline the second is checked
// against.
func Vertical(ds *dataset.Dataset, opts VerticalOptions) *VerticalResult {
	pairs := opts.Pairs
	if len(pairs) == 0 {
		pairs = defaultPairs(ds)
	}

	result := &VerticalResult{
		Parameters: opts.Parameters,
		NC:         NewNonCompliantSet(),
	}
	cmpOpts := protocol.CompareOptions{
		Tolerance:     opts.Tolerance,
		Decimals:      opts.Decimals,
		IncludeParams: opts.Parameters,
	}

	for _, pair := range pairs {
		pr := PairResult{
			SeqA:        pair[0],
			SeqB:        pair[1],
			ByParameter: make(map[string]int),
		}
		label := PairLabel(pair[0], pair[1])

		ncSubjects := make(map[string]struct{})
		paramSubjects := make(map[string]map[string]struct{})
		for _, p := range ds.TraverseVerticalPair(pair[0], pair[1]) {
			pr.Total++
			for _, m := range protocol.Compare(p.SeqA, p.SeqB, cmpOpts) {
				ncSubjects[p.Subject] = struct{}{}
				if paramSubjects[m.Param] == nil {
					paramSubjects[m.Param] = make(map[string]struct{})
				}
				paramSubjects[m.Param][p.Subject] = struct{}{}
				result.NC.Add(m.Param, label, Observation{
					Subject:  p.Subject,
					Session:  p.Session,
					Run:      p.RunB,
					RefSeq:   pair[0],
					Expected: m.Expected,
					Observed: m.Observed,
					Path:     p.SeqB.Path,
				})
			}
		}
		if pr.Total == 0 {
			continue
		}

		for s := range ncSubjects {
			pr.NonCompliant = append(pr.NonCompliant, s)
		}
		sort.Strings(pr.NonCompliant)
		for param, subs := range paramSubjects {
			pr.ByParameter[param] = len(subs)
		}
		result.Pairs = append(result.Pairs, pr)
	}

	sort.Slice(result.Pairs, func(i, j int) bool {
		if result.Pairs[i].SeqA != result.Pairs[j].SeqA {
			return result.Pairs[i].SeqA < result.Pairs[j].SeqA
		}
		return result.Pairs[i].SeqB < result.Pairs[j].SeqB
	})
	return result
}

// defaultPairs derives the pairs to audit when none are configured: every
// combination of two sequences that co-occur in at least one session.
func defaultPairs(ds *dataset.Dataset) [][2]string {
	ids := ds.SequenceIDs()
	var pairs [][2]string
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			if len(ds.TraverseVerticalPair(ids[i], ids[j])) > 0 {
				pairs = append(pairs, [2]string{ids[i], ids[j]})
			}
		}
	}
	return pairs
}

package protocol

import (
	"sort"
)

// MinSubjectsForInference is the smallest number of distinct subjects that
// can vote a reference value. Below this the majority is meaningless and
// the sequence stays without a reference.
const MinSubjectsForInference = 3

// Observation is one acquired sequence together with the subject it came
// from. Inference needs the subject so that repeat runs of one subject
// count as a single voter.
type Observation struct {
	Subject string
	Seq     *Sequence
}

// InferOptions tune majority-vote inference.
type InferOptions struct {
	// IncludeParams are the parameters a reference value is inferred for.
	IncludeParams []string
	// Decimals is the rounding applied when counting numeric observations.
	Decimals int
}

// InferResult is an inferred protocol plus the parameters that could not be
// decided because two values tied for the top count.
type InferResult struct {
	Protocol *Protocol
	// Ties maps sequence id to the parameters whose majority was ambiguous.
	Ties map[string][]string
	// Skipped lists sequence ids observed in fewer than
	// MinSubjectsForInference distinct subjects.
	Skipped []string
}

// Infer builds a reference protocol by majority vote. groups maps each
// sequence id to its observations across subjects. A parameter's reference
// value is the most frequent specified observation, counting each subject
// once regardless of how many runs it contributed; ties are surfaced in
// the result rather than silently resolved.
func Infer(name string, groups map[string][]Observation, opts InferOptions) *InferResult {
	result := &InferResult{
		Protocol: New(name),
		Ties:     make(map[string][]string),
	}

	seqIDs := make([]string, 0, len(groups))
	for id := range groups {
		seqIDs = append(seqIDs, id)
	}
	sort.Strings(seqIDs)

	for _, seqID := range seqIDs {
		obs := groups[seqID]
		if distinctSubjects(obs) < MinSubjectsForInference {
			result.Skipped = append(result.Skipped, seqID)
			continue
		}

		params := make(map[string]Value)
		var ties []string
		for _, param := range opts.IncludeParams {
			value, tied := majority(obs, param, opts.Decimals)
			if tied {
				ties = append(ties, param)
				continue
			}
			if value.IsSpecified() {
				params[param] = value
			}
		}

		if len(params) > 0 {
			result.Protocol.Add(seqID, params)
		}
		if len(ties) > 0 {
			result.Ties[seqID] = ties
		}
	}
	return result
}

// distinctSubjects counts the subjects represented in a group.
func distinctSubjects(obs []Observation) int {
	seen := make(map[string]struct{}, len(obs))
	for _, o := range obs {
		seen[o.Subject] = struct{}{}
	}
	return len(seen)
}

// majority returns the most frequent specified value of a parameter across
// the given observations. A subject voting the same value from several runs
// is counted once. tied is true when more than one value shares the top
// count.
func majority(obs []Observation, param string, decimals int) (value Value, tied bool) {
	counts := make(map[string]int)
	samples := make(map[string]Value)
	voted := make(map[string]map[string]struct{})
	for _, o := range obs {
		v, ok := o.Seq.Get(param)
		if !ok || !v.IsSpecified() {
			continue
		}
		key := v.Key(decimals)
		if _, dup := voted[o.Subject][key]; dup {
			continue
		}
		if voted[o.Subject] == nil {
			voted[o.Subject] = make(map[string]struct{})
		}
		voted[o.Subject][key] = struct{}{}
		counts[key]++
		samples[key] = v
	}
	if len(counts) == 0 {
		return Unspecified(), false
	}

	best, bestCount, rivals := "", 0, 0
	for key, n := range counts {
		switch {
		case n > bestCount:
			best, bestCount, rivals = key, n, 1
		case n == bestCount:
			rivals++
			// deterministic pick for reporting, still flagged as a tie
			if key < best {
				best = key
			}
		}
	}
	if rivals > 1 {
		return samples[best], true
	}
	return samples[best], false
}

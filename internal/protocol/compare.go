package protocol

import "sort"

// Mismatch records one non-compliant parameter: the reference expectation
// and the observed deviation.
type Mismatch struct {
	Param    string
	Expected Value
	Observed Value
}

// CompareOptions tune a compliance comparison.
type CompareOptions struct {
	// Tolerance is the relative tolerance applied to numeric parameters.
	Tolerance float64
	// Decimals is the rounding applied to numeric parameters before compare.
	Decimals int
	// IncludeParams restricts the comparison to the named parameters.
	// Empty means every parameter present in the reference.
	IncludeParams []string
}

// Compare checks an observed sequence against a reference sequence and
// returns the mismatching parameters, sorted by parameter name. A nil or
// empty result means the observation is compliant.
//
// Parameters unspecified in the reference are skipped: no expectation, no
// verdict. Parameters expected by the reference but missing from the
// observation count as mismatches with an unspecified observed value.
func Compare(ref, obs *Sequence, opts CompareOptions) []Mismatch {
	params := opts.IncludeParams
	if len(params) == 0 {
		params = ref.ParamNames()
	}

	var mismatches []Mismatch
	for _, name := range params {
		want, ok := ref.Get(name)
		if !ok || !want.IsSpecified() {
			continue
		}
		got, _ := obs.Get(name)
		if !want.Equal(got, opts.Tolerance, opts.Decimals) {
			mismatches = append(mismatches, Mismatch{
				Param:    name,
				Expected: want,
				Observed: got,
			})
		}
	}
	sort.Slice(mismatches, func(i, j int) bool {
		return mismatches[i].Param < mismatches[j].Param
	})
	return mismatches
}

package audit

import (
	"reflect"
	"testing"

	"github.com/qctools/mrqc/internal/dataset"
	"github.com/qctools/mrqc/internal/protocol"
)

var auditParams = []string{"RepetitionTime", "FlipAngle", "Manufacturer"}

func seqWith(t *testing.T, name string, tr, fa float64) *protocol.Sequence {
	t.Helper()
	s := protocol.NewSequence(name, "/data/"+name)
	s.Set("RepetitionTime", protocol.Number(tr))
	s.Set("FlipAngle", protocol.Number(fa))
	s.Set("Manufacturer", protocol.String("Siemens"))
	return s
}

// four subjects: three agree on TR 2.0, one deviates with 2.5.
func deviantDataset(t *testing.T) *dataset.Dataset {
	t.Helper()
	ds := dataset.New("study", "/data/study", dataset.StyleBIDS)
	ds.Add("sub-01", "1", "bold", "1", seqWith(t, "bold", 2.0, 77))
	ds.Add("sub-02", "1", "bold", "1", seqWith(t, "bold", 2.0, 77))
	ds.Add("sub-03", "1", "bold", "1", seqWith(t, "bold", 2.0, 77))
	ds.Add("sub-04", "1", "bold", "1", seqWith(t, "bold", 2.5, 77))
	return ds
}

func TestHorizontalPartitionsDeviant(t *testing.T) {
	res := Horizontal(deviantDataset(t), HorizontalOptions{Parameters: auditParams})

	// a deviating run puts the whole sequence in the non-compliant set
	if got := res.Compliant.SequenceIDs(); len(got) != 0 {
		t.Errorf("compliant sequences = %v, want none", got)
	}
	if got := res.NonCompliant.SubjectIDs("bold"); !reflect.DeepEqual(got, []string{"sub-04"}) {
		t.Errorf("non-compliant subjects = %v, want [sub-04]", got)
	}
	if !res.Undetermined.IsEmpty() {
		t.Errorf("undetermined = %v, want empty", res.Undetermined.SequenceIDs())
	}

	obs := res.NC.Observations("RepetitionTime", "bold")
	if len(obs) != 1 {
		t.Fatalf("observations = %d, want 1", len(obs))
	}
	if obs[0].Subject != "sub-04" || obs[0].Expected.Num != 2.0 || obs[0].Observed.Num != 2.5 {
		t.Errorf("unexpected observation %+v", obs[0])
	}
	if obs[0].Path == "" {
		t.Error("observation missing evidence path")
	}
}

func TestHorizontalAllCompliant(t *testing.T) {
	ds := dataset.New("study", "/data/study", dataset.StyleBIDS)
	for _, sub := range []string{"sub-01", "sub-02", "sub-03"} {
		ds.Add(sub, "1", "t1w", "1", seqWith(t, "t1w", 2.3, 8))
	}
	res := Horizontal(ds, HorizontalOptions{Parameters: auditParams})

	if got := res.Compliant.SubjectIDs("t1w"); len(got) != 3 {
		t.Errorf("compliant subjects = %v, want all 3", got)
	}
	if !res.NonCompliant.IsEmpty() || !res.NC.IsEmpty() {
		t.Error("expected no non-compliance")
	}
}

func TestHorizontalTooFewSubjectsIsUndetermined(t *testing.T) {
	ds := dataset.New("study", "/data/study", dataset.StyleBIDS)
	ds.Add("sub-01", "1", "t2w", "1", seqWith(t, "t2w", 3.2, 120))
	ds.Add("sub-02", "1", "t2w", "1", seqWith(t, "t2w", 3.2, 120))
	res := Horizontal(ds, HorizontalOptions{Parameters: auditParams})

	if got := res.Undetermined.SubjectIDs("t2w"); len(got) != 2 {
		t.Errorf("undetermined subjects = %v, want both", got)
	}
	if len(res.Compliant.SequenceIDs())+len(res.NonCompliant.SequenceIDs()) != 0 {
		t.Error("undetermined sequence leaked into another partition")
	}
}

func TestHorizontalSingleSubjectManyRunsIsUndetermined(t *testing.T) {
	// repeat runs of one subject must not vote a reference into existence
	ds := dataset.New("study", "/data/study", dataset.StyleBIDS)
	ds.Add("sub-01", "1", "bold", "1", seqWith(t, "bold", 2.0, 77))
	ds.Add("sub-01", "1", "bold", "2", seqWith(t, "bold", 2.0, 77))
	ds.Add("sub-01", "1", "bold", "3", seqWith(t, "bold", 2.0, 77))
	res := Horizontal(ds, HorizontalOptions{Parameters: auditParams})

	if got := res.Undetermined.SubjectIDs("bold"); !reflect.DeepEqual(got, []string{"sub-01"}) {
		t.Errorf("undetermined subjects = %v, want [sub-01]", got)
	}
	if !res.Compliant.IsEmpty() || !res.NonCompliant.IsEmpty() {
		t.Error("single-subject sequence leaked out of the undetermined partition")
	}
}

func TestHorizontalEverySequenceInExactlyOnePartition(t *testing.T) {
	ds := deviantDataset(t)
	// add an undetermined sequence and a compliant one
	ds.Add("sub-01", "1", "t2w", "1", seqWith(t, "t2w", 3.2, 120))
	for _, sub := range []string{"sub-01", "sub-02", "sub-03"} {
		ds.Add(sub, "1", "t1w", "1", seqWith(t, "t1w", 2.3, 8))
	}
	res := Horizontal(ds, HorizontalOptions{Parameters: auditParams})

	membership := make(map[string]int)
	for _, part := range []*dataset.Dataset{res.Compliant, res.NonCompliant, res.Undetermined} {
		for _, id := range part.SequenceIDs() {
			membership[id]++
		}
	}
	for _, id := range res.SequenceIDs() {
		if membership[id] != 1 {
			t.Errorf("sequence %q appears in %d partitions", id, membership[id])
		}
	}
}

func TestHorizontalSuppliedReference(t *testing.T) {
	ref := protocol.New("site-ref")
	ref.Add("bold", map[string]protocol.Value{
		"RepetitionTime": protocol.Number(2.5),
	})
	res := Horizontal(deviantDataset(t), HorizontalOptions{
		Parameters: auditParams,
		Reference:  ref,
	})

	// against the supplied reference only sub-04 complies
	got := res.NonCompliant.SubjectIDs("bold")
	want := []string{"sub-01", "sub-02", "sub-03"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("non-compliant subjects = %v, want %v", got, want)
	}
}

func TestHorizontalTolerance(t *testing.T) {
	ds := dataset.New("study", "/data/study", dataset.StyleBIDS)
	ds.Add("sub-01", "1", "bold", "1", seqWith(t, "bold", 2.000, 77))
	ds.Add("sub-02", "1", "bold", "1", seqWith(t, "bold", 2.000, 77))
	ds.Add("sub-03", "1", "bold", "1", seqWith(t, "bold", 2.001, 77))

	strict := Horizontal(ds, HorizontalOptions{Parameters: auditParams, Decimals: 3})
	if strict.NonCompliant.IsEmpty() {
		t.Error("expected a mismatch without tolerance")
	}

	lenient := Horizontal(ds, HorizontalOptions{Parameters: auditParams, Decimals: 3, Tolerance: 0.01})
	if !lenient.NonCompliant.IsEmpty() {
		t.Errorf("expected tolerance to absorb the drift, got %v",
			lenient.NonCompliant.SubjectIDs("bold"))
	}
}

func TestHorizontalStratifiesVariants(t *testing.T) {
	ds := dataset.New("study", "/data/study", dataset.StyleBIDS)
	for _, sub := range []string{"sub-01", "sub-02", "sub-03"} {
		mag := seqWith(t, "fmap", 0.6, 60)
		mag.Set("ImageType", protocol.String("M"))
		phase := seqWith(t, "fmap", 0.7, 60)
		phase.Set("ImageType", protocol.String("P"))
		ds.Add(sub, "1", "fmap", "1", mag)
		ds.Add(sub, "1", "fmap", "2", phase)
	}

	res := Horizontal(ds, HorizontalOptions{
		Parameters: auditParams,
		StratifyBy: "ImageType",
		Decimals:   3,
	})

	want := []string{"fmap_ATTR_M", "fmap_ATTR_P"}
	if got := res.SequenceIDs(); !reflect.DeepEqual(got, want) {
		t.Fatalf("audited sequences = %v, want %v", got, want)
	}
	// each variant voted its own reference, so both are fully compliant
	if got := res.Compliant.SequenceIDs(); !reflect.DeepEqual(got, want) {
		t.Errorf("compliant sequences = %v, want %v", got, want)
	}
}

func TestHorizontalSurfacesTies(t *testing.T) {
	ds := dataset.New("study", "/data/study", dataset.StyleBIDS)
	ds.Add("sub-01", "1", "bold", "1", seqWith(t, "bold", 2.0, 77))
	ds.Add("sub-02", "1", "bold", "1", seqWith(t, "bold", 2.0, 90))
	ds.Add("sub-03", "1", "bold", "1", seqWith(t, "bold", 2.5, 77))
	ds.Add("sub-04", "1", "bold", "1", seqWith(t, "bold", 2.5, 90))

	res := Horizontal(ds, HorizontalOptions{Parameters: auditParams})
	tied := res.Ties["bold"]
	if len(tied) != 2 {
		t.Fatalf("tied parameters = %v, want RepetitionTime and FlipAngle", tied)
	}
}

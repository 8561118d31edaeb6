package dataset

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/qctools/mrqc/internal/protocol"
)

func testSeq(t *testing.T, name string, params map[string]protocol.Value) *protocol.Sequence {
	t.Helper()
	seq := protocol.NewSequence(name, "")
	for k, v := range params {
		seq.Set(k, v)
	}
	return seq
}

func TestAddReplacesSameCoordinates(t *testing.T) {
	ds := New("study", "/data/study", StyleDICOM)
	first := testSeq(t, "t1w", map[string]protocol.Value{"FlipAngle": protocol.Number(8)})
	second := testSeq(t, "t1w", map[string]protocol.Value{"FlipAngle": protocol.Number(9)})

	ds.Add("sub-01", "1", "t1w", "1", first)
	ds.Add("sub-01", "1", "t1w", "1", second)

	if len(ds.Entries) != 1 {
		t.Fatalf("expected 1 entry after replacement, got %d", len(ds.Entries))
	}
	got, _ := ds.Entries[0].Seq.Get("FlipAngle")
	if got.Num != 9 {
		t.Errorf("expected replaced FlipAngle 9, got %v", got)
	}
}

func TestSequenceAndSubjectIDs(t *testing.T) {
	ds := New("study", "/data/study", StyleDICOM)
	ds.Add("sub-02", "1", "bold", "1", testSeq(t, "bold", nil))
	ds.Add("sub-01", "1", "t1w", "1", testSeq(t, "t1w", nil))
	ds.Add("sub-01", "1", "bold", "1", testSeq(t, "bold", nil))
	ds.Add("sub-01", "2", "bold", "1", testSeq(t, "bold", nil))

	if got := ds.SequenceIDs(); !reflect.DeepEqual(got, []string{"bold", "t1w"}) {
		t.Errorf("SequenceIDs = %v", got)
	}
	if got := ds.SubjectIDs("bold"); !reflect.DeepEqual(got, []string{"sub-01", "sub-02"}) {
		t.Errorf("SubjectIDs(bold) = %v", got)
	}
	if got := ds.SubjectCount("t1w"); got != 1 {
		t.Errorf("SubjectCount(t1w) = %d, want 1", got)
	}
}

func TestTraverseHorizontalOrder(t *testing.T) {
	ds := New("study", "/data/study", StyleDICOM)
	ds.Add("sub-02", "1", "bold", "1", testSeq(t, "bold", nil))
	ds.Add("sub-01", "1", "bold", "2", testSeq(t, "bold", nil))
	ds.Add("sub-01", "1", "bold", "1", testSeq(t, "bold", nil))

	entries := ds.TraverseHorizontal("bold")
	var got [][3]string
	for _, e := range entries {
		got = append(got, [3]string{e.Subject, e.Session, e.Run})
	}
	want := [][3]string{
		{"sub-01", "1", "1"},
		{"sub-01", "1", "2"},
		{"sub-02", "1", "1"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("traverse order = %v, want %v", got, want)
	}
}

func TestTraverseVerticalPairUsesFirstRun(t *testing.T) {
	ds := New("study", "/data/study", StyleDICOM)
	ds.Add("sub-01", "1", "bold", "2", testSeq(t, "bold", nil))
	ds.Add("sub-01", "1", "bold", "1", testSeq(t, "bold", nil))
	ds.Add("sub-01", "1", "epi", "1", testSeq(t, "epi", nil))
	// sub-02 has only one of the two sequences and must be skipped
	ds.Add("sub-02", "1", "bold", "1", testSeq(t, "bold", nil))

	pairs := ds.TraverseVerticalPair("bold", "epi")
	if len(pairs) != 1 {
		t.Fatalf("expected 1 pair, got %d", len(pairs))
	}
	p := pairs[0]
	if p.Subject != "sub-01" || p.RunA != "1" || p.RunB != "1" {
		t.Errorf("unexpected pair %+v", p)
	}
}

func TestGroupBySequenceStratifies(t *testing.T) {
	ds := New("study", "/data/study", StyleDICOM)
	mag := testSeq(t, "fmap", map[string]protocol.Value{"ImageType": protocol.String("M")})
	phase := testSeq(t, "fmap", map[string]protocol.Value{"ImageType": protocol.String("P")})
	ds.Add("sub-01", "1", "fmap", "1", mag)
	ds.Add("sub-01", "1", "fmap", "2", phase)

	groups := ds.GroupBySequence("ImageType")
	if len(groups) != 2 {
		t.Fatalf("expected 2 stratified groups, got %d: %v", len(groups), groups)
	}
	for _, id := range []string{"fmap_ATTR_M", "fmap_ATTR_P"} {
		if len(groups[id]) != 1 {
			t.Errorf("group %q missing", id)
		} else if groups[id][0].Subject != "sub-01" {
			t.Errorf("group %q subject = %q", id, groups[id][0].Subject)
		}
	}
}

func TestMerge(t *testing.T) {
	a := New("study", "/data/study", StyleDICOM)
	a.Add("sub-01", "1", "t1w", "1", testSeq(t, "t1w", nil))
	b := NewLike(a)
	b.Add("sub-02", "1", "t1w", "1", testSeq(t, "t1w", nil))

	a.Merge(b)
	if got := a.SubjectCount("t1w"); got != 2 {
		t.Errorf("SubjectCount after merge = %d, want 2", got)
	}
}

func TestCacheRoundTrip(t *testing.T) {
	ds := New("study", "/data/study", StyleBIDS)
	ds.Add("sub-01", "1", "bold", "1", testSeq(t, "bold", map[string]protocol.Value{
		"RepetitionTime": protocol.Number(2.0),
		"Manufacturer":   protocol.String("siemens"),
	}))

	path := filepath.Join(t.TempDir(), "cache", "study.mrqc.gz")
	if err := ds.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Name != "study" || got.Style != StyleBIDS || len(got.Entries) != 1 {
		t.Fatalf("round trip lost data: %+v", got)
	}
	tr, ok := got.Entries[0].Seq.Get("RepetitionTime")
	if !ok || tr.Num != 2.0 {
		t.Errorf("RepetitionTime after round trip = %v", tr)
	}
}

func TestLoadMissingCache(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.gz")); err == nil {
		t.Fatal("expected error for missing cache file")
	}
}

func TestNewReaderUnknownStyle(t *testing.T) {
	if _, err := NewReader(Style("nifti")); !errors.Is(err, ErrUnknownStyle) {
		t.Errorf("expected ErrUnknownStyle, got %v", err)
	}
}

func TestIsPhantomSeries(t *testing.T) {
	cases := []struct {
		name string
		want bool
	}{
		{"ACR_Phantom_T1", true},
		{"localizer_32ch", true},
		{"AAHead_Scout", true},
		{"t1_mprage_sag", false},
	}
	for _, tc := range cases {
		if got := isPhantomSeries(tc.name); got != tc.want {
			t.Errorf("isPhantomSeries(%q) = %v, want %v", tc.name, got, tc.want)
		}
	}
}

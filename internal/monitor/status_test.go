package monitor

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestStatusDiff(t *testing.T) {
	prev := &Status{
		NonCompliant: map[string][]string{
			"bold": {"sub-01"},
		},
	}
	cur := &Status{
		NonCompliant: map[string][]string{
			"bold": {"sub-01", "sub-02"},
			"t1w":  {"sub-03"},
		},
	}

	fresh := cur.Diff(prev)
	want := map[string][]string{
		"bold": {"sub-02"},
		"t1w":  {"sub-03"},
	}
	if !reflect.DeepEqual(fresh, want) {
		t.Errorf("Diff = %v, want %v", fresh, want)
	}
}

func TestStatusDiffNoHistory(t *testing.T) {
	cur := &Status{NonCompliant: map[string][]string{"bold": {"sub-01"}}}
	fresh := cur.Diff(nil)
	if !reflect.DeepEqual(fresh, cur.NonCompliant) {
		t.Errorf("Diff(nil) = %v, want everything fresh", fresh)
	}
}

func TestStatusDiffNothingNew(t *testing.T) {
	s := &Status{NonCompliant: map[string][]string{"bold": {"sub-01"}}}
	if fresh := s.Diff(s); len(fresh) != 0 {
		t.Errorf("Diff with itself = %v, want empty", fresh)
	}
}

func TestStatusRoundTrip(t *testing.T) {
	path := StatusPath(t.TempDir(), "study")
	s := &Status{
		Dataset:      "study",
		GeneratedAt:  time.Now().UTC(),
		RunID:        "run-1",
		NonCompliant: map[string][]string{"bold": {"sub-01"}},
	}
	if err := s.Write(path); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := LoadStatus(path)
	if err != nil {
		t.Fatalf("LoadStatus: %v", err)
	}
	if got.Dataset != "study" || got.RunID != "run-1" {
		t.Errorf("unexpected status %+v", got)
	}
	if !reflect.DeepEqual(got.NonCompliant, s.NonCompliant) {
		t.Errorf("NonCompliant = %v", got.NonCompliant)
	}
}

func TestLoadStatusMissing(t *testing.T) {
	got, err := LoadStatus(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("LoadStatus: %v", err)
	}
	if got != nil {
		t.Errorf("missing status = %+v, want nil", got)
	}
}

func TestChangedSubjects(t *testing.T) {
	root := t.TempDir()
	old := filepath.Join(root, "sub-01", "anat")
	recent := filepath.Join(root, "sub-02", "anat")
	for _, dir := range []string{old, recent} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	stale := time.Now().Add(-48 * time.Hour)
	if err := os.WriteFile(filepath.Join(old, "scan.json"), []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(filepath.Join(old, "scan.json"), stale, stale); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(recent, "scan.json"), []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}

	changed, err := ChangedSubjects(root, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("ChangedSubjects: %v", err)
	}
	if !reflect.DeepEqual(changed, []string{"sub-02"}) {
		t.Errorf("changed = %v, want [sub-02]", changed)
	}

	none, err := ChangedSubjects(root, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(none) != 0 {
		t.Errorf("future cutoff found changes: %v", none)
	}
}

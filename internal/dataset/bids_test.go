package dataset

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeBIDSFixture(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	files := map[string]string{
		"dataset_description.json": `{"Name": "demo", "BIDSVersion": "1.8.0"}`,

		"sub-01/anat/sub-01_T1w.json": `{
			"RepetitionTime": 2.3, "FlipAngle": 8, "Manufacturer": "Siemens"
		}`,
		"sub-01/func/sub-01_task-rest_run-01_bold.json": `{
			"RepetitionTime": 2.0, "FlipAngle": 77
		}`,
		"sub-01/func/sub-01_task-rest_run-02_bold.json": `{
			"RepetitionTime": 2.0, "FlipAngle": 77
		}`,
		"sub-02/ses-02/anat/sub-02_ses-02_T1w.json": `{
			"RepetitionTime": 2.3, "FlipAngle": 8
		}`,
		"sub-03/anat/sub-03_acq-localizer_T1w.json": `{"RepetitionTime": 0.1}`,
	}
	for rel, body := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func TestBIDSRead(t *testing.T) {
	root := writeBIDSFixture(t)
	r, err := NewReader(StyleBIDS)
	if err != nil {
		t.Fatal(err)
	}

	var calls int
	ds, err := r.Read(context.Background(), root, ReadOptions{
		Workers:  2,
		Progress: func(done, total int) { calls++ },
	})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	if ds.Style != StyleBIDS {
		t.Errorf("style = %q", ds.Style)
	}
	if got := ds.SequenceIDs(); len(got) != 2 || got[0] != "T1w" || got[1] != "bold" {
		t.Errorf("SequenceIDs = %v, want [T1w bold]", got)
	}
	// sub-03 carries only a localizer and must be filtered out
	if got := ds.SubjectIDs("T1w"); len(got) != 2 {
		t.Errorf("T1w subjects = %v, want sub-01 and sub-02", got)
	}
	if calls == 0 {
		t.Error("progress callback never invoked")
	}

	runs := ds.TraverseHorizontal("bold")
	if len(runs) != 2 {
		t.Fatalf("bold runs = %d, want 2", len(runs))
	}
	if runs[0].Run != "01" || runs[1].Run != "02" {
		t.Errorf("bold run ids = %q, %q", runs[0].Run, runs[1].Run)
	}

	tr, ok := runs[0].Seq.Get("RepetitionTime")
	if !ok || tr.Num != 2.0 {
		t.Errorf("RepetitionTime = %v", tr)
	}
}

func TestBIDSReadSessionDefault(t *testing.T) {
	root := writeBIDSFixture(t)
	r, _ := NewReader(StyleBIDS)
	ds, err := r.Read(context.Background(), root, ReadOptions{})
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range ds.TraverseHorizontal("T1w") {
		switch e.Subject {
		case "sub-01":
			if e.Session != "1" {
				t.Errorf("sub-01 session = %q, want default 1", e.Session)
			}
		case "sub-02":
			if e.Session != "ses-02" {
				t.Errorf("sub-02 session = %q, want ses-02", e.Session)
			}
		}
	}
}

func TestBIDSReadIncludePhantom(t *testing.T) {
	root := writeBIDSFixture(t)
	r, _ := NewReader(StyleBIDS)
	ds, err := r.Read(context.Background(), root, ReadOptions{IncludePhantom: true})
	if err != nil {
		t.Fatal(err)
	}
	if got := ds.SubjectIDs("T1w"); len(got) != 3 {
		t.Errorf("T1w subjects with phantoms = %v, want 3", got)
	}
}

func TestBIDSReadEmpty(t *testing.T) {
	r, _ := NewReader(StyleBIDS)
	if _, err := r.Read(context.Background(), t.TempDir(), ReadOptions{}); !errors.Is(err, ErrEmptyDataset) {
		t.Errorf("expected ErrEmptyDataset, got %v", err)
	}
}

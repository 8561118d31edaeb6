package monitor

import (
	"context"
	"fmt"
	"net/smtp"
	"os"
	"path/filepath"
	"testing"

	"github.com/qctools/mrqc/internal/config"
	"github.com/qctools/mrqc/internal/dataset"
)

func writeSidecar(t *testing.T, root, rel, body string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func monitorFixture(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	for i, tr := range []float64{2.0, 2.0, 2.0, 2.5} {
		sub := fmt.Sprintf("sub-%02d", i+1)
		writeSidecar(t, root, sub+"/func/"+sub+"_bold.json",
			fmt.Sprintf(`{"RepetitionTime": %g, "FlipAngle": 77}`, tr))
	}
	return root
}

func TestRunFirstPass(t *testing.T) {
	source := monitorFixture(t)
	out := t.TempDir()

	res, err := Run(context.Background(), RunOptions{
		Name:   "study",
		Source: source,
		Style:  dataset.StyleBIDS,
		OutDir: out,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Skipped {
		t.Fatal("first pass must not be skipped")
	}

	for _, path := range []string{res.ReportPath, res.ScoresPath, res.CachePath} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("missing artifact %s: %v", path, err)
		}
	}
	if _, err := Last(RecordsPath(out, "study")); err != nil {
		t.Errorf("no record appended: %v", err)
	}

	// everything non-compliant is fresh on the first pass
	if got := res.Fresh["bold"]; len(got) != 1 || got[0] != "sub-04" {
		t.Errorf("Fresh = %v, want bold: [sub-04]", res.Fresh)
	}
}

func TestRunSkipsWhenUnchanged(t *testing.T) {
	source := monitorFixture(t)
	out := t.TempDir()
	opts := RunOptions{Name: "study", Source: source, Style: dataset.StyleBIDS, OutDir: out}

	if _, err := Run(context.Background(), opts); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	res, err := Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if !res.Skipped {
		t.Error("unchanged source must skip the re-audit")
	}
}

func TestRunForceReauditsWithoutFreshFindings(t *testing.T) {
	source := monitorFixture(t)
	out := t.TempDir()
	opts := RunOptions{Name: "study", Source: source, Style: dataset.StyleBIDS, OutDir: out}

	if _, err := Run(context.Background(), opts); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	opts.Force = true
	res, err := Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("forced Run: %v", err)
	}
	if res.Skipped {
		t.Error("forced run must not skip")
	}
	if len(res.Fresh) != 0 {
		t.Errorf("nothing new was acquired, Fresh = %v", res.Fresh)
	}
}

func TestRunConfigSnapshotFeedsAlert(t *testing.T) {
	source := monitorFixture(t)
	out := t.TempDir()

	snapped := ""
	origSnap := renderSnapshot
	renderSnapshot = func(_ context.Context, _, pngPath string) error {
		snapped = pngPath
		return os.WriteFile(pngPath, []byte("png"), 0o644)
	}
	defer func() { renderSnapshot = origSnap }()

	mailed := false
	origSend := sendMail
	sendMail = func(string, smtp.Auth, string, []string, []byte) error {
		mailed = true
		return nil
	}
	defer func() { sendMail = origSend }()

	// the config knob alone must trigger the snapshot, no flag set
	cfg := config.Default()
	cfg.Report.Snapshot = true

	_, err := Run(context.Background(), RunOptions{
		Name:   "study",
		Source: source,
		Style:  dataset.StyleBIDS,
		OutDir: out,
		Config: cfg,
		Alert: &AlertConfig{
			Host: "mail.example.org",
			Port: 25,
			From: "mrqc@example.org",
			To:   []string{"qa@example.org"},
		},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if snapped == "" {
		t.Error("report.snapshot in the config did not render a snapshot")
	}
	if !mailed {
		t.Error("fresh deviations did not trigger an alert")
	}
}

func TestRunPicksUpNewSubject(t *testing.T) {
	source := monitorFixture(t)
	out := t.TempDir()
	opts := RunOptions{Name: "study", Source: source, Style: dataset.StyleBIDS, OutDir: out}

	if _, err := Run(context.Background(), opts); err != nil {
		t.Fatalf("first Run: %v", err)
	}

	// a new deviant subject arrives
	writeSidecar(t, source, "sub-05/func/sub-05_bold.json",
		`{"RepetitionTime": 3.0, "FlipAngle": 77}`)

	res, err := Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if res.Skipped {
		t.Fatal("new subject must trigger a re-audit")
	}
	if got := res.Fresh["bold"]; len(got) != 1 || got[0] != "sub-05" {
		t.Errorf("Fresh = %v, want bold: [sub-05]", res.Fresh)
	}
}

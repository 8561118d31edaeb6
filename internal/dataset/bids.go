package dataset

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/qctools/mrqc/internal/protocol"
)

// bidsReader scans a BIDS tree, reading acquisition parameters from the
// JSON sidecar files next to the imaging data.
type bidsReader struct{}

// top-level BIDS metadata files that are not sidecars.
var bidsNonSidecars = map[string]bool{
	"dataset_description.json": true,
	"participants.json":        true,
	"genetic_info.json":        true,
	"samples.json":             true,
}

// Read walks sub-*/[ses-*/]<datatype>/*.json sidecars and builds a dataset.
func (r *bidsReader) Read(ctx context.Context, source string, opts ReadOptions) (*Dataset, error) {
	info, err := os.Stat(source)
	if err != nil {
		return nil, fmt.Errorf("reading BIDS source: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("BIDS source is not a directory: %s", source)
	}

	var sidecars []string
	err = filepath.WalkDir(source, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		if !strings.HasSuffix(name, ".json") || bidsNonSidecars[name] {
			return nil
		}
		if rel, err := filepath.Rel(source, path); err != nil || !strings.HasPrefix(rel, "sub-") {
			return nil
		}
		sidecars = append(sidecars, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking BIDS tree: %w", err)
	}
	if len(sidecars) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyDataset, source)
	}

	ds := New(datasetName(opts.Name, source), source, StyleBIDS)

	var (
		mu   sync.Mutex
		done int
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.workers())

	for _, path := range sidecars {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			entry, err := parseSidecar(source, path)

			mu.Lock()
			defer mu.Unlock()
			done++
			opts.report(done, len(sidecars))
			if err != nil {
				// unreadable sidecars are skipped, not fatal
				return nil
			}
			// phantom markers appear in the acq- entity, so the
			// whole filename is checked, not just the suffix
			if entry == nil || (!opts.IncludePhantom && isPhantomSeries(filepath.Base(path))) {
				return nil
			}
			ds.Add(entry.Subject, entry.Session, entry.SeqID, entry.Run, entry.Seq)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if ds.IsEmpty() {
		return nil, fmt.Errorf("%w: %s", ErrEmptyDataset, source)
	}
	return ds, nil
}

// parseSidecar reads one BIDS JSON sidecar into an entry. Returns nil for
// files that do not belong to an imaging run.
func parseSidecar(root, path string) (*Entry, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return nil, err
	}

	base := strings.TrimSuffix(filepath.Base(path), ".json")
	tokens := strings.Split(base, "_")
	if len(tokens) < 2 {
		return nil, nil
	}

	subject, session, run := "", "1", "1"
	for _, tok := range tokens[:len(tokens)-1] {
		switch {
		case strings.HasPrefix(tok, "sub-"):
			subject = tok
		case strings.HasPrefix(tok, "ses-"):
			session = tok
		case strings.HasPrefix(tok, "run-"):
			run = strings.TrimPrefix(tok, "run-")
		}
	}
	if subject == "" {
		return nil, nil
	}

	// the trailing token is the BIDS suffix naming the sequence (bold,
	// T1w, epi, ...)
	seqID := tokens[len(tokens)-1]

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading sidecar %s: %w", rel, err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing sidecar %s: %w", rel, err)
	}

	seq := protocol.NewSequence(seqID, path)
	for name, v := range raw {
		seq.Set(name, protocol.FromAny(v))
	}
	return &Entry{Subject: subject, Session: session, SeqID: seqID, Run: run, Seq: seq}, nil
}

// datasetName resolves the dataset name, defaulting to the source base name.
func datasetName(name, source string) string {
	if name != "" {
		return name
	}
	return filepath.Base(filepath.Clean(source))
}

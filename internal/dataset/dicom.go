package dataset

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
	"golang.org/x/sync/errgroup"

	"github.com/qctools/mrqc/internal/protocol"
)

// dicomReader scans a nested DICOM tree. Each terminal folder holding .dcm
// files is treated as one series; parameters are decoded from the first
// slice, which carries the acquisition settings shared by the series.
type dicomReader struct{}

// acquisitionTags maps parameter names onto the DICOM tags they are decoded
// from. The set mirrors the parameters a horizontal audit checks by default.
var acquisitionTags = map[string]tag.Tag{
	"Manufacturer":               tag.Manufacturer,
	"ManufacturerModelName":      tag.ManufacturerModelName,
	"BodyPartExamined":           tag.BodyPartExamined,
	"RepetitionTime":             tag.RepetitionTime,
	"EchoTime":                   tag.EchoTime,
	"FlipAngle":                  tag.FlipAngle,
	"MagneticFieldStrength":      tag.MagneticFieldStrength,
	"EchoTrainLength":            tag.EchoTrainLength,
	"PixelBandwidth":             tag.PixelBandwidth,
	"NumberOfPhaseEncodingSteps": tag.NumberOfPhaseEncodingSteps,
	"SliceThickness":             tag.SliceThickness,
	"PhaseEncodingDirection":     tag.InPlanePhaseEncodingDirection,
}

// Read builds a dataset from a directory of DICOM series.
func (r *dicomReader) Read(ctx context.Context, source string, opts ReadOptions) (*Dataset, error) {
	folders, err := terminalDICOMFolders(source)
	if err != nil {
		return nil, err
	}
	if len(folders) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyDataset, source)
	}

	ds := New(datasetName(opts.Name, source), source, StyleDICOM)
	return ds, readDICOMFolders(ctx, ds, folders, opts, dicomIdentity)
}

// seriesFolder is one terminal folder holding the slices of a DICOM series.
type seriesFolder struct {
	path  string
	first string // lexicographically first .dcm file
}

// terminalDICOMFolders finds every folder under root that directly holds
// .dcm files.
func terminalDICOMFolders(root string) ([]seriesFolder, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("reading DICOM source: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("DICOM source is not a directory: %s", root)
	}

	byFolder := make(map[string][]string)
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".dcm") {
			return nil
		}
		dir := filepath.Dir(path)
		byFolder[dir] = append(byFolder[dir], path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking DICOM tree: %w", err)
	}

	folders := make([]seriesFolder, 0, len(byFolder))
	for dir, files := range byFolder {
		sort.Strings(files)
		folders = append(folders, seriesFolder{path: dir, first: files[0]})
	}
	sort.Slice(folders, func(i, j int) bool { return folders[i].path < folders[j].path })
	return folders, nil
}

// identityFunc derives the subject/session/run coordinates of a series from
// the decoded header and folder path. DICOM and XNAT layouts differ here.
type identityFunc func(root string, folder seriesFolder, hdr dicom.Dataset) (subject, session, run string)

// readDICOMFolders parses series folders concurrently into ds.
func readDICOMFolders(ctx context.Context, ds *Dataset, folders []seriesFolder, opts ReadOptions, identity identityFunc) error {
	var (
		mu   sync.Mutex
		done int
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.workers())

	for _, folder := range folders {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			hdr, err := dicom.ParseFile(folder.first, nil, dicom.SkipPixelData())

			mu.Lock()
			defer mu.Unlock()
			done++
			opts.report(done, len(folders))
			if err != nil {
				// unreadable series are skipped, not fatal
				return nil
			}

			seqID := seriesName(hdr)
			if seqID == "" || (!opts.IncludePhantom && isPhantomSeries(seqID)) {
				return nil
			}
			subject, session, run := identity(ds.Source, folder, hdr)
			if subject == "" {
				return nil
			}

			seq := protocol.NewSequence(seqID, folder.path)
			for name, t := range acquisitionTags {
				seq.Set(name, tagValue(hdr, t))
			}
			ds.Add(subject, session, seqID, run, seq)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if ds.IsEmpty() {
		return fmt.Errorf("%w: %s", ErrEmptyDataset, ds.Source)
	}
	return nil
}

// dicomIdentity reads subject/session/run from the series header.
func dicomIdentity(_ string, folder seriesFolder, hdr dicom.Dataset) (string, string, string) {
	subject := stringTag(hdr, tag.PatientID)
	if subject == "" {
		subject = filepath.Base(filepath.Dir(folder.path))
	}
	session := stringTag(hdr, tag.StudyDate)
	if session == "" {
		session = "1"
	}
	run := stringTag(hdr, tag.SeriesNumber)
	if run == "" {
		run = "1"
	}
	return subject, session, run
}

// seriesName returns the normalized series description.
func seriesName(hdr dicom.Dataset) string {
	name := stringTag(hdr, tag.SeriesDescription)
	if name == "" {
		name = stringTag(hdr, tag.ProtocolName)
	}
	name = strings.TrimSpace(name)
	return strings.ReplaceAll(name, " ", "_")
}

// stringTag extracts a tag as a plain string, empty when absent.
func stringTag(hdr dicom.Dataset, t tag.Tag) string {
	el, err := hdr.FindElementByTag(t)
	if err != nil {
		return ""
	}
	return firstString(el.Value.GetValue())
}

// tagValue converts a DICOM element into a protocol value. Decimal and
// integer strings become numbers; multi-valued elements become lists.
func tagValue(hdr dicom.Dataset, t tag.Tag) protocol.Value {
	el, err := hdr.FindElementByTag(t)
	if err != nil {
		return protocol.Unspecified()
	}

	switch v := el.Value.GetValue().(type) {
	case []string:
		if len(v) == 0 {
			return protocol.Unspecified()
		}
		if len(v) == 1 {
			if f, err := strconv.ParseFloat(strings.TrimSpace(v[0]), 64); err == nil {
				return protocol.Number(f)
			}
			return protocol.String(strings.TrimSpace(v[0]))
		}
		return protocol.List(v)
	case []int:
		if len(v) == 0 {
			return protocol.Unspecified()
		}
		if len(v) == 1 {
			return protocol.Number(float64(v[0]))
		}
		items := make([]string, len(v))
		for i, n := range v {
			items[i] = strconv.Itoa(n)
		}
		return protocol.List(items)
	case []float64:
		if len(v) == 0 {
			return protocol.Unspecified()
		}
		if len(v) == 1 {
			return protocol.Number(v[0])
		}
		items := make([]string, len(v))
		for i, f := range v {
			items[i] = strconv.FormatFloat(f, 'g', -1, 64)
		}
		return protocol.List(items)
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return protocol.Number(f)
		}
		return protocol.String(strings.TrimSpace(v))
	default:
		return protocol.Unspecified()
	}
}

// firstString returns the first element of a string-ish DICOM value.
func firstString(v any) string {
	switch x := v.(type) {
	case []string:
		if len(x) > 0 {
			return strings.TrimSpace(x[0])
		}
	case string:
		return strings.TrimSpace(x)
	case []int:
		if len(x) > 0 {
			return strconv.Itoa(x[0])
		}
	}
	return ""
}

package dataset

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// xnatReader handles trees exported from an XNAT archive, where the
// directory layout, not the headers, is authoritative for identity:
//
//	<root>/<subject>/<experiment>/SCANS/<scan>/DICOM/*.dcm
type xnatReader struct{}

func (r *xnatReader) Read(ctx context.Context, source string, opts ReadOptions) (*Dataset, error) {
	folders, err := terminalDICOMFolders(source)
	if err != nil {
		return nil, err
	}
	if len(folders) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyDataset, source)
	}

	ds := New(datasetName(opts.Name, source), source, StyleXNAT)
	return ds, readDICOMFolders(ctx, ds, folders, opts, xnatIdentity)
}

// xnatIdentity derives coordinates from the path under the archive root,
// falling back to headers when the layout is shallower than expected.
func xnatIdentity(root string, folder seriesFolder, hdr dicom.Dataset) (string, string, string) {
	rel, err := filepath.Rel(root, folder.path)
	if err != nil {
		return dicomIdentity(root, folder, hdr)
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) < 2 {
		return dicomIdentity(root, folder, hdr)
	}

	subject := parts[0]
	session := parts[1]
	run := stringTag(hdr, tag.SeriesNumber)
	if run == "" {
		// the scan folder under SCANS carries the scan number
		for i, p := range parts {
			if strings.EqualFold(p, "SCANS") && i+1 < len(parts) {
				run = parts[i+1]
				break
			}
		}
	}
	if run == "" {
		run = "1"
	}
	return subject, session, run
}

package dataset

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
)

var (
	// ErrUnknownStyle indicates an unsupported dataset style.
	ErrUnknownStyle = errors.New("unknown dataset style")

	// ErrEmptyDataset indicates a scan that produced no entries.
	ErrEmptyDataset = errors.New("no imaging data found in source")
)

// ReadOptions tune a dataset scan.
type ReadOptions struct {
	// Name identifies the dataset in reports and records. Defaults to the
	// base name of the source directory.
	Name string
	// IncludePhantom keeps phantom, localizer and head-scout series that
	// are filtered out by default.
	IncludePhantom bool
	// Workers bounds the parse concurrency. Zero means GOMAXPROCS.
	Workers int
	// Progress, when set, is called after every parsed unit with the
	// number of completed and total units.
	Progress func(done, total int)
}

// workers resolves the effective parse concurrency.
func (o ReadOptions) workers() int {
	if o.Workers > 0 {
		return o.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// report invokes the progress callback when one is registered.
func (o ReadOptions) report(done, total int) {
	if o.Progress != nil {
		o.Progress(done, total)
	}
}

// Reader builds a Dataset from a source directory.
type Reader interface {
	Read(ctx context.Context, source string, opts ReadOptions) (*Dataset, error)
}

// NewReader returns the reader for a dataset style.
func NewReader(style Style) (Reader, error) {
	switch style {
	case StyleBIDS:
		return &bidsReader{}, nil
	case StyleDICOM:
		return &dicomReader{}, nil
	case StyleXNAT:
		return &xnatReader{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStyle, style)
	}
}

// phantomSubstrings mark series that are not subject acquisitions.
var phantomSubstrings = []string{"phantom", "localizer", "aahead_scout", "aahscout"}

// isPhantomSeries reports whether a sequence name denotes a phantom or
// scout series.
func isPhantomSeries(name string) bool {
	lower := strings.ToLower(name)
	for _, s := range phantomSubstrings {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

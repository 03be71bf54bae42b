// Package manifest resolves the parts of a sliced file.
//
// The key of a sliced file points at its manifest object. The parts are
// every other object sharing the manifest's prefix, and their listing order
// is the order in which they concatenate back into the file's content.
package manifest

import (
	"context"
	"strings"

	"github.com/kbcstorage/storage-go/errors"
	"github.com/kbcstorage/storage-go/storagetypes"
)

// Suffix ends the key of every manifest object.
const Suffix = "manifest"

// Lister lists objects under a prefix in store order.
type Lister interface {
	List(ctx context.Context, bucket, prefix string) ([]storagetypes.Object, error)
}

// Part is one slice of a sliced file.
type Part struct {
	Index  int
	Bucket string
	Key    string
	Size   int64
}

// Prefix returns the listing prefix for a manifest key.
func Prefix(manifestKey string) string {
	return strings.TrimSuffix(manifestKey, Suffix)
}

// ResolveParts lists the parts of a sliced file. An empty listing means
// the manifest is corrupt and is never retried.
func ResolveParts(ctx context.Context, lister Lister, fileID int64, loc storagetypes.Locator) ([]Part, error) {
	if loc.Kind != storagetypes.LocatorSliced {
		return nil, errors.NewFileError("manifest", fileID, errors.ErrInvalidInput).
			WithMessage("file is not sliced")
	}

	prefix := Prefix(loc.Key)
	objects, err := lister.List(ctx, loc.Bucket, prefix)
	if err != nil {
		return nil, errors.NewFileError("manifest", fileID, err)
	}

	parts := make([]Part, 0, len(objects))
	for _, obj := range objects {
		if obj.Key == loc.Key || strings.HasSuffix(obj.Key, "/") {
			continue
		}
		parts = append(parts, Part{
			Index:  len(parts),
			Bucket: loc.Bucket,
			Key:    obj.Key,
			Size:   obj.Size,
		})
	}

	if len(parts) == 0 {
		return nil, errors.NewFileError("manifest", fileID, errors.ErrCorruptManifest).
			WithLocator(loc.Bucket, prefix).
			WithMessage("no parts under manifest prefix")
	}

	return parts, nil
}

// TotalSize sums the sizes of parts.
func TotalSize(parts []Part) int64 {
	var total int64
	for _, p := range parts {
		total += p.Size
	}
	return total
}

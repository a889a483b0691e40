// Package location derives where and when a photo was taken from the EXIF
// block embedded in it.
package location

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"
)

// Kinds of absence. Every error returned from this package wraps exactly one.
var (
	ErrMissingInput        = errors.New("image not found")
	ErrUnreadableContainer = errors.New("metadata not decodable")
	ErrAbsentMetadata      = errors.New("metadata absent")
	ErrConversionFailure   = errors.New("coordinate not convertible")
)

// TagSet is the embedded tag dictionary of one image keyed by symbolic name.
type TagSet struct {
	Tags map[exif.FieldName]*tiff.Tag

	// raw TIFF payload and its byte order, needed to follow IFD pointers.
	raw   []byte
	order binary.ByteOrder
}

// Get returns the tag stored under name.
func (ts *TagSet) Get(name exif.FieldName) (*tiff.Tag, bool) {
	if ts == nil {
		return nil, false
	}
	t, ok := ts.Tags[name]
	return t, ok
}

// Len returns the number of tags in the set.
func (ts *TagSet) Len() int {
	if ts == nil {
		return 0
	}
	return len(ts.Tags)
}

type tagCollector map[exif.FieldName]*tiff.Tag

func (c tagCollector) Walk(name exif.FieldName, tag *tiff.Tag) error {
	c[name] = tag
	return nil
}

// ReadTags opens the image at path and decodes its tag dictionary. The file
// is closed before ReadTags returns, on every path.
func ReadTags(path string) (*TagSet, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMissingInput, path)
		}
		return nil, fmt.Errorf("%w: open %s: %v", ErrUnreadableContainer, path, err)
	}
	defer f.Close()

	return decodeTags(f)
}

func decodeTags(r io.Reader) (ts *TagSet, err error) {
	// goexif indexes into tag payloads without bounds checks on some
	// corrupt inputs.
	defer func() {
		if p := recover(); p != nil {
			ts, err = nil, fmt.Errorf("%w: decoder panic: %v", ErrUnreadableContainer, p)
		}
	}()

	x, err := exif.Decode(r)
	if err != nil {
		switch {
		case errors.Is(err, io.EOF):
			return nil, fmt.Errorf("%w: no embedded tags", ErrAbsentMetadata)
		case x == nil || exif.IsCriticalError(err):
			return nil, fmt.Errorf("%w: %v", ErrUnreadableContainer, err)
		}
		// Sub-directory errors leave the primary directory usable.
	}

	tags := make(tagCollector)
	if err := x.Walk(tags); err != nil {
		return nil, fmt.Errorf("%w: walk: %v", ErrUnreadableContainer, err)
	}
	if len(tags) == 0 {
		return nil, fmt.Errorf("%w: no embedded tags", ErrAbsentMetadata)
	}

	ts = &TagSet{Tags: tags, raw: x.Raw}
	if x.Tiff != nil {
		ts.order = x.Tiff.Order
	}
	return ts, nil
}

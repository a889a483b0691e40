package location

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"
)

// PositionBlock is the GPS sub-directory of an image keyed by symbolic GPS
// tag name.
type PositionBlock map[exif.FieldName]*tiff.Tag

// GPS IFD tag ids, EXIF 2.32 section 4.6.6.
var gpsTagNames = map[uint16]exif.FieldName{
	0x00: "GPSVersionID",
	0x01: "GPSLatitudeRef",
	0x02: "GPSLatitude",
	0x03: "GPSLongitudeRef",
	0x04: "GPSLongitude",
	0x05: "GPSAltitudeRef",
	0x06: "GPSAltitude",
	0x07: "GPSTimeStamp",
	0x08: "GPSSatellites",
	0x09: "GPSStatus",
	0x0A: "GPSMeasureMode",
	0x0B: "GPSDOP",
	0x0C: "GPSSpeedRef",
	0x0D: "GPSSpeed",
	0x0E: "GPSTrackRef",
	0x0F: "GPSTrack",
	0x10: "GPSImgDirectionRef",
	0x11: "GPSImgDirection",
	0x12: "GPSMapDatum",
	0x13: "GPSDestLatitudeRef",
	0x14: "GPSDestLatitude",
	0x15: "GPSDestLongitudeRef",
	0x16: "GPSDestLongitude",
	0x17: "GPSDestBearingRef",
	0x18: "GPSDestBearing",
	0x19: "GPSDestDistanceRef",
	0x1A: "GPSDestDistance",
	0x1B: "GPSProcessingMethod",
	0x1C: "GPSAreaInformation",
	0x1D: "GPSDateStamp",
	0x1E: "GPSDifferential",
	0x1F: "GPSHPositioningError",
}

// GPSTagName returns the symbolic name of a GPS tag id. Ids outside the
// table get a stable hex name so they are kept rather than dropped.
func GPSTagName(id uint16) exif.FieldName {
	if name, ok := gpsTagNames[id]; ok {
		return name
	}
	return exif.FieldName(fmt.Sprintf("GPSTag0x%04X", id))
}

// ExtractPosition follows the GPS pointer in ts and decodes the directory it
// points at.
func ExtractPosition(ts *TagSet) (PositionBlock, error) {
	ptr, ok := ts.Get(exif.GPSInfoIFDPointer)
	if !ok {
		return nil, fmt.Errorf("%w: no GPS block", ErrAbsentMetadata)
	}
	offset, err := ptr.Int64(0)
	if err != nil {
		return nil, fmt.Errorf("%w: GPS pointer: %v", ErrUnreadableContainer, err)
	}
	if offset <= 0 || offset >= int64(len(ts.raw)) || ts.order == nil {
		return nil, fmt.Errorf("%w: GPS pointer %d outside %d byte payload", ErrUnreadableContainer, offset, len(ts.raw))
	}

	dir, err := decodeDir(ts.raw, offset, ts)
	if err != nil {
		return nil, err
	}

	block := make(PositionBlock, len(dir.Tags))
	for _, tag := range dir.Tags {
		block[GPSTagName(tag.Id)] = tag
	}
	if len(block) == 0 {
		return nil, fmt.Errorf("%w: empty GPS block", ErrAbsentMetadata)
	}
	return block, nil
}

func decodeDir(raw []byte, offset int64, ts *TagSet) (dir *tiff.Dir, err error) {
	defer func() {
		if p := recover(); p != nil {
			dir, err = nil, fmt.Errorf("%w: GPS block panic: %v", ErrUnreadableContainer, p)
		}
	}()

	r := bytes.NewReader(raw)
	if _, err := r.Seek(offset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("%w: seek GPS block: %v", ErrUnreadableContainer, err)
	}
	dir, _, err = tiff.DecodeDir(r, ts.order)
	if err != nil {
		return nil, fmt.Errorf("%w: GPS block: %v", ErrUnreadableContainer, err)
	}
	return dir, nil
}

// DateStamp returns the GPS date stamp with NUL padding and blanks removed.
func (b PositionBlock) DateStamp() (string, error) {
	tag, ok := b[exif.GPSDateStamp]
	if !ok {
		return "", fmt.Errorf("%w: no date stamp", ErrAbsentMetadata)
	}
	s, err := tag.StringVal()
	if err != nil {
		return "", fmt.Errorf("%w: date stamp: %v", ErrConversionFailure, err)
	}
	s = strings.TrimSpace(strings.TrimRight(s, "\x00"))
	if s == "" {
		return "", fmt.Errorf("%w: empty date stamp", ErrAbsentMetadata)
	}
	return s, nil
}

// Axis reads the coordinate stored under value with its hemisphere under ref.
func (b PositionBlock) Axis(value, ref exif.FieldName) (GeoCoordinate, error) {
	v, ok := b[value]
	if !ok {
		return GeoCoordinate{}, fmt.Errorf("%w: no %s", ErrAbsentMetadata, value)
	}
	r, ok := b[ref]
	if !ok {
		return GeoCoordinate{}, fmt.Errorf("%w: no %s", ErrAbsentMetadata, ref)
	}
	return parseCoordinate(v, r)
}

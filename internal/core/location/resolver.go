package location

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"

	"github.com/rwcarlsen/goexif/exif"

	"github.com/samirrijal/civiclens/internal/core/domain"
)

const mapsQueryURL = "https://www.google.com/maps?q="

// MapReference builds the map-service link for a decimal position.
func MapReference(lat, lon float64) string {
	return mapsQueryURL + strconv.FormatFloat(lat, 'f', -1, 64) + "," + strconv.FormatFloat(lon, 'f', -1, 64)
}

// Resolver turns an image path into a LocationReport.
type Resolver struct {
	logger *slog.Logger
}

// NewResolver creates a Resolver. A nil logger falls back to slog.Default.
func NewResolver(logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{logger: logger}
}

// Resolve never fails. Each missing or malformed piece leaves only the
// fields that depend on it nil; a coordinate of exactly 0.0 is a valid value.
func (r *Resolver) Resolve(path string) domain.LocationReport {
	var report domain.LocationReport

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			err = fmt.Errorf("%w: %s", ErrMissingInput, path)
		}
		r.absent(path, "image", err)
		return report
	}

	tags, err := ReadTags(path)
	if err != nil {
		r.absent(path, "tags", err)
		return report
	}

	block, err := ExtractPosition(tags)
	if err != nil {
		r.absent(path, "gps", err)
		return report
	}

	if stamp, err := block.DateStamp(); err == nil {
		report.CaptureDateStamp = &stamp
	} else {
		r.absent(path, "date_stamp", err)
	}

	report.Latitude = r.axis(path, block, exif.GPSLatitude, exif.GPSLatitudeRef)
	report.Longitude = r.axis(path, block, exif.GPSLongitude, exif.GPSLongitudeRef)

	if report.Latitude != nil && report.Longitude != nil {
		ref := MapReference(*report.Latitude, *report.Longitude)
		report.MapReference = &ref
	}
	return report
}

func (r *Resolver) axis(path string, block PositionBlock, value, ref exif.FieldName) *float64 {
	c, err := block.Axis(value, ref)
	if err == nil {
		var d float64
		if d, err = Convert(c); err == nil {
			return &d
		}
	}
	r.absent(path, string(value), err)
	return nil
}

func (r *Resolver) absent(path, field string, err error) {
	r.logger.Debug("location field absent",
		"path", path,
		"field", field,
		"kind", Kind(err),
		"error", err,
	)
}

// Kind names the absence category err belongs to, for logs and metrics.
func Kind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrMissingInput):
		return "missing_input"
	case errors.Is(err, ErrAbsentMetadata):
		return "absent_metadata"
	case errors.Is(err, ErrConversionFailure):
		return "conversion_failure"
	default:
		return "unreadable_container"
	}
}

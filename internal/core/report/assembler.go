// Package report merges the location and classification results for one
// image into the flat record handed to sinks.
package report

import (
	"github.com/samirrijal/civiclens/internal/core/domain"
)

// LocationResolver produces the location half of a record.
type LocationResolver interface {
	Resolve(path string) domain.LocationReport
}

// Assembler builds AnalysisRecords.
type Assembler struct {
	locations LocationResolver
}

// NewAssembler creates an Assembler backed by locations.
func NewAssembler(locations LocationResolver) *Assembler {
	return &Assembler{locations: locations}
}

// Assemble resolves imagePath once and merges the result with the
// classification computed for the same image.
func (a *Assembler) Assemble(imagePath string, classification *string) domain.AnalysisRecord {
	rec, _ := a.AssembleWithLocation(imagePath, classification)
	return rec
}

// AssembleWithLocation is Assemble that also hands back the location report
// the record was built from.
func (a *Assembler) AssembleWithLocation(imagePath string, classification *string) (domain.AnalysisRecord, domain.LocationReport) {
	loc := a.locations.Resolve(imagePath)
	return Merge(loc, classification), loc
}

// Merge combines a location report and a classification. Fields are copied
// independently; none gates another.
func Merge(loc domain.LocationReport, classification *string) domain.AnalysisRecord {
	return domain.AnalysisRecord{
		GPSDateStamp:   clone(loc.CaptureDateStamp),
		Classification: clone(classification),
		Location:       clone(loc.MapReference),
	}
}

func clone(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

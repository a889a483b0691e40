package domain

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by repositories when no row matches.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput marks caller mistakes such as out-of-range coordinates.
	ErrInvalidInput = errors.New("invalid input")
)

// Labels a classifier may assign to an uploaded photo.
const (
	LabelPothole = "pothole"
	LabelGarbage = "garbage"
)

// Labels is the closed set of categories accepted from a classifier.
var Labels = []string{LabelPothole, LabelGarbage}

// AnalysisRecord is the flat record handed to sinks. All three keys are
// always present; unresolved values serialize as null.
type AnalysisRecord struct {
	GPSDateStamp   *string `json:"GPSDateStamp"`
	Classification *string `json:"Classification"`
	Location       *string `json:"Location"`
}

// Issue is a stored analysis of one uploaded photo.
type Issue struct {
	ID string `json:"id"`
	AnalysisRecord
	Point     *GeoPoint `json:"point,omitempty"`
	ImageKey  string    `json:"image_key,omitempty"`
	Filename  string    `json:"filename,omitempty"`
	Distance  *float64  `json:"distance,omitempty"` // computed field
	CreatedAt time.Time `json:"created_at"`
}

// Label returns the classification, or "unclassified" when there is none.
func (i *Issue) Label() string {
	if i.Classification == nil {
		return "unclassified"
	}
	return *i.Classification
}

// Event types carried by IssueEvent.
const (
	EventIssueCreated = "created"
	EventIssueUpdated = "updated"
)

// IssueEvent is broadcast whenever an issue is stored or reclassified.
type IssueEvent struct {
	Type  string `json:"type"`
	Issue *Issue `json:"issue"`
}

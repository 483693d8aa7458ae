package models

import (
	"fmt"
	"strings"
	"time"
)

// ScenarioIDLayout is the timestamp layout embedded in scenario IDs.
const ScenarioIDLayout = "20060102150405"

// ScenarioDateLayout is the layout used when listing scenarios.
const ScenarioDateLayout = "2006.01.02 15:04"

// ScenarioRecord is a persisted, generated nursing scenario.
type ScenarioRecord struct {
	ID              string            `json:"id"`
	PatientInfo     map[string]string `json:"patient_info"`
	PatientOverview string            `json:"patient_overview"`
	Scenario        string            `json:"scenario"`
	CreatedAt       time.Time         `json:"created_at"`
}

// ScenarioInput is the input for saving or editing a scenario.
type ScenarioInput struct {
	Disease         string            `json:"disease"`
	Purpose         string            `json:"purpose"`
	PatientInfo     map[string]string `json:"patient_info"`
	PatientOverview string            `json:"patient_overview"`
	Scenario        string            `json:"scenario"`
}

// Validate checks the fields that make up the scenario ID.
func (in *ScenarioInput) Validate() error {
	if strings.TrimSpace(in.Disease) == "" {
		return InvalidInputf("disease cannot be empty")
	}
	if strings.TrimSpace(in.Purpose) == "" {
		return InvalidInputf("purpose cannot be empty")
	}
	if strings.Contains(in.Purpose, "_") {
		return InvalidInputf("purpose cannot contain '_'")
	}
	return nil
}

// ScenarioID identifies a scenario by disease, purpose, and creation time.
type ScenarioID struct {
	Disease   string
	Purpose   string
	Timestamp time.Time
}

// NewScenarioID builds the composite key "<disease>_<purpose>_<YYYYMMDDHHMMSS>".
// Spaces are removed from the disease name.
func NewScenarioID(disease, purpose string, at time.Time) string {
	return fmt.Sprintf("%s_%s_%s",
		strings.ReplaceAll(strings.TrimSpace(disease), " ", ""),
		strings.TrimSpace(purpose),
		at.Format(ScenarioIDLayout))
}

// ParseScenarioID splits id from the right into disease, purpose, and timestamp.
func ParseScenarioID(id string) (ScenarioID, error) {
	last := strings.LastIndex(id, "_")
	if last <= 0 {
		return ScenarioID{}, InvalidInputf("malformed scenario id %q", id)
	}
	rest, stamp := id[:last], id[last+1:]
	mid := strings.LastIndex(rest, "_")
	if mid <= 0 || mid == len(rest)-1 {
		return ScenarioID{}, InvalidInputf("malformed scenario id %q", id)
	}
	ts, err := time.ParseInLocation(ScenarioIDLayout, stamp, time.Local)
	if err != nil {
		return ScenarioID{}, InvalidInputf("malformed scenario timestamp in %q", id)
	}
	return ScenarioID{Disease: rest[:mid], Purpose: rest[mid+1:], Timestamp: ts}, nil
}

// String rebuilds the composite key.
func (s ScenarioID) String() string {
	return NewScenarioID(s.Disease, s.Purpose, s.Timestamp)
}

// Title is the display title of the scenario.
func (s ScenarioID) Title() string {
	return fmt.Sprintf("%s %s 시나리오", s.Disease, s.Purpose)
}

// ScenarioSummary is a row in the scenario listing.
type ScenarioSummary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Date      string    `json:"date"`
	CreatedAt time.Time `json:"created_at"`
}

// Summary returns the listing row for a scenario. Records with an
// unparsable ID fall back to the raw ID as title.
func (r *ScenarioRecord) Summary() ScenarioSummary {
	s := ScenarioSummary{ID: r.ID, Title: r.ID, CreatedAt: r.CreatedAt, Date: r.CreatedAt.Format(ScenarioDateLayout)}
	if sid, err := ParseScenarioID(r.ID); err == nil {
		s.Title = sid.Title()
		s.Date = sid.Timestamp.Format(ScenarioDateLayout)
	}
	return s
}

// Scenario sort orders accepted by the listing.
const (
	SortDateDesc  = "date_desc"
	SortDateAsc   = "date_asc"
	SortTitleAsc  = "title_asc"
	SortTitleDesc = "title_desc"
)

// ScenarioListQuery filters and orders the scenario listing.
type ScenarioListQuery struct {
	Query string `json:"q,omitempty"`
	Sort  string `json:"sort,omitempty"`
}

// Validate defaults the sort order and rejects unknown values.
func (q *ScenarioListQuery) Validate() error {
	switch q.Sort {
	case "":
		q.Sort = SortDateDesc
	case SortDateDesc, SortDateAsc, SortTitleAsc, SortTitleDesc:
	default:
		return InvalidInputf("unknown sort %q", q.Sort)
	}
	return nil
}

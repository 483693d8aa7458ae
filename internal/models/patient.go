package models

import "strings"

// Placeholder values used in patient details.
const (
	// ValueRandom asks the model to invent a value.
	ValueRandom = "랜덤"
	// ValueNotApplicable marks a field the user did not select.
	ValueNotApplicable = "해당사항 없음"
)

// PatientFieldInput is one patient field as chosen in the form.
type PatientFieldInput struct {
	Name    string   `json:"name"`
	Checked bool     `json:"checked"`
	Values  []string `json:"values,omitempty"`
}

// Value resolves the field into the value sent to the model.
func (f PatientFieldInput) Value() string {
	if !f.Checked {
		return ValueNotApplicable
	}
	var parts []string
	for _, v := range f.Values {
		if v = strings.TrimSpace(v); v != "" {
			parts = append(parts, v)
		}
	}
	if len(parts) == 0 {
		return ValueRandom
	}
	return strings.Join(parts, ", ")
}

// PatientDetailsRequest asks for the random patient fields to be filled in.
type PatientDetailsRequest struct {
	Disease    string              `json:"disease"`
	Purpose    string              `json:"purpose"`
	Fields     []PatientFieldInput `json:"fields"`
	Background []string            `json:"background_ids,omitempty"`
}

// Validate checks the required fields.
func (r *PatientDetailsRequest) Validate() error {
	return requireDiseaseAndPurpose(r.Disease, r.Purpose)
}

// PatientDetailsResponse holds the filled-in patient details.
type PatientDetailsResponse struct {
	Details map[string]string `json:"details"`
	Summary string            `json:"summary,omitempty"`
}

// OverviewRequest asks for a patient overview.
type OverviewRequest struct {
	Disease    string            `json:"disease"`
	Purpose    string            `json:"purpose"`
	Details    map[string]string `json:"details"`
	Background []string          `json:"background_ids,omitempty"`
	Summary    string            `json:"summary,omitempty"`
}

// Validate checks the required fields.
func (r *OverviewRequest) Validate() error {
	return requireDiseaseAndPurpose(r.Disease, r.Purpose)
}

// NursingScenarioRequest asks for a staged nursing scenario.
type NursingScenarioRequest struct {
	Purpose    string            `json:"purpose"`
	Details    map[string]string `json:"details"`
	Background []string          `json:"background_ids,omitempty"`
	Summary    string            `json:"summary,omitempty"`
}

// Validate checks the required fields.
func (r *NursingScenarioRequest) Validate() error {
	if strings.TrimSpace(r.Purpose) == "" {
		return InvalidInputf("purpose cannot be empty")
	}
	if len(r.Details) == 0 {
		return InvalidInputf("patient details cannot be empty")
	}
	return nil
}

// RevisionRequest asks for a scenario to be rewritten with user feedback.
type RevisionRequest struct {
	Scenario string `json:"scenario"`
	Feedback string `json:"feedback"`
}

// Validate checks the required fields.
func (r *RevisionRequest) Validate() error {
	if strings.TrimSpace(r.Scenario) == "" {
		return InvalidInputf("scenario cannot be empty")
	}
	if strings.TrimSpace(r.Feedback) == "" {
		return InvalidInputf("feedback cannot be empty")
	}
	return nil
}

// SummaryRequest asks for background information to be summarized.
type SummaryRequest struct {
	Background []string `json:"background_ids,omitempty"`
	Text       string   `json:"text,omitempty"`
	MaxLength  int      `json:"max_length,omitempty"`
}

// Validate checks that there is something to summarize.
func (r *SummaryRequest) Validate() error {
	if len(r.Background) == 0 && strings.TrimSpace(r.Text) == "" {
		return InvalidInputf("nothing to summarize")
	}
	if r.MaxLength < 0 {
		return InvalidInputf("max_length cannot be negative")
	}
	return nil
}

// GenerationResponse is the text produced by a generation call.
type GenerationResponse struct {
	Text    string `json:"text"`
	Summary string `json:"summary,omitempty"`
}

func requireDiseaseAndPurpose(disease, purpose string) error {
	if strings.TrimSpace(disease) == "" {
		return InvalidInputf("disease cannot be empty")
	}
	if strings.TrimSpace(purpose) == "" {
		return InvalidInputf("purpose cannot be empty")
	}
	return nil
}

package models

import (
	"errors"
	"reflect"
	"testing"
)

func TestSearchQuery_Validate(t *testing.T) {
	tests := []struct {
		name    string
		query   *SearchQuery
		wantErr bool
		want    string
	}{
		{"empty query", &SearchQuery{Query: ""}, true, ""},
		{"blank query", &SearchQuery{Query: "   "}, true, ""},
		{"defaults candidates", &SearchQuery{Query: "fever"}, false, CandidatesAll},
		{"keyword candidates", &SearchQuery{Query: "fever", Candidates: CandidatesKeyword}, false, CandidatesKeyword},
		{"unknown candidates", &SearchQuery{Query: "fever", Candidates: "bm25"}, true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.query.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidInput) {
				t.Errorf("error should wrap ErrInvalidInput: %v", err)
			}
			if !tt.wantErr && tt.query.Candidates != tt.want {
				t.Errorf("Candidates = %q, want %q", tt.query.Candidates, tt.want)
			}
		})
	}
}

func TestQueryVariants(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"diabetes", []string{"diabetes", "diabete"}},
		{"fever", []string{"fever"}},
		{"  fever ", []string{"fever"}},
		{"sss", []string{"sss"}},
		{"", nil},
	}
	for _, tt := range tests {
		if got := QueryVariants(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("QueryVariants(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestPatientFieldInput_Value(t *testing.T) {
	tests := []struct {
		name  string
		field PatientFieldInput
		want  string
	}{
		{"unchecked", PatientFieldInput{Name: "이름", Values: []string{"홍길동"}}, ValueNotApplicable},
		{"checked empty", PatientFieldInput{Name: "이름", Checked: true}, ValueRandom},
		{"checked blank", PatientFieldInput{Name: "이름", Checked: true, Values: []string{" "}}, ValueRandom},
		{"single", PatientFieldInput{Name: "나이", Checked: true, Values: []string{"45"}}, "45"},
		{"options", PatientFieldInput{Name: "과거병력", Checked: true, Values: []string{"고혈압", "천식"}}, "고혈압, 천식"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.field.Value(); got != tt.want {
				t.Errorf("Value() = %q, want %q", got, tt.want)
			}
		})
	}
}

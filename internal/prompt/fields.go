// Package prompt builds the generation prompts for patient details, overviews,
// nursing scenarios, revisions and background summaries.
package prompt

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hyperjump/nursesim/internal/models"
)

// Strategy says how a field is rendered into the patient details prompt
// when its value is random.
type Strategy int

const (
	// Literal fields are emitted as "key: value" or a generic random request.
	Literal Strategy = iota
	// RandomizeWithHint fields ask for a value related to the disease.
	RandomizeWithHint
	// DeriveFromSiblings fields ask for a value suited to other fields (age and gender).
	DeriveFromSiblings
)

// Patient field names.
const (
	FieldName          = "이름"
	FieldAge           = "나이"
	FieldGender        = "성별"
	FieldWeight        = "몸무게"
	FieldHeight        = "키"
	FieldChiefComplain = "주호소"
	FieldAdmission     = "입원경로"
	FieldSocial        = "사회력"
	FieldHistory       = "과거병력"
	FieldSurgery       = "과거수술력"
	FieldFamily        = "가족력"
	FieldMedication    = "약물"
	FieldDiagnosis     = "1차 진단명"
	FieldNotes         = "추가사항"
)

// Field describes one patient field.
type Field struct {
	Name     string   `json:"name"`
	Options  []string `json:"options,omitempty"`
	Strategy Strategy `json:"-"`
}

// Fields is the ordered patient field table.
var Fields = []Field{
	{Name: FieldName},
	{Name: FieldAge},
	{Name: FieldGender, Options: []string{"남성", "여성"}},
	{Name: FieldWeight},
	{Name: FieldHeight},
	{Name: FieldChiefComplain, Options: []string{"복통", "가슴 통증", "호흡곤란", "두통"}, Strategy: RandomizeWithHint},
	{Name: FieldAdmission, Options: []string{"응급실", "외래에서 의사의 추천", "정기검진 후", "사고 후"}},
	{Name: FieldSocial},
	{Name: FieldHistory, Options: []string{"고혈압", "당뇨병", "천식", "심부전"}},
	{Name: FieldSurgery, Options: []string{"맹장수술", "심장판막수술", "갑상선 제거술"}},
	{Name: FieldFamily, Options: []string{"고혈압", "경화증", "암", "심장병"}},
	{Name: FieldMedication, Options: []string{"아스피린"}, Strategy: DeriveFromSiblings},
	{Name: FieldDiagnosis, Options: []string{"심근경색", "폐렴", "뇌졸중", "급성 신부전"}, Strategy: RandomizeWithHint},
	{Name: FieldNotes},
}

var fieldIndex = func() map[string]int {
	m := make(map[string]int, len(Fields))
	for i, f := range Fields {
		m[f.Name] = i
	}
	return m
}()

// LookupField returns the field named name.
func LookupField(name string) (Field, bool) {
	i, ok := fieldIndex[name]
	if !ok {
		return Field{}, false
	}
	return Fields[i], true
}

// BuildDetails resolves the form inputs into patient details. Every field in
// the table is present in the result; fields without an input are not applicable.
func BuildDetails(inputs []models.PatientFieldInput) (map[string]string, error) {
	details := make(map[string]string, len(Fields))
	for _, f := range Fields {
		details[f.Name] = models.ValueNotApplicable
	}
	for _, in := range inputs {
		if _, ok := fieldIndex[in.Name]; !ok {
			return nil, models.InvalidInputf("unknown patient field %q", in.Name)
		}
		details[in.Name] = in.Value()
	}
	return details, nil
}

// OrderedKeys returns the keys of details in field table order, followed by
// any other keys sorted.
func OrderedKeys(details map[string]string) []string {
	keys := make([]string, 0, len(details))
	for _, f := range Fields {
		if _, ok := details[f.Name]; ok {
			keys = append(keys, f.Name)
		}
	}
	var extra []string
	for k := range details {
		if _, ok := fieldIndex[k]; !ok {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	return append(keys, extra...)
}

// FormatPatientInfo renders details as "key: value" pairs joined with ", ".
func FormatPatientInfo(details map[string]string) string {
	parts := make([]string, 0, len(details))
	for _, k := range OrderedKeys(details) {
		parts = append(parts, fmt.Sprintf("%s: %s", k, details[k]))
	}
	return strings.Join(parts, ", ")
}

// ApplyGeneratedDetails returns a copy of details where every random field
// is replaced by the value the model produced for it. Lines that are not
// "key: value" pairs and fields that already had a value are ignored.
func ApplyGeneratedDetails(details map[string]string, response string) map[string]string {
	out := make(map[string]string, len(details))
	for k, v := range details {
		out[k] = v
	}
	for _, line := range strings.Split(response, "\n") {
		key, value, ok := strings.Cut(line, ": ")
		if !ok {
			continue
		}
		key = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(key), "-*•◦"))
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if cur, exists := out[key]; exists && cur == models.ValueRandom {
			out[key] = value
		}
	}
	return out
}

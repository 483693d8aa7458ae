package prompt

import (
	"fmt"
	"strings"

	"github.com/hyperjump/nursesim/internal/llm"
	"github.com/hyperjump/nursesim/internal/models"
)

// System roles for each generation call.
const (
	RolePatientDetails  = "You are a medical professional generating random patient details."
	RolePatientOverview = "You are a nursing department's professor, help the user to generate a patient information."
	RoleNursingScenario = "You are a nursing department's professor. Help the user to generate a nusing scenerio."
	RoleRevision        = "You are a nursing department's professor. Help the user to revise a nursing scenario based on provided details and feedback."
	RoleSummary         = "You are a professional nursing text summarizer."
)

// DefaultSummaryLength is the summary length limit in characters.
const DefaultSummaryLength = 500

const unknownValue = "정보 없음"

// Builder assembles generation requests.
type Builder struct {
	model   string
	limiter *TokenLimiter
}

// NewBuilder returns a builder for model. A nil limiter leaves prompts uncapped.
func NewBuilder(model string, limiter *TokenLimiter) *Builder {
	return &Builder{model: model, limiter: limiter}
}

func (b *Builder) request(role, prompt string) llm.Request {
	return llm.Request{SystemRole: role, UserPrompt: b.limiter.Fit(prompt), Model: b.model}
}

// PatientDetails asks the model to fill in every random field of details.
func (b *Builder) PatientDetails(disease, purpose string, details map[string]string, summary string) llm.Request {
	var sb strings.Builder
	if summary != "" {
		sb.WriteString("다음 요약 정보, 질병명, 목적을 바탕으로 환자 정보를 생성해주세요:\n")
		fmt.Fprintf(&sb, "요약 정보: %s\n", summary)
	} else {
		sb.WriteString("다음 질병명과 목적에 맞춰 환자 정보를 생성해주세요:\n")
	}
	fmt.Fprintf(&sb, "질병명: %s\n", disease)
	fmt.Fprintf(&sb, "목적: %s\n", purpose)

	age := valueOr(details, FieldAge)
	gender := valueOr(details, FieldGender)

	for _, key := range OrderedKeys(details) {
		value := details[key]
		if value != models.ValueRandom {
			fmt.Fprintf(&sb, "%s: %s\n", key, value)
			continue
		}
		field, _ := LookupField(key)
		switch field.Strategy {
		case RandomizeWithHint:
			fmt.Fprintf(&sb, "%s: %s과 관련된 내용으로 생성해주세요.\n", key, disease)
		case DeriveFromSiblings:
			fmt.Fprintf(&sb, "%s: %s세 %s에 적합한 일반적인 약물을 제안해주세요.\n", key, age, gender)
		default:
			fmt.Fprintf(&sb, "%s: 랜덤 값 생성해주세요.\n", key)
		}
	}

	if details[FieldWeight] == models.ValueRandom && details[FieldHeight] == models.ValueRandom {
		fmt.Fprintf(&sb, "\n나이: %s세와 성별: %s에 적당한 몸무게와 키를 제안해주세요.\n", age, gender)
	}

	return b.request(RolePatientDetails, sb.String())
}

// PatientOverview asks for the patient overview followed by a detailed situation.
func (b *Builder) PatientOverview(disease, purpose string, details map[string]string, summary string) llm.Request {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s에 대한 %s 시뮬레이션 시나리오를 작성해주세요. ", disease, purpose)
	fmt.Fprintf(&sb, "환자 정보는 다음과 같습니다: %s. ", FormatPatientInfo(details))
	sb.WriteString("문서의 구성은 환자 개요(Brief description of client), 자세한 상황 설명 순으로 작성해주세요. ")
	sb.WriteString("해당사항 없음을 입력으로 받으면 없음으로 작성해주세요. ")
	sb.WriteString("환자개요는 한글로 작성해주세요.")
	sb.WriteString("각 환자개요 사이에 적절한 줄바꿈을 포함하여 작성해주세요.\n")
	sb.WriteString("\n\n")
	sb.WriteString("환자 개요(Brief description of client):\n")
	for _, item := range overviewOutline {
		fmt.Fprintf(&sb, "◦ %s:\n", item)
	}
	sb.WriteString("\n배경 지식:\n")
	sb.WriteString("배경 지식은 한글로 작성해주세요.")
	sb.WriteString(summary)
	sb.WriteString("\n")
	sb.WriteString("\n자세한 상황 설명을 작성해주세요.\n")

	return b.request(RolePatientOverview, sb.String())
}

var overviewOutline = []string{
	"질병명(Disease Name)",
	"목적(Purpose)",
	"이름(Name)",
	"성별(Gender)",
	"나이(Age)",
	"키(Height)",
	"몸무게(Weight)",
	"주호소(Chief complaint)",
	"입원경로(History of present illness)",
	"사회력(Social history)",
	"과거질병력(Past medical history)",
	"과거수술력(Past surgical history & date)",
	"가족력(Family medical history)",
	"약물(Medication)",
	"1차 진단명(Primary diagnosis)",
}

var scenarioStages = []string{
	"Initial Stage",
	"1st state/interval",
	"2nd state/interval",
	"3rd state/interval",
}

// NursingScenario asks for a four-stage nursing scenario.
func (b *Builder) NursingScenario(purpose string, details map[string]string, summary string) llm.Request {
	var sb strings.Builder
	sb.WriteString("다음 환자 정보에 대한 시뮬레이션 시나리오를 작성해주세요:\n")
	fmt.Fprintf(&sb, "%s\n", FormatPatientInfo(details))
	fmt.Fprintf(&sb, "목적: %s\n", purpose)
	sb.WriteString("각 단계는 환자의 상태, 예상 간호 중재, 브리핑을 위한 교육 포인트를 포함해야 합니다. ")
	sb.WriteString("각 항목과 단계 사이에 적절한 줄바꿈을 포함하여 작성해주세요.\n")
	sb.WriteString("\n배경 지식:\n")
	sb.WriteString("배경 지식은 한글로 작성해주세요.")
	sb.WriteString(summary)
	sb.WriteString("\n")
	sb.WriteString("\n시나리오 단계의 목차는 꼭 아래 목차를 사용해줘.")
	sb.WriteString("시나리오 단계(예시):\n")
	for i, stage := range scenarioStages {
		fmt.Fprintf(&sb, "%d. %s:\n", i+1, stage)
		sb.WriteString("  - 환자 상태: [환자의 상태 설명]\n")
		sb.WriteString("  - 예상 간호 중재: [예상 간호 중재 설명]\n")
		sb.WriteString("  - 교육 포인트: [교육 포인트 설명]\n")
	}

	return b.request(RoleNursingScenario, sb.String())
}

// Revision asks for an edited scenario to be rewritten with feedback.
func (b *Builder) Revision(scenario, feedback string) llm.Request {
	var sb strings.Builder
	sb.WriteString("다음은 수정된 간호 시나리오입니다. 이 시나리오와 사용자 피드백을 바탕으로 환자 시나리오를 다시 작성해주세요:\n")
	fmt.Fprintf(&sb, "수정된 시나리오:\n%s\n", scenario)
	fmt.Fprintf(&sb, "피드백:\n%s\n", feedback)
	return b.request(RoleRevision, sb.String())
}

// Summary asks for info to be summarized in at most maxLength characters.
// The assembled prompt, instruction included, is capped like every other request.
func (b *Builder) Summary(info string, maxLength int) llm.Request {
	if maxLength <= 0 {
		maxLength = DefaultSummaryLength
	}
	prompt := fmt.Sprintf("다음 정보를 해당 질병정보의 원인, 증상, 예방, 치료방법 대해서 자세하게 요약해 주세요. 요약은 최대 %d자로 제한됩니다:\n%s\n", maxLength, info)
	return b.request(RoleSummary, prompt)
}

func valueOr(details map[string]string, key string) string {
	if v, ok := details[key]; ok && v != "" {
		return v
	}
	return unknownValue
}

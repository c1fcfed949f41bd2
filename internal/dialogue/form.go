package dialogue

import (
	"regexp"
	"strings"
)

// FormField describes one intake-form input for the client to render.
type FormField struct {
	Name     string   `json:"name"`
	Label    string   `json:"label"`
	Type     string   `json:"type"`
	Required bool     `json:"required"`
	Options  []string `json:"options,omitempty"`
}

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// consentValues are the form values accepted as an affirmative privacy
// consent. Checkbox widgets and plain-text clients submit different spellings.
var consentValues = map[string]struct{}{
	"true": {},
	"yes":  {},
	"はい":   {},
	"1":    {},
	"on":   {},
}

// intakeFormFields is the customer-intake descriptor emitted on entry to
// the final confirmation state.
func intakeFormFields() []FormField {
	return []FormField{
		{Name: "name", Label: "お名前", Type: "text", Required: true},
		{Name: "kana", Label: "フリガナ", Type: "text", Required: false},
		{Name: "email", Label: "メールアドレス", Type: "email", Required: true},
		{Name: "phone", Label: "お電話番号", Type: "tel", Required: true},
		{Name: "birth_date", Label: "生年月日", Type: "date", Required: false},
		{Name: "privacy_consent", Label: "個人情報の取り扱いに同意する", Type: "checkbox", Required: true},
	}
}

// validateIntakeForm checks a submission against the descriptor. It returns
// one user-facing message per problem, in field order; an empty slice means
// the submission is acceptable.
func validateIntakeForm(form map[string]string) []string {
	var problems []string

	for _, field := range intakeFormFields() {
		value := strings.TrimSpace(form[field.Name])

		if field.Required && value == "" {
			problems = append(problems, "「"+field.Label+"」は必須項目です。")
			continue
		}
		if value == "" {
			continue
		}

		switch field.Name {
		case "email":
			if !emailPattern.MatchString(value) {
				problems = append(problems, "メールアドレスの形式が正しくありません。")
			}
		case "privacy_consent":
			if _, ok := consentValues[strings.ToLower(value)]; !ok {
				problems = append(problems, "個人情報の取り扱いへの同意が必要です。")
			}
		}
	}

	return problems
}

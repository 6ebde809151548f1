package excuse

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sakif/excuse-me/internal/apperror"
	"github.com/sakif/excuse-me/internal/model"
)

// Field is a parsed selectable value: either one of the fixed options or
// custom free text. The zero value is invalid.
type Field struct {
	value  string
	custom bool
}

// Fixed returns a Field holding one of the enumerated options.
func Fixed(v string) Field { return Field{value: v} }

// Custom returns a Field holding user-typed text.
func Custom(text string) Field { return Field{value: text, custom: true} }

// IsCustom reports whether the field came from free text.
func (f Field) IsCustom() bool { return f.custom }

// String returns the concrete description carried by the field.
func (f Field) String() string { return f.value }

// Validate checks raw submitted fields and resolves them into a request.
//
// For each selectable field:
//   - "Custom text" → the companion custom field's value is used; it must be
//     present and non-empty after trimming.
//   - anything else → must be one of that field's options.
//
// Fields not named in this package are ignored, as are custom fields whose
// selector isn't "Custom text". Failures are apperror.ValidationFailed with
// Field set to the offending form field.
func Validate(raw map[string]string) (model.ExcuseRequest, error) {
	resolved := make([]string, len(selectables))

	for i, sel := range selectables {
		f, err := parseField(raw, sel)
		if err != nil {
			return model.ExcuseRequest{}, err
		}
		resolved[i] = f.String()
	}

	return model.ExcuseRequest{
		Situation:    resolved[0],
		Tone:         resolved[1],
		TargetPerson: resolved[2],
		UrgencyLevel: resolved[3],
	}, nil
}

func parseField(raw map[string]string, sel selectable) (Field, error) {
	v := strings.TrimSpace(raw[sel.name])
	if v == "" {
		return Field{}, apperror.ValidationFailed(sel.name, fmt.Sprintf("%s is required", sel.label))
	}

	if v != CustomText {
		if !contains(sel.options, v) {
			return Field{}, apperror.ValidationFailed(sel.name, fmt.Sprintf("%q is not a valid %s", v, sel.label))
		}
		return Fixed(v), nil
	}

	text := strings.TrimSpace(raw[sel.customName])
	if text == "" {
		return Field{}, apperror.ValidationFailed(sel.customName, fmt.Sprintf("custom %s text is required", sel.label))
	}
	if utf8.RuneCountInString(text) > MaxCustomTextLength {
		return Field{}, apperror.ValidationFailed(sel.customName,
			fmt.Sprintf("custom %s text must be %d characters or less", sel.label, MaxCustomTextLength))
	}
	return Custom(text), nil
}

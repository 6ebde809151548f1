// Package excuse turns raw submitted form fields into a resolved
// model.ExcuseRequest.
//
// Each of the four selectable fields is either one of a fixed list of values
// or the sentinel "Custom text", in which case a companion free-text field
// supplies the actual description. The values in this file are part of the
// wire/form contract and must match the front end exactly.
package excuse

// CustomText is the sentinel option that switches a field to free text.
const CustomText = "Custom text"

// MaxCustomTextLength bounds user-typed overrides (in runes).
const MaxCustomTextLength = 500

// Form field names.
const (
	FieldSituation          = "situation"
	FieldTone               = "tone"
	FieldTargetPerson       = "targetPerson"
	FieldUrgencyLevel       = "urgencyLevel"
	FieldCustomText         = "customText"
	FieldCustomTone         = "customTone"
	FieldCustomTargetPerson = "customTargetPerson"
	FieldCustomUrgencyLevel = "customUrgencyLevel"
)

var (
	Situations = []string{
		"Skip college",
		"Assignment delay",
		"Late to office",
		"Cancel meeting",
		"Cancel date",
		"Family excuse",
		"Travel excuse",
		CustomText,
	}

	Tones = []string{"Professional", "Funny", "Emotional", "Casual", "Dramatic", CustomText}

	TargetPersons = []string{"Boss", "Teacher", "Friend", "Partner", "Parent", CustomText}

	UrgencyLevels = []string{"Low", "Medium", "Emergency", CustomText}
)

// selectable describes one enumerated field and the free-text field that
// overrides it.
type selectable struct {
	name       string
	customName string
	label      string // used in error messages
	options    []string
}

var selectables = []selectable{
	{FieldSituation, FieldCustomText, "situation", Situations},
	{FieldTone, FieldCustomTone, "tone", Tones},
	{FieldTargetPerson, FieldCustomTargetPerson, "target person", TargetPersons},
	{FieldUrgencyLevel, FieldCustomUrgencyLevel, "urgency level", UrgencyLevels},
}

// Options is the set of choices served to the UI for populating the form.
type Options struct {
	Situations    []string `json:"situation"`
	Tones         []string `json:"tone"`
	TargetPersons []string `json:"targetPerson"`
	UrgencyLevels []string `json:"urgencyLevel"`
}

// AllOptions returns a copy of every enumeration.
func AllOptions() Options {
	return Options{
		Situations:    append([]string(nil), Situations...),
		Tones:         append([]string(nil), Tones...),
		TargetPersons: append([]string(nil), TargetPersons...),
		UrgencyLevels: append([]string(nil), UrgencyLevels...),
	}
}

func contains(options []string, v string) bool {
	for _, o := range options {
		if o == v {
			return true
		}
	}
	return false
}

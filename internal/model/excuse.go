package model

// ExcuseRequest is a fully resolved generation request.
//
// Every field holds a concrete description ("Late to office", or whatever
// the user typed as custom text). The "Custom text" sentinel never appears
// here; package excuse resolves it before building this struct.
type ExcuseRequest struct {
	Situation    string `json:"situation"`
	Tone         string `json:"tone"`
	TargetPerson string `json:"targetPerson"`
	UrgencyLevel string `json:"urgencyLevel"`
}

// UsageSummary is the caller-facing view of an account's quota for today.
type UsageSummary struct {
	Plan      Plan `json:"plan"`
	Used      int  `json:"used"`
	Limit     int  `json:"limit"`
	Remaining int  `json:"remaining"`
	Unlimited bool `json:"unlimited"`
}

// ExcuseResult is what a successful generation returns to the caller.
type ExcuseResult struct {
	Excuse    string       `json:"excuse"`
	Watermark bool         `json:"watermark"` // true for non-premium accounts
	Usage     UsageSummary `json:"usage"`
}

// Package generator defines the boundary to the external text-generation
// collaborator.
package generator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"text/template"

	"github.com/sakif/excuse-me/internal/apperror"
	"github.com/sakif/excuse-me/internal/model"
)

// Generator produces excuse text for a resolved request.
//
// Implementations return an error wrapping apperror.ErrGeneration on any
// failure, including timeouts and empty output. They never retry.
type Generator interface {
	Generate(ctx context.Context, req model.ExcuseRequest) (string, error)
}

// ErrNotConfigured is the cause reported by Unavailable.
var ErrNotConfigured = errors.New("generator: no provider configured")

// Unavailable is the Generator used when no provider credentials are set.
// The server still starts; every generation fails with GenerationError.
type Unavailable struct{}

func (Unavailable) Generate(context.Context, model.ExcuseRequest) (string, error) {
	return "", apperror.Generation(ErrNotConfigured)
}

var promptTemplate = template.Must(template.New("excuse").Parse(
	`You are an AI assistant designed to generate realistic and contextually appropriate excuses based on user input.

Situation: {{.Situation}}
Tone: {{.Tone}}
Target Person: {{.TargetPerson}}
Urgency Level: {{.UrgencyLevel}}

Generate an excuse that is between 2 to 5 sentences long. The tone must match the user selection. Make sure the excuse is realistic.

Here's the excuse:`))

// Prompt renders the instruction sent to the language model.
func Prompt(req model.ExcuseRequest) (string, error) {
	var buf bytes.Buffer
	if err := promptTemplate.Execute(&buf, req); err != nil {
		return "", fmt.Errorf("generator: rendering prompt: %w", err)
	}
	return buf.String(), nil
}

// Package validation checks a parsed properties document against project
// metadata and reports violations.
package validation

import (
	"github.com/tinovyatkin/propls/internal/metadata"
	"github.com/tinovyatkin/propls/internal/properties"
	"github.com/tinovyatkin/propls/internal/settings"
)

// Input contains everything a rule needs to check one document.
type Input struct {
	// Model is the parsed document.
	Model *properties.Model

	// Metadata describes the properties known to the document's project.
	Metadata *metadata.ProjectMetadata

	// Settings is the validation configuration in effect.
	Settings settings.Validation
}

// RuleMetadata contains static information about a rule.
type RuleMetadata struct {
	// Code is the unique identifier, also used as the diagnostic code.
	Code string

	// Description explains what the rule checks.
	Description string
}

// Rule is the interface all validation rules implement.
type Rule interface {
	// Metadata returns static information about the rule.
	Metadata() RuleMetadata

	// Config selects the rule's settings from the validation record.
	Config(v settings.Validation) settings.Rule

	// Check runs the rule and returns its violations. Severity is filled in
	// by Validate.
	Check(input Input) []Violation
}

// Violation is one problem found in a document.
type Violation struct {
	Range    properties.Range  `json:"range"`
	Code     string            `json:"code"`
	Message  string            `json:"message"`
	Severity settings.Severity `json:"severity"`
	// Property is the property name the violation is about, if any. It is
	// matched against the rule's excluded patterns.
	Property string `json:"property,omitempty"`
}

// NewViolation creates a violation for rule code at r.
func NewViolation(r properties.Range, code, message string) Violation {
	return Violation{Range: r, Code: code, Message: message}
}

// WithProperty sets the property the violation is about.
func (v Violation) WithProperty(name string) Violation {
	v.Property = name
	return v
}

// Line returns the 0-based line of the violation.
func (v Violation) Line() int { return v.Range.Start.Line }

// Package settings holds the process-wide language feature settings.
//
// Settings are grouped in one record per feature. Records start from
// defaults, are refined by the client's capabilities during initialize, and
// are replaced by client configuration changes. Readers take a Snapshot and
// observe either the whole old or the whole new record.
package settings

import (
	"slices"

	"go.lsp.dev/protocol"
)

// Severity is a configured diagnostic severity.
type Severity string

const (
	SeverityNone    Severity = "none"
	SeverityHint    Severity = "hint"
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	switch s {
	case SeverityNone, SeverityHint, SeverityInfo, SeverityWarning, SeverityError:
		return true
	default:
		return false
	}
}

// Protocol maps s to the LSP severity. ok is false for SeverityNone and
// unknown values, meaning the diagnostic is not reported.
func (s Severity) Protocol() (sev protocol.DiagnosticSeverity, ok bool) {
	switch s {
	case SeverityHint:
		return protocol.DiagnosticSeverityHint, true
	case SeverityInfo:
		return protocol.DiagnosticSeverityInformation, true
	case SeverityWarning:
		return protocol.DiagnosticSeverityWarning, true
	case SeverityError:
		return protocol.DiagnosticSeverityError, true
	default:
		return 0, false
	}
}

// Completion settings. TriggerCharacters is advertised once in the
// initialize result, so only initializationOptions can set it.
type Completion struct {
	TriggerCharacters []string `koanf:"triggerCharacters"`
	SnippetSupport    bool     `koanf:"-"`
	MarkdownDocs      bool     `koanf:"-"`
}

// DefaultTriggerCharacters returns the characters that open completion
// automatically unless the client configures others.
func DefaultTriggerCharacters() []string {
	return []string{".", "%", "="}
}

// Hover settings.
type Hover struct {
	Enabled  bool `koanf:"enabled"`
	Markdown bool `koanf:"-"`
}

// Formatting settings.
type Formatting struct {
	SurroundEqualsWithSpaces bool `koanf:"surroundEqualsWithSpaces"`
}

// Symbols settings.
type Symbols struct {
	ShowAsTree   bool `koanf:"showAsTree"`
	Hierarchical bool `koanf:"-"`
}

// Definition settings come from client capabilities only.
type Definition struct {
	LinkSupport bool `koanf:"-"`
}

// Rule configures one validation rule.
type Rule struct {
	Severity Severity `koanf:"severity"`
	// Excluded holds glob patterns of property names the rule ignores.
	Excluded []string `koanf:"excluded"`
}

// Validation settings.
type Validation struct {
	Enabled   bool `koanf:"enabled"`
	Syntax    Rule `koanf:"syntax"`
	Unknown   Rule `koanf:"unknown"`
	Duplicate Rule `koanf:"duplicate"`
	Value     Rule `koanf:"value"`
	Required  Rule `koanf:"required"`
}

// Equal reports whether v and o configure the same diagnostics. Nil and
// empty exclusion lists are equal.
func (v Validation) Equal(o Validation) bool {
	return v.Enabled == o.Enabled &&
		v.Syntax.equal(o.Syntax) &&
		v.Unknown.equal(o.Unknown) &&
		v.Duplicate.equal(o.Duplicate) &&
		v.Value.equal(o.Value) &&
		v.Required.equal(o.Required)
}

func (r Rule) equal(o Rule) bool {
	return r.Severity == o.Severity && slices.Equal(r.Excluded, o.Excluded)
}

// Settings is one immutable snapshot of every record. Callers must not
// modify a Settings obtained from a Store.
type Settings struct {
	Completion Completion
	Hover      Hover
	Formatting Formatting
	Symbols    Symbols
	Definition Definition
	Validation Validation
}

// Defaults returns the settings used before initialize.
func Defaults() Settings {
	return Settings{
		Completion: Completion{TriggerCharacters: DefaultTriggerCharacters()},
		Hover:      Hover{Enabled: true},
		Symbols:    Symbols{ShowAsTree: true},
		Validation: DefaultValidation(),
	}
}

// DefaultValidation returns the default validation record.
func DefaultValidation() Validation {
	return Validation{
		Enabled:   true,
		Syntax:    Rule{Severity: SeverityError},
		Unknown:   Rule{Severity: SeverityWarning},
		Duplicate: Rule{Severity: SeverityWarning},
		Value:     Rule{Severity: SeverityError},
		Required:  Rule{Severity: SeverityNone},
	}
}

package validation

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tinovyatkin/propls/internal/metadata"
	"github.com/tinovyatkin/propls/internal/properties"
	"github.com/tinovyatkin/propls/internal/settings"
)

// Rule codes, also reported as diagnostic codes.
const (
	CodeSyntax    = "syntax"
	CodeUnknown   = "unknown"
	CodeDuplicate = "duplicate"
	CodeValue     = "value"
	CodeRequired  = "required"
)

// QuarkusPrefix marks framework-owned properties. Only these are reported
// as unknown; application properties may be read without metadata.
const QuarkusPrefix = "quarkus."

// DefaultRules returns every built-in rule in reporting order.
func DefaultRules() []Rule {
	return []Rule{syntaxRule{}, unknownRule{}, duplicateRule{}, valueRule{}, requiredRule{}}
}

func keyRange(m *properties.Model, n properties.Node) (properties.Range, bool) {
	r, err := m.NodeRange(n)
	return r, err == nil
}

type syntaxRule struct{}

func (syntaxRule) Metadata() RuleMetadata {
	return RuleMetadata{Code: CodeSyntax, Description: "Properties must have a key and a separator"}
}

func (syntaxRule) Config(v settings.Validation) settings.Rule { return v.Syntax }

func (syntaxRule) Check(in Input) []Violation {
	var out []Violation
	for _, p := range in.Model.Properties() {
		switch {
		case p.Key.Text == "":
			if r, ok := keyRange(in.Model, p); ok {
				out = append(out, NewViolation(r, CodeSyntax, "Missing property key"))
			}
		case p.Assign == nil:
			if r, ok := keyRange(in.Model, p.Key); ok {
				out = append(out, NewViolation(r, CodeSyntax,
					fmt.Sprintf("Missing equals sign after '%s'", p.Key.Text)).WithProperty(p.PropertyName()))
			}
		}
	}
	return out
}

type unknownRule struct{}

func (unknownRule) Metadata() RuleMetadata {
	return RuleMetadata{Code: CodeUnknown, Description: "Framework properties must be known to the project"}
}

func (unknownRule) Config(v settings.Validation) settings.Rule { return v.Unknown }

func (unknownRule) Check(in Input) []Violation {
	var out []Violation
	for _, p := range in.Model.Properties() {
		name := p.PropertyName()
		if !strings.HasPrefix(name, QuarkusPrefix) || in.Metadata.Lookup(name) != nil {
			continue
		}
		if r, ok := keyRange(in.Model, p.Key); ok {
			out = append(out, NewViolation(r, CodeUnknown,
				fmt.Sprintf("Unknown property '%s'", name)).WithProperty(name))
		}
	}
	return out
}

type duplicateRule struct{}

func (duplicateRule) Metadata() RuleMetadata {
	return RuleMetadata{Code: CodeDuplicate, Description: "A key must be assigned at most once"}
}

func (duplicateRule) Config(v settings.Validation) settings.Rule { return v.Duplicate }

func (duplicateRule) Check(in Input) []Violation {
	byKey := make(map[string][]*properties.Property)
	var order []string
	for _, p := range in.Model.Properties() {
		if p.Key.Text == "" {
			continue
		}
		if _, seen := byKey[p.Key.Text]; !seen {
			order = append(order, p.Key.Text)
		}
		byKey[p.Key.Text] = append(byKey[p.Key.Text], p)
	}

	var out []Violation
	for _, key := range order {
		props := byKey[key]
		if len(props) < 2 {
			continue
		}
		for _, p := range props {
			if r, ok := keyRange(in.Model, p.Key); ok {
				out = append(out, NewViolation(r, CodeDuplicate,
					fmt.Sprintf("Duplicate property '%s'", key)).WithProperty(p.PropertyName()))
			}
		}
	}
	return out
}

type valueRule struct{}

func (valueRule) Metadata() RuleMetadata {
	return RuleMetadata{Code: CodeValue, Description: "Values must match the property type"}
}

func (valueRule) Config(v settings.Validation) settings.Rule { return v.Value }

func (valueRule) Check(in Input) []Violation {
	var out []Violation
	for _, p := range in.Model.Properties() {
		if p.Value == nil {
			continue
		}
		meta := in.Metadata.Lookup(p.PropertyName())
		if meta == nil {
			continue
		}
		value := strings.TrimSpace(p.Value.Text())
		if msg := checkValue(meta, value); msg != "" {
			if r, ok := keyRange(in.Model, p.Value); ok {
				out = append(out, NewViolation(r, CodeValue, msg).WithProperty(meta.Name))
			}
		}
	}
	return out
}

// checkValue returns a message describing why value does not fit meta, or
// "" when it fits or cannot be checked.
func checkValue(meta *metadata.Property, value string) string {
	if value == "" || strings.Contains(value, "${") {
		return ""
	}
	if len(meta.Values()) > 0 {
		if meta.EnumItem(value) == nil {
			return fmt.Sprintf("Invalid enum value: '%s' is invalid for type %s", value, meta.Type)
		}
		return ""
	}
	var err error
	switch meta.Type {
	case "int", "java.lang.Integer", "java.util.OptionalInt", "java.lang.Short", "short":
		_, err = strconv.ParseInt(value, 10, 32)
	case "long", "java.lang.Long", "java.util.OptionalLong":
		_, err = strconv.ParseInt(value, 10, 64)
	case "float", "java.lang.Float":
		_, err = strconv.ParseFloat(value, 32)
	case "double", "java.lang.Double", "java.util.OptionalDouble":
		_, err = strconv.ParseFloat(value, 64)
	default:
		return ""
	}
	if err != nil {
		return fmt.Sprintf("Type mismatch: %s expected", meta.Type)
	}
	return ""
}

type requiredRule struct{}

func (requiredRule) Metadata() RuleMetadata {
	return RuleMetadata{Code: CodeRequired, Description: "Required properties without a default must be set"}
}

func (requiredRule) Config(v settings.Validation) settings.Rule { return v.Required }

func (requiredRule) Check(in Input) []Violation {
	if in.Metadata.IsEmpty() {
		return nil
	}
	present := make(map[string]bool)
	for _, p := range in.Model.Properties() {
		if meta := in.Metadata.Lookup(p.PropertyName()); meta != nil {
			present[meta.Name] = true
		}
	}

	var out []Violation
	for _, meta := range in.Metadata.Properties {
		if meta == nil || !meta.Required || meta.DefaultValue != "" || present[meta.Name] ||
			strings.Contains(meta.Name, metadata.MapKeyPlaceholder) {
			continue
		}
		out = append(out, NewViolation(properties.Range{}, CodeRequired,
			fmt.Sprintf("Missing required property '%s'", meta.Name)).WithProperty(meta.Name))
	}
	return out
}

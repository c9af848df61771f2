package settings

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/tidwall/gjson"
)

// Section is the path of the client configuration object inside the JSON
// sent with initializationOptions and workspace/didChangeConfiguration.
const Section = "quarkus.tools"

// Client is the client-configurable part of Settings.
type Client struct {
	Completion Completion `koanf:"completion"`
	Hover      Hover      `koanf:"hover"`
	Formatting Formatting `koanf:"formatting"`
	Symbols    Symbols    `koanf:"symbols"`
	Validation Validation `koanf:"validation"`
}

// DefaultClient returns the client configuration implied by Defaults.
func DefaultClient() Client {
	d := Defaults()
	return Client{
		Completion: d.Completion,
		Hover:      d.Hover,
		Formatting: d.Formatting,
		Symbols:    d.Symbols,
		Validation: d.Validation,
	}
}

// Decode extracts the Section object from raw JSON and merges it over
// DefaultClient. Absent or null sections yield the defaults.
func Decode(raw []byte) (Client, error) {
	def := DefaultClient()
	if len(raw) == 0 {
		return def, nil
	}
	if !gjson.ValidBytes(raw) {
		return def, errors.New("settings: invalid JSON")
	}
	node := gjson.GetBytes(raw, Section)
	if !node.Exists() || node.Type == gjson.Null {
		return def, nil
	}
	if !node.IsObject() {
		return def, fmt.Errorf("settings: %s is %s, want object", Section, node.Type)
	}
	opts, _ := node.Value().(map[string]any)
	c, err := Resolve(opts, def)
	if err != nil {
		return def, err
	}
	normalizeValidation(&c.Validation, def.Validation)
	c.Completion.TriggerCharacters = normalizeTriggerCharacters(c.Completion.TriggerCharacters)
	return c, nil
}

// Resolve merges opts over defaults and unmarshals into T using koanf
// tags. Keys absent from opts keep their default.
func Resolve[T any](opts map[string]any, defaults T) (T, error) {
	if len(opts) == 0 {
		return defaults, nil
	}

	k := koanf.New(".")
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return defaults, fmt.Errorf("settings: load defaults: %w", err)
	}
	if err := k.Load(confmap.Provider(opts, "."), nil); err != nil {
		return defaults, fmt.Errorf("settings: load options: %w", err)
	}

	var result T
	if err := k.Unmarshal("", &result); err != nil {
		return defaults, fmt.Errorf("settings: %w", err)
	}
	return result, nil
}

// normalizeTriggerCharacters keeps single, non-blank characters in their
// first-seen order. An explicit empty list disables automatic completion.
func normalizeTriggerCharacters(chars []string) []string {
	out := make([]string, 0, len(chars))
	for _, c := range chars {
		if utf8.RuneCountInString(c) != 1 || strings.TrimSpace(c) == "" || slices.Contains(out, c) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func normalizeValidation(v *Validation, def Validation) {
	fix := func(r *Rule, d Rule) {
		r.Severity = Severity(strings.ToLower(strings.TrimSpace(string(r.Severity))))
		if !r.Severity.Valid() {
			r.Severity = d.Severity
		}
	}
	fix(&v.Syntax, def.Syntax)
	fix(&v.Unknown, def.Unknown)
	fix(&v.Duplicate, def.Duplicate)
	fix(&v.Value, def.Value)
	fix(&v.Required, def.Required)
}

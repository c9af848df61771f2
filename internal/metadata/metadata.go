// Package metadata models project configuration metadata (the set of known
// properties of a project) and caches it per project.
package metadata

import (
	"strings"
	"sync"
)

// Phase is the build or runtime stage at which a property takes effect.
type Phase int

const (
	PhaseUnknown Phase = iota
	PhaseBuildTime
	PhaseRunTime
	PhaseBuildAndRunTimeFixed
)

// Label returns the human-readable phase name, or "" for PhaseUnknown.
func (p Phase) Label() string {
	switch p {
	case PhaseBuildTime:
		return "buildtime"
	case PhaseRunTime:
		return "runtime"
	case PhaseBuildAndRunTimeFixed:
		return "buildtime & runtime"
	default:
		return ""
	}
}

// EnumItem is one member of an enumerated value set.
type EnumItem struct {
	Name string `json:"name"`
	Docs string `json:"docs,omitempty"`
}

// Property describes one configuration property.
type Property struct {
	Name          string     `json:"propertyName"`
	Type          string     `json:"type,omitempty"`
	DefaultValue  string     `json:"defaultValue,omitempty"`
	Docs          string     `json:"docs,omitempty"`
	ExtensionName string     `json:"extensionName,omitempty"`
	Location      string     `json:"location,omitempty"`
	Source        string     `json:"source,omitempty"`
	Phase         Phase      `json:"phase,omitempty"`
	Required      bool       `json:"required,omitempty"`
	Enums         []EnumItem `json:"enums,omitempty"`
}

var booleanValues = []EnumItem{{Name: "false"}, {Name: "true"}}

// IsBoolean reports whether the property holds a boolean.
func (p *Property) IsBoolean() bool {
	switch p.Type {
	case "boolean", "java.lang.Boolean", "java.util.Optional<java.lang.Boolean>":
		return true
	default:
		return false
	}
}

// Values returns the enumerated value set of the property, the implicit
// true/false set for booleans, or nil.
func (p *Property) Values() []EnumItem {
	if len(p.Enums) > 0 {
		return p.Enums
	}
	if p.IsBoolean() {
		return booleanValues
	}
	return nil
}

// EnumItem returns the member of the value set matching value, or nil.
// Enum names match case-insensitively and with '-' and '_' treated alike.
func (p *Property) EnumItem(value string) *EnumItem {
	values := p.Values()
	for i := range values {
		if normalizeEnum(values[i].Name) == normalizeEnum(value) {
			return &values[i]
		}
	}
	return nil
}

func normalizeEnum(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-")
}

// MapKeyPlaceholder marks a user-chosen segment in a property name, as in
// quarkus.datasource.{*}.url.
const MapKeyPlaceholder = "{*}"

// ProjectMetadata is the set of properties known for one project. It is
// read-only once shared and safe for concurrent use.
type ProjectMetadata struct {
	ProjectURI string      `json:"projectURI"`
	Properties []*Property `json:"properties"`

	once     sync.Once
	byName   map[string]*Property
	patterns []*Property
}

// New returns metadata for projectURI holding props.
func New(projectURI string, props ...*Property) *ProjectMetadata {
	return &ProjectMetadata{ProjectURI: projectURI, Properties: props}
}

// IsEmpty reports whether no property is known. Empty metadata disables
// every language feature for the document.
func (m *ProjectMetadata) IsEmpty() bool {
	return m == nil || len(m.Properties) == 0
}

func (m *ProjectMetadata) index() {
	m.once.Do(func() {
		m.byName = make(map[string]*Property, len(m.Properties))
		for _, p := range m.Properties {
			if p == nil {
				continue
			}
			if strings.Contains(p.Name, MapKeyPlaceholder) {
				m.patterns = append(m.patterns, p)
				continue
			}
			m.byName[p.Name] = p
		}
	})
}

// Lookup returns the property named name, matching {*} placeholders
// against a single key segment. It returns nil when nothing matches.
func (m *ProjectMetadata) Lookup(name string) *Property {
	if m.IsEmpty() || name == "" {
		return nil
	}
	m.index()
	if p, ok := m.byName[name]; ok {
		return p
	}
	for _, p := range m.patterns {
		if matchPlaceholder(p.Name, name) {
			return p
		}
	}
	return nil
}

// matchPlaceholder reports whether name matches pattern, where each {*}
// matches either a quoted segment or a non-empty run without dots.
func matchPlaceholder(pattern, name string) bool {
	parts := strings.Split(pattern, MapKeyPlaceholder)
	if !strings.HasPrefix(name, parts[0]) {
		return false
	}
	rest := name[len(parts[0]):]
	for _, part := range parts[1:] {
		n := segmentLen(rest)
		if n == 0 || !strings.HasPrefix(rest[n:], part) {
			return false
		}
		rest = rest[n+len(part):]
	}
	return rest == ""
}

func segmentLen(s string) int {
	if strings.HasPrefix(s, `"`) {
		if end := strings.IndexByte(s[1:], '"'); end >= 0 {
			return end + 2
		}
		return 0
	}
	if i := strings.IndexByte(s, '.'); i >= 0 {
		return i
	}
	return len(s)
}

// DefaultProfiles are the profiles every project understands.
var DefaultProfiles = []EnumItem{
	{Name: "dev", Docs: "Profile activated when in development mode (quarkus:dev)."},
	{Name: "prod", Docs: "The default profile when not running in development or test mode."},
	{Name: "test", Docs: "Profile activated when running tests."},
}

// LookupProfile returns the built-in profile named name, or nil.
func LookupProfile(name string) *EnumItem {
	for i := range DefaultProfiles {
		if DefaultProfiles[i].Name == name {
			return &DefaultProfiles[i]
		}
	}
	return nil
}

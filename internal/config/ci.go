package config

import "github.com/gkampitakis/ciinfo"

// ColorEnabled reports whether CLI output is colored for mode.
// "on" → true, "off" → false, "auto" → enabled when attached to a terminal
// and not running in CI.
func ColorEnabled(mode string, terminal bool) bool {
	switch mode {
	case "on":
		return true
	case "off":
		return false
	default: // "auto"
		return terminal && !ciinfo.IsCI
	}
}

// CIName returns the detected CI provider name, or empty string if not in CI.
func CIName() string {
	if !ciinfo.IsCI {
		return ""
	}
	return ciinfo.Name
}

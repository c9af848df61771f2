package version

import (
	"runtime"
	"runtime/debug"
)

var version = "dev"

const protocolModule = "go.lsp.dev/protocol"

// Info describes the running binary.
type Info struct {
	Version         string `json:"version"`
	GoVersion       string `json:"goVersion"`
	Platform        string `json:"platform"`
	ProtocolVersion string `json:"protocolVersion,omitempty"`
	Commit          string `json:"commit,omitempty"`
}

// Version returns the current version string
func Version() string {
	if pv := ProtocolVersion(); pv != "" {
		return version + " (protocol " + pv + ")"
	}
	return version
}

// RawVersion returns the version without build details.
func RawVersion() string {
	return version
}

// ProtocolVersion returns the linked LSP protocol module version from build info.
func ProtocolVersion() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, dep := range info.Deps {
		if dep.Path == protocolModule {
			return dep.Version
		}
	}
	return ""
}

// GetInfo collects version information for machine-readable output.
func GetInfo() Info {
	info := Info{
		Version:         version,
		GoVersion:       runtime.Version(),
		Platform:        runtime.GOOS + "/" + runtime.GOARCH,
		ProtocolVersion: ProtocolVersion(),
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			if s.Key == "vcs.revision" {
				info.Commit = s.Value
			}
		}
	}
	return info
}

// Package appinfo reports build information for logs and health output
package appinfo

import (
	"os"
	"runtime/debug"
)

const unknownVersion = "0.0.0-unknown"

// Version returns the application version. APP_VERSION wins, then the main
// module version, then the VCS revision recorded at build time.
func Version() string {
	if version := os.Getenv("APP_VERSION"); version != "" {
		return version
	}

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return unknownVersion
	}
	return versionFromBuildInfo(info)
}

func versionFromBuildInfo(info *debug.BuildInfo) string {
	if info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}

	for _, setting := range info.Settings {
		if setting.Key == "vcs.revision" && setting.Value != "" {
			if len(setting.Value) > 12 {
				return setting.Value[:12]
			}
			return setting.Value
		}
	}

	return unknownVersion
}

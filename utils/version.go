package utils

import "fmt"

// Set at build time via -ldflags.
var (
	BuildVersion string
	BuildRelease string
)

func GetBuildVersion() string {
	if BuildRelease == "" {
		if BuildVersion == "" {
			return "git-dev"
		}

		return fmt.Sprintf("git-%v", BuildVersion)
	}

	return fmt.Sprintf("%v (git-%v)", BuildRelease, BuildVersion)
}

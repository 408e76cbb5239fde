package version

import "fmt"

// Flag contains extra info about the version, such as "rc1". It must be empty
// on release builds.
const Flag = ""

const (
	// Maj is the major version
	Maj = "0"
	// Min is the minor version
	Min = "1"
	// Fix is the patch version
	Fix = "0"
)

var (
	// Version is the full version string
	Version = fmt.Sprintf("%s.%s.%s", Maj, Min, Fix)

	// GitCommit is set with --ldflags "-X github.com/catalyst-network/Catalyst-sub014/src/version.GitCommit=$(git rev-parse HEAD)"
	GitCommit string
)

func init() {
	if Flag != "" {
		Version += "-" + Flag
	}

	if len(GitCommit) >= 8 {
		Version += "-" + GitCommit[:8]
	}
}

package version

// Version is the build version reported by the CLIs and the HTTP API.
// Release builds set it with
// -ldflags "-X github.com/rxtech-lab/moth-trading/internal/version.Version=1.2.3"
var Version = "dev"

// GetVersion returns the build version.
func GetVersion() string {
	return Version
}

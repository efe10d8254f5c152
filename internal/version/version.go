// Package version exposes the build identity stamped in at link time:
//
//	go build -ldflags "\
//	  -X github.com/voxgate/voxgate/internal/version.Version=1.0.0 \
//	  -X github.com/voxgate/voxgate/internal/version.Commit=$(git rev-parse --short HEAD) \
//	  -X github.com/voxgate/voxgate/internal/version.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
package version

var (
	// Version is the semantic version of this build.
	Version = "dev"

	// Commit is the short git commit hash.
	Commit = "unknown"

	// BuildTime is the UTC build timestamp in ISO 8601.
	BuildTime = "unknown"
)

// String renders the full build identity for startup logs and health output.
func String() string {
	return Version + " (" + Commit + ") built " + BuildTime
}

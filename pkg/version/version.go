package version

import "fmt"

// Build variables, set with -ldflags at release time:
// -X 'github.com/compozy/plansync/pkg/version.Version=v0.3.0'
var (
	Version    = "dev"
	CommitHash = "unknown"
	BuildDate  = "unknown"
)

// Info is the build metadata reported by the CLI and /healthz.
type Info struct {
	Version    string `json:"version"`
	CommitHash string `json:"commit_hash"`
	BuildDate  string `json:"build_date"`
}

func Get() Info {
	return Info{
		Version:    Version,
		CommitHash: CommitHash,
		BuildDate:  BuildDate,
	}
}

func (i Info) String() string {
	return fmt.Sprintf("plansync %s (commit %s, built %s)", i.Version, i.CommitHash, i.BuildDate)
}

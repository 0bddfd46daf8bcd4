package version

import (
	"fmt"
	"runtime/debug"
	"strings"
	"time"
)

// Build metadata, overridable at link time:
//
//	go build -ldflags "-X .../version.Version=1.2.0 -X .../version.GitCommit=$(git rev-parse --short HEAD)"
//
// When the linker leaves them empty, GetVersionInfo falls back to the
// module build info stamped by the Go toolchain.
var (
	Version   = "dev"
	GitCommit = ""
	GitBranch = ""
	BuildTime = ""
	GoVersion = ""
)

// Info is the resolved build identity of the running binary.
type Info struct {
	Version   string    `json:"version"`
	GitCommit string    `json:"git_commit"`
	GitBranch string    `json:"git_branch"`
	BuildTime string    `json:"build_time"`
	GoVersion string    `json:"go_version"`
	BuildDate time.Time `json:"build_date"`
	IsRelease bool      `json:"is_release"`
	IsDirty   bool      `json:"is_dirty"`
}

// GetVersionInfo resolves the build identity from the link-time variables,
// filling gaps from runtime/debug build info where available.
func GetVersionInfo() *Info {
	info := &Info{
		Version:   Version,
		GitCommit: GitCommit,
		GitBranch: GitBranch,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		IsRelease: Version != "dev" && !strings.Contains(Version, "dirty"),
	}
	if t, err := time.Parse(time.RFC3339, BuildTime); err == nil {
		info.BuildDate = t
	}

	info.fillFromBuildInfo()

	if info.BuildDate.IsZero() {
		// No stamp anywhere. Use "now" so uptime math and display stay sane.
		info.BuildDate = time.Now().UTC()
		info.BuildTime = info.BuildDate.Format(time.RFC3339)
	}
	return info
}

// readBuildInfo is swapped out by tests so they are not coupled to how
// the test binary itself was built.
var readBuildInfo = debug.ReadBuildInfo

// fillFromBuildInfo backfills commit, dirty flag, build time, and Go version
// from the toolchain's embedded build info. Link-time values win.
func (i *Info) fillFromBuildInfo() {
	bi, ok := readBuildInfo()
	if !ok {
		return
	}
	if i.GoVersion == "" {
		i.GoVersion = bi.GoVersion
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if GitCommit == "" {
				i.GitCommit = shortCommit(s.Value)
			}
		case "vcs.modified":
			i.IsDirty = s.Value == "true"
		case "vcs.time":
			if BuildTime == "" {
				if t, err := time.Parse(time.RFC3339, s.Value); err == nil {
					i.BuildDate = t
					i.BuildTime = s.Value
				}
			}
		}
	}
}

func shortCommit(rev string) string {
	if len(rev) > 7 {
		return rev[:7]
	}
	return rev
}

// GetShortVersion returns "version-commit", with a "-dirty" suffix when the
// tree had local modifications, or the bare version when no commit is known.
func GetShortVersion() string {
	info := GetVersionInfo()
	switch {
	case info.GitCommit == "":
		return info.Version
	case info.IsDirty:
		return fmt.Sprintf("%s-%s-dirty", info.Version, info.GitCommit)
	default:
		return fmt.Sprintf("%s-%s", info.Version, info.GitCommit)
	}
}

// GetFullVersion returns a human-readable version line for CLI output.
// Mainline branches (main, master) are omitted; feature branches are kept
// so a dev build identifies where it came from.
func GetFullVersion() string {
	info := GetVersionInfo()
	parts := []string{info.Version}
	if info.GitCommit != "" {
		parts = append(parts, info.GitCommit)
	}
	if info.GitBranch != "" && info.GitBranch != "main" && info.GitBranch != "master" {
		parts = append(parts, info.GitBranch)
	}
	if info.IsDirty {
		parts = append(parts, "dirty")
	}
	out := strings.Join(parts, "-")
	if !info.BuildDate.IsZero() {
		out += fmt.Sprintf(" (built %s)", info.BuildDate.Format("2006-01-02T15:04:05Z"))
	}
	return out
}

package version

import (
	"encoding/json"
	"runtime"
	"strings"
	"testing"

	"github.com/matryer/is"
)

func stamp(t *testing.T, v, commit, built string) {
	t.Helper()
	oldV, oldC, oldB := Version, GitCommit, BuildTime
	Version, GitCommit, BuildTime = v, commit, built
	t.Cleanup(func() {
		Version, GitCommit, BuildTime = oldV, oldC, oldB
	})
}

func TestGetDefaults(t *testing.T) {
	is := is.New(t)

	info := Get()
	is.Equal(info.Version, "dev")
	is.Equal(info.BuildTime, "unknown")
	is.Equal(info.GoVersion, runtime.Version())
	is.Equal(info.Platform, runtime.GOOS+"/"+runtime.GOARCH)
	is.True(info.GitCommit != "") // stamped, VCS revision or "unknown"

	s := info.String()
	is.True(strings.HasPrefix(s, "lk-voice version dev"))
	is.True(strings.Contains(s, runtime.Version()))
}

func TestGetStamped(t *testing.T) {
	is := is.New(t)
	stamp(t, "v1.0.0", "abc123", "2024-01-01T00:00:00Z")

	info := Get()
	is.Equal(info.GitCommit, "abc123") // ldflags win over build info

	s := info.String()
	is.True(strings.Contains(s, "v1.0.0"))
	is.True(strings.Contains(s, "commit: abc123"))
	is.True(strings.Contains(s, "built: 2024-01-01T00:00:00Z"))

	raw, err := json.Marshal(info)
	is.NoErr(err)
	is.True(strings.Contains(string(raw), `"git_commit":"abc123"`))
}

func TestUserAgent(t *testing.T) {
	is := is.New(t)
	stamp(t, "v2.3.4", "x", "y")
	is.Equal(UserAgent(), "lk-voice/v2.3.4")
}

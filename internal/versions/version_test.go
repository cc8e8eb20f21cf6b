package versions

import (
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetVersionInfoWithValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		version       string
		commit        string
		buildDate     string
		buildType     string
		wantVersion   string
		wantBuildDate string
		wantRelease   bool
	}{
		{
			name:          "tagged release",
			version:       "v1.4.0",
			commit:        "0123456789abcdef",
			buildDate:     "2025-08-30T10:00:00Z",
			buildType:     "release",
			wantVersion:   "v1.4.0",
			wantBuildDate: "2025-08-30 10:00:00 UTC",
			wantRelease:   true,
		},
		{
			name:          "release candidate is not a release",
			version:       "v1.4.0-rc.1",
			commit:        "0123456789abcdef",
			buildDate:     "not-a-date",
			buildType:     "release",
			wantVersion:   "v1.4.0-rc.1",
			wantBuildDate: "not-a-date",
		},
		{
			name:          "development build of a tag",
			version:       "v1.4.0",
			commit:        "0123456789abcdef",
			buildDate:     unknownStr,
			buildType:     "development",
			wantVersion:   "v1.4.0",
			wantBuildDate: unknownStr,
		},
		{
			name:          "non semver version",
			version:       "nightly",
			commit:        "abc",
			buildDate:     unknownStr,
			buildType:     "release",
			wantVersion:   "nightly",
			wantBuildDate: unknownStr,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			info := getVersionInfoWithValues(tt.version, tt.commit, tt.buildDate, tt.buildType)
			assert.Equal(t, tt.wantVersion, info.Version)
			assert.Equal(t, tt.commit, info.Commit)
			assert.Equal(t, tt.wantBuildDate, info.BuildDate)
			assert.Equal(t, tt.wantRelease, info.Release)
			assert.Equal(t, runtime.Version(), info.GoVersion)
			assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, info.Platform)
		})
	}
}

func TestGetVersionInfoWithValues_DevTruncatesCommit(t *testing.T) {
	t.Parallel()

	info := getVersionInfoWithValues("dev", "0123456789abcdef", "2025-08-30T10:00:00Z", "development")
	assert.Equal(t, "build-01234567", info.Version)
	assert.False(t, info.Release)
	assert.True(t, strings.HasPrefix(info.BuildDate, "2025-08-30"))
}

func TestUserAgent(t *testing.T) {
	t.Parallel()

	ua := UserAgent()
	assert.True(t, strings.HasPrefix(ua, "comment-sync/"))
	assert.Equal(t, "comment-sync/"+GetVersionInfo().Version, ua)
}

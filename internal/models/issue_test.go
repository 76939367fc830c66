package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizedNameStripsPlatformSuffix(t *testing.T) {
	assert.Equal(t, "5.1.0", VersionInfo{Name: "5.1.0 - iOS"}.NormalizedName())
	assert.Equal(t, "5.1.0", VersionInfo{Name: "5.1.0 - Android"}.NormalizedName())
	assert.Equal(t, "5.1.0", VersionInfo{Name: "5.1.0"}.NormalizedName())
	assert.Equal(t, "iOS 로그인 개선", VersionInfo{Name: "iOS 로그인 개선"}.NormalizedName(), "only the suffix form is stripped")
}

func TestWithVersionsDerivesIndependentCopy(t *testing.T) {
	release := time.Date(2025, 6, 11, 0, 0, 0, 0, time.UTC)
	parentVersions := []VersionInfo{{ID: "100", Name: "5.1.0", ReleaseDate: &release}}

	original := ProcessedIssue{Key: "KMA-2"}
	derived := original.WithVersions(parentVersions, &release)

	require.Len(t, derived.Versions, 1)
	assert.Equal(t, &release, derived.ReleaseDate)
	assert.False(t, original.HasVersions(), "the original record stays unchanged")

	// Mutating the source slice must not leak into the derived record.
	parentVersions[0].ID = "mutated"
	assert.Equal(t, "100", derived.Versions[0].ID)
}

func TestBucketDatePrefersReleaseDate(t *testing.T) {
	created := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	release := time.Date(2025, 7, 15, 0, 0, 0, 0, time.UTC)

	issue := ProcessedIssue{CreatedDate: created, ReleaseDate: &release}
	assert.Equal(t, release, issue.BucketDate())

	issue.ReleaseDate = nil
	assert.Equal(t, created, issue.BucketDate())
}

func TestWithMyTicket(t *testing.T) {
	original := ProcessedIssue{Key: "KMA-1"}
	derived := original.WithMyTicket(true)

	assert.True(t, derived.IsMyTicket)
	assert.False(t, original.IsMyTicket)
}

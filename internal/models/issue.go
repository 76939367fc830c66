package models

import (
	"strings"
	"time"
)

// VersionInfo is a fix version attached to an issue. Equality is by value
// so it can serve as a grouping key.
type VersionInfo struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	ReleaseDate *time.Time `json:"release_date,omitempty"`
}

// NormalizedName strips the platform suffix used by mobile projects so that
// "1.2.0 - iOS" and "1.2.0 - Android" fall into the same version bucket.
func (v VersionInfo) NormalizedName() string {
	name := strings.ReplaceAll(v.Name, " - iOS", "")
	return strings.ReplaceAll(name, " - Android", "")
}

// ProcessedIssue is the canonical aggregation record built from one raw
// search-result item. Records are treated as immutable values; updates during
// version propagation derive modified copies instead of mutating in place.
type ProcessedIssue struct {
	Key            string        `json:"key"`
	Summary        string        `json:"summary"`
	CreatedDate    time.Time     `json:"created_date"`
	ResolutionDate *time.Time    `json:"resolution_date,omitempty"`
	Labels         []string      `json:"labels"`
	Versions       []VersionInfo `json:"versions"`
	Link           string        `json:"link"`

	ProjectKey    string `json:"project_key"`
	ParentKey     string `json:"parent_key,omitempty"`
	ParentSummary string `json:"parent_summary,omitempty"`
	ParentType    string `json:"parent_type,omitempty"`

	IssueType string `json:"issue_type"`
	IsSubtask bool   `json:"is_subtask"`
	TypeClass string `json:"type_class"`

	// ReleaseDate is a projection of the first entry of Versions, not an
	// independent fact.
	ReleaseDate *time.Time `json:"release_date,omitempty"`

	AssigneeAccountID string `json:"assignee_account_id,omitempty"`
	AssigneeName      string `json:"assignee_name,omitempty"`

	// IsMyTicket is true only for issues found via direct assignee match,
	// never for issues pulled in through subtask membership or as parents.
	IsMyTicket bool `json:"is_my_ticket"`
}

// WithVersions derives a copy carrying the given version list and release
// date. The parent's list is copied whole, preserving its order.
func (p ProcessedIssue) WithVersions(versions []VersionInfo, releaseDate *time.Time) ProcessedIssue {
	out := p
	out.Versions = make([]VersionInfo, len(versions))
	copy(out.Versions, versions)
	out.ReleaseDate = releaseDate
	return out
}

// WithMyTicket derives a copy with the direct-assignment flag set.
func (p ProcessedIssue) WithMyTicket(mine bool) ProcessedIssue {
	out := p
	out.IsMyTicket = mine
	return out
}

// HasVersions reports whether the issue carries any version info.
func (p ProcessedIssue) HasVersions() bool {
	return len(p.Versions) > 0
}

// BucketDate is the date used for month bucketing: release date when the
// issue has one, otherwise the created date.
func (p ProcessedIssue) BucketDate() time.Time {
	if p.ReleaseDate != nil {
		return *p.ReleaseDate
	}
	return p.CreatedDate
}

// Diagnostic records a recoverable data-quality problem encountered while
// normalizing upstream records. Diagnostics are surfaced on the run result
// instead of silently patching the data.
type Diagnostic struct {
	IssueKey string `json:"issue_key"`
	Field    string `json:"field"`
	Value    string `json:"value"`
	Message  string `json:"message"`
}

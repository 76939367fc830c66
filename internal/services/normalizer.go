package services

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"moa-report-jira/internal/interfaces"
	"moa-report-jira/internal/models"
)

// PlatformMode selects how a platform filter string is applied to an issue's
// version list. Sorting keeps all versions and moves matching ones to the
// front; filtering drops non-matching versions entirely.
type PlatformMode int

const (
	PlatformSort PlatformMode = iota
	PlatformFilter
)

// ParsePlatformMode maps the config value onto a PlatformMode.
func ParsePlatformMode(s string) PlatformMode {
	if strings.EqualFold(s, "filter") {
		return PlatformFilter
	}
	return PlatformSort
}

// NormalizeOptions carries per-run normalization parameters.
type NormalizeOptions struct {
	BaseURL      string
	Platform     string
	PlatformMode PlatformMode
}

// Issue timestamp formats accepted from Jira, tried in order.
var issueDateFormats = []string{
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02T15:04:05-0700",
	time.RFC3339,
}

const releaseDateFormat = "2006-01-02"

// typeNameMap remaps known raw issue-type names onto friendlier display
// labels. Unrecognized names pass through unchanged.
var typeNameMap = map[string]string{
	"Service Request with Approvals": "BI 요청",
}

// typeClassMap assigns the coarse display category for an issue type.
var typeClassMap = map[string]string{
	"Epic":        "type-epic",
	"에픽":          "type-epic",
	"Story":       "type-story",
	"스토리":         "type-story",
	"Task":        "type-task",
	"작업":          "type-task",
	"Bug":         "type-bug",
	"버그":          "type-bug",
	"Improvement": "type-improvement",
	"개선":          "type-improvement",
	"Design":      "type-design",
	"디자인":         "type-design",
}

const defaultTypeClass = "type-default"

// NormalizeIssue converts one raw search-result item into the canonical
// aggregation record. Data problems that can be worked around are reported
// as diagnostics rather than failing the run.
func NormalizeIssue(raw interfaces.RawIssue, opts NormalizeOptions) (models.ProcessedIssue, []models.Diagnostic) {
	var diags []models.Diagnostic

	// The report buckets issues by resolution/release timing, so the
	// resolution date wins over the creation date when both exist.
	dateString := raw.Fields.Created
	dateField := "created"
	if raw.Fields.ResolutionDate != "" {
		dateString = raw.Fields.ResolutionDate
		dateField = "resolutiondate"
	}

	createdDate, ok := parseIssueDate(dateString)
	if !ok {
		diags = append(diags, models.Diagnostic{
			IssueKey: raw.Key,
			Field:    dateField,
			Value:    dateString,
			Message:  "unparseable timestamp, issue excluded from month grid",
		})
	}

	var resolutionDate *time.Time
	if raw.Fields.ResolutionDate != "" {
		if t, ok := parseIssueDate(raw.Fields.ResolutionDate); ok {
			resolutionDate = &t
		}
	}

	versions := make([]models.VersionInfo, 0, len(raw.Fields.FixVersions))
	for _, v := range raw.Fields.FixVersions {
		info := models.VersionInfo{ID: v.ID, Name: v.Name}
		if v.ReleaseDate != "" {
			if t, err := time.Parse(releaseDateFormat, v.ReleaseDate); err == nil {
				info.ReleaseDate = &t
			} else {
				diags = append(diags, models.Diagnostic{
					IssueKey: raw.Key,
					Field:    "fixVersions.releaseDate",
					Value:    v.ReleaseDate,
					Message:  fmt.Sprintf("unparseable release date for version %s", v.Name),
				})
			}
		}
		versions = append(versions, info)
	}

	versions = applyPlatform(versions, opts.Platform, opts.PlatformMode)

	var releaseDate *time.Time
	if len(versions) > 0 {
		releaseDate = versions[0].ReleaseDate
	}

	projectKey := "UNKNOWN"
	if idx := strings.Index(raw.Key, "-"); idx > 0 {
		projectKey = raw.Key[:idx]
	}

	issueType := raw.Fields.IssueType.Name
	if mapped, ok := typeNameMap[issueType]; ok {
		issueType = mapped
	}

	typeClass := defaultTypeClass
	if class, ok := typeClassMap[issueType]; ok {
		typeClass = class
	}

	issue := models.ProcessedIssue{
		Key:            raw.Key,
		Summary:        raw.Fields.Summary,
		CreatedDate:    createdDate,
		ResolutionDate: resolutionDate,
		Labels:         raw.Fields.Labels,
		Versions:       versions,
		Link:           fmt.Sprintf("%s/browse/%s", opts.BaseURL, raw.Key),
		ProjectKey:     projectKey,
		IssueType:      issueType,
		IsSubtask:      raw.Fields.IssueType.Subtask,
		TypeClass:      typeClass,
		ReleaseDate:    releaseDate,
	}

	if raw.Fields.Parent != nil {
		issue.ParentKey = raw.Fields.Parent.Key
		issue.ParentSummary = raw.Fields.Parent.Fields.Summary
		if raw.Fields.Parent.Fields.IssueType != nil {
			issue.ParentType = raw.Fields.Parent.Fields.IssueType.Name
		}
	}

	if raw.Fields.Assignee != nil {
		issue.AssigneeAccountID = raw.Fields.Assignee.AccountID
		issue.AssigneeName = raw.Fields.Assignee.DisplayName
	}

	return issue, diags
}

func parseIssueDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, format := range issueDateFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// applyPlatform reorders or filters a version list against a platform
// string. Sorting is stable: matching versions move to the front while the
// relative order within each half is preserved. Membership is only changed
// in filter mode.
func applyPlatform(versions []models.VersionInfo, platform string, mode PlatformMode) []models.VersionInfo {
	if platform == "" || len(versions) == 0 {
		return versions
	}

	needle := strings.ToLower(platform)
	matches := func(v models.VersionInfo) bool {
		return strings.Contains(strings.ToLower(v.Name), needle)
	}

	if mode == PlatformFilter {
		out := make([]models.VersionInfo, 0, len(versions))
		for _, v := range versions {
			if matches(v) {
				out = append(out, v)
			}
		}
		return out
	}

	out := make([]models.VersionInfo, len(versions))
	copy(out, versions)
	sort.SliceStable(out, func(i, j int) bool {
		return matches(out[i]) && !matches(out[j])
	})
	return out
}

package services

import (
	"testing"
	"time"

	"moa-report-jira/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func reportIssue(key, issueType string, created time.Time) models.ProcessedIssue {
	return models.ProcessedIssue{
		Key:         key,
		Summary:     "Summary of " + key,
		IssueType:   issueType,
		ProjectKey:  "KMA",
		CreatedDate: created,
		Link:        "https://example.atlassian.net/browse/" + key,
	}
}

func withIssueVersion(issue models.ProcessedIssue, name string, release *time.Time) models.ProcessedIssue {
	issue.Versions = append(issue.Versions, models.VersionInfo{ID: name, Name: name, ReleaseDate: release})
	issue.ReleaseDate = issue.Versions[0].ReleaseDate
	return issue
}

func TestMonthGridBucketsByReleaseDateOverCreated(t *testing.T) {
	release := date(2025, time.July, 15)
	issue := withIssueVersion(reportIssue("KMA-1", "Story", date(2025, time.March, 1)), "5.1.0", &release)

	report := BuildReport([]models.ProcessedIssue{issue}, 2025, ReportOptions{})

	require.Len(t, report.Months, 12)
	assert.Equal(t, 0, report.Months[2].Count, "not bucketed by creation month")
	assert.Equal(t, 1, report.Months[6].Count, "bucketed by release month")
	assert.Equal(t, 7, report.Months[6].Month)
}

func TestMonthGridExclusions(t *testing.T) {
	release := date(2025, time.May, 1)
	lastYear := date(2024, time.May, 1)

	subtask := withIssueVersion(reportIssue("KMA-1", "Sub-task", date(2025, time.May, 1)), "5.1.0", &release)
	subtask.IsSubtask = true

	unversioned := reportIssue("KMA-2", "Story", date(2025, time.May, 1))

	placeholderOnly := withIssueVersion(reportIssue("KMA-3", "Story", date(2025, time.May, 1)), "배포 버전 미정", nil)

	wrongYear := withIssueVersion(reportIssue("KMA-4", "Story", date(2024, time.May, 1)), "4.9.0", &lastYear)

	undated := withIssueVersion(reportIssue("KMA-5", "Story", time.Time{}), "5.1.0", nil)

	kept := withIssueVersion(reportIssue("KMA-6", "Story", date(2025, time.May, 2)), "5.1.0", &release)

	report := BuildReport(
		[]models.ProcessedIssue{subtask, unversioned, placeholderOnly, wrongYear, undated, kept},
		2025,
		ReportOptions{PlaceholderVersions: []string{"배포 버전 미정"}},
	)

	total := 0
	for _, slot := range report.Months {
		total += slot.Count
	}
	require.Equal(t, 1, total)
	assert.Equal(t, "KMA-6", report.Months[4].Issues[0].Key)

	// Exclusion from the grid does not remove the issue from the report.
	assert.Equal(t, 6, report.TotalCount)
}

func TestMonthSlotOrdering(t *testing.T) {
	early := date(2025, time.May, 2)
	late := date(2025, time.May, 20)

	bug := withIssueVersion(reportIssue("KMA-1", "Bug", date(2025, time.January, 1)), "5.1.0", &early)
	story := withIssueVersion(reportIssue("KMA-2", "Story", date(2025, time.February, 1)), "5.1.0", &early)
	laterRelease := withIssueVersion(reportIssue("KMA-3", "Epic", date(2025, time.January, 1)), "5.2.0", &late)
	noRelease := withIssueVersion(reportIssue("KMA-4", "Task", date(2025, time.May, 5)), "5.3.0", nil)

	report := BuildReport([]models.ProcessedIssue{laterRelease, bug, noRelease, story}, 2025, ReportOptions{})

	slot := report.Months[4]
	require.Equal(t, 4, slot.Count)

	// Same release date: the type priority table breaks the tie. A version
	// without a release date buckets by creation date and sorts after every
	// release-dated issue.
	assert.Equal(t, "KMA-2", slot.Issues[0].Key)
	assert.Equal(t, "KMA-1", slot.Issues[1].Key)
	assert.Equal(t, "KMA-3", slot.Issues[2].Key)
	assert.Equal(t, "KMA-4", slot.Issues[3].Key)
}

func TestTypeCountsOrdering(t *testing.T) {
	issues := []models.ProcessedIssue{
		reportIssue("KMA-1", "Bug", date(2025, 1, 1)),
		reportIssue("KMA-2", "Bug", date(2025, 1, 1)),
		reportIssue("KMA-3", "Story", date(2025, 1, 1)),
		reportIssue("KMA-4", "Task", date(2025, 1, 1)),
	}

	report := BuildReport(issues, 2025, ReportOptions{})

	require.Len(t, report.TypeCounts, 3)
	assert.Equal(t, models.TypeCount{Type: "Bug", Count: 2}, report.TypeCounts[0])
	// Equal counts fall back to the priority table: Story before Task.
	assert.Equal(t, "Story", report.TypeCounts[1].Type)
	assert.Equal(t, "Task", report.TypeCounts[2].Type)
}

func TestLabelCountsTopN(t *testing.T) {
	a := reportIssue("KMA-1", "Story", date(2025, 1, 1))
	a.Labels = []string{"backend", "urgent"}
	b := reportIssue("KMA-2", "Story", date(2025, 1, 1))
	b.Labels = []string{"backend", "design"}

	report := BuildReport([]models.ProcessedIssue{a, b}, 2025, ReportOptions{LabelTopN: 2})

	require.Len(t, report.LabelCounts, 2)
	assert.Equal(t, models.LabelCount{Label: "backend", Count: 2}, report.LabelCounts[0])
	assert.Equal(t, "design", report.LabelCounts[1].Label, "ties break alphabetically")
}

func TestEpicViewGroupsAndSentinelOrdering(t *testing.T) {
	inEpic := reportIssue("KMA-2", "Story", date(2025, 1, 1))
	inEpic.ParentKey = "KMA-1"
	inEpic.ParentSummary = "Checkout revamp"

	orphan := reportIssue("KMA-3", "Task", date(2025, 1, 2))

	report := BuildReport([]models.ProcessedIssue{orphan, inEpic}, 2025, ReportOptions{})

	require.Len(t, report.Projects, 1)
	groups := report.Projects[0].Groups
	require.Len(t, groups, 2)

	assert.Equal(t, "Checkout revamp", groups[0].Title)
	assert.Equal(t, "KMA-1", groups[0].Key)
	assert.Equal(t, "https://example.atlassian.net/browse/KMA-1", groups[0].Link)

	assert.Equal(t, "기타 (에픽 없음)", groups[1].Title, "the no-epic bucket sorts last")
	assert.Empty(t, groups[1].Key)
	assert.Equal(t, 1, groups[1].Count)
}

func TestVersionViewMergesPlatformVariants(t *testing.T) {
	issue := reportIssue("KMA-1", "Story", date(2025, 1, 1))
	issue.Versions = []models.VersionInfo{
		{ID: "1", Name: "5.1.0 - iOS"},
		{ID: "2", Name: "5.1.0 - Android"},
	}

	report := BuildReport([]models.ProcessedIssue{issue}, 2025, ReportOptions{})

	require.Len(t, report.VersionProjects, 1)
	groups := report.VersionProjects[0].Groups
	require.Len(t, groups, 1, "both platform variants fall into one normalized bucket")
	assert.Equal(t, "5.1.0", groups[0].Title)
	assert.Equal(t, 1, groups[0].Count, "the issue appears once despite two variants")
}

func TestVersionViewOrderingAndUnversionedSentinel(t *testing.T) {
	v1 := withIssueVersion(reportIssue("KMA-1", "Story", date(2025, 1, 1)), "5.1.0", nil)
	v2 := withIssueVersion(reportIssue("KMA-2", "Story", date(2025, 1, 1)), "5.2.0", nil)
	bare := reportIssue("KMA-3", "Task", date(2025, 1, 1))

	report := BuildReport([]models.ProcessedIssue{v1, bare, v2}, 2025, ReportOptions{})

	groups := report.VersionProjects[0].Groups
	require.Len(t, groups, 3)
	assert.Equal(t, "5.2.0", groups[0].Title, "newest version name first")
	assert.Equal(t, "5.1.0", groups[1].Title)
	assert.Equal(t, "Unversioned", groups[2].Title, "unversioned bucket sorts last")
}

func TestVersionViewBuildsParentChildTree(t *testing.T) {
	parent := withIssueVersion(reportIssue("KMA-1", "Story", date(2025, 1, 1)), "5.1.0", nil)
	child := withIssueVersion(reportIssue("KMA-2", "Sub-task", date(2025, 1, 2)), "5.1.0", nil)
	child.ParentKey = "KMA-1"
	outsideParent := withIssueVersion(reportIssue("KMA-3", "Task", date(2025, 1, 3)), "5.1.0", nil)
	outsideParent.ParentKey = "KMA-99"

	report := BuildReport([]models.ProcessedIssue{parent, child, outsideParent}, 2025, ReportOptions{})

	group := report.VersionProjects[0].Groups[0]
	require.Len(t, group.Roots, 2, "the child nests under its in-group parent")

	rootKeys := []string{group.Roots[0].Issue.Key, group.Roots[1].Issue.Key}
	assert.Contains(t, rootKeys, "KMA-1")
	assert.Contains(t, rootKeys, "KMA-3", "a parent outside the group leaves the issue as a root")

	for _, root := range group.Roots {
		if root.Issue.Key == "KMA-1" {
			require.Len(t, root.Children, 1)
			assert.Equal(t, "KMA-2", root.Children[0].Issue.Key)
		}
	}
}

func TestIssueTreeSurvivesParentCycle(t *testing.T) {
	a := withIssueVersion(reportIssue("KMA-1", "Story", date(2025, 1, 1)), "5.1.0", nil)
	a.ParentKey = "KMA-2"
	b := withIssueVersion(reportIssue("KMA-2", "Story", date(2025, 1, 2)), "5.1.0", nil)
	b.ParentKey = "KMA-1"
	self := withIssueVersion(reportIssue("KMA-3", "Task", date(2025, 1, 3)), "5.1.0", nil)
	self.ParentKey = "KMA-3"

	report := BuildReport([]models.ProcessedIssue{a, b, self}, 2025, ReportOptions{})

	group := report.VersionProjects[0].Groups[0]

	total := 0
	var walk func(nodes []models.IssueNode)
	walk = func(nodes []models.IssueNode) {
		for _, node := range nodes {
			total++
			walk(node.Children)
		}
	}
	walk(group.Roots)

	assert.Equal(t, 3, total, "every issue appears exactly once despite the cycle")
}

func TestPriorityOf(t *testing.T) {
	assert.Less(t, priorityOf("Epic"), priorityOf("Story"))
	assert.Less(t, priorityOf("Story"), priorityOf("Bug"))
	assert.Less(t, priorityOf("Sub-task"), priorityOf("BI 요청"))
	assert.Equal(t, priorityOf("에픽"), priorityOf("Epic"))
	assert.Equal(t, unlistedTypePriority, priorityOf("Whatever"))
}

package services

import (
	"sort"
	"strings"

	"moa-report-jira/internal/models"
)

// Sentinel group keys for issues without an epic or version.
const (
	noEpicKey        = "NO_EPIC"
	noEpicTitle      = "기타 (에픽 없음)"
	unversionedTitle = "Unversioned"
)

// typePriority is the fixed ordering table used for tie-breaks in the month
// grid and the type aggregates. Unlisted types sort last.
var typePriority = map[string]int{
	"Epic":        0,
	"에픽":          0,
	"Story":       1,
	"스토리":         1,
	"Improvement": 2,
	"개선":          2,
	"Bug":         3,
	"버그":          3,
	"Design":      4,
	"디자인":         4,
	"Task":        5,
	"작업":          5,
	"Sub-task":    6,
	"하위 작업":       6,
	"BI 요청":       7,
}

const unlistedTypePriority = 8

func priorityOf(issueType string) int {
	if p, ok := typePriority[issueType]; ok {
		return p
	}
	return unlistedTypePriority
}

// ReportOptions carries the grouping parameters of one report build.
type ReportOptions struct {
	LabelTopN           int
	PlaceholderVersions []string
}

// BuildReport groups a fully resolved issue collection into the month grid,
// the epic and version views and the aggregate counts consumed by the
// renderer. Output is deterministic for a given input collection.
func BuildReport(issues []models.ProcessedIssue, year int, opts ReportOptions) *models.ReportContext {
	if opts.LabelTopN <= 0 {
		opts.LabelTopN = 20
	}

	ctx := &models.ReportContext{
		Year:       year,
		TotalCount: len(issues),
	}

	ctx.Months = buildMonthGrid(issues, year, opts.PlaceholderVersions)
	ctx.TypeCounts = buildTypeCounts(issues)
	ctx.LabelCounts = buildLabelCounts(issues, opts.LabelTopN)
	ctx.Projects = buildEpicView(issues)
	ctx.VersionProjects = buildVersionView(issues)

	return ctx
}

// buildMonthGrid fills the fixed 12-slot grid with top-level versioned
// issues. Issues whose only versions are the awaiting-assignment placeholder
// are excluded, as are issues whose bucket date falls outside the target
// year or could not be parsed at all.
func buildMonthGrid(issues []models.ProcessedIssue, year int, placeholders []string) []models.MonthSlot {
	placeholderSet := make(map[string]bool, len(placeholders))
	for _, name := range placeholders {
		placeholderSet[name] = true
	}

	byMonth := make(map[int][]models.ProcessedIssue)
	for _, issue := range issues {
		if issue.IsSubtask || !issue.HasVersions() {
			continue
		}
		if onlyPlaceholderVersions(issue, placeholderSet) {
			continue
		}

		date := issue.BucketDate()
		if date.IsZero() || date.Year() != year {
			continue
		}

		month := int(date.Month())
		byMonth[month] = append(byMonth[month], issue)
	}

	slots := make([]models.MonthSlot, 12)
	for month := 1; month <= 12; month++ {
		slot := models.MonthSlot{Month: month, Issues: byMonth[month]}
		sortMonthIssues(slot.Issues)
		slot.Count = len(slot.Issues)
		slots[month-1] = slot
	}

	return slots
}

func onlyPlaceholderVersions(issue models.ProcessedIssue, placeholders map[string]bool) bool {
	if len(placeholders) == 0 {
		return false
	}
	for _, v := range issue.Versions {
		if !placeholders[v.Name] {
			return false
		}
	}
	return true
}

// sortMonthIssues orders a slot by release date ascending, then the type
// priority table, then creation date ascending.
func sortMonthIssues(issues []models.ProcessedIssue) {
	sort.SliceStable(issues, func(i, j int) bool {
		a, b := issues[i], issues[j]

		switch {
		case a.ReleaseDate != nil && b.ReleaseDate != nil:
			if !a.ReleaseDate.Equal(*b.ReleaseDate) {
				return a.ReleaseDate.Before(*b.ReleaseDate)
			}
		case a.ReleaseDate != nil:
			return true
		case b.ReleaseDate != nil:
			return false
		}

		if pa, pb := priorityOf(a.IssueType), priorityOf(b.IssueType); pa != pb {
			return pa < pb
		}

		return a.CreatedDate.Before(b.CreatedDate)
	})
}

func buildTypeCounts(issues []models.ProcessedIssue) []models.TypeCount {
	counts := make(map[string]int)
	for _, issue := range issues {
		counts[issue.IssueType]++
	}

	out := make([]models.TypeCount, 0, len(counts))
	for issueType, count := range counts {
		out = append(out, models.TypeCount{Type: issueType, Count: count})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		if pa, pb := priorityOf(out[i].Type), priorityOf(out[j].Type); pa != pb {
			return pa < pb
		}
		return out[i].Type < out[j].Type
	})

	return out
}

func buildLabelCounts(issues []models.ProcessedIssue, topN int) []models.LabelCount {
	counts := make(map[string]int)
	for _, issue := range issues {
		for _, label := range issue.Labels {
			counts[label]++
		}
	}

	out := make([]models.LabelCount, 0, len(counts))
	for label, count := range counts {
		out = append(out, models.LabelCount{Label: label, Count: count})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Label < out[j].Label
	})

	if len(out) > topN {
		out = out[:topN]
	}
	return out
}

// buildEpicView groups issues per project by their direct parent. The
// sentinel no-epic bucket always sorts last; the view is flat.
func buildEpicView(issues []models.ProcessedIssue) []models.ProjectGroup {
	byProject := groupByProject(issues)
	projectKeys := sortedKeys(byProject)

	groups := make([]models.ProjectGroup, 0, len(projectKeys))
	for _, projectKey := range projectKeys {
		projectIssues := byProject[projectKey]

		byEpic := make(map[string][]models.ProcessedIssue)
		for _, issue := range projectIssues {
			epicKey := issue.ParentKey
			if epicKey == "" {
				epicKey = noEpicKey
			}
			byEpic[epicKey] = append(byEpic[epicKey], issue)
		}

		epicKeys := sortedKeys(byEpic)
		sort.SliceStable(epicKeys, func(i, j int) bool {
			if epicKeys[i] == noEpicKey {
				return false
			}
			if epicKeys[j] == noEpicKey {
				return true
			}
			return epicKeys[i] < epicKeys[j]
		})

		subGroups := make([]models.SubGroup, 0, len(epicKeys))
		for _, epicKey := range epicKeys {
			epicIssues := byEpic[epicKey]
			sortGroupIssues(epicIssues)

			group := models.SubGroup{
				Title: noEpicTitle,
				Count: len(epicIssues),
			}
			if epicKey != noEpicKey {
				first := epicIssues[0]
				group.Key = epicKey
				group.Title = first.ParentSummary
				if group.Title == "" {
					group.Title = epicKey
				}
				group.Link = strings.Replace(first.Link, first.Key, epicKey, 1)
			}

			group.Roots = make([]models.IssueNode, 0, len(epicIssues))
			for _, issue := range epicIssues {
				group.Roots = append(group.Roots, models.IssueNode{Issue: issue})
			}

			subGroups = append(subGroups, group)
		}

		groups = append(groups, models.ProjectGroup{Name: projectKey, Groups: subGroups})
	}

	return groups
}

// buildVersionView groups issues per project by platform-normalized version
// name, newest first, with issues organized into parent-child trees. An
// issue slated for several platform variants of the same version appears in
// that bucket once.
func buildVersionView(issues []models.ProcessedIssue) []models.ProjectGroup {
	byProject := groupByProject(issues)
	projectKeys := sortedKeys(byProject)

	groups := make([]models.ProjectGroup, 0, len(projectKeys))
	for _, projectKey := range projectKeys {
		projectIssues := byProject[projectKey]

		byVersion := make(map[string][]models.ProcessedIssue)
		for _, issue := range projectIssues {
			if !issue.HasVersions() {
				byVersion[unversionedTitle] = append(byVersion[unversionedTitle], issue)
				continue
			}

			seen := make(map[string]bool)
			for _, v := range issue.Versions {
				name := v.NormalizedName()
				if seen[name] {
					continue
				}
				seen[name] = true
				byVersion[name] = append(byVersion[name], issue)
			}
		}

		versionNames := sortedKeys(byVersion)
		sort.SliceStable(versionNames, func(i, j int) bool {
			if versionNames[i] == unversionedTitle {
				return false
			}
			if versionNames[j] == unversionedTitle {
				return true
			}
			return versionNames[i] > versionNames[j]
		})

		subGroups := make([]models.SubGroup, 0, len(versionNames))
		for _, name := range versionNames {
			versionIssues := byVersion[name]
			sortGroupIssues(versionIssues)

			subGroups = append(subGroups, models.SubGroup{
				Title:     name,
				Roots:     buildIssueTree(versionIssues),
				IsVersion: true,
				Count:     len(versionIssues),
			})
		}

		groups = append(groups, models.ProjectGroup{Name: projectKey, Groups: subGroups})
	}

	return groups
}

// buildIssueTree links issues to parents present within the same group; an
// issue whose parent is outside the group becomes a root. A visited set
// guards against cyclic parent references from a malformed tracker.
func buildIssueTree(issues []models.ProcessedIssue) []models.IssueNode {
	inGroup := make(map[string]bool, len(issues))
	for _, issue := range issues {
		inGroup[issue.Key] = true
	}

	childrenMap := make(map[string][]models.ProcessedIssue)
	var roots []models.ProcessedIssue
	for _, issue := range issues {
		if issue.ParentKey != "" && inGroup[issue.ParentKey] && issue.ParentKey != issue.Key {
			childrenMap[issue.ParentKey] = append(childrenMap[issue.ParentKey], issue)
		} else {
			roots = append(roots, issue)
		}
	}

	visited := make(map[string]bool, len(issues))
	var createNode func(issue models.ProcessedIssue) models.IssueNode
	createNode = func(issue models.ProcessedIssue) models.IssueNode {
		visited[issue.Key] = true
		node := models.IssueNode{Issue: issue}
		for _, child := range childrenMap[issue.Key] {
			if visited[child.Key] {
				continue
			}
			node.Children = append(node.Children, createNode(child))
		}
		return node
	}

	nodes := make([]models.IssueNode, 0, len(roots))
	for _, root := range roots {
		if visited[root.Key] {
			continue
		}
		nodes = append(nodes, createNode(root))
	}

	// Issues caught in a parent cycle have no root; promote the first
	// unvisited one so every issue still renders.
	for _, issue := range issues {
		if !visited[issue.Key] {
			nodes = append(nodes, createNode(issue))
		}
	}

	return nodes
}

// sortGroupIssues gives epic and version buckets a stable display order.
func sortGroupIssues(issues []models.ProcessedIssue) {
	sort.SliceStable(issues, func(i, j int) bool {
		if pa, pb := priorityOf(issues[i].IssueType), priorityOf(issues[j].IssueType); pa != pb {
			return pa < pb
		}
		if !issues[i].CreatedDate.Equal(issues[j].CreatedDate) {
			return issues[i].CreatedDate.Before(issues[j].CreatedDate)
		}
		return issues[i].Key < issues[j].Key
	})
}

func groupByProject(issues []models.ProcessedIssue) map[string][]models.ProcessedIssue {
	byProject := make(map[string][]models.ProcessedIssue)
	for _, issue := range issues {
		byProject[issue.ProjectKey] = append(byProject[issue.ProjectKey], issue)
	}
	return byProject
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"moa-report-jira/internal/common"
	"moa-report-jira/internal/interfaces"
	"moa-report-jira/internal/models"

	"github.com/ternarybob/arbor"
)

// maxResolutionRounds bounds the number of missing-parent fetch rounds, and
// maxInheritDepth bounds how far version info travels down a chain: a direct
// holder counts as depth 1, each inheriting child adds one. Hierarchies
// deeper than the bound stay partially unresolved in exchange for bounded
// request fanout.
const (
	maxResolutionRounds = 3
	maxInheritDepth     = 3
)

// ResolveVersions propagates release-version information from parents onto
// children that lack it, fetching missing parents on demand. The walk runs
// at most maxResolutionRounds rounds and stops early once a fixed point is
// reached. Input order is preserved; updated records are derived copies.
func ResolveVersions(ctx context.Context, client interfaces.JiraClient, config *common.JiraConfig, opts NormalizeOptions, logger arbor.ILogger, issues []models.ProcessedIssue) ([]models.ProcessedIssue, []models.Diagnostic) {
	issueMap := make(map[string]models.ProcessedIssue, len(issues))
	versionMap := make(map[string][]models.VersionInfo, len(issues))
	releaseDateMap := make(map[string]*time.Time, len(issues))
	parentMap := make(map[string]string, len(issues))
	depthMap := make(map[string]int, len(issues))

	record := func(issue models.ProcessedIssue) {
		issueMap[issue.Key] = issue
		versionMap[issue.Key] = issue.Versions
		releaseDateMap[issue.Key] = issue.ReleaseDate
		parentMap[issue.Key] = issue.ParentKey
		if issue.HasVersions() {
			depthMap[issue.Key] = 1
		}
	}

	for _, issue := range issues {
		record(issue)
	}

	var diags []models.Diagnostic

	for round := 0; round < maxResolutionRounds; round++ {
		unresolved := unresolvedKeys(issueMap, versionMap, parentMap)
		if len(unresolved) == 0 {
			break
		}

		missing := missingParentKeys(unresolved, parentMap, issueMap)

		fetchedAny := false
		if len(missing) > 0 {
			fetched, fetchDiags := fetchIssuesByKeys(ctx, client, config, opts, logger, missing)
			diags = append(diags, fetchDiags...)
			fetchedAny = len(fetched) > 0

			for _, parent := range fetched {
				record(parent)
			}
		}

		changed := false
		for _, key := range unresolved {
			parentKey := parentMap[key]
			parentVersions, ok := versionMap[parentKey]
			if !ok || len(parentVersions) == 0 {
				continue
			}
			// The depth bound keeps pathologically deep chains from
			// resolving all the way up.
			if depthMap[parentKey]+1 > maxInheritDepth {
				continue
			}
			versionMap[key] = parentVersions
			releaseDateMap[key] = releaseDateMap[parentKey]
			depthMap[key] = depthMap[parentKey] + 1
			changed = true
		}

		if !changed && !fetchedAny {
			break
		}
	}

	out := make([]models.ProcessedIssue, 0, len(issues))
	for _, issue := range issues {
		resolved := versionMap[issue.Key]
		if len(resolved) > 0 && !issue.HasVersions() {
			out = append(out, issue.WithVersions(resolved, releaseDateMap[issue.Key]))
			continue
		}
		out = append(out, issue)
	}

	return out, diags
}

func unresolvedKeys(issueMap map[string]models.ProcessedIssue, versionMap map[string][]models.VersionInfo, parentMap map[string]string) []string {
	var keys []string
	for key := range issueMap {
		if len(versionMap[key]) == 0 && parentMap[key] != "" {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

func missingParentKeys(unresolved []string, parentMap map[string]string, issueMap map[string]models.ProcessedIssue) []string {
	seen := make(map[string]bool)
	var missing []string
	for _, key := range unresolved {
		parentKey := parentMap[key]
		if parentKey == "" || seen[parentKey] {
			continue
		}
		seen[parentKey] = true
		if _, known := issueMap[parentKey]; !known {
			missing = append(missing, parentKey)
		}
	}
	sort.Strings(missing)
	return missing
}

// fetchIssuesByKeys batch-fetches parent issues by key list. A failed batch
// degrades to fewer resolved issues instead of aborting the run.
func fetchIssuesByKeys(ctx context.Context, client interfaces.JiraClient, config *common.JiraConfig, opts NormalizeOptions, logger arbor.ILogger, keys []string) ([]models.ProcessedIssue, []models.Diagnostic) {
	var issues []models.ProcessedIssue
	var diags []models.Diagnostic

	for _, chunk := range chunkStrings(keys, config.KeyChunkSize) {
		jql := fmt.Sprintf("key in (%s)", strings.Join(chunk, ","))

		nextPageToken := ""
		for {
			page, err := client.SearchIssues(ctx, jql, searchFields, config.PageSize, nextPageToken)
			if err != nil {
				logger.Warn().
					Err(err).
					Int("keys", len(chunk)).
					Msg("Parent batch fetch failed, leaving children unresolved")
				diags = append(diags, models.Diagnostic{
					Field:   "parent",
					Value:   strings.Join(chunk, ","),
					Message: "parent batch fetch failed, version resolution degraded",
				})
				break
			}

			for _, raw := range page.Issues {
				issue, d := NormalizeIssue(raw, opts)
				issues = append(issues, issue)
				diags = append(diags, d...)
			}

			if page.NextPageToken == "" {
				break
			}
			nextPageToken = page.NextPageToken
		}
	}

	return issues, diags
}

package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"moa-report-jira/internal/common"
	"moa-report-jira/internal/interfaces"
	"moa-report-jira/internal/models"

	"github.com/ternarybob/arbor"
	"golang.org/x/sync/errgroup"
)

// ProgressFunc receives phase updates while an aggregation run executes.
type ProgressFunc func(phase string, detail map[string]interface{})

// AggregateRequest describes one report run.
type AggregateRequest struct {
	Year     int
	Assignee string // empty means the authenticated user
	Platform string
}

// AggregateResult is the complete, de-duplicated issue collection of a run
// together with the diagnostics gathered along the way.
type AggregateResult struct {
	Issues      []models.ProcessedIssue
	User        *interfaces.UserInfo
	Diagnostics []models.Diagnostic
}

// Aggregator discovers which tickets belong to a user and year, resolves
// missing version info through parent links, and returns a de-duplicated
// issue collection. One Aggregator serves one request; it carries no state
// across runs.
type Aggregator struct {
	client   interfaces.JiraClient
	config   *common.JiraConfig
	opts     NormalizeOptions
	logger   arbor.ILogger
	progress ProgressFunc
}

// NewAggregator creates an aggregator bound to a request-scoped Jira client.
func NewAggregator(client interfaces.JiraClient, config *common.JiraConfig, opts NormalizeOptions, logger arbor.ILogger, progress ProgressFunc) *Aggregator {
	if progress == nil {
		progress = func(string, map[string]interface{}) {}
	}
	return &Aggregator{
		client:   client,
		config:   config,
		opts:     opts,
		logger:   logger,
		progress: progress,
	}
}

// FetchIssues runs the full pipeline: credential validation, discovery,
// target-version discovery, membership resolution, de-duplication and
// hierarchy version propagation.
func (a *Aggregator) FetchIssues(ctx context.Context, req AggregateRequest) (*AggregateResult, error) {
	if req.Year <= 0 {
		return nil, common.NewValidationError("YEAR_REQUIRED", "target year must be positive")
	}

	user, err := a.client.Myself(ctx)
	if err != nil {
		return nil, err
	}

	a.logger.Info().
		Str("user", user.DisplayName).
		Int("year", req.Year).
		Msg("Starting issue aggregation")

	result := &AggregateResult{User: user}

	// Phase 1: broad discovery search seeding the candidate project set.
	a.progress("discovery", map[string]interface{}{"year": req.Year})

	discoveryJQL := a.buildDiscoveryJQL(req)
	discovered, diags, err := a.searchAll(ctx, discoveryJQL)
	if err != nil {
		return nil, err
	}
	result.Diagnostics = append(result.Diagnostics, diags...)

	// Discovery matches on assignee directly, so everything found here is
	// the target user's own ticket.
	for i := range discovered {
		discovered[i] = discovered[i].WithMyTicket(true)
	}

	a.logger.Info().
		Int("count", len(discovered)).
		Msg("Discovery search complete")

	// Phase 2: released versions of the discovered projects for the year.
	projectKeys := distinctProjectKeys(discovered)
	if len(projectKeys) == 0 && a.config.DefaultProject != "" {
		// Configurable fallback for accounts whose activity lives entirely
		// in version-scoped issues.
		projectKeys = []string{a.config.DefaultProject}
	}

	a.progress("versions", map[string]interface{}{"projects": len(projectKeys)})

	versionIDs, versionDiags := a.collectTargetVersions(ctx, projectKeys, req.Year)
	result.Diagnostics = append(result.Diagnostics, versionDiags...)

	a.logger.Info().
		Int("projects", len(projectKeys)).
		Int("versions", len(versionIDs)).
		Msg("Target version discovery complete")

	// Phase 3: membership pass over the pooled version IDs.
	a.progress("membership", map[string]interface{}{"versions": len(versionIDs)})

	membership, memberDiags, err := a.resolveMembership(ctx, req, user, versionIDs)
	if err != nil {
		return nil, err
	}
	result.Diagnostics = append(result.Diagnostics, memberDiags...)

	merged := dedupeIssues(append(discovered, membership...))

	// Final pass: propagate version info down from parents.
	a.progress("hierarchy", map[string]interface{}{"issues": len(merged)})

	resolved, hierDiags := ResolveVersions(ctx, a.client, a.config, a.opts, a.logger, merged)
	result.Diagnostics = append(result.Diagnostics, hierDiags...)
	result.Issues = resolved

	a.logger.Info().
		Int("total", len(result.Issues)).
		Int("diagnostics", len(result.Diagnostics)).
		Msg("Aggregation complete")

	return result, nil
}

func (a *Aggregator) assigneeClause(req AggregateRequest) string {
	if req.Assignee == "" {
		return "assignee = currentUser()"
	}
	return fmt.Sprintf("assignee = %q", req.Assignee)
}

func (a *Aggregator) buildDiscoveryJQL(req AggregateRequest) string {
	parts := []string{a.assigneeClause(req)}

	if len(a.config.ExcludedProjects) > 0 {
		parts = append(parts, fmt.Sprintf("project not in (%s)", strings.Join(a.config.ExcludedProjects, ", ")))
	}

	parts = append(parts, fmt.Sprintf("(created >= %d-01-01 OR resolutiondate >= %d-01-01)", req.Year, req.Year))

	return strings.Join(parts, " AND ")
}

// collectTargetVersions fetches each project's version list and pools the
// IDs of versions released in the target year. Lookups run concurrently but
// merge in sorted project order so the pooled ID order is deterministic. A
// failed lookup degrades that project to zero versions instead of aborting
// the run.
func (a *Aggregator) collectTargetVersions(ctx context.Context, projectKeys []string, year int) ([]string, []models.Diagnostic) {
	yearPrefix := fmt.Sprintf("%d", year)

	byProject := make(map[string][]string, len(projectKeys))
	diagsByProject := make(map[string]models.Diagnostic)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	results := make(chan struct {
		project string
		ids     []string
		err     error
	}, len(projectKeys))

	for _, projectKey := range projectKeys {
		g.Go(func() error {
			versions, err := a.client.ProjectVersions(gctx, projectKey)
			out := struct {
				project string
				ids     []string
				err     error
			}{project: projectKey, err: err}

			for _, v := range versions {
				if v.Released && strings.HasPrefix(v.ReleaseDate, yearPrefix) {
					out.ids = append(out.ids, v.ID)
				}
			}

			results <- out
			return nil
		})
	}

	g.Wait()
	close(results)

	for r := range results {
		if r.err != nil {
			a.logger.Warn().
				Err(r.err).
				Str("project", r.project).
				Msg("Version lookup failed, continuing with no versions for project")
			diagsByProject[r.project] = models.Diagnostic{
				Field:   "versions",
				Value:   r.project,
				Message: "project version lookup failed, project degraded to zero versions",
			}
			continue
		}
		byProject[r.project] = r.ids
	}

	sorted := make([]string, len(projectKeys))
	copy(sorted, projectKeys)
	sort.Strings(sorted)

	var ids []string
	var diags []models.Diagnostic
	for _, projectKey := range sorted {
		ids = append(ids, byProject[projectKey]...)
		if d, ok := diagsByProject[projectKey]; ok {
			diags = append(diags, d)
		}
	}

	return ids, diags
}

// MembershipEntry is one issue slated for a target version together with how
// it relates to the target user: assigned directly, or only through the
// user's subtasks under it.
type MembershipEntry struct {
	Issue    models.ProcessedIssue
	Direct   bool
	Subtasks []models.ProcessedIssue
}

// VersionMembership fetches every issue slated for the given versions,
// regardless of assignee, and classifies each one's relevance to the target
// user. All candidates are returned, including the irrelevant ones; callers
// filter by Direct and Subtasks as needed.
func (a *Aggregator) VersionMembership(ctx context.Context, req AggregateRequest, versionIDs []string) ([]MembershipEntry, *interfaces.UserInfo, error) {
	user, err := a.client.Myself(ctx)
	if err != nil {
		return nil, nil, err
	}

	entries, diags, err := a.membershipEntries(ctx, req, user, versionIDs)
	if err != nil {
		return nil, nil, err
	}

	for _, diag := range diags {
		a.logger.Warn().
			Str("issue", diag.IssueKey).
			Str("field", diag.Field).
			Msg(diag.Message)
	}

	return entries, user, nil
}

// resolveMembership reduces the membership entries to the issues a report
// includes: either the issue is directly assigned to the target user, or one
// of its subtasks is.
func (a *Aggregator) resolveMembership(ctx context.Context, req AggregateRequest, user *interfaces.UserInfo, versionIDs []string) ([]models.ProcessedIssue, []models.Diagnostic, error) {
	entries, diags, err := a.membershipEntries(ctx, req, user, versionIDs)
	if err != nil {
		return nil, nil, err
	}

	var included []models.ProcessedIssue
	for _, entry := range entries {
		if entry.Direct {
			included = append(included, entry.Issue.WithMyTicket(true))
			continue
		}
		if len(entry.Subtasks) > 0 {
			// Related through a subtask only; not the user's own ticket.
			included = append(included, entry.Issue)
		}
	}

	return included, diags, nil
}

// membershipEntries runs the two membership passes: all issues slated for
// the versions, then the target user's subtasks under those issues.
func (a *Aggregator) membershipEntries(ctx context.Context, req AggregateRequest, user *interfaces.UserInfo, versionIDs []string) ([]MembershipEntry, []models.Diagnostic, error) {
	if len(versionIDs) == 0 {
		return nil, nil, nil
	}

	var candidates []models.ProcessedIssue
	var diags []models.Diagnostic

	for _, chunk := range chunkStrings(versionIDs, a.config.VersionChunkSize) {
		jql := fmt.Sprintf("fixVersion in (%s)", strings.Join(chunk, ","))
		issues, d, err := a.searchAll(ctx, jql)
		if err != nil {
			return nil, nil, err
		}
		candidates = append(candidates, issues...)
		diags = append(diags, d...)
	}

	candidates = dedupeIssues(candidates)

	subtasksByParent, subDiags, err := a.fetchMySubtasks(ctx, req, candidates)
	if err != nil {
		return nil, nil, err
	}
	diags = append(diags, subDiags...)

	entries := make([]MembershipEntry, 0, len(candidates))
	for _, issue := range candidates {
		entries = append(entries, MembershipEntry{
			Issue:    issue,
			Direct:   a.isDirectlyAssigned(req, user, issue),
			Subtasks: subtasksByParent[issue.Key],
		})
	}

	return entries, diags, nil
}

// fetchMySubtasks finds the target user's subtasks under any of the
// candidate issues, keyed by parent.
func (a *Aggregator) fetchMySubtasks(ctx context.Context, req AggregateRequest, candidates []models.ProcessedIssue) (map[string][]models.ProcessedIssue, []models.Diagnostic, error) {
	subtasksByParent := make(map[string][]models.ProcessedIssue)
	var diags []models.Diagnostic

	keys := make([]string, 0, len(candidates))
	for _, issue := range candidates {
		keys = append(keys, issue.Key)
	}

	for _, chunk := range chunkStrings(keys, a.config.KeyChunkSize) {
		jql := fmt.Sprintf("parent in (%s) AND %s", strings.Join(chunk, ","), a.assigneeClause(req))
		subtasks, d, err := a.searchAll(ctx, jql)
		if err != nil {
			return nil, nil, err
		}
		diags = append(diags, d...)

		for _, sub := range subtasks {
			if sub.ParentKey != "" {
				subtasksByParent[sub.ParentKey] = append(subtasksByParent[sub.ParentKey], sub)
			}
		}
	}

	return subtasksByParent, diags, nil
}

// isDirectlyAssigned matches by immutable account ID when the target is the
// authenticated user. When an arbitrary assignee name was requested only the
// display name is available; that comparison is inherently ambiguous and is
// kept as a best-effort fallback.
func (a *Aggregator) isDirectlyAssigned(req AggregateRequest, user *interfaces.UserInfo, issue models.ProcessedIssue) bool {
	if req.Assignee == "" {
		return user.AccountID != "" && issue.AssigneeAccountID == user.AccountID
	}
	return issue.AssigneeName == req.Assignee
}

// searchAll consumes every page of one JQL search in cursor order and
// normalizes the results.
func (a *Aggregator) searchAll(ctx context.Context, jql string) ([]models.ProcessedIssue, []models.Diagnostic, error) {
	var issues []models.ProcessedIssue
	var diags []models.Diagnostic

	nextPageToken := ""
	for {
		page, err := a.client.SearchIssues(ctx, jql, searchFields, a.config.PageSize, nextPageToken)
		if err != nil {
			return nil, nil, err
		}

		for _, raw := range page.Issues {
			issue, d := NormalizeIssue(raw, a.opts)
			issues = append(issues, issue)
			diags = append(diags, d...)
		}

		if page.NextPageToken == "" {
			break
		}
		nextPageToken = page.NextPageToken
	}

	return issues, diags, nil
}

// dedupeIssues collapses the collection to unique keys, first-seen wins.
func dedupeIssues(issues []models.ProcessedIssue) []models.ProcessedIssue {
	seen := make(map[string]bool, len(issues))
	out := make([]models.ProcessedIssue, 0, len(issues))
	for _, issue := range issues {
		if seen[issue.Key] {
			continue
		}
		seen[issue.Key] = true
		out = append(out, issue)
	}
	return out
}

func distinctProjectKeys(issues []models.ProcessedIssue) []string {
	seen := make(map[string]bool)
	var keys []string
	for _, issue := range issues {
		if !seen[issue.ProjectKey] {
			seen[issue.ProjectKey] = true
			keys = append(keys, issue.ProjectKey)
		}
	}
	return keys
}

func chunkStrings(values []string, size int) [][]string {
	if size <= 0 {
		size = len(values)
	}
	var chunks [][]string
	for start := 0; start < len(values); start += size {
		end := start + size
		if end > len(values) {
			end = len(values)
		}
		chunks = append(chunks, values[start:end])
	}
	return chunks
}

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"moa-report-jira/internal/common"
	"moa-report-jira/internal/interfaces"
	"moa-report-jira/internal/services"
)

// Debug CLI for poking at the pipeline without a browser: list project
// versions, inspect a single normalized issue, or run a full report and dump
// the aggregates as JSON.
func main() {
	var (
		configPath = flag.String("config", "", "Path to configuration file")
		command    = flag.String("cmd", "report", "Command: 'report', 'versions', 'version-issues' or 'issue'")
		project    = flag.String("project", "", "Project key for the versions commands")
		key        = flag.String("key", "", "Issue key for the issue command")
		versionID  = flag.String("version", "", "Version ID for the version-issues command")
		onlyMine   = flag.Bool("me", false, "Only show issues relevant to the target user")
		year       = flag.Int("year", time.Now().Year(), "Target report year")
		assignee   = flag.String("assignee", "", "Report on another assignee instead of the token owner")
		platform   = flag.String("platform", "", "Platform keyword for version ordering")
	)
	flag.Parse()

	cfg, err := common.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if cfg.Jira.Email == "" || cfg.Jira.APIToken == "" {
		fmt.Fprintln(os.Stderr, "Jira credentials required: set jira.email and jira.api_token (or JIRA_EMAIL / JIRA_API_TOKEN)")
		os.Exit(1)
	}

	if err := common.InitLogger(&cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	creds := interfaces.Credentials{Email: cfg.Jira.Email, APIToken: cfg.Jira.APIToken}
	client := services.NewJiraClient(&cfg.Jira, creds)
	ctx := context.Background()

	switch *command {
	case "versions":
		if *project == "" {
			*project = cfg.Jira.DefaultProject
		}
		runVersions(ctx, client, *project)
	case "version-issues":
		if *versionID == "" {
			fmt.Fprintln(os.Stderr, "-version is required for the version-issues command")
			os.Exit(1)
		}
		runVersionIssues(ctx, client, cfg, *versionID, *assignee, *platform, *onlyMine)
	case "issue":
		if *key == "" {
			fmt.Fprintln(os.Stderr, "-key is required for the issue command")
			os.Exit(1)
		}
		runIssue(ctx, client, cfg, *key, *platform)
	case "report":
		runReport(ctx, client, cfg, *year, *assignee, *platform)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", *command)
		os.Exit(1)
	}
}

func runVersions(ctx context.Context, client interfaces.JiraClient, project string) {
	versions, err := client.ProjectVersions(ctx, project)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Version lookup failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("%d versions in %s:\n", len(versions), project)
	for _, v := range versions {
		state := "unreleased"
		if v.Released {
			state = "released"
		}
		fmt.Printf("  %-10s %-40s %s %s\n", v.ID, v.Name, state, v.ReleaseDate)
	}
}

// runVersionIssues dumps the membership of one version: every issue slated
// for it, annotated with whether it is relevant to the target user directly
// or only through the user's subtasks.
func runVersionIssues(ctx context.Context, client interfaces.JiraClient, cfg *common.Config, versionID, assignee, platform string, onlyMine bool) {
	opts := services.NormalizeOptions{
		BaseURL:      cfg.Jira.BaseURL,
		Platform:     platform,
		PlatformMode: services.ParsePlatformMode(cfg.Report.PlatformMode),
	}

	aggregator := services.NewAggregator(client, &cfg.Jira, opts, common.GetLogger(), nil)

	entries, user, err := aggregator.VersionMembership(ctx, services.AggregateRequest{
		Year:     time.Now().Year(),
		Assignee: assignee,
		Platform: platform,
	}, []string{versionID})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Membership lookup failed: %v\n", err)
		os.Exit(1)
	}

	target := user.DisplayName
	if assignee != "" {
		target = assignee
	}

	relevant := 0
	for _, entry := range entries {
		if entry.Direct || len(entry.Subtasks) > 0 {
			relevant++
		}
	}
	fmt.Printf("%d issues in version %s, %d relevant to %s:\n\n", len(entries), versionID, relevant, target)

	for _, entry := range entries {
		switch {
		case entry.Direct:
			fmt.Printf("  [direct]  %-12s %s (%s)\n", entry.Issue.Key, entry.Issue.Summary, entry.Issue.AssigneeName)
		case len(entry.Subtasks) > 0:
			fmt.Printf("  [subtask] %-12s %s (%s)\n", entry.Issue.Key, entry.Issue.Summary, entry.Issue.AssigneeName)
			for _, sub := range entry.Subtasks {
				fmt.Printf("            └ %-12s %s\n", sub.Key, sub.Summary)
			}
		case !onlyMine:
			fmt.Printf("  [other]   %-12s %s (%s)\n", entry.Issue.Key, entry.Issue.Summary, entry.Issue.AssigneeName)
		}
	}
}

func runIssue(ctx context.Context, client interfaces.JiraClient, cfg *common.Config, key, platform string) {
	page, err := client.SearchIssues(ctx, fmt.Sprintf("key = %s", key), nil, 1, "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Issue fetch failed: %v\n", err)
		os.Exit(1)
	}
	if len(page.Issues) == 0 {
		fmt.Fprintf(os.Stderr, "Issue %s not found\n", key)
		os.Exit(1)
	}

	opts := services.NormalizeOptions{
		BaseURL:      cfg.Jira.BaseURL,
		Platform:     platform,
		PlatformMode: services.ParsePlatformMode(cfg.Report.PlatformMode),
	}

	issue, diags := services.NormalizeIssue(page.Issues[0], opts)
	printJSON(issue)
	for _, d := range diags {
		fmt.Printf("diagnostic: %s %s=%q %s\n", d.IssueKey, d.Field, d.Value, d.Message)
	}
}

func runReport(ctx context.Context, client interfaces.JiraClient, cfg *common.Config, year int, assignee, platform string) {
	opts := services.NormalizeOptions{
		BaseURL:      cfg.Jira.BaseURL,
		Platform:     platform,
		PlatformMode: services.ParsePlatformMode(cfg.Report.PlatformMode),
	}

	progress := func(phase string, detail map[string]interface{}) {
		fmt.Printf("... %s %v\n", phase, detail)
	}

	aggregator := services.NewAggregator(client, &cfg.Jira, opts, common.GetLogger(), progress)

	result, err := aggregator.FetchIssues(ctx, services.AggregateRequest{
		Year:     year,
		Assignee: assignee,
		Platform: platform,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Aggregation failed: %v\n", err)
		os.Exit(1)
	}

	report := services.BuildReport(result.Issues, year, services.ReportOptions{
		LabelTopN:           cfg.Report.LabelTopN,
		PlaceholderVersions: cfg.Report.PlaceholderVersions,
	})
	report.DiagnosticCount = len(result.Diagnostics)

	fmt.Printf("%d issues for %s in %d (%d diagnostics)\n\n",
		report.TotalCount, result.User.DisplayName, year, report.DiagnosticCount)

	fmt.Println("Month grid:")
	for _, slot := range report.Months {
		fmt.Printf("  %2d월 %d\n", slot.Month, slot.Count)
	}

	fmt.Println("\nType counts:")
	for _, tc := range report.TypeCounts {
		fmt.Printf("  %-20s %d\n", tc.Type, tc.Count)
	}

	for _, d := range result.Diagnostics {
		fmt.Printf("diagnostic: %s %s=%q %s\n", d.IssueKey, d.Field, d.Value, d.Message)
	}
}

func printJSON(v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to marshal: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(data))
}

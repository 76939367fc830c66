package services

import (
	"context"

	"moa-report-jira/internal/common"
	"moa-report-jira/internal/interfaces"
	"moa-report-jira/internal/models"

	"github.com/ternarybob/arbor"
)

// reportRunner binds the aggregation pipeline and the grouping engine into
// the interfaces.ReportRunner contract consumed by the HTTP handlers.
type reportRunner struct {
	config   *common.Config
	logger   arbor.ILogger
	progress ProgressFunc
}

// NewReportRunner creates the pipeline runner shared by all report requests.
func NewReportRunner(config *common.Config, logger arbor.ILogger, progress ProgressFunc) interfaces.ReportRunner {
	return &reportRunner{
		config:   config,
		logger:   logger,
		progress: progress,
	}
}

func (rr *reportRunner) Run(ctx context.Context, client interfaces.JiraClient, params interfaces.ReportParams) (*models.ReportContext, error) {
	opts := NormalizeOptions{
		BaseURL:      rr.config.Jira.BaseURL,
		Platform:     params.Platform,
		PlatformMode: ParsePlatformMode(rr.config.Report.PlatformMode),
	}

	aggregator := NewAggregator(client, &rr.config.Jira, opts, rr.logger, rr.progress)

	result, err := aggregator.FetchIssues(ctx, AggregateRequest{
		Year:     params.Year,
		Assignee: params.Assignee,
		Platform: params.Platform,
	})
	if err != nil {
		return nil, err
	}

	reportCtx := BuildReport(result.Issues, params.Year, ReportOptions{
		LabelTopN:           rr.config.Report.LabelTopN,
		PlaceholderVersions: rr.config.Report.PlaceholderVersions,
	})
	reportCtx.DiagnosticCount = len(result.Diagnostics)

	for _, diag := range result.Diagnostics {
		rr.logger.Warn().
			Str("issue", diag.IssueKey).
			Str("field", diag.Field).
			Str("value", diag.Value).
			Msg(diag.Message)
	}

	return reportCtx, nil
}

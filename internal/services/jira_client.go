package services

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"moa-report-jira/internal/common"
	"moa-report-jira/internal/interfaces"

	"github.com/go-resty/resty/v2"
)

// searchFields is the field selection used by every aggregation search.
var searchFields = []string{
	"summary", "status", "labels", "created", "resolutiondate",
	"fixVersions", "parent", "issuetype", "assignee",
}

type jiraClient struct {
	client  *resty.Client
	baseURL string
}

// NewJiraClient creates a request-scoped Jira client for one set of
// credentials.
func NewJiraClient(config *common.JiraConfig, creds interfaces.Credentials) interfaces.JiraClient {
	client := resty.New().
		SetBaseURL(config.BaseURL).
		SetBasicAuth(creds.Email, creds.APIToken).
		SetTimeout(time.Duration(config.Timeout) * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &jiraClient{
		client:  client,
		baseURL: config.BaseURL,
	}
}

func (jc *jiraClient) BaseURL() string {
	return jc.baseURL
}

func (jc *jiraClient) SearchIssues(ctx context.Context, jql string, fields []string, maxResults int, nextPageToken string) (*interfaces.SearchResponse, error) {
	var response interfaces.SearchResponse

	request := interfaces.SearchRequest{
		JQL:           jql,
		Fields:        fields,
		MaxResults:    maxResults,
		NextPageToken: nextPageToken,
	}

	resp, err := jc.client.R().
		SetContext(ctx).
		SetBody(request).
		SetResult(&response).
		Post("/rest/api/3/search/jql")

	if err != nil {
		return nil, common.WrapError(err, common.ErrorTypeJira, "SEARCH_TRANSPORT", "failed to search issues")
	}

	if resp.StatusCode() != http.StatusOK {
		return nil, common.NewJiraError("SEARCH_FAILED", "tracker API error").
			WithUpstream(resp.StatusCode(), resp.String()).
			WithContext("jql", jql)
	}

	return &response, nil
}

func (jc *jiraClient) ProjectVersions(ctx context.Context, projectKey string) ([]interfaces.ProjectVersion, error) {
	var versions []interfaces.ProjectVersion

	resp, err := jc.client.R().
		SetContext(ctx).
		SetResult(&versions).
		Get(fmt.Sprintf("/rest/api/3/project/%s/versions", projectKey))

	if err != nil {
		return nil, common.WrapError(err, common.ErrorTypeJira, "VERSIONS_TRANSPORT", "failed to fetch project versions").
			WithContext("project", projectKey)
	}

	if resp.StatusCode() != http.StatusOK {
		return nil, common.NewJiraError("VERSIONS_FAILED", "tracker API error").
			WithUpstream(resp.StatusCode(), resp.String()).
			WithContext("project", projectKey)
	}

	return versions, nil
}

func (jc *jiraClient) Myself(ctx context.Context) (*interfaces.UserInfo, error) {
	var user interfaces.UserInfo

	resp, err := jc.client.R().
		SetContext(ctx).
		SetResult(&user).
		Get("/rest/api/3/myself")

	if err != nil {
		return nil, common.WrapError(err, common.ErrorTypeAuth, "MYSELF_TRANSPORT", "failed to fetch current user")
	}

	if resp.StatusCode() != http.StatusOK {
		return nil, common.NewAuthError("UNAUTHORIZED", "credential validation failed").
			WithUpstream(resp.StatusCode(), resp.String())
	}

	return &user, nil
}

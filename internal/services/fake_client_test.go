package services

import (
	"context"
	"fmt"

	"moa-report-jira/internal/interfaces"
)

// fakeJiraClient scripts tracker responses for pipeline tests. Search
// dispatch is delegated so each test can match on the JQL it expects.
type fakeJiraClient struct {
	user        *interfaces.UserInfo
	myselfErr   error
	versions    map[string][]interfaces.ProjectVersion
	versionsErr map[string]error
	search      func(jql, nextPageToken string) (*interfaces.SearchResponse, error)

	searchJQLs []string
}

func (f *fakeJiraClient) SearchIssues(ctx context.Context, jql string, fields []string, maxResults int, nextPageToken string) (*interfaces.SearchResponse, error) {
	f.searchJQLs = append(f.searchJQLs, jql)
	if f.search == nil {
		return &interfaces.SearchResponse{}, nil
	}
	return f.search(jql, nextPageToken)
}

func (f *fakeJiraClient) ProjectVersions(ctx context.Context, projectKey string) ([]interfaces.ProjectVersion, error) {
	if err, ok := f.versionsErr[projectKey]; ok {
		return nil, err
	}
	return f.versions[projectKey], nil
}

func (f *fakeJiraClient) Myself(ctx context.Context) (*interfaces.UserInfo, error) {
	if f.myselfErr != nil {
		return nil, f.myselfErr
	}
	if f.user == nil {
		return &interfaces.UserInfo{AccountID: "account-1", DisplayName: "Tester"}, nil
	}
	return f.user, nil
}

func (f *fakeJiraClient) BaseURL() string {
	return "https://example.atlassian.net"
}

func rawIssue(key, issueType, created string) interfaces.RawIssue {
	return interfaces.RawIssue{
		Key: key,
		Fields: interfaces.RawFields{
			Summary:   fmt.Sprintf("Summary of %s", key),
			Created:   created,
			IssueType: interfaces.RawIssueType{Name: issueType},
		},
	}
}

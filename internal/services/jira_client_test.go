package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"moa-report-jira/internal/common"
	"moa-report-jira/internal/interfaces"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testJiraClient(t *testing.T, handler http.HandlerFunc) interfaces.JiraClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewJiraClient(&common.JiraConfig{
		BaseURL: server.URL,
		Timeout: 5,
	}, interfaces.Credentials{Email: "tester@example.com", APIToken: "token"})
}

func TestSearchIssuesSendsCursorRequest(t *testing.T) {
	client := testJiraClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/rest/api/3/search/jql", r.URL.Path)

		email, token, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "tester@example.com", email)
		assert.Equal(t, "token", token)

		var body interfaces.SearchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "project = KMA", body.JQL)
		assert.Equal(t, 100, body.MaxResults)
		assert.Equal(t, "cursor-1", body.NextPageToken)
		assert.Contains(t, body.Fields, "fixVersions")

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(interfaces.SearchResponse{
			NextPageToken: "cursor-2",
			Issues:        []interfaces.RawIssue{{Key: "KMA-1"}},
		})
	})

	page, err := client.SearchIssues(context.Background(), "project = KMA", searchFields, 100, "cursor-1")

	require.NoError(t, err)
	assert.Equal(t, "cursor-2", page.NextPageToken)
	require.Len(t, page.Issues, 1)
	assert.Equal(t, "KMA-1", page.Issues[0].Key)
}

func TestSearchIssuesCarriesUpstreamFailure(t *testing.T) {
	client := testJiraClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"errorMessages":["Field 'bogus' does not exist"]}`))
	})

	_, err := client.SearchIssues(context.Background(), "bogus = 1", nil, 50, "")

	require.Error(t, err)
	var pipelineErr *common.PipelineError
	require.ErrorAs(t, err, &pipelineErr)
	assert.Equal(t, common.ErrorTypeJira, pipelineErr.Type)
	assert.Equal(t, http.StatusBadRequest, pipelineErr.StatusCode)
	assert.Contains(t, pipelineErr.Body, "does not exist")
	assert.Equal(t, "bogus = 1", pipelineErr.Context["jql"])
}

func TestProjectVersions(t *testing.T) {
	client := testJiraClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/rest/api/3/project/KMA/versions", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]interfaces.ProjectVersion{
			{ID: "100", Name: "5.1.0", Released: true, ReleaseDate: "2025-06-11"},
			{ID: "101", Name: "5.2.0"},
		})
	})

	versions, err := client.ProjectVersions(context.Background(), "KMA")

	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.True(t, versions[0].Released)
	assert.Equal(t, "2025-06-11", versions[0].ReleaseDate)
}

func TestMyselfUnauthorized(t *testing.T) {
	client := testJiraClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte("Basic auth with password is not allowed"))
	})

	_, err := client.Myself(context.Background())

	require.Error(t, err)
	var pipelineErr *common.PipelineError
	require.ErrorAs(t, err, &pipelineErr)
	assert.Equal(t, common.ErrorTypeAuth, pipelineErr.Type)
	assert.Equal(t, http.StatusUnauthorized, pipelineErr.StatusCode)
}

func TestMyself(t *testing.T) {
	client := testJiraClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/api/3/myself", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(interfaces.UserInfo{AccountID: "account-1", DisplayName: "Tester"})
	})

	user, err := client.Myself(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "account-1", user.AccountID)
	assert.Equal(t, "Tester", user.DisplayName)
}

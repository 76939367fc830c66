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

func testConfluenceClient(t *testing.T, handler http.HandlerFunc) interfaces.ConfluenceClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewConfluenceClient(&common.ConfluenceConfig{
		BaseURL: server.URL,
		Timeout: 5,
	}, interfaces.Credentials{Email: "tester@example.com", APIToken: "token"})
}

func TestCreateDraftPage(t *testing.T) {
	client := testConfluenceClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/rest/api/content", r.URL.Path)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "draft", body["status"], "pages are created as drafts, never published directly")
		assert.Equal(t, "page", body["type"])
		assert.Equal(t, "2025년 업무 리포트", body["title"])

		space := body["space"].(map[string]interface{})
		assert.Equal(t, "TEAM", space["key"])

		storage := body["body"].(map[string]interface{})["storage"].(map[string]interface{})
		assert.Equal(t, "storage", storage["representation"])
		assert.Contains(t, storage["value"], "<h1>")

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"12345","title":"2025년 업무 리포트","status":"draft","_links":{"webui":"/spaces/TEAM/pages/12345"}}`))
	})

	page, err := client.CreateDraftPage(context.Background(), "TEAM", "2025년 업무 리포트", "<h1>리포트</h1>")

	require.NoError(t, err)
	assert.Equal(t, "12345", page.ID)
	assert.Equal(t, "draft", page.Status)
	assert.Equal(t, "/spaces/TEAM/pages/12345", page.WebUI)
}

func TestCreateDraftPageUpstreamFailure(t *testing.T) {
	client := testConfluenceClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"message":"No permission to create content"}`))
	})

	_, err := client.CreateDraftPage(context.Background(), "TEAM", "title", "<p>body</p>")

	require.Error(t, err)
	var pipelineErr *common.PipelineError
	require.ErrorAs(t, err, &pipelineErr)
	assert.Equal(t, common.ErrorTypeConfluence, pipelineErr.Type)
	assert.Equal(t, http.StatusForbidden, pipelineErr.StatusCode)
	assert.Equal(t, "TEAM", pipelineErr.Context["space"])
}

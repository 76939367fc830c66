package interfaces

import (
	"context"

	"moa-report-jira/internal/models"
)

// JiraClient is a request-scoped client for the Jira Cloud REST API.
// Implementations carry the credentials of one report run.
type JiraClient interface {
	// SearchIssues performs one round trip of the paginated JQL search.
	// A non-success upstream status is fatal for the call.
	SearchIssues(ctx context.Context, jql string, fields []string, maxResults int, nextPageToken string) (*SearchResponse, error)
	// ProjectVersions lists all versions of a project. Callers decide
	// whether a failure is fatal or degrades to an empty version list.
	ProjectVersions(ctx context.Context, projectKey string) ([]ProjectVersion, error)
	// Myself resolves the authenticated principal. Used to validate
	// credentials up front and to match assignees by stable account ID.
	Myself(ctx context.Context) (*UserInfo, error)
	// BaseURL returns the tracker base URL for building browse links.
	BaseURL() string
}

// ConfluenceClient creates wiki pages from pre-rendered HTML content.
type ConfluenceClient interface {
	CreateDraftPage(ctx context.Context, spaceKey, title, htmlContent string) (*PageResult, error)
}

// SessionStore persists per-browser credential sessions.
type SessionStore interface {
	SaveSession(id string, creds Credentials) error
	LoadSession(id string) (*Credentials, error)
	DeleteSession(id string) error
	Close() error
}

// ReportParams selects what one report run covers.
type ReportParams struct {
	Year     int
	Assignee string // empty means the authenticated user
	Platform string
}

// ReportRunner executes the full aggregation pipeline and grouping for one
// request-scoped client. Handlers depend on this instead of the pipeline
// implementation.
type ReportRunner interface {
	Run(ctx context.Context, client JiraClient, params ReportParams) (*models.ReportContext, error)
}

// WebService is a controllable HTTP server.
type WebService interface {
	Start(ctx context.Context) error
	Stop() error
	IsRunning() bool
}

// Credentials is an email + API-token pair for Atlassian basic auth.
type Credentials struct {
	Email    string `json:"email"`
	APIToken string `json:"api_token"`
}

// SearchRequest is the POST body of /rest/api/3/search/jql.
type SearchRequest struct {
	JQL           string   `json:"jql"`
	Fields        []string `json:"fields"`
	MaxResults    int      `json:"maxResults"`
	NextPageToken string   `json:"nextPageToken,omitempty"`
}

// SearchResponse is one page of JQL search results.
type SearchResponse struct {
	StartAt       int        `json:"startAt,omitempty"`
	MaxResults    int        `json:"maxResults,omitempty"`
	Total         int        `json:"total,omitempty"`
	NextPageToken string     `json:"nextPageToken,omitempty"`
	Issues        []RawIssue `json:"issues"`
}

// RawIssue is a search-result item as returned by Jira.
type RawIssue struct {
	Key    string    `json:"key"`
	Fields RawFields `json:"fields"`
}

type RawFields struct {
	Summary        string        `json:"summary"`
	Created        string        `json:"created"`
	ResolutionDate string        `json:"resolutiondate,omitempty"`
	Status         RawStatus     `json:"status"`
	IssueType      RawIssueType  `json:"issuetype"`
	Labels         []string      `json:"labels"`
	FixVersions    []RawVersion  `json:"fixVersions,omitempty"`
	Parent         *RawParent    `json:"parent,omitempty"`
	Assignee       *RawAssignee  `json:"assignee,omitempty"`
}

type RawStatus struct {
	Name string `json:"name"`
}

type RawIssueType struct {
	Name    string `json:"name"`
	Subtask bool   `json:"subtask"`
}

type RawVersion struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ReleaseDate string `json:"releaseDate,omitempty"`
}

type RawParent struct {
	Key    string          `json:"key"`
	Fields RawParentFields `json:"fields"`
}

type RawParentFields struct {
	Summary   string        `json:"summary"`
	IssueType *RawIssueType `json:"issuetype,omitempty"`
}

type RawAssignee struct {
	AccountID   string `json:"accountId"`
	DisplayName string `json:"displayName"`
}

// ProjectVersion is one entry of /rest/api/3/project/{key}/versions.
type ProjectVersion struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Released    bool   `json:"released"`
	ReleaseDate string `json:"releaseDate,omitempty"`
	ProjectID   int    `json:"projectId,omitempty"`
}

// UserInfo is the authenticated principal from /rest/api/3/myself.
type UserInfo struct {
	AccountID   string `json:"accountId"`
	DisplayName string `json:"displayName"`
}

// PageResult is the outcome of a Confluence page creation.
type PageResult struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Status string `json:"status"`
	WebUI  string `json:"webui,omitempty"`
}

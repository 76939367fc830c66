package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"moa-report-jira/internal/common"
	"moa-report-jira/internal/interfaces"
	"moa-report-jira/internal/models"
	"moa-report-jira/internal/render"

	"github.com/ternarybob/arbor"
)

const sessionCookieName = "moa_session"

// ClientFactory builds a request-scoped Jira client for one set of
// credentials.
type ClientFactory func(creds interfaces.Credentials) interfaces.JiraClient

// ConfluenceFactory builds a request-scoped Confluence client for one set of
// credentials.
type ConfluenceFactory func(creds interfaces.Credentials) interfaces.ConfluenceClient

// APIHandlers contains all API endpoint handlers
type APIHandlers struct {
	config        *common.Config
	sessions      interfaces.SessionStore
	logger        arbor.ILogger
	runner        interfaces.ReportRunner
	newJiraClient ClientFactory
	newConfluence ConfluenceFactory
	startTime     time.Time

	mu       sync.Mutex
	lastRun  time.Time
	lastYear int
	lastSize int
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Build     string    `json:"build"`
	Uptime    float64   `json:"uptime_seconds"`
	Services  struct {
		Sessions bool `json:"sessions"`
		Jira     bool `json:"jira"`
	} `json:"services"`
}

// VersionResponse represents server version information
type VersionResponse struct {
	Version string `json:"version"`
	Build   string `json:"build"`
	Commit  string `json:"commit"`
}

// StatusResponse represents the report service status
type StatusResponse struct {
	Running       bool      `json:"running"`
	Uptime        float64   `json:"uptime_seconds"`
	LastRun       time.Time `json:"last_run,omitempty"`
	LastRunYear   int       `json:"last_run_year,omitempty"`
	LastRunIssues int       `json:"last_run_issues,omitempty"`
}

// ConfigResponse is the sanitized configuration display response. The API
// token is never echoed back.
type ConfigResponse struct {
	Server struct {
		Name        string `json:"name"`
		Environment string `json:"environment"`
		Port        int    `json:"port"`
	} `json:"server"`
	Jira struct {
		BaseURL          string   `json:"base_url"`
		Email            string   `json:"email"`
		ExcludedProjects []string `json:"excluded_projects"`
		DefaultProject   string   `json:"default_project"`
	} `json:"jira"`
	Confluence struct {
		BaseURL  string `json:"base_url"`
		SpaceKey string `json:"space_key"`
	} `json:"confluence"`
}

// PublishRequest is the POST body of /api/publish
type PublishRequest struct {
	Year     int    `json:"year"`
	Assignee string `json:"assignee,omitempty"`
	Platform string `json:"platform,omitempty"`
	Title    string `json:"title,omitempty"`
	SpaceKey string `json:"space_key,omitempty"`
}

// PublishResponse is the result of a wiki draft creation
type PublishResponse struct {
	PageID string `json:"page_id"`
	Title  string `json:"title"`
	Status string `json:"status"`
	WebUI  string `json:"webui,omitempty"`
}

// LoginRequest is the POST body of /auth/login
type LoginRequest struct {
	Email    string `json:"email"`
	APIToken string `json:"api_token"`
}

// NewAPIHandlers creates a new API handlers instance. The client factories
// and the runner are injected so this package stays decoupled from the
// pipeline implementation.
func NewAPIHandlers(config *common.Config, sessions interfaces.SessionStore, logger arbor.ILogger, runner interfaces.ReportRunner, newJiraClient ClientFactory, newConfluence ConfluenceFactory) *APIHandlers {
	return &APIHandlers{
		config:        config,
		sessions:      sessions,
		logger:        logger,
		runner:        runner,
		newJiraClient: newJiraClient,
		newConfluence: newConfluence,
		startTime:     time.Now(),
	}
}

// HealthHandler returns system health status
func (h *APIHandlers) HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	health := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Version:   common.GetVersion(),
		Build:     common.GetBuild(),
		Uptime:    time.Since(h.startTime).Seconds(),
	}

	health.Services.Sessions = h.testSessionStore()
	health.Services.Jira = h.config.Jira.BaseURL != ""

	if !health.Services.Sessions {
		health.Status = "degraded"
	}

	if err := json.NewEncoder(w).Encode(health); err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode health response")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

func (h *APIHandlers) testSessionStore() bool {
	if h.sessions == nil {
		return false
	}
	_, err := h.sessions.LoadSession("healthcheck")
	return err == nil
}

// VersionHandler returns version information
func (h *APIHandlers) VersionHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	versionResp := VersionResponse{
		Version: common.GetVersion(),
		Build:   common.GetBuild(),
		Commit:  common.GetGitCommit(),
	}

	if err := json.NewEncoder(w).Encode(versionResp); err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode version response")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// StatusHandler returns report service status
func (h *APIHandlers) StatusHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	h.mu.Lock()
	status := StatusResponse{
		Running:       true,
		Uptime:        time.Since(h.startTime).Seconds(),
		LastRun:       h.lastRun,
		LastRunYear:   h.lastYear,
		LastRunIssues: h.lastSize,
	}
	h.mu.Unlock()

	if err := json.NewEncoder(w).Encode(status); err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode status response")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// ConfigHandler returns the sanitized configuration
func (h *APIHandlers) ConfigHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var config ConfigResponse
	config.Server.Name = h.config.Server.Name
	config.Server.Environment = h.config.Server.Environment
	config.Server.Port = h.config.Server.Port
	config.Jira.BaseURL = h.config.Jira.BaseURL
	config.Jira.Email = h.config.Jira.Email
	config.Jira.ExcludedProjects = h.config.Jira.ExcludedProjects
	config.Jira.DefaultProject = h.config.Jira.DefaultProject
	config.Confluence.BaseURL = h.config.Confluence.BaseURL
	config.Confluence.SpaceKey = h.config.Confluence.SpaceKey

	if err := json.NewEncoder(w).Encode(config); err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode config response")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// ReportDataHandler runs the aggregation pipeline and returns the grouped
// report as JSON. Query parameters: year, assignee, platform.
func (h *APIHandlers) ReportDataHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	reportCtx, err := h.RunReport(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(reportCtx); err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode report response")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// PublishHandler runs the pipeline, renders the wiki draft and creates a
// Confluence page.
func (h *APIHandlers) PublishHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req PublishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, common.NewValidationError("BAD_BODY", "invalid publish request body"))
		return
	}

	if req.Year <= 0 {
		req.Year = time.Now().Year()
	}
	spaceKey := req.SpaceKey
	if spaceKey == "" {
		spaceKey = h.config.Confluence.SpaceKey
	}
	if spaceKey == "" {
		h.writeError(w, common.NewValidationError("SPACE_REQUIRED", "target space key is required"))
		return
	}

	creds, err := h.credentialsFor(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	reportCtx, err := h.runPipeline(r, creds, interfaces.ReportParams{
		Year:     req.Year,
		Assignee: req.Assignee,
		Platform: req.Platform,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	title := req.Title
	if title == "" {
		title = strconv.Itoa(req.Year) + "년 업무 리포트"
	}

	htmlContent := render.WikiHTML(reportCtx)

	confluence := h.newConfluence(creds)
	page, err := confluence.CreateDraftPage(r.Context(), spaceKey, title, htmlContent)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.logger.Info().
		Str("page_id", page.ID).
		Str("space", spaceKey).
		Msg("Wiki draft created")

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(PublishResponse{
		PageID: page.ID,
		Title:  page.Title,
		Status: page.Status,
		WebUI:  page.WebUI,
	})
}

// LoginHandler validates credentials against Jira and stores them in a
// cookie-backed session.
func (h *APIHandlers) LoginHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, common.NewValidationError("BAD_BODY", "invalid login request body"))
		return
	}
	if req.Email == "" || req.APIToken == "" {
		h.writeError(w, common.NewValidationError("CREDENTIALS_REQUIRED", "email and api_token are required"))
		return
	}

	creds := interfaces.Credentials{Email: req.Email, APIToken: req.APIToken}

	client := h.newJiraClient(creds)
	user, err := client.Myself(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	sessionID, err := newSessionID()
	if err != nil {
		h.writeError(w, common.WrapError(err, common.ErrorTypeInternal, "SESSION_ID", "failed to create session"))
		return
	}

	if err := h.sessions.SaveSession(sessionID, creds); err != nil {
		h.writeError(w, common.WrapError(err, common.ErrorTypeStorage, "SESSION_SAVE", "failed to store session"))
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	h.logger.Info().Str("user", user.DisplayName).Msg("Session created")

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(user)
}

// LogoutHandler removes the stored session
func (h *APIHandlers) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		if err := h.sessions.DeleteSession(cookie.Value); err != nil {
			h.logger.Warn().Err(err).Msg("Failed to delete session")
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:   sessionCookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	w.WriteHeader(http.StatusNoContent)
}

// RunReport parses report parameters from the request and executes the full
// pipeline. Shared by the JSON API and the HTML report page.
func (h *APIHandlers) RunReport(r *http.Request) (*models.ReportContext, error) {
	year := time.Now().Year()
	if yearParam := r.URL.Query().Get("year"); yearParam != "" {
		parsed, err := strconv.Atoi(yearParam)
		if err != nil {
			return nil, common.NewValidationError("BAD_YEAR", "year must be an integer")
		}
		year = parsed
	}

	creds, err := h.credentialsFor(r)
	if err != nil {
		return nil, err
	}

	return h.runPipeline(r, creds, interfaces.ReportParams{
		Year:     year,
		Assignee: r.URL.Query().Get("assignee"),
		Platform: r.URL.Query().Get("platform"),
	})
}

func (h *APIHandlers) runPipeline(r *http.Request, creds interfaces.Credentials, params interfaces.ReportParams) (*models.ReportContext, error) {
	client := h.newJiraClient(creds)

	reportCtx, err := h.runner.Run(r.Context(), client, params)
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	h.lastRun = time.Now()
	h.lastYear = params.Year
	h.lastSize = reportCtx.TotalCount
	h.mu.Unlock()

	return reportCtx, nil
}

// credentialsFor resolves credentials with explicit precedence:
// request-supplied basic auth, then the stored session, then the process
// configuration.
func (h *APIHandlers) credentialsFor(r *http.Request) (interfaces.Credentials, error) {
	if email, token, ok := r.BasicAuth(); ok && email != "" && token != "" {
		return interfaces.Credentials{Email: email, APIToken: token}, nil
	}

	if cookie, err := r.Cookie(sessionCookieName); err == nil && h.sessions != nil {
		creds, err := h.sessions.LoadSession(cookie.Value)
		if err != nil {
			h.logger.Warn().Err(err).Msg("Failed to load session")
		} else if creds != nil {
			return *creds, nil
		}
	}

	if h.config.Jira.Email != "" && h.config.Jira.APIToken != "" {
		return interfaces.Credentials{Email: h.config.Jira.Email, APIToken: h.config.Jira.APIToken}, nil
	}

	return interfaces.Credentials{}, common.NewValidationError("CREDENTIALS_REQUIRED", "no Jira credentials supplied, stored or configured")
}

// writeError maps the pipeline error taxonomy onto HTTP statuses.
func (h *APIHandlers) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	var pipelineErr *common.PipelineError
	if errors.As(err, &pipelineErr) {
		switch pipelineErr.Type {
		case common.ErrorTypeValidation:
			status = http.StatusBadRequest
		case common.ErrorTypeAuth:
			status = http.StatusUnauthorized
		case common.ErrorTypeJira, common.ErrorTypeConfluence:
			status = http.StatusBadGateway
		}
	}

	h.logger.Error().Err(err).Int("status", status).Msg("Request failed")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

func newSessionID() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

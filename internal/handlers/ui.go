package handlers

import (
	"net/http"

	"moa-report-jira/internal/common"
	"moa-report-jira/internal/models"
	"moa-report-jira/internal/render"

	"github.com/ternarybob/arbor"
)

// UIHandlers contains all UI endpoint handlers
type UIHandlers struct {
	config   *common.Config
	renderer *render.Renderer
	api      *APIHandlers
	logger   arbor.ILogger
}

// TemplateData represents data passed to the index template
type TemplateData struct {
	Title       string
	ServiceName string
	Version     string
	Build       string
	Environment string
	SpaceKey    string
}

// ReportPageData wraps a built report for the report template
type ReportPageData struct {
	Title       string
	ServiceName string
	Report      *models.ReportContext
}

// NewUIHandlers creates a new UI handlers instance
func NewUIHandlers(config *common.Config, api *APIHandlers, logger arbor.ILogger, pagesDir string) (*UIHandlers, error) {
	renderer, err := render.New(pagesDir)
	if err != nil {
		return nil, err
	}

	return &UIHandlers{
		config:   config,
		renderer: renderer,
		api:      api,
		logger:   logger,
	}, nil
}

// IndexHandler serves the main web interface
func (h *UIHandlers) IndexHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	data := TemplateData{
		Title:       "Moa Report",
		ServiceName: h.config.Server.Name,
		Version:     common.GetVersion(),
		Build:       common.GetBuild(),
		Environment: h.config.Server.Environment,
		SpaceKey:    h.config.Confluence.SpaceKey,
	}

	if err := h.renderer.Page(w, "index.html", data); err != nil {
		h.logger.Error().Err(err).Msg("Failed to execute template")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
}

// ReportHandler runs the pipeline and renders the yearly report page.
// Accepts the same query parameters as the JSON endpoint.
func (h *UIHandlers) ReportHandler(w http.ResponseWriter, r *http.Request) {
	reportCtx, err := h.api.RunReport(r)
	if err != nil {
		h.logger.Error().Err(err).Msg("Report build failed")
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	data := ReportPageData{
		Title:       "연간 업무 리포트",
		ServiceName: h.config.Server.Name,
		Report:      reportCtx,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.renderer.Page(w, "report.html", data); err != nil {
		h.logger.Error().Err(err).Msg("Failed to execute template")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
}

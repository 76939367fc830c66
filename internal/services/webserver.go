package services

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"moa-report-jira/internal/common"
	"moa-report-jira/internal/handlers"
	"moa-report-jira/internal/interfaces"
	"moa-report-jira/internal/middleware"

	"github.com/ternarybob/arbor"
)

// webServer provides the HTTP surface: report endpoints, session auth,
// publishing and the progress WebSocket.
type webServer struct {
	config      *common.Config
	sessions    interfaces.SessionStore
	server      *http.Server
	logger      arbor.ILogger
	apiHandlers *handlers.APIHandlers
	uiHandlers  *handlers.UIHandlers
	wsHub       *handlers.ProgressHub
	running     bool
	startTime   time.Time
}

// NewWebServer creates a new web server instance
func NewWebServer(cfg *common.Config, sessions interfaces.SessionStore, logger arbor.ILogger) (interfaces.WebService, error) {
	mux := http.NewServeMux()

	// Create WebSocket hub first (the pipeline runner reports progress to it)
	wsHub := handlers.NewProgressHub(logger)

	runner := NewReportRunner(cfg, logger, wsHub.SendPhase)

	newJiraClient := func(creds interfaces.Credentials) interfaces.JiraClient {
		return NewJiraClient(&cfg.Jira, creds)
	}
	newConfluence := func(creds interfaces.Credentials) interfaces.ConfluenceClient {
		return NewConfluenceClient(&cfg.Confluence, creds)
	}

	apiHandlers := handlers.NewAPIHandlers(cfg, sessions, logger, runner, newJiraClient, newConfluence)

	pagesDir := "pages"
	if _, err := os.Stat(pagesDir); os.IsNotExist(err) {
		logger.Warn().Msg("Pages directory not found, UI will not be available")
	}

	uiHandlers, err := handlers.NewUIHandlers(cfg, apiHandlers, logger, pagesDir)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to initialize UI handlers, only API endpoints will be available")
		uiHandlers = nil
	}

	ws := &webServer{
		config:      cfg,
		sessions:    sessions,
		logger:      logger,
		apiHandlers: apiHandlers,
		uiHandlers:  uiHandlers,
		wsHub:       wsHub,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
			Handler: mux,
		},
	}

	// Create middleware chain
	logMiddleware := middleware.Logging(logger)
	corsMiddleware := middleware.CORS

	// Register API endpoints with middleware
	mux.HandleFunc("/health", logMiddleware(corsMiddleware(apiHandlers.HealthHandler)))
	mux.HandleFunc("/version", logMiddleware(corsMiddleware(apiHandlers.VersionHandler)))
	mux.HandleFunc("/status", logMiddleware(corsMiddleware(apiHandlers.StatusHandler)))
	mux.HandleFunc("/config", logMiddleware(corsMiddleware(apiHandlers.ConfigHandler)))
	mux.HandleFunc("/api/report", logMiddleware(corsMiddleware(apiHandlers.ReportDataHandler)))
	mux.HandleFunc("/api/publish", logMiddleware(corsMiddleware(apiHandlers.PublishHandler)))
	mux.HandleFunc("/auth/login", logMiddleware(corsMiddleware(apiHandlers.LoginHandler)))
	mux.HandleFunc("/auth/logout", logMiddleware(corsMiddleware(apiHandlers.LogoutHandler)))

	// Register WebSocket endpoint
	mux.HandleFunc("/ws", corsMiddleware(wsHub.WebSocketHandler))

	// Register UI endpoints if available
	if uiHandlers != nil {
		mux.HandleFunc("/", logMiddleware(uiHandlers.IndexHandler))
		mux.HandleFunc("/report", logMiddleware(uiHandlers.ReportHandler))
	}

	return ws, nil
}

// Start starts the web server
func (ws *webServer) Start(ctx context.Context) error {
	ws.running = true
	ws.startTime = time.Now()

	go func() {
		ws.logger.Info().Int("port", ws.config.Server.Port).Msg("Starting web server")
		if err := ws.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			ws.logger.Error().Err(err).Msg("Web server error")
		}
	}()
	return nil
}

// Stop stops the web server
func (ws *webServer) Stop() error {
	ws.running = false

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ws.logger.Info().Msg("Shutting down web server")
	return ws.server.Shutdown(ctx)
}

// IsRunning returns true if the web server is running
func (ws *webServer) IsRunning() bool {
	return ws.running
}

package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pelletier/go-toml/v2"
)

type Config struct {
	Server     ServerConfig     `toml:"server"`
	Jira       JiraConfig       `toml:"jira"`
	Confluence ConfluenceConfig `toml:"confluence"`
	Report     ReportConfig     `toml:"report"`
	Logging    LoggingConfig    `toml:"logging"`
}

type ServerConfig struct {
	Name        string `toml:"name"`
	Environment string `toml:"environment"`
	Port        int    `toml:"port"`
	SessionPath string `toml:"session_path"`
}

type JiraConfig struct {
	BaseURL          string   `toml:"base_url"`
	Email            string   `toml:"email"`
	APIToken         string   `toml:"api_token"`
	Timeout          int      `toml:"timeout"`
	PageSize         int      `toml:"page_size"`
	VersionChunkSize int      `toml:"version_chunk_size"`
	KeyChunkSize     int      `toml:"key_chunk_size"`
	ExcludedProjects []string `toml:"excluded_projects"`
	DefaultProject   string   `toml:"default_project"`
}

type ConfluenceConfig struct {
	BaseURL  string `toml:"base_url"`
	SpaceKey string `toml:"space_key"`
	Timeout  int    `toml:"timeout"`
}

type ReportConfig struct {
	LabelTopN           int      `toml:"label_top_n"`
	PlaceholderVersions []string `toml:"placeholder_versions"`
	PlatformMode        string   `toml:"platform_mode"`
}

type LoggingConfig struct {
	Level      string `toml:"level"`
	Format     string `toml:"format"`
	Output     string `toml:"output"`
	MaxSize    int    `toml:"max_size"`
	MaxBackups int    `toml:"max_backups"`
}

func DefaultConfig() *Config {
	execPath, _ := os.Executable()
	execDir := filepath.Dir(execPath)
	execName := filepath.Base(execPath)
	execName = execName[:len(execName)-len(filepath.Ext(execName))]

	defaultSessionPath := filepath.Join(execDir, "data", execName+".db")

	return &Config{
		Server: ServerConfig{
			Name:        execName,
			Environment: "development",
			Port:        8080,
			SessionPath: defaultSessionPath,
		},
		Jira: JiraConfig{
			Timeout:          30,
			PageSize:         100,
			VersionChunkSize: 30,
			KeyChunkSize:     50,
			ExcludedProjects: []string{"KQA"},
			DefaultProject:   "KMA",
		},
		Confluence: ConfluenceConfig{
			Timeout: 30,
		},
		Report: ReportConfig{
			LabelTopN:           20,
			PlaceholderVersions: []string{"배포 버전 미정"},
			PlatformMode:        "sort",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "both",
			MaxSize:    100,
			MaxBackups: 3,
		},
	}
}

func LoadConfig(configFile string) (*Config, error) {
	config := DefaultConfig()

	if configFile == "" {
		// Auto-detect config file
		execPath, _ := os.Executable()
		execDir := filepath.Dir(execPath)
		execName := filepath.Base(execPath)
		execName = execName[:len(execName)-len(filepath.Ext(execName))]

		possiblePaths := []string{
			filepath.Join(execDir, execName+".toml"),
			filepath.Join(execDir, "config.toml"),
			"config.toml",
		}

		for _, path := range possiblePaths {
			if _, err := os.Stat(path); err == nil {
				configFile = path
				break
			}
		}

		if configFile == "" {
			applyEnvOverrides(config)
			if err := config.Validate(); err != nil {
				return nil, fmt.Errorf("invalid configuration: %w", err)
			}
			return config, nil
		}
	}

	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

func applyEnvOverrides(config *Config) {
	if baseURL := os.Getenv("JIRA_BASE_URL"); baseURL != "" {
		config.Jira.BaseURL = baseURL
	}
	if email := os.Getenv("JIRA_EMAIL"); email != "" {
		config.Jira.Email = email
	}
	if token := os.Getenv("JIRA_API_TOKEN"); token != "" {
		config.Jira.APIToken = token
	}
	if confluenceURL := os.Getenv("CONFLUENCE_BASE_URL"); confluenceURL != "" {
		config.Confluence.BaseURL = confluenceURL
	}
	if space := os.Getenv("CONFLUENCE_SPACE"); space != "" {
		config.Confluence.SpaceKey = space
	}
	if sessionPath := os.Getenv("SESSION_PATH"); sessionPath != "" {
		config.Server.SessionPath = sessionPath
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		config.Logging.Level = logLevel
	}
	if logOutput := os.Getenv("LOG_OUTPUT"); logOutput != "" {
		config.Logging.Output = logOutput
	}

	if port := os.Getenv("SERVER_PORT"); port != "" {
		if portNum, err := strconv.Atoi(port); err == nil {
			config.Server.Port = portNum
		}
	}
}

func (c *Config) Validate() error {
	if c.Server.SessionPath == "" {
		return fmt.Errorf("server session_path is required")
	}

	if c.Server.Port <= 0 {
		c.Server.Port = 8080
	}

	if c.Jira.PageSize <= 0 || c.Jira.PageSize > 100 {
		return fmt.Errorf("jira page_size must be between 1 and 100")
	}
	if c.Jira.VersionChunkSize <= 0 {
		c.Jira.VersionChunkSize = 30
	}
	if c.Jira.KeyChunkSize <= 0 {
		c.Jira.KeyChunkSize = 50
	}

	if c.Confluence.BaseURL == "" && c.Jira.BaseURL != "" {
		c.Confluence.BaseURL = c.Jira.BaseURL + "/wiki"
	}

	if c.Report.PlatformMode != "sort" && c.Report.PlatformMode != "filter" {
		return fmt.Errorf("invalid platform_mode: %s (expected 'sort' or 'filter')", c.Report.PlatformMode)
	}
	if c.Report.LabelTopN <= 0 {
		c.Report.LabelTopN = 20
	}

	validLogLevels := []string{"debug", "info", "warn", "error", "fatal", "panic"}
	validLevel := false
	for _, level := range validLogLevels {
		if c.Logging.Level == level {
			validLevel = true
			break
		}
	}
	if !validLevel {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	validOutputs := []string{"console", "file", "both"}
	validOutput := false
	for _, output := range validOutputs {
		if c.Logging.Output == output {
			validOutput = true
			break
		}
	}
	if !validOutput {
		return fmt.Errorf("invalid log output: %s", c.Logging.Output)
	}

	return nil
}

func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

package services

import (
	"context"
	"net/http"
	"time"

	"moa-report-jira/internal/common"
	"moa-report-jira/internal/interfaces"

	"github.com/go-resty/resty/v2"
)

type confluenceClient struct {
	client *resty.Client
}

type pageCreateRequest struct {
	Title  string    `json:"title"`
	Type   string    `json:"type"`
	Space  pageSpace `json:"space"`
	Status string    `json:"status"`
	Body   pageBody  `json:"body"`
}

type pageSpace struct {
	Key string `json:"key"`
}

type pageBody struct {
	Storage pageStorage `json:"storage"`
}

type pageStorage struct {
	Value          string `json:"value"`
	Representation string `json:"representation"`
}

type pageCreateResponse struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Status string `json:"status"`
	Links  struct {
		WebUI string `json:"webui"`
	} `json:"_links"`
}

// NewConfluenceClient creates a request-scoped Confluence client for one set
// of credentials.
func NewConfluenceClient(config *common.ConfluenceConfig, creds interfaces.Credentials) interfaces.ConfluenceClient {
	client := resty.New().
		SetBaseURL(config.BaseURL).
		SetBasicAuth(creds.Email, creds.APIToken).
		SetTimeout(time.Duration(config.Timeout) * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &confluenceClient{client: client}
}

func (cc *confluenceClient) CreateDraftPage(ctx context.Context, spaceKey, title, htmlContent string) (*interfaces.PageResult, error) {
	request := pageCreateRequest{
		Title:  title,
		Type:   "page",
		Space:  pageSpace{Key: spaceKey},
		Status: "draft",
		Body: pageBody{
			Storage: pageStorage{
				Value:          htmlContent,
				Representation: "storage",
			},
		},
	}

	var response pageCreateResponse

	resp, err := cc.client.R().
		SetContext(ctx).
		SetBody(request).
		SetResult(&response).
		Post("/rest/api/content")

	if err != nil {
		return nil, common.WrapError(err, common.ErrorTypeConfluence, "PAGE_TRANSPORT", "failed to create wiki page")
	}

	if resp.StatusCode() != http.StatusOK && resp.StatusCode() != http.StatusCreated {
		return nil, common.NewConfluenceError("PAGE_FAILED", "wiki API error").
			WithUpstream(resp.StatusCode(), resp.String()).
			WithContext("space", spaceKey)
	}

	return &interfaces.PageResult{
		ID:     response.ID,
		Title:  response.Title,
		Status: response.Status,
		WebUI:  response.Links.WebUI,
	}, nil
}

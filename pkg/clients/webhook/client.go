package webhook

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/mamadbah2/kisaan/internal/domain/models"
)

// Client delivers inventory reports to an HTTP endpoint.
type Client struct {
	httpClient *resty.Client
	url        string
}

// NewClient builds a resty-backed webhook client. The token, when set, is
// sent as a bearer credential.
func NewClient(url, token string) *Client {
	restyClient := resty.New()
	restyClient.
		SetHeader("Content-Type", "application/json").
		SetTimeout(15 * time.Second)
	if token != "" {
		restyClient.SetAuthToken(token)
	}

	return &Client{httpClient: restyClient, url: url}
}

// ReportPayload is the JSON body posted for each report.
type ReportPayload struct {
	Event  string                 `json:"event"`
	Text   string                 `json:"text"`
	Report models.InventoryReport `json:"report"`
}

// apiError captures the common error body shapes returned by receivers.
type apiError struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// PublishInventoryReport posts the report and its summary.
func (c *Client) PublishInventoryReport(ctx context.Context, report models.InventoryReport, summary string) error {
	payload := ReportPayload{
		Event:  "inventory.report",
		Text:   summary,
		Report: report,
	}

	apiErr := new(apiError)
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(payload).
		SetError(apiErr).
		Post(c.url)
	if err != nil {
		return fmt.Errorf("post inventory report: %w", err)
	}

	if resp.StatusCode() >= http.StatusBadRequest {
		message := apiErr.Message
		if message == "" {
			message = apiErr.Error
		}
		return fmt.Errorf("webhook error: code=%d, message=%s", resp.StatusCode(), message)
	}

	return nil
}

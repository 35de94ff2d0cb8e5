package controller

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// CentralPublisher delivers an exported bundle stream to another NOMAD
// deployment (§4.7 "publish_externally": "export bundle, HTTP POST to
// central"). No HTTP client library appears anywhere in the retrieved
// pack, so the concrete implementation below is stdlib net/http — see
// DESIGN.md for the justification.
type CentralPublisher interface {
	PublishBundle(ctx context.Context, deploymentID string, bundle io.Reader) error
}

// HTTPCentralPublisher POSTs the bundle stream to {BaseURL}/api/v1/uploads/bundle.
type HTTPCentralPublisher struct {
	BaseURL string
	Client  *http.Client
}

// NewHTTPCentralPublisher builds a publisher against baseURL, defaulting
// to http.DefaultClient.
func NewHTTPCentralPublisher(baseURL string) *HTTPCentralPublisher {
	return &HTTPCentralPublisher{BaseURL: baseURL, Client: http.DefaultClient}
}

func (p *HTTPCentralPublisher) PublishBundle(ctx context.Context, deploymentID string, bundle io.Reader) error {
	url := fmt.Sprintf("%s/api/v1/uploads/bundle?deployment_id=%s", p.BaseURL, deploymentID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bundle)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/zip")

	resp, err := p.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("central deployment rejected bundle (status %d): %s", resp.StatusCode, body)
	}
	return nil
}

package factor

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// RemoteAnalyzer delegates one factor to an external analyzer service:
// POST {base}/analyze/{factor} with the snapshot as JSON, answered by an
// Analysis document.
type RemoteAnalyzer struct {
	factor string
	client *resty.Client
}

var _ Analyzer = (*RemoteAnalyzer)(nil)

// NewRemoteAnalyzer creates an analyzer for factor served at baseURL.
func NewRemoteAnalyzer(factor, baseURL string, timeout time.Duration) *RemoteAnalyzer {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond)
	return &RemoteAnalyzer{factor: factor, client: client}
}

// Name returns the factor this analyzer serves.
func (a *RemoteAnalyzer) Name() string { return a.factor }

// Analyze posts the snapshot and decodes the service's analysis.
func (a *RemoteAnalyzer) Analyze(ctx context.Context, snap *Snapshot) (Analysis, error) {
	var out Analysis
	resp, err := a.client.R().
		SetContext(ctx).
		SetPathParam("factor", a.factor).
		SetBody(snap).
		SetResult(&out).
		Post("/analyze/{factor}")
	if err != nil {
		return Analysis{}, fmt.Errorf("remote analyzer %s: %w", a.factor, err)
	}
	if resp.StatusCode() != 200 {
		return Analysis{}, fmt.Errorf("remote analyzer %s: status %d: %s", a.factor, resp.StatusCode(), string(resp.Body()))
	}
	return out, nil
}

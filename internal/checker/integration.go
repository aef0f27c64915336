package checker

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sells-group/reality-cli/internal/resilience"
)

// IntegrationChecker probes the automation webhook endpoint. Unlike the
// deployment checker it only cares that the endpoint answers at all: webhook
// routers commonly return 404 or 405 to a bare GET, and that still proves
// the integration layer is up.
type IntegrationChecker struct {
	url    string
	client *http.Client
}

// IntegrationOption configures the integration checker.
type IntegrationOption func(*IntegrationChecker)

// WithIntegrationHTTPClient sets a custom HTTP client (for testing).
func WithIntegrationHTTPClient(hc *http.Client) IntegrationOption {
	return func(c *IntegrationChecker) {
		c.client = hc
	}
}

// NewIntegration creates an integration checker for the given webhook URL.
func NewIntegration(url string, opts ...IntegrationOption) *IntegrationChecker {
	c := &IntegrationChecker{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *IntegrationChecker) Name() Source { return SourceIntegration }

func (c *IntegrationChecker) Configured() bool { return c.url != "" }

func (c *IntegrationChecker) Check(ctx context.Context) Result {
	start := time.Now()

	if !c.Configured() {
		return ConfigGap(SourceIntegration, "integration webhook url not configured")
	}

	var status int

	err := resilience.Do(ctx, resilience.ProbeRetryConfig(), func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.url, nil)
		if err != nil {
			return err
		}
		resp, err := c.client.Do(req)
		if err != nil {
			return err
		}
		resp.Body.Close()

		status = resp.StatusCode
		if status >= 500 {
			return resilience.NewTransientError(fmt.Errorf("integration returned %d", status), status)
		}
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return TimedOut(SourceIntegration, time.Since(start))
		}
		return Failed(SourceIntegration, fmt.Sprintf("probe %s: %v", c.url, err), time.Since(start))
	}

	return OK(SourceIntegration, map[string]any{
		"reachable":   true,
		"status_code": status,
	}, time.Since(start))
}

package checker

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/sells-group/reality-cli/internal/resilience"
)

// DeploymentChecker probes the deployed application over HTTP: is the
// deployment URL reachable and answering with the expected status.
type DeploymentChecker struct {
	url          string
	expectStatus int
	client       *http.Client
	limiter      *rate.Limiter
}

// DeploymentOption configures the deployment checker.
type DeploymentOption func(*DeploymentChecker)

// WithDeploymentHTTPClient sets a custom HTTP client (for testing).
func WithDeploymentHTTPClient(hc *http.Client) DeploymentOption {
	return func(c *DeploymentChecker) {
		c.client = hc
	}
}

// NewDeployment creates a deployment checker for the given URL. expectStatus
// of 0 accepts any 2xx response. Probes are throttled to one request per
// second so retries never hammer the target.
func NewDeployment(url string, expectStatus int, opts ...DeploymentOption) *DeploymentChecker {
	c := &DeploymentChecker{
		url:          url,
		expectStatus: expectStatus,
		client:       &http.Client{Timeout: 10 * time.Second},
		limiter:      rate.NewLimiter(1, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *DeploymentChecker) Name() Source { return SourceDeployment }

func (c *DeploymentChecker) Configured() bool { return c.url != "" }

func (c *DeploymentChecker) Check(ctx context.Context) Result {
	start := time.Now()

	if !c.Configured() {
		return ConfigGap(SourceDeployment, "deployment url not configured")
	}

	var status int
	var latency time.Duration

	cfg := resilience.ProbeRetryConfig()
	cfg.OnRetry = resilience.RetryLogger(string(SourceDeployment), "http_get")

	err := resilience.Do(ctx, cfg, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
		if err != nil {
			return err
		}

		reqStart := time.Now()
		resp, err := c.client.Do(req)
		if err != nil {
			return err
		}
		resp.Body.Close()

		latency = time.Since(reqStart)
		status = resp.StatusCode
		if resilience.IsTransientHTTPStatus(status) {
			return resilience.NewTransientError(fmt.Errorf("deployment returned %d", status), status)
		}
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return TimedOut(SourceDeployment, time.Since(start))
		}
		return Failed(SourceDeployment, fmt.Sprintf("probe %s: %v", c.url, err), time.Since(start))
	}

	healthy := status >= 200 && status < 300
	if c.expectStatus != 0 {
		healthy = status == c.expectStatus
	}
	if !healthy {
		return Failed(SourceDeployment, fmt.Sprintf("deployment returned status %d", status), time.Since(start))
	}

	return OK(SourceDeployment, map[string]any{
		"reachable":   true,
		"status_code": status,
		"latency_ms":  latency.Milliseconds(),
	}, time.Since(start))
}

// Package httpaction provides the outbound HTTP node executor. It resolves
// url, method, headers and body through the template resolver, performs the
// call with the node's configured timeout, and folds the response into the
// execution context as data. Non-2xx responses are data too; only
// transport-level failures fail the run.
package httpaction

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/hookflow/hookflow/pkg/flowerr"
	"github.com/hookflow/hookflow/pkg/models"
	"github.com/hookflow/hookflow/pkg/template"
)

// Executor performs the HTTP request described by an http_action node.
type Executor struct {
	logger *slog.Logger
}

// NewExecutor creates the executor shared by all http_action nodes.
func NewExecutor(logger *slog.Logger) *Executor {
	return &Executor{
		logger: logger.With("module", "http_action"),
	}
}

// Execute resolves the node's configuration against the execution context
// and performs the outbound call. The returned fragment always carries
// status, headers and body; non-2xx responses additionally carry an error
// field and still continue the chain.
func (e *Executor) Execute(ctx context.Context, node *models.PlanNode, ec models.ExecutionContext) (*models.Outcome, error) {
	cfg := node.HTTP
	if cfg == nil {
		return nil, flowerr.NewConfigurationError("missing http configuration")
	}

	method := strings.ToUpper(cfg.Method)
	if !slices.Contains(models.AllowedHTTPMethods, method) {
		return nil, flowerr.NewConfigurationError("method %q is not allowed", cfg.Method)
	}

	url := template.ResolveString(cfg.URL, ec)
	headers := template.ResolveMap(cfg.Headers, ec)
	body := template.ResolveString(cfg.Body, ec)

	req, err := buildRequest(ctx, method, url, headers, body)
	if err != nil {
		return nil, err
	}

	client := &http.Client{Timeout: timeout(cfg)}

	e.logger.InfoContext(ctx, "performing http request", "node_id", node.ID, "method", method, "url", url)

	resp, err := client.Do(req)
	if err != nil {
		return nil, flowerr.NewTransportError(fmt.Sprintf("%s %s", method, url), err)
	}

	fragment, err := e.buildFragment(ctx, resp)
	if err != nil {
		return nil, err
	}

	return models.Continue(fragment), nil
}

func timeout(cfg *models.HTTPConfig) time.Duration {
	seconds := cfg.TimeoutSeconds
	if seconds <= 0 {
		seconds = models.HTTPTimeoutDefaultSeconds
	}

	return time.Duration(seconds) * time.Second
}

func buildRequest(ctx context.Context, method, url string, headers map[string]string, body string) (*http.Request, error) {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, flowerr.NewConfigurationError("invalid request for %s %s: %v", method, url, err)
	}

	for key, value := range headers {
		req.Header.Set(key, value)
	}

	if body != "" && req.Header.Get("Content-Type") == "" {
		if json.Valid([]byte(body)) {
			req.Header.Set("Content-Type", "application/json")
		} else {
			req.Header.Set("Content-Type", "text/plain")
		}
	}

	return req, nil
}

// buildFragment reads the response into the node's output fragment. The
// body is JSON-decoded when the response content type says so, otherwise
// kept as text.
func (e *Executor) buildFragment(ctx context.Context, resp *http.Response) (map[string]any, error) {
	defer func() {
		if err := resp.Body.Close(); err != nil {
			e.logger.ErrorContext(ctx, "failed to close response body", "error", err)
		}
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, flowerr.NewTransportError("read response body", err)
	}

	var body any = string(raw)

	if strings.Contains(strings.ToLower(resp.Header.Get("Content-Type")), "json") && len(raw) > 0 {
		var decoded any
		if err := json.Unmarshal(raw, &decoded); err == nil {
			body = decoded
		} else {
			e.logger.WarnContext(ctx, "response declared json but did not parse, keeping text", "error", err)
		}
	}

	fragment := map[string]any{
		"status":  resp.StatusCode,
		"headers": headerMap(resp.Header),
		"body":    body,
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		fragment["error"] = fmt.Sprintf("HTTP %d", resp.StatusCode)
	}

	e.logger.InfoContext(ctx, "http request completed", "status", resp.StatusCode, "body_bytes", len(raw))

	return fragment, nil
}

// headerMap flattens response headers to one string per key so fragments
// stay JSON-friendly for templating. Repeated headers join with a comma.
func headerMap(h http.Header) map[string]any {
	out := make(map[string]any, len(h))
	for key, values := range h {
		out[key] = strings.Join(values, ", ")
	}

	return out
}

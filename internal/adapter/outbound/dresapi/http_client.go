// Package dresapi provides the HTTP adapter for the DRES REST API.
package dresapi

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sentinel-Gate/dres-client/internal/domain/dres"
	"github.com/Sentinel-Gate/dres-client/internal/port/outbound"
)

// Compile-time check that HTTPClient implements outbound.DRESAPI.
var _ outbound.DRESAPI = (*HTTPClient)(nil)

const (
	pathLogin          = "/api/v2/login"
	pathEvaluationList = "/api/v2/client/evaluation/list"
	pathCurrentTask    = "/api/v2/client/evaluation/currentTask/"
	pathSubmit         = "/api/v2/submit/"
	pathLogResult      = "/api/v2/log/result"
	pathLogQuery       = "/api/v2/log/query"
	pathStatusTime     = "/api/v2/status/time"
	pathLegacyLogin    = "/api/v1/login"
	pathLegacySubmit   = "/api/v1/submit"

	// DefaultTimeout bounds every call unless overridden with WithTimeout.
	DefaultTimeout = 30 * time.Second

	// maxResponseBodySize caps how much of a response body is read.
	maxResponseBodySize = 10 * 1024 * 1024 // 10MB

	tracerName = "github.com/Sentinel-Gate/dres-client/internal/adapter/outbound/dresapi"
)

// HTTPClient dispatches DRES operations over HTTP.
// It is stateless apart from its transport configuration and may be shared
// by any number of session clients.
type HTTPClient struct {
	endpoint   string
	httpClient *http.Client
	metrics    *Metrics
	tracer     trace.Tracer
	logger     *slog.Logger
}

// ClientOption is a functional option for configuring HTTPClient.
type ClientOption func(*HTTPClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.httpClient = client
	}
}

// WithTimeout sets the request timeout for the HTTP client.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		if c.httpClient != nil {
			c.httpClient.Timeout = d
		}
	}
}

// WithMetrics records per-call counters and latencies.
func WithMetrics(m *Metrics) ClientOption {
	return func(c *HTTPClient) {
		c.metrics = m
	}
}

// WithTracerProvider sets the provider used for per-call spans.
// Defaults to the global otel provider.
func WithTracerProvider(tp trace.TracerProvider) ClientOption {
	return func(c *HTTPClient) {
		c.tracer = tp.Tracer(tracerName)
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *HTTPClient) {
		c.logger = logger
	}
}

// NewHTTPClient creates a client for the DRES server at endpoint, the base
// URL produced by config.Configuration.Endpoint.
func NewHTTPClient(endpoint string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		endpoint: strings.TrimRight(endpoint, "/"),
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					MinVersion: tls.VersionTLS12,
				},
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		tracer: otel.Tracer(tracerName),
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Endpoint returns the base URL without trailing slash.
func (c *HTTPClient) Endpoint() string {
	return c.endpoint
}

// Login authenticates with username and password.
func (c *HTTPClient) Login(ctx context.Context, req dres.LoginRequest) (*dres.User, error) {
	var user dres.User
	if err := c.do(ctx, "login", http.MethodPost, pathLogin, nil, req, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ListEvaluations returns the evaluations visible to the session.
func (c *HTTPClient) ListEvaluations(ctx context.Context, session string) ([]dres.Evaluation, error) {
	var evaluations []dres.Evaluation
	if err := c.do(ctx, "list_evaluations", http.MethodGet, pathEvaluationList, sessionQuery(session), nil, &evaluations); err != nil {
		return nil, err
	}
	return evaluations, nil
}

// CurrentTask returns the running task of an evaluation.
func (c *HTTPClient) CurrentTask(ctx context.Context, session, evaluationID string) (*dres.TaskInfo, error) {
	var task dres.TaskInfo
	path := pathCurrentTask + url.PathEscape(evaluationID)
	if err := c.do(ctx, "current_task", http.MethodGet, path, sessionQuery(session), nil, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// Submit posts answer sets to the evaluation.
func (c *HTTPClient) Submit(ctx context.Context, session, evaluationID string, submission dres.Submission) (*dres.SubmissionStatus, error) {
	var status dres.SubmissionStatus
	path := pathSubmit + url.PathEscape(evaluationID)
	if err := c.do(ctx, "submit", http.MethodPost, path, sessionQuery(session), submission, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// LogResults posts a result log.
func (c *HTTPClient) LogResults(ctx context.Context, session string, log dres.QueryResultLog) (*dres.SuccessStatus, error) {
	var status dres.SuccessStatus
	if err := c.do(ctx, "log_results", http.MethodPost, pathLogResult, sessionQuery(session), log, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// LogQueryEvents posts an interaction log.
func (c *HTTPClient) LogQueryEvents(ctx context.Context, session string, log dres.QueryEventLog) (*dres.SuccessStatus, error) {
	var status dres.SuccessStatus
	if err := c.do(ctx, "log_query_events", http.MethodPost, pathLogQuery, sessionQuery(session), log, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// ServerTime returns the server clock.
func (c *HTTPClient) ServerTime(ctx context.Context) (*dres.CurrentTime, error) {
	var now dres.CurrentTime
	if err := c.do(ctx, "server_time", http.MethodGet, pathStatusTime, nil, nil, &now); err != nil {
		return nil, err
	}
	return &now, nil
}

// LegacyLogin authenticates against the v1 API.
//
// Deprecated: use Login.
func (c *HTTPClient) LegacyLogin(ctx context.Context, req dres.LoginRequest) (*dres.User, error) {
	var user dres.User
	if err := c.do(ctx, "legacy_login", http.MethodPost, pathLegacyLogin, nil, req, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// LegacySubmit submits through the v1 query-parameter API.
//
// Deprecated: use Submit.
func (c *HTTPClient) LegacySubmit(ctx context.Context, session string, submission dres.LegacySubmission) (*dres.SubmissionStatus, error) {
	query := sessionQuery(session)
	if submission.Item != "" {
		query.Set("item", submission.Item)
	}
	if submission.Frame != nil {
		query.Set("frame", strconv.Itoa(*submission.Frame))
	}
	if submission.Text != "" {
		query.Set("text", submission.Text)
	}

	var status dres.SubmissionStatus
	if err := c.do(ctx, "legacy_submit", http.MethodGet, pathLegacySubmit, query, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func sessionQuery(session string) url.Values {
	return url.Values{"session": []string{session}}
}

// do performs one call, wrapped in a span and recorded in metrics.
// Exactly one HTTP request is made; failures are returned, never retried.
func (c *HTTPClient) do(ctx context.Context, op, method, path string, query url.Values, body, result any) error {
	requestID := uuid.NewString()
	start := time.Now()

	ctx, span := c.tracer.Start(ctx, "dres."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("dres.operation", op),
			attribute.String("dres.request_id", requestID),
			attribute.String("http.request.method", method),
		),
	)
	defer span.End()

	statusCode, err := c.send(ctx, op, method, path, query, body, result, requestID)
	elapsed := time.Since(start)

	outcome := "ok"
	if statusCode > 0 {
		span.SetAttributes(attribute.Int("http.response.status_code", statusCode))
	}
	if err != nil {
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	if c.metrics != nil {
		c.metrics.RequestsTotal.WithLabelValues(op, outcome).Inc()
		c.metrics.RequestDuration.WithLabelValues(op).Observe(elapsed.Seconds())
	}

	c.logger.Debug("dres call",
		"operation", op,
		"request_id", requestID,
		"status", statusCode,
		"duration", elapsed,
		"outcome", outcome,
	)
	return err
}

// send issues the HTTP request and decodes the response into result.
// Returns the HTTP status code, or 0 if no response was received.
func (c *HTTPClient) send(ctx context.Context, op, method, path string, query url.Values, body, result any, requestID string) (int, error) {
	target := c.endpoint + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("dres %s: failed to marshal request body: %w", op, err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
	if err != nil {
		return 0, fmt.Errorf("dres %s: failed to create request: %w", op, err)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-ID", requestID)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return 0, fmt.Errorf("dres %s: %w", op, err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBodySize))
	if err != nil {
		return httpResp.StatusCode, fmt.Errorf("dres %s: failed to read response body: %w", op, err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return httpResp.StatusCode, &dres.RemoteError{
			Operation:  op,
			StatusCode: httpResp.StatusCode,
			Message:    errorMessage(respBody),
		}
	}

	if result != nil && len(bytes.TrimSpace(respBody)) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return httpResp.StatusCode, fmt.Errorf("dres %s: failed to unmarshal response: %w", op, err)
		}
	}
	return httpResp.StatusCode, nil
}

// errorMessage extracts the description from a DRES error body
// ({"status":false,"description":"..."}), falling back to the raw text.
func errorMessage(body []byte) string {
	var status struct {
		Description string `json:"description"`
	}
	if err := json.Unmarshal(body, &status); err == nil && status.Description != "" {
		return status.Description
	}
	return strings.TrimSpace(string(body))
}

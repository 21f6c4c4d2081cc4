package falapi

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

// Client talks to the Fal.ai platform, queue, run, and storage APIs. The
// bearer credential is attached once at construction and sent with every
// outbound request.
type Client struct {
	platform *resty.Client
	queue    *resty.Client
	run      *resty.Client
	storage  *resty.Client

	queueBaseURL string
}

// ClientConfig holds the endpoints and credential for a Client.
type ClientConfig struct {
	FalKey          string
	PlatformAPIURL  string
	QueueAPIURL     string
	RunAPIURL       string
	StorageAPIURL   string
	Timeout         time.Duration
	MaxConnsPerHost int
}

// newTransport builds the pooled HTTP transport shared by all four API
// clients. Long queue waits hold a connection each, so the per-host cap
// bounds how many jobs can be in flight against one endpoint.
func newTransport(maxConnsPerHost int) *http.Transport {
	if maxConnsPerHost <= 0 {
		maxConnsPerHost = 50
	}
	return &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		MaxConnsPerHost:     maxConnsPerHost,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
	}
}

// NewClient creates a new Fal.ai API client.
func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	transport := newTransport(cfg.MaxConnsPerHost)
	newAPIClient := func(baseURL string, withTimeout bool) *resty.Client {
		c := resty.New().
			SetTransport(transport).
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetHeader("User-Agent", "fal-mcp-server/1.0").
			SetHeader("Content-Type", "application/json")
		if cfg.FalKey != "" {
			c.SetHeader("Authorization", "Key "+cfg.FalKey)
		}
		if withTimeout {
			c.SetTimeout(timeout)
		}
		return c
	}

	return &Client{
		platform: newAPIClient(cfg.PlatformAPIURL, true),
		queue:    newAPIClient(cfg.QueueAPIURL, false), // queue waits are bounded by ctx, not a client timeout
		run:      newAPIClient(cfg.RunAPIURL, false),   // direct runs are bounded by the caller's ctx
		storage:  newAPIClient(cfg.StorageAPIURL, true),

		queueBaseURL: strings.TrimRight(cfg.QueueAPIURL, "/"),
	}
}

func responseError(resp *resty.Response) error {
	return &APIError{StatusCode: resp.StatusCode(), Body: strings.TrimSpace(resp.String())}
}

// ListModelsPage fetches one page of the model catalog.
func (c *Client) ListModelsPage(ctx context.Context, cursor string, limit int, category string) (*ModelsPage, error) {
	var page ModelsPage
	req := c.platform.R().
		SetContext(ctx).
		SetQueryParam("limit", strconv.Itoa(limit)).
		SetResult(&page)
	if cursor != "" {
		req.SetQueryParam("cursor", cursor)
	}
	if category != "" {
		req.SetQueryParam("category", category)
	}

	resp, err := req.Get("/models")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch model catalog page: %w", err)
	}
	if resp.IsError() {
		return nil, responseError(resp)
	}
	return &page, nil
}

// SearchModels issues a free-text semantic query against the catalog.
func (c *Client) SearchModels(ctx context.Context, query, category string, limit int) ([]RawModel, error) {
	var page ModelsPage
	req := c.platform.R().
		SetContext(ctx).
		SetQueryParam("q", query).
		SetQueryParam("limit", strconv.Itoa(limit)).
		SetResult(&page)
	if category != "" {
		req.SetQueryParam("category", category)
	}

	resp, err := req.Get("/models")
	if err != nil {
		return nil, fmt.Errorf("failed to query model search API: %w", err)
	}
	if resp.IsError() {
		return nil, responseError(resp)
	}
	return page.Records(), nil
}

// GetPricing fetches unit prices for the given endpoint ids.
func (c *Client) GetPricing(ctx context.Context, endpointIDs []string) (*PricingResponse, error) {
	var pricing PricingResponse
	req := c.platform.R().
		SetContext(ctx).
		SetResult(&pricing)
	for _, id := range endpointIDs {
		req.QueryParam.Add("endpoint_id", id)
	}

	resp, err := req.Get("/models/pricing")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pricing: %w", err)
	}
	if resp.IsError() {
		return nil, responseError(resp)
	}
	return &pricing, nil
}

// GetUsage fetches the usage report for a date range, optionally filtered
// to specific endpoints.
func (c *Client) GetUsage(ctx context.Context, start, end string, endpointIDs []string) (*UsageResponse, error) {
	var usage UsageResponse
	req := c.platform.R().
		SetContext(ctx).
		SetQueryParam("start", start).
		SetQueryParam("end", end).
		SetResult(&usage)
	for _, id := range endpointIDs {
		req.QueryParam.Add("endpoint_id", id)
	}

	resp, err := req.Get("/models/usage")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch usage: %w", err)
	}
	if resp.IsError() {
		return nil, responseError(resp)
	}
	return &usage, nil
}

// Run executes a model synchronously on the run API. Used for fast
// operations that bypass the queue; the wait is bounded by ctx.
func (c *Client) Run(ctx context.Context, modelID string, args map[string]any) (map[string]any, error) {
	var result map[string]any
	resp, err := c.run.R().
		SetContext(ctx).
		SetBody(args).
		SetResult(&result).
		Post("/" + modelID)
	if err != nil {
		return nil, fmt.Errorf("failed to run %s: %w", modelID, err)
	}
	if resp.IsError() {
		return nil, responseError(resp)
	}
	return result, nil
}

// Submit enqueues a job on the queue API and returns its handle.
func (c *Client) Submit(ctx context.Context, modelID string, args map[string]any) (*QueueJob, error) {
	var job QueueJob
	resp, err := c.queue.R().
		SetContext(ctx).
		SetBody(args).
		SetResult(&job).
		Post("/" + modelID)
	if err != nil {
		return nil, fmt.Errorf("failed to submit %s: %w", modelID, err)
	}
	if resp.IsError() {
		return nil, responseError(resp)
	}
	if job.RequestID == "" {
		return nil, fmt.Errorf("queue submit for %s returned no request_id", modelID)
	}
	job.ModelID = modelID
	if job.StatusURL == "" {
		job.StatusURL = fmt.Sprintf("%s/%s/requests/%s/status", c.queueBaseURL, modelID, job.RequestID)
	}
	if job.ResponseURL == "" {
		job.ResponseURL = fmt.Sprintf("%s/%s/requests/%s", c.queueBaseURL, modelID, job.RequestID)
	}
	return &job, nil
}

// JobStatus reads the current status of a submitted job.
func (c *Client) JobStatus(ctx context.Context, job *QueueJob) (*QueueStatus, error) {
	var status QueueStatus
	resp, err := c.queue.R().
		SetContext(ctx).
		SetResult(&status).
		Get(job.StatusURL)
	if err != nil {
		return nil, fmt.Errorf("failed to read status of %s: %w", job.RequestID, err)
	}
	if resp.IsError() {
		return nil, responseError(resp)
	}
	return &status, nil
}

// JobResult fetches the terminal payload of a completed job.
func (c *Client) JobResult(ctx context.Context, job *QueueJob) (map[string]any, error) {
	var result map[string]any
	resp, err := c.queue.R().
		SetContext(ctx).
		SetResult(&result).
		Get(job.ResponseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch result of %s: %w", job.RequestID, err)
	}
	if resp.IsError() {
		return nil, responseError(resp)
	}
	return result, nil
}

// AwaitResult blocks on the queue's response endpoint until the job
// reaches a terminal state. The wait is bounded only by ctx.
func (c *Client) AwaitResult(ctx context.Context, job *QueueJob) (map[string]any, error) {
	var result map[string]any
	resp, err := c.queue.R().
		SetContext(ctx).
		SetQueryParam("wait", "1").
		SetResult(&result).
		Get(job.ResponseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to await result of %s: %w", job.RequestID, err)
	}
	if resp.IsError() {
		return nil, responseError(resp)
	}
	return result, nil
}

// SubscribeStatus streams status events for a job until a terminal one
// arrives and returns it. The stream is read line-by-line as server-sent
// events; the wait is bounded only by ctx.
func (c *Client) SubscribeStatus(ctx context.Context, job *QueueJob) (*QueueStatus, error) {
	resp, err := c.queue.R().
		SetContext(ctx).
		SetQueryParam("logs", "1").
		SetDoNotParseResponse(true).
		Get(job.StatusURL + "/stream")
	if err != nil {
		return nil, fmt.Errorf("failed to open status stream for %s: %w", job.RequestID, err)
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() >= http.StatusBadRequest {
		return nil, &APIError{StatusCode: resp.StatusCode(), Body: "status stream rejected"}
	}

	var last QueueStatus
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" {
			continue
		}
		var status QueueStatus
		if err := json.Unmarshal([]byte(payload), &status); err != nil {
			log.Warn().Err(err).Str("request_id", job.RequestID).Msg("Skipping malformed status stream event")
			continue
		}
		last = status
		if isTerminalStatusText(status.Status) {
			return &last, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("status stream for %s interrupted: %w", job.RequestID, err)
	}
	if last.Status == "" {
		return nil, fmt.Errorf("status stream for %s closed without events", job.RequestID)
	}
	return &last, nil
}

func isTerminalStatusText(status string) bool {
	s := strings.ToLower(status)
	return strings.Contains(s, "completed") || strings.Contains(s, "done") ||
		strings.Contains(s, "failed") || strings.Contains(s, "error")
}

// UploadFile pushes a local file to Fal storage and returns its public URL.
func (c *Client) UploadFile(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}

	var initiate UploadInitiateResponse
	resp, err := c.storage.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"file_name":    filepath.Base(path),
			"content_type": "application/octet-stream",
		}).
		SetResult(&initiate).
		Post("/storage/upload/initiate")
	if err != nil {
		return "", fmt.Errorf("failed to initiate upload: %w", err)
	}
	if resp.IsError() {
		return "", responseError(resp)
	}
	if initiate.UploadURL == "" || initiate.FileURL == "" {
		return "", fmt.Errorf("upload initiation returned no upload_url")
	}

	putResp, err := resty.New().R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/octet-stream").
		SetBody(data).
		Put(initiate.UploadURL)
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", path, err)
	}
	if putResp.IsError() {
		return "", responseError(putResp)
	}
	return initiate.FileURL, nil
}

// Package hubspot wraps the HubSpot CRM v3 REST API endpoints used by the
// reporting engine: deal search, pipeline stages, object reads and line-item
// batch reads.
package hubspot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/pipeline-reports/internal/resilience"
)

const defaultBaseURL = "https://api.hubapi.com"

// Client defines the HubSpot API operations used by the reporting engine.
type Client interface {
	SearchDeals(ctx context.Context, req SearchRequest) (*SearchResponse, error)
	GetPipelineStages(ctx context.Context, pipelineID string) ([]Stage, error)
	GetDeal(ctx context.Context, dealID string, associations []string) (*Deal, error)
	GetCompany(ctx context.Context, companyID string, properties []string) (*Company, error)
	BatchReadLineItems(ctx context.Context, ids []string, properties []string) ([]LineItem, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithTimeout sets the timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithRateLimit overrides the default client-side limit (4 req/s, under the
// search endpoint's per-second cap). A non-positive rps disables limiting.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		} else {
			c.limiter = nil
		}
	}
}

type httpClient struct {
	token   string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a HubSpot client authenticated with a private-app token.
func NewClient(token string, opts ...Option) Client {
	c := &httpClient{
		token:   token,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: rate.NewLimiter(4, 1),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// wait blocks until the rate limiter allows one event, or ctx is cancelled.
func (c *httpClient) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

// do sends one request and decodes a JSON response into out. Non-2xx
// responses are returned as *APIError and transport failures as
// *resilience.TransientError.
func (c *httpClient) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if err := c.wait(ctx); err != nil {
		return eris.Wrap(err, "rate limit wait")
	}

	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return eris.Wrap(err, "marshal request")
		}
		reqBody = bytes.NewReader(b)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return resilience.NewTransientError(eris.Wrap(err, "send request"), 0)
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return parseAPIError(resp.StatusCode, respBody)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return eris.Wrap(err, "unmarshal response")
	}
	return nil
}

func (c *httpClient) SearchDeals(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	if req.Limit <= 0 || req.Limit > MaxSearchLimit {
		req.Limit = MaxSearchLimit
	}
	if req.FilterGroups == nil {
		req.FilterGroups = []FilterGroup{}
	}

	var resp SearchResponse
	if err := c.do(ctx, http.MethodPost, "/crm/v3/objects/deals/search", nil, req, &resp); err != nil {
		return nil, eris.Wrap(err, "hubspot: search deals")
	}
	return &resp, nil
}

func (c *httpClient) GetPipelineStages(ctx context.Context, pipelineID string) ([]Stage, error) {
	var p Pipeline
	path := "/crm/v3/pipelines/deals/" + url.PathEscape(pipelineID)
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &p); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("hubspot: get pipeline %s", pipelineID))
	}
	return p.Stages, nil
}

func (c *httpClient) GetDeal(ctx context.Context, dealID string, associations []string) (*Deal, error) {
	q := url.Values{}
	if len(associations) > 0 {
		q.Set("associations", strings.Join(associations, ","))
	}

	var d Deal
	path := "/crm/v3/objects/deals/" + url.PathEscape(dealID)
	if err := c.do(ctx, http.MethodGet, path, q, nil, &d); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("hubspot: get deal %s", dealID))
	}
	return &d, nil
}

func (c *httpClient) GetCompany(ctx context.Context, companyID string, properties []string) (*Company, error) {
	q := url.Values{}
	if len(properties) > 0 {
		q.Set("properties", strings.Join(properties, ","))
	}

	var co Company
	path := "/crm/v3/objects/companies/" + url.PathEscape(companyID)
	if err := c.do(ctx, http.MethodGet, path, q, nil, &co); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("hubspot: get company %s", companyID))
	}
	return &co, nil
}

func (c *httpClient) BatchReadLineItems(ctx context.Context, ids []string, properties []string) ([]LineItem, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	body := batchReadRequest{
		Inputs:     make([]batchReadInput, len(ids)),
		Properties: properties,
	}
	for i, id := range ids {
		body.Inputs[i] = batchReadInput{ID: id}
	}

	var resp batchReadResponse
	if err := c.do(ctx, http.MethodPost, "/crm/v3/objects/line_items/batch/read", nil, body, &resp); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("hubspot: batch read %d line items", len(ids)))
	}
	return resp.Results, nil
}

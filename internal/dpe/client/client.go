// Package client provides the HTTP client for the ADEME data-fair DPE datasets.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"dpehub_backend/platform/config"
	"dpehub_backend/platform/logger"

	"golang.org/x/time/rate"
)

const sortByEstablishmentDesc = "-date_etablissement_dpe"

// DepartmentResolver picks the department code used as postal code prefix.
type DepartmentResolver interface {
	DepartmentFor(commune string) string
}

// Lines is one page of raw upstream records. Results are left undecoded
// because their schema depends on the dataset generation.
type Lines struct {
	Total   int               `json:"total"`
	Results []json.RawMessage `json:"results"`
}

// Client is the HTTP client for the data-fair lines endpoint.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	datasetID   string
	departments DepartmentResolver
	limiter     *rate.Limiter
	log         *logger.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// New creates a data-fair API client.
func New(cfg config.AdemeConfig, departments DepartmentResolver, log *logger.Logger, opts ...Option) *Client {
	limit := rate.Inf
	if cfg.GetAdemeRatePerSecond() > 0 {
		limit = rate.Limit(cfg.GetAdemeRatePerSecond())
	}

	c := &Client{
		httpClient:  &http.Client{Timeout: cfg.GetAdemeTimeout()},
		baseURL:     strings.TrimRight(cfg.GetAdemeBaseURL(), "/"),
		datasetID:   cfg.GetAdemeDatasetID(),
		departments: departments,
		limiter:     rate.NewLimiter(limit, 1),
		log:         log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BuildQuery combines an exact-phrase match on the municipality with a
// wildcard postal code prefix on the department.
func BuildQuery(commune, department string) string {
	escaped := strings.ReplaceAll(commune, `"`, `\"`)
	return fmt.Sprintf(`nom_commune_ban:"%s" AND code_postal_ban:%s*`, escaped, department)
}

// LinesURL builds the lines request URL for a commune, newest DPE first,
// capped at size results.
func (c *Client) LinesURL(commune string, size int) string {
	params := url.Values{}
	params.Set("size", strconv.Itoa(size))
	params.Set("sort", sortByEstablishmentDesc)
	params.Set("qs", BuildQuery(commune, c.departments.DepartmentFor(commune)))

	return fmt.Sprintf("%s/datasets/%s/lines?%s", c.baseURL, url.PathEscape(c.datasetID), params.Encode())
}

// FetchLines issues one GET for the commune's records.
func (c *Client) FetchLines(ctx context.Context, commune string, size int) (*Lines, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	reqURL := c.LinesURL(commune, size)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Error("ademe request failed", "error", err, "url", reqURL)
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusBadRequest:
		c.log.Error("ademe bad request", "status", resp.StatusCode, "url", reqURL)
		return nil, fmt.Errorf("bad request: invalid query")
	case http.StatusNotFound:
		c.log.Error("ademe dataset not found", "dataset", c.datasetID)
		return nil, fmt.Errorf("dataset %q not found", c.datasetID)
	case http.StatusTooManyRequests:
		c.log.Warn("ademe rate limited", "url", reqURL)
		return nil, fmt.Errorf("upstream rate limited")
	default:
		c.log.Error("ademe upstream error", "status", resp.StatusCode, "url", reqURL)
		return nil, fmt.Errorf("upstream error: status %d", resp.StatusCode)
	}

	var lines Lines
	if err := json.NewDecoder(resp.Body).Decode(&lines); err != nil {
		c.log.Error("ademe decode failed", "error", err)
		return nil, fmt.Errorf("decode response: %w", err)
	}

	c.log.Debug("ademe lines fetched", "commune", commune, "total", lines.Total, "results", len(lines.Results))
	return &lines, nil
}

// Ping checks that the configured dataset is reachable.
func (c *Client) Ping(ctx context.Context) error {
	reqURL := fmt.Sprintf("%s/datasets/%s", c.baseURL, url.PathEscape(c.datasetID))

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ping failed: status %d", resp.StatusCode)
	}

	return nil
}

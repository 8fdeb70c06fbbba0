// Package transport implements the management API connection: session
// handling, entity CRUD, capability grants, and the search export stream.
package transport

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-spladmin/core"
)

const defaultClientTimeout = 60 * time.Second
const defaultResponseBodyLimit int64 = 50 << 20 // 50 MiB

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a core.Connection backed by the platform's REST management
// API. Authentication uses either a static token or a session key obtained
// lazily on first use and refreshed on expiry. Safe for concurrent use.
type Client struct {
	name      string
	baseURL   string
	username  string
	password  string
	token     string
	namespace core.Namespace

	httpClient HTTPDoer
	logger     core.Logger

	mu         sync.Mutex
	sessionKey string
}

type ClientOption func(*Client)

func WithHTTPClient(client HTTPDoer) ClientOption {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func WithClientLogger(logger core.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient builds a connection from one named connection config.
func NewClient(name string, cfg core.ConnectionConfig, opts ...ClientOption) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, transportWrapError(err, goerrors.CategoryBadInput,
			"transport: invalid connection config", http.StatusBadRequest,
			map[string]any{"connection": name})
	}
	scheme := strings.TrimSpace(cfg.Scheme)
	if scheme == "" {
		scheme = "https"
	}
	port := cfg.Port
	if port == 0 {
		port = 8089
	}

	_, logger := glog.Resolve("spladmin.transport", nil, nil)
	client := &Client{
		name:      name,
		baseURL:   fmt.Sprintf("%s://%s:%d", scheme, cfg.Host, port),
		username:  cfg.Username,
		password:  cfg.Password,
		token:     cfg.Token,
		namespace: cfg.Namespace.Namespace(),
		logger:    logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	if client.httpClient == nil {
		httpTransport := http.DefaultTransport.(*http.Transport).Clone()
		if cfg.Insecure {
			httpTransport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		}
		client.httpClient = &http.Client{
			Timeout:   defaultClientTimeout,
			Transport: httpTransport,
		}
	}
	return client, nil
}

func (c *Client) Name() string {
	return c.name
}

func (c *Client) Namespace() core.Namespace {
	return c.namespace
}

// List returns every entity of a kind visible under the active namespace.
func (c *Client) List(ctx context.Context, kind core.Kind) ([]core.Entity, error) {
	collection, err := c.collectionURL(kind)
	if err != nil {
		return nil, err
	}
	response, err := c.getJSON(ctx, collection, url.Values{"count": {"0"}})
	if err != nil {
		return nil, err
	}
	entities := make([]core.Entity, 0, len(response.Entry))
	for _, entry := range response.Entry {
		entity := entityFromEntry(kind, entry)
		if !c.namespace.Matches(entity.Access) {
			continue
		}
		entities = append(entities, entity)
	}
	return entities, nil
}

// Get fetches one named entity.
func (c *Client) Get(ctx context.Context, kind core.Kind, name string) (core.Entity, error) {
	endpoint, err := c.entityURL(kind, name)
	if err != nil {
		return core.Entity{}, err
	}
	response, err := c.getJSON(ctx, endpoint, nil)
	if err != nil {
		return core.Entity{}, err
	}
	if len(response.Entry) == 0 {
		return core.Entity{}, transportError(
			fmt.Sprintf("transport: %s %q not found", kind, name),
			goerrors.CategoryNotFound, http.StatusNotFound,
			map[string]any{"kind": kind.String(), "name": name})
	}
	return entityFromEntry(kind, response.Entry[0]), nil
}

// Create posts a new collection member with form-encoded fields.
func (c *Client) Create(ctx context.Context, kind core.Kind, name string, fields map[string]any) (core.Entity, error) {
	collection, err := c.collectionURL(kind)
	if err != nil {
		return core.Entity{}, err
	}
	form := encodeFields(fields)
	form.Set("name", name)
	response, err := c.postForm(ctx, collection, form)
	if err != nil {
		return core.Entity{}, err
	}
	if len(response.Entry) == 0 {
		return core.Entity{Name: name, Kind: kind, Content: map[string]any{}}, nil
	}
	return entityFromEntry(kind, response.Entry[0]), nil
}

// Update posts field assignments onto an existing member. The API rejects
// the immutable name field, so it never travels.
func (c *Client) Update(ctx context.Context, kind core.Kind, name string, fields map[string]any) error {
	endpoint, err := c.entityURL(kind, name)
	if err != nil {
		return err
	}
	form := encodeFields(fields)
	form.Del("name")
	if len(form) == 0 {
		return nil
	}
	_, err = c.postForm(ctx, endpoint, form)
	return err
}

// Delete removes one named member.
func (c *Client) Delete(ctx context.Context, kind core.Kind, name string) error {
	endpoint, err := c.entityURL(kind, name)
	if err != nil {
		return err
	}
	_, err = c.do(ctx, http.MethodDelete, endpoint, nil, "")
	return err
}

// Grant adds one capability to the entity's capability list. The API has
// no single-capability operation: the full list is re-posted.
func (c *Client) Grant(ctx context.Context, kind core.Kind, name string, capability string) error {
	return c.assignCapabilities(ctx, kind, name, capability, true)
}

// Revoke removes one capability from the entity's capability list.
func (c *Client) Revoke(ctx context.Context, kind core.Kind, name string, capability string) error {
	return c.assignCapabilities(ctx, kind, name, capability, false)
}

func (c *Client) assignCapabilities(ctx context.Context, kind core.Kind, name string, capability string, add bool) error {
	entity, err := c.Get(ctx, kind, name)
	if err != nil {
		return err
	}
	current := core.StringSlice(entity.Content["capabilities"])
	next := make([]string, 0, len(current)+1)
	for _, existing := range current {
		if existing == capability {
			continue
		}
		next = append(next, existing)
	}
	if add {
		next = append(next, capability)
	}
	sort.Strings(next)

	endpoint, err := c.entityURL(kind, name)
	if err != nil {
		return err
	}
	form := url.Values{}
	if len(next) == 0 {
		form.Set("capabilities", "")
	}
	for _, value := range next {
		form.Add("capabilities", value)
	}
	_, err = c.postForm(ctx, endpoint, form)
	return err
}

// Capabilities lists the platform's full capability vocabulary.
func (c *Client) Capabilities(ctx context.Context) ([]string, error) {
	endpoint := c.serviceURL(capabilitiesPath, false)
	response, err := c.getJSON(ctx, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if len(response.Entry) == 0 {
		return nil, nil
	}
	capabilities := core.StringSlice(response.Entry[0].Content["capabilities"])
	sort.Strings(capabilities)
	return capabilities, nil
}

// Export runs a search through the streaming export endpoint and returns
// the raw JSON-lines body. The caller owns closing the stream.
func (c *Client) Export(ctx context.Context, query, earliest, latest string) (io.ReadCloser, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, transportError("transport: export query is required",
			goerrors.CategoryBadInput, http.StatusBadRequest, nil)
	}
	if !strings.HasPrefix(query, "search") && !strings.HasPrefix(query, "|") {
		query = "search " + query
	}
	form := url.Values{
		"search":        {query},
		"earliest_time": {earliest},
		"latest_time":   {latest},
		"output_mode":   {"json"},
	}

	endpoint := c.serviceURL(exportPath, false)
	httpRes, err := c.doRaw(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()),
		"application/x-www-form-urlencoded")
	if err != nil {
		return nil, err
	}
	if httpRes.StatusCode >= http.StatusBadRequest {
		defer httpRes.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(httpRes.Body, 4096))
		return nil, statusError(httpRes.StatusCode, "transport: search export failed", map[string]any{
			"status_code": httpRes.StatusCode,
			"body":        string(body),
		})
	}
	return httpRes.Body, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, query url.Values) (*apiResponse, error) {
	if query == nil {
		query = url.Values{}
	}
	query.Set("output_mode", "json")
	return c.do(ctx, http.MethodGet, endpoint+"?"+query.Encode(), nil, "")
}

func (c *Client) postForm(ctx context.Context, endpoint string, form url.Values) (*apiResponse, error) {
	return c.do(ctx, http.MethodPost, endpoint+"?output_mode=json",
		strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
}

func (c *Client) do(ctx context.Context, method, endpoint string, body io.Reader, contentType string) (*apiResponse, error) {
	httpRes, err := c.doRaw(ctx, method, endpoint, body, contentType)
	if err != nil {
		return nil, err
	}
	defer httpRes.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(httpRes.Body, defaultResponseBodyLimit))
	if err != nil {
		return nil, transportWrapError(err, goerrors.CategoryExternal,
			"transport: read response body", http.StatusBadGateway,
			map[string]any{"status_code": httpRes.StatusCode})
	}
	if httpRes.StatusCode >= http.StatusBadRequest {
		return nil, statusError(httpRes.StatusCode, apiMessageText(payload), map[string]any{
			"status_code": httpRes.StatusCode,
			"url":         endpoint,
		})
	}
	if len(payload) == 0 {
		return &apiResponse{}, nil
	}
	response := &apiResponse{}
	if err := json.Unmarshal(payload, response); err != nil {
		return nil, transportWrapError(err, goerrors.CategoryExternal,
			"transport: decode response envelope", http.StatusBadGateway,
			map[string]any{"url": endpoint})
	}
	return response, nil
}

func (c *Client) doRaw(ctx context.Context, method, endpoint string, body io.Reader, contentType string) (*http.Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	auth, err := c.authorization(ctx)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, transportWrapError(err, goerrors.CategoryBadInput,
			"transport: create http request", http.StatusBadRequest,
			map[string]any{"method": method, "url": endpoint})
	}
	httpReq.Header.Set("Authorization", auth)
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}

	httpRes, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, transportWrapError(err, goerrors.CategoryExternal,
			"transport: execute http request", http.StatusBadGateway,
			map[string]any{"method": method, "url": endpoint, "connection": c.name})
	}
	return httpRes, nil
}

// authorization returns the header value, logging in for a session key
// when no token is configured and no session is active yet.
func (c *Client) authorization(ctx context.Context) (string, error) {
	if c.token != "" {
		return "Bearer " + c.token, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sessionKey != "" {
		return "Splunk " + c.sessionKey, nil
	}

	form := url.Values{
		"username":    {c.username},
		"password":    {c.password},
		"output_mode": {"json"},
	}
	endpoint := c.serviceURL(loginPath, false)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", transportWrapError(err, goerrors.CategoryBadInput,
			"transport: create login request", http.StatusBadRequest, nil)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	httpRes, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", transportWrapError(err, goerrors.CategoryExternal,
			"transport: login request failed", http.StatusBadGateway,
			map[string]any{"connection": c.name})
	}
	defer httpRes.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(httpRes.Body, 1<<20))
	if err != nil {
		return "", transportWrapError(err, goerrors.CategoryExternal,
			"transport: read login response", http.StatusBadGateway, nil)
	}
	if httpRes.StatusCode >= http.StatusBadRequest {
		return "", statusError(httpRes.StatusCode, "transport: authentication failed", map[string]any{
			"status_code": httpRes.StatusCode,
			"connection":  c.name,
			"username":    c.username,
		})
	}

	session := struct {
		SessionKey string `json:"sessionKey"`
	}{}
	if err := json.Unmarshal(payload, &session); err != nil {
		return "", transportWrapError(err, goerrors.CategoryExternal,
			"transport: decode login response", http.StatusBadGateway, nil)
	}
	if session.SessionKey == "" {
		return "", transportError("transport: login response carried no session key",
			goerrors.CategoryAuth, http.StatusUnauthorized,
			map[string]any{"connection": c.name})
	}
	c.logger.Debug("established management session",
		"connection", c.name, "username", c.username)
	c.sessionKey = session.SessionKey
	return "Splunk " + c.sessionKey, nil
}

func statusError(statusCode int, message string, metadata map[string]any) error {
	category := goerrors.CategoryExternal
	switch statusCode {
	case http.StatusUnauthorized:
		category = goerrors.CategoryAuth
	case http.StatusForbidden:
		category = goerrors.CategoryAuthz
	case http.StatusNotFound:
		category = goerrors.CategoryNotFound
	case http.StatusBadRequest, http.StatusConflict:
		category = goerrors.CategoryBadInput
	}
	if strings.TrimSpace(message) == "" {
		message = "transport: management api request failed"
	}
	return transportError(message, category, statusCode, metadata)
}

// encodeFields flattens content values into form parameters. Sequence
// values repeat the key, matching the API's multi-value convention.
func encodeFields(fields map[string]any) url.Values {
	form := url.Values{}
	for key, value := range fields {
		switch typed := value.(type) {
		case nil:
			continue
		case []string:
			for _, item := range typed {
				form.Add(key, item)
			}
		case []any:
			for _, item := range typed {
				form.Add(key, fmt.Sprint(item))
			}
		case bool:
			if typed {
				form.Set(key, "1")
			} else {
				form.Set(key, "0")
			}
		default:
			form.Set(key, fmt.Sprint(typed))
		}
	}
	return form
}

var _ core.Connection = (*Client)(nil)

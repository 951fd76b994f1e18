// Copyright (C) 2026 Stitch, Inc.
// See LICENSE for copying information.

package zuora

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/zeebo/errs"
	"go.uber.org/zap"
)

// LatestWSDLVersion pins the WSDL version header sent on REST calls.
const LatestWSDLVersion = "91.0"

// Retry policy recommended by Zuora for AQuA and data source exports:
// exponential backoff seeded at 30 seconds, no jitter, five attempts.
const retryMaxAttempts = 5

var retrySeedInterval = 30 * time.Second

var (
	errRateLimited = errs.Class("rate limit exceeded")
	errRetryable   = errs.Class("retryable")
)

// Config carries the tenant credentials and data-center selectors.
type Config struct {
	Username  string
	Password  string
	AuthType  AuthType
	PartnerID string
	Sandbox   bool
	European  bool
	UseRest   bool
}

// Client is the single shared HTTP session for a tenant. It injects
// authentication, retries transient failures, and classifies errors. It is
// not safe for concurrent use; the tap is single-threaded by design.
type Client struct {
	log    *zap.Logger
	http   *http.Client
	config Config

	baseURL string
	token   *accessToken
}

// NewClient builds a client, acquires a bearer token when OAuth is
// configured, and resolves the tenant's data center. A nil httpClient
// selects a default one.
func NewClient(ctx context.Context, log *zap.Logger, config Config, httpClient *http.Client) (_ *Client, err error) {
	defer mon.Task()(&ctx)(&err)

	if httpClient == nil {
		httpClient = &http.Client{}
	}

	client := &Client{
		log:    log,
		http:   httpClient,
		config: config,
	}

	if config.AuthType == AuthOAuth {
		if err := client.ensureToken(ctx); err != nil {
			return nil, err
		}
	}

	baseURL, err := client.resolveBaseURL(ctx)
	if err != nil {
		return nil, err
	}
	client.baseURL = baseURL
	log.Info("resolved zuora data center", zap.String("base_url", baseURL))

	return client, nil
}

// BaseURL returns the resolved data-center base URL.
func (client *Client) BaseURL() string { return client.baseURL }

// UseRest reports whether the client was configured for the synchronous
// REST export API rather than AQuA.
func (client *Client) UseRest() bool { return client.config.UseRest }

// PartnerID returns the configured AQuA partner id.
func (client *Client) PartnerID() string { return client.config.PartnerID }

// Response is a fully read non-streaming API response.
type Response struct {
	StatusCode int
	Body       []byte
}

// JSON decodes the response body into v.
func (resp *Response) JSON(v interface{}) error {
	return Error.Wrap(json.Unmarshal(resp.Body, v))
}

type errorsBody struct {
	Errors []struct {
		Code    string `json:"Code"`
		Message string `json:"Message"`
	} `json:"Errors"`
}

// NoSuchDataSource reports whether the response is the 400 Zuora returns
// when an object cannot be exported. The discovery probe treats this as
// "object not available" rather than an error.
func (resp *Response) NoSuchDataSource() bool {
	if resp == nil || resp.StatusCode != http.StatusBadRequest {
		return false
	}
	var body errorsBody
	if err := json.Unmarshal(resp.Body, &body); err != nil || len(body.Errors) == 0 {
		return false
	}
	return bytes.Contains([]byte(body.Errors[0].Message), []byte("noSuchDataSource"))
}

func (client *Client) aquaHeaders() map[string]string {
	if client.token != nil {
		return map[string]string{"Authorization": "Bearer " + client.token.value}
	}
	return map[string]string{
		"apiAccessKeyId":     client.config.Username,
		"apiSecretAccessKey": client.config.Password,
	}
}

func (client *Client) restHeaders() map[string]string {
	headers := client.aquaHeaders()
	headers["X-Zuora-WSDL-Version"] = LatestWSDLVersion
	headers["Content-Type"] = "application/json"
	return headers
}

type requestParams struct {
	method  string
	url     string
	headers map[string]string
	json    interface{}
	stream  bool
}

// retryableSend performs the request, retrying on 429 and on the
// retryable 5xx statuses. On success the returned response still has its
// body open when params.stream is set.
func (client *Client) retryableSend(ctx context.Context, params requestParams) (*http.Response, error) {
	if client.config.AuthType == AuthOAuth {
		if err := client.ensureToken(ctx); err != nil {
			return nil, err
		}
		// The token may have rotated since the headers were assembled.
		if _, ok := params.headers["Authorization"]; ok {
			params.headers["Authorization"] = "Bearer " + client.token.value
		}
	}

	var body []byte
	if params.json != nil {
		var err error
		body, err = json.Marshal(params.json)
		if err != nil {
			return nil, Error.Wrap(err)
		}
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = retrySeedInterval
	policy.RandomizationFactor = 0
	policy.Multiplier = 2
	policy.MaxInterval = 16 * retrySeedInterval
	policy.MaxElapsedTime = 0

	var resp *http.Response
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, params.method, params.url, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(Error.Wrap(err))
		}
		for key, value := range params.headers {
			req.Header.Set(key, value)
		}
		if params.json != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		r, err := client.http.Do(req)
		if err != nil {
			return errRetryable.Wrap(err)
		}

		switch r.StatusCode {
		case http.StatusTooManyRequests:
			content, _ := io.ReadAll(r.Body)
			_ = r.Body.Close()
			return errRateLimited.New("429 - %s", content)
		case http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			content, _ := io.ReadAll(r.Body)
			_ = r.Body.Close()
			return errRetryable.New("%d: %s", r.StatusCode, content)
		}

		resp = r
		return nil
	}

	notify := func(err error, wait time.Duration) {
		client.log.Warn("retrying request",
			zap.String("url", params.url),
			zap.Duration("wait", wait),
			zap.Error(err))
	}

	err := backoff.RetryNotify(operation,
		backoff.WithContext(backoff.WithMaxRetries(policy, retryMaxAttempts-1), ctx), notify)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// request performs a non-streaming request and classifies the outcome. The
// returned Response is non-nil whenever the server answered, even when err
// is set, so callers can inspect bodies like noSuchDataSource.
func (client *Client) request(ctx context.Context, params requestParams) (_ *Response, err error) {
	defer mon.Task()(&ctx)(&err)

	client.log.Info("request", zap.String("method", params.method), zap.String("url", params.url))

	raw, err := client.retryableSend(ctx, params)
	if err != nil {
		return nil, err
	}
	defer func() { err = errs.Combine(err, raw.Body.Close()) }()

	content, err := io.ReadAll(raw.Body)
	if err != nil {
		return nil, Error.Wrap(err)
	}

	resp := &Response{StatusCode: raw.StatusCode, Body: content}
	if raw.StatusCode < 200 || raw.StatusCode >= 300 {
		return resp, Error.Wrap(&APIError{Status: raw.StatusCode, Body: content})
	}
	return resp, nil
}

// urlCheck performs a request without error classification: the
// data-center resolver only cares about distinguishing 401 from anything
// else.
func (client *Client) urlCheck(ctx context.Context, params requestParams) (_ *Response, err error) {
	defer mon.Task()(&ctx)(&err)

	raw, err := client.retryableSend(ctx, params)
	if err != nil {
		return nil, err
	}
	defer func() { err = errs.Combine(err, raw.Body.Close()) }()

	content, err := io.ReadAll(raw.Body)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return &Response{StatusCode: raw.StatusCode, Body: content}, nil
}

// AquaRequest performs a request with AQuA auth headers against the
// resolved base URL.
func (client *Client) AquaRequest(ctx context.Context, method, path string, body interface{}) (*Response, error) {
	return client.request(ctx, requestParams{
		method:  method,
		url:     client.baseURL + path,
		headers: client.aquaHeaders(),
		json:    body,
	})
}

// RestRequest performs a request with REST auth headers (including the
// WSDL version pin) against the resolved base URL.
func (client *Client) RestRequest(ctx context.Context, method, path string, body interface{}) (*Response, error) {
	return client.request(ctx, requestParams{
		method:  method,
		url:     client.baseURL + path,
		headers: client.restHeaders(),
		json:    body,
	})
}

// stream performs a GET whose body is handed to the caller unread. A 404
// is classified as ErrNotFound so the sync engine can invalidate its file
// list without conflating it with a retryable failure.
func (client *Client) stream(ctx context.Context, path string, headers map[string]string) (_ io.ReadCloser, err error) {
	defer mon.Task()(&ctx)(&err)

	client.log.Info("request", zap.String("method", http.MethodGet), zap.String("url", client.baseURL+path))

	raw, err := client.retryableSend(ctx, requestParams{
		method:  http.MethodGet,
		url:     client.baseURL + path,
		headers: headers,
		stream:  true,
	})
	if err != nil {
		return nil, err
	}

	if raw.StatusCode < 200 || raw.StatusCode >= 300 {
		content, _ := io.ReadAll(raw.Body)
		_ = raw.Body.Close()
		if raw.StatusCode == http.StatusNotFound {
			return nil, ErrNotFound.New("%s", path)
		}
		return nil, Error.Wrap(&APIError{Status: raw.StatusCode, Body: content})
	}
	return raw.Body, nil
}

// AquaStream opens a streaming GET with AQuA auth headers.
func (client *Client) AquaStream(ctx context.Context, path string) (io.ReadCloser, error) {
	return client.stream(ctx, path, client.aquaHeaders())
}

// RestStream opens a streaming GET with REST auth headers.
func (client *Client) RestStream(ctx context.Context, path string) (io.ReadCloser, error) {
	return client.stream(ctx, path, client.restHeaders())
}

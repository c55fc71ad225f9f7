// Package lms implements a minimal client for the LMS REST API used by the
// publish stage: quizzes, questions, assignment overrides, enrollments and
// course file uploads. All requests carry bearer-token auth, list endpoints
// follow the Link response header for pagination. Transient failures (429 and
// 5xx) are retried with backoff, client errors are not.
package lms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/go-pkgz/repeater"
	"github.com/go-pkgz/repeater/strategy"
)

const perPage = 100

// Client talks to the LMS REST API.
type Client struct {
	BaseURL  string // API root, i.e. https://lms.example.edu/api/v1
	Token    string
	Client   *http.Client
	Repeater Repeater
}

// Repeater repeats failed requests
type Repeater interface {
	Do(ctx context.Context, fun func() error, errs ...error) (err error)
}

// New makes a client with the default retry policy.
func New(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		BaseURL:  baseURL,
		Token:    token,
		Client:   &http.Client{Timeout: timeout},
		Repeater: repeater.New(&strategy.Backoff{Repeats: 3, Duration: time.Second, Factor: 2, Jitter: true}),
	}
}

// APIError is a non-2xx response from the LMS.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("lms responded with %d: %s", e.Status, e.Body)
}

// retriable reports if the request may succeed on retry.
func (e *APIError) retriable() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= http.StatusInternalServerError
}

// errNoRetry terminates the repeater early, the real error is kept aside.
var errNoRetry = errors.New("no retry")

// do runs a JSON request with retries, decodes the response into resp if resp
// is not nil and returns the response headers (needed for pagination).
func (c *Client) do(ctx context.Context, method, url string, body, resp any) (http.Header, error) {
	var header http.Header
	var lastErr error

	err := c.Repeater.Do(ctx, func() error {
		h, e := c.doOnce(ctx, method, url, body, resp)
		if e != nil {
			lastErr = e
			apiErr := &APIError{}
			if errors.As(e, &apiErr) && !apiErr.retriable() {
				return errNoRetry
			}
			log.Printf("[DEBUG] retriable failure on %s %s: %v", method, url, e)
			return e
		}
		header = h
		return nil
	}, errNoRetry)

	if err != nil {
		if lastErr != nil {
			return nil, lastErr
		}
		return nil, err
	}
	return header, nil
}

func (c *Client) doOnce(ctx context.Context, method, url string, body, resp any) (http.Header, error) {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("can't marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("can't make request for %s: %w", url, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s %s failed: %w", method, url, err)
	}
	defer res.Body.Close()

	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		return nil, &APIError{Status: res.StatusCode, Body: bodyExcerpt(res)}
	}

	if resp != nil {
		if err := json.NewDecoder(res.Body).Decode(resp); err != nil {
			return nil, fmt.Errorf("can't decode response from %s: %w", url, err)
		}
	}
	return res.Header, nil
}

func decodeJSON(r io.Reader, v any) error {
	return json.NewDecoder(r).Decode(v)
}

// bodyExcerpt reads up to 512 bytes of the response body for error reporting.
func bodyExcerpt(res *http.Response) string {
	data, _ := io.ReadAll(io.LimitReader(res.Body, 512))
	return string(data)
}

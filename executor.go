package ulet

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// preparedRequest is a RequestSpec after URL resolution, body serialization
// and header merging. It is built once per call and reused across attempts.
type preparedRequest struct {
	method string
	url    string
	body   []byte
	header http.Header
}

// prepare resolves the spec against the client configuration. The default
// Content-Type is applied first so caller overrides win.
func (c *Client) prepare(spec RequestSpec) (*preparedRequest, error) {
	method := strings.ToUpper(spec.Method)
	switch method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete:
	default:
		return nil, fmt.Errorf("ulet: unsupported method %q", spec.Method)
	}

	resolved, err := c.resolveURL(spec.URL)
	if err != nil {
		return nil, err
	}

	var body []byte
	if spec.Body != nil {
		body, err = json.Marshal(spec.Body)
		if err != nil {
			return nil, fmt.Errorf("ulet: encode request body: %w", err)
		}
	}

	header := http.Header{}
	header.Set("Content-Type", "application/json")
	for key, values := range c.defaultHeader {
		header[key] = append([]string(nil), values...)
	}
	for key, values := range spec.Header {
		header[http.CanonicalHeaderKey(key)] = append([]string(nil), values...)
	}

	return &preparedRequest{
		method: method,
		url:    resolved,
		body:   body,
		header: header,
	}, nil
}

// resolveURL returns target as-is when absolute, otherwise joined onto the
// configured base URL.
func (c *Client) resolveURL(target string) (string, error) {
	u, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("ulet: parse url %q: %w", target, err)
	}
	if u.IsAbs() {
		return u.String(), nil
	}
	if c.baseURL == "" {
		return "", fmt.Errorf("ulet: relative url %q without base URL", target)
	}
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("ulet: parse base url %q: %w", c.baseURL, err)
	}
	return base.ResolveReference(u).String(), nil
}

// attempt performs exactly one network round-trip for the prepared request
// under the per-attempt timeout. The deadline is released on every path.
func (c *Client) attempt(ctx context.Context, prep *preparedRequest) (*Response, *RequestError) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var bodyReader io.Reader
	if prep.body != nil {
		bodyReader = bytes.NewReader(prep.body)
	}

	req, err := http.NewRequestWithContext(attemptCtx, prep.method, prep.url, bodyReader)
	if err != nil {
		return nil, &RequestError{
			Kind:    KindNetwork,
			Message: "build request",
			Method:  prep.method,
			URL:     prep.url,
			Cause:   err,
		}
	}
	for key, values := range prep.header {
		req.Header[key] = values
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.classifyTransportError(prep, attemptCtx, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxResponseBytes))
	if err != nil {
		return nil, c.classifyTransportError(prep, attemptCtx, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &RequestError{
			Kind:       KindHTTP,
			Message:    fmt.Sprintf("unexpected status %s", resp.Status),
			StatusCode: resp.StatusCode,
			RetryAfter: resp.Header.Get("Retry-After"),
			Method:     prep.method,
			URL:        prep.url,
		}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Header:     resp.Header.Clone(),
		Body:       body,
	}, nil
}

// classifyTransportError maps a transport failure onto the Timeout /
// NetworkError taxonomy. A fired per-attempt deadline is a Timeout even
// when the transport reports it as a generic url.Error.
func (c *Client) classifyTransportError(prep *preparedRequest, attemptCtx context.Context, err error) *RequestError {
	kind := KindNetwork
	message := "transport failure"

	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(attemptCtx.Err(), context.DeadlineExceeded):
		kind = KindTimeout
		message = fmt.Sprintf("attempt exceeded %v deadline", c.timeout)
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = KindTimeout
		message = "transport timeout"
	}

	return &RequestError{
		Kind:      kind,
		Message:   message,
		Method:    prep.method,
		URL:       prep.url,
		Timestamp: time.Now(),
		Cause:     err,
	}
}

// Package backend is the REST client for the chat backend.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Vasu1712/chatsync/internal/apperr"
	"github.com/Vasu1712/chatsync/internal/logger"
)

const maxErrorBody = 4 << 10

// TokenSource supplies the bearer token for authenticated calls.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

type Options struct {
	HTTPClient *http.Client
	Timeout    time.Duration
	Tokens     TokenSource
	Logger     *slog.Logger
}

type Client struct {
	base   string
	http   *http.Client
	tokens TokenSource
	log    *slog.Logger
}

func New(baseURL string, opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{
		base:   strings.TrimRight(baseURL, "/"),
		http:   hc,
		tokens: opts.Tokens,
		log:    logger.OrDiscard(opts.Logger),
	}
}

// SetTokens installs the token source. The token store needs the client to
// refresh, so the two are wired after construction.
func (c *Client) SetTokens(ts TokenSource) { c.tokens = ts }

type request struct {
	method      string
	path        string
	query       url.Values
	body        io.Reader
	contentType string
	anonymous   bool
}

func jsonBody(v any) (io.Reader, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(data), nil
}

func (c *Client) send(ctx context.Context, r request) ([]byte, error) {
	u := c.base + "/" + strings.TrimLeft(r.path, "/")
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, r.method, u, r.body)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInvalidArgument, "build request", err)
	}
	req.Header.Set("Accept", "application/json")
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	if !r.anonymous {
		if c.tokens == nil {
			return nil, apperr.Unauthorized("not signed in")
		}
		tok, err := c.tokens.AccessToken(ctx)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, apperr.Unavailable(fmt.Sprintf("%s %s", r.method, r.path), err)
	}
	defer resp.Body.Close()
	c.log.Debug("backend_request", "method", r.method, "path", r.path,
		"status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, apperr.Wrap(apperr.FromStatus(resp.StatusCode), errorDetail(resp.StatusCode, body), nil)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.Unavailable("read response", err)
	}
	return data, nil
}

// errorDetail pulls the message out of DRF error bodies: {"detail": ...},
// {"error": ...} or a field map.
func errorDetail(status int, body []byte) string {
	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err == nil {
		for _, k := range []string{"detail", "error", "message"} {
			if s, ok := obj[k].(string); ok && s != "" {
				return s
			}
		}
		var parts []string
		for k, v := range obj {
			parts = append(parts, fmt.Sprintf("%s: %v", k, v))
		}
		if len(parts) > 0 {
			return strings.Join(parts, "; ")
		}
	}
	if s := strings.TrimSpace(string(body)); s != "" && len(s) < 200 {
		return s
	}
	return http.StatusText(status)
}

func (c *Client) doJSON(ctx context.Context, r request, in, out any) error {
	if in != nil {
		body, err := jsonBody(in)
		if err != nil {
			return err
		}
		r.body = body
		r.contentType = "application/json"
	}
	data, err := c.send(ctx, r)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return apperr.Malformed(fmt.Sprintf("decode %s response", r.path), err)
	}
	return nil
}

func decodeInto(data []byte, out any) error {
	if err := json.Unmarshal(data, out); err != nil {
		return apperr.Malformed("decode response", err)
	}
	return nil
}

func list[D any, T any](ctx context.Context, c *Client, r request, conv func(D) T) ([]T, error) {
	data, err := c.send(ctx, r)
	if err != nil {
		return nil, err
	}
	dtos, err := decodeList[D](data)
	if err != nil {
		return nil, apperr.Malformed(fmt.Sprintf("decode %s list", r.path), err)
	}
	out := make([]T, 0, len(dtos))
	for _, d := range dtos {
		out = append(out, conv(d))
	}
	return out, nil
}

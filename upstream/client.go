/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package upstream talks to another instance's round API.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/Seednode/mysteryathlete/round"
)

const (
	defaultTimeout = 10 * time.Second
	maxRedirects   = 5
	maxBodyBytes   = 1 << 20
	userAgent      = "mysteryathlete/1.0"
)

// StatusError is returned for any unexpected HTTP status.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("upstream returned %d %s", e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("upstream returned %d: %s", e.Code, e.Message)
}

// Client implements round.Fetcher and round.Transport over HTTP.
type Client struct {
	base *url.URL
	http *http.Client
}

func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout: defaultTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}
}

// New returns a client for the API rooted at base. A nil httpClient gets
// sensible defaults.
func New(base string, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported upstream scheme %q", u.Scheme)
	}

	if httpClient == nil {
		httpClient = newHTTPClient()
	}

	return &Client{base: u, http: httpClient}, nil
}

func (c *Client) endpoint(query url.Values, segments ...string) string {
	u := c.base.JoinPath(append([]string{"api", "rounds"}, segments...)...)
	u.RawQuery = query.Encode()

	return u.String()
}

func (c *Client) do(ctx context.Context, method, target string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	limited := io.LimitReader(resp.Body, maxBodyBytes)

	if resp.StatusCode == http.StatusNotFound {
		return round.ErrRoundNotFound
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(limited).Decode(&apiErr)

		return &StatusError{Code: resp.StatusCode, Message: apiErr.Error}
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(limited).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	return nil
}

// FetchRound implements round.Fetcher.
func (c *Client) FetchRound(ctx context.Context, sport, playDate string) (*round.Round, error) {
	query := url.Values{}
	if playDate != "" {
		query.Set("date", playDate)
	}

	var r round.Round
	if err := c.do(ctx, http.MethodGet, c.endpoint(query, sport), nil, &r); err != nil {
		return nil, err
	}

	if r.Player.Name == "" {
		return nil, errors.New("upstream returned a round without a player")
	}

	return &r, nil
}

// SubmitResult implements round.Transport.
func (c *Client) SubmitResult(ctx context.Context, k round.Key, res round.Result) error {
	return c.do(ctx, http.MethodPost, c.endpoint(nil, k.Sport, k.PlayDate, "results"), res, nil)
}

// Stats fetches the aggregated stats for k.
func (c *Client) Stats(ctx context.Context, k round.Key) (round.RoundStats, error) {
	var s round.RoundStats
	err := c.do(ctx, http.MethodGet, c.endpoint(nil, k.Sport, k.PlayDate, "stats"), nil, &s)

	return s, err
}

// Package github is a small client for the parts of the GitHub REST API the
// evaluation needs: repository metadata, READMEs and a user's public
// repositories.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	apiURL    = "https://api.github.com"
	userAgent = "codecredx (+https://github.com/ravi-parthasarathy/codecredx)"
	accept    = "application/vnd.github+json"
	// Max value GitHub accepts for per_page.
	perPage = 100
)

type Client struct {
	token      string
	logger     *zap.Logger
	HTTPClient *http.Client
	UserAgent  string
	APIURL     string
	PerPage    int
}

// New returns a client for the public GitHub API. token may be empty, in which
// case requests are unauthenticated and heavily rate limited.
func New(logger *zap.Logger, token string) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		token:  token,
		APIURL: apiURL,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger:    logger,
		UserAgent: userAgent,
		PerPage:   perPage,
	}
}

func (c *Client) newRequest(ctx context.Context, path string, q url.Values) (*http.Request, error) {
	endpoint := strings.TrimRight(c.APIURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if q != nil {
		req.URL.RawQuery = q.Encode()
	}
	return c.setHeaders(req), nil
}

func (c *Client) setHeaders(req *http.Request) *http.Request {
	if c.token != "" {
		req.Header.Set("Authorization", "token "+c.token)
	}
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept", accept)

	return req
}

func (c *Client) request(req *http.Request) (*http.Response, error) {
	c.logger.Debug("make request", zap.String("url", req.URL.String()))
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}

	return resp, nil
}

// getJSON performs a GET and decodes a 200 response body into target.
// Non-200 responses become a classified *Error using notFound for 404s.
func (c *Client) getJSON(ctx context.Context, path string, q url.Values, notFound string, target any) error {
	req, err := c.newRequest(ctx, path, q)
	if err != nil {
		return err
	}

	resp, err := c.request(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, resp.Body)
		return statusError(resp, notFound)
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return malformed("Malformed response from GitHub API.", err)
	}

	return nil
}

// addPage sets the page query parameter.
func addPage(q url.Values, page int) url.Values {
	out := url.Values{}
	for k, v := range q {
		out[k] = v
	}
	out.Set("page", strconv.Itoa(page))
	return out
}

func repoPath(owner, name string, rest ...string) string {
	p := fmt.Sprintf("/repos/%s/%s", url.PathEscape(owner), url.PathEscape(name))
	for _, r := range rest {
		p += "/" + r
	}
	return p
}

// Package news fetches top headlines and renders them as a numbered list.
package news

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/hyperjump/concierge/internal/config"
	"github.com/hyperjump/concierge/pkg/utils"
)

const (
	// FallbackMessage is shown whenever the headlines cannot be fetched.
	FallbackMessage = "Sorry, I couldn't fetch the news headlines."
	// NoHeadlinesMessage is shown when the service answers with zero articles.
	NoHeadlinesMessage = "No headlines available right now."

	untitled     = "(untitled)"
	defaultLimit = 5
)

// ErrRemoteUnavailable covers non-200 responses, transport failures and unusable bodies.
var ErrRemoteUnavailable = errors.New("news service unavailable")

// Client calls a NewsAPI-compatible top-headlines endpoint.
type Client struct {
	baseURL string
	apiKey  string
	country string
	limit   int
	client  *http.Client
	logger  *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = utils.NopIfNil(l) }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.client = h }
}

// NewClient returns a client for cfg.
func NewClient(cfg config.NewsConfig, opts ...Option) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	limit := cfg.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	country := cfg.Country
	if country == "" {
		country = "us"
	}
	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		country: country,
		limit:   limit,
		client:  &http.Client{Timeout: timeout},
		logger:  zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Headlines returns the numbered headline list, NoHeadlinesMessage, or FallbackMessage.
func (c *Client) Headlines(ctx context.Context) string {
	titles, err := c.Fetch(ctx)
	if err != nil {
		c.logger.Warn("news lookup failed", zap.Error(err))
		return FallbackMessage
	}
	if len(titles) == 0 {
		return NoHeadlinesMessage
	}
	return utils.NumberedList(titles)
}

// Fetch returns at most the configured number of titles, in the order the service sent them.
func (c *Client) Fetch(ctx context.Context) ([]string, error) {
	q := url.Values{}
	q.Set("country", c.country)
	q.Set("apiKey", c.apiKey)
	endpoint := c.baseURL + "/v2/top-headlines?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrRemoteUnavailable, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrRemoteUnavailable, err)
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: body is not JSON", ErrRemoteUnavailable)
	}
	articles := gjson.GetBytes(body, "articles")
	if !articles.IsArray() {
		return nil, fmt.Errorf("%w: missing articles", ErrRemoteUnavailable)
	}

	titles := make([]string, 0, c.limit)
	articles.ForEach(func(_, article gjson.Result) bool {
		title := strings.TrimSpace(article.Get("title").String())
		if title == "" {
			title = untitled
		}
		titles = append(titles, title)
		return len(titles) < c.limit
	})
	c.logger.Debug("news fetched", zap.Int("titles", len(titles)))
	return titles, nil
}

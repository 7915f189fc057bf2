// Package weather fetches current conditions for a city and renders them as a sentence.
package weather

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/hyperjump/concierge/internal/config"
	"github.com/hyperjump/concierge/pkg/utils"
)

// FallbackMessage is shown whenever the weather service cannot produce a report.
const FallbackMessage = "Sorry, I couldn't fetch the weather data."

// ErrRemoteUnavailable covers non-200 responses, transport failures and unusable bodies.
var ErrRemoteUnavailable = errors.New("weather service unavailable")

// Report is the subset of a current-weather response shown to the user.
type Report struct {
	City        string
	Description string
	// Temperature is the number exactly as the service sent it.
	Temperature string
	Unit        string
}

// Message renders the report as a single sentence.
func (r Report) Message() string {
	return fmt.Sprintf("The weather in %s is %s with a temperature of %s%s.",
		r.City, Capitalize(r.Description), r.Temperature, r.Unit)
}

// Client calls an OpenWeatherMap-compatible current weather endpoint.
type Client struct {
	baseURL string
	apiKey  string
	units   string
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
func NewClient(cfg config.WeatherConfig, opts ...Option) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	units := cfg.Units
	if units == "" {
		units = "metric"
	}
	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		units:   units,
		client:  &http.Client{Timeout: timeout},
		logger:  zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Lookup returns the weather sentence for city, or FallbackMessage on any failure.
func (c *Client) Lookup(ctx context.Context, city string) string {
	r, err := c.Fetch(ctx, city)
	if err != nil {
		c.logger.Warn("weather lookup failed", zap.String("city", city), zap.Error(err))
		return FallbackMessage
	}
	return r.Message()
}

// Fetch performs one request for city. Every failure wraps ErrRemoteUnavailable.
func (c *Client) Fetch(ctx context.Context, city string) (Report, error) {
	q := url.Values{}
	q.Set("q", city)
	q.Set("appid", c.apiKey)
	q.Set("units", c.units)
	endpoint := c.baseURL + "/data/2.5/weather?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Report{}, fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return Report{}, fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Report{}, fmt.Errorf("%w: status %d", ErrRemoteUnavailable, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Report{}, fmt.Errorf("%w: read body: %v", ErrRemoteUnavailable, err)
	}
	if !gjson.ValidBytes(body) {
		return Report{}, fmt.Errorf("%w: body is not JSON", ErrRemoteUnavailable)
	}

	desc := gjson.GetBytes(body, "weather.0.description")
	temp := gjson.GetBytes(body, "main.temp")
	if desc.Type != gjson.String {
		return Report{}, fmt.Errorf("%w: missing weather[0].description", ErrRemoteUnavailable)
	}
	if temp.Type != gjson.Number {
		return Report{}, fmt.Errorf("%w: missing main.temp", ErrRemoteUnavailable)
	}
	c.logger.Debug("weather fetched", zap.String("city", city), zap.String("temp", temp.Raw))
	return Report{City: city, Description: desc.String(), Temperature: temp.Raw, Unit: unitSymbol(c.units)}, nil
}

func unitSymbol(units string) string {
	switch units {
	case "imperial":
		return "°F"
	case "standard":
		return "K"
	default:
		return "°C"
	}
}

// Capitalize upper-cases the first character and lower-cases the rest.
func Capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError && size == 0 {
		return s
	}
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}

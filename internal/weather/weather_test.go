package weather

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/concierge/internal/config"
)

func newTestClient(t *testing.T, status int, body string, units string) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/data/2.5/weather" {
			t.Errorf("path = %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("appid") != "key" || q.Get("units") == "" || q.Get("q") == "" {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return NewClient(config.WeatherConfig{BaseURL: srv.URL, APIKey: "key", Units: units}, WithLogger(zap.NewNop()))
}

func TestLookup_Success(t *testing.T) {
	c := newTestClient(t, http.StatusOK, `{"weather":[{"description":"clear sky"}],"main":{"temp":21.5}}`, "metric")
	got := c.Lookup(context.Background(), "Paris")
	want := "The weather in Paris is Clear sky with a temperature of 21.5°C."
	if got != want {
		t.Errorf("Lookup = %q, want %q", got, want)
	}
}

func TestLookup_KeepsNumberAsSent(t *testing.T) {
	tests := []struct {
		temp, units, want string
	}{
		{"21", "metric", "21°C"},
		{"21.0", "metric", "21.0°C"},
		{"-3.25", "metric", "-3.25°C"},
		{"70.1", "imperial", "70.1°F"},
		{"294.6", "standard", "294.6K"},
	}
	for _, tt := range tests {
		c := newTestClient(t, http.StatusOK, `{"weather":[{"description":"LIGHT RAIN"}],"main":{"temp":`+tt.temp+`}}`, tt.units)
		want := "The weather in Oslo is Light rain with a temperature of " + tt.want + "."
		if got := c.Lookup(context.Background(), "Oslo"); got != want {
			t.Errorf("Lookup = %q, want %q", got, want)
		}
	}
}

func TestLookup_FallbackOnNon200(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusUnauthorized, http.StatusInternalServerError} {
		c := newTestClient(t, status, `{"cod":"404","message":"city not found"}`, "metric")
		if got := c.Lookup(context.Background(), "Atlantis"); got != FallbackMessage {
			t.Errorf("status %d: Lookup = %q", status, got)
		}
	}
}

func TestFetch_MissingFields(t *testing.T) {
	bodies := []string{
		`{"main":{"temp":20}}`,
		`{"weather":[],"main":{"temp":20}}`,
		`{"weather":[{"description":"fog"}]}`,
		`{"weather":[{"description":"fog"}],"main":{"temp":"warm"}}`,
		`not json`,
	}
	for _, body := range bodies {
		c := newTestClient(t, http.StatusOK, body, "metric")
		_, err := c.Fetch(context.Background(), "X")
		if !errors.Is(err, ErrRemoteUnavailable) {
			t.Errorf("body %s: err = %v", body, err)
		}
		if got := c.Lookup(context.Background(), "X"); got != FallbackMessage {
			t.Errorf("body %s: Lookup = %q", body, got)
		}
	}
}

func TestFetch_TransportError(t *testing.T) {
	c := NewClient(config.WeatherConfig{BaseURL: "http://127.0.0.1:1", APIKey: "key"})
	if _, err := c.Fetch(context.Background(), "Paris"); !errors.Is(err, ErrRemoteUnavailable) {
		t.Errorf("err = %v", err)
	}
}

func TestCapitalize(t *testing.T) {
	tests := map[string]string{
		"":                "",
		"clear sky":       "Clear sky",
		"OVERCAST CLOUDS": "Overcast clouds",
		"éclaircies":      "Éclaircies",
		"x":               "X",
	}
	for in, want := range tests {
		if got := Capitalize(in); got != want {
			t.Errorf("Capitalize(%q) = %q, want %q", in, got, want)
		}
	}
}

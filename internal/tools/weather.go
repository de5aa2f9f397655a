package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const (
	defaultGeocodingURL = "https://geocoding-api.open-meteo.com/v1/search"
	defaultForecastURL  = "https://api.open-meteo.com/v1/forecast"
)

// WeatherClient looks up current conditions through the Open-Meteo API.
// Base URLs are configurable so tests can point at a local server.
type WeatherClient struct {
	http         *http.Client
	geocodingURL string
	forecastURL  string
}

// NewWeatherClient creates a client. Empty URLs fall back to the public API.
func NewWeatherClient(geocodingURL, forecastURL string) *WeatherClient {
	if geocodingURL == "" {
		geocodingURL = defaultGeocodingURL
	}
	if forecastURL == "" {
		forecastURL = defaultForecastURL
	}
	return &WeatherClient{
		http:         &http.Client{Timeout: 15 * time.Second},
		geocodingURL: geocodingURL,
		forecastURL:  forecastURL,
	}
}

type geocodingResponse struct {
	Results []struct {
		Name      string  `json:"name"`
		Country   string  `json:"country"`
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"results"`
}

type forecastResponse struct {
	Current struct {
		Temperature float64 `json:"temperature_2m"`
		WindSpeed   float64 `json:"wind_speed_10m"`
		Humidity    float64 `json:"relative_humidity_2m"`
		WeatherCode int     `json:"weather_code"`
	} `json:"current"`
}

// Current resolves a location name and fetches its present conditions.
func (c *WeatherClient) Current(ctx context.Context, location string) (string, error) {
	q := url.Values{}
	q.Set("name", location)
	q.Set("count", "1")

	var geo geocodingResponse
	if err := c.getJSON(ctx, c.geocodingURL+"?"+q.Encode(), &geo); err != nil {
		return "", fmt.Errorf("geocoding: %w", err)
	}
	if len(geo.Results) == 0 {
		return "", fmt.Errorf("unknown location: %s", location)
	}
	place := geo.Results[0]

	fq := url.Values{}
	fq.Set("latitude", fmt.Sprintf("%.4f", place.Latitude))
	fq.Set("longitude", fmt.Sprintf("%.4f", place.Longitude))
	fq.Set("current", "temperature_2m,wind_speed_10m,relative_humidity_2m,weather_code")

	var fc forecastResponse
	if err := c.getJSON(ctx, c.forecastURL+"?"+fq.Encode(), &fc); err != nil {
		return "", fmt.Errorf("forecast: %w", err)
	}

	out := map[string]interface{}{
		"location":    fmt.Sprintf("%s, %s", place.Name, place.Country),
		"temperature": fc.Current.Temperature,
		"wind_speed":  fc.Current.WindSpeed,
		"humidity":    fc.Current.Humidity,
		"conditions":  describeWeatherCode(fc.Current.WeatherCode),
	}
	b, _ := json.Marshal(out)
	return string(b), nil
}

func (c *WeatherClient) getJSON(ctx context.Context, rawURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// describeWeatherCode maps WMO weather codes to short descriptions.
func describeWeatherCode(code int) string {
	switch {
	case code == 0:
		return "clear sky"
	case code <= 3:
		return "partly cloudy"
	case code <= 48:
		return "fog"
	case code <= 57:
		return "drizzle"
	case code <= 67:
		return "rain"
	case code <= 77:
		return "snow"
	case code <= 82:
		return "rain showers"
	case code <= 86:
		return "snow showers"
	default:
		return "thunderstorm"
	}
}

// WeatherTool reports current conditions for a named location
func WeatherTool(client *WeatherClient) Tool {
	return Tool{
		Name:        "get_weather",
		Title:       "Weather",
		Description: "Get the current weather for a city or place name.",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"location": map[string]interface{}{
					"type":        "string",
					"description": "City or place name, e.g. 'Berlin'",
				},
			},
			"required": []string{"location"},
		},
		Execute: func(ctx context.Context, input map[string]interface{}) (string, error) {
			location, _ := input["location"].(string)
			if location == "" {
				return "", fmt.Errorf("location is required")
			}
			return client.Current(ctx, location)
		},
	}
}

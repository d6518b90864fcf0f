// Package opensky is a small client for the OpenSky Network REST API,
// covering the live state-vector feed and the per-airport flight
// arrival/departure queries.
package opensky

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"
)

const (
	defaultBaseURL = "https://opensky-network.org/api"

	maxIdleConns        = 10
	maxConnsPerHost     = 5
	idleConnTimeout     = 90 * time.Second
	tlsHandshakeTimeout = 10 * time.Second
)

// StateVector is a live aircraft position report. Latitude, longitude
// and last contact can be absent in the feed and stay nil then.
type StateVector struct {
	ICAO24      string
	Latitude    *float64
	Longitude   *float64
	LastContact *int64
}

// FlightData is one arrival or departure record for an airport query.
// The estimated airports are frequently unknown to OpenSky and come
// back as JSON null.
type FlightData struct {
	ICAO24              string  `json:"icao24"`
	EstDepartureAirport *string `json:"estDepartureAirport"`
	EstArrivalAirport   *string `json:"estArrivalAirport"`
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithBaseURL overrides the API endpoint (useful for testing).
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithTokenManager sets a custom token manager (useful for testing).
func WithTokenManager(tm *TokenManager) Option {
	return func(c *Client) { c.tokenManager = tm }
}

// Client fetches live and historical flight data from the OpenSky API.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	username     string
	password     string
	tokenManager *TokenManager
}

// NewClient creates an OpenSky client. The authentication mode follows
// the credential precedence: OAuth2 client credentials when present,
// then the legacy Basic-Auth pair, otherwise anonymous access.
func NewClient(creds Credentials, opts ...Option) *Client {
	transport := &http.Transport{
		MaxIdleConns:        maxIdleConns,
		MaxConnsPerHost:     maxConnsPerHost,
		IdleConnTimeout:     idleConnTimeout,
		TLSHandshakeTimeout: tlsHandshakeTimeout,
	}

	c := &Client{
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
	}

	switch {
	case creds.ClientID != "" && creds.ClientSecret != "":
		c.tokenManager = NewTokenManager(creds.ClientID, creds.ClientSecret, creds.TokenURL, creds.Scope)
		log.Println("opensky: using OAuth2 client credentials")
	case creds.Username != "" && creds.Password != "":
		c.username = creds.Username
		c.password = creds.Password
		log.Println("opensky: using legacy basic auth")
	default:
		log.Println("opensky: using anonymous access (rate-limited)")
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// statesResponse mirrors the JSON shape of /states/all. Each state is a
// positional array, most slots nullable.
type statesResponse struct {
	Time   int64           `json:"time"`
	States [][]interface{} `json:"states"`
}

// GetStates retrieves the current state vectors for all tracked aircraft.
func (c *Client) GetStates(ctx context.Context) ([]StateVector, error) {
	body, err := c.get(ctx, c.baseURL+"/states/all")
	if err != nil {
		return nil, err
	}

	var raw statesResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parsing states response: %w", err)
	}

	return parseStates(raw), nil
}

// GetArrivalsByAirport retrieves flights that arrived at the airport
// within [begin, end], both in epoch seconds.
func (c *Client) GetArrivalsByAirport(ctx context.Context, airport string, begin, end int64) ([]FlightData, error) {
	return c.getFlights(ctx, "/flights/arrival", airport, begin, end)
}

// GetDeparturesByAirport retrieves flights that departed from the
// airport within [begin, end], both in epoch seconds.
func (c *Client) GetDeparturesByAirport(ctx context.Context, airport string, begin, end int64) ([]FlightData, error) {
	return c.getFlights(ctx, "/flights/departure", airport, begin, end)
}

func (c *Client) getFlights(ctx context.Context, path, airport string, begin, end int64) ([]FlightData, error) {
	q := url.Values{}
	q.Set("airport", airport)
	q.Set("begin", fmt.Sprint(begin))
	q.Set("end", fmt.Sprint(end))

	body, err := c.get(ctx, c.baseURL+path+"?"+q.Encode())
	if err != nil {
		return nil, err
	}

	var flights []FlightData
	if err := json.Unmarshal(body, &flights); err != nil {
		return nil, fmt.Errorf("parsing flights response: %w", err)
	}

	return flights, nil
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	// Prefer the OAuth2 Bearer token, fall back to Basic Auth (legacy).
	if c.tokenManager != nil {
		token, err := c.tokenManager.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("obtaining access token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	} else if c.username != "" && c.password != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}

	return body, nil
}

func parseStates(raw statesResponse) []StateVector {
	states := make([]StateVector, 0, len(raw.States))
	for _, s := range raw.States {
		if len(s) < 7 {
			continue
		}
		sv := StateVector{ICAO24: stringVal(s[0])}
		if v, ok := s[4].(float64); ok {
			lc := int64(v)
			sv.LastContact = &lc
		}
		if v, ok := s[5].(float64); ok {
			lng := v
			sv.Longitude = &lng
		}
		if v, ok := s[6].(float64); ok {
			lat := v
			sv.Latitude = &lat
		}
		states = append(states, sv)
	}
	return states
}

func stringVal(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

package opensky

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"
)

const (
	// OpenSky OAuth2 token endpoint (client credentials grant).
	defaultTokenURL = "https://auth.opensky-network.org/auth/realms/opensky-network/protocol/openid-connect/token"

	// Refresh ahead of the reported expiry so in-flight requests never
	// carry a token that lapses mid-call.
	tokenRefreshBuffer = 2 * time.Minute
)

// Credentials holds the authentication material for the OpenSky API.
// OAuth2 client credentials take precedence over the legacy Basic-Auth
// pair; leaving everything blank selects anonymous (rate-limited) access.
type Credentials struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	TokenURL     string `yaml:"token_url"`
	Scope        string `yaml:"scope"`
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
}

// WithEnv fills any blank field from the corresponding OPENSKY_*
// environment variable. Explicitly set fields win over the environment.
func (c Credentials) WithEnv() Credentials {
	fill := func(v *string, key string) {
		if *v == "" {
			*v = os.Getenv(key)
		}
	}
	fill(&c.ClientID, "OPENSKY_CLIENT_ID")
	fill(&c.ClientSecret, "OPENSKY_CLIENT_SECRET")
	fill(&c.TokenURL, "OPENSKY_TOKEN_URL")
	fill(&c.Scope, "OPENSKY_SCOPE")
	fill(&c.Username, "OPENSKY_USERNAME")
	fill(&c.Password, "OPENSKY_PASSWORD")
	return c
}

// tokenResponse mirrors the JSON from the token endpoint.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"` // seconds
	TokenType   string `json:"token_type"`
}

// TokenManager handles the OAuth2 client-credentials token lifecycle.
// Safe for concurrent use.
type TokenManager struct {
	clientID     string
	clientSecret string
	tokenURL     string
	scope        string
	httpClient   *http.Client

	mu        sync.RWMutex
	token     string
	expiresAt time.Time
}

// NewTokenManager creates a token manager. An empty tokenURL selects the
// official OpenSky endpoint.
func NewTokenManager(clientID, clientSecret, tokenURL, scope string) *TokenManager {
	if tokenURL == "" {
		tokenURL = defaultTokenURL
	}
	return &TokenManager{
		clientID:     clientID,
		clientSecret: clientSecret,
		tokenURL:     tokenURL,
		scope:        scope,
		httpClient:   &http.Client{Timeout: 15 * time.Second},
	}
}

// Token returns a valid access token, refreshing it if needed.
func (tm *TokenManager) Token(ctx context.Context) (string, error) {
	tm.mu.RLock()
	if tm.token != "" && time.Now().Before(tm.expiresAt) {
		tok := tm.token
		tm.mu.RUnlock()
		return tok, nil
	}
	tm.mu.RUnlock()

	return tm.refresh(ctx)
}

func (tm *TokenManager) refresh(ctx context.Context) (string, error) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	// Double-check after acquiring the write lock.
	if tm.token != "" && time.Now().Before(tm.expiresAt) {
		return tm.token, nil
	}

	data := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {tm.clientID},
		"client_secret": {tm.clientSecret},
	}
	if tm.scope != "" {
		data.Set("scope", tm.scope)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tm.tokenURL,
		strings.NewReader(data.Encode()))
	if err != nil {
		return "", fmt.Errorf("creating token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := tm.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("requesting token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("token request failed (status %d): %s", resp.StatusCode, string(body))
	}

	var tokResp tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokResp); err != nil {
		return "", fmt.Errorf("decoding token response: %w", err)
	}

	tm.token = tokResp.AccessToken
	tm.expiresAt = time.Now().Add(time.Duration(tokResp.ExpiresIn)*time.Second - tokenRefreshBuffer)

	return tm.token, nil
}

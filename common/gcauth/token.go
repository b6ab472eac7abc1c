package gcauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	grantTypeJWTBearer = "urn:ietf:params:oauth:grant-type:jwt-bearer"

	// assertionLifetime is the exp-iat window of the signed assertion.
	assertionLifetime = time.Hour
)

// TokenExchangeError reports a token endpoint that rejected the assertion.
// Body is truncated downstream error text; the signing key never appears.
type TokenExchangeError struct {
	StatusCode int
	Body       string
}

func (e *TokenExchangeError) Error() string {
	return fmt.Sprintf("token exchange failed with status %d: %s", e.StatusCode, e.Body)
}

// Issuer exchanges signed service-account assertions for bearer tokens.
type Issuer struct {
	httpClient *http.Client
	now        func() time.Time
}

// NewIssuer returns an Issuer whose exchange calls are bounded by timeout.
func NewIssuer(timeout time.Duration) *Issuer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Issuer{
		httpClient: &http.Client{Timeout: timeout},
		now:        time.Now,
	}
}

// Token mints a fresh bearer token for the given scope. Every call signs a
// new RS256 assertion and performs a full exchange; tokens are never cached,
// so each request pays the signing and network cost.
func (i *Issuer) Token(ctx context.Context, cred *Credential, scope string) (string, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(cred.PrivateKey))
	if err != nil {
		return "", fmt.Errorf("parse private key: %w", err)
	}

	now := i.now().UTC()
	claims := jwt.MapClaims{
		"iss":   cred.ClientEmail,
		"scope": scope,
		"aud":   cred.TokenURI,
		"iat":   now.Unix(),
		"exp":   now.Add(assertionLifetime).Unix(),
	}

	assertion, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	if err != nil {
		return "", fmt.Errorf("sign assertion: %w", err)
	}

	form := url.Values{
		"grant_type": {grantTypeJWTBearer},
		"assertion":  {assertion},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cred.TokenURI, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := i.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token endpoint: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read token response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &TokenExchangeError{StatusCode: resp.StatusCode, Body: truncate(string(body), 200)}
	}

	var parsed struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil || parsed.AccessToken == "" {
		return "", &TokenExchangeError{StatusCode: resp.StatusCode, Body: "response missing access_token"}
	}

	return parsed.AccessToken, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

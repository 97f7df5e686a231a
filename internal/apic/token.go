package apic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

// TokenCache holds the most recently issued access token per provider.
// It is safe for concurrent use.
type TokenCache struct {
	mu     sync.Mutex
	tokens map[string]*oauth2.Token
}

func NewTokenCache() *TokenCache {
	return &TokenCache{tokens: make(map[string]*oauth2.Token)}
}

// Get returns the token of the given provider if it is present and still valid.
func (c *TokenCache) Get(providerID string) (*oauth2.Token, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.tokens[providerID]
	if !ok || !t.Valid() {
		return nil, false
	}
	return t, true
}

func (c *TokenCache) Put(providerID string, t *oauth2.Token) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens[providerID] = t
}

func (c *TokenCache) Invalidate(providerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tokens, providerID)
}

type tokenRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	GrantType    string `json:"grant_type"`
	Password     string `json:"password"`
	Realm        string `json:"realm"`
	Username     string `json:"username"`
}

// Issuer obtains access tokens for a single provider and caches them in
// a TokenCache shared with other issuers.
type Issuer struct {
	config  *ClientConfig
	http    *http.Client
	tokens  *TokenCache
	limiter *rate.Limiter
	log     *zap.SugaredLogger
	now     func() time.Time
}

// Token returns a valid access token, requesting a new one if the cache
// has none. A 401 from the token endpoint is retried according to the
// configured RetryPolicy.
func (i *Issuer) Token(ctx context.Context) (string, error) {
	if t, ok := i.tokens.Get(i.config.ProviderID); ok {
		return t.AccessToken, nil
	}
	var token *oauth2.Token
	err := i.config.retryPolicy().Do(ctx, func(ctx context.Context, attempt int) (bool, error) {
		t, err := i.issue(ctx)
		if err != nil {
			if IsUnauthorized(err) {
				i.log.Warnw("Token request was rejected, retrying", "attempt", attempt, "error", err)
				i.tokens.Invalidate(i.config.ProviderID)
				return true, err
			}
			return false, err
		}
		token = t
		return false, nil
	})
	if err != nil {
		return "", fmt.Errorf("issuing token for provider %s: %w", i.config.ProviderID, err)
	}
	i.tokens.Put(i.config.ProviderID, token)
	return token.AccessToken, nil
}

// Invalidate drops the cached token of the issuer's provider.
func (i *Issuer) Invalidate() {
	i.tokens.Invalidate(i.config.ProviderID)
}

func (i *Issuer) issue(ctx context.Context) (*oauth2.Token, error) {
	body, err := json.Marshal(tokenRequest{
		ClientID:     i.config.ClientID,
		ClientSecret: i.config.ClientSecret,
		GrantType:    "password",
		Password:     i.config.Password,
		Realm:        i.config.Realm,
		Username:     i.config.Username,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal token request: %w", err)
	}
	if err := i.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, JoinURL(i.config.BaseURL, PathToken), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("User-Agent", i.config.userAgent())
	req.Header.Set("X-Ibm-Client-Id", i.config.ClientID)
	req.Header.Set("X-Ibm-Client-Secret", i.config.ClientSecret)
	req.Header.Set("X-Ibm-Consumer-Context", "admin")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := i.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read token response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Status: resp.Status, Body: string(data)}
	}

	var at AccessToken
	if err := json.Unmarshal(data, &at); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	if at.AccessToken == "" {
		return nil, fmt.Errorf("token response contains no access_token")
	}
	t := &oauth2.Token{
		AccessToken: at.AccessToken,
		TokenType:   at.TokenType,
		ExpiresIn:   at.ExpiresIn,
	}
	if at.ExpiresIn > 0 {
		t.Expiry = i.now().Add(time.Duration(at.ExpiresIn) * time.Second)
	}
	return t, nil
}

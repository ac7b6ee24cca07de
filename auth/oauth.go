package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"meteostations.app/pkg/errors"
)

// Credential store keys used by the OAuth strategy
const (
	CredClientID     = "client_id"
	CredClientSecret = "client_secret"
	CredAccessToken  = "access_token"
)

// expirySkew refreshes tokens slightly before their advertised deadline
const expirySkew = 30 * time.Second

// OAuth signs requests with a bearer token obtained through a
// client-credentials exchange. Expired tokens are refreshed automatically
// and the refreshed token is written back to the credential store.
type OAuth struct {
	TokenURL string

	store  *CredentialStore
	client *http.Client

	mu     sync.Mutex
	token  string
	expiry time.Time
}

func NewOAuth(tokenURL string, store *CredentialStore, client *http.Client) *OAuth {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	o := &OAuth{
		TokenURL: tokenURL,
		store:    store,
		client:   client,
	}
	if token, ok := store.Get(CredAccessToken); ok {
		o.token = token
	}
	return o
}

func (o *OAuth) Sign(ctx context.Context, req *http.Request) error {
	token, err := o.currentToken(ctx)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

func (*OAuth) SecretParams() []string { return nil }

func (o *OAuth) currentToken(ctx context.Context) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.token != "" && (o.expiry.IsZero() || time.Now().Before(o.expiry.Add(-expirySkew))) {
		return o.token, nil
	}
	return o.refresh(ctx)
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// refresh performs the client-credentials exchange. Callers hold o.mu.
func (o *OAuth) refresh(ctx context.Context) (string, error) {
	clientID, ok := o.store.Get(CredClientID)
	if !ok {
		return "", errors.NewAuthenticationError("client_id credential is missing", nil)
	}
	clientSecret, ok := o.store.Get(CredClientSecret)
	if !ok {
		return "", errors.NewAuthenticationError("client_secret credential is missing", nil)
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", clientID)
	form.Set("client_secret", clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", errors.NewAuthenticationError("build token request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", errors.NewAuthenticationError("token exchange failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", errors.NewAuthenticationError(
			fmt.Sprintf("token endpoint returned status code %d", resp.StatusCode), nil)
	}

	var token tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return "", errors.NewAuthenticationError("decode token response", err)
	}
	if token.AccessToken == "" {
		return "", errors.NewAuthenticationError("token endpoint returned an empty access token", nil)
	}

	o.token = token.AccessToken
	if token.ExpiresIn > 0 {
		o.expiry = time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)
	} else {
		o.expiry = time.Time{}
	}
	o.store.Set(CredAccessToken, o.token)

	return o.token, nil
}

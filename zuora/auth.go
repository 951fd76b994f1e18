// Copyright (C) 2026 Stitch, Inc.
// See LICENSE for copying information.

package zuora

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// tokenExpirySkew is how close to expiry a cached bearer token may get
// before it is refreshed.
const tokenExpirySkew = time.Minute

// AuthType selects how requests are authenticated.
type AuthType string

const (
	// AuthBasic sends the tenant API key pair as opaque headers.
	AuthBasic AuthType = "BASIC"
	// AuthOAuth exchanges client credentials for a cached bearer token.
	AuthOAuth AuthType = "OAUTH"
)

// ParseAuthType normalizes a configured auth_type value.
func ParseAuthType(s string) (AuthType, error) {
	switch strings.ToUpper(s) {
	case "", string(AuthBasic):
		return AuthBasic, nil
	case string(AuthOAuth):
		return AuthOAuth, nil
	}
	return "", BadCredentials.New("auth_type must be set to 'BASIC' or 'OAUTH', got %q", s)
}

type accessToken struct {
	value   string
	expires time.Time
}

func (t *accessToken) valid(now time.Time) bool {
	return t != nil && t.value != "" && now.Add(tokenExpirySkew).Before(t.expires)
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// ensureToken makes sure a valid bearer token is cached. It is a no-op for
// basic auth.
func (client *Client) ensureToken(ctx context.Context) (err error) {
	defer mon.Task()(&ctx)(&err)

	if client.config.AuthType != AuthOAuth || client.token.valid(time.Now()) {
		return nil
	}

	bases := []string{client.baseURL}
	if client.baseURL == "" {
		// The data center is not resolved yet, so the token endpoint has
		// to be probed across every candidate.
		bases = CandidateURLs(client.config.Sandbox, client.config.European)
	}

	client.log.Info("client_id and client_secret provided, getting access token")
	for _, base := range bases {
		token, err := client.fetchToken(ctx, base)
		if err != nil {
			client.log.Error("error getting access token", zap.String("base", base), zap.Error(err))
			continue
		}
		client.token = token
		return nil
	}
	return BadCredentials.New("could not get access token due to invalid credentials")
}

func (client *Client) fetchToken(ctx context.Context, base string) (*accessToken, error) {
	form := url.Values{
		"client_id":     {client.config.Username},
		"client_secret": {client.config.Password},
		"grant_type":    {"client_credentials"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"oauth/token",
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, Error.Wrap(err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := client.http.Do(req)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Status: resp.StatusCode, Body: body}
	}

	var decoded tokenResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, Error.Wrap(err)
	}
	if decoded.AccessToken == "" {
		return nil, Error.New("token endpoint returned no access_token")
	}
	return &accessToken{
		value:   decoded.AccessToken,
		expires: time.Now().Add(time.Duration(decoded.ExpiresIn) * time.Second),
	}, nil
}

package remote

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"

	"github.com/clovid/prisma-sub000/internal/app/appconfig"
	"github.com/clovid/prisma-sub000/internal/pkg/cache"
)

const tokenExpiryMargin = 30 * time.Second

// authorize adds the module's credentials to req.
func (c *Client) authorize(ctx context.Context, req *http.Request) error {
	switch c.conf.Auth.Type {
	case appconfig.AuthToken:
		req.Header.Set("Authorization", "Bearer "+c.conf.Auth.Token)
	case appconfig.AuthOAuth:
		token, err := c.oauthToken(ctx)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	case appconfig.AuthSession:
		session, err := c.session(ctx)
		if err != nil {
			return err
		}
		req.Header.Set(c.conf.Auth.SessionHeader, session)
	}
	return nil
}

// forgetCredentials drops a cached token or session after the module rejected it.
func (c *Client) forgetCredentials(ctx context.Context) {
	switch c.conf.Auth.Type {
	case appconfig.AuthOAuth, appconfig.AuthSession:
		_ = c.store.Delete(ctx, c.credentialKey())
	}
}

func (c *Client) credentialKey() string {
	return cache.Key("credential", c.Module, c.conf.Auth.Type)
}

func (c *Client) oauthToken(ctx context.Context) (string, error) {
	var token string
	if err := c.store.Get(ctx, c.credentialKey(), &token); err == nil {
		return token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", c.conf.Auth.ClientID)
	form.Set("client_secret", c.conf.Auth.ClientSecret)
	if c.conf.Auth.Scope != "" {
		form.Set("scope", c.conf.Auth.Scope)
	}

	body, err := c.send(ctx, http.MethodPost, c.resolve(c.conf.Auth.TokenURL), strings.NewReader(form.Encode()),
		"application/x-www-form-urlencoded", false)
	if err != nil {
		return "", err
	}

	res := gjson.ParseBytes(body)
	token = res.Get("access_token").String()
	if token == "" {
		return "", &FetchError{Module: c.Module, URL: c.conf.Auth.TokenURL, Err: errors.Wrap(ErrMalformedResponse, "no access_token")}
	}

	ttl := time.Duration(res.Get("expires_in").Int()) * time.Second
	if ttl > tokenExpiryMargin {
		ttl -= tokenExpiryMargin
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	_ = c.store.Set(ctx, c.credentialKey(), token, ttl)
	return token, nil
}

func (c *Client) session(ctx context.Context) (string, error) {
	return cache.Remember(ctx, c.store, c.credentialKey(), c.conf.Auth.SessionTimeout, func() (string, error) {
		payload, err := json.Marshal(map[string]string{
			"username": c.conf.Auth.Username,
			"password": c.conf.Auth.Password,
		})
		if err != nil {
			return "", err
		}
		body, err := c.send(ctx, http.MethodPost, c.resolve(c.conf.Auth.LoginPath), strings.NewReader(string(payload)),
			"application/json", false)
		if err != nil {
			return "", err
		}
		session := gjson.GetBytes(body, c.conf.Auth.SessionPath).String()
		if session == "" {
			return "", &FetchError{Module: c.Module, URL: c.conf.Auth.LoginPath,
				Err: errors.Wrapf(ErrMalformedResponse, "no session at %q", c.conf.Auth.SessionPath)}
		}
		return session, nil
	})
}

package ssoflow

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/connec/aws-sso-flow/internal/oidc"
)

// exchangeGroup deduplicates concurrent credential exchanges for the same
// token and role; callers racing on an already-valid token share one
// GetRoleCredentials round trip.
type exchangeGroup struct {
	group singleflight.Group
}

func (g *exchangeGroup) do(key string, fn func() (SessionCredentials, error)) (SessionCredentials, error) {
	v, err, _ := g.group.Do(key, func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		return SessionCredentials{}, err
	}
	return v.(SessionCredentials), nil
}

// Credentials obtains session credentials, authenticating first if needed.
//
// A valid access token held in memory or on disk is reused without prompting
// the user; otherwise the device authorization flow runs and the prompt is
// invoked. If the provider rejects a token this flow believed valid (clock
// skew, revocation), the token is discarded and the full re-authentication
// path is retried exactly once before the error is surfaced.
//
// Credentials is idempotent and safe to call repeatedly and concurrently.
func (f *Flow) Credentials(ctx context.Context) (SessionCredentials, error) {
	token, err := f.accessToken(ctx, false)
	if err != nil {
		return SessionCredentials{}, err
	}

	credentials, err := f.exchangeToken(ctx, token)
	if err == nil {
		return credentials, nil
	}

	if errors.Is(err, oidc.ErrTokenRejected) {
		f.logger.Warn("access token rejected by provider, re-authenticating", "error", err)

		token, err = f.accessToken(ctx, true)
		if err != nil {
			return SessionCredentials{}, err
		}
		credentials, err = f.exchangeToken(ctx, token)
		if err == nil {
			return credentials, nil
		}
	}

	return SessionCredentials{}, &ExchangeError{Err: err, TokenRejected: errors.Is(err, oidc.ErrTokenRejected)}
}

// Authenticate is an alias for Credentials, matching the package-level
// entrypoint.
func (f *Flow) Authenticate(ctx context.Context) (SessionCredentials, error) {
	return f.Credentials(ctx)
}

// AccessToken returns a valid SSO access token as an oauth2.Token, running
// the device flow if necessary. Useful for callers that talk to SSO portal
// APIs directly rather than assuming a role.
func (f *Flow) AccessToken(ctx context.Context) (*oauth2.Token, error) {
	token, err := f.accessToken(ctx, false)
	if err != nil {
		return nil, err
	}
	return token.ToOAuth2Token(), nil
}

func (f *Flow) exchangeToken(ctx context.Context, token oidc.AccessToken) (SessionCredentials, error) {
	key := fmt.Sprintf("%s\x00%s\x00%s", token.Token, f.config.AccountID, f.config.RoleName)
	credentials, err := f.exchange.do(key, func() (SessionCredentials, error) {
		rc, err := f.role.GetRoleCredentials(ctx, token.Token, f.config.AccountID, f.config.RoleName)
		if err != nil {
			return SessionCredentials{}, err
		}
		return sessionCredentialsFromRole(rc), nil
	})
	if err != nil {
		return SessionCredentials{}, err
	}

	// A deduplicated result can in principle be observed arbitrarily late;
	// never hand out credentials past their expiry.
	if credentials.Expired() {
		rc, err := f.role.GetRoleCredentials(ctx, token.Token, f.config.AccountID, f.config.RoleName)
		if err != nil {
			return SessionCredentials{}, err
		}
		credentials = sessionCredentialsFromRole(rc)
	}
	return credentials, nil
}

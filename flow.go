package ssoflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sso"
	"github.com/aws/aws-sdk-go-v2/service/ssooidc"

	"github.com/connec/aws-sso-flow/internal/cache"
	"github.com/connec/aws-sso-flow/internal/flight"
	"github.com/connec/aws-sso-flow/internal/oidc"
)

// clientName identifies this library to the identity provider and namespaces
// the cache directory. The trailing version component gates cache
// compatibility: bump it when the cache format changes.
const clientName = "aws-sso-flow@0.1"

// tokenExpiryMargin is the margin applied when checking the in-memory access
// token. Tokens within the margin of expiry are refreshed rather than used.
const tokenExpiryMargin = 60 * time.Second

// slowDownIncrement is added to the polling interval each time the provider
// signals slow-down. Ignoring the signal risks the provider permanently
// rejecting the client, so it is honored unconditionally.
const slowDownIncrement = 5 * time.Second

const (
	clientCacheKind = "client"
	tokenCacheKind  = "token"
)

// VerificationPrompt directs the user to grant access at the given URL.
//
// It is invoked exactly once per authentication attempt, before polling
// begins, and is awaited to completion: if it returns an error the attempt
// is aborted with a PromptError. Token caching means prompting should be
// infrequent.
type VerificationPrompt func(ctx context.Context, verificationURL string) error

// OIDCAPI is the subset of the AWS SSO OIDC API the flow depends on. It is
// satisfied by *ssooidc.Client and can be replaced with a fake in tests or
// with an instrumented client in production.
type OIDCAPI interface {
	RegisterClient(ctx context.Context, params *ssooidc.RegisterClientInput, optFns ...func(*ssooidc.Options)) (*ssooidc.RegisterClientOutput, error)
	StartDeviceAuthorization(ctx context.Context, params *ssooidc.StartDeviceAuthorizationInput, optFns ...func(*ssooidc.Options)) (*ssooidc.StartDeviceAuthorizationOutput, error)
	CreateToken(ctx context.Context, params *ssooidc.CreateTokenInput, optFns ...func(*ssooidc.Options)) (*ssooidc.CreateTokenOutput, error)
}

// SSOAPI is the subset of the AWS SSO API the flow depends on. It is
// satisfied by *sso.Client.
type SSOAPI interface {
	GetRoleCredentials(ctx context.Context, params *sso.GetRoleCredentialsInput, optFns ...func(*sso.Options)) (*sso.GetRoleCredentialsOutput, error)
}

type options struct {
	cacheDir *string
	logger   *slog.Logger
	oidcAPI  OIDCAPI
	ssoAPI   SSOAPI
}

// Option configures a Flow.
type Option func(*options)

// WithCacheDir overrides the directory used for the token cache. The empty
// string disables on-disk caching entirely. By default tokens are cached
// under the user's OS cache directory in aws-sso-flow@0.1; the cache format
// is shared with the sso-login tool, so a sign-in performed by either is
// visible to both.
func WithCacheDir(dir string) Option {
	return func(o *options) {
		o.cacheDir = &dir
	}
}

// WithLogger sets the logger used for debug output. Defaults to
// slog.Default(). Token and credential values are never logged.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithOIDCAPI overrides the SSO OIDC transport.
func WithOIDCAPI(api OIDCAPI) Option {
	return func(o *options) {
		o.oidcAPI = api
	}
}

// WithSSOAPI overrides the SSO credential-exchange transport.
func WithSSOAPI(api SSOAPI) Option {
	return func(o *options) {
		o.ssoAPI = api
	}
}

// Flow is a configured SSO authentication flow.
//
// A Flow is safe for concurrent use. Authentication attempts for its cache
// key are serialized in-process: concurrent Credentials calls share a single
// device-flow round trip and a single verification prompt rather than
// issuing duplicate device codes.
type Flow struct {
	config Config
	cache  *cache.Store
	oidc   *oidc.Client
	role   *oidc.RoleClient
	prompt VerificationPrompt
	logger *slog.Logger

	auth     flight.Group[oidc.AccessToken]
	exchange exchangeGroup

	mu    sync.Mutex
	token oidc.AccessToken
}

// New builds a flow from the given configuration source and verification
// prompt. The source is loaded immediately so configuration errors surface
// here, separate from authentication errors.
func New(ctx context.Context, source ConfigSource, prompt VerificationPrompt, opts ...Option) (*Flow, error) {
	if source == nil {
		source = ProfileSource{}
	}
	if prompt == nil {
		return nil, errors.New("verification prompt must be set")
	}

	config, err := source.LoadConfig(ctx)
	if err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	cacheDir := cache.DefaultDir(clientName)
	if o.cacheDir != nil {
		cacheDir = *o.cacheDir
	}

	oidcClient := oidc.NewClient(config.Region, logger)
	if o.oidcAPI != nil {
		oidcClient = oidc.NewClientWithAPI(o.oidcAPI, logger)
	}
	roleClient := oidc.NewRoleClient(config.Region, logger)
	if o.ssoAPI != nil {
		roleClient = oidc.NewRoleClientWithAPI(o.ssoAPI, logger)
	}

	return &Flow{
		config: config,
		cache:  cache.NewStore(cacheDir, logger),
		oidc:   oidcClient,
		role:   roleClient,
		prompt: prompt,
		logger: logger,
	}, nil
}

// Authenticate performs a default SSO authentication flow with the given
// verification prompt.
//
// SSO configuration is sourced from AWS shared config (located with
// AWS_CONFIG_FILE and AWS_PROFILE) and intermediate tokens are cached in the
// user's OS cache directory, so the user may not need to be prompted at all.
func Authenticate(ctx context.Context, prompt VerificationPrompt) (SessionCredentials, error) {
	flow, err := New(ctx, ProfileSource{}, prompt)
	if err != nil {
		return SessionCredentials{}, err
	}
	return flow.Credentials(ctx)
}

// accessToken returns a valid access token, running the device flow if the
// in-memory and cached tokens are absent or expiring. force skips both and
// always performs a fresh device flow; it is used after the provider rejects
// a token we believed valid.
func (f *Flow) accessToken(ctx context.Context, force bool) (oidc.AccessToken, error) {
	if !force {
		f.mu.Lock()
		token := f.token
		f.mu.Unlock()
		if tokenUsable(token) {
			return token, nil
		}
	}

	key := f.config.cacheKey()
	token, err := f.auth.Do(ctx, string(key), func(ctx context.Context) (oidc.AccessToken, error) {
		return f.freshToken(ctx, key, !force)
	})
	if err != nil {
		return oidc.AccessToken{}, err
	}

	f.mu.Lock()
	f.token = token
	f.mu.Unlock()
	return token, nil
}

// freshToken obtains an access token, consulting the cache first unless
// useCache is false. Runs inside the per-key flight group, so at most one
// execution per cache key is in progress at a time.
func (f *Flow) freshToken(ctx context.Context, key cache.Key, useCache bool) (oidc.AccessToken, error) {
	if useCache {
		var token oidc.AccessToken
		if f.cache.Load(tokenCacheKind, key, &token) {
			f.logger.Debug("using cached access token", "expires_at", token.ExpiresAt)
			return token, nil
		}
	}

	registration, err := f.registration(ctx, key)
	if err != nil {
		return oidc.AccessToken{}, err
	}

	auth, err := f.oidc.StartDeviceAuthorization(ctx, registration, f.config.StartURL)
	if err != nil {
		return oidc.AccessToken{}, &DeviceAuthError{Err: err}
	}

	if err := f.prompt(ctx, auth.VerificationURIComplete); err != nil {
		return oidc.AccessToken{}, &PromptError{Err: err}
	}

	token, err := f.poll(ctx, registration, auth)
	if err != nil {
		return oidc.AccessToken{}, err
	}

	if err := f.cache.Store(tokenCacheKind, key, token); err != nil {
		f.logger.Warn("failed to cache access token", "error", &CacheError{Err: err})
	}
	return token, nil
}

// registration returns a usable client registration, registering a new
// client only when the cache has no unexpired one.
func (f *Flow) registration(ctx context.Context, key cache.Key) (oidc.ClientRegistration, error) {
	var registration oidc.ClientRegistration
	if f.cache.Load(clientCacheKind, key, &registration) {
		return registration, nil
	}

	registration, err := f.oidc.RegisterClient(ctx, clientName, f.config.Scopes)
	if err != nil {
		return oidc.ClientRegistration{}, &RegistrationError{Err: err}
	}

	if err := f.cache.Store(clientCacheKind, key, registration); err != nil {
		f.logger.Warn("failed to cache client registration", "error", &CacheError{Err: err})
	}
	return registration, nil
}

// poll repeatedly attempts CreateToken until the user approves, the device
// code expires, or the provider reports a terminal outcome. The wait between
// attempts starts at the provider's minimum interval and grows by
// slowDownIncrement on every slow-down signal.
func (f *Flow) poll(ctx context.Context, registration oidc.ClientRegistration, auth oidc.DeviceAuthorization) (oidc.AccessToken, error) {
	interval := auth.Interval
	if interval <= 0 {
		interval = time.Second
	}

	for {
		if !time.Now().Before(auth.ExpiresAt) {
			return oidc.AccessToken{}, ErrAuthorizationExpired
		}

		token, result, err := f.oidc.CreateToken(ctx, registration, auth.DeviceCode)
		switch result {
		case oidc.PollIssued:
			f.logger.Debug("device authorization approved", "expires_at", token.ExpiresAt)
			return token, nil
		case oidc.PollDenied:
			return oidc.AccessToken{}, ErrAuthorizationDenied
		case oidc.PollExpired:
			return oidc.AccessToken{}, ErrAuthorizationExpired
		case oidc.PollError:
			return oidc.AccessToken{}, &DeviceAuthError{Err: err}
		case oidc.PollSlowDown:
			interval += slowDownIncrement
			f.logger.Debug("provider requested slow-down", "interval", interval)
		case oidc.PollPending:
			// wait and retry
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return oidc.AccessToken{}, ctx.Err()
		case <-timer.C:
		}
	}
}

func tokenUsable(token oidc.AccessToken) bool {
	return token.Token != "" && time.Now().Add(tokenExpiryMargin).Before(token.ExpiresAt)
}

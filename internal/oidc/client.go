package oidc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssooidc"
	"github.com/aws/aws-sdk-go-v2/service/ssooidc/types"
	"github.com/aws/smithy-go"
)

// deviceCodeGrantType identifies the OAuth2 device-authorization grant in
// CreateToken requests.
const deviceCodeGrantType = "urn:ietf:params:oauth:grant-type:device_code"

// API is the subset of the SSO OIDC service used by the authentication flow.
// It is satisfied by *ssooidc.Client.
type API interface {
	RegisterClient(ctx context.Context, params *ssooidc.RegisterClientInput, optFns ...func(*ssooidc.Options)) (*ssooidc.RegisterClientOutput, error)
	StartDeviceAuthorization(ctx context.Context, params *ssooidc.StartDeviceAuthorizationInput, optFns ...func(*ssooidc.Options)) (*ssooidc.StartDeviceAuthorizationOutput, error)
	CreateToken(ctx context.Context, params *ssooidc.CreateTokenInput, optFns ...func(*ssooidc.Options)) (*ssooidc.CreateTokenOutput, error)
}

// Client cleans up the SSO OIDC API for the authentication flow.
type Client struct {
	api    API
	logger *slog.Logger
}

// NewClient creates a client backed by the real SSO OIDC service in the
// given region, called anonymously.
func NewClient(region string, logger *slog.Logger) *Client {
	api := ssooidc.New(ssooidc.Options{
		Region:      region,
		Credentials: aws.AnonymousCredentials{},
	})
	return NewClientWithAPI(api, logger)
}

// NewClientWithAPI creates a client backed by the given API implementation.
func NewClientWithAPI(api API, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{api: api, logger: logger}
}

// RegisterClient registers a public OIDC client under the given name and
// returns the resulting registration with absolute expiry.
func (c *Client) RegisterClient(ctx context.Context, clientName string, scopes []string) (ClientRegistration, error) {
	out, err := c.api.RegisterClient(ctx, &ssooidc.RegisterClientInput{
		ClientName: aws.String(clientName),
		ClientType: aws.String("public"),
		Scopes:     scopes,
	})
	if err != nil {
		return ClientRegistration{}, fmt.Errorf("RegisterClient: %s", apiErrorMessage(err))
	}
	if out.ClientId == nil || out.ClientSecret == nil {
		return ClientRegistration{}, errors.New("invalid RegisterClient response: missing client_id or client_secret")
	}
	if out.ClientSecretExpiresAt == 0 {
		return ClientRegistration{}, errors.New("invalid RegisterClient response: missing client_secret_expires_at")
	}

	reg := ClientRegistration{
		ClientID:              aws.ToString(out.ClientId),
		ClientSecret:          aws.ToString(out.ClientSecret),
		ClientSecretExpiresAt: time.Unix(out.ClientSecretExpiresAt, 0).UTC(),
	}
	if out.ClientIdIssuedAt != 0 {
		reg.IssuedAt = time.Unix(out.ClientIdIssuedAt, 0).UTC()
	}

	c.logger.Debug("registered OIDC client",
		"client_id", reg.ClientID,
		"expires_at", reg.ClientSecretExpiresAt)
	return reg, nil
}

// StartDeviceAuthorization begins a device-flow attempt against the given
// start URL and returns the device authorization state.
func (c *Client) StartDeviceAuthorization(ctx context.Context, reg ClientRegistration, startURL string) (DeviceAuthorization, error) {
	out, err := c.api.StartDeviceAuthorization(ctx, &ssooidc.StartDeviceAuthorizationInput{
		ClientId:     aws.String(reg.ClientID),
		ClientSecret: aws.String(reg.ClientSecret),
		StartUrl:     aws.String(startURL),
	})
	if err != nil {
		return DeviceAuthorization{}, fmt.Errorf("StartDeviceAuthorization: %s", apiErrorMessage(err))
	}
	if out.DeviceCode == nil || out.UserCode == nil || out.VerificationUriComplete == nil {
		return DeviceAuthorization{}, errors.New("invalid StartDeviceAuthorization response: missing device_code, user_code or verification_uri_complete")
	}

	auth := DeviceAuthorization{
		DeviceCode:              aws.ToString(out.DeviceCode),
		UserCode:                aws.ToString(out.UserCode),
		VerificationURI:         aws.ToString(out.VerificationUri),
		VerificationURIComplete: aws.ToString(out.VerificationUriComplete),
		ExpiresAt:               time.Now().Add(time.Duration(out.ExpiresIn) * time.Second),
		Interval:                time.Duration(out.Interval) * time.Second,
	}

	c.logger.Debug("started device authorization",
		"user_code", auth.UserCode,
		"expires_at", auth.ExpiresAt,
		"interval", auth.Interval)
	return auth, nil
}

// CreateToken performs one device-flow polling attempt.
//
// The returned PollResult classifies the outcome. Only PollIssued carries a
// token; only PollError carries a non-nil error. Denied and expired are
// distinct terminal outcomes, not errors, so the caller can surface them
// with the right user messaging.
func (c *Client) CreateToken(ctx context.Context, reg ClientRegistration, deviceCode string) (AccessToken, PollResult, error) {
	out, err := c.api.CreateToken(ctx, &ssooidc.CreateTokenInput{
		ClientId:     aws.String(reg.ClientID),
		ClientSecret: aws.String(reg.ClientSecret),
		DeviceCode:   aws.String(deviceCode),
		GrantType:    aws.String(deviceCodeGrantType),
	})
	if err != nil {
		result := classifyCreateTokenError(err)
		if result == PollError {
			return AccessToken{}, result, fmt.Errorf("CreateToken: %s", apiErrorMessage(err))
		}
		return AccessToken{}, result, nil
	}

	if out.AccessToken == nil {
		return AccessToken{}, PollError, errors.New("invalid CreateToken response: missing access_token")
	}
	if out.ExpiresIn == 0 {
		return AccessToken{}, PollError, errors.New("invalid CreateToken response: missing expires_in")
	}

	now := time.Now()
	token := AccessToken{
		Token:        aws.ToString(out.AccessToken),
		TokenType:    aws.ToString(out.TokenType),
		RefreshToken: aws.ToString(out.RefreshToken),
		IssuedAt:     now.UTC(),
		ExpiresAt:    now.Add(time.Duration(out.ExpiresIn) * time.Second).UTC(),
	}
	return token, PollIssued, nil
}

func classifyCreateTokenError(err error) PollResult {
	var (
		pending  *types.AuthorizationPendingException
		slowDown *types.SlowDownException
		denied   *types.AccessDeniedException
		expired  *types.ExpiredTokenException
	)
	switch {
	case errors.As(err, &pending):
		return PollPending
	case errors.As(err, &slowDown):
		return PollSlowDown
	case errors.As(err, &denied):
		return PollDenied
	case errors.As(err, &expired):
		return PollExpired
	default:
		return PollError
	}
}

// apiErrorMessage renders an SDK error for inclusion in flow errors. Smithy
// API errors carry the service's error code, which is far more useful to an
// end user than the operation wrapper text.
func apiErrorMessage(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return fmt.Sprintf("%s: %s", apiErr.ErrorCode(), apiErr.ErrorMessage())
	}
	return err.Error()
}

package oidc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sso"
	"github.com/aws/aws-sdk-go-v2/service/sso/types"
)

// ErrTokenRejected reports that the SSO service refused the access token.
// The caller can recover by discarding the token and re-authenticating.
var ErrTokenRejected = errors.New("access token rejected by SSO")

// RoleAPI is the subset of the SSO service used for credential exchange.
// It is satisfied by *sso.Client.
type RoleAPI interface {
	GetRoleCredentials(ctx context.Context, params *sso.GetRoleCredentialsInput, optFns ...func(*sso.Options)) (*sso.GetRoleCredentialsOutput, error)
}

// RoleClient cleans up the SSO API for credential exchange.
type RoleClient struct {
	api    RoleAPI
	logger *slog.Logger
}

// NewRoleClient creates a client backed by the real SSO service in the given
// region, called anonymously (the access token authorizes the request).
func NewRoleClient(region string, logger *slog.Logger) *RoleClient {
	api := sso.New(sso.Options{
		Region:      region,
		Credentials: aws.AnonymousCredentials{},
	})
	return NewRoleClientWithAPI(api, logger)
}

// NewRoleClientWithAPI creates a client backed by the given API implementation.
func NewRoleClientWithAPI(api RoleAPI, logger *slog.Logger) *RoleClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &RoleClient{api: api, logger: logger}
}

// GetRoleCredentials exchanges an access token for role credentials.
//
// A rejected token is reported as an error wrapping ErrTokenRejected so the
// caller can distinguish it from an invalid account/role pair, which is not
// recoverable by re-authenticating.
func (c *RoleClient) GetRoleCredentials(ctx context.Context, accessToken, accountID, roleName string) (RoleCredentials, error) {
	out, err := c.api.GetRoleCredentials(ctx, &sso.GetRoleCredentialsInput{
		AccessToken: aws.String(accessToken),
		AccountId:   aws.String(accountID),
		RoleName:    aws.String(roleName),
	})
	if err != nil {
		var unauthorized *types.UnauthorizedException
		if errors.As(err, &unauthorized) {
			return RoleCredentials{}, fmt.Errorf("GetRoleCredentials: %w: %s", ErrTokenRejected, apiErrorMessage(err))
		}
		return RoleCredentials{}, fmt.Errorf("GetRoleCredentials: %s", apiErrorMessage(err))
	}

	rc := out.RoleCredentials
	if rc == nil || rc.AccessKeyId == nil || rc.SecretAccessKey == nil || rc.SessionToken == nil {
		return RoleCredentials{}, errors.New("invalid GetRoleCredentials response: missing credentials")
	}
	if rc.Expiration == 0 {
		return RoleCredentials{}, errors.New("invalid GetRoleCredentials response: missing expiration")
	}

	creds := RoleCredentials{
		AccessKeyID:     aws.ToString(rc.AccessKeyId),
		SecretAccessKey: aws.ToString(rc.SecretAccessKey),
		SessionToken:    aws.ToString(rc.SessionToken),
		ExpiresAt:       time.UnixMilli(rc.Expiration).UTC(),
	}

	c.logger.Debug("exchanged access token for role credentials",
		"account_id", accountID,
		"role_name", roleName,
		"expires_at", creds.ExpiresAt)
	return creds, nil
}

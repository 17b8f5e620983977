package ssoflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/connec/aws-sso-flow/internal/cache"
)

// Config is the SSO configuration an authentication flow runs against.
type Config struct {
	// Region is the AWS region in which SSO was set up. All API calls are
	// performed in this region.
	Region string

	// StartURL is the URL of the AWS SSO user portal.
	StartURL string

	// AccountID is the AWS account to sign in to.
	AccountID string

	// RoleName is the IAM role to assume in the account, as it appears in
	// the SSO configuration.
	RoleName string

	// Scopes are the OIDC scopes requested during client registration.
	// Optional; the provider applies its default when empty.
	Scopes []string
}

// ConfigSource supplies SSO configuration to a flow. Config itself is a
// source, so hard-coded configuration can be passed directly to New.
type ConfigSource interface {
	LoadConfig(ctx context.Context) (Config, error)
}

// LoadConfig makes Config its own trivial ConfigSource.
func (c Config) LoadConfig(ctx context.Context) (Config, error) {
	return c, c.validate()
}

func (c Config) validate() error {
	var missing []string
	if c.Region == "" {
		missing = append(missing, "region")
	}
	if c.StartURL == "" {
		missing = append(missing, "start URL")
	}
	if c.AccountID == "" {
		missing = append(missing, "account ID")
	}
	if c.RoleName == "" {
		missing = append(missing, "role name")
	}
	if len(missing) > 0 {
		return &ConfigError{msg: fmt.Sprintf("incomplete SSO configuration; missing: %s", strings.Join(missing, ", "))}
	}
	return nil
}

// cacheKey derives the key under which this configuration's registration and
// token records are cached. Account and role are excluded: a single sign-in
// covers every role the user may assume.
func (c Config) cacheKey() cache.Key {
	return cache.NewKey(c.Region, c.StartURL, c.Scopes)
}

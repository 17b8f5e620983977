package ssoflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
)

// providerName is reported as the source of credentials produced by this
// package's aws.CredentialsProvider implementations.
const providerName = "SsoFlow"

// CredentialsProvider exposes the flow as an aws-sdk-go-v2
// aws.CredentialsProvider, so SSO credentials can feed any SDK client.
//
// The flow's own token caching makes repeated retrievals cheap, but wrapping
// the provider in aws.NewCredentialsCache additionally avoids the role
// credential exchange on every SDK request:
//
//	cfg, err := config.LoadDefaultConfig(ctx,
//	    config.WithCredentialsProvider(aws.NewCredentialsCache(flow.CredentialsProvider())))
func (f *Flow) CredentialsProvider() aws.CredentialsProvider {
	return credentialsProvider{flow: f}
}

type credentialsProvider struct {
	flow *Flow
}

// Retrieve implements aws.CredentialsProvider.
func (p credentialsProvider) Retrieve(ctx context.Context) (aws.Credentials, error) {
	credentials, err := p.flow.Credentials(ctx)
	if err != nil {
		return aws.Credentials{}, err
	}
	return aws.Credentials{
		AccessKeyID:     credentials.AccessKeyID,
		SecretAccessKey: credentials.SecretAccessKey,
		SessionToken:    credentials.SessionToken,
		CanExpire:       true,
		Expires:         credentials.ExpiresAt,
		Source:          providerName,
	}, nil
}

// ChainProvider provides AWS credentials from the first of several providers
// to succeed. Trying to retrieve from an empty chain always fails.
type ChainProvider struct {
	providers []aws.CredentialsProvider
}

// NewChainProvider constructs an empty chain. Providers are added with Push.
func NewChainProvider() *ChainProvider {
	return &ChainProvider{}
}

// Push appends a provider to the chain. It is invoked only if every
// previously pushed provider fails.
func (c *ChainProvider) Push(provider aws.CredentialsProvider) *ChainProvider {
	c.providers = append(c.providers, provider)
	return c
}

// Retrieve implements aws.CredentialsProvider by trying each provider in
// order, returning the first success or every error joined.
func (c *ChainProvider) Retrieve(ctx context.Context) (aws.Credentials, error) {
	var errs []error
	for _, provider := range c.providers {
		credentials, err := provider.Retrieve(ctx)
		if err == nil {
			return credentials, nil
		}
		errs = append(errs, err)
	}

	if len(errs) == 0 {
		return aws.Credentials{}, errors.New("no credential providers in chain")
	}
	return aws.Credentials{}, fmt.Errorf("no provider in chain produced credentials: %w", errors.Join(errs...))
}

// Package ssoflow implements AWS SSO authentication via the OAuth2 device
// authorization grant, without requiring an interactive terminal: the caller
// supplies a verification prompt that is invoked with the sign-in URL, and
// the package handles client registration, device-flow polling, token
// exchange, disk-backed caching and expiry-aware reuse.
//
// # Quick start
//
//	credentials, err := ssoflow.Authenticate(ctx, func(ctx context.Context, url string) error {
//	    fmt.Printf("Go to %s to sign in with SSO\n", url)
//	    return nil
//	})
//
// Authenticate sources SSO configuration from AWS shared config (located
// with AWS_CONFIG_FILE and AWS_PROFILE) and caches intermediate tokens in
// the user's OS cache directory, so a user who has recently signed in is
// not prompted again.
//
// # Flows
//
// For anything beyond the quick start, build a Flow:
//
//	flow, err := ssoflow.New(ctx, ssoflow.Config{
//	    Region:    "eu-west-1",
//	    StartURL:  "https://myorg.awsapps.com/start",
//	    AccountID: "012345678910",
//	    RoleName:  "PowerUser",
//	}, prompt)
//
// A Flow is a long-lived session: Credentials may be called repeatedly and
// concurrently, reusing the held access token and re-running the device
// flow transparently when it expires. Concurrent calls never issue
// duplicate device codes; one attempt is shared and the prompt fires once.
//
// # AWS SDK integration
//
// Flow.CredentialsProvider adapts a flow to aws.CredentialsProvider, and
// ChainProvider combines several providers with first-success semantics.
//
// # Caching
//
// Client registrations and access tokens are cached as JSON files shared
// with the sso-login command in this repository; either tool recognizes a
// sign-in performed by the other. Role credentials are never written to
// disk. Unreadable or corrupt cache records are treated as absent, never as
// fatal errors.
package ssoflow

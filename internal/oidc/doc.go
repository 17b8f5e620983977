// Package oidc wraps the AWS SSO OIDC and AWS SSO APIs behind narrow
// interfaces so the authentication flow can be exercised against in-memory
// fakes, and cleans the SDK's pointer-heavy responses into plain domain
// values with absolute expiry timestamps.
//
// Two capabilities are modelled:
//
//   - API / Client: client registration, device authorization and token
//     creation against the SSO OIDC service. CreateToken results are
//     classified into the device-flow polling outcomes (issued, pending,
//     slow-down, denied, expired) so the caller can honor the provider's
//     pacing signals without inspecting SDK error types itself.
//   - RoleAPI / RoleClient: exchanging an access token for role credentials
//     against the SSO service, distinguishing a rejected token (recoverable
//     by re-authenticating) from an invalid account/role pair (not).
//
// Both default implementations call AWS with anonymous credentials; every
// operation in these flows is pre-authentication by definition.
package oidc

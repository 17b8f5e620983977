package oidc

import (
	"time"

	"golang.org/x/oauth2"
)

// ClientRegistration is an OIDC client id/secret pair obtained from the
// identity provider. It is persisted to the shared cache, so the JSON field
// names are a compatibility contract.
type ClientRegistration struct {
	ClientID              string    `json:"client_id"`
	ClientSecret          string    `json:"client_secret"`
	IssuedAt              time.Time `json:"issued_at,omitempty"`
	ClientSecretExpiresAt time.Time `json:"client_secret_expires_at"`
}

// Expiry returns when the registration stops being usable.
func (r ClientRegistration) Expiry() time.Time {
	return r.ClientSecretExpiresAt
}

// AccessToken is a bearer token issued at the end of the device flow. It is
// persisted to the shared cache, so the JSON field names are a compatibility
// contract.
type AccessToken struct {
	Token        string    `json:"access_token"`
	TokenType    string    `json:"token_type,omitempty"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	IssuedAt     time.Time `json:"issued_at,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Expiry returns when the token stops being usable.
func (t AccessToken) Expiry() time.Time {
	return t.ExpiresAt
}

// ToOAuth2Token converts the token for use with golang.org/x/oauth2 APIs.
func (t AccessToken) ToOAuth2Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  t.Token,
		TokenType:    t.TokenType,
		RefreshToken: t.RefreshToken,
		Expiry:       t.ExpiresAt,
	}
}

// DeviceAuthorization is the single-use state of one device-flow attempt.
// It is never cached; the device code is consumed by polling and the whole
// value is discarded once a token is issued or the code expires.
type DeviceAuthorization struct {
	DeviceCode              string
	UserCode                string
	VerificationURI         string
	VerificationURIComplete string
	ExpiresAt               time.Time
	Interval                time.Duration
}

// PollResult classifies one CreateToken attempt during device-flow polling.
type PollResult int

const (
	// PollIssued means the user approved and a token was returned.
	PollIssued PollResult = iota
	// PollPending means the user has not acted yet; wait and retry.
	PollPending
	// PollSlowDown means the provider demands a longer wait before retrying.
	PollSlowDown
	// PollDenied means the user rejected the request. Terminal.
	PollDenied
	// PollExpired means the device code expired before approval. Terminal.
	PollExpired
	// PollError means the attempt failed for transport or server reasons.
	PollError
)

// String makes PollResult satisfy fmt.Stringer for log output.
func (r PollResult) String() string {
	switch r {
	case PollIssued:
		return "issued"
	case PollPending:
		return "pending"
	case PollSlowDown:
		return "slow-down"
	case PollDenied:
		return "denied"
	case PollExpired:
		return "expired"
	case PollError:
		return "error"
	default:
		return "unknown"
	}
}

// RoleCredentials are the short-lived provider credentials obtained by
// exchanging an access token. They are never persisted by this package.
type RoleCredentials struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	ExpiresAt       time.Time
}
